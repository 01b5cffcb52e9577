package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// --- Get Channel ---

// GetChannelInput is the input for reading one channel.
type GetChannelInput struct {
	ID      string `path:"id" doc:"Box identifier"`
	Channel string `path:"channel" doc:"Channel name"`
	Refresh bool   `query:"refresh" doc:"Re-read the channel from the box before answering"`
}

// ChannelOutput carries a single channel.
type ChannelOutput struct {
	Body ChannelResponse
}

// --- Set Channel State ---

// SetChannelStateInput is the input for changing a channel. Omitted fields
// are left as they are.
type SetChannelStateInput struct {
	ID      string `path:"id" doc:"Box identifier"`
	Channel string `path:"channel" doc:"Channel name"`
	Body    struct {
		PowerMW *float64 `json:"power_mw,omitempty" doc:"Power setpoint in milliwatts, quantized to 0.1 mW" minimum:"0"`
		On      *bool    `json:"on,omitempty" doc:"Switch the channel on or off"`
		Active  *bool    `json:"active,omitempty" doc:"Enter or leave active (modulated) mode"`
	}
}

// ChannelHandler implements channel HTTP handlers.
type ChannelHandler struct {
	Boxes skyra.BoxManager
}

// GetChannel returns one channel, optionally refreshed from hardware.
func (h *ChannelHandler) GetChannel(ctx context.Context, input *GetChannelInput) (*ChannelOutput, error) {
	ch, err := h.Boxes.GetChannel(ctx, input.ID, input.Channel, input.Refresh)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ChannelOutput{Body: ChannelFromSkyra(ch)}, nil
}

// SetChannelState applies the requested values and returns the confirmed state.
func (h *ChannelHandler) SetChannelState(ctx context.Context, input *SetChannelStateInput) (*ChannelOutput, error) {
	var values []skyra.ChannelPropertyValue
	if input.Body.PowerMW != nil {
		values = append(values, skyra.PowerValue(*input.Body.PowerMW))
	}
	if input.Body.On != nil {
		values = append(values, skyra.OnValue(*input.Body.On))
	}
	if input.Body.Active != nil {
		values = append(values, skyra.ActiveValue(*input.Body.Active))
	}
	if len(values) == 0 {
		return nil, huma.Error400BadRequest("at least one of power_mw, on or active is required")
	}

	ch, err := h.Boxes.SetChannelState(ctx, input.ID, input.Channel, values...)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &ChannelOutput{Body: ChannelFromSkyra(ch)}, nil
}

// Ensure ChannelHandler implements the interface at compile time.
var _ ChannelHandlers = (*ChannelHandler)(nil)

// ChannelHandlers defines the interface for channel operations.
type ChannelHandlers interface {
	GetChannel(ctx context.Context, input *GetChannelInput) (*ChannelOutput, error)
	SetChannelState(ctx context.Context, input *SetChannelStateInput) (*ChannelOutput, error)
}
