package handlers

import (
	"context"

	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// --- List Boxes ---

// ListBoxesInput is the input for listing all boxes.
type ListBoxesInput struct{}

// ListBoxesOutput returns boxes keyed by id.
type ListBoxesOutput struct {
	Body map[string]BoxResponse
}

// --- Get Box ---

// GetBoxInput is the input for getting a single box.
type GetBoxInput struct {
	ID      string `path:"id" doc:"Box identifier"`
	Refresh bool   `query:"refresh" doc:"Re-read every channel from the box before answering"`
}

// BoxOutput carries a single box.
type BoxOutput struct {
	Body BoxResponse
}

// --- Box actions ---

// BoxActionInput addresses a box for refresh, connect and disconnect.
type BoxActionInput struct {
	ID string `path:"id" doc:"Box identifier"`
}

// DisconnectBoxOutput is the output for disconnecting a box.
type DisconnectBoxOutput struct {
	Body StatusResponse
}

// BoxHandler implements box HTTP handlers.
type BoxHandler struct {
	Boxes skyra.BoxManager
}

// ListBoxes returns the cached view of every configured box.
func (h *BoxHandler) ListBoxes(_ context.Context, _ *ListBoxesInput) (*ListBoxesOutput, error) {
	return &ListBoxesOutput{Body: BoxesMapFromSkyra(h.Boxes.GetBoxes())}, nil
}

// GetBox returns one box, optionally refreshed from hardware.
func (h *BoxHandler) GetBox(ctx context.Context, input *GetBoxInput) (*BoxOutput, error) {
	box, err := h.Boxes.GetBox(ctx, input.ID, input.Refresh)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &BoxOutput{Body: BoxFromSkyra(box)}, nil
}

// RefreshBox re-reads every channel of a box.
func (h *BoxHandler) RefreshBox(ctx context.Context, input *BoxActionInput) (*BoxOutput, error) {
	box, err := h.Boxes.GetBox(ctx, input.ID, true)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &BoxOutput{Body: BoxFromSkyra(box)}, nil
}

// ConnectBox opens the serial port and runs the handshake.
func (h *BoxHandler) ConnectBox(ctx context.Context, input *BoxActionInput) (*BoxOutput, error) {
	box, err := h.Boxes.Connect(ctx, input.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &BoxOutput{Body: BoxFromSkyra(box)}, nil
}

// DisconnectBox releases the serial port of a box.
func (h *BoxHandler) DisconnectBox(ctx context.Context, input *BoxActionInput) (*DisconnectBoxOutput, error) {
	if err := h.Boxes.Disconnect(ctx, input.ID); err != nil {
		return nil, toHTTPError(err)
	}
	return &DisconnectBoxOutput{Body: StatusResponse{Status: "ok"}}, nil
}

// Ensure BoxHandler implements the interface at compile time.
var _ BoxHandlers = (*BoxHandler)(nil)

// BoxHandlers defines the interface for box operations.
type BoxHandlers interface {
	ListBoxes(ctx context.Context, input *ListBoxesInput) (*ListBoxesOutput, error)
	GetBox(ctx context.Context, input *GetBoxInput) (*BoxOutput, error)
	RefreshBox(ctx context.Context, input *BoxActionInput) (*BoxOutput, error)
	ConnectBox(ctx context.Context, input *BoxActionInput) (*BoxOutput, error)
	DisconnectBox(ctx context.Context, input *BoxActionInput) (*DisconnectBoxOutput, error)
}
