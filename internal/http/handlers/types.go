// Package handlers provides typed Huma request/response structs and handler
// implementations for the skyrad HTTP API.
package handlers

import (
	"time"

	"github.com/jmylchreest/skyrad/internal/config"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// --- Box types ---

// ChannelResponse is the API representation of one laser channel.
type ChannelResponse struct {
	Name         string  `json:"name" doc:"Channel name, usually the nominal wavelength"`
	Index        string  `json:"index" doc:"Index token used on the wire"`
	WavelengthNM string  `json:"wavelength_nm" doc:"Wavelength reported by the box during the handshake"`
	MaxPowerMW   float64 `json:"max_power_mw" doc:"Configured maximum power in milliwatts"`
	PowerMW      float64 `json:"power_mw" doc:"Last confirmed power setpoint in milliwatts"`
	On           bool    `json:"on" doc:"Whether the channel is switched on"`
	Active       bool    `json:"active" doc:"Whether the channel is in active (modulated) mode"`
}

// BoxResponse is the API representation of a configured laser box.
type BoxResponse struct {
	ID           string            `json:"id" doc:"Box identifier from the daemon config"`
	Name         string            `json:"name" doc:"Display name"`
	Port         string            `json:"port" doc:"Serial port"`
	SerialNumber string            `json:"serial_number" doc:"Serial number verified during the handshake"`
	State        string            `json:"state" doc:"Connection lifecycle state" enum:"unopened,opened,identity_verified,interlock_verified,ready,closed"`
	KeySwitch    bool              `json:"key_switch" doc:"Last observed key switch position"`
	Channels     []ChannelResponse `json:"channels" doc:"Channels in configuration order"`
	ConnectedAt  time.Time         `json:"connected_at" doc:"When the box last completed a handshake"`
	LastSeen     time.Time         `json:"last_seen" doc:"Last successful exchange with the box"`
	LastError    string            `json:"last_error,omitempty" doc:"Most recent failure, if any"`
}

// ChannelFromSkyra converts a channel snapshot to a ChannelResponse.
func ChannelFromSkyra(ch skyra.ChannelState) ChannelResponse {
	return ChannelResponse{
		Name:         ch.Name,
		Index:        ch.Index,
		WavelengthNM: ch.WavelengthNM,
		MaxPowerMW:   ch.MaxPowerMW,
		PowerMW:      ch.PowerMW,
		On:           ch.On,
		Active:       ch.Active,
	}
}

// BoxFromSkyra converts a box snapshot to a BoxResponse.
func BoxFromSkyra(b *skyra.Box) BoxResponse {
	channels := make([]ChannelResponse, 0, len(b.Channels))
	for _, ch := range b.Channels {
		channels = append(channels, ChannelFromSkyra(ch))
	}
	return BoxResponse{
		ID:           b.ID,
		Name:         b.Name,
		Port:         b.Port,
		SerialNumber: b.SerialNumber,
		State:        b.State,
		KeySwitch:    b.KeySwitch,
		Channels:     channels,
		ConnectedAt:  b.ConnectedAt,
		LastSeen:     b.LastSeen,
		LastError:    b.LastError,
	}
}

// BoxesMapFromSkyra converts the manager's map to the API map.
func BoxesMapFromSkyra(boxes map[string]*skyra.Box) map[string]BoxResponse {
	result := make(map[string]BoxResponse, len(boxes))
	for id, b := range boxes {
		result[id] = BoxFromSkyra(b)
	}
	return result
}

// --- API Key types ---

// APIKeyResponse is the API representation of an API key.
type APIKeyResponse struct {
	ID         string    `json:"id" doc:"Key identifier"`
	Name       string    `json:"name" doc:"Display name of the key"`
	Key        string    `json:"key,omitempty" doc:"Full key string (only present on creation)"`
	CreatedAt  time.Time `json:"created_at" doc:"When the key was created"`
	ExpiresAt  time.Time `json:"expires_at" doc:"When the key expires (zero means never)"`
	LastUsedAt time.Time `json:"last_used_at" doc:"When the key was last accepted"`
	Disabled   bool      `json:"disabled" doc:"Whether the key is disabled"`
}

// APIKeyFromConfig converts a stored key. The secret is only included when
// withSecret is set.
func APIKeyFromConfig(k *config.APIKey, withSecret bool) APIKeyResponse {
	resp := APIKeyResponse{
		ID:         k.Key,
		Name:       k.Name,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		Disabled:   k.Disabled,
	}
	if withSecret {
		resp.Key = k.Key
	}
	return resp
}

// --- Common response types ---

// StatusResponse is a simple status response.
type StatusResponse struct {
	Status string `json:"status" doc:"Operation status"`
}
