// Package client talks to a running skyrad, either over its unix socket or
// over the HTTP API. Both transports implement ClientInterface.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/skyrad/internal/config"
	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

var dial = net.Dial

// DefaultTimeout bounds one socket exchange. Channel sets run several
// confirmed writes, so this is generous.
const DefaultTimeout = 30 * time.Second

// ChannelUpdate lists the channel values to change; nil fields are left alone.
type ChannelUpdate struct {
	PowerMW *float64 `json:"power_mw,omitempty"`
	On      *bool    `json:"on,omitempty"`
	Active  *bool    `json:"active,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ChannelUpdate) Empty() bool {
	return u.PowerMW == nil && u.On == nil && u.Active == nil
}

// ClientInterface defines the daemon operations used by skyractl.
type ClientInterface interface {
	Ping() error
	GetVersion() (map[string]any, error)
	GetBoxes() (map[string]any, error)
	GetBox(id string, refresh bool) (map[string]any, error)
	RefreshBox(id string) (map[string]any, error)
	ConnectBox(id string) (map[string]any, error)
	DisconnectBox(id string) error
	GetChannel(id, channel string, refresh bool) (map[string]any, error)
	SetChannelState(id, channel string, update ChannelUpdate) (map[string]any, error)
	AddAPIKey(name string, expiresIn time.Duration) (map[string]any, error)
	ListAPIKeys() ([]map[string]any, error)
	DeleteAPIKey(key string) error
	SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error)
	GetLevel() (string, error)
	SetLevel(level string) (string, error)
}

var (
	_ ClientInterface = (*Client)(nil)
	_ ClientInterface = (*HTTPClient)(nil)
)

// Client talks to skyrad over its unix socket.
type Client struct {
	logger  *slog.Logger
	socket  string
	timeout time.Duration
}

// New creates a socket client. An empty socket uses the runtime default.
func New(logger *slog.Logger, socket string) *Client {
	if socket == "" {
		socket = config.GetRuntimeSocketPath()
		logger.Debug("client: using default socket", "socket", socket)
	}
	return &Client{logger: logger, socket: socket, timeout: DefaultTimeout}
}

// SetTimeout changes the per-request deadline. Zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Socket returns the socket path in use.
func (c *Client) Socket() string {
	return c.socket
}

// request sends one action and returns the reply. Replies carrying an error
// are turned into errors of the same kind as on the daemon.
func (c *Client) request(action string, data map[string]any) (map[string]any, error) {
	conn, err := dial("unix", c.socket)
	if err != nil {
		return nil, ierrors.WithKind(ierrors.ErrDeviceUnavailable,
			fmt.Errorf("failed to connect to skyrad at %s: %w", c.socket, err))
	}
	defer conn.Close()

	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	id := uuid.NewString()
	req := map[string]any{"action": action, "id": id}
	if len(data) > 0 {
		req["data"] = data
	}
	c.logger.Debug("client: request", "action", action, "id", id)
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp map[string]any
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if got, _ := resp["id"].(string); got != "" && got != id {
		return nil, fmt.Errorf("response id %q does not match request %q", got, id)
	}
	if msg, ok := resp["error"].(string); ok {
		kind, _ := resp["kind"].(string)
		c.logger.Debug("client: daemon returned error", "action", action, "kind", kind, "error", msg)
		return nil, ierrors.FromKind(kind, msg)
	}
	return resp, nil
}

func (c *Client) object(action string, data map[string]any, field string) (map[string]any, error) {
	resp, err := c.request(action, data)
	if err != nil {
		return nil, err
	}
	obj, ok := resp[field].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response to %s has no %s", action, field)
	}
	return obj, nil
}

// Ping checks the daemon is answering.
func (c *Client) Ping() error {
	_, err := c.request("ping", nil)
	return err
}

// GetVersion returns the daemon's version, commit and build date.
func (c *Client) GetVersion() (map[string]any, error) {
	resp, err := c.request("version", nil)
	if err != nil {
		return nil, err
	}
	delete(resp, "status")
	delete(resp, "id")
	return resp, nil
}

// GetBoxes returns every configured box keyed by id.
func (c *Client) GetBoxes() (map[string]any, error) {
	return c.object("list_boxes", nil, "boxes")
}

// GetBox returns one box, optionally refreshed from the hardware.
func (c *Client) GetBox(id string, refresh bool) (map[string]any, error) {
	return c.object("get_box", map[string]any{"id": id, "refresh": refresh}, "box")
}

// RefreshBox re-reads every channel of a box.
func (c *Client) RefreshBox(id string) (map[string]any, error) {
	return c.object("refresh_box", map[string]any{"id": id}, "box")
}

// ConnectBox opens a box and runs its handshake.
func (c *Client) ConnectBox(id string) (map[string]any, error) {
	return c.object("connect_box", map[string]any{"id": id}, "box")
}

// DisconnectBox releases a box's serial port.
func (c *Client) DisconnectBox(id string) error {
	_, err := c.request("disconnect_box", map[string]any{"id": id})
	return err
}

// GetChannel returns one channel.
func (c *Client) GetChannel(id, channel string, refresh bool) (map[string]any, error) {
	return c.object("get_channel", map[string]any{"id": id, "channel": channel, "refresh": refresh}, "channel")
}

// SetChannelState applies update and returns the confirmed channel.
func (c *Client) SetChannelState(id, channel string, update ChannelUpdate) (map[string]any, error) {
	data := map[string]any{"id": id, "channel": channel}
	if update.PowerMW != nil {
		data["power_mw"] = *update.PowerMW
	}
	if update.On != nil {
		data["on"] = *update.On
	}
	if update.Active != nil {
		data["active"] = *update.Active
	}
	return c.object("set_channel_state", data, "channel")
}

// AddAPIKey creates a key. A zero expiresIn never expires.
func (c *Client) AddAPIKey(name string, expiresIn time.Duration) (map[string]any, error) {
	data := map[string]any{"name": name}
	if expiresIn > 0 {
		data["expires_in"] = expiresIn.String()
	}
	return c.object("apikey_add", data, "key")
}

// ListAPIKeys returns every stored key.
func (c *Client) ListAPIKeys() ([]map[string]any, error) {
	resp, err := c.request("apikey_list", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["keys"].([]any)
	keys := make([]map[string]any, 0, len(raw))
	for _, k := range raw {
		if m, ok := k.(map[string]any); ok {
			keys = append(keys, m)
		}
	}
	return keys, nil
}

// DeleteAPIKey removes a key.
func (c *Client) DeleteAPIKey(key string) error {
	_, err := c.request("apikey_delete", map[string]any{"key": key})
	return err
}

// SetAPIKeyDisabledStatus enables or disables the key matched by value or name.
func (c *Client) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	return c.object("apikey_set_disabled_status", map[string]any{"key_or_name": keyOrName, "disabled": disabled}, "key")
}

// GetLevel returns the daemon's log level.
func (c *Client) GetLevel() (string, error) {
	resp, err := c.request("get_level", nil)
	if err != nil {
		return "", err
	}
	level, _ := resp["level"].(string)
	return level, nil
}

// SetLevel changes the daemon's log level and returns the level now in effect.
func (c *Client) SetLevel(level string) (string, error) {
	resp, err := c.request("set_level", map[string]any{"level": level})
	if err != nil {
		return "", err
	}
	got, _ := resp["level"].(string)
	return got, nil
}
