package commands

import (
	"time"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
	"github.com/jmylchreest/skyrad/pkg/client"
)

// mockClient implements client.ClientInterface for CLI tests
// and records what the commands asked for.
type mockClient struct {
	boxes    map[string]any
	keys     []map[string]any
	level    string
	fail     error
	calls    []string
	update   client.ChannelUpdate
	ttl      time.Duration
	disabled *bool
}

var _ client.ClientInterface = (*mockClient)(nil)

func newMockClient() *mockClient {
	return &mockClient{
		boxes: map[string]any{
			"bench": map[string]any{
				"id":            "bench",
				"name":          "Bench",
				"port":          "/dev/ttyUSB0",
				"serial_number": "28288",
				"state":         "ready",
				"key_switch":    true,
				"connected_at":  "2026-03-01T10:00:00Z",
				"last_seen":     "2026-03-01T10:05:00Z",
				"channels": []any{
					map[string]any{"name": "488", "index": "3", "wavelength_nm": "488", "power_mw": 8.0, "max_power_mw": 110.0, "on": true, "active": true},
					map[string]any{"name": "561", "index": "1", "wavelength_nm": "561", "power_mw": 0.0, "max_power_mw": 55.0, "on": false, "active": false},
				},
			},
			"spare": map[string]any{
				"id":            "spare",
				"name":          "Spare",
				"port":          "/dev/ttyUSB1",
				"serial_number": "",
				"state":         "unopened",
				"key_switch":    false,
				"connected_at":  "0001-01-01T00:00:00Z",
				"last_seen":     "0001-01-01T00:00:00Z",
				"last_error":    "no connection",
				"channels":      []any{},
			},
		},
		keys: []map[string]any{
			{"name": "ci", "key": "abcd1234efgh5678", "created_at": "2026-02-01T00:00:00Z", "expires_at": "0001-01-01T00:00:00Z", "disabled": false},
		},
		level: "info",
	}
}

func (m *mockClient) record(call string) error {
	m.calls = append(m.calls, call)
	return m.fail
}

func (m *mockClient) box(id string) (map[string]any, error) {
	b, ok := m.boxes[id].(map[string]any)
	if !ok {
		return nil, ierrors.NotFoundf("box %s not found", id)
	}
	return b, nil
}

func (m *mockClient) Ping() error { return m.record("ping") }

func (m *mockClient) GetVersion() (map[string]any, error) {
	if err := m.record("version"); err != nil {
		return nil, err
	}
	return map[string]any{"version": "9.9.9", "commit": "daemon", "build_date": "2026-02-02"}, nil
}

func (m *mockClient) GetBoxes() (map[string]any, error) {
	if err := m.record("boxes"); err != nil {
		return nil, err
	}
	return m.boxes, nil
}

func (m *mockClient) GetBox(id string, refresh bool) (map[string]any, error) {
	call := "get " + id
	if refresh {
		call += " refresh"
	}
	if err := m.record(call); err != nil {
		return nil, err
	}
	return m.box(id)
}

func (m *mockClient) RefreshBox(id string) (map[string]any, error) {
	if err := m.record("refresh " + id); err != nil {
		return nil, err
	}
	return m.box(id)
}

func (m *mockClient) ConnectBox(id string) (map[string]any, error) {
	if err := m.record("connect " + id); err != nil {
		return nil, err
	}
	return m.box(id)
}

func (m *mockClient) DisconnectBox(id string) error {
	if err := m.record("disconnect " + id); err != nil {
		return err
	}
	_, err := m.box(id)
	return err
}

func (m *mockClient) GetChannel(id, channel string, refresh bool) (map[string]any, error) {
	if err := m.record("channel " + id + " " + channel); err != nil {
		return nil, err
	}
	b, err := m.box(id)
	if err != nil {
		return nil, err
	}
	for _, ch := range boxChannels(b) {
		if ch["name"] == channel {
			return ch, nil
		}
	}
	return nil, ierrors.NotFoundf("channel %s not found", channel)
}

func (m *mockClient) SetChannelState(id, channel string, update client.ChannelUpdate) (map[string]any, error) {
	m.update = update
	if err := m.record("set " + id + " " + channel); err != nil {
		return nil, err
	}
	ch, err := m.GetChannel(id, channel, false)
	if err != nil {
		return nil, err
	}
	out := cloneWith(ch, "name", channel)
	if update.PowerMW != nil {
		out["power_mw"] = *update.PowerMW
	}
	if update.On != nil {
		out["on"] = *update.On
	}
	if update.Active != nil {
		out["active"] = *update.Active
	}
	return out, nil
}

func (m *mockClient) AddAPIKey(name string, expiresIn time.Duration) (map[string]any, error) {
	m.ttl = expiresIn
	if err := m.record("apikey add " + name); err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "key": name + "-secret-key", "expires_at": "0001-01-01T00:00:00Z"}, nil
}

func (m *mockClient) ListAPIKeys() ([]map[string]any, error) {
	if err := m.record("apikey list"); err != nil {
		return nil, err
	}
	return m.keys, nil
}

func (m *mockClient) DeleteAPIKey(key string) error {
	return m.record("apikey delete " + key)
}

func (m *mockClient) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	m.disabled = &disabled
	if err := m.record("apikey disable " + keyOrName); err != nil {
		return nil, err
	}
	return map[string]any{"name": "ci", "disabled": disabled}, nil
}

func (m *mockClient) GetLevel() (string, error) {
	if err := m.record("level get"); err != nil {
		return "", err
	}
	return m.level, nil
}

func (m *mockClient) SetLevel(level string) (string, error) {
	if err := m.record("level set " + level); err != nil {
		return "", err
	}
	m.level = level
	return level, nil
}
