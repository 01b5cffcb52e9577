package client

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func (m *mockConn) Read(b []byte) (int, error)         { return m.readBuf.Read(b) }
func (m *mockConn) Write(b []byte) (int, error)        { return m.writeBuf.Write(b) }
func (m *mockConn) Close() error                       { m.closed = true; return nil }
func (m *mockConn) LocalAddr() net.Addr                { return nil }
func (m *mockConn) RemoteAddr() net.Addr               { return nil }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// withReply installs a dialer that answers the next request with reply and
// returns the connection so the sent request can be inspected.
func withReply(t *testing.T, reply map[string]any) *mockConn {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(reply))
	conn := &mockConn{readBuf: buf, writeBuf: &bytes.Buffer{}}
	old := dial
	dial = func(network, address string) (net.Conn, error) {
		assert.Equal(t, "unix", network)
		return conn, nil
	}
	t.Cleanup(func() { dial = old })
	return conn
}

func sentRequest(t *testing.T, conn *mockConn) map[string]any {
	t.Helper()
	var req map[string]any
	require.NoError(t, json.Unmarshal(conn.writeBuf.Bytes(), &req))
	return req
}

func TestClient_RequestCarriesUUID(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")
	conn := withReply(t, map[string]any{"status": "ok", "message": "pong"})

	require.NoError(t, c.Ping())
	req := sentRequest(t, conn)
	assert.Equal(t, "ping", req["action"])
	_, err := uuid.Parse(req["id"].(string))
	assert.NoError(t, err)
	assert.NotContains(t, req, "data")
	assert.True(t, conn.closed)
}

func TestClient_RejectsMismatchedID(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")
	withReply(t, map[string]any{"status": "ok", "id": "someone-else"})

	err := c.Ping()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		kind string
		is   func(error) bool
	}{
		{ierrors.KindNotFound, ierrors.IsNotFound},
		{ierrors.KindInvalidInput, ierrors.IsInvalidInput},
		{ierrors.KindSafety, ierrors.IsSafety},
		{ierrors.KindDeviceUnavailable, ierrors.IsDeviceUnavailable},
	}
	c := New(testLogger(), "/tmp/fake.sock")
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			withReply(t, map[string]any{"error": "box lab: nope", "kind": tt.kind})
			_, err := c.GetBox("lab", false)
			require.Error(t, err)
			assert.Equal(t, "box lab: nope", err.Error())
			assert.True(t, tt.is(err))
		})
	}
}

func TestClient_DialFailureIsUnavailable(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")
	old := dial
	dial = func(string, string) (net.Conn, error) { return nil, &net.OpError{Op: "dial", Err: assert.AnError} }
	t.Cleanup(func() { dial = old })

	err := c.Ping()
	require.Error(t, err)
	assert.True(t, ierrors.IsDeviceUnavailable(err))
}

func TestClient_Boxes(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")

	t.Run("GetBoxes", func(t *testing.T) {
		withReply(t, map[string]any{"status": "ok", "boxes": map[string]any{
			"lab": map[string]any{"id": "lab", "state": "ready"},
		}})
		boxes, err := c.GetBoxes()
		require.NoError(t, err)
		assert.Contains(t, boxes, "lab")
	})

	t.Run("GetBox", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok", "box": map[string]any{"id": "lab"}})
		box, err := c.GetBox("lab", true)
		require.NoError(t, err)
		assert.Equal(t, "lab", box["id"])
		req := sentRequest(t, conn)
		assert.Equal(t, "get_box", req["action"])
		assert.Equal(t, map[string]any{"id": "lab", "refresh": true}, req["data"])
	})

	t.Run("MissingField", func(t *testing.T) {
		withReply(t, map[string]any{"status": "ok"})
		_, err := c.ConnectBox("lab")
		assert.Error(t, err)
	})

	t.Run("Refresh", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok", "box": map[string]any{"id": "lab"}})
		_, err := c.RefreshBox("lab")
		require.NoError(t, err)
		assert.Equal(t, "refresh_box", sentRequest(t, conn)["action"])
	})

	t.Run("Disconnect", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok"})
		require.NoError(t, c.DisconnectBox("lab"))
		assert.Equal(t, "disconnect_box", sentRequest(t, conn)["action"])
	})
}

func TestClient_SetChannelState(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")
	conn := withReply(t, map[string]any{"status": "ok", "channel": map[string]any{"name": "488", "power_mw": 8.0}})

	power, on := 8.0, true
	ch, err := c.SetChannelState("lab", "488", ChannelUpdate{PowerMW: &power, On: &on})
	require.NoError(t, err)
	assert.Equal(t, 8.0, ch["power_mw"])

	req := sentRequest(t, conn)
	assert.Equal(t, "set_channel_state", req["action"])
	assert.Equal(t, map[string]any{"id": "lab", "channel": "488", "power_mw": 8.0, "on": true}, req["data"])
}

func TestChannelUpdateEmpty(t *testing.T) {
	assert.True(t, ChannelUpdate{}.Empty())
	off := false
	assert.False(t, ChannelUpdate{Active: &off}.Empty())
}

func TestClient_APIKeys(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")

	t.Run("AddAPIKey", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok", "key": map[string]any{"name": "test-key", "key": "abcd1234"}})
		key, err := c.AddAPIKey("test-key", 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "abcd1234", key["key"])
		assert.Equal(t, map[string]any{"name": "test-key", "expires_in": "24h0m0s"}, sentRequest(t, conn)["data"])
	})

	t.Run("ListAPIKeys", func(t *testing.T) {
		withReply(t, map[string]any{"status": "ok", "keys": []any{
			map[string]any{"name": "key1"},
			map[string]any{"name": "key2", "disabled": true},
		}})
		keys, err := c.ListAPIKeys()
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "key2", keys[1]["name"])
	})

	t.Run("DeleteAPIKey", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok"})
		require.NoError(t, c.DeleteAPIKey("abcd1234"))
		assert.Equal(t, map[string]any{"key": "abcd1234"}, sentRequest(t, conn)["data"])
	})

	t.Run("SetAPIKeyDisabledStatus", func(t *testing.T) {
		conn := withReply(t, map[string]any{"status": "ok", "key": map[string]any{"name": "key1", "disabled": true}})
		key, err := c.SetAPIKeyDisabledStatus("key1", true)
		require.NoError(t, err)
		assert.Equal(t, true, key["disabled"])
		assert.Equal(t, map[string]any{"key_or_name": "key1", "disabled": true}, sentRequest(t, conn)["data"])
	})
}

func TestClient_LevelAndVersion(t *testing.T) {
	c := New(testLogger(), "/tmp/fake.sock")

	withReply(t, map[string]any{"status": "ok", "level": "warn"})
	level, err := c.SetLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, "warn", level)

	withReply(t, map[string]any{"status": "ok", "level": "info"})
	level, err = c.GetLevel()
	require.NoError(t, err)
	assert.Equal(t, "info", level)

	withReply(t, map[string]any{"status": "ok", "version": "1.0.0", "commit": "abc", "build_date": "today"})
	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": "1.0.0", "commit": "abc", "build_date": "today"}, v)
}

func TestNewDefaultsSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	c := New(testLogger(), "")
	assert.Contains(t, c.Socket(), "skyrad.sock")
}
