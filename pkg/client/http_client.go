package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ierrors "github.com/jmylchreest/skyrad/internal/errors"
)

// HTTPClient talks to skyrad over its HTTP API.
type HTTPClient struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates a new HTTP client
func NewHTTP(logger *slog.Logger, baseURL string, apiKey string) *HTTPClient {
	return &HTTPClient{
		logger:  logger,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// problem is the RFC 9457 body huma writes for errors.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// statusError converts an error response into an error of the matching kind.
func statusError(status int, body []byte) error {
	var p problem
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &p); err == nil && (p.Detail != "" || p.Title != "") {
		msg = p.Detail
		if msg == "" {
			msg = p.Title
		}
	}
	msg = fmt.Sprintf("HTTP error %d: %s", status, msg)

	switch status {
	case http.StatusNotFound:
		return ierrors.FromKind(ierrors.KindNotFound, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ierrors.FromKind(ierrors.KindInvalidInput, msg)
	case http.StatusConflict:
		return ierrors.FromKind(ierrors.KindSafety, msg)
	case http.StatusServiceUnavailable:
		return ierrors.FromKind(ierrors.KindDeviceUnavailable, msg)
	case http.StatusGatewayTimeout:
		return ierrors.FromKind(ierrors.KindTimeout, msg)
	default:
		return fmt.Errorf("%s", msg)
	}
}

// request performs an HTTP request and decodes the JSON response
func (c *HTTPClient) request(method, path string, body any, resp any) error {
	target := c.baseURL + path
	c.logger.Debug("client: HTTP request", "method", method, "url", target)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return ierrors.WithKind(ierrors.ErrDeviceUnavailable, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		c.logger.Debug("client: HTTP error response", "status", httpResp.StatusCode, "body", string(respBody))
		return statusError(httpResp.StatusCode, respBody)
	}

	if resp != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, resp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) object(method, path string, body any) (map[string]any, error) {
	var resp map[string]any
	if err := c.request(method, path, body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func boxPath(id string, rest ...string) string {
	p := "/api/v1/boxes/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Ping checks the daemon is answering.
func (c *HTTPClient) Ping() error {
	return c.request(http.MethodGet, "/api/v1/health", nil, nil)
}

// GetVersion returns the running daemon's version information.
func (c *HTTPClient) GetVersion() (map[string]any, error) {
	return c.object(http.MethodGet, "/api/v1/version", nil)
}

// GetBoxes returns every configured box keyed by id.
func (c *HTTPClient) GetBoxes() (map[string]any, error) {
	return c.object(http.MethodGet, "/api/v1/boxes", nil)
}

// GetBox returns one box.
func (c *HTTPClient) GetBox(id string, refresh bool) (map[string]any, error) {
	path := boxPath(id)
	if refresh {
		path += "?refresh=true"
	}
	return c.object(http.MethodGet, path, nil)
}

// RefreshBox re-reads every channel of a box.
func (c *HTTPClient) RefreshBox(id string) (map[string]any, error) {
	return c.object(http.MethodPost, boxPath(id, "refresh"), nil)
}

// ConnectBox opens a box and runs its handshake.
func (c *HTTPClient) ConnectBox(id string) (map[string]any, error) {
	return c.object(http.MethodPost, boxPath(id, "connect"), nil)
}

// DisconnectBox releases a box's serial port.
func (c *HTTPClient) DisconnectBox(id string) error {
	return c.request(http.MethodPost, boxPath(id, "disconnect"), nil, nil)
}

// GetChannel returns one channel.
func (c *HTTPClient) GetChannel(id, channel string, refresh bool) (map[string]any, error) {
	path := boxPath(id, "channels", url.PathEscape(channel))
	if refresh {
		path += "?refresh=true"
	}
	return c.object(http.MethodGet, path, nil)
}

// SetChannelState applies update and returns the confirmed channel.
func (c *HTTPClient) SetChannelState(id, channel string, update ChannelUpdate) (map[string]any, error) {
	return c.object(http.MethodPost, boxPath(id, "channels", url.PathEscape(channel), "state"), update)
}

// AddAPIKey creates a new API key
func (c *HTTPClient) AddAPIKey(name string, expiresIn time.Duration) (map[string]any, error) {
	body := map[string]any{"name": name}
	if expiresIn > 0 {
		body["expires_in"] = expiresIn.String()
	}
	return c.object(http.MethodPost, "/api/v1/apikeys", body)
}

// ListAPIKeys returns all API keys
func (c *HTTPClient) ListAPIKeys() ([]map[string]any, error) {
	var resp []map[string]any
	if err := c.request(http.MethodGet, "/api/v1/apikeys", nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return []map[string]any{}, nil
	}
	return resp, nil
}

// DeleteAPIKey deletes an API key
func (c *HTTPClient) DeleteAPIKey(key string) error {
	return c.request(http.MethodDelete, "/api/v1/apikeys/"+url.PathEscape(key), nil, nil)
}

// SetAPIKeyDisabledStatus enables or disables an API key
func (c *HTTPClient) SetAPIKeyDisabledStatus(keyOrName string, disabled bool) (map[string]any, error) {
	return c.object(http.MethodPut, "/api/v1/apikeys/"+url.PathEscape(keyOrName)+"/disabled",
		map[string]any{"disabled": disabled})
}

// GetLevel returns the daemon's log level.
func (c *HTTPClient) GetLevel() (string, error) {
	resp, err := c.object(http.MethodGet, "/api/v1/logging/level", nil)
	if err != nil {
		return "", err
	}
	level, _ := resp["level"].(string)
	return level, nil
}

// SetLevel changes the daemon's log level.
func (c *HTTPClient) SetLevel(level string) (string, error) {
	resp, err := c.object(http.MethodPut, "/api/v1/logging/level", map[string]any{"level": level})
	if err != nil {
		return "", err
	}
	got, _ := resp["level"].(string)
	return got, nil
}
