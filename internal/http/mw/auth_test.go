package mw

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/skyrad/internal/apikey"
	"github.com/jmylchreest/skyrad/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newKeyStore returns a manager holding an active "bench-operator" key, a
// disabled "retired" key and an "intern" key that has already expired.
func newKeyStore(t *testing.T) (*apikey.Manager, map[string]string) {
	t.Helper()
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "skyrad.yaml"))
	require.NoError(t, err)
	mgr := apikey.NewManager(cfg, testLogger())

	keys := map[string]string{}
	for _, name := range []string{"bench-operator", "retired"} {
		k, err := mgr.CreateAPIKey(name, 0)
		require.NoError(t, err)
		keys[name] = k.Key
	}
	_, err = mgr.SetAPIKeyDisabledStatus("retired", true)
	require.NoError(t, err)

	intern, err := mgr.CreateAPIKey("intern", time.Millisecond)
	require.NoError(t, err)
	keys["intern"] = intern.Key
	time.Sleep(5 * time.Millisecond)
	return mgr, keys
}

func TestRawAPIKeyAuth(t *testing.T) {
	mgr, keys := newKeyStore(t)
	events := RawAPIKeyAuth(testLogger(), mgr)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("streaming"))
	}))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
		body    string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer " + keys["bench-operator"]}, http.StatusOK, "streaming"},
		{"x-api-key", map[string]string{"X-API-Key": keys["bench-operator"]}, http.StatusOK, "streaming"},
		{"bearer wins over x-api-key", map[string]string{
			"Authorization": "Bearer " + keys["bench-operator"],
			"X-API-Key":     "wrong",
		}, http.StatusOK, "streaming"},
		{"non-bearer authorization falls back", map[string]string{
			"Authorization": "Basic Zm9vOmJhcg==",
			"X-API-Key":     keys["bench-operator"],
		}, http.StatusOK, "streaming"},
		{"missing", nil, http.StatusUnauthorized, "API key required"},
		{"unknown", map[string]string{"X-API-Key": "not-a-key"}, http.StatusUnauthorized, "Unauthorized"},
		{"disabled", map[string]string{"X-API-Key": keys["retired"]}, http.StatusUnauthorized, "disabled"},
		{"expired", map[string]string{"X-API-Key": keys["intern"]}, http.StatusUnauthorized, "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			events.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestOperationRequiresAuth(t *testing.T) {
	assert.False(t, operationRequiresAuth(nil))
	assert.False(t, operationRequiresAuth(&huma.Operation{}))
	assert.False(t, operationRequiresAuth(&huma.Operation{Security: []map[string][]string{}}))
	assert.False(t, operationRequiresAuth(&huma.Operation{Security: []map[string][]string{{"oauth": {}}}}))
	assert.True(t, operationRequiresAuth(&huma.Operation{Security: []map[string][]string{{"oauth": {}}, {SecurityScheme: {}}}}))

	op := huma.Operation{}
	protected(&op)
	assert.True(t, operationRequiresAuth(&op))
}

type boxesOutput struct {
	Body struct {
		Boxes []string `json:"boxes"`
	}
}

func newBoxAPI(t *testing.T, mgr *apikey.Manager) http.Handler {
	t.Helper()
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("skyrad test", "0.0.0"))
	api.UseMiddleware(HumaAuth(api, testLogger(), mgr))

	list := func(_ context.Context, _ *struct{}) (*boxesOutput, error) {
		out := &boxesOutput{}
		out.Body.Boxes = []string{"bench"}
		return out, nil
	}
	PublicGet(api, "/api/v1/health", list)
	HiddenGet(api, "/healthz", list)
	ProtectedGet(api, "/api/v1/boxes", list, WithTags("Boxes"), WithErrors(http.StatusServiceUnavailable))
	return router
}

func TestHumaAuth(t *testing.T) {
	mgr, keys := newKeyStore(t)
	router := newBoxAPI(t, mgr)

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"health is public", "/api/v1/health", "", "", http.StatusOK},
		{"healthz is public", "/healthz", "", "", http.StatusOK},
		{"boxes without key", "/api/v1/boxes", "", "", http.StatusUnauthorized},
		{"boxes with bearer", "/api/v1/boxes", "Authorization", "Bearer " + keys["bench-operator"], http.StatusOK},
		{"boxes with x-api-key", "/api/v1/boxes", "X-API-Key", keys["bench-operator"], http.StatusOK},
		{"boxes with disabled key", "/api/v1/boxes", "X-API-Key", keys["retired"], http.StatusUnauthorized},
		{"boxes with expired key", "/api/v1/boxes", "X-API-Key", keys["intern"], http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRateLimitByIP(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	limited := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(ok)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/boxes", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	unlimited := RateLimitByIP(RateLimitConfig{})(ok)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/boxes", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
