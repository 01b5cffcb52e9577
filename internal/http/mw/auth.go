package mw

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/skyrad/internal/apikey"
)

// requestKey extracts the API key from Authorization: Bearer, falling back
// to the X-API-Key header.
func requestKey(header func(string) string) string {
	const bearerPrefix = "Bearer "
	if auth := header("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return auth[len(bearerPrefix):]
	}
	return header("X-API-Key")
}

// RawAPIKeyAuth returns a Chi middleware for routes Huma does not manage,
// such as the WebSocket endpoint.
func RawAPIKeyAuth(logger *slog.Logger, apikeyManager *apikey.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r.Header.Get)
			if key == "" {
				logger.Warn("http: API key missing", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: API key required", http.StatusUnauthorized)
				return
			}
			validKey, err := apikeyManager.ValidateAPIKey(key)
			if err != nil {
				logger.Warn("http: invalid API key used",
					"key_prefix", keyPrefix(key), "error", err,
					"method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, fmt.Sprintf("Unauthorized: %s", err.Error()), http.StatusUnauthorized)
				return
			}
			logger.Debug("http: authenticated API key", "name", validKey.Name, "key_prefix", keyPrefix(validKey.Key))
			next.ServeHTTP(w, r)
		})
	}
}

// HumaAuth returns a Huma middleware that enforces API key auth on operations
// declaring SecurityScheme. Operations without it, such as health and the
// OpenAPI document, pass through.
func HumaAuth(api huma.API, logger *slog.Logger, apikeyManager *apikey.Manager) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !operationRequiresAuth(ctx.Operation()) {
			next(ctx)
			return
		}
		key := requestKey(ctx.Header)
		if key == "" {
			logger.Warn("http: API key missing", "method", ctx.Method(), "path", ctx.URL().Path)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: API key required")
			return
		}
		validKey, err := apikeyManager.ValidateAPIKey(key)
		if err != nil {
			logger.Warn("http: invalid API key used", "key_prefix", keyPrefix(key), "error", err,
				"method", ctx.Method(), "path", ctx.URL().Path)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, fmt.Sprintf("Unauthorized: %s", err))
			return
		}
		logger.Debug("http: authenticated API key", "name", validKey.Name, "key_prefix", keyPrefix(validKey.Key))
		next(ctx)
	}
}

func operationRequiresAuth(op *huma.Operation) bool {
	if op == nil {
		return false
	}
	for _, req := range op.Security {
		if _, ok := req[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

func keyPrefix(key string) string {
	return apikey.Prefix(key)
}
