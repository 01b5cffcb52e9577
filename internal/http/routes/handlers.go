package routes

import (
	"context"

	"github.com/jmylchreest/skyrad/internal/http/handlers"
)

// Handlers aggregates all handler implementations for route registration.
// The daemon passes real implementations; the OpenAPI generator passes stubs.
type Handlers struct {
	HealthCheck  func(context.Context, *handlers.HealthInput) (*handlers.HealthOutput, error)
	VersionCheck func(context.Context, *handlers.VersionInput) (*handlers.VersionOutput, error)
	Box          handlers.BoxHandlers
	Channel      handlers.ChannelHandlers
	APIKey       handlers.APIKeyHandlers
	Logging      handlers.LoggingHandlers
}
