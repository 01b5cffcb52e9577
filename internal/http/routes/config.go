// Package routes declares the skyrad HTTP API once, for both the daemon and
// skyra-openapi, so the published document always matches what is served.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/skyrad/internal/http/mw"
)

var tags = []*huma.Tag{
	{Name: "Boxes", Description: "Connecting to laser boxes and reading their state"},
	{Name: "Channels", Description: "Power, on and active control of individual lasers"},
	{Name: "API Keys", Description: "Keys accepted by the protected endpoints"},
	{Name: "Logging", Description: "Daemon log level"},
}

// NewHumaConfig returns the huma configuration for the skyrad API. baseURL,
// when set, is published as the only server.
func NewHumaConfig(version, baseURL string) huma.Config {
	cfg := huma.DefaultConfig("skyrad API", version)
	cfg.Info.Description = "Control Cobalt Skyra laser boxes attached to a skyrad host. " +
		"Every value written to a box is read back before the request succeeds."
	cfg.CreateHooks = nil // no $schema links in responses
	cfg.Tags = tags

	if baseURL != "" {
		cfg.Servers = []*huma.Server{{URL: baseURL, Description: "skyrad"}}
	}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:   "http",
			Scheme: "bearer",
			Description: "Send the key as `Authorization: Bearer <key>`. " +
				"`X-API-Key: <key>` is accepted too. Create keys with `skyractl api-key add`.",
		},
	}
	return cfg
}
