package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/skyrad/internal/http/mw"
)

// WebSocketPath is served by a raw Chi route; it is not a Huma operation.
const WebSocketPath = "/api/v1/ws"

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// --- Health ---
	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithDescription("Returns service health status. This endpoint does not require authentication."),
		mw.WithOperationID("healthCheck"))

	mw.HiddenGet(api, "/healthz", h.HealthCheck)

	// --- Version ---
	mw.PublicGet(api, "/api/v1/version", h.VersionCheck,
		mw.WithTags("Version"),
		mw.WithSummary("Daemon version"),
		mw.WithDescription("Returns the running daemon's version, commit, and build date. This endpoint does not require authentication."),
		mw.WithOperationID("getVersion"))

	// --- Boxes ---
	mw.ProtectedGet(api, "/api/v1/boxes", h.Box.ListBoxes,
		mw.WithTags("Boxes"),
		mw.WithSummary("List all boxes"),
		mw.WithDescription("Returns every configured box keyed by id, from the daemon's cache."),
		mw.WithOperationID("listBoxes"))

	mw.ProtectedGet(api, "/api/v1/boxes/{id}", h.Box.GetBox,
		mw.WithTags("Boxes"),
		mw.WithSummary("Get a box"),
		mw.WithOperationID("getBox"))

	mw.ProtectedPost(api, "/api/v1/boxes/{id}/refresh", h.Box.RefreshBox,
		mw.WithTags("Boxes"),
		mw.WithSummary("Refresh a box"),
		mw.WithDescription("Re-reads power, on and active state of every channel from the hardware."),
		mw.WithOperationID("refreshBox"))

	mw.ProtectedPost(api, "/api/v1/boxes/{id}/connect", h.Box.ConnectBox,
		mw.WithTags("Boxes"),
		mw.WithSummary("Connect a box"),
		mw.WithDescription("Opens the serial port and runs the identity and interlock handshake."),
		mw.WithOperationID("connectBox"),
		mw.WithErrors(http.StatusNotFound, http.StatusServiceUnavailable, http.StatusGatewayTimeout))

	mw.ProtectedPost(api, "/api/v1/boxes/{id}/disconnect", h.Box.DisconnectBox,
		mw.WithTags("Boxes"),
		mw.WithSummary("Disconnect a box"),
		mw.WithOperationID("disconnectBox"))

	// --- Channels ---
	mw.ProtectedGet(api, "/api/v1/boxes/{id}/channels/{channel}", h.Channel.GetChannel,
		mw.WithTags("Channels"),
		mw.WithSummary("Get a channel"),
		mw.WithOperationID("getChannel"))

	mw.ProtectedPost(api, "/api/v1/boxes/{id}/channels/{channel}/state", h.Channel.SetChannelState,
		mw.WithTags("Channels"),
		mw.WithSummary("Set channel state"),
		mw.WithDescription("Sets power_mw, on and active. Each value is confirmed by reading it back; a mismatch returns 409. "+
			"When any value disables output, power is applied first and on last."),
		mw.WithOperationID("setChannelState"),
		mw.WithErrors(http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable, http.StatusGatewayTimeout))

	// --- API Keys ---
	mw.ProtectedPost(api, "/api/v1/apikeys", h.APIKey.CreateAPIKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Create an API key"),
		mw.WithOperationID("createApiKey"),
		mw.WithDefaultStatus(http.StatusCreated))

	mw.ProtectedGet(api, "/api/v1/apikeys", h.APIKey.ListAPIKeys,
		mw.WithTags("API Keys"),
		mw.WithSummary("List API keys"),
		mw.WithOperationID("listApiKeys"))

	mw.ProtectedDelete(api, "/api/v1/apikeys/{key}", h.APIKey.DeleteAPIKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Delete an API key"),
		mw.WithOperationID("deleteApiKey"),
		mw.WithDefaultStatus(http.StatusNoContent))

	mw.ProtectedPut(api, "/api/v1/apikeys/{key}/disabled", h.APIKey.SetAPIKeyDisabled,
		mw.WithTags("API Keys"),
		mw.WithSummary("Enable or disable an API key"),
		mw.WithOperationID("setApiKeyDisabled"))

	// --- Logging ---
	mw.ProtectedGet(api, "/api/v1/logging/level", h.Logging.GetLevel,
		mw.WithTags("Logging"),
		mw.WithSummary("Get global log level"),
		mw.WithOperationID("getLogLevel"))

	mw.ProtectedPut(api, "/api/v1/logging/level", h.Logging.SetLevel,
		mw.WithTags("Logging"),
		mw.WithSummary("Set global log level"),
		mw.WithDescription("Changes the global log level at runtime. Valid values: debug, info, warn, error."),
		mw.WithOperationID("setLogLevel"))
}
