package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/skyrad/internal/apikey"
	"github.com/jmylchreest/skyrad/internal/config"
	ierrors "github.com/jmylchreest/skyrad/internal/errors"
	"github.com/jmylchreest/skyrad/internal/events"
	"github.com/jmylchreest/skyrad/internal/http/handlers"
	"github.com/jmylchreest/skyrad/internal/http/mw"
	"github.com/jmylchreest/skyrad/internal/http/routes"
	"github.com/jmylchreest/skyrad/internal/mdns"
	"github.com/jmylchreest/skyrad/internal/utils"
	"github.com/jmylchreest/skyrad/internal/ws"
	"github.com/jmylchreest/skyrad/pkg/skyra"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Server runs the skyrad unix socket and HTTP API in front of a BoxManager.
type Server struct {
	logger        *slog.Logger
	cfg           *config.Config
	boxes         skyra.BoxManager
	build         BuildInfo
	socketPath    string
	listener      net.Listener
	shutdown      chan struct{}
	wg            sync.WaitGroup
	apikeyManager *apikey.Manager
	rootCtx       context.Context
	rootCancel    context.CancelFunc
	httpServer    *http.Server
	httpAddr      net.Addr
	advertiser    *mdns.Advertiser
	hub           *ws.Hub
	eventBus      *events.Bus
}

// New creates a server. When boxes is a *skyra.Manager it is wired to the
// server's event bus.
func New(logger *slog.Logger, cfg *config.Config, boxes skyra.BoxManager, build BuildInfo) *Server {
	eventBus := events.NewBus()
	if m, ok := boxes.(*skyra.Manager); ok {
		m.SetEventBus(eventBus)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())

	return &Server{
		logger:        logger,
		cfg:           cfg,
		boxes:         boxes,
		build:         build,
		socketPath:    cfg.Config.Server.UnixSocket,
		shutdown:      make(chan struct{}),
		apikeyManager: apikey.NewManager(cfg, logger),
		rootCtx:       rootCtx,
		rootCancel:    rootCancel,
		eventBus:      eventBus,
	}
}

// EventBus returns the bus box and channel events are published on.
func (s *Server) EventBus() *events.Bus {
	return s.eventBus
}

// HTTPAddr returns the bound HTTP address, or nil when the API is disabled.
func (s *Server) HTTPAddr() net.Addr {
	return s.httpAddr
}

// Start listens on the unix socket, starts the monitor and, when configured,
// the HTTP API and its mDNS advertisement.
func (s *Server) Start() error {
	s.logger.Info("server: starting", "version", s.build.Version)

	if interval := config.ValidateMonitorInterval(s.cfg.Config.Monitor.Interval); interval > 0 {
		s.boxes.StartMonitor(s.rootCtx, interval)
	} else {
		s.logger.Info("server: box monitor disabled")
	}

	sockDir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(sockDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory %s: %w", sockDir, err)
	}
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove existing socket file %s: %w", s.socketPath, err)
		}
	}

	var err error
	s.listener, err = net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", s.socketPath, err)
	}
	s.logger.Info("server: listening on unix socket", "path", s.socketPath)

	s.goWG(s.acceptConnections)

	if s.cfg.Config.API.ListenAddress != "" {
		if err := s.startHTTP(); err != nil {
			s.listener.Close()
			return err
		}
	}
	return nil
}

func (s *Server) startHTTP() error {
	addr := s.cfg.Config.API.ListenAddress
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.httpAddr = ln.Addr()
	s.logger.Info("server: starting HTTP API", "address", s.httpAddr.String())

	// Rate limiting sits in front of auth so key guessing is throttled too.
	router := chi.NewRouter()
	router.Use(mw.RequestLogging(s.logger))
	router.Use(mw.RateLimitByIP(mw.RateLimitConfig{RequestsPerMinute: s.cfg.Config.API.RateLimit}))

	api := humachi.New(router, routes.NewHumaConfig(s.build.Version, ""))
	api.UseMiddleware(mw.HumaAuth(api, s.logger, s.apikeyManager))

	routes.Register(api, &routes.Handlers{
		HealthCheck:  handlers.HealthCheck,
		VersionCheck: handlers.VersionCheck(s.build.Version, s.build.Commit, s.build.BuildDate),
		Box:          &handlers.BoxHandler{Boxes: s.boxes},
		Channel:      &handlers.ChannelHandler{Boxes: s.boxes},
		APIKey:       &handlers.APIKeyHandler{Manager: s.apikeyManager},
		Logging:      &handlers.LoggingHandler{Logger: s.logger},
	})

	s.hub = ws.NewHub(s.logger, s.eventBus)
	s.goWG(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("server: panic in websocket hub", "recover", r)
			}
		}()
		s.hub.Run(s.rootCtx)
	})
	router.With(mw.RawAPIKeyAuth(s.logger, s.apikeyManager)).Get(routes.WebSocketPath, ws.Handler(s.hub, s.logger))

	s.httpServer = &http.Server{
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Channel sets may wait on the per-box lock and several confirmations.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.goWG(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("server: panic in HTTP server", "recover", r)
			}
		}()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server: HTTP server failed", "error", err)
		}
		s.logger.Info("server: HTTP server stopped")
	})

	if s.cfg.Config.MDNS.Enabled {
		s.advertise()
	}
	return nil
}

func (s *Server) advertise() {
	port, err := mdns.PortFromListenAddress(s.httpAddr.String())
	if err != nil {
		s.logger.Warn("server: not advertising, bad listen address", "address", s.httpAddr, "error", err)
		return
	}
	txt := []string{
		"version=" + s.build.Version,
		"boxes=" + strconv.Itoa(len(s.boxes.GetBoxes())),
		"path=/api/v1",
	}
	adv, err := mdns.Advertise(s.logger, s.cfg.Config.MDNS.Instance, port, txt)
	if err != nil {
		s.logger.Warn("server: mDNS advertisement failed", "error", err)
		return
	}
	s.advertiser = adv
}

// Stop shuts the listeners down, waits for in-flight work and closes every box.
func (s *Server) Stop() {
	s.logger.Info("server: shutting down")
	s.rootCancel()
	close(s.shutdown)

	s.advertiser.Shutdown()

	if s.listener != nil {
		s.listener.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("server: HTTP shutdown failed", "error", err)
		}
	}

	s.wg.Wait()
	s.boxes.CloseAll()
	s.logger.Info("server: shut down")
}

func (s *Server) acceptConnections() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("server: panic in accept loop", "recover", r)
		}
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.logger.Debug("server: socket listener closed")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("server: accept failed", "error", err)
			continue
		}
		s.goWG(func() { s.handleConnection(conn) })
	}
}

// request is one line of the socket protocol.
type request struct {
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("server: panic in connection handler", "recover", r)
		}
	}()

	ctx, cancel := context.WithCancel(s.rootCtx)
	defer cancel()

	go func() {
		select {
		case <-s.shutdown:
			if uc, ok := conn.(*net.UnixConn); ok {
				uc.CloseRead()
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		if ctx.Err() != nil {
			return
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Debug("server: socket client disconnected")
			} else {
				s.logger.Error("server: socket read failed", "error", err)
			}
			return
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(conn, "", ierrors.InvalidInputf("invalid JSON request: %s", err))
			continue
		}
		if req.Data == nil {
			req.Data = map[string]any{}
		}

		s.logger.Debug("server: socket request", "action", req.Action, "id", req.ID)
		result, err := s.dispatch(ctx, req.Action, req.Data)
		if err != nil {
			s.sendError(conn, req.ID, err)
			continue
		}
		s.sendResponse(conn, req.ID, result)
	}
}

func (s *Server) dispatch(ctx context.Context, action string, data map[string]any) (map[string]any, error) {
	switch action {
	case "ping":
		return map[string]any{"message": "pong"}, nil

	case "health":
		return map[string]any{"health": "ok"}, nil

	case "version":
		return map[string]any{
			"version":    s.build.Version,
			"commit":     s.build.Commit,
			"build_date": s.build.BuildDate,
		}, nil

	case "list_boxes":
		boxes, err := toMap(handlers.BoxesMapFromSkyra(s.boxes.GetBoxes()))
		if err != nil {
			return nil, err
		}
		return map[string]any{"boxes": boxes}, nil

	case "get_box", "refresh_box":
		boxID, err := requireString(data, "id", action)
		if err != nil {
			return nil, err
		}
		refresh := action == "refresh_box" || boolFromMap(data, "refresh")
		box, err := s.boxes.GetBox(ctx, boxID, refresh)
		if err != nil {
			return nil, err
		}
		return boxResult(box)

	case "connect_box":
		boxID, err := requireString(data, "id", action)
		if err != nil {
			return nil, err
		}
		box, err := s.boxes.Connect(ctx, boxID)
		if err != nil {
			return nil, err
		}
		return boxResult(box)

	case "disconnect_box":
		boxID, err := requireString(data, "id", action)
		if err != nil {
			return nil, err
		}
		if err := s.boxes.Disconnect(ctx, boxID); err != nil {
			return nil, err
		}
		return map[string]any{}, nil

	case "get_channel":
		boxID, channel, err := channelTarget(data, action)
		if err != nil {
			return nil, err
		}
		ch, err := s.boxes.GetChannel(ctx, boxID, channel, boolFromMap(data, "refresh"))
		if err != nil {
			return nil, err
		}
		return channelResult(ch)

	case "set_channel_state":
		boxID, channel, err := channelTarget(data, action)
		if err != nil {
			return nil, err
		}
		values, err := channelValues(data)
		if err != nil {
			return nil, err
		}
		ch, err := s.boxes.SetChannelState(ctx, boxID, channel, values...)
		if err != nil {
			return nil, err
		}
		return channelResult(ch)

	case "apikey_add":
		name, err := requireString(data, "name", action)
		if err != nil {
			return nil, err
		}
		expiresIn, err := apikey.ParseExpiry(stringFromMap(data, "expires_in"))
		if err != nil {
			return nil, err
		}
		key, err := s.apikeyManager.CreateAPIKey(name, expiresIn)
		if err != nil {
			return nil, err
		}
		resp, err := toMap(handlers.APIKeyFromConfig(key, true))
		if err != nil {
			return nil, err
		}
		return map[string]any{"key": resp}, nil

	case "apikey_list":
		// The socket is local to the host; clients decide how much of the key to show.
		keys := s.apikeyManager.ListAPIKeys()
		list := make([]any, 0, len(keys))
		for i := range keys {
			m, err := toMap(handlers.APIKeyFromConfig(&keys[i], true))
			if err != nil {
				return nil, err
			}
			list = append(list, m)
		}
		return map[string]any{"keys": list}, nil

	case "apikey_delete":
		key, err := requireString(data, "key", action)
		if err != nil {
			return nil, err
		}
		if err := s.apikeyManager.DeleteAPIKey(key); err != nil {
			return nil, err
		}
		return map[string]any{}, nil

	case "apikey_set_disabled_status":
		keyOrName, err := requireString(data, "key_or_name", action)
		if err != nil {
			return nil, err
		}
		var disabled bool
		switch v := data["disabled"].(type) {
		case bool:
			disabled = v
		case string:
			disabled, err = strconv.ParseBool(v)
			if err != nil {
				return nil, ierrors.InvalidInputf("invalid boolean value for disabled: %q", v)
			}
		default:
			return nil, ierrors.InvalidInputf("missing or invalid disabled for %s", action)
		}
		updated, err := s.apikeyManager.SetAPIKeyDisabledStatus(keyOrName, disabled)
		if err != nil {
			return nil, err
		}
		resp, err := toMap(handlers.APIKeyFromConfig(updated, false))
		if err != nil {
			return nil, err
		}
		return map[string]any{"key": resp}, nil

	case "get_level":
		return map[string]any{"level": utils.GetLevel()}, nil

	case "set_level":
		level, err := requireString(data, "level", action)
		if err != nil {
			return nil, err
		}
		if err := utils.SetLevel(level); err != nil {
			return nil, ierrors.WithKind(ierrors.ErrInvalidInput, err)
		}
		s.logger.Info("server: log level changed via socket", "level", utils.GetLevel())
		return map[string]any{"level": utils.GetLevel()}, nil

	default:
		s.logger.Warn("server: unknown socket action", "action", action)
		return nil, ierrors.InvalidInputf("unknown action: %s", action)
	}
}

func (s *Server) sendResponse(conn net.Conn, id string, data map[string]any) {
	response := map[string]any{"status": "ok"}
	if id != "" {
		response["id"] = id
	}
	maps.Copy(response, data)
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("server: failed to send response", "error", err)
	}
}

// sendError replies with the error message and its kind so clients can
// rebuild the error with ierrors.FromKind.
func (s *Server) sendError(conn net.Conn, id string, err error) {
	kind := ierrors.Kind(err)
	if kind == ierrors.KindInternal {
		s.logger.Error("server: socket request failed", "id", id, "error", err)
	} else {
		s.logger.Debug("server: socket request rejected", "id", id, "kind", kind, "error", err)
	}
	response := map[string]any{"error": err.Error(), "kind": kind}
	if id != "" {
		response["id"] = id
	}
	if err := json.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Error("server: failed to send error response", "error", err)
	}
}

func boxResult(box *skyra.Box) (map[string]any, error) {
	m, err := toMap(handlers.BoxFromSkyra(box))
	if err != nil {
		return nil, err
	}
	return map[string]any{"box": m}, nil
}

func channelResult(ch skyra.ChannelState) (map[string]any, error) {
	m, err := toMap(handlers.ChannelFromSkyra(ch))
	if err != nil {
		return nil, err
	}
	return map[string]any{"channel": m}, nil
}

// channelValues collects power_mw, on and active from data. At least one is required.
func channelValues(data map[string]any) ([]skyra.ChannelPropertyValue, error) {
	var values []skyra.ChannelPropertyValue
	for _, prop := range []skyra.PropertyName{skyra.PropertyPower, skyra.PropertyOn, skyra.PropertyActive} {
		raw, ok := data[string(prop)]
		if !ok || raw == nil {
			continue
		}
		v, err := skyra.ParsePropertyValue(prop, raw)
		if err != nil {
			return nil, ierrors.WithKind(ierrors.ErrInvalidInput, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, ierrors.InvalidInputf("set_channel_state needs at least one of power_mw, on, active")
	}
	return values, nil
}

func channelTarget(data map[string]any, action string) (string, string, error) {
	boxID, err := requireString(data, "id", action)
	if err != nil {
		return "", "", err
	}
	channel, err := requireString(data, "channel", action)
	if err != nil {
		return "", "", err
	}
	return boxID, channel, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ierrors.Internalf("marshal response: %s", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, ierrors.Internalf("unmarshal response: %s", err)
	}
	return m, nil
}

func requireString(data map[string]any, key, action string) (string, error) {
	v := strings.TrimSpace(stringFromMap(data, key))
	if v == "" {
		return "", ierrors.InvalidInputf("missing %s for %s", key, action)
	}
	return v, nil
}

// stringFromMap extracts a string from a map[string]any, returning "" if missing or wrong type.
func stringFromMap(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// boolFromMap extracts a bool from a map[string]any, returning false if missing or wrong type.
func boolFromMap(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

// goWG runs f in a goroutine tracked by s.wg (sync.WaitGroup.Go needs Go 1.25).
func (s *Server) goWG(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}
