package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the route sits behind API key auth
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler upgrades the request and attaches it to hub. See ParseSubscription
// for the accepted query parameters; a bad filter is rejected before the
// upgrade.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := ParseSubscription(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws: upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
			return
		}

		s := hub.newSubscriber(conn, sub)
		if !hub.attach(s) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "skyrad is shutting down"))
			_ = conn.Close()
			return
		}
		go s.writeLoop()
		go s.readLoop()
	}
}
