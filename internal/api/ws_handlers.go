package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/keys"
	"github.com/netrixlabs/keygate/internal/metrics"
	"github.com/netrixlabs/keygate/internal/settings"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The mini-app runs inside the Telegram webview; origin is not a
	// useful trust boundary here (see CORS middleware).
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler pushes ban and settings changes to a connected identity the
// moment they are observed. Both subscriptions are torn down when the socket
// closes, so nothing leaks across navigations.
type WSHandler struct {
	Gate     *bans.Gate
	Settings *settings.Store
	Registry *keys.Registry
	Metrics  *metrics.Collector
}

type wsFrame struct {
	Type     string             `json:"type"` // ban|settings|keys
	Ban      *bans.Flag         `json:"ban,omitempty"`
	Settings *settings.Global   `json:"settings,omitempty"`
	Keys     *keys.ChangeNotice `json:"keys,omitempty"`
}

// Stream GET /api/v1/ws?id=123
func (h *WSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already wrote the error
	}
	defer conn.Close()

	h.Metrics.WsSubscribers.Inc()
	defer h.Metrics.WsSubscribers.Dec()

	ctx := r.Context()

	banCh, cancelBans, err := h.Gate.Subscribe(ctx, id)
	if err != nil {
		log.Printf("ban subscribe failed for %d: %v", id, err)
		return
	}
	defer cancelBans()

	settingsCh, cancelSettings := h.Settings.Subscribe(ctx)
	defer cancelSettings()

	// Drain the reader so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case flag, ok := <-banCh:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, wsFrame{Type: "ban", Ban: &flag}); err != nil {
				return
			}
		case cfg, ok := <-settingsCh:
			if !ok {
				return
			}
			sanitized := cfg.Sanitized()
			if err := h.writeFrame(conn, wsFrame{Type: "settings", Settings: &sanitized}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// AdminStream GET /api/v1/admin/ws
// Pushes key-set change notices and settings updates to the operator
// dashboard, so the key list refreshes without polling. Sits behind the admin
// JWT middleware like the rest of the admin surface.
func (h *WSHandler) AdminStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already wrote the error
	}
	defer conn.Close()

	h.Metrics.WsSubscribers.Inc()
	defer h.Metrics.WsSubscribers.Dec()

	ctx := r.Context()

	keyCh, cancelKeys := h.Registry.Subscribe(ctx)
	defer cancelKeys()

	settingsCh, cancelSettings := h.Settings.Subscribe(ctx)
	defer cancelSettings()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case notice, ok := <-keyCh:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, wsFrame{Type: "keys", Keys: &notice}); err != nil {
				return
			}
		case cfg, ok := <-settingsCh:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, wsFrame{Type: "settings", Settings: &cfg}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) writeFrame(conn *websocket.Conn, frame wsFrame) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}
