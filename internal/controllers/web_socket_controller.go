package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tallyboard/internal/livefeed"
)

const wsWriteTimeout = 10 * time.Second

// newUpgrader allows the configured origins, or any origin when none are set.
func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed[origin]
		},
	}
}

// wsSink writes feed messages as JSON text frames.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(_ context.Context, msg livefeed.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

type WebSocketController struct {
	dashboard *DashboardController
	upgrader  websocket.Upgrader
}

func NewWebSocketController(dashboard *DashboardController, origins []string) *WebSocketController {
	return &WebSocketController{dashboard: dashboard, upgrader: newUpgrader(origins)}
}

// HandleTallyWebSocket handles GET /ws/tally?level=, pushing the same
// messages as the SSE stream over a WebSocket.
func (wc *WebSocketController) HandleTallyWebSocket(c *gin.Context) {
	opts, ok := wc.dashboard.snapshotOptions(c)
	if !ok {
		return
	}

	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The dashboard never sends; reading only detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.WithField("remote", conn.RemoteAddr().String()).Info("Tally WebSocket closed by client.")
				} else {
					logrus.WithError(err).Debug("Tally WebSocket read ended.")
				}
				return
			}
		}
	}()

	sink := &wsSink{conn: conn}
	if err := wc.dashboard.feed.Serve(ctx, "ws", sink, opts); err != nil {
		logrus.WithError(err).Debug("Tally WebSocket feed ended.")
	}

	sink.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	sink.mu.Unlock()
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("Tally WebSocket connection closed.")
}
