package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/preview"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// previewWriteWait is how long a frame write may take
	previewWriteWait = 10 * time.Second
	// previewPongWait is how long to wait for a pong
	previewPongWait = 60 * time.Second
	// previewPingPeriod must be less than previewPongWait
	previewPingPeriod = (previewPongWait * 9) / 10
	// previewMaxMessageSize bounds client messages; viewers only send control frames
	previewMaxMessageSize = 4 * 1024
)

// PreviewHandler streams live camera frames over a websocket
type PreviewHandler struct {
	BaseHandler
	hub             *preview.Hub
	defaultEndpoint string
	upgrader        websocket.Upgrader
}

// NewPreviewHandler creates a PreviewHandler. allowedOrigins empty means same-origin only;
// "*" allows every origin.
func NewPreviewHandler(hub *preview.Hub, defaultEndpoint string, allowedOrigins []string) *PreviewHandler {
	h := &PreviewHandler{
		hub:             hub,
		defaultEndpoint: defaultEndpoint,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker allows same-origin requests and the configured origins
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

// Stream upgrades to a websocket and sends each preview frame as a binary JPEG message
// GET /scanner/preview?endpoint=
func (h *PreviewHandler) Stream(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		endpoint = h.defaultEndpoint
	}

	sub, err := h.hub.Subscribe(endpoint)
	if err != nil {
		h.Error(c, dto.ErrCodePreviewUnavailable, "Preview is not available")
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		return
	}
	defer conn.Close()

	log := logger.GetGinLogger(c).With(
		zap.String("subscriber_id", sub.ID),
		zap.String("endpoint", sub.Endpoint),
	)
	log.Info("preview viewer connected")

	done := make(chan struct{})
	go h.readPump(conn, done)

	sent := h.writePump(conn, sub, done)
	log.Info("preview viewer disconnected",
		zap.Int("frames_sent", sent),
		zap.Uint64("frames_dropped", sub.Dropped()),
	)
}

// readPump consumes control frames and closes done when the viewer goes away
func (h *PreviewHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(previewMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(previewPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(previewPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn. It returns the number of frames sent.
func (h *PreviewHandler) writePump(conn *websocket.Conn, sub *preview.Subscriber, done <-chan struct{}) int {
	ticker := time.NewTicker(previewPingPeriod)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-done:
			return sent

		case img, ok := <-sub.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "preview closed"))
				return sent
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, img.JPEG); err != nil {
				return sent
			}
			sent++

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(previewWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return sent
			}
		}
	}
}

// Stats reports preview hub counters
// GET /scanner/preview/stats
func (h *PreviewHandler) Stats(c *gin.Context) {
	h.Success(c, h.hub.Stats())
}
