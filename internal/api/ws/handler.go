package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scriptgate/scriptgate/internal/infrastructure/monitoring"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/queue"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin policy is enforced by the fronting proxy
	},
}

// Handler streams queue stats to dashboard observers. Observers are
// passive: they never send anything meaningful, and dropping one has no
// effect on admission or on other observers.
type Handler struct {
	queue   *queue.Queue
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandler creates a stats stream handler.
func NewHandler(q *queue.Queue, m *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Handler{queue: q, metrics: m, logger: logger}
}

// HandleConnection upgrades the request and forwards stats updates
// until the observer disconnects. The subscription buffer is seeded
// with the current snapshot, so a reconnecting observer resumes
// immediately without touching admission state.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.queue.Subscribe()
	defer sub.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	// Reader goroutine: we ignore inbound messages but need the read
	// loop to learn about disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case stats, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := sonic.Marshal(stats)
			if err != nil {
				h.logger.Error("failed to encode stats", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
