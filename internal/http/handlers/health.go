package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	ping         PingFunc
	shuttingDown func() bool
	log          *slog.Logger
}

// create a new instance of the health handler; a nil ping means always ready
func NewHealthHandler(ping PingFunc, shuttingDown func() bool, log *slog.Logger) *HealthHandler {
	if log == nil {
		log = slog.Default()
	}
	if shuttingDown == nil {
		shuttingDown = func() bool { return false }
	}
	return &HealthHandler{ping: ping, shuttingDown: shuttingDown, log: log}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	// drain: stop receiving new traffic while in-flight requests finish
	if h.shuttingDown() {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}

	if h.ping == nil {
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(cctx); err != nil {
		h.log.WarnContext(ctx.Request.Context(), "readiness_check_failed", "err", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
