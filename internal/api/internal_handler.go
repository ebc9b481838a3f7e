package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"snapfixer/internal/api/middleware"
)

// Sweeper is satisfied by *jobs.Service.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// InternalHandler serves operator endpoints behind the internal secret.
type InternalHandler struct {
	sweeper Sweeper
}

func NewInternalHandler(sweeper Sweeper) *InternalHandler {
	return &InternalHandler{sweeper: sweeper}
}

// TriggerSweep runs one retention sweep synchronously.
func (h *InternalHandler) TriggerSweep(c *gin.Context) {
	deleted, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		middleware.LoggerFromContext(c).Error("manual sweep incomplete", slog.Int("deleted", deleted), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep incomplete", "deleted": deleted})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
