package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
)

// StoreChecker is the part of the database the readiness check needs
type StoreChecker interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler handles liveness, readiness and system info
type SystemHandler struct {
	BaseHandler
	name         string
	version      string
	db           StoreChecker
	readyTimeout time.Duration
	startTime    time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil, in which case
// readiness only reports the process as up.
func NewSystemHandler(name, version string, db StoreChecker) *SystemHandler {
	return &SystemHandler{
		name:         name,
		version:      version,
		db:           db,
		readyTimeout: 2 * time.Second,
		startTime:    time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns name, version and uptime
// GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping answers pong
// GET /api/v1/system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// HealthResponse is the body of /health and /ready
type HealthResponse struct {
	Status   string                       `json:"status"`
	Database string                       `json:"database,omitempty"`
	Pool     *persistence.ConnectionStats `json:"pool,omitempty"`
}

// Health reports that the process is serving
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready reports whether the inventory store is reachable
// GET /ready
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readyTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.Error(c, dto.ErrCodeStoreUnavailable, "Inventory store is not reachable")
		return
	}

	resp := HealthResponse{Status: "ready", Database: "connected"}
	if stats, err := h.db.Stats(); err == nil {
		resp.Pool = &stats
	}
	c.JSON(http.StatusOK, resp)
}
