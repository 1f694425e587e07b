package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sheetgrader/internal/models"
	"github.com/noah-isme/sheetgrader/internal/service"
	"github.com/noah-isme/sheetgrader/pkg/response"
)

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type credentialReader interface {
	Load() (*models.Credential, error)
}

// StatusHandler serves the read-only kiosk status API used by the school's
// monitoring dashboard. It never exposes grading data, only pipeline health.
type StatusHandler struct {
	metrics     *service.MetricsService
	db          dbPinger
	credentials credentialReader
	started     time.Time
}

// NewStatusHandler constructs the handler.
func NewStatusHandler(metrics *service.MetricsService, db dbPinger, credentials credentialReader) *StatusHandler {
	return &StatusHandler{
		metrics:     metrics,
		db:          db,
		credentials: credentials,
		started:     time.Now().UTC(),
	}
}

// Health is the liveness probe.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the kiosk can reach its database.
func (h *StatusHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

type statusPayload struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Assessor      string           `json:"assessor,omitempty"`
	LoggedIn      bool             `json:"logged_in"`
	Pipeline      service.Snapshot `json:"pipeline"`
}

// Status returns the pipeline counters and login state.
func (h *StatusHandler) Status(c *gin.Context) {
	payload := statusPayload{
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Pipeline:      h.metrics.Snapshot(),
	}
	if h.credentials != nil {
		if cred, err := h.credentials.Load(); err == nil && cred != nil {
			payload.LoggedIn = true
			payload.Assessor = cred.Name
		}
	}
	response.JSON(c, http.StatusOK, payload)
}

// Prometheus serves the metrics registry.
func (h *StatusHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
