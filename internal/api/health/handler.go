package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"deckforge/pkg/logger"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]CheckFunc
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. checks are run by the readiness
// probe; optional dependencies that are disabled should not be passed.
func New(log *logger.Logger, checks map[string]CheckFunc, serviceName, version string) *Handler {
	if checks == nil {
		checks = map[string]CheckFunc{}
	}
	return &Handler{
		log:         log,
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// ReadinessStatus is the readiness probe payload.
type ReadinessStatus struct {
	Status    string                     `json:"status"` // "ready", "unready"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Started   string                     `json:"started"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleHealth is the liveness payload. It never touches dependencies.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReadiness checks every dependency and reports 503 if any fails.
func (h *Handler) HandleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := ReadinessStatus{
		Status:    "ready",
		Service:   h.serviceName,
		Version:   h.version,
		Started:   humanize.Time(h.startTime),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentHealth, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ch := h.run(ctx, name, h.checks[name])
		status.Checks[name] = ch
		if ch.Status != "healthy" {
			status.Status = "unready"
		}
	}

	code := http.StatusOK
	if status.Status != "ready" {
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	c.JSON(code, status)
}

func (h *Handler) run(ctx context.Context, name string, check CheckFunc) ComponentHealth {
	start := time.Now()
	err := check(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Health check failed", "component", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{Status: "unhealthy", ResponseTime: elapsed.String(), Error: err.Error()}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: elapsed.String()}
}
