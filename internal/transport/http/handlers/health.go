package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/response"
)

const readinessTimeout = 2 * time.Second

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// PingChecker adapts a ping function, such as the redis client's, to ReadinessChecker.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string                    { return c.name }
func (c *PingChecker) Check(ctx context.Context) error { return c.ping(ctx) }

type HealthHandler struct {
	checkers []ReadinessChecker
}

func NewHealthHandler(checkers ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readiness struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// Readyz runs every checker concurrently. Any failure answers 503.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]checkResult, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = checkResult{Name: c.Name(), Status: "healthy"}
			if err := c.Check(ctx); err != nil {
				results[i].Status = "unhealthy"
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()

	out := readiness{Status: "ready", Checks: results}
	status := http.StatusOK
	for _, res := range results {
		if res.Status != "healthy" {
			out.Status = "not_ready"
			status = http.StatusServiceUnavailable
			logger.Ctx(r.Context()).Warn().Str("check", res.Name).Str("error", res.Error).Msg("readiness_check_failed")
		}
	}
	response.Data(w, status, out)
}
