package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/segyhp/credit-engine/pkg/response"
)

// Pinger is a dependency the readiness check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

func NewHealthHandler(store, snapshots Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{
		checks:  map[string]Pinger{"database": store, "redis": snapshots},
		timeout: timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready performs readiness check including database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	var failed []string
	for name, dep := range h.checks {
		if dep == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		err := dep.Ping(ctx)
		cancel()

		if err != nil {
			status.Status = "error"
			status.Checks[name] = "failed: " + err.Error()
			failed = append(failed, name)
			continue
		}
		status.Checks[name] = "ok"
	}

	if status.Status == "error" {
		sort.Strings(failed)
		response.Error(w, http.StatusServiceUnavailable, response.ErrorBody{
			Code:    "NOT_READY",
			Message: "Service not ready: " + strings.Join(failed, ", "),
		})
		return
	}

	response.Success(w, status)
}
