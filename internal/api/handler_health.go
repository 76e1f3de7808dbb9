package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
)

// Pinger is satisfied by *pgxpool.Pool and *guest.SQLiteStorage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes. Backends gate
// readiness; breakers only report, since the dashboard keeps working
// without the weather provider.
type HealthHandler struct {
	backends map[string]Pinger
	breakers map[string]*circuitbreaker.Breaker
	logger   *slog.Logger
}

func NewHealthHandler(backends map[string]Pinger, breakers map[string]*circuitbreaker.Breaker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, breakers: breakers, logger: logger}
}

type backendStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

type readyzResponse struct {
	Status       string                   `json:"status"`
	Backends     map[string]backendStatus `json:"backends,omitempty"`
	Dependencies map[string]string        `json:"dependencies,omitempty"`
}

func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every backend concurrently. Any failed ping makes the
// response 503; an open breaker turns the status to "degraded" only.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := readyzResponse{Status: "ok"}

	if len(h.backends) > 0 {
		resp.Backends = h.ping(r.Context())
	}
	for name, st := range resp.Backends {
		if st.Status != "ok" {
			resp.Status = "unavailable"
			h.logger.Warn("readiness check failed", "backend", name, "error", st.Error)
		}
	}

	if len(h.breakers) > 0 {
		resp.Dependencies = make(map[string]string, len(h.breakers))
		for name, b := range h.breakers {
			state := b.GetState()
			resp.Dependencies[name] = state.String()
			if state != circuitbreaker.Closed && resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *HealthHandler) ping(ctx context.Context) map[string]backendStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]backendStatus, len(h.backends))
	)
	for name, p := range h.backends {
		wg.Go(func() {
			start := time.Now()
			err := p.Ping(ctx)
			st := backendStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status, st.Error = "error", err.Error()
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
		})
	}
	wg.Wait()
	return out
}
