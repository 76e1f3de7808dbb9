package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
	"github.com/ryanbastic/go-dashboard/internal/guest"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func getHealth(t *testing.T, server http.Handler, path string, wantStatus int) readyzResponse {
	t.Helper()
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code != wantStatus {
		t.Fatalf("GET %s: status %d, want %d\nbody: %s", path, w.Code, wantStatus, w.Body.String())
	}
	var resp readyzResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestLivez_ReturnsOK(t *testing.T) {
	resp := getHealth(t, NewServer(testLogger(), Deps{}), "/v1/livez", http.StatusOK)
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want ok", resp.Status)
	}
}

func TestReadyz_NoBackends_ReturnsOK(t *testing.T) {
	resp := getHealth(t, NewServer(testLogger(), Deps{}), "/v1/readyz", http.StatusOK)
	if resp.Status != "ok" || resp.Backends != nil {
		t.Errorf("got %+v", resp)
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	sqlite, err := guest.OpenSQLite(filepath.Join(t.TempDir(), "guest.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sqlite.Close()

	server := NewServer(testLogger(), Deps{Backends: map[string]Pinger{
		"postgres": &mockPinger{},
		"guest":    sqlite,
	}})

	resp := getHealth(t, server, "/v1/readyz", http.StatusOK)
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want ok", resp.Status)
	}
	if len(resp.Backends) != 2 {
		t.Fatalf("backends: got %d, want 2", len(resp.Backends))
	}
	for name, bs := range resp.Backends {
		if bs.Status != "ok" {
			t.Errorf("backend %s: got %q, want ok", name, bs.Status)
		}
	}
}

func TestReadyz_OneBackendDown(t *testing.T) {
	server := NewServer(testLogger(), Deps{Backends: map[string]Pinger{
		"postgres": &mockPinger{},
		"replica":  &mockPinger{err: errors.New("connection refused")},
	}})

	resp := getHealth(t, server, "/v1/readyz", http.StatusServiceUnavailable)
	if resp.Status != "unavailable" {
		t.Errorf("status: got %q, want unavailable", resp.Status)
	}
	if resp.Backends["postgres"].Status != "ok" {
		t.Errorf("postgres: got %q, want ok", resp.Backends["postgres"].Status)
	}
	if got := resp.Backends["replica"]; got.Status != "error" || got.Error != "connection refused" {
		t.Errorf("replica: got %+v", got)
	}
}

func TestReadyz_OpenBreakerDegrades(t *testing.T) {
	breaker := circuitbreaker.New(1, time.Hour)
	_ = breaker.Execute(func() error { return errors.New("provider down") })

	server := NewServer(testLogger(), Deps{
		Backends: map[string]Pinger{"postgres": &mockPinger{}},
		Breakers: map[string]*circuitbreaker.Breaker{"weather": breaker},
	})

	resp := getHealth(t, server, "/v1/readyz", http.StatusOK)
	if resp.Status != "degraded" {
		t.Errorf("status: got %q, want degraded", resp.Status)
	}
	if resp.Dependencies["weather"] != "open" {
		t.Errorf("weather: got %q, want open", resp.Dependencies["weather"])
	}
}

func TestReadyz_BackendDownWinsOverBreaker(t *testing.T) {
	server := NewServer(testLogger(), Deps{
		Backends: map[string]Pinger{"postgres": &mockPinger{err: errors.New("timeout")}},
		Breakers: map[string]*circuitbreaker.Breaker{"weather": circuitbreaker.New(1, time.Hour)},
	})

	resp := getHealth(t, server, "/v1/readyz", http.StatusServiceUnavailable)
	if resp.Status != "unavailable" || resp.Dependencies["weather"] != "closed" {
		t.Errorf("got %+v", resp)
	}
}

func TestHealth_BehavesAsReadyz(t *testing.T) {
	server := NewServer(testLogger(), Deps{Backends: map[string]Pinger{"postgres": &mockPinger{}}})

	resp := getHealth(t, server, "/v1/health", http.StatusOK)
	if resp.Status != "ok" || resp.Backends["postgres"].Status != "ok" {
		t.Errorf("got %+v", resp)
	}
}
