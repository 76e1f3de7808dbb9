package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-dashboard/internal/snapshot"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"key": "value"})

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "invalid input")

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusBadRequest || resp.Error != "invalid input" {
		t.Errorf("got %d %q", w.Code, resp.Error)
	}
}

func TestToHumaError_Status(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", &widget.ValidationError{Field: "type", Reason: "unknown"}, http.StatusBadRequest, CodeValidation},
		{"wrapped validation", fmt.Errorf("create widget: %w", &widget.ValidationError{Field: "settings"}), http.StatusBadRequest, CodeValidation},
		{"empty update", storage.ErrEmptyUpdate, http.StatusBadRequest, CodeEmptyUpdate},
		{"not found", fmt.Errorf("widget w1: %w", storage.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"version", fmt.Errorf("%w: got \"2.0\"", snapshot.ErrVersionMismatch), http.StatusUnprocessableEntity, CodeSnapshotVersion},
		{"malformed wrapping validation", fmt.Errorf("%w: widgets[0]: %w", snapshot.ErrMalformed, &widget.ValidationError{Field: "type"}), http.StatusUnprocessableEntity, CodeSnapshotMalformed},
		{"partial import", &snapshot.PartialImportError{Deleted: 3, Inserted: 1, Err: errors.New("boom")}, http.StatusInternalServerError, CodePartialImport},
		{"city", weather.ErrCityNotFound, http.StatusNotFound, CodeCityNotFound},
		{"unavailable", fmt.Errorf("%w: circuit open", weather.ErrUnavailable), http.StatusServiceUnavailable, CodeWeatherDown},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := toHumaError(testLogger(), "operation failed", tt.err)
			var se huma.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected huma.StatusError, got %T", err)
			}
			if se.GetStatus() != tt.want {
				t.Errorf("status: got %d, want %d", se.GetStatus(), tt.want)
			}
			var p *problem
			if !errors.As(err, &p) || p.Code != tt.code {
				t.Errorf("code: got %+v, want %q", p, tt.code)
			}
		})
	}
}

func TestToHumaError_ValidationDetail(t *testing.T) {
	err := toHumaError(testLogger(), "x", &widget.ValidationError{Field: "settings.items", Reason: "must be a list"})
	var p *problem
	if !errors.As(err, &p) {
		t.Fatalf("expected *problem, got %T", err)
	}
	if len(p.Errors) != 1 || p.Errors[0].Location != "settings.items" || p.Errors[0].Message != "must be a list" {
		t.Errorf("errors: got %+v", p.Errors)
	}
}

func TestProblem_WireFormat(t *testing.T) {
	server := setupTestServer(newMockStore())
	token := tokenFor(t, "user-1")

	w := do(t, server, http.MethodDelete, "/v1/widgets/missing", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404\nbody: %s", w.Code, w.Body.String())
	}
	var body struct {
		Status int    `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != http.StatusNotFound || body.Title != "Not Found" || body.Code != CodeNotFound {
		t.Errorf("problem: got %+v", body)
	}
}
