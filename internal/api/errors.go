package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-dashboard/internal/snapshot"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Error codes carried in the "code" member of problem responses. Clients
// branch on these instead of the human-readable detail.
const (
	CodeValidation        = "validation"
	CodeEmptyUpdate       = "empty_update"
	CodeNotFound          = "not_found"
	CodeCityNotFound      = "city_not_found"
	CodeWeatherDown       = "weather_unavailable"
	CodeSnapshotVersion   = "snapshot_version"
	CodeSnapshotMalformed = "snapshot_malformed"
	CodePartialImport     = "partial_import"
	CodeInternal          = "internal"
)

// problem is huma's RFC 9457 error model plus a stable code.
type problem struct {
	huma.ErrorModel
	Code string `json:"code,omitempty" doc:"Stable machine-readable error code"`
}

func newProblem(status int, code, detail string, details ...*huma.ErrorDetail) *problem {
	return &problem{
		ErrorModel: huma.ErrorModel{
			Status: status,
			Title:  http.StatusText(status),
			Detail: detail,
			Errors: details,
		},
		Code: code,
	}
}

// toHumaError maps a domain error onto a client-facing status. Anything
// unrecognised is logged and reported as a 500 with msg as the detail.
func toHumaError(logger *slog.Logger, msg string, err error, attrs ...any) error {
	var (
		ve      *widget.ValidationError
		partial *snapshot.PartialImportError
	)
	switch {
	case errors.Is(err, snapshot.ErrVersionMismatch):
		return newProblem(http.StatusUnprocessableEntity, CodeSnapshotVersion, err.Error())
	case errors.Is(err, snapshot.ErrMalformed):
		return newProblem(http.StatusUnprocessableEntity, CodeSnapshotMalformed, err.Error())
	case errors.As(err, &partial):
		logger.Error(msg, append(attrs, "deleted", partial.Deleted, "inserted", partial.Inserted, "error", err)...)
		return newProblem(http.StatusInternalServerError, CodePartialImport, partial.Error())
	case errors.As(err, &ve):
		return newProblem(http.StatusBadRequest, CodeValidation, "validation failed", &huma.ErrorDetail{
			Message:  ve.Reason,
			Location: ve.Field,
		})
	case errors.Is(err, storage.ErrEmptyUpdate):
		return newProblem(http.StatusBadRequest, CodeEmptyUpdate, storage.ErrEmptyUpdate.Error())
	case errors.Is(err, storage.ErrNotFound):
		return newProblem(http.StatusNotFound, CodeNotFound, "dashboard or widget not found")
	case errors.Is(err, weather.ErrCityNotFound):
		return newProblem(http.StatusNotFound, CodeCityNotFound, err.Error())
	case errors.Is(err, weather.ErrUnavailable):
		return newProblem(http.StatusServiceUnavailable, CodeWeatherDown, weather.ErrUnavailable.Error())
	}
	logger.Error(msg, append(attrs, "error", err)...)
	return newProblem(http.StatusInternalServerError, CodeInternal, msg)
}
