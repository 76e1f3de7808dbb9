package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ryanbastic/go-dashboard/internal/api"
	"github.com/ryanbastic/go-dashboard/internal/auth"
	"github.com/ryanbastic/go-dashboard/internal/snapshot"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// ErrorDetail is one entry of the server's problem document.
type ErrorDetail struct {
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// APIError is a non-2xx response. It unwraps to the domain error its code
// (or, for responses without one, its status) maps to, so callers can use errors.Is and errors.As against the
// storage, snapshot, auth and weather sentinels.
type APIError struct {
	Status int           `json:"status"`
	Title  string        `json:"title"`
	Detail string        `json:"detail"`
	Code   string        `json:"code,omitempty"`
	Errors []ErrorDetail `json:"errors,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error { return e.cause }

func decodeError(status int, body []byte) error {
	e := &APIError{}
	if err := json.Unmarshal(body, e); err != nil || e.Detail == "" && e.Title == "" {
		e.Detail = strings.TrimSpace(string(body))
	}
	e.Status = status
	e.cause = classify(e)
	return e
}

func classify(e *APIError) error {
	switch e.Code {
	case api.CodeValidation:
		return e.validation()
	case api.CodeEmptyUpdate:
		return storage.ErrEmptyUpdate
	case api.CodeNotFound:
		return storage.ErrNotFound
	case api.CodeCityNotFound:
		return weather.ErrCityNotFound
	case api.CodeWeatherDown:
		return weather.ErrUnavailable
	case api.CodeSnapshotVersion:
		return snapshot.ErrVersionMismatch
	case api.CodeSnapshotMalformed:
		return snapshot.ErrMalformed
	case api.CodePartialImport, api.CodeInternal:
		return nil
	}

	// Auth middleware and the router's schema checks answer without a code.
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return auth.ErrUnauthenticated
	case http.StatusNotFound:
		return storage.ErrNotFound
	case http.StatusServiceUnavailable:
		return weather.ErrUnavailable
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return e.validation()
	}
	return nil
}

func (e *APIError) validation() *widget.ValidationError {
	if len(e.Errors) > 0 {
		field := strings.TrimPrefix(e.Errors[0].Location, "body.")
		return &widget.ValidationError{Field: field, Reason: e.Errors[0].Message}
	}
	return &widget.ValidationError{Field: "request", Reason: e.Detail}
}
