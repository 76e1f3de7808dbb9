package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ryanbastic/go-dashboard/internal/favicon"
	"github.com/ryanbastic/go-dashboard/internal/weather"
)

type stubProvider struct {
	err error
}

func (p stubProvider) Current(_ context.Context, city, unit string) (*weather.Conditions, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &weather.Conditions{City: city, Unit: unit, Temperature: 21.5}, nil
}

func lookupServer(provider weather.Provider) http.Handler {
	return NewServer(testLogger(), Deps{
		Store:    newMockStore(),
		Weather:  provider,
		Favicons: favicon.NewResolver(""),
	})
}

func TestWeather(t *testing.T) {
	server := lookupServer(stubProvider{})

	w := do(t, server, http.MethodGet, "/v1/weather?city=Seoul", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d\nbody: %s", w.Code, w.Body.String())
	}
	var c weather.Conditions
	json.NewDecoder(w.Body).Decode(&c)
	if c.City != "Seoul" || c.Unit != "metric" || c.Temperature != 21.5 {
		t.Errorf("conditions: got %+v", c)
	}
}

func TestWeather_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider weather.Provider
		query    string
		want     int
	}{
		{"missing city", stubProvider{}, "", http.StatusUnprocessableEntity},
		{"bad unit", stubProvider{}, "?city=Seoul&unit=rankine", http.StatusUnprocessableEntity},
		{"unknown city", stubProvider{err: weather.ErrCityNotFound}, "?city=Atlantis", http.StatusNotFound},
		{"breaker open", stubProvider{err: weather.ErrUnavailable}, "?city=Seoul", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, lookupServer(tt.provider), http.MethodGet, "/v1/weather"+tt.query, "", nil)
			if w.Code != tt.want {
				t.Errorf("status %d, want %d\nbody: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestFavicon(t *testing.T) {
	server := lookupServer(nil)

	w := do(t, server, http.MethodGet, "/v1/favicon?url=https://go.dev/doc", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d\nbody: %s", w.Code, w.Body.String())
	}
	var resp FaviconResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Icon != "https://www.google.com/s2/favicons?domain=go.dev&sz=64" {
		t.Errorf("icon: got %q", resp.Icon)
	}

	if w := do(t, server, http.MethodGet, "/v1/favicon?url=ftp://files.example.com", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("ftp url: status %d, want 400", w.Code)
	}
}
