// Package weather fetches current conditions for weather widgets.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
	"github.com/ryanbastic/go-dashboard/internal/widget"
	"golang.org/x/time/rate"
)

// ErrCityNotFound is returned when the provider does not know the city.
var ErrCityNotFound = errors.New("city not found")

// ErrUnavailable is returned while the provider is considered down.
var ErrUnavailable = errors.New("weather provider unavailable")

// Conditions are the current weather at a city.
type Conditions struct {
	City        string    `json:"city"`
	Country     string    `json:"country,omitempty"`
	Unit        string    `json:"unit"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	ObservedAt  time.Time `json:"observedAt"`
}

// Provider returns current conditions keyed by city and unit.
type Provider interface {
	Current(ctx context.Context, city, unit string) (*Conditions, error)
}

// ValidateQuery checks the city and unit of a lookup.
func ValidateQuery(city, unit string) error {
	if strings.TrimSpace(city) == "" {
		return &widget.ValidationError{Field: "city", Reason: "required"}
	}
	switch unit {
	case widget.UnitMetric, widget.UnitImperial, widget.UnitKelvin:
		return nil
	}
	return &widget.ValidationError{Field: "unit", Reason: fmt.Sprintf("unknown unit %q", unit)}
}

// HTTPProvider queries an OpenWeather-compatible current weather API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPProvider creates a provider for baseURL. ratePerSecond caps the
// outbound request rate; zero disables limiting.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, ratePerSecond float64) *HTTPProvider {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type currentResponse struct {
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

func (p *HTTPProvider) Current(ctx context.Context, city, unit string) (*Conditions, error) {
	if err := ValidateQuery(city, unit); err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("weather rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("units", providerUnits(unit))
	if p.apiKey != "" {
		q.Set("appid", p.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var cr currentResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("unmarshal weather response: %w", err)
	}
	c := &Conditions{
		City:        cr.Name,
		Country:     cr.Sys.Country,
		Unit:        unit,
		Temperature: cr.Main.Temp,
		FeelsLike:   cr.Main.FeelsLike,
		Humidity:    cr.Main.Humidity,
		WindSpeed:   cr.Wind.Speed,
		ObservedAt:  time.Unix(cr.Dt, 0).UTC(),
	}
	if len(cr.Weather) > 0 {
		c.Description = cr.Weather[0].Description
		c.Icon = cr.Weather[0].Icon
	}
	return c, nil
}

// providerUnits maps widget units to the API's units parameter.
func providerUnits(unit string) string {
	if unit == widget.UnitKelvin {
		return "standard"
	}
	return unit
}

// StaticProvider returns deterministic made-up conditions, so dashboards
// work without a weather API key.
type StaticProvider struct {
	Now func() time.Time
}

func (p StaticProvider) Current(_ context.Context, city, unit string) (*Conditions, error) {
	if err := ValidateQuery(city, unit); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(city)))
	seed := h.Sum32()

	celsius := float64(int(seed%35)) - 5
	descriptions := []string{"clear sky", "few clouds", "scattered clouds", "light rain", "mist"}
	icons := []string{"01d", "02d", "03d", "10d", "50d"}
	i := int(seed/35) % len(descriptions)

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return &Conditions{
		City:        city,
		Unit:        unit,
		Temperature: convert(celsius, unit),
		FeelsLike:   convert(celsius-1, unit),
		Humidity:    int(40 + seed%50),
		WindSpeed:   float64(seed%10) / 2,
		Description: descriptions[i],
		Icon:        icons[i],
		ObservedAt:  now().UTC().Truncate(time.Minute),
	}, nil
}

func convert(celsius float64, unit string) float64 {
	switch unit {
	case widget.UnitImperial:
		return celsius*9/5 + 32
	case widget.UnitKelvin:
		return celsius + 273.15
	}
	return celsius
}

// Guarded wraps a provider in a circuit breaker. Unknown cities and bad
// queries do not count as provider failures.
type Guarded struct {
	provider Provider
	breaker  *circuitbreaker.Breaker
}

func NewGuarded(provider Provider, breaker *circuitbreaker.Breaker) *Guarded {
	return &Guarded{provider: provider, breaker: breaker}
}

// IsProviderFailure reports whether err should trip the breaker.
func IsProviderFailure(err error) bool {
	var ve *widget.ValidationError
	return err != nil && !errors.Is(err, ErrCityNotFound) && !errors.As(err, &ve) && !errors.Is(err, context.Canceled)
}

func (g *Guarded) Current(ctx context.Context, city, unit string) (*Conditions, error) {
	var c *Conditions
	err := g.breaker.Execute(func() error {
		var err error
		c, err = g.provider.Current(ctx, city, unit)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return c, err
}
