// Package favicon derives icon URLs for link widgets.
package favicon

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// DefaultService is the favicon lookup service. %s receives the host.
const DefaultService = "https://www.google.com/s2/favicons?domain=%s&sz=64"

// Resolver maps a page URL to an icon URL through a lookup service.
type Resolver struct {
	service string
}

// NewResolver creates a Resolver for service, a format string with one %s
// for the host. An empty service uses DefaultService.
func NewResolver(service string) *Resolver {
	if service == "" {
		service = DefaultService
	}
	return &Resolver{service: service}
}

// Resolve returns the icon URL for rawURL. A URL without a scheme is
// treated as https.
func (r *Resolver) Resolve(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &widget.ValidationError{Field: "url", Reason: "required"}
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", &widget.ValidationError{Field: "url", Reason: fmt.Sprintf("not a valid URL: %q", rawURL)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &widget.ValidationError{Field: "url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	return fmt.Sprintf(r.service, url.QueryEscape(u.Hostname())), nil
}
