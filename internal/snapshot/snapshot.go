// Package snapshot exports a dashboard to the versioned JSON document and
// imports such a document back with replace-all semantics.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Version is the only snapshot format version accepted on import.
const Version = "1.0"

var (
	// ErrMalformed is returned when the document does not have the
	// snapshot shape.
	ErrMalformed = errors.New("malformed snapshot")

	// ErrVersionMismatch is returned when version is anything but Version.
	ErrVersionMismatch = errors.New("unsupported snapshot version")
)

// Snapshot is the export/import document.
type Snapshot struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	User       *User     `json:"user,omitempty"`
	Dashboard  Dashboard `json:"dashboard"`
	Widgets    []Widget  `json:"widgets"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Dashboard is the subset of dashboard fields carried by a snapshot.
type Dashboard struct {
	ID              string                `json:"id,omitempty"`
	Name            string                `json:"name"`
	BackgroundType  widget.BackgroundType `json:"background_type"`
	BackgroundValue string                `json:"background_value"`
	LayoutSettings  widget.LayoutSettings `json:"layout_settings"`
}

// Widget is a widget without its dashboard reference or timestamps.
type Widget struct {
	ID        string          `json:"id,omitempty"`
	Type      widget.Type     `json:"type"`
	PositionX int             `json:"position_x"`
	PositionY int             `json:"position_y"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Settings  widget.Settings `json:"settings"`
}

// New builds a snapshot of d and widgets taken at now.
func New(d widget.Dashboard, widgets []widget.Widget, user *User, now time.Time) *Snapshot {
	snap := &Snapshot{
		Version:    Version,
		ExportDate: now.UTC(),
		User:       user,
		Dashboard: Dashboard{
			ID:              d.ID,
			Name:            d.Name,
			BackgroundType:  d.BackgroundType,
			BackgroundValue: d.BackgroundValue,
			LayoutSettings:  d.LayoutSettings,
		},
		Widgets: make([]Widget, 0, len(widgets)),
	}
	for _, w := range widgets {
		w = w.Clone()
		snap.Widgets = append(snap.Widgets, Widget{
			ID:        w.ID,
			Type:      w.Type,
			PositionX: w.PositionX,
			PositionY: w.PositionY,
			Width:     w.Width,
			Height:    w.Height,
			Settings:  w.Settings,
		})
	}
	return snap
}

// Export reads the owner's dashboard through store. The dashboard is
// created on read if absent, so export of a fresh owner yields the defaults.
func Export(ctx context.Context, store storage.Store, owner string, user *User, now time.Time) (*Snapshot, error) {
	d, widgets, err := store.LoadDashboardWithWidgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return New(*d, widgets, user, now), nil
}

// Encode renders snap as indented JSON.
func Encode(snap *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Filename is the attachment name for an export taken at now.
func Filename(now time.Time) string {
	return "dashboard-export-" + now.UTC().Format("2006-01-02") + ".json"
}

// Decode parses and validates a snapshot document. The version is checked
// before anything else, so a document of another version is reported as a
// version mismatch even when its shape differs. Dashboard fields missing
// from the document take the create-on-read defaults.
func Decode(raw []byte) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrMalformed)
	}

	var version string
	if v, ok := top["version"]; !ok || json.Unmarshal(v, &version) != nil {
		return nil, fmt.Errorf("%w: missing or non-string version", ErrVersionMismatch)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %q", ErrVersionMismatch, version)
	}

	snap := &Snapshot{Version: version}

	if v, ok := top["exportDate"]; ok {
		// exportDate is informational only.
		_ = json.Unmarshal(v, &snap.ExportDate)
	}
	if v, ok := top["user"]; ok && isKind(v, '{') {
		var u User
		if err := json.Unmarshal(v, &u); err == nil {
			snap.User = &u
		}
	}

	rawDash, ok := top["dashboard"]
	if !ok || !isKind(rawDash, '{') {
		return nil, fmt.Errorf("%w: dashboard must be an object", ErrMalformed)
	}
	d, err := decodeDashboard(rawDash)
	if err != nil {
		return nil, fmt.Errorf("%w: dashboard: %w", ErrMalformed, err)
	}
	snap.Dashboard = d

	rawWidgets, ok := top["widgets"]
	if !ok || !isKind(rawWidgets, '[') {
		return nil, fmt.Errorf("%w: widgets must be an array", ErrMalformed)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawWidgets, &elems); err != nil {
		return nil, fmt.Errorf("%w: widgets: %w", ErrMalformed, err)
	}
	snap.Widgets = make([]Widget, 0, len(elems))
	for i, elem := range elems {
		w, err := decodeWidget(elem)
		if err != nil {
			return nil, fmt.Errorf("%w: widgets[%d]: %w", ErrMalformed, i, err)
		}
		snap.Widgets = append(snap.Widgets, w)
	}
	return snap, nil
}

func decodeDashboard(raw json.RawMessage) (Dashboard, error) {
	def := widget.DefaultDashboard("")
	d := Dashboard{
		Name:            def.Name,
		BackgroundType:  def.BackgroundType,
		BackgroundValue: def.BackgroundValue,
		LayoutSettings:  def.LayoutSettings,
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dashboard{}, err
	}
	if !d.BackgroundType.Valid() {
		return Dashboard{}, &widget.ValidationError{Field: "background_type", Reason: fmt.Sprintf("unknown background type %q", d.BackgroundType)}
	}
	if err := d.LayoutSettings.Validate(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

type widgetJSON struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	PositionX int             `json:"position_x"`
	PositionY int             `json:"position_y"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Settings  json.RawMessage `json:"settings"`
}

func decodeWidget(raw json.RawMessage) (Widget, error) {
	if !isKind(raw, '{') {
		return Widget{}, errors.New("must be an object")
	}
	var in widgetJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return Widget{}, err
	}
	t, err := widget.ParseType(in.Type)
	if err != nil {
		return Widget{}, err
	}
	s, err := widget.ParseSettings(t, in.Settings)
	if err != nil {
		return Widget{}, err
	}
	w := Widget{
		ID:        in.ID,
		Type:      t,
		PositionX: in.PositionX,
		PositionY: in.PositionY,
		Width:     in.Width,
		Height:    in.Height,
		Settings:  s,
	}
	if w.PositionX < 0 || w.PositionY < 0 {
		return Widget{}, &widget.ValidationError{Field: "position", Reason: "must be non-negative"}
	}
	return w, nil
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}
