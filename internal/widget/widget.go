package widget

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the settings variant carried by a widget.
type Type string

const (
	TypeClock     Type = "clock"
	TypeSearch    Type = "search"
	TypeChecklist Type = "checklist"
	TypeWeather   Type = "weather"
	TypeMemo      Type = "memo"
	TypeLink      Type = "link"
	TypeCalendar  Type = "calendar"
)

// Types returns every known widget type.
func Types() []Type {
	return []Type{TypeClock, TypeSearch, TypeChecklist, TypeWeather, TypeMemo, TypeLink, TypeCalendar}
}

// Valid reports whether t is one of the known widget types.
func (t Type) Valid() bool {
	switch t {
	case TypeClock, TypeSearch, TypeChecklist, TypeWeather, TypeMemo, TypeLink, TypeCalendar:
		return true
	}
	return false
}

// ParseType converts s into a Type, rejecting unknown names.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", s)}
	}
	return t, nil
}

// Sentinel identities used when the dashboard lives in guest storage.
const (
	GuestDashboardID = "guest-dashboard"
	GuestOwner       = "guest"
)

// Widget is a positioned, sized, typed unit of dashboard content.
type Widget struct {
	ID          string    `json:"id"`
	DashboardID string    `json:"dashboard_id"`
	Type        Type      `json:"type"`
	PositionX   int       `json:"position_x"`
	PositionY   int       `json:"position_y"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type widgetJSON struct {
	ID          string          `json:"id"`
	DashboardID string          `json:"dashboard_id"`
	Type        Type            `json:"type"`
	PositionX   int             `json:"position_x"`
	PositionY   int             `json:"position_y"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Settings    json.RawMessage `json:"settings"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnmarshalJSON decodes the settings payload according to the type tag.
// Missing settings fields take their defaults.
func (w *Widget) UnmarshalJSON(data []byte) error {
	var raw widgetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", raw.Type)}
	}
	s, err := DecodeSettings(raw.Type, raw.Settings)
	if err != nil {
		return err
	}
	*w = Widget{
		ID:          raw.ID,
		DashboardID: raw.DashboardID,
		Type:        raw.Type,
		PositionX:   raw.PositionX,
		PositionY:   raw.PositionY,
		Width:       raw.Width,
		Height:      raw.Height,
		Settings:    s,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// Clone returns a deep copy of w, including slices held by its settings.
func (w Widget) Clone() Widget {
	w.Settings = cloneSettings(w.Settings)
	return w
}

// Validate checks the structural invariants of a widget about to be written.
func (w Widget) Validate() error {
	if !w.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", w.Type)}
	}
	if w.PositionX < 0 {
		return &ValidationError{Field: "position_x", Reason: "must be non-negative"}
	}
	if w.PositionY < 0 {
		return &ValidationError{Field: "position_y", Reason: "must be non-negative"}
	}
	return Validate(w.Type, w.Settings)
}

// SeedWidgets returns the widgets provisioned with a freshly created
// dashboard. IDs and DashboardID are left for the store to assign.
func SeedWidgets() []Widget {
	return []Widget{
		{Type: TypeClock, PositionX: 0, PositionY: 0, Width: 2, Height: 1, Settings: DefaultSettingsFor(TypeClock)},
		{Type: TypeSearch, PositionX: 2, PositionY: 0, Width: 2, Height: 1, Settings: DefaultSettingsFor(TypeSearch)},
		{Type: TypeChecklist, PositionX: 0, PositionY: 1, Width: 2, Height: 2, Settings: DefaultSettingsFor(TypeChecklist)},
	}
}

// ValidationError reports malformed input naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
