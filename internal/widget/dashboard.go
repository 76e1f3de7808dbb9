package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// BackgroundType selects how BackgroundValue is interpreted.
type BackgroundType string

const (
	BackgroundColor    BackgroundType = "color"
	BackgroundGradient BackgroundType = "gradient"
	BackgroundImage    BackgroundType = "image"
)

// Valid reports whether b is a known background type.
func (b BackgroundType) Valid() bool {
	switch b {
	case BackgroundColor, BackgroundGradient, BackgroundImage:
		return true
	}
	return false
}

// Dashboard is the single per-owner container of background and layout
// configuration.
type Dashboard struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Name            string         `json:"name"`
	BackgroundType  BackgroundType `json:"background_type"`
	BackgroundValue string         `json:"background_value"`
	LayoutSettings  LayoutSettings `json:"layout_settings"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// LayoutSettings describes the grid the widgets are placed on.
type LayoutSettings struct {
	GridCols int      `json:"gridCols"`
	GridRows GridRows `json:"gridRows"`
	Gap      int      `json:"gap"`
}

// Validate checks the layout bounds.
func (l LayoutSettings) Validate() error {
	if l.GridCols < 1 {
		return &ValidationError{Field: "layout_settings.gridCols", Reason: "must be at least 1"}
	}
	if !l.GridRows.Auto && l.GridRows.N < 1 {
		return &ValidationError{Field: "layout_settings.gridRows", Reason: `must be at least 1 or "auto"`}
	}
	if l.Gap < 0 {
		return &ValidationError{Field: "layout_settings.gap", Reason: "must be non-negative"}
	}
	return nil
}

// GridRows is either a fixed row count or "auto".
type GridRows struct {
	N    int
	Auto bool
}

// AutoRows is the GridRows value that grows with the content.
var AutoRows = GridRows{Auto: true}

// Rows returns a fixed row count.
func Rows(n int) GridRows { return GridRows{N: n} }

func (g GridRows) String() string {
	if g.Auto {
		return "auto"
	}
	return strconv.Itoa(g.N)
}

func (g GridRows) MarshalJSON() ([]byte, error) {
	if g.Auto {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.Itoa(g.N)), nil
}

func (g *GridRows) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return g.parse(s)
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return &ValidationError{Field: "layout_settings.gridRows", Reason: `must be an integer or "auto"`}
	}
	*g = GridRows{N: n}
	return nil
}

// ParseGridRows accepts "auto" or a decimal row count.
func ParseGridRows(s string) (GridRows, error) {
	var g GridRows
	err := g.parse(s)
	return g, err
}

func (g *GridRows) parse(s string) error {
	if s == "auto" {
		*g = AutoRows
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return &ValidationError{Field: "layout_settings.gridRows", Reason: fmt.Sprintf(`must be an integer or "auto", got %q`, s)}
	}
	*g = GridRows{N: n}
	return nil
}

// Defaults applied to a dashboard created on first access and to any field
// an imported snapshot omits.
const (
	DefaultDashboardName = "My Dashboard"
	DefaultBackground    = "linear-gradient(135deg, #667eea 0%, #764ba2 100%)"
	DefaultGridCols      = 4
	DefaultGap           = 16
)

// DefaultLayoutSettings returns the layout of a freshly created dashboard.
func DefaultLayoutSettings() LayoutSettings {
	return LayoutSettings{GridCols: DefaultGridCols, GridRows: AutoRows, Gap: DefaultGap}
}

// DefaultDashboard returns an unsaved dashboard with the hard-coded defaults.
func DefaultDashboard(owner string) Dashboard {
	return Dashboard{
		UserID:          owner,
		Name:            DefaultDashboardName,
		BackgroundType:  BackgroundGradient,
		BackgroundValue: DefaultBackground,
		LayoutSettings:  DefaultLayoutSettings(),
	}
}

// DashboardPatch is an allow-listed partial update of a dashboard. Nil
// fields are left untouched.
type DashboardPatch struct {
	Name            *string         `json:"name,omitempty"`
	BackgroundType  *BackgroundType `json:"background_type,omitempty"`
	BackgroundValue *string         `json:"background_value,omitempty"`
	LayoutSettings  *LayoutSettings `json:"layout_settings,omitempty"`
}

// IsEmpty reports whether the patch carries no writable field.
func (p DashboardPatch) IsEmpty() bool {
	return p.Name == nil && p.BackgroundType == nil && p.BackgroundValue == nil && p.LayoutSettings == nil
}

func (p DashboardPatch) Validate() error {
	if p.BackgroundType != nil && !p.BackgroundType.Valid() {
		return &ValidationError{Field: "background_type", Reason: fmt.Sprintf("unknown background type %q", *p.BackgroundType)}
	}
	if p.LayoutSettings != nil {
		return p.LayoutSettings.Validate()
	}
	return nil
}

// Apply writes the set fields onto d.
func (p DashboardPatch) Apply(d *Dashboard) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.BackgroundType != nil {
		d.BackgroundType = *p.BackgroundType
	}
	if p.BackgroundValue != nil {
		d.BackgroundValue = *p.BackgroundValue
	}
	if p.LayoutSettings != nil {
		d.LayoutSettings = *p.LayoutSettings
	}
}

// WidgetPatch is an allow-listed partial update of a widget. Settings is
// kept raw because its schema depends on the type the widget ends up with.
type WidgetPatch struct {
	Type      *Type           `json:"type,omitempty"`
	PositionX *int            `json:"position_x,omitempty"`
	PositionY *int            `json:"position_y,omitempty"`
	Width     *int            `json:"width,omitempty"`
	Height    *int            `json:"height,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

func (p WidgetPatch) IsEmpty() bool {
	return p.Type == nil && p.PositionX == nil && p.PositionY == nil &&
		p.Width == nil && p.Height == nil && len(p.Settings) == 0
}

// Apply returns w with the patch applied. A type change without settings
// resets the settings to the defaults of the new type. Size clamping is left
// to the caller.
func (p WidgetPatch) Apply(w Widget) (Widget, error) {
	out := w.Clone()
	if p.Type != nil {
		if !p.Type.Valid() {
			return w, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", *p.Type)}
		}
		if *p.Type != out.Type && len(p.Settings) == 0 {
			out.Settings = DefaultSettingsFor(*p.Type)
		}
		out.Type = *p.Type
	}
	if p.PositionX != nil {
		if *p.PositionX < 0 {
			return w, &ValidationError{Field: "position_x", Reason: "must be non-negative"}
		}
		out.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		if *p.PositionY < 0 {
			return w, &ValidationError{Field: "position_y", Reason: "must be non-negative"}
		}
		out.PositionY = *p.PositionY
	}
	if p.Width != nil {
		out.Width = *p.Width
	}
	if p.Height != nil {
		out.Height = *p.Height
	}
	if len(p.Settings) > 0 {
		s, err := ParseSettings(out.Type, p.Settings)
		if err != nil {
			return w, err
		}
		out.Settings = s
	}
	return out, nil
}
