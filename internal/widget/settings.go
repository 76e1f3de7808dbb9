package widget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Settings is the type-specific configuration of a widget. The concrete
// value is always one of the *Settings structs declared in this file.
type Settings interface {
	WidgetType() Type
	sealed()
}

// ChecklistItem is a single entry of a checklist widget.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// SearchEngine is a selectable target of the search widget. URL is the
// query prefix the search term is appended to.
type SearchEngine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon,omitempty"`
}

type LinkSettings struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}

type ChecklistSettings struct {
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

type ClockSettings struct {
	Timezone    string `json:"timezone,omitempty"`
	Format      string `json:"format"`
	ShowDate    bool   `json:"showDate"`
	ShowSeconds bool   `json:"showSeconds"`
}

type WeatherSettings struct {
	City         string `json:"city"`
	Country      string `json:"country,omitempty"`
	Unit         string `json:"unit"`
	ShowForecast bool   `json:"showForecast"`
}

type MemoSettings struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Color   string `json:"color,omitempty"`
}

type SearchSettings struct {
	Engines       []SearchEngine `json:"engines"`
	DefaultEngine string         `json:"defaultEngine"`
	Placeholder   string         `json:"placeholder,omitempty"`
}

type CalendarSettings struct {
	View            string `json:"view,omitempty"`
	StartDayOfWeek  int    `json:"startDayOfWeek"`
	ShowWeekNumbers bool   `json:"showWeekNumbers"`
	ShowTodayButton bool   `json:"showTodayButton"`
}

func (LinkSettings) WidgetType() Type      { return TypeLink }
func (ChecklistSettings) WidgetType() Type { return TypeChecklist }
func (ClockSettings) WidgetType() Type     { return TypeClock }
func (WeatherSettings) WidgetType() Type   { return TypeWeather }
func (MemoSettings) WidgetType() Type      { return TypeMemo }
func (SearchSettings) WidgetType() Type    { return TypeSearch }
func (CalendarSettings) WidgetType() Type  { return TypeCalendar }

func (LinkSettings) sealed()      {}
func (ChecklistSettings) sealed() {}
func (ClockSettings) sealed()     {}
func (WeatherSettings) sealed()   {}
func (MemoSettings) sealed()      {}
func (SearchSettings) sealed()    {}
func (CalendarSettings) sealed()  {}

// Clock formats.
const (
	Format12h = "12h"
	Format24h = "24h"
)

// Weather units.
const (
	UnitMetric   = "metric"
	UnitImperial = "imperial"
	UnitKelvin   = "kelvin"
)

// Calendar views.
const (
	ViewMonth = "month"
	ViewWeek  = "week"
)

// DefaultSearchEngines is the engine list used whenever a search widget is
// configured without engines.
func DefaultSearchEngines() []SearchEngine {
	return []SearchEngine{
		{ID: "google", Name: "Google", URL: "https://www.google.com/search?q="},
		{ID: "naver", Name: "Naver", URL: "https://search.naver.com/search.naver?query="},
		{ID: "youtube", Name: "YouTube", URL: "https://www.youtube.com/results?search_query="},
		{ID: "github", Name: "GitHub", URL: "https://github.com/search?q="},
	}
}

// DefaultSettingsFor returns a fully populated settings value for t. It
// returns nil only for an unknown type.
func DefaultSettingsFor(t Type) Settings {
	switch t {
	case TypeLink:
		return LinkSettings{URL: "https://www.google.com", Title: "Google"}
	case TypeChecklist:
		return ChecklistSettings{Title: "To do", Items: []ChecklistItem{}}
	case TypeClock:
		return ClockSettings{Format: Format24h, ShowDate: true, ShowSeconds: false}
	case TypeWeather:
		return WeatherSettings{City: "Seoul", Country: "KR", Unit: UnitMetric, ShowForecast: false}
	case TypeMemo:
		return MemoSettings{Title: "Memo", Content: "", Color: "#fef3c7"}
	case TypeSearch:
		return SearchSettings{Engines: DefaultSearchEngines(), DefaultEngine: "google", Placeholder: "Search..."}
	case TypeCalendar:
		return CalendarSettings{View: ViewMonth, StartDayOfWeek: 0, ShowWeekNumbers: false, ShowTodayButton: true}
	}
	return nil
}

// Normalize fills the soft defaults that are applied instead of failing
// validation: an empty engine list becomes the built-in list, and a default
// engine that is not configured falls back to the first one.
func Normalize(s Settings) Settings {
	switch v := s.(type) {
	case SearchSettings:
		if len(v.Engines) == 0 {
			v.Engines = DefaultSearchEngines()
		}
		if !slices.ContainsFunc(v.Engines, func(e SearchEngine) bool { return e.ID == v.DefaultEngine }) {
			v.DefaultEngine = v.Engines[0].ID
		}
		return v
	case ChecklistSettings:
		if v.Items == nil {
			v.Items = []ChecklistItem{}
		}
		return v
	}
	return s
}

// Validate checks that s is the variant required by t and that its
// structural fields hold.
func Validate(t Type, s Settings) error {
	if !t.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", t)}
	}
	if s == nil {
		return &ValidationError{Field: "settings", Reason: "required"}
	}
	if s.WidgetType() != t {
		return &ValidationError{Field: "settings", Reason: fmt.Sprintf("%s settings given for %s widget", s.WidgetType(), t)}
	}

	switch v := s.(type) {
	case LinkSettings:
		if v.URL == "" {
			return &ValidationError{Field: "settings.url", Reason: "required"}
		}
	case ChecklistSettings:
		if v.Items == nil {
			return &ValidationError{Field: "settings.items", Reason: "must be a list"}
		}
		seen := make(map[string]bool, len(v.Items))
		for i, item := range v.Items {
			if item.ID == "" {
				return &ValidationError{Field: fmt.Sprintf("settings.items[%d].id", i), Reason: "required"}
			}
			if seen[item.ID] {
				return &ValidationError{Field: fmt.Sprintf("settings.items[%d].id", i), Reason: fmt.Sprintf("duplicate id %q", item.ID)}
			}
			seen[item.ID] = true
		}
	case ClockSettings:
		if v.Format != Format12h && v.Format != Format24h {
			return &ValidationError{Field: "settings.format", Reason: fmt.Sprintf("must be %q or %q", Format12h, Format24h)}
		}
	case WeatherSettings:
		if v.City == "" {
			return &ValidationError{Field: "settings.city", Reason: "required"}
		}
		switch v.Unit {
		case UnitMetric, UnitImperial, UnitKelvin:
		default:
			return &ValidationError{Field: "settings.unit", Reason: fmt.Sprintf("unknown unit %q", v.Unit)}
		}
	case MemoSettings:
	case SearchSettings:
		// An empty list is valid: Normalize substitutes the built-in engines.
		if len(v.Engines) == 0 {
			return nil
		}
		for i, e := range v.Engines {
			if e.ID == "" || e.URL == "" {
				return &ValidationError{Field: fmt.Sprintf("settings.engines[%d]", i), Reason: "id and url are required"}
			}
		}
		if !slices.ContainsFunc(v.Engines, func(e SearchEngine) bool { return e.ID == v.DefaultEngine }) {
			return &ValidationError{Field: "settings.defaultEngine", Reason: fmt.Sprintf("engine %q is not configured", v.DefaultEngine)}
		}
	case CalendarSettings:
		if v.View != "" && v.View != ViewMonth && v.View != ViewWeek {
			return &ValidationError{Field: "settings.view", Reason: fmt.Sprintf("unknown view %q", v.View)}
		}
		if v.StartDayOfWeek < 0 || v.StartDayOfWeek > 6 {
			return &ValidationError{Field: "settings.startDayOfWeek", Reason: "must be between 0 and 6"}
		}
	default:
		return &ValidationError{Field: "settings", Reason: fmt.Sprintf("unsupported settings type %T", s)}
	}
	return nil
}

// DecodeSettings decodes raw over the defaults for t, so fields absent
// from raw keep their default value. Empty or null raw yields the defaults,
// which for a link widget is the Google shortcut. A link object is decoded
// over an empty value instead, so its url must come from raw.
//
// A list present in raw replaces the default list whole.
func DecodeSettings(t Type, raw json.RawMessage) (Settings, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if s := DefaultSettingsFor(t); s != nil {
			return s, nil
		}
	}
	if len(raw) > 0 && raw[0] != '{' {
		return nil, &ValidationError{Field: "settings", Reason: "must be an object"}
	}

	var (
		s   Settings
		err error
	)
	switch t {
	case TypeLink:
		s, err = decodeOver(raw, LinkSettings{})
	case TypeChecklist:
		v := DefaultSettingsFor(TypeChecklist).(ChecklistSettings)
		if hasKey(raw, "items") {
			v.Items = nil
		}
		s, err = decodeOver(raw, v)
	case TypeClock:
		s, err = decodeOver(raw, DefaultSettingsFor(TypeClock).(ClockSettings))
	case TypeWeather:
		s, err = decodeOver(raw, DefaultSettingsFor(TypeWeather).(WeatherSettings))
	case TypeMemo:
		s, err = decodeOver(raw, DefaultSettingsFor(TypeMemo).(MemoSettings))
	case TypeSearch:
		v := DefaultSettingsFor(TypeSearch).(SearchSettings)
		if hasKey(raw, "engines") {
			v.Engines = nil
		}
		s, err = decodeOver(raw, v)
	case TypeCalendar:
		s, err = decodeOver(raw, DefaultSettingsFor(TypeCalendar).(CalendarSettings))
	default:
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown widget type %q", t)}
	}
	if err != nil {
		return nil, err
	}
	return Normalize(s), nil
}

// hasKey reports whether the object raw has key, matched the way
// encoding/json matches struct fields.
func hasKey(raw json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return false
	}
	for k := range fields {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// ParseSettings is the write-path decoder: it tolerates missing optional
// fields but rejects structurally malformed ones, then validates.
func ParseSettings(t Type, raw json.RawMessage) (Settings, error) {
	if err := checkStructure(t, raw); err != nil {
		return nil, err
	}
	s, err := DecodeSettings(t, raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(t, s); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalSettings encodes s for use in a WidgetPatch.
func MarshalSettings(s Settings) (json.RawMessage, error) {
	if s == nil {
		return nil, &ValidationError{Field: "settings", Reason: "required"}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

func decodeOver[T Settings](raw json.RawMessage, v T) (Settings, error) {
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ValidationError{Field: "settings." + typeErr.Field, Reason: fmt.Sprintf("cannot use JSON %s as %s", typeErr.Value, typeErr.Type)}
		}
		return nil, &ValidationError{Field: "settings", Reason: err.Error()}
	}
	return v, nil
}

// checkStructure enforces the sequence-typed fields that must be present as
// JSON arrays when given. A null items list on a checklist is rejected.
func checkStructure(t Type, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] != '{' {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &ValidationError{Field: "settings", Reason: err.Error()}
	}
	var listField string
	switch t {
	case TypeChecklist:
		listField = "items"
	case TypeSearch:
		listField = "engines"
	default:
		return nil
	}
	v, ok := fields[listField]
	if !ok {
		return nil
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '[' {
		if t == TypeSearch && bytes.Equal(v, []byte("null")) {
			return nil
		}
		return &ValidationError{Field: "settings." + listField, Reason: "must be a list"}
	}
	return nil
}

func cloneSettings(s Settings) Settings {
	switch v := s.(type) {
	case ChecklistSettings:
		v.Items = slices.Clone(v.Items)
		return v
	case SearchSettings:
		v.Engines = slices.Clone(v.Engines)
		return v
	}
	return s
}
