package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/guest"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// stepStore hides ReplaceAll so Import takes the step-by-step path.
type stepStore struct {
	storage.Store
}

// failingStore fails CreateWidget after okCreates successful calls.
type failingStore struct {
	storage.Store
	okCreates int
}

func (f *failingStore) CreateWidget(ctx context.Context, owner string, w widget.Widget) (*widget.Widget, error) {
	if f.okCreates == 0 {
		return nil, errors.New("connection reset")
	}
	f.okCreates--
	return f.Store.CreateWidget(ctx, owner, w)
}

var exportTime = time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC)

func guestStore(t *testing.T) *guest.Store {
	t.Helper()
	s := guest.NewStore(guest.NewMemoryStorage())
	if _, _, err := s.LoadDashboardWithWidgets(context.Background(), widget.GuestOwner); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

// widgetView strips identity and timestamps from a widget set.
func widgetView(t *testing.T, widgets []widget.Widget) string {
	t.Helper()
	type view struct {
		Type     widget.Type
		X, Y     int
		W, H     int
		Settings widget.Settings
	}
	vs := make([]view, len(widgets))
	for i, w := range widgets {
		vs[i] = view{w.Type, w.PositionX, w.PositionY, w.Width, w.Height, w.Settings}
	}
	data, err := json.Marshal(vs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestFilename(t *testing.T) {
	if got := Filename(exportTime); got != "dashboard-export-2026-05-17.json" {
		t.Errorf("Filename = %q", got)
	}
}

func TestExport_Shape(t *testing.T) {
	s := guestStore(t)
	snap, err := Export(context.Background(), s, widget.GuestOwner, &User{ID: "guest", Email: ""}, exportTime)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["version"] != "1.0" {
		t.Errorf("version = %v", doc["version"])
	}
	if doc["exportDate"] != "2026-05-17T09:30:00Z" {
		t.Errorf("exportDate = %v", doc["exportDate"])
	}
	dash := doc["dashboard"].(map[string]any)
	ls := dash["layout_settings"].(map[string]any)
	if ls["gridRows"] != "auto" || ls["gridCols"] != float64(4) || ls["gap"] != float64(16) {
		t.Errorf("layout_settings = %v", ls)
	}
	widgets := doc["widgets"].([]any)
	if len(widgets) != 3 {
		t.Fatalf("widgets = %d, want 3", len(widgets))
	}
	first := widgets[0].(map[string]any)
	if _, ok := first["dashboard_id"]; ok {
		t.Error("widget carries dashboard_id")
	}
	if first["type"] != "clock" {
		t.Errorf("first widget type = %v", first["type"])
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		store func(*guest.Store) storage.Store
	}{
		{"replacer", func(s *guest.Store) storage.Store { return s }},
		{"steps", func(s *guest.Store) storage.Store { return stepStore{s} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			g := guestStore(t)
			store := tc.store(g)

			color := widget.BackgroundColor
			val := "#101010"
			if _, err := g.PatchDashboard(ctx, widget.GuestOwner, widget.DashboardPatch{BackgroundType: &color, BackgroundValue: &val}); err != nil {
				t.Fatalf("patch: %v", err)
			}
			if _, err := g.CreateWidget(ctx, widget.GuestOwner, widget.Widget{
				DashboardID: widget.GuestDashboardID,
				Type:        widget.TypeChecklist,
				PositionX:   1,
				PositionY:   4,
				Width:       3,
				Height:      2,
				Settings: widget.ChecklistSettings{Title: "Chores", Items: []widget.ChecklistItem{
					{ID: "1", Text: "dishes"}, {ID: "2", Text: "laundry", Completed: true},
				}},
			}); err != nil {
				t.Fatalf("create: %v", err)
			}

			beforeDash, beforeWidgets, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

			snap, err := Export(ctx, store, widget.GuestOwner, nil, exportTime)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			data, _ := Encode(snap)
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			res, err := Import(ctx, store, widget.GuestOwner, decoded)
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if res.ImportedWidgets != len(beforeWidgets) {
				t.Errorf("ImportedWidgets = %d, want %d", res.ImportedWidgets, len(beforeWidgets))
			}

			afterDash, afterWidgets, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
			if afterDash.Name != beforeDash.Name || afterDash.BackgroundType != beforeDash.BackgroundType ||
				afterDash.BackgroundValue != beforeDash.BackgroundValue || afterDash.LayoutSettings != beforeDash.LayoutSettings {
				t.Errorf("dashboard changed:\nbefore %+v\nafter  %+v", beforeDash, afterDash)
			}
			if got, want := widgetView(t, afterWidgets), widgetView(t, beforeWidgets); got != want {
				t.Errorf("widgets changed:\nbefore %s\nafter  %s", want, got)
			}
			for i := range afterWidgets {
				if afterWidgets[i].ID == beforeWidgets[i].ID {
					t.Errorf("widget %d id was not regenerated", i)
				}
			}
		})
	}
}

func TestDecode_VersionGate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"other version", `{"version":"2.0","dashboard":{},"widgets":[]}`},
		{"version before shape", `{"version":"2.0","widgets":"nope"}`},
		{"missing version", `{"dashboard":{},"widgets":[]}`},
		{"numeric version", `{"version":1.0,"dashboard":{},"widgets":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if !errors.Is(err, ErrVersionMismatch) {
				t.Fatalf("expected ErrVersionMismatch, got %v", err)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{`},
		{"array document", `[]`},
		{"missing dashboard", `{"version":"1.0","widgets":[]}`},
		{"dashboard not object", `{"version":"1.0","dashboard":"x","widgets":[]}`},
		{"missing widgets", `{"version":"1.0","dashboard":{}}`},
		{"widgets not array", `{"version":"1.0","dashboard":{},"widgets":{}}`},
		{"unknown widget type", `{"version":"1.0","dashboard":{},"widgets":[{"type":"rss"}]}`},
		{"checklist items not list", `{"version":"1.0","dashboard":{},"widgets":[{"type":"checklist","settings":{"items":"x"}}]}`},
		{"bad background", `{"version":"1.0","dashboard":{"background_type":"video"},"widgets":[]}`},
		{"negative position", `{"version":"1.0","dashboard":{},"widgets":[{"type":"memo","position_x":-1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDecode_DefaultsMissingDashboardFields(t *testing.T) {
	snap, err := Decode([]byte(`{"version":"1.0","dashboard":{"name":"Work"},"widgets":[{"type":"weather","width":2,"height":1}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d := snap.Dashboard
	if d.Name != "Work" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.BackgroundType != widget.BackgroundGradient || d.BackgroundValue != widget.DefaultBackground {
		t.Errorf("background not defaulted: %+v", d)
	}
	if d.LayoutSettings != widget.DefaultLayoutSettings() {
		t.Errorf("layout not defaulted: %+v", d.LayoutSettings)
	}
	ws := snap.Widgets[0].Settings.(widget.WeatherSettings)
	if ws.City != "Seoul" || ws.Unit != widget.UnitMetric {
		t.Errorf("weather settings not defaulted: %+v", ws)
	}
}

func TestImport_VersionMismatchLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	g := guestStore(t)
	_, before, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

	if _, err := Decode([]byte(`{"version":"2.0","dashboard":{},"widgets":[]}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	_, after, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if widgetView(t, before) != widgetView(t, after) || before[0].ID != after[0].ID {
		t.Error("state changed after rejected import")
	}
}

func TestImport_EmptyWidgets(t *testing.T) {
	ctx := context.Background()
	g := guestStore(t)
	snap, _ := Decode([]byte(`{"version":"1.0","dashboard":{},"widgets":[]}`))

	res, err := Import(ctx, g, widget.GuestOwner, snap)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.ImportedWidgets != 0 {
		t.Errorf("ImportedWidgets = %d", res.ImportedWidgets)
	}
	_, widgets, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if len(widgets) != 0 {
		t.Errorf("widgets = %d after empty import", len(widgets))
	}
}

func TestImport_PartialFailure(t *testing.T) {
	ctx := context.Background()
	g := guestStore(t)
	snap, err := Decode([]byte(`{"version":"1.0","dashboard":{},"widgets":[
		{"type":"memo","width":1,"height":1},
		{"type":"memo","width":1,"height":1},
		{"type":"memo","width":1,"height":1}
	]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	_, err = Import(ctx, &failingStore{Store: g, okCreates: 1}, widget.GuestOwner, snap)
	var partial *PartialImportError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialImportError, got %v", err)
	}
	if partial.Deleted != 3 || partial.Inserted != 1 {
		t.Errorf("partial = %+v", partial)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error does not carry cause: %v", err)
	}

	_, widgets, _ := g.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if len(widgets) != 1 {
		t.Errorf("widgets after partial import = %d, want 1", len(widgets))
	}
}
