package guest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

func newTestStore(t *testing.T) (*Store, *MemoryStorage) {
	t.Helper()
	ls := NewMemoryStorage()
	s := NewStore(ls)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, ls
}

func TestLoad_CreatesGuestDefaults(t *testing.T) {
	s, ls := newTestStore(t)
	ctx := context.Background()

	d, widgets, err := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.ID != widget.GuestDashboardID || d.UserID != widget.GuestOwner {
		t.Errorf("unexpected identity %q/%q", d.ID, d.UserID)
	}
	if d.BackgroundType != widget.BackgroundGradient || d.LayoutSettings.GridCols != 4 || d.LayoutSettings.Gap != 16 {
		t.Errorf("unexpected defaults: %+v", d)
	}
	if len(widgets) != 3 {
		t.Fatalf("got %d seed widgets, want 3", len(widgets))
	}

	raw, ok, _ := ls.GetItem(ctx, DataKey)
	if !ok {
		t.Fatal("expected blob under data key")
	}
	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		t.Fatalf("blob is not JSON: %v", err)
	}
	for _, key := range []string{"dashboard", "widgets", "createdAt"} {
		if _, ok := blob[key]; !ok {
			t.Errorf("blob missing %q", key)
		}
	}
}

func TestLoad_IdempotentAfterFirstCall(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, w1, err := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	_, w2, err := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(w1) != len(w2) {
		t.Fatalf("widget count changed: %d -> %d", len(w1), len(w2))
	}
	for i := range w1 {
		if w1[i].ID != w2[i].ID {
			t.Errorf("widget %d id changed: %s -> %s", i, w1[i].ID, w2[i].ID)
		}
	}
}

func TestLoad_ForeignOwner(t *testing.T) {
	s, _ := newTestStore(t)
	if _, _, err := s.LoadDashboardWithWidgets(context.Background(), "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewID_Format(t *testing.T) {
	s, _ := newTestStore(t)
	re := regexp.MustCompile(`^widget-\d+-[0-9a-f]{9}$`)
	seen := map[string]bool{}
	for range 100 {
		id := s.newID("widget")
		if !re.MatchString(id) {
			t.Fatalf("id %q does not match %s", id, re)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestCreateAndPatchWidget(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if _, _, err := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner); err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := s.CreateWidget(ctx, widget.GuestOwner, widget.Widget{
		DashboardID: widget.GuestDashboardID,
		Type:        widget.TypeLink,
		Width:       1,
		Height:      1,
		Settings:    widget.LinkSettings{URL: "https://go.dev", Title: "Go"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w, h := 12, 2
	patched, err := s.PatchWidget(ctx, widget.GuestOwner, created.ID, widget.WidgetPatch{Width: &w, Height: &h})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Width != 8 || patched.Height != 2 {
		t.Errorf("size = %dx%d, want 8x2", patched.Width, patched.Height)
	}

	_, widgets, _ := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if len(widgets) != 4 {
		t.Fatalf("got %d widgets, want 4", len(widgets))
	}
	last := widgets[3]
	if last.ID != created.ID || last.Width != 8 {
		t.Errorf("persisted widget = %+v", last)
	}
	if link := last.Settings.(widget.LinkSettings); link.URL != "https://go.dev" {
		t.Errorf("settings lost: %+v", link)
	}
}

func TestCreateWidget_WrongDashboard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

	_, err := s.CreateWidget(ctx, widget.GuestOwner, widget.Widget{
		DashboardID: "someone-else",
		Type:        widget.TypeMemo,
		Width:       1,
		Height:      1,
		Settings:    widget.DefaultSettingsFor(widget.TypeMemo),
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPatchWidget_Errors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, widgets, _ := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	x := 1

	if _, err := s.PatchWidget(ctx, widget.GuestOwner, widgets[0].ID, widget.WidgetPatch{}); !errors.Is(err, storage.ErrEmptyUpdate) {
		t.Errorf("empty patch: got %v", err)
	}
	if _, err := s.PatchWidget(ctx, widget.GuestOwner, "missing", widget.WidgetPatch{PositionX: &x}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing widget: got %v", err)
	}
	if _, err := s.PatchWidget(ctx, "user-b", widgets[0].ID, widget.WidgetPatch{PositionX: &x}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("foreign owner: got %v", err)
	}
}

func TestPatchDashboard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	name := "Mine"
	if _, err := s.PatchDashboard(ctx, widget.GuestOwner, widget.DashboardPatch{Name: &name}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("patch before load: expected ErrNotFound, got %v", err)
	}

	s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	d, err := s.PatchDashboard(ctx, widget.GuestOwner, widget.DashboardPatch{Name: &name})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if d.Name != "Mine" {
		t.Errorf("Name = %q", d.Name)
	}
	if _, err := s.PatchDashboard(ctx, widget.GuestOwner, widget.DashboardPatch{}); !errors.Is(err, storage.ErrEmptyUpdate) {
		t.Errorf("empty patch: got %v", err)
	}
}

func TestDeleteWidget(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, widgets, _ := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

	if err := s.DeleteWidget(ctx, widget.GuestOwner, widgets[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteWidget(ctx, widget.GuestOwner, widgets[1].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	_, after, _ := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if len(after) != 2 || after[0].ID != widgets[0].ID || after[1].ID != widgets[2].ID {
		t.Errorf("unexpected widgets after delete: %+v", after)
	}
}

func TestReplaceAll(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	first, _, _ := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

	d := widget.DefaultDashboard("ignored")
	d.ID = "imported-id"
	d.Name = "Imported"
	out, widgets, err := s.ReplaceAll(ctx, widget.GuestOwner, d, []widget.Widget{
		{ID: "old", Type: widget.TypeMemo, Width: 2, Height: 9, Settings: widget.MemoSettings{Title: "m"}},
	})
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	d = *out
	if d.ID != widget.GuestDashboardID || d.UserID != widget.GuestOwner || d.Name != "Imported" {
		t.Errorf("unexpected dashboard %+v", d)
	}
	if !d.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt not preserved")
	}
	if len(widgets) != 1 || widgets[0].ID == "old" || widgets[0].Height != 6 {
		t.Errorf("unexpected widgets %+v", widgets)
	}
}

func TestEnableDisable(t *testing.T) {
	s, ls := newTestStore(t)
	ctx := context.Background()

	if on, _ := s.Enabled(ctx); on {
		t.Fatal("guest mode enabled by default")
	}
	if err := s.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if v, _, _ := ls.GetItem(ctx, ModeKey); v != "true" {
		t.Errorf("mode key = %q, want true", v)
	}
	s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)

	if err := s.Disable(ctx); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if on, _ := s.Enabled(ctx); on {
		t.Error("still enabled after Disable")
	}
	if _, ok, _ := ls.GetItem(ctx, DataKey); ok {
		t.Error("guest data not cleared")
	}
}

func TestSQLiteStorage_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "guest.db")
	ctx := context.Background()

	ls, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := NewStore(ls)
	_, widgets, err := s.LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := ls.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ls2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ls2.Close()

	_, again, err := NewStore(ls2).LoadDashboardWithWidgets(ctx, widget.GuestOwner)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again) != len(widgets) || again[0].ID != widgets[0].ID {
		t.Errorf("guest data not persisted across opens")
	}
}

func TestSQLiteStorage_Items(t *testing.T) {
	ls, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ls.Close()
	ctx := context.Background()

	if err := ls.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, ok, err := ls.GetItem(ctx, "k"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	ls.SetItem(ctx, "k", "v1")
	ls.SetItem(ctx, "k", "v2")
	if v, ok, _ := ls.GetItem(ctx, "k"); !ok || v != "v2" {
		t.Errorf("got %q ok=%v, want v2", v, ok)
	}
	ls.RemoveItem(ctx, "k")
	if _, ok, _ := ls.GetItem(ctx, "k"); ok {
		t.Error("key still present after RemoveItem")
	}
}
