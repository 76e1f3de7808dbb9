// Package guest persists a dashboard in a local key-value medium for
// unauthenticated sessions. It mirrors the contract of the remote store.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-dashboard/internal/layout"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Local storage keys.
const (
	DataKey = "dashboard-guest-data"
	ModeKey = "dashboard-guest-mode"
)

// data is the JSON blob stored under DataKey.
type data struct {
	Dashboard widget.Dashboard `json:"dashboard"`
	Widgets   []widget.Widget  `json:"widgets"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store implements storage.Store and storage.Replacer over a single blob.
// The only owner it recognises is widget.GuestOwner; any other owner is
// treated like a caller that owns nothing.
type Store struct {
	mu  sync.Mutex
	ls  LocalStorage
	now func() time.Time
}

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Replacer = (*Store)(nil)
)

func NewStore(ls LocalStorage) *Store {
	return &Store{ls: ls, now: time.Now}
}

// Enabled reports whether the guest-mode flag is set.
func (s *Store) Enabled(ctx context.Context) (bool, error) {
	v, ok, err := s.ls.GetItem(ctx, ModeKey)
	if err != nil {
		return false, fmt.Errorf("read guest mode: %w", err)
	}
	return ok && v == "true", nil
}

// Enable sets the guest-mode flag.
func (s *Store) Enable(ctx context.Context) error {
	if err := s.ls.SetItem(ctx, ModeKey, "true"); err != nil {
		return fmt.Errorf("enable guest mode: %w", err)
	}
	return nil
}

// Disable clears the guest-mode flag and discards the guest dashboard.
func (s *Store) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ls.RemoveItem(ctx, ModeKey); err != nil {
		return fmt.Errorf("disable guest mode: %w", err)
	}
	if err := s.ls.RemoveItem(ctx, DataKey); err != nil {
		return fmt.Errorf("clear guest data: %w", err)
	}
	return nil
}

func (s *Store) LoadDashboardWithWidgets(ctx context.Context, owner string) (*widget.Dashboard, []widget.Widget, error) {
	if owner != widget.GuestOwner {
		return nil, nil, storage.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read(ctx)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		d = s.defaults()
		if err := s.write(ctx, d); err != nil {
			return nil, nil, err
		}
	}
	dash := d.Dashboard
	return &dash, cloneWidgets(d.Widgets), nil
}

func (s *Store) PatchDashboard(ctx context.Context, owner string, patch widget.DashboardPatch) (*widget.Dashboard, error) {
	if patch.IsEmpty() {
		return nil, storage.ErrEmptyUpdate
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.owned(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("patch dashboard: %w", err)
	}
	patch.Apply(&d.Dashboard)
	d.Dashboard.UpdatedAt = s.now().UTC()
	if err := s.write(ctx, d); err != nil {
		return nil, err
	}
	dash := d.Dashboard
	return &dash, nil
}

func (s *Store) CreateWidget(ctx context.Context, owner string, w widget.Widget) (*widget.Widget, error) {
	layout.Normalize(&w)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.owned(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("create widget: %w", err)
	}
	if d.Dashboard.ID != w.DashboardID {
		return nil, fmt.Errorf("dashboard %s: %w", w.DashboardID, storage.ErrNotFound)
	}

	now := s.now().UTC()
	w = w.Clone()
	w.ID = s.newID("widget")
	w.CreatedAt, w.UpdatedAt = now, now
	d.Widgets = append(d.Widgets, w)
	if err := s.write(ctx, d); err != nil {
		return nil, err
	}
	out := w.Clone()
	return &out, nil
}

func (s *Store) PatchWidget(ctx context.Context, owner, widgetID string, patch widget.WidgetPatch) (*widget.Widget, error) {
	if patch.IsEmpty() {
		return nil, storage.ErrEmptyUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, i, err := s.find(ctx, owner, widgetID)
	if err != nil {
		return nil, err
	}
	next, err := patch.Apply(d.Widgets[i])
	if err != nil {
		return nil, err
	}
	layout.Normalize(&next)
	next.UpdatedAt = s.now().UTC()
	d.Widgets[i] = next
	if err := s.write(ctx, d); err != nil {
		return nil, err
	}
	out := next.Clone()
	return &out, nil
}

func (s *Store) DeleteWidget(ctx context.Context, owner, widgetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, i, err := s.find(ctx, owner, widgetID)
	if err != nil {
		return err
	}
	d.Widgets = append(d.Widgets[:i], d.Widgets[i+1:]...)
	return s.write(ctx, d)
}

// ReplaceAll overwrites the blob with d and widgets. The dashboard keeps
// the guest sentinel identity; widget IDs are regenerated.
func (s *Store) ReplaceAll(ctx context.Context, owner string, d widget.Dashboard, widgets []widget.Widget) (*widget.Dashboard, []widget.Widget, error) {
	if owner != widget.GuestOwner {
		return nil, nil, storage.ErrNotFound
	}
	if !d.BackgroundType.Valid() {
		return nil, nil, &widget.ValidationError{Field: "background_type", Reason: fmt.Sprintf("unknown background type %q", d.BackgroundType)}
	}
	if err := d.LayoutSettings.Validate(); err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	out := make([]widget.Widget, 0, len(widgets))
	for _, w := range widgets {
		w = w.Clone()
		layout.Normalize(&w)
		if err := w.Validate(); err != nil {
			return nil, nil, err
		}
		w.ID = s.newID("widget")
		w.DashboardID = widget.GuestDashboardID
		w.CreatedAt, w.UpdatedAt = now, now
		out = append(out, w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := now
	if cur, err := s.read(ctx); err != nil {
		return nil, nil, err
	} else if cur != nil {
		created = cur.CreatedAt
		d.CreatedAt = cur.Dashboard.CreatedAt
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.ID = widget.GuestDashboardID
	d.UserID = widget.GuestOwner
	d.UpdatedAt = now

	blob := &data{Dashboard: d, Widgets: out, CreatedAt: created}
	if err := s.write(ctx, blob); err != nil {
		return nil, nil, err
	}
	return &d, cloneWidgets(out), nil
}

// defaults builds the guest dashboard created on first access.
func (s *Store) defaults() *data {
	now := s.now().UTC()
	d := widget.DefaultDashboard(widget.GuestOwner)
	d.ID = widget.GuestDashboardID
	d.CreatedAt, d.UpdatedAt = now, now

	seeds := widget.SeedWidgets()
	for i := range seeds {
		seeds[i].ID = s.newID("widget")
		seeds[i].DashboardID = d.ID
		seeds[i].CreatedAt, seeds[i].UpdatedAt = now, now
	}
	return &data{Dashboard: d, Widgets: seeds, CreatedAt: now}
}

// owned returns the blob if owner may access it.
func (s *Store) owned(ctx context.Context, owner string) (*data, error) {
	if owner != widget.GuestOwner {
		return nil, storage.ErrNotFound
	}
	d, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) find(ctx context.Context, owner, widgetID string) (*data, int, error) {
	d, err := s.owned(ctx, owner)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, -1, err
	}
	if d != nil {
		for i := range d.Widgets {
			if d.Widgets[i].ID == widgetID {
				return d, i, nil
			}
		}
	}
	return nil, -1, fmt.Errorf("widget %s: %w", widgetID, storage.ErrNotFound)
}

// read returns nil when no blob has been stored yet.
func (s *Store) read(ctx context.Context) (*data, error) {
	raw, ok, err := s.ls.GetItem(ctx, DataKey)
	if err != nil {
		return nil, fmt.Errorf("read guest data: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var d data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode guest data: %w", err)
	}
	if d.Widgets == nil {
		d.Widgets = []widget.Widget{}
	}
	return &d, nil
}

func (s *Store) write(ctx context.Context, d *data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode guest data: %w", err)
	}
	if err := s.ls.SetItem(ctx, DataKey, string(raw)); err != nil {
		return fmt.Errorf("write guest data: %w", err)
	}
	return nil
}

// newID returns "<prefix>-<unix millis>-<random>", unique within the blob.
func (s *Store) newID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", prefix, s.now().UnixMilli(), suffix)
}

func cloneWidgets(in []widget.Widget) []widget.Widget {
	out := make([]widget.Widget, len(in))
	for i, w := range in {
		out[i] = w.Clone()
	}
	return out
}
