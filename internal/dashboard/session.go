// Package dashboard holds the in-memory state of one dashboard session and
// routes every mutation to the persistence adapter chosen for the session.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-dashboard/internal/layout"
	"github.com/ryanbastic/go-dashboard/internal/snapshot"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Mode is the persistence mode of a session, resolved once at start.
type Mode int

const (
	ModeUnresolved Mode = iota
	ModeRemote
	ModeGuest
)

func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeGuest:
		return "guest"
	}
	return "unresolved"
}

// ResolveMode picks remote for an authenticated caller, guest when the
// guest flag is set, and unresolved otherwise.
func ResolveMode(authenticated, guestEnabled bool) Mode {
	switch {
	case authenticated:
		return ModeRemote
	case guestEnabled:
		return ModeGuest
	}
	return ModeUnresolved
}

var (
	ErrModeUnresolved = errors.New("session mode is unresolved: sign in or enable guest mode")
	ErrNotLoaded      = errors.New("dashboard not loaded")
)

// Position is a widget's grid coordinate.
type Position struct {
	ID string
	X  int
	Y  int
}

// PositionSaveError lists the widgets whose position could not be saved.
// Positions of the other widgets were persisted.
type PositionSaveError struct {
	Failed map[string]error
}

func (e *PositionSaveError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	return fmt.Sprintf("save positions: %d widget(s) failed: %s", len(ids), strings.Join(ids, ", "))
}

func (e *PositionSaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Session is the single entry point for dashboard mutations. Each mutation
// updates the in-memory state first and then calls the store; a failed
// store call is returned but the in-memory change is kept.
type Session struct {
	mode   Mode
	owner  string
	store  storage.Store
	logger *slog.Logger

	mu        sync.Mutex
	dashboard *widget.Dashboard
	widgets   []widget.Widget
}

// NewSession binds a session to store. In guest mode the owner is always
// widget.GuestOwner.
func NewSession(mode Mode, owner string, store storage.Store, logger *slog.Logger) (*Session, error) {
	switch mode {
	case ModeRemote:
		if owner == "" {
			return nil, errors.New("remote session requires an owner")
		}
	case ModeGuest:
		owner = widget.GuestOwner
	default:
		return nil, ErrModeUnresolved
	}
	return &Session{mode: mode, owner: owner, store: store, logger: logger}, nil
}

func (s *Session) Mode() Mode           { return s.mode }
func (s *Session) Owner() string        { return s.owner }
func (s *Session) Store() storage.Store { return s.store }

// Load fetches the dashboard, creating it on first access.
func (s *Session) Load(ctx context.Context) error {
	d, widgets, err := s.store.LoadDashboardWithWidgets(ctx, s.owner)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	s.Replace(*d, widgets)
	return nil
}

// Replace overwrites the in-memory state, e.g. after an import.
func (s *Session) Replace(d widget.Dashboard, widgets []widget.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = &d
	s.widgets = cloneWidgets(widgets)
}

// Dashboard returns a copy of the in-memory dashboard.
func (s *Session) Dashboard() (widget.Dashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dashboard == nil {
		return widget.Dashboard{}, false
	}
	return *s.dashboard, true
}

// Widgets returns a deep copy of the in-memory widgets in display order.
func (s *Session) Widgets() []widget.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWidgets(s.widgets)
}

// Widget returns a copy of the widget with the given id.
func (s *Session) Widget(id string) (widget.Widget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.widgets[i].Clone(), true
	}
	return widget.Widget{}, false
}

// AddWidget appends a widget of type t. Nil settings take the defaults of
// t. The widget is shown under a provisional id until the store assigns
// the real one.
func (s *Session) AddWidget(ctx context.Context, t widget.Type, x, y, width, height int, settings widget.Settings) (*widget.Widget, error) {
	if settings == nil {
		settings = widget.DefaultSettingsFor(t)
	}
	w := widget.Widget{
		Type:      t,
		PositionX: x,
		PositionY: y,
		Width:     width,
		Height:    height,
		Settings:  widget.Normalize(settings),
	}
	layout.Normalize(&w)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.dashboard == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	w.DashboardID = s.dashboard.ID
	w.ID = "pending-" + uuid.NewString()
	s.widgets = append(s.widgets, w.Clone())
	s.mu.Unlock()

	created, err := s.store.CreateWidget(ctx, s.owner, w)
	if err != nil {
		s.logFailure("add widget", w.ID, err)
		return nil, fmt.Errorf("add widget: %w", err)
	}

	s.mu.Lock()
	if i := s.index(w.ID); i >= 0 {
		s.widgets[i] = created.Clone()
	}
	s.mu.Unlock()
	return created, nil
}

// RemoveWidget deletes a widget.
func (s *Session) RemoveWidget(ctx context.Context, id string) error {
	s.mu.Lock()
	if i := s.index(id); i >= 0 {
		s.widgets = append(s.widgets[:i], s.widgets[i+1:]...)
	}
	s.mu.Unlock()

	if err := s.store.DeleteWidget(ctx, s.owner, id); err != nil {
		s.logFailure("remove widget", id, err)
		return fmt.Errorf("remove widget: %w", err)
	}
	return nil
}

// PreviewResize returns the size a resize gesture would commit, without
// changing anything. It agrees with ResizeWidget for the same arguments.
func (s *Session) PreviewResize(id string, dir layout.Direction, deltaX, deltaY, gridSize, sensitivity float64) (int, int, error) {
	w, ok := s.Widget(id)
	if !ok {
		return 0, 0, fmt.Errorf("widget %s: %w", id, storage.ErrNotFound)
	}
	width, height := layout.ApplyDirectionalResize(dir, deltaX, deltaY, w.Width, w.Height, gridSize, sensitivity)
	return width, height, nil
}

// ResizeWidget applies a resize gesture that started at the widget's
// current size and persists the result.
func (s *Session) ResizeWidget(ctx context.Context, id string, dir layout.Direction, deltaX, deltaY, gridSize, sensitivity float64) (*widget.Widget, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", id, storage.ErrNotFound)
	}
	cur := &s.widgets[i]
	cur.Width, cur.Height = layout.ApplyDirectionalResize(dir, deltaX, deltaY, cur.Width, cur.Height, gridSize, sensitivity)
	width, height := cur.Width, cur.Height
	s.mu.Unlock()

	return s.persistWidget(ctx, "resize widget", id, widget.WidgetPatch{Width: &width, Height: &height})
}

// SetWidgetSize sets an explicit size, clamped to the grid bounds.
func (s *Session) SetWidgetSize(ctx context.Context, id string, width, height int) (*widget.Widget, error) {
	width, height = layout.ClampSize(width, height)
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", id, storage.ErrNotFound)
	}
	s.widgets[i].Width, s.widgets[i].Height = width, height
	s.mu.Unlock()

	return s.persistWidget(ctx, "resize widget", id, widget.WidgetPatch{Width: &width, Height: &height})
}

// MoveWidget places a widget at (x, y).
func (s *Session) MoveWidget(ctx context.Context, id string, x, y int) (*widget.Widget, error) {
	if x < 0 || y < 0 {
		return nil, &widget.ValidationError{Field: "position", Reason: "must be non-negative"}
	}
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", id, storage.ErrNotFound)
	}
	s.widgets[i].PositionX, s.widgets[i].PositionY = x, y
	s.mu.Unlock()

	return s.persistWidget(ctx, "move widget", id, widget.WidgetPatch{PositionX: &x, PositionY: &y})
}

// PatchWidgetSettings replaces a widget's settings. The settings are
// validated against the widget's type before anything changes.
func (s *Session) PatchWidgetSettings(ctx context.Context, id string, settings widget.Settings) (*widget.Widget, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", id, storage.ErrNotFound)
	}
	settings = widget.Normalize(settings)
	if err := widget.Validate(s.widgets[i].Type, settings); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.widgets[i].Settings = settings
	s.mu.Unlock()

	return s.saveSettings(ctx, id, settings)
}

// PatchBackground changes the dashboard background.
func (s *Session) PatchBackground(ctx context.Context, bgType widget.BackgroundType, value string) (*widget.Dashboard, error) {
	return s.PatchDashboard(ctx, widget.DashboardPatch{BackgroundType: &bgType, BackgroundValue: &value})
}

// PatchDashboard applies an allow-listed patch to the dashboard.
func (s *Session) PatchDashboard(ctx context.Context, patch widget.DashboardPatch) (*widget.Dashboard, error) {
	if patch.IsEmpty() {
		return nil, storage.ErrEmptyUpdate
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.dashboard == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	patch.Apply(s.dashboard)
	s.mu.Unlock()

	d, err := s.store.PatchDashboard(ctx, s.owner, patch)
	if err != nil {
		s.logFailure("patch dashboard", "", err)
		return nil, fmt.Errorf("patch dashboard: %w", err)
	}

	s.mu.Lock()
	s.dashboard = d
	s.mu.Unlock()
	out := *d
	return &out, nil
}

// SaveWidgetPositions persists the given positions with one patch per
// widget. The patches are independent: on failure some positions may be
// saved while others are not, and *PositionSaveError names the latter.
func (s *Session) SaveWidgetPositions(ctx context.Context, positions []Position) error {
	s.mu.Lock()
	for _, p := range positions {
		if i := s.index(p.ID); i >= 0 {
			s.widgets[i].PositionX, s.widgets[i].PositionY = p.X, p.Y
		}
	}
	s.mu.Unlock()

	failed := make(map[string]error)
	for _, p := range positions {
		x, y := p.X, p.Y
		if _, err := s.persistWidget(ctx, "save position", p.ID, widget.WidgetPatch{PositionX: &x, PositionY: &y}); err != nil {
			failed[p.ID] = err
		}
	}
	if len(failed) > 0 {
		return &PositionSaveError{Failed: failed}
	}
	return nil
}

// ResetLayout reflows every widget row by row over columns and saves the
// new positions. columns <= 0 uses the dashboard's grid column count.
func (s *Session) ResetLayout(ctx context.Context, columns int) error {
	s.mu.Lock()
	if s.dashboard == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	if columns <= 0 {
		columns = s.dashboard.LayoutSettings.GridCols
	}
	reflowed := layout.ResetLayout(s.widgets, columns)
	s.mu.Unlock()

	positions := make([]Position, len(reflowed))
	for i, w := range reflowed {
		positions[i] = Position{ID: w.ID, X: w.PositionX, Y: w.PositionY}
	}
	return s.SaveWidgetPositions(ctx, positions)
}

// UpdateChecklistItem sets the completed flag of the first item with
// itemID. An unknown itemID leaves the items unchanged; the settings are
// persisted either way.
func (s *Session) UpdateChecklistItem(ctx context.Context, widgetID, itemID string, completed bool) (*widget.Widget, error) {
	return s.editChecklist(ctx, widgetID, func(cl *widget.ChecklistSettings) {
		for i := range cl.Items {
			if cl.Items[i].ID == itemID {
				cl.Items[i].Completed = completed
				return
			}
		}
	})
}

// AddChecklistItem appends an unchecked item with a generated id.
func (s *Session) AddChecklistItem(ctx context.Context, widgetID, text string) (widget.ChecklistItem, error) {
	item := widget.ChecklistItem{ID: uuid.NewString(), Text: text}
	_, err := s.editChecklist(ctx, widgetID, func(cl *widget.ChecklistSettings) {
		cl.Items = append(cl.Items, item)
	})
	return item, err
}

// RemoveChecklistItem drops every item with itemID.
func (s *Session) RemoveChecklistItem(ctx context.Context, widgetID, itemID string) (*widget.Widget, error) {
	return s.editChecklist(ctx, widgetID, func(cl *widget.ChecklistSettings) {
		kept := cl.Items[:0]
		for _, item := range cl.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		cl.Items = kept
	})
}

// Export builds a snapshot from the session's store.
func (s *Session) Export(ctx context.Context, user *snapshot.User, now time.Time) (*snapshot.Snapshot, error) {
	return snapshot.Export(ctx, s.store, s.owner, user, now)
}

// Import replaces the dashboard with snap and refreshes the in-memory
// state. After a partial failure the state is reloaded from the store.
func (s *Session) Import(ctx context.Context, snap *snapshot.Snapshot) (*snapshot.Result, error) {
	res, err := snapshot.Import(ctx, s.store, s.owner, snap)
	if err != nil {
		s.logFailure("import", "", err)
		if loadErr := s.Load(ctx); loadErr != nil {
			s.logger.Warn("reload after failed import", "error", loadErr)
		}
		return nil, err
	}
	s.Replace(*res.Dashboard, res.Widgets)
	return res, nil
}

func (s *Session) editChecklist(ctx context.Context, widgetID string, edit func(*widget.ChecklistSettings)) (*widget.Widget, error) {
	s.mu.Lock()
	i := s.index(widgetID)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("widget %s: %w", widgetID, storage.ErrNotFound)
	}
	cl, ok := s.widgets[i].Clone().Settings.(widget.ChecklistSettings)
	if !ok {
		s.mu.Unlock()
		return nil, &widget.ValidationError{Field: "type", Reason: fmt.Sprintf("widget %s is a %s widget, not a checklist", widgetID, s.widgets[i].Type)}
	}
	edit(&cl)
	s.widgets[i].Settings = cl
	s.mu.Unlock()

	return s.saveSettings(ctx, widgetID, cl)
}

func (s *Session) saveSettings(ctx context.Context, id string, settings widget.Settings) (*widget.Widget, error) {
	raw, err := widget.MarshalSettings(settings)
	if err != nil {
		return nil, err
	}
	return s.persistWidget(ctx, "patch settings", id, widget.WidgetPatch{Settings: raw})
}

// persistWidget sends patch to the store and, on success, replaces the
// in-memory widget with the stored one.
func (s *Session) persistWidget(ctx context.Context, op, id string, patch widget.WidgetPatch) (*widget.Widget, error) {
	stored, err := s.store.PatchWidget(ctx, s.owner, id, patch)
	if err != nil {
		s.logFailure(op, id, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if i := s.index(id); i >= 0 {
		s.widgets[i] = stored.Clone()
	}
	s.mu.Unlock()
	return stored, nil
}

func (s *Session) logFailure(op, id string, err error) {
	s.logger.Warn("persist failed, keeping local state", "op", op, "mode", s.mode.String(), "widget_id", id, "error", err)
}

// index must be called with s.mu held.
func (s *Session) index(id string) int {
	for i := range s.widgets {
		if s.widgets[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneWidgets(in []widget.Widget) []widget.Widget {
	out := make([]widget.Widget, len(in))
	for i, w := range in {
		out[i] = w.Clone()
	}
	return out
}
