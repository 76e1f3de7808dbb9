package storage

import (
	"context"
	"errors"

	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// ErrNotFound is returned when a dashboard or widget does not exist or is
// not owned by the caller. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrEmptyUpdate is returned when a patch carries no allow-listed field.
var ErrEmptyUpdate = errors.New("no updatable fields provided")

// Store is the persistence contract shared by the remote and guest
// adapters. Every operation is scoped to owner.
type Store interface {
	// LoadDashboardWithWidgets returns the owner's dashboard and widgets,
	// creating the default dashboard and seed widgets on first access.
	LoadDashboardWithWidgets(ctx context.Context, owner string) (*widget.Dashboard, []widget.Widget, error)

	// PatchDashboard applies an allow-listed patch to the owner's dashboard.
	PatchDashboard(ctx context.Context, owner string, patch widget.DashboardPatch) (*widget.Dashboard, error)

	// CreateWidget inserts w into the dashboard named by w.DashboardID, which
	// must belong to owner. The store assigns the widget ID.
	CreateWidget(ctx context.Context, owner string, w widget.Widget) (*widget.Widget, error)

	// PatchWidget applies an allow-listed patch to a widget owned by owner.
	PatchWidget(ctx context.Context, owner, widgetID string, patch widget.WidgetPatch) (*widget.Widget, error)

	// DeleteWidget removes a widget owned by owner. Deleting a widget that
	// does not exist returns ErrNotFound.
	DeleteWidget(ctx context.Context, owner, widgetID string) error
}

// Replacer is implemented by stores that can swap a dashboard and its
// whole widget set atomically. Import prefers it over the step-by-step
// delete-then-insert sequence.
type Replacer interface {
	ReplaceAll(ctx context.Context, owner string, d widget.Dashboard, widgets []widget.Widget) (*widget.Dashboard, []widget.Widget, error)
}
