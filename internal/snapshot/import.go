package snapshot

import (
	"context"
	"fmt"

	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// Result reports the state written by Import.
type Result struct {
	ImportedWidgets int
	Dashboard       *widget.Dashboard
	Widgets         []widget.Widget
}

// PartialImportError is returned when the step-by-step import fails after
// it started deleting widgets. Deleted and Inserted count the widget
// operations that completed before Err.
type PartialImportError struct {
	Deleted  int
	Inserted int
	Err      error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import partially applied (%d widgets deleted, %d inserted): %v", e.Deleted, e.Inserted, e.Err)
}

func (e *PartialImportError) Unwrap() error { return e.Err }

// Import replaces the owner's dashboard fields and whole widget set with
// the contents of snap. Widget IDs are regenerated by the store.
//
// When store implements storage.Replacer the replacement is atomic.
// Otherwise the dashboard is patched, existing widgets are deleted one by
// one and the snapshot widgets are inserted; a failure after the first
// delete is reported as *PartialImportError.
func Import(ctx context.Context, store storage.Store, owner string, snap *Snapshot) (*Result, error) {
	d := widget.Dashboard{
		UserID:          owner,
		Name:            snap.Dashboard.Name,
		BackgroundType:  snap.Dashboard.BackgroundType,
		BackgroundValue: snap.Dashboard.BackgroundValue,
		LayoutSettings:  snap.Dashboard.LayoutSettings,
	}
	widgets := make([]widget.Widget, 0, len(snap.Widgets))
	for _, w := range snap.Widgets {
		widgets = append(widgets, widget.Widget{
			Type:      w.Type,
			PositionX: w.PositionX,
			PositionY: w.PositionY,
			Width:     w.Width,
			Height:    w.Height,
			Settings:  w.Settings,
		}.Clone())
	}

	if r, ok := store.(storage.Replacer); ok {
		outDash, outWidgets, err := r.ReplaceAll(ctx, owner, d, widgets)
		if err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		return &Result{ImportedWidgets: len(outWidgets), Dashboard: outDash, Widgets: outWidgets}, nil
	}
	return importSteps(ctx, store, owner, d, widgets)
}

func importSteps(ctx context.Context, store storage.Store, owner string, d widget.Dashboard, widgets []widget.Widget) (*Result, error) {
	_, existing, err := store.LoadDashboardWithWidgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("import: load dashboard: %w", err)
	}

	name, bgType, bgValue, layout := d.Name, d.BackgroundType, d.BackgroundValue, d.LayoutSettings
	outDash, err := store.PatchDashboard(ctx, owner, widget.DashboardPatch{
		Name:            &name,
		BackgroundType:  &bgType,
		BackgroundValue: &bgValue,
		LayoutSettings:  &layout,
	})
	if err != nil {
		return nil, fmt.Errorf("import: update dashboard: %w", err)
	}

	partial := &PartialImportError{}
	for _, w := range existing {
		if err := store.DeleteWidget(ctx, owner, w.ID); err != nil {
			partial.Err = fmt.Errorf("delete widget %s: %w", w.ID, err)
			return nil, partial
		}
		partial.Deleted++
	}

	out := make([]widget.Widget, 0, len(widgets))
	for _, w := range widgets {
		w.DashboardID = outDash.ID
		created, err := store.CreateWidget(ctx, owner, w)
		if err != nil {
			partial.Err = fmt.Errorf("insert widget: %w", err)
			return nil, partial
		}
		partial.Inserted++
		out = append(out, *created)
	}
	return &Result{ImportedWidgets: len(out), Dashboard: outDash, Widgets: out}, nil
}
