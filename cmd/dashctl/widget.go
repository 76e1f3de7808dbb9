package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ryanbastic/go-dashboard/internal/layout"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		x, y, width, height int
		settings            string
	)
	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Add a widget",
		Long: `Add appends a widget of the given type. Without --settings the widget
starts with the defaults of its type.

Types: link, checklist, clock, weather, memo, search, calendar

Example:
  dashctl add memo --x 0 --y 3
  dashctl add link --settings '{"url":"https://go.dev","title":"Go"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := widget.ParseType(args[0])
			if err != nil {
				return err
			}
			var s widget.Settings
			if settings != "" {
				if s, err = widget.ParseSettings(t, json.RawMessage(settings)); err != nil {
					return err
				}
			}

			sess, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			w, err := sess.AddWidget(cmd.Context(), t, x, y, width, height, s)
			if err != nil {
				return err
			}
			return a.printWidget(cmd, w)
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "grid column")
	cmd.Flags().IntVar(&y, "y", 0, "grid row")
	cmd.Flags().IntVar(&width, "width", 1, "width in grid cells")
	cmd.Flags().IntVar(&height, "height", 1, "height in grid cells")
	cmd.Flags().StringVar(&settings, "settings", "", "widget settings as a JSON object")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <widget-id>",
		Short: "Remove a widget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.RemoveWidget(cmd.Context(), args[0]); err != nil {
				return err
			}
			if !a.jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			}
			return nil
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <widget-id> <x> <y>",
		Short: "Move a widget to a grid position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid x %q: %w", args[1], err)
			}
			y, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid y %q: %w", args[2], err)
			}

			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			w, err := s.MoveWidget(cmd.Context(), args[0], x, y)
			if err != nil {
				return err
			}
			return a.printWidget(cmd, w)
		},
	}
}

func newResizeCmd(a *app) *cobra.Command {
	var (
		dir                      string
		dx, dy, grid, sensitivity float64
		width, height            int
	)
	cmd := &cobra.Command{
		Use:   "resize <widget-id>",
		Short: "Resize a widget",
		Long: `Resize either sets an explicit size with --width and --height, or replays
a drag of the --dir handle by --dx and --dy pixels over a grid of --grid
pixel cells. Sizes are clamped to 1..8 columns and 1..6 rows.

Example:
  dashctl resize 3f2a --width 2 --height 2
  dashctl resize 3f2a --dir se --dx 80 --dy 80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}

			var w *widget.Widget
			if width > 0 || height > 0 {
				cur, ok := s.Widget(args[0])
				if !ok {
					return fmt.Errorf("widget %s: %w", args[0], storage.ErrNotFound)
				}
				if width <= 0 {
					width = cur.Width
				}
				if height <= 0 {
					height = cur.Height
				}
				w, err = s.SetWidgetSize(cmd.Context(), args[0], width, height)
			} else {
				d, perr := layout.ParseDirection(dir)
				if perr != nil {
					return perr
				}
				w, err = s.ResizeWidget(cmd.Context(), args[0], d, dx, dy, grid, sensitivity)
			}
			if err != nil {
				return err
			}
			return a.printWidget(cmd, w)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "se", "resize handle: n, s, e, w, ne, nw, se, sw")
	cmd.Flags().Float64Var(&dx, "dx", 0, "horizontal drag in pixels")
	cmd.Flags().Float64Var(&dy, "dy", 0, "vertical drag in pixels")
	cmd.Flags().Float64Var(&grid, "grid", 80, "grid cell size in pixels")
	cmd.Flags().Float64Var(&sensitivity, "sensitivity", 0.8, "drag sensitivity")
	cmd.Flags().IntVar(&width, "width", 0, "explicit width in grid cells")
	cmd.Flags().IntVar(&height, "height", 0, "explicit height in grid cells")
	return cmd
}

func newResetLayoutCmd(a *app) *cobra.Command {
	var columns int
	cmd := &cobra.Command{
		Use:   "reset-layout",
		Short: "Reflow every widget row by row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.ResetLayout(cmd.Context(), columns); err != nil {
				return err
			}
			d, _ := s.Dashboard()
			return a.printDashboard(cmd, d, s.Widgets())
		},
	}
	cmd.Flags().IntVar(&columns, "columns", 0, "columns to reflow over (default: the dashboard's grid columns)")
	return cmd
}
