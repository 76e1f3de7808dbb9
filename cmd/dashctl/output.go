package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ryanbastic/go-dashboard/internal/widget"
	"github.com/spf13/cobra"
)

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printWidget(cmd *cobra.Command, w *widget.Widget) error {
	if a.jsonOut {
		return a.printJSON(cmd, w)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(%d,%d)\t%dx%d\n", w.ID, w.Type, w.PositionX, w.PositionY, w.Width, w.Height)
	return nil
}

func (a *app) printDashboard(cmd *cobra.Command, d widget.Dashboard, widgets []widget.Widget) error {
	if a.jsonOut {
		return a.printJSON(cmd, struct {
			Dashboard widget.Dashboard `json:"dashboard"`
			Widgets   []widget.Widget  `json:"widgets"`
		}{d, widgets})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", d.Name, d.ID)
	fmt.Fprintf(out, "background: %s %s\n", d.BackgroundType, d.BackgroundValue)
	fmt.Fprintf(out, "layout: %d columns, rows %s, gap %d\n\n",
		d.LayoutSettings.GridCols, d.LayoutSettings.GridRows, d.LayoutSettings.Gap)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tPOSITION\tSIZE")
	for _, w := range widgets {
		fmt.Fprintf(tw, "%s\t%s\t(%d,%d)\t%dx%d\n", w.ID, w.Type, w.PositionX, w.PositionY, w.Width, w.Height)
	}
	return tw.Flush()
}
