package main

import (
	"fmt"

	"github.com/ryanbastic/go-dashboard/internal/widget"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		undo   bool
		add    string
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "check <widget-id> [item-id]",
		Short: "Tick, untick, add or remove checklist items",
		Long: `Check edits the items of a checklist widget.

Example:
  dashctl check 3f2a 1          # mark item 1 done
  dashctl check 3f2a 1 --undo   # mark item 1 not done
  dashctl check 3f2a 1 --remove
  dashctl check 3f2a --add "water the plants"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if add == "" && len(args) != 2 {
				return fmt.Errorf("an item id is required unless --add is given")
			}

			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			widgetID := args[0]

			var w *widget.Widget
			switch {
			case add != "":
				item, err := s.AddChecklistItem(ctx, widgetID, add)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return a.printJSON(cmd, item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\t%s\n", item.ID, item.Text)
				return nil
			case remove:
				w, err = s.RemoveChecklistItem(ctx, widgetID, args[1])
			default:
				w, err = s.UpdateChecklistItem(ctx, widgetID, args[1], !undo)
			}
			if err != nil {
				return err
			}
			return a.printChecklist(cmd, w)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the item as not done")
	cmd.Flags().StringVar(&add, "add", "", "append a new item with this text")
	cmd.Flags().BoolVar(&remove, "remove", false, "delete the item")
	cmd.MarkFlagsMutuallyExclusive("undo", "add", "remove")
	return cmd
}

func (a *app) printChecklist(cmd *cobra.Command, w *widget.Widget) error {
	if a.jsonOut {
		return a.printJSON(cmd, w)
	}
	cl, ok := w.Settings.(widget.ChecklistSettings)
	if !ok {
		return a.printWidget(cmd, w)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cl.Title)
	for _, item := range cl.Items {
		mark := " "
		if item.Completed {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] %s\t%s\n", mark, item.ID, item.Text)
	}
	return nil
}
