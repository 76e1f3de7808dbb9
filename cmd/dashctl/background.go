package main

import (
	"github.com/ryanbastic/go-dashboard/internal/widget"
	"github.com/spf13/cobra"
)

func newBackgroundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "background <color|gradient|image> <value>",
		Short: "Change the dashboard background",
		Long: `Background sets the background type and value together.

Example:
  dashctl background color "#1e293b"
  dashctl background gradient "linear-gradient(135deg, #667eea 0%, #764ba2 100%)"
  dashctl background image https://example.com/wallpaper.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			d, err := s.PatchBackground(cmd.Context(), widget.BackgroundType(args[0]), args[1])
			if err != nil {
				return err
			}
			return a.printDashboard(cmd, *d, s.Widgets())
		},
	}
}
