package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the dashboard and its widgets",
		Long: `Show loads the dashboard, creating it with the default widgets on first
access, and prints its settings followed by one line per widget.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			d, ok := s.Dashboard()
			if !ok {
				return errors.New("dashboard not loaded")
			}
			return a.printDashboard(cmd, d, s.Widgets())
		},
	}
}
