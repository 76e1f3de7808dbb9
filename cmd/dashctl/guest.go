package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGuestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Enable, disable or inspect guest mode",
		Long: `Guest mode keeps the dashboard in a local SQLite database instead of
the dashboard API. Disabling guest mode deletes the local dashboard.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Turn guest mode on",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				gs, err := a.guestStore()
				if err != nil {
					return err
				}
				if err := gs.Enable(cmd.Context()); err != nil {
					return err
				}
				return a.printStatus(cmd, true)
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Turn guest mode off and delete the local dashboard",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				gs, err := a.guestStore()
				if err != nil {
					return err
				}
				if err := gs.Disable(cmd.Context()); err != nil {
					return err
				}
				return a.printStatus(cmd, false)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether guest mode is on",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				gs, err := a.guestStore()
				if err != nil {
					return err
				}
				enabled, err := gs.Enabled(cmd.Context())
				if err != nil {
					return err
				}
				return a.printStatus(cmd, enabled)
			},
		},
	)
	return cmd
}

func (a *app) printStatus(cmd *cobra.Command, enabled bool) error {
	if a.jsonOut {
		return a.printJSON(cmd, map[string]bool{"guest_mode": enabled})
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "guest mode %s\n", state)
	return nil
}
