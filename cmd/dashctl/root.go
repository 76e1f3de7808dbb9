package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ryanbastic/go-dashboard/internal/client"
	"github.com/ryanbastic/go-dashboard/internal/config"
	"github.com/ryanbastic/go-dashboard/internal/dashboard"
	"github.com/ryanbastic/go-dashboard/internal/guest"
	"github.com/spf13/cobra"
)

// app carries the resolved flags and the lazily opened guest database for
// one invocation.
type app struct {
	cfg     config.CLIConfig
	jsonOut bool
	verbose bool
	logger  *slog.Logger

	guestDB *guest.SQLiteStorage
}

func newRootCmd() *cobra.Command {
	dotenvErr := config.LoadDotEnv()
	a := &app{cfg: config.LoadCLI()}

	cmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Manage a personal dashboard from the terminal",
		Long: `dashctl edits a personal dashboard of widgets.

With --token (or DASHBOARD_TOKEN) every command talks to the dashboard API
at --server. Without a token, commands use the local guest database once
guest mode has been enabled with "dashctl guest enable".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dotenvErr != nil {
				return fmt.Errorf("load .env: %w", dotenvErr)
			}
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfg.Server, "server", a.cfg.Server, "dashboard API base URL")
	flags.StringVar(&a.cfg.Token, "token", a.cfg.Token, "bearer token for the dashboard API")
	flags.StringVar(&a.cfg.GuestDB, "guest-db", a.cfg.GuestDB, "path of the guest mode database")
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(
		newGuestCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newRmCmd(a),
		newMoveCmd(a),
		newResizeCmd(a),
		newResetLayoutCmd(a),
		newCheckCmd(a),
		newBackgroundCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return cmd
}

func (a *app) guestStore() (*guest.Store, error) {
	if a.guestDB == nil {
		db, err := guest.OpenSQLite(a.cfg.GuestDB)
		if err != nil {
			return nil, fmt.Errorf("open guest database: %w", err)
		}
		a.guestDB = db
	}
	return guest.NewStore(a.guestDB), nil
}

func (a *app) close() error {
	if a.guestDB == nil {
		return nil
	}
	err := a.guestDB.Close()
	a.guestDB = nil
	return err
}

// session resolves the persistence mode and loads the dashboard.
func (a *app) session(ctx context.Context) (*dashboard.Session, error) {
	authenticated := a.cfg.Token != ""
	guestEnabled := false
	if !authenticated {
		gs, err := a.guestStore()
		if err != nil {
			return nil, err
		}
		if guestEnabled, err = gs.Enabled(ctx); err != nil {
			return nil, err
		}
	}

	var (
		s   *dashboard.Session
		err error
	)
	switch mode := dashboard.ResolveMode(authenticated, guestEnabled); mode {
	case dashboard.ModeRemote:
		s, err = dashboard.NewSession(mode, tokenSubject(a.cfg.Token), client.New(a.cfg.Server, a.cfg.Token), a.logger)
	case dashboard.ModeGuest:
		gs, _ := a.guestStore()
		s, err = dashboard.NewSession(mode, "", gs, a.logger)
	default:
		return nil, dashboard.ErrModeUnresolved
	}
	if err != nil {
		return nil, err
	}
	a.logger.Debug("session resolved", "mode", s.Mode().String(), "owner", s.Owner())

	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// tokenSubject reads the sub claim without verifying the signature; the
// server does the verification. The owner only labels log lines here.
func tokenSubject(token string) string {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.Subject == "" {
		return "remote"
	}
	return claims.Subject
}
