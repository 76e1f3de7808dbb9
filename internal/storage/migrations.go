package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
	CREATE TABLE IF NOT EXISTS dashboards (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		name             TEXT NOT NULL,
		background_type  TEXT NOT NULL CHECK (background_type IN ('color', 'gradient', 'image')),
		background_value TEXT NOT NULL,
		layout_settings  JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),

		CONSTRAINT uq_dashboards_user UNIQUE (user_id)
	);

	CREATE TABLE IF NOT EXISTS widgets (
		seq          BIGSERIAL,
		id           TEXT PRIMARY KEY,
		dashboard_id TEXT NOT NULL REFERENCES dashboards (id) ON DELETE CASCADE,
		type         TEXT NOT NULL,
		position_x   INTEGER NOT NULL CHECK (position_x >= 0),
		position_y   INTEGER NOT NULL CHECK (position_y >= 0),
		width        INTEGER NOT NULL CHECK (width BETWEEN 1 AND 8),
		height       INTEGER NOT NULL CHECK (height BETWEEN 1 AND 6),
		settings     JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_widgets_dashboard
		ON widgets (dashboard_id, seq);
`

// RunMigrations creates the dashboard and widget tables.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("migrate dashboard schema: %w", err)
	}
	return nil
}
