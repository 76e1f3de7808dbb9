package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryanbastic/go-dashboard/internal/layout"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

const (
	dashboardColumns = `id, user_id, name, background_type, background_value, layout_settings, created_at, updated_at`
	widgetColumns    = `id, dashboard_id, type, position_x, position_y, width, height, settings, created_at, updated_at`
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store and Replacer on PostgreSQL. Ownership is
// enforced in SQL by joining every widget access to dashboards.user_id.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

var (
	_ Store    = (*PostgresStore)(nil)
	_ Replacer = (*PostgresStore)(nil)
)

// NewPostgresStore creates a Store backed by the dashboards and widgets tables.
// queryTimeout sets the per-operation context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

func (s *PostgresStore) LoadDashboardWithWidgets(ctx context.Context, owner string) (*widget.Dashboard, []widget.Widget, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		d       *widget.Dashboard
		widgets []widget.Widget
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		d, err = getDashboard(ctx, tx, owner, false)
		if errors.Is(err, ErrNotFound) {
			d, err = createDefaultDashboard(ctx, tx, owner)
		}
		if err != nil {
			return err
		}
		widgets, err = listWidgets(ctx, tx, d.ID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load dashboard: %w", err)
	}
	return d, widgets, nil
}

func (s *PostgresStore) PatchDashboard(ctx context.Context, owner string, patch widget.DashboardPatch) (*widget.Dashboard, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *widget.Dashboard
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		d, err := getDashboard(ctx, tx, owner, true)
		if err != nil {
			return err
		}
		patch.Apply(d)

		layoutJSON, err := json.Marshal(d.LayoutSettings)
		if err != nil {
			return fmt.Errorf("marshal layout settings: %w", err)
		}
		out, err = scanDashboard(tx.QueryRow(ctx, `
			UPDATE dashboards
			SET name = $2, background_type = $3, background_value = $4,
				layout_settings = $5::jsonb, updated_at = now()
			WHERE id = $1
			RETURNING `+dashboardColumns,
			d.ID, d.Name, string(d.BackgroundType), d.BackgroundValue, layoutJSON,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("patch dashboard: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateWidget(ctx context.Context, owner string, w widget.Widget) (*widget.Widget, error) {
	layout.Normalize(&w)
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.DashboardID == "" {
		return nil, &widget.ValidationError{Field: "dashboard_id", Reason: "required"}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	settings, err := json.Marshal(w.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}

	// The SELECT yields no row unless the dashboard belongs to owner.
	created, err := scanWidget(s.pool.QueryRow(ctx, `
		INSERT INTO widgets (id, dashboard_id, type, position_x, position_y, width, height, settings)
		SELECT $1::text, d.id, $3::text, $4::int, $5::int, $6::int, $7::int, $8::jsonb
		FROM dashboards d
		WHERE d.id = $2 AND d.user_id = $9
		RETURNING `+widgetColumns,
		uuid.NewString(), w.DashboardID, string(w.Type), w.PositionX, w.PositionY, w.Width, w.Height, settings, owner,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("dashboard %s: %w", w.DashboardID, ErrNotFound)
		}
		return nil, fmt.Errorf("create widget: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) PatchWidget(ctx context.Context, owner, widgetID string, patch widget.WidgetPatch) (*widget.Widget, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *widget.Widget
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := scanWidget(tx.QueryRow(ctx, `
			SELECT w.id, w.dashboard_id, w.type, w.position_x, w.position_y, w.width, w.height,
				w.settings, w.created_at, w.updated_at
			FROM widgets w
			JOIN dashboards d ON d.id = w.dashboard_id
			WHERE w.id = $1 AND d.user_id = $2
			FOR UPDATE OF w
		`, widgetID, owner))
		if err != nil {
			return err
		}

		next, err := patch.Apply(*current)
		if err != nil {
			return err
		}
		layout.Normalize(&next)

		settings, err := json.Marshal(next.Settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		out, err = scanWidget(tx.QueryRow(ctx, `
			UPDATE widgets
			SET type = $2, position_x = $3, position_y = $4, width = $5, height = $6,
				settings = $7::jsonb, updated_at = now()
			WHERE id = $1
			RETURNING `+widgetColumns,
			next.ID, string(next.Type), next.PositionX, next.PositionY, next.Width, next.Height, settings,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("widget %s: %w", widgetID, ErrNotFound)
		}
		return nil, fmt.Errorf("patch widget: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteWidget(ctx context.Context, owner, widgetID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM widgets w
		USING dashboards d
		WHERE w.dashboard_id = d.id AND w.id = $1 AND d.user_id = $2
	`, widgetID, owner)
	if err != nil {
		return fmt.Errorf("delete widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("widget %s: %w", widgetID, ErrNotFound)
	}
	return nil
}

// ReplaceAll upserts the owner's dashboard and swaps its widget set in a
// single transaction. Widget IDs are regenerated.
func (s *PostgresStore) ReplaceAll(ctx context.Context, owner string, d widget.Dashboard, widgets []widget.Widget) (*widget.Dashboard, []widget.Widget, error) {
	widgets = slices.Clone(widgets)
	for i := range widgets {
		layout.Normalize(&widgets[i])
		if err := widgets[i].Validate(); err != nil {
			return nil, nil, err
		}
	}
	if !d.BackgroundType.Valid() {
		return nil, nil, &widget.ValidationError{Field: "background_type", Reason: fmt.Sprintf("unknown background type %q", d.BackgroundType)}
	}
	if err := d.LayoutSettings.Validate(); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	layoutJSON, err := json.Marshal(d.LayoutSettings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal layout settings: %w", err)
	}

	var (
		outDash    *widget.Dashboard
		outWidgets []widget.Widget
	)
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		outDash, err = scanDashboard(tx.QueryRow(ctx, `
			INSERT INTO dashboards (id, user_id, name, background_type, background_value, layout_settings)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)
			ON CONFLICT (user_id) DO UPDATE
			SET name = EXCLUDED.name,
				background_type = EXCLUDED.background_type,
				background_value = EXCLUDED.background_value,
				layout_settings = EXCLUDED.layout_settings,
				updated_at = now()
			RETURNING `+dashboardColumns,
			uuid.NewString(), owner, d.Name, string(d.BackgroundType), d.BackgroundValue, layoutJSON,
		))
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM widgets WHERE dashboard_id = $1`, outDash.ID); err != nil {
			return fmt.Errorf("delete widgets: %w", err)
		}

		outWidgets, err = insertWidgets(ctx, tx, outDash.ID, widgets)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("replace dashboard: %w", err)
	}
	return outDash, outWidgets, nil
}

// getDashboard returns ErrNotFound when owner has no dashboard. forUpdate
// locks the row for the rest of the transaction.
func getDashboard(ctx context.Context, q querier, owner string, forUpdate bool) (*widget.Dashboard, error) {
	query := `SELECT ` + dashboardColumns + ` FROM dashboards WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanDashboard(q.QueryRow(ctx, query, owner))
}

// createDefaultDashboard inserts the default dashboard and its seed widgets.
// A concurrent first read that wins the insert race is picked up instead of
// creating a second dashboard.
func createDefaultDashboard(ctx context.Context, q querier, owner string) (*widget.Dashboard, error) {
	def := widget.DefaultDashboard(owner)
	layoutJSON, err := json.Marshal(def.LayoutSettings)
	if err != nil {
		return nil, fmt.Errorf("marshal layout settings: %w", err)
	}

	d, err := scanDashboard(q.QueryRow(ctx, `
		INSERT INTO dashboards (id, user_id, name, background_type, background_value, layout_settings)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+dashboardColumns,
		uuid.NewString(), owner, def.Name, string(def.BackgroundType), def.BackgroundValue, layoutJSON,
	))
	if errors.Is(err, ErrNotFound) {
		return getDashboard(ctx, q, owner, false)
	}
	if err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}

	if _, err := insertWidgets(ctx, q, d.ID, widget.SeedWidgets()); err != nil {
		return nil, err
	}
	return d, nil
}

func insertWidgets(ctx context.Context, q querier, dashboardID string, widgets []widget.Widget) ([]widget.Widget, error) {
	out := make([]widget.Widget, 0, len(widgets))
	for _, w := range widgets {
		settings, err := json.Marshal(w.Settings)
		if err != nil {
			return nil, fmt.Errorf("marshal settings: %w", err)
		}
		created, err := scanWidget(q.QueryRow(ctx, `
			INSERT INTO widgets (id, dashboard_id, type, position_x, position_y, width, height, settings)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
			RETURNING `+widgetColumns,
			uuid.NewString(), dashboardID, string(w.Type), w.PositionX, w.PositionY, w.Width, w.Height, settings,
		))
		if err != nil {
			return nil, fmt.Errorf("insert widget: %w", err)
		}
		out = append(out, *created)
	}
	return out, nil
}

func listWidgets(ctx context.Context, q querier, dashboardID string) ([]widget.Widget, error) {
	rows, err := q.Query(ctx, `
		SELECT `+widgetColumns+`
		FROM widgets
		WHERE dashboard_id = $1
		ORDER BY seq ASC
	`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	defer rows.Close()

	widgets := []widget.Widget{}
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, fmt.Errorf("list widgets scan: %w", err)
		}
		widgets = append(widgets, *w)
	}
	return widgets, rows.Err()
}

func scanDashboard(row pgx.Row) (*widget.Dashboard, error) {
	var (
		d          widget.Dashboard
		bgType     string
		layoutJSON []byte
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &bgType, &d.BackgroundValue, &layoutJSON, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan dashboard: %w", err)
	}
	d.BackgroundType = widget.BackgroundType(bgType)
	d.LayoutSettings = widget.DefaultLayoutSettings()
	if err := json.Unmarshal(layoutJSON, &d.LayoutSettings); err != nil {
		return nil, fmt.Errorf("decode layout settings: %w", err)
	}
	return &d, nil
}

func scanWidget(row pgx.Row) (*widget.Widget, error) {
	var (
		w        widget.Widget
		typ      string
		settings []byte
	)
	err := row.Scan(&w.ID, &w.DashboardID, &typ, &w.PositionX, &w.PositionY, &w.Width, &w.Height, &settings, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan widget: %w", err)
	}
	w.Type = widget.Type(typ)
	w.Settings, err = widget.DecodeSettings(w.Type, settings)
	if err != nil {
		return nil, fmt.Errorf("decode settings of widget %s: %w", w.ID, err)
	}
	return &w, nil
}
