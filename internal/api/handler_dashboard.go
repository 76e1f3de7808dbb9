package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-dashboard/internal/auth"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/widget"
)

// --- Huma Input/Output types ---

type LayoutSettingsBody struct {
	GridCols int `json:"gridCols" doc:"Number of grid columns" minimum:"1"`
	GridRows any `json:"gridRows" doc:"Row count, or \"auto\""`
	Gap      int `json:"gap" doc:"Gap between widgets in pixels" minimum:"0"`
}

type DashboardResponse struct {
	ID              string             `json:"id" doc:"Dashboard ID"`
	UserID          string             `json:"user_id" doc:"Owning user ID"`
	Name            string             `json:"name" doc:"Display name"`
	BackgroundType  string             `json:"background_type" doc:"Background kind" enum:"color,gradient,image"`
	BackgroundValue string             `json:"background_value" doc:"CSS color, gradient, or image URL"`
	LayoutSettings  LayoutSettingsBody `json:"layout_settings" doc:"Grid configuration"`
	CreatedAt       time.Time          `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt       time.Time          `json:"updated_at" doc:"Last update timestamp"`
}

type GetDashboardInput struct{}

type DashboardWithWidgets struct {
	Dashboard DashboardResponse `json:"dashboard"`
	Widgets   []widget.Widget   `json:"widgets" doc:"Widgets ordered by creation time"`
}

type GetDashboardOutput struct {
	Body DashboardWithWidgets
}

type PatchDashboardBody struct {
	_               struct{}            `json:"-" additionalProperties:"true"`
	Name            *string             `json:"name,omitempty" doc:"Display name"`
	BackgroundType  *string             `json:"background_type,omitempty" doc:"Background kind" enum:"color,gradient,image"`
	BackgroundValue *string             `json:"background_value,omitempty" doc:"CSS color, gradient, or image URL"`
	LayoutSettings  *LayoutSettingsBody `json:"layout_settings,omitempty" doc:"Grid configuration"`
}

type PatchDashboardInput struct {
	Body PatchDashboardBody
}

type PatchDashboardOutput struct {
	Body DashboardResponse
}

// --- Handler ---

type DashboardHandler struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewDashboardHandler(store storage.Store, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{store: store, logger: logger, now: time.Now}
}

func registerDashboardRoutes(api huma.API, h *DashboardHandler, authed huma.Middlewares) {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/v1/dashboard",
		Summary:     "Load the dashboard and its widgets",
		Description: "Creates the default dashboard and seed widgets on first access.",
		Tags:        []string{"dashboard"},
		Security:    security,
		Middlewares: authed,
	}, h.GetDashboard)

	huma.Register(api, huma.Operation{
		OperationID: "patch-dashboard",
		Method:      http.MethodPatch,
		Path:        "/v1/dashboard",
		Summary:     "Update dashboard name, background, or layout",
		Tags:        []string{"dashboard"},
		Security:    security,
		Middlewares: authed,
	}, h.PatchDashboard)

	huma.Register(api, huma.Operation{
		OperationID:   "create-widget",
		Method:        http.MethodPost,
		Path:          "/v1/widgets",
		Summary:       "Create a widget",
		Tags:          []string{"widgets"},
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Middlewares:   authed,
	}, h.CreateWidget)

	huma.Register(api, huma.Operation{
		OperationID: "patch-widget",
		Method:      http.MethodPatch,
		Path:        "/v1/widgets/{widget_id}",
		Summary:     "Update a widget",
		Tags:        []string{"widgets"},
		Security:    security,
		Middlewares: authed,
	}, h.PatchWidget)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-widget",
		Method:        http.MethodDelete,
		Path:          "/v1/widgets/{widget_id}",
		Summary:       "Delete a widget",
		Tags:          []string{"widgets"},
		DefaultStatus: http.StatusNoContent,
		Security:      security,
		Middlewares:   authed,
	}, h.DeleteWidget)

	huma.Register(api, huma.Operation{
		OperationID: "export-dashboard",
		Method:      http.MethodGet,
		Path:        "/v1/dashboard/export",
		Summary:     "Download a snapshot of the dashboard",
		Tags:        []string{"snapshots"},
		Security:    security,
		Middlewares: authed,
	}, h.Export)

	huma.Register(api, huma.Operation{
		OperationID: "import-dashboard",
		Method:      http.MethodPost,
		Path:        "/v1/dashboard/import",
		Summary:     "Replace the dashboard with a snapshot",
		Tags:        []string{"snapshots"},
		Security:    security,
		Middlewares: authed,
	}, h.Import)
}

// owner returns the authenticated actor. RequireActor guarantees one is
// present on every operation registered here.
func owner(ctx context.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok {
		return auth.Actor{}, huma.Error401Unauthorized("missing actor")
	}
	return actor, nil
}

func (h *DashboardHandler) GetDashboard(ctx context.Context, _ *GetDashboardInput) (*GetDashboardOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	d, widgets, err := h.store.LoadDashboardWithWidgets(ctx, actor.ID)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to load dashboard", err, "user_id", actor.ID)
	}
	if widgets == nil {
		widgets = []widget.Widget{}
	}
	return &GetDashboardOutput{Body: DashboardWithWidgets{
		Dashboard: dashboardToResponse(d),
		Widgets:   widgets,
	}}, nil
}

func (h *DashboardHandler) PatchDashboard(ctx context.Context, input *PatchDashboardInput) (*PatchDashboardOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	patch, err := input.Body.toPatch()
	if err != nil {
		return nil, toHumaError(h.logger, "invalid dashboard patch", err)
	}
	d, err := h.store.PatchDashboard(ctx, actor.ID, patch)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to update dashboard", err, "user_id", actor.ID)
	}
	return &PatchDashboardOutput{Body: dashboardToResponse(d)}, nil
}

func (b PatchDashboardBody) toPatch() (widget.DashboardPatch, error) {
	patch := widget.DashboardPatch{
		Name:            b.Name,
		BackgroundValue: b.BackgroundValue,
	}
	if b.BackgroundType != nil {
		bt := widget.BackgroundType(*b.BackgroundType)
		patch.BackgroundType = &bt
	}
	if b.LayoutSettings != nil {
		ls, err := b.LayoutSettings.toLayout()
		if err != nil {
			return patch, err
		}
		patch.LayoutSettings = &ls
	}
	return patch, patch.Validate()
}

func (b LayoutSettingsBody) toLayout() (widget.LayoutSettings, error) {
	rows, err := parseGridRows(b.GridRows)
	if err != nil {
		return widget.LayoutSettings{}, err
	}
	return widget.LayoutSettings{GridCols: b.GridCols, GridRows: rows, Gap: b.Gap}, nil
}

func parseGridRows(v any) (widget.GridRows, error) {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && x >= 1 && x <= math.MaxInt32 {
			return widget.Rows(int(x)), nil
		}
	case int:
		if x >= 1 {
			return widget.Rows(x), nil
		}
	case string:
		g, err := widget.ParseGridRows(x)
		if err == nil {
			return g, nil
		}
	}
	return widget.GridRows{}, &widget.ValidationError{
		Field:  "layout_settings.gridRows",
		Reason: fmt.Sprintf(`must be a positive integer or "auto", got %v`, v),
	}
}

func dashboardToResponse(d *widget.Dashboard) DashboardResponse {
	var rows any = d.LayoutSettings.GridRows.N
	if d.LayoutSettings.GridRows.Auto {
		rows = "auto"
	}
	return DashboardResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		Name:            d.Name,
		BackgroundType:  string(d.BackgroundType),
		BackgroundValue: d.BackgroundValue,
		LayoutSettings: LayoutSettingsBody{
			GridCols: d.LayoutSettings.GridCols,
			GridRows: rows,
			Gap:      d.LayoutSettings.Gap,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// --- Widgets ---

type CreateWidgetBody struct {
	DashboardID string          `json:"dashboard_id" doc:"Target dashboard ID" minLength:"1"`
	Type        string          `json:"type" doc:"Widget type" enum:"clock,search,checklist,weather,memo,link,calendar"`
	PositionX   int             `json:"position_x" doc:"Column offset" minimum:"0"`
	PositionY   int             `json:"position_y" doc:"Row offset" minimum:"0"`
	Width       int             `json:"width" doc:"Width in grid units, clamped to 1..8"`
	Height      int             `json:"height" doc:"Height in grid units, clamped to 1..6"`
	Settings    json.RawMessage `json:"settings,omitempty" doc:"Type-specific settings; missing fields take defaults"`
}

type CreateWidgetInput struct {
	Body CreateWidgetBody
}

type WidgetOutput struct {
	Body widget.Widget
}

type PatchWidgetBody struct {
	_         struct{}        `json:"-" additionalProperties:"true"`
	Type      *string         `json:"type,omitempty" doc:"Widget type" enum:"clock,search,checklist,weather,memo,link,calendar"`
	PositionX *int            `json:"position_x,omitempty" doc:"Column offset" minimum:"0"`
	PositionY *int            `json:"position_y,omitempty" doc:"Row offset" minimum:"0"`
	Width     *int            `json:"width,omitempty" doc:"Width in grid units, clamped to 1..8"`
	Height    *int            `json:"height,omitempty" doc:"Height in grid units, clamped to 1..6"`
	Settings  json.RawMessage `json:"settings,omitempty" doc:"Replacement settings for the widget type"`
}

type PatchWidgetInput struct {
	WidgetID string `path:"widget_id" doc:"Widget ID"`
	Body     PatchWidgetBody
}

type DeleteWidgetInput struct {
	WidgetID string `path:"widget_id" doc:"Widget ID"`
}

func (h *DashboardHandler) CreateWidget(ctx context.Context, input *CreateWidgetInput) (*WidgetOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	t, err := widget.ParseType(input.Body.Type)
	if err != nil {
		return nil, toHumaError(h.logger, "invalid widget", err)
	}
	settings, err := widget.ParseSettings(t, input.Body.Settings)
	if err != nil {
		return nil, toHumaError(h.logger, "invalid widget", err)
	}
	w := widget.Widget{
		DashboardID: input.Body.DashboardID,
		Type:        t,
		PositionX:   input.Body.PositionX,
		PositionY:   input.Body.PositionY,
		Width:       input.Body.Width,
		Height:      input.Body.Height,
		Settings:    settings,
	}

	created, err := h.store.CreateWidget(ctx, actor.ID, w)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to create widget", err, "user_id", actor.ID, "dashboard_id", w.DashboardID)
	}
	return &WidgetOutput{Body: *created}, nil
}

func (h *DashboardHandler) PatchWidget(ctx context.Context, input *PatchWidgetInput) (*WidgetOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	patch := widget.WidgetPatch{
		PositionX: input.Body.PositionX,
		PositionY: input.Body.PositionY,
		Width:     input.Body.Width,
		Height:    input.Body.Height,
		Settings:  input.Body.Settings,
	}
	if input.Body.Type != nil {
		t := widget.Type(*input.Body.Type)
		patch.Type = &t
	}
	updated, err := h.store.PatchWidget(ctx, actor.ID, input.WidgetID, patch)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to update widget", err, "user_id", actor.ID, "widget_id", input.WidgetID)
	}
	return &WidgetOutput{Body: *updated}, nil
}

func (h *DashboardHandler) DeleteWidget(ctx context.Context, input *DeleteWidgetInput) (*struct{}, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteWidget(ctx, actor.ID, input.WidgetID); err != nil {
		return nil, toHumaError(h.logger, "failed to delete widget", err, "user_id", actor.ID, "widget_id", input.WidgetID)
	}
	return nil, nil
}
