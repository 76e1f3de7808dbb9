package api

import (
	"context"
	"fmt"

	"github.com/ryanbastic/go-dashboard/internal/metrics"
	"github.com/ryanbastic/go-dashboard/internal/snapshot"
)

type ExportInput struct{}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// ImportInput takes the document unparsed; snapshot.Decode is its only
// validator, so a broken document gets the malformed-snapshot error.
type ImportInput struct {
	RawBody []byte
}

type ImportResponse struct {
	ImportedWidgets int `json:"importedWidgets" doc:"Number of widgets written"`
}

type ImportOutput struct {
	Body ImportResponse
}

func (h *DashboardHandler) Export(ctx context.Context, _ *ExportInput) (*ExportOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()
	snap, err := snapshot.Export(ctx, h.store, actor.ID, &snapshot.User{ID: actor.ID, Email: actor.Email}, now)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to export dashboard", err, "user_id", actor.ID)
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, toHumaError(h.logger, "failed to encode snapshot", err, "user_id", actor.ID)
	}
	return &ExportOutput{
		ContentType:        "application/json",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", snapshot.Filename(now)),
		Body:               data,
	}, nil
}

func (h *DashboardHandler) Import(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	actor, err := owner(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.Decode(input.RawBody)
	if err != nil {
		metrics.RecordImport("rejected")
		return nil, toHumaError(h.logger, "invalid snapshot", err)
	}
	res, err := snapshot.Import(ctx, h.store, actor.ID, snap)
	if err != nil {
		metrics.RecordImport("failed")
		return nil, toHumaError(h.logger, "failed to import dashboard", err, "user_id", actor.ID)
	}
	metrics.RecordImport("ok")
	h.logger.Info("dashboard imported", "user_id", actor.ID, "widgets", res.ImportedWidgets)
	return &ImportOutput{Body: ImportResponse{ImportedWidgets: res.ImportedWidgets}}, nil
}
