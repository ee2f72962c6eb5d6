package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/ruletype/internal/model"
)

// Source lists stored batches and runs.
type Source interface {
	ListBatches(ctx context.Context, cfg model.HistoryConfig) ([]model.BatchRecord, error)
	ListRuns(ctx context.Context) ([]model.RunAggregate, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Batches []model.BatchRecord
	Runs    []model.RunAggregate
}

// BuildReport loads batches matching cfg and the per-run aggregates.
func BuildReport(ctx context.Context, src Source, cfg model.HistoryConfig) (Report, error) {
	batches, err := src.ListBatches(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	runs, err := src.ListRuns(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{Batches: batches, Runs: runs}, nil
}

// Render writes the full history report.
func (r Report) Render(w io.Writer, window, width int) error {
	if err := RenderSummary(w, r.Batches); err != nil {
		return err
	}
	if len(r.Batches) == 0 {
		return nil
	}
	if err := RenderTrends(w, r.Batches, window, width); err != nil {
		return err
	}
	if err := RenderBatchTable(w, r.Batches); err != nil {
		return err
	}
	return RenderRuns(w, r.Runs)
}
