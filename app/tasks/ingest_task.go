package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/izotovlife/izotovlife.ru-sub000/app/ingest"
)

type IngestTask struct {
	Task
	ingester Ingester
	opts     ingest.Options
}

func NewIngestTask(ingester Ingester, opts ingest.Options) *IngestTask {
	target := "all"
	if len(opts.Only) > 0 {
		target = strings.Join(opts.Only, ",")
	}

	return &IngestTask{
		Task:     NewTask(TaskTypeIngest, target),
		ingester: ingester,
		opts:     opts,
	}
}

func (t *IngestTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.ingester.Run(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("failed to run ingestion: %w", err)
	}

	if summary.NeedsReview() {
		slog.Warn("Ingestion finished with unexpected errors", "run", summary.RunID, "unexpected", summary.Unexpected)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"target", t.Target,
		"run", summary.RunID,
		"duration", t.GetDuration(),
		"added", summary.Added,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return nil
}
