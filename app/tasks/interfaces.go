package tasks

import (
	"context"

	"github.com/izotovlife/izotovlife.ru-sub000/app/classify"
	"github.com/izotovlife/izotovlife.ru-sub000/app/ingest"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// The API enqueues on-demand runs through it; the scheduler itself enqueues
// periodic ones.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type Ingester interface {
	Run(ctx context.Context, opts ingest.Options) (ingest.Summary, error)
}

type Reclassifier interface {
	Run(ctx context.Context, limit int) (classify.Result, error)
}

var (
	_ Ingester     = (*ingest.Pipeline)(nil)
	_ Reclassifier = (*classify.Runner)(nil)
)
