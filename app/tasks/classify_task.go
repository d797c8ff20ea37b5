package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type ClassifyTask struct {
	Task
	classifier Reclassifier
	limit      int
}

func NewClassifyTask(classifier Reclassifier, limit int) *ClassifyTask {
	return &ClassifyTask{
		Task:       NewTask(TaskTypeClassify, "fallback categories"),
		classifier: classifier,
		limit:      limit,
	}
}

func (t *ClassifyTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.classifier.Run(ctx, t.limit)
	if err != nil {
		return fmt.Errorf("failed to classify items: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"checked", result.Checked,
		"updated", result.Updated)

	return nil
}
