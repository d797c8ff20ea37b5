package database

import (
	"context"
	"fmt"
	"time"
)

type LogRepo struct {
	db *DB
}

func NewLogRepository(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Add(ctx context.Context, entry OperationLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operation_logs (run_id, level, source, link, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.RunID, entry.Level, entry.Source, entry.Link, entry.Message, dbTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add operation log: %w", err)
	}
	return nil
}

func (r *LogRepo) ListByRun(ctx context.Context, runID string) ([]OperationLog, error) {
	logs := make([]OperationLog, 0)
	if err := r.db.SelectContext(ctx, &logs, `SELECT * FROM operation_logs WHERE run_id = ? ORDER BY id`, runID); err != nil {
		return nil, fmt.Errorf("failed to list operation logs: %w", err)
	}
	return logs, nil
}
