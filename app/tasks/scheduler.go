package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/ingest"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrTaskPending is returned when a task of the same type is queued or running.
var ErrTaskPending = errors.New("task of this type is already pending")

const (
	DefaultQueueSize   = 16
	DefaultTaskTimeout = 30 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

type SchedulerConfig struct {
	Interval      time.Duration
	WorkerCount   int
	TaskTimeout   time.Duration
	ClassifyLimit int
}

// Scheduler runs ingestion and classification periodically on a worker pool.
// At most one task per type is pending at a time, so ingestion runs never overlap.
type Scheduler struct {
	ingester   Ingester
	classifier Reclassifier
	cfg        SchedulerConfig
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	taskQueue  chan TaskInterface
	mu         sync.Mutex
	pending    map[TaskType]bool
	retryDelay func(retry int) time.Duration
}

func NewScheduler(ingester Ingester, classifier Reclassifier, cfg SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}

	return &Scheduler{
		ingester:   ingester,
		classifier: classifier,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, DefaultQueueSize),
		pending:    make(map[TaskType]bool),
		retryDelay: retryDelay,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.cfg.Interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.enqueuePeriodicTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueuePeriodicTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers. The queue is left
// open so late retries fail on the canceled context instead of a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.mu.Lock()
	if s.pending[task.GetType()] {
		s.mu.Unlock()
		return ErrTaskPending
	}
	s.pending[task.GetType()] = true
	s.mu.Unlock()

	if err := s.push(task); err != nil {
		s.release(task.GetType())
		return err
	}
	return nil
}

func (s *Scheduler) push(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) release(taskType TaskType) {
	s.mu.Lock()
	delete(s.pending, taskType)
	s.mu.Unlock()
}

func (s *Scheduler) enqueuePeriodicTasks() {
	if s.ingester != nil {
		if err := s.EnqueueTask(NewIngestTask(s.ingester, ingest.Options{})); err != nil {
			slog.Warn("Failed to enqueue IngestTask", "error", err)
		}
	}
	if s.classifier != nil {
		if err := s.EnqueueTask(NewClassifyTask(s.classifier, s.cfg.ClassifyLimit)); err != nil {
			slog.Warn("Failed to enqueue ClassifyTask", "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.cfg.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task.GetType())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		s.release(task.GetType())
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	go func() {
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task.GetType())
			return
		}

		if retryErr := s.push(task); retryErr != nil {
			s.release(task.GetType())
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}

func retryDelay(retry int) time.Duration {
	delay := time.Duration(1<<uint(retry-1)) * time.Second
	return min(delay, maxRetryDelay)
}
