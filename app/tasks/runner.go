package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/metrics"
)

const (
	defaultBatchSize = int32(50)
	defaultLease     = time.Minute
)

type RunnerConfig struct {
	BatchSize int32
	Lease     time.Duration
}

type Runner struct {
	repo     taskRepository
	registry *Registry
	cfg      RunnerConfig
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewRunner(repo taskRepository, registry *Registry, cfg RunnerConfig, m *metrics.Metrics) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	return &Runner{
		repo:     repo,
		registry: registry,
		cfg:      cfg,
		metrics:  m,
		logger:   factory.NewModuleLogger("tasks-runner"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunDueBatch claims and executes up to one batch of due tasks. Tasks claimed by
// another worker in the meantime are skipped. The first handler or storage error is returned
// after the whole batch has been attempted.
func (r *Runner) RunDueBatch(ctx context.Context) error {
	items, err := r.repo.ListDue(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		return err
	}

	var firstErr error
	for _, task := range items {
		if task == nil {
			continue
		}
		if err := r.runOne(ctx, task); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

func (r *Runner) runOne(ctx context.Context, task *entity.ScheduledTask) error {
	now := r.now()
	claimed, err := r.repo.Claim(ctx, task, now.Add(r.cfg.Lease), now)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	attempt := task.Attempts + 1

	l := r.logger.WithFields(logrus.Fields{
		"task":     task.Name,
		"task_key": task.TaskKey,
		"task_id":  task.ID,
		"attempt":  attempt,
	})

	reg, ok := r.registry.Get(task.Name)
	if !ok {
		l.Error("No handler registered for task")
		r.metrics.ObserveTask(task.Name, "failed")
		ok, err := r.repo.MarkFailed(ctx, task.ID, attempt, ErrTaskNotRegistered.Error(), r.now())
		return r.settled(l, task, ok, err)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, r.cfg.Lease)
	handlerErr := safeInvoke(handlerCtx, reg.Handler, []byte(task.PayloadJSON))
	cancel()

	if handlerErr == nil {
		r.metrics.ObserveTask(task.Name, "done")
		ok, err := r.repo.MarkDone(ctx, task.ID, attempt, r.now())
		return r.settled(l, task, ok, err)
	}

	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = reg.MaxAttempts
	}
	if errors.Is(handlerErr, ErrPermanent) || attempt >= maxAttempts {
		l.WithError(handlerErr).Error("Task failed permanently")
		r.metrics.ObserveTask(task.Name, "failed")
		ok, err := r.repo.MarkFailed(ctx, task.ID, attempt, handlerErr.Error(), r.now())
		if err := r.settled(l, task, ok, err); err != nil {
			return err
		}
		return handlerErr
	}

	delay := reg.Backoff(attempt)
	l.WithError(handlerErr).WithField("retry_in", delay.String()).Warn("Task failed, retry scheduled")
	r.metrics.ObserveTask(task.Name, "retry")
	retryAt := r.now()
	ok, err = r.repo.MarkRetry(ctx, task.ID, attempt, retryAt.Add(delay), handlerErr.Error(), retryAt)
	if err := r.settled(l, task, ok, err); err != nil {
		return err
	}
	return handlerErr
}

// settled drops the outcome when the lease was lost; the worker that reclaimed the task owns it now.
func (r *Runner) settled(l logrus.FieldLogger, task *entity.ScheduledTask, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		l.Warn("Task lease lost before completion, result discarded")
		r.metrics.ObserveTask(task.Name, "lease_lost")
	}
	return nil
}

func safeInvoke(ctx context.Context, handler Handler, payload []byte) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task handler panic: %v", recovered)
		}
	}()
	return handler(ctx, payload)
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
