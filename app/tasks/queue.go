package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/repository"
)

type taskRepository interface {
	Create(ctx context.Context, task *entity.ScheduledTask) error
	ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.ScheduledTask, error)
	Claim(ctx context.Context, task *entity.ScheduledTask, lockedUntil, now time.Time) (bool, error)
	MarkDone(ctx context.Context, id uint64, attempt int32, now time.Time) (bool, error)
	MarkRetry(ctx context.Context, id uint64, attempt int32, runAt time.Time, lastErr string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint64, attempt int32, lastErr string, now time.Time) (bool, error)
}

type Queue struct {
	repo     taskRepository
	registry *Registry
	now      func() time.Time
}

func NewQueue(repo taskRepository, registry *Registry) *Queue {
	return &Queue{
		repo:     repo,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Schedule persists a task to run after delay. A task with the same name and key
// is scheduled at most once; repeated calls are no-ops.
func (q *Queue) Schedule(ctx context.Context, name, key string, payload interface{}, delay time.Duration) error {
	reg, ok := q.registry.Get(name)
	if !ok {
		return ErrTaskNotRegistered
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidTask
	}
	if delay < 0 {
		delay = 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	now := q.now()
	task := &entity.ScheduledTask{
		Name:        reg.Name,
		TaskKey:     key,
		PayloadJSON: string(body),
		Status:      entity.ScheduledTaskPending,
		MaxAttempts: reg.MaxAttempts,
		RunAt:       now.Add(delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.repo.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrScheduledTaskAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}
