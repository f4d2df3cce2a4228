package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

var ErrScheduledTaskAlreadyExists = errors.New("scheduled task already exists")

const scheduledTaskColumns = `
	id, name, task_key, payload_json, status, attempts, max_attempts,
	run_at, locked_until, last_error, created_at, updated_at
`

type ScheduledTaskRepository struct {
	db DBTX
}

func NewScheduledTaskRepository(db DBTX) *ScheduledTaskRepository {
	return &ScheduledTaskRepository{db: db}
}

func (r *ScheduledTaskRepository) Create(ctx context.Context, task *entity.ScheduledTask) error {
	query := `
		INSERT INTO scheduled_tasks (
			name, task_key, payload_json, status, attempts, max_attempts,
			run_at, locked_until, last_error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		task.Name,
		task.TaskKey,
		task.PayloadJSON,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		task.RunAt,
		nullableTimeValue(task.LockedUntil),
		nullableStringValue(task.LastError),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrScheduledTaskAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = uint64(id)
	return nil
}

// ListDue returns pending tasks whose run_at has passed and running tasks whose lease expired.
func (r *ScheduledTaskRepository) ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + `
		FROM scheduled_tasks
		WHERE (status = ? AND run_at <= ?)
		   OR (status = ? AND locked_until IS NOT NULL AND locked_until <= ?)
		ORDER BY run_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		entity.ScheduledTaskPending, now,
		entity.ScheduledTaskRunning, now,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.ScheduledTask, 0)
	for rows.Next() {
		item := &entity.ScheduledTask{}
		if err := scanScheduledTask(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Claim takes the lease on a task observed with the given status and attempt count.
// Only one worker can win the claim for a given observation.
func (r *ScheduledTaskRepository) Claim(ctx context.Context, task *entity.ScheduledTask, lockedUntil, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET status = ?, attempts = attempts + 1, locked_until = ?, updated_at = ?
		WHERE id = ? AND status = ? AND attempts = ?
	`,
		entity.ScheduledTaskRunning, lockedUntil, now,
		task.ID, task.Status, task.Attempts,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkDone and the other finishers only apply while the caller still holds the lease it claimed
// at attempt. They report false when another worker reclaimed the task in the meantime.
func (r *ScheduledTaskRepository) MarkDone(ctx context.Context, id uint64, attempt int32, now time.Time) (bool, error) {
	return r.finish(ctx, `
		UPDATE scheduled_tasks
		SET status = ?, locked_until = NULL, last_error = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND attempts = ?
	`, entity.ScheduledTaskDone, now, id, entity.ScheduledTaskRunning, attempt)
}

func (r *ScheduledTaskRepository) MarkRetry(ctx context.Context, id uint64, attempt int32, runAt time.Time, lastErr string, now time.Time) (bool, error) {
	return r.finish(ctx, `
		UPDATE scheduled_tasks
		SET status = ?, run_at = ?, locked_until = NULL, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND attempts = ?
	`, entity.ScheduledTaskPending, runAt, truncate(lastErr, 1024), now, id, entity.ScheduledTaskRunning, attempt)
}

func (r *ScheduledTaskRepository) MarkFailed(ctx context.Context, id uint64, attempt int32, lastErr string, now time.Time) (bool, error) {
	return r.finish(ctx, `
		UPDATE scheduled_tasks
		SET status = ?, locked_until = NULL, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ? AND attempts = ?
	`, entity.ScheduledTaskFailed, truncate(lastErr, 1024), now, id, entity.ScheduledTaskRunning, attempt)
}

func (r *ScheduledTaskRepository) finish(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanScheduledTask(scan rowScanner, task *entity.ScheduledTask) error {
	var lockedUntil sql.NullTime
	var lastError sql.NullString

	if err := scan.Scan(
		&task.ID,
		&task.Name,
		&task.TaskKey,
		&task.PayloadJSON,
		&task.Status,
		&task.Attempts,
		&task.MaxAttempts,
		&task.RunAt,
		&lockedUntil,
		&lastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return err
	}

	task.LockedUntil = timePtrFromNull(lockedUntil)
	task.LastError = stringPtrFromNull(lastError)
	return nil
}
