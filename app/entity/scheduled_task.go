package entity

import "time"

const (
	ScheduledTaskPending = "PENDING"
	ScheduledTaskRunning = "RUNNING"
	ScheduledTaskDone    = "DONE"
	ScheduledTaskFailed  = "FAILED"
)

type ScheduledTask struct {
	ID uint64

	Name        string
	TaskKey     string
	PayloadJSON string

	Status      string
	Attempts    int32
	MaxAttempts int32
	RunAt       time.Time
	LockedUntil *time.Time
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
