// Package tasks implements a MySQL-backed queue of delayed, retried actions.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrTaskNotRegistered = errors.New("task is not registered")
	ErrInvalidTask       = errors.New("invalid task registration")
)

// Handler processes one task payload. Returning an error schedules a retry unless it wraps ErrPermanent.
type Handler func(ctx context.Context, payload []byte) error

// BackoffPolicy returns the delay before the given retry attempt (1-based).
type BackoffPolicy func(attempt int32) time.Duration

type Registration struct {
	Name        string
	Handler     Handler
	MaxAttempts int32
	Backoff     BackoffPolicy
}

type Registry struct {
	items map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Registration)}
}

func (r *Registry) Register(reg Registration) error {
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Name == "" || reg.Handler == nil {
		return ErrInvalidTask
	}
	if _, exists := r.items[reg.Name]; exists {
		return fmt.Errorf("%w: %s already registered", ErrInvalidTask, reg.Name)
	}
	if reg.MaxAttempts <= 0 {
		reg.MaxAttempts = 1
	}
	if reg.Backoff == nil {
		reg.Backoff = ExponentialBackoff(10*time.Second, 10*time.Minute)
	}
	r.items[reg.Name] = reg
	return nil
}

func (r *Registry) Get(name string) (Registration, bool) {
	reg, ok := r.items[name]
	return reg, ok
}

func ExponentialBackoff(base, max time.Duration) BackoffPolicy {
	return func(attempt int32) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := float64(base) * math.Pow(2, float64(attempt-1))
		if delay > float64(max) || math.IsInf(delay, 0) {
			return max
		}
		return time.Duration(delay)
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ErrPermanent marks failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent task failure")

func (e *permanentError) Is(target error) bool { return target == ErrPermanent }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Typed adapts a handler taking a decoded payload. Undecodable payloads fail permanently.
func Typed[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, raw []byte) error {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Permanent(fmt.Errorf("decode task payload: %w", err))
		}
		return fn(ctx, payload)
	}
}
