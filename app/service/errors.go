package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrCourseNotFound      = errors.New("course not found")
	ErrAlreadyEnrolled     = errors.New("already enrolled in this course")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrCheckoutUnavailable = errors.New("checkout temporarily unavailable")
	ErrGatewayFailure      = errors.New("payment gateway error")
	ErrTransactionNotFound = errors.New("transaction not found")
)
