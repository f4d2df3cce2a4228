package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-course-checkout/app/notification"
	"github.com/vibast-solutions/ms-go-course-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
)

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByOrderID(ctx context.Context, orderID string) (*entity.Transaction, error)
	UpdateIfStatus(ctx context.Context, id uint64, expected []string, patch entity.TransactionPatch, now time.Time) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
}

type notificationRepository interface {
	Create(ctx context.Context, n *entity.PaymentNotification) error
	ListByOrderID(ctx context.Context, orderID string, limit int32) ([]*entity.PaymentNotification, error)
}

type enrollmentRepository interface {
	Exists(ctx context.Context, studentID, courseID uint64) (bool, error)
	CreateForPurchase(ctx context.Context, enrollment *entity.Enrollment) (bool, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Course, error)
}

type taskScheduler interface {
	Schedule(ctx context.Context, name, key string, payload interface{}, delay time.Duration) error
}

type emailNotifier interface {
	Enqueue(ctx context.Context, job notification.EmailJob) error
}

type checkoutLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Dependencies are the collaborators of TransactionService. Notifier and Locker are optional.
type Dependencies struct {
	Transactions  transactionRepository
	Notifications notificationRepository
	Enrollments   enrollmentRepository
	Courses       courseRepository
	Gateway       provider.Gateway
	Scheduler     taskScheduler
	Notifier      emailNotifier
	Locker        checkoutLocker
	Metrics       *metrics.Metrics
}

type TransactionService struct {
	transactions  transactionRepository
	notifications notificationRepository
	enrollments   enrollmentRepository
	courses       courseRepository
	gateway       provider.Gateway
	scheduler     taskScheduler
	notifier      emailNotifier
	locker        checkoutLocker
	metrics       *metrics.Metrics
	cfg           config.CheckoutConfig
	logger        logrus.FieldLogger

	now       func() time.Time
	orderSalt func() uint32
}

func NewTransactionService(deps Dependencies, cfg config.CheckoutConfig) *TransactionService {
	if cfg.ExpiryDuration <= 0 {
		cfg.ExpiryDuration = 24 * time.Hour
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.OrderIDPrefix == "" {
		cfg.OrderIDPrefix = "LMS"
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	if cfg.NotificationsLimit <= 0 {
		cfg.NotificationsLimit = 100
	}

	return &TransactionService{
		transactions:  deps.Transactions,
		notifications: deps.Notifications,
		enrollments:   deps.Enrollments,
		courses:       deps.Courses,
		gateway:       deps.Gateway,
		scheduler:     deps.Scheduler,
		notifier:      deps.Notifier,
		locker:        deps.Locker,
		metrics:       deps.Metrics,
		cfg:           cfg,
		logger:        factory.NewModuleLogger("transaction-service"),
		now:           func() time.Time { return time.Now().UTC() },
		orderSalt:     func() uint32 { return rand.Uint32N(0x10000) },
	}
}

// enqueueEmail never fails the caller; delivery retries belong to the mail pipeline.
func (s *TransactionService) enqueueEmail(ctx context.Context, job notification.EmailJob) {
	if s.notifier == nil || job.To == "" {
		return
	}
	if err := s.notifier.Enqueue(ctx, job); err != nil {
		s.metrics.ObserveEmailJob(job.Template, "failed")
		factory.LoggerWithRequestContext(s.logger, ctx).WithError(err).WithFields(logrus.Fields{
			"template": job.Template,
			"order_id": job.Data["order_id"],
		}).Warn("Failed to enqueue email job")
		return
	}
	s.metrics.ObserveEmailJob(job.Template, "published")
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
