package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/lock"
	"github.com/vibast-solutions/ms-go-course-checkout/app/notification"
	"github.com/vibast-solutions/ms-go-course-checkout/app/pricing"
	"github.com/vibast-solutions/ms-go-course-checkout/app/provider"
)

type checkoutRequest interface {
	GetCourseId() int64
	GetTestExpirySeconds() int64
}

type CheckoutResult struct {
	Transaction *entity.Transaction
	Course      *entity.Course
	Buyer       *entity.Buyer
	Currency    string
}

func (s *TransactionService) Checkout(ctx context.Context, buyer *entity.Buyer, req checkoutRequest) (*CheckoutResult, error) {
	if buyer == nil || buyer.ID == 0 || req.GetCourseId() <= 0 || req.GetTestExpirySeconds() < 0 {
		return nil, ErrInvalidRequest
	}
	courseID := uint64(req.GetCourseId())
	logger := factory.LoggerWithRequestContext(s.logger, ctx).WithFields(logrus.Fields{
		"student_id": buyer.ID,
		"course_id":  courseID,
	})

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		s.metrics.ObserveCheckout("course_not_found")
		return nil, ErrCourseNotFound
	}

	enrolled, err := s.enrollments.Exists(ctx, buyer.ID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		s.metrics.ObserveCheckout("already_enrolled")
		return nil, ErrAlreadyEnrolled
	}

	release, err := s.acquireCheckoutLock(ctx, buyer.ID, courseID)
	if err != nil {
		return nil, err
	}
	defer release()

	breakdown := pricing.Calculate(course.Price, pricing.Rates{
		TaxRate:         s.cfg.TaxRate,
		PlatformFeeRate: s.cfg.PlatformFeeRate,
	})
	now := s.now()
	orderID := s.newOrderID(now)
	expiresAt := now.Add(s.expiryDuration(req.GetTestExpirySeconds()))
	customerName := strings.TrimSpace(buyer.Name)
	if customerName == "" {
		customerName = buyer.Email
	}

	session, err := s.createGatewaySession(ctx, &provider.SessionInput{
		OrderID:     orderID,
		GrossAmount: breakdown.TotalAmount,
		Items: []provider.LineItem{
			{ID: fmt.Sprintf("course-%d", course.ID), Name: course.Title, Price: breakdown.BasePrice, Quantity: 1},
			{ID: "tax", Name: "PPN", Price: breakdown.TaxAmount, Quantity: 1},
		},
		Customer: provider.Customer{FirstName: customerName, Email: buyer.Email},
		Expiry:   provider.Expiry{StartTime: now, Duration: expiresAt.Sub(now)},
	})
	if err != nil {
		s.metrics.ObserveCheckout("gateway_error")
		logger.WithError(err).WithField("order_id", orderID).Warn("Gateway session creation failed")
		return nil, err
	}

	tx := &entity.Transaction{
		OrderID:             orderID,
		StudentID:           buyer.ID,
		CourseID:            course.ID,
		CustomerName:        customerName,
		CustomerEmail:       buyer.Email,
		BasePrice:           breakdown.BasePrice,
		TaxAmount:           breakdown.TaxAmount,
		TaxRate:             s.cfg.TaxRate,
		PlatformFee:         breakdown.PlatformFee,
		PlatformFeeRate:     s.cfg.PlatformFeeRate,
		MentorNetAmount:     breakdown.MentorNetAmount,
		GrossAmount:         breakdown.TotalAmount,
		GatewaySessionToken: session.Token,
		GatewayRedirectURL:  session.RedirectURL,
		Status:              entity.TransactionStatusPending,
		ExpiredAt:           expiresAt,
		TransactionDate:     now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		s.metrics.ObserveCheckout("error")
		return nil, err
	}

	if err := s.scheduler.Schedule(ctx, TaskExpireTransaction, tx.OrderID, ExpireTransactionPayload{
		OrderID:       tx.OrderID,
		TransactionID: tx.ID,
	}, expiresAt.Sub(now)); err != nil {
		logger.WithError(err).WithField("order_id", tx.OrderID).Error("Failed to schedule transaction expiry")
	}

	s.enqueueEmail(ctx, notification.EmailJob{
		Template: notification.TemplatePaymentInstructions,
		To:       buyer.Email,
		Name:     customerName,
		Data: map[string]string{
			"order_id":     tx.OrderID,
			"course_title": course.Title,
			"total_amount": strconv.FormatInt(tx.GrossAmount, 10),
			"currency":     s.cfg.Currency,
			"redirect_url": tx.GatewayRedirectURL,
			"expires_at":   tx.ExpiredAt.Format(time.RFC3339),
		},
	})

	s.metrics.ObserveCheckout("success")
	logger.WithField("order_id", tx.OrderID).Info("Checkout created")

	return &CheckoutResult{
		Transaction: tx,
		Course:      course,
		Buyer:       &entity.Buyer{ID: buyer.ID, Name: customerName, Email: buyer.Email},
		Currency:    s.cfg.Currency,
	}, nil
}

func (s *TransactionService) acquireCheckoutLock(ctx context.Context, studentID, courseID uint64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, lock.CheckoutKey(studentID, courseID))
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			s.metrics.ObserveLock("held")
			return nil, ErrCheckoutInProgress
		}
		s.metrics.ObserveLock("error")
		if errors.Is(err, lock.ErrLockUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
		}
		return nil, err
	}
	s.metrics.ObserveLock("acquired")
	return release, nil
}

// createGatewaySession bounds the gateway call and folds every failure into ErrGatewayFailure.
func (s *TransactionService) createGatewaySession(ctx context.Context, input *provider.SessionInput) (*provider.Session, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	session, err := s.gateway.CreateSession(callCtx, input)
	if err != nil {
		s.metrics.ObserveGatewayRequest("error", time.Since(start))
		var gatewayErr *provider.GatewayError
		switch {
		case errors.As(err, &gatewayErr):
			return nil, fmt.Errorf("%w: %s", ErrGatewayFailure, gatewayErr.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: request timed out", ErrGatewayFailure)
		default:
			return nil, fmt.Errorf("%w: %s", ErrGatewayFailure, err.Error())
		}
	}
	s.metrics.ObserveGatewayRequest("success", time.Since(start))
	if session == nil || session.Token == "" {
		return nil, fmt.Errorf("%w: empty session", ErrGatewayFailure)
	}
	return session, nil
}

func (s *TransactionService) expiryDuration(testExpirySeconds int64) time.Duration {
	if testExpirySeconds > 0 {
		return time.Duration(testExpirySeconds) * time.Second
	}
	return s.cfg.ExpiryDuration
}

// newOrderID formats PREFIX-<epoch-ms>-<4 upper hex>.
func (s *TransactionService) newOrderID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%04X", s.cfg.OrderIDPrefix, now.UnixMilli(), s.orderSalt()&0xFFFF)
}
