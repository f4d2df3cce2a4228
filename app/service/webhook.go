package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/notification"
)

const gatewayTimeLayout = "2006-01-02 15:04:05"

var maxGrossAmount = decimal.NewFromInt(math.MaxInt64)

// Midtrans reports wall-clock times in WIB.
var gatewayLocation = time.FixedZone("WIB", 7*60*60)

type gatewayNotification interface {
	GetOrderId() string
	GetTransactionStatus() string
	GetTransactionId() string
	GetStatusCode() string
	GetGrossAmount() string
	GetSignatureKey() string
	GetPaymentType() string
	GetTransactionTime() string
	GetSettlementTime() string
	GetRawPayload() []byte
}

type WebhookResult struct {
	Success bool
}

// HandleNotification reconciles one gateway delivery against its transaction. Deliveries may
// repeat or race the expiry task; the conditional update and the enrollment unique key keep
// the outcome identical to a single delivery.
func (s *TransactionService) HandleNotification(ctx context.Context, n gatewayNotification) (*WebhookResult, error) {
	orderID := strings.TrimSpace(n.GetOrderId())
	status := strings.TrimSpace(n.GetTransactionStatus())
	statusCode := strings.TrimSpace(n.GetStatusCode())
	grossRaw := strings.TrimSpace(n.GetGrossAmount())
	if orderID == "" || status == "" || statusCode == "" || grossRaw == "" {
		s.metrics.ObserveWebhook("invalid_payload")
		return nil, fmt.Errorf("%w: order_id, transaction_status, status_code and gross_amount are required", ErrInvalidRequest)
	}
	grossAmount, err := parseGrossAmount(grossRaw)
	if err != nil {
		s.metrics.ObserveWebhook("invalid_payload")
		return nil, err
	}

	logger := factory.LoggerWithRequestContext(s.logger, ctx).WithFields(logrus.Fields{
		"order_id":           orderID,
		"transaction_status": status,
	})

	if !s.gateway.VerifySignature(orderID, statusCode, grossRaw, strings.TrimSpace(n.GetSignatureKey())) {
		s.metrics.ObserveWebhook("invalid_signature")
		logger.Warn("Discarding notification with invalid signature")
		return &WebhookResult{Success: true}, nil
	}

	tx, err := s.transactions.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		s.metrics.ObserveWebhook("unknown_order")
		logger.Warn("Notification for unknown order")
		return nil, ErrTransactionNotFound
	}

	now := s.now()
	target, known := mapGatewayStatus(status)
	if !known {
		logger.Warn("Unexpected gateway transaction status, keeping transaction pending")
	}

	patch := entity.StatusPatch(target)
	if paymentType := strings.TrimSpace(n.GetPaymentType()); paymentType != "" {
		patch = patch.Merge(entity.TransactionPatch{PaymentMethod: &paymentType})
	}
	settlementTime := parseGatewayTime(n.GetSettlementTime())
	if target == entity.TransactionStatusPaid {
		paidAt := now
		if settlementTime != nil {
			paidAt = *settlementTime
		}
		patch = patch.Merge(entity.TransactionPatch{PaidAt: &paidAt})
	}

	updated, err := s.transactions.UpdateIfStatus(ctx, tx.ID, entity.AllowedSourceStatuses(target), patch, now)
	if err != nil {
		return nil, err
	}
	if updated {
		if tx.Status != target {
			s.metrics.ObserveTransition(target, "webhook")
			logger.WithField("from", tx.Status).WithField("to", target).Info("Transaction status changed")
		}
		applied := patch.Apply(*tx, now)
		tx = &applied
	} else {
		logger.WithField("status", tx.Status).Info("Notification left transaction unchanged")
	}

	var enrollErr error
	if target == entity.TransactionStatusPaid && tx.Status == entity.TransactionStatusPaid {
		enrollErr = s.enrollBuyer(ctx, tx, now)
	}

	if err := s.recordNotification(ctx, tx, n, grossAmount, settlementTime, now); err != nil {
		return nil, err
	}
	if enrollErr != nil {
		return nil, enrollErr
	}

	s.metrics.ObserveWebhook("processed")
	return &WebhookResult{Success: true}, nil
}

// enrollBuyer creates the enrollment at most once per (student, course); the success email
// only follows an insert that actually happened.
func (s *TransactionService) enrollBuyer(ctx context.Context, tx *entity.Transaction, now time.Time) error {
	logger := factory.LoggerWithRequestContext(s.logger, ctx).WithFields(logrus.Fields{
		"order_id":   tx.OrderID,
		"student_id": tx.StudentID,
		"course_id":  tx.CourseID,
	})

	created, err := s.enrollments.CreateForPurchase(ctx, &entity.Enrollment{
		StudentID:     tx.StudentID,
		CourseID:      tx.CourseID,
		TransactionID: tx.ID,
		EnrolledAt:    now,
	})
	if err != nil {
		return err
	}
	if !created {
		logger.Info("Buyer already enrolled, skipping enrollment")
		return nil
	}

	s.metrics.ObserveEnrollmentCreated()
	logger.Info("Enrollment created")

	data := map[string]string{
		"order_id":     tx.OrderID,
		"course_id":    strconv.FormatUint(tx.CourseID, 10),
		"total_amount": strconv.FormatInt(tx.GrossAmount, 10),
		"currency":     s.cfg.Currency,
	}
	if course, err := s.courses.FindByID(ctx, tx.CourseID); err == nil && course != nil {
		data["course_title"] = course.Title
	}
	s.enqueueEmail(ctx, notification.EmailJob{
		Template: notification.TemplatePaymentSuccess,
		To:       tx.CustomerEmail,
		Name:     tx.CustomerName,
		Data:     data,
	})
	return nil
}

func (s *TransactionService) recordNotification(
	ctx context.Context,
	tx *entity.Transaction,
	n gatewayNotification,
	grossAmount int64,
	settlementTime *time.Time,
	now time.Time,
) error {
	record := &entity.PaymentNotification{
		TransactionID:        tx.ID,
		OrderID:              tx.OrderID,
		TransactionStatus:    strings.TrimSpace(n.GetTransactionStatus()),
		GatewayTransactionID: strings.TrimSpace(n.GetTransactionId()),
		StatusCode:           strings.TrimSpace(n.GetStatusCode()),
		GrossAmount:          grossAmount,
		PaymentType:          strings.TrimSpace(n.GetPaymentType()),
		TransactionTime:      parseGatewayTime(n.GetTransactionTime()),
		SettlementTime:       settlementTime,
		RawPayload:           string(n.GetRawPayload()),
		IsProcessed:          true,
		ProcessedAt:          &now,
		CreatedAt:            now,
	}
	if signature := strings.TrimSpace(n.GetSignatureKey()); signature != "" {
		record.SignatureKey = &signature
	}
	return s.notifications.Create(ctx, record)
}

// mapGatewayStatus matches the gateway vocabulary exactly. Unknown values map to PENDING.
func mapGatewayStatus(status string) (string, bool) {
	switch status {
	case "capture", "settlement":
		return entity.TransactionStatusPaid, true
	case "pending":
		return entity.TransactionStatusPending, true
	case "deny", "cancel", "expire":
		return entity.TransactionStatusExpired, true
	case "refund":
		return entity.TransactionStatusRefunded, true
	default:
		return entity.TransactionStatusPending, false
	}
}

func parseGrossAmount(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: gross_amount is not a number", ErrInvalidRequest)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: gross_amount must be >= 0", ErrInvalidRequest)
	}
	rounded := amount.Round(0)
	if rounded.GreaterThan(maxGrossAmount) {
		return 0, fmt.Errorf("%w: gross_amount is out of range", ErrInvalidRequest)
	}
	return rounded.IntPart(), nil
}

func parseGatewayTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseInLocation(gatewayTimeLayout, raw, gatewayLocation)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}
