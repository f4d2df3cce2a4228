package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-course-checkout/app/tasks"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
)

const TaskExpireTransaction = "transaction.expire"

type ExpireTransactionPayload struct {
	OrderID       string `json:"order_id"`
	TransactionID uint64 `json:"transaction_id"`
}

// RegisterTasks declares the deferred handlers owned by this service and their retry policy.
func (s *TransactionService) RegisterTasks(registry *tasks.Registry, cfg config.TasksConfig) error {
	return registry.Register(tasks.Registration{
		Name:        TaskExpireTransaction,
		Handler:     tasks.Typed(s.ExpireTransaction),
		MaxAttempts: cfg.ExpiryMaxAttempts,
		Backoff:     tasks.ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax),
	})
}

// ExpireTransaction moves a still-PENDING transaction to EXPIRED. Any other state is left alone,
// so a settlement that won the race is never overwritten.
func (s *TransactionService) ExpireTransaction(ctx context.Context, payload ExpireTransactionPayload) error {
	orderID := strings.TrimSpace(payload.OrderID)
	if orderID == "" {
		return tasks.Permanent(ErrInvalidRequest)
	}
	logger := factory.LoggerWithRequestContext(s.logger, ctx).WithFields(logrus.Fields{
		"order_id":       orderID,
		"transaction_id": payload.TransactionID,
	})

	tx, err := s.transactions.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if tx == nil {
		logger.Warn("Expiry fired for unknown transaction")
		return nil
	}
	if payload.TransactionID != 0 && tx.ID != payload.TransactionID {
		logger.WithField("found_transaction_id", tx.ID).Warn("Expiry payload transaction id does not match order")
	}

	_, err = s.expirePending(ctx, tx, "expiry_task")
	return err
}

func (s *TransactionService) expirePending(ctx context.Context, tx *entity.Transaction, source string) (bool, error) {
	logger := factory.LoggerWithRequestContext(s.logger, ctx).WithFields(logrus.Fields{
		"order_id": tx.OrderID,
		"source":   source,
	})
	if tx.Status != entity.TransactionStatusPending {
		logger.WithField("status", tx.Status).Debug("Transaction already settled, expiry skipped")
		return false, nil
	}

	sentinel := entity.PaymentMethodExpired
	patch := entity.StatusPatch(entity.TransactionStatusExpired).Merge(entity.TransactionPatch{
		DefaultPaymentMethod: &sentinel,
	})
	updated, err := s.transactions.UpdateIfStatus(ctx, tx.ID, []string{entity.TransactionStatusPending}, patch, s.now())
	if err != nil {
		return false, err
	}
	if !updated {
		logger.Info("Transaction changed concurrently, expiry skipped")
		return false, nil
	}

	s.metrics.ObserveTransition(entity.TransactionStatusExpired, source)
	logger.Info("Transaction expired")
	return true, nil
}
