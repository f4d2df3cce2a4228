package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

func (s *TransactionService) GetTransaction(ctx context.Context, orderID string) (*entity.Transaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidRequest
	}
	tx, err := s.transactions.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

// GetTransactionForBuyer hides other buyers' orders behind ErrTransactionNotFound.
func (s *TransactionService) GetTransactionForBuyer(ctx context.Context, buyer *entity.Buyer, orderID string) (*entity.Transaction, error) {
	if buyer == nil || buyer.ID == 0 {
		return nil, ErrInvalidRequest
	}
	tx, err := s.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if tx.StudentID != buyer.ID {
		return nil, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *TransactionService) ListNotifications(ctx context.Context, orderID string) ([]*entity.PaymentNotification, error) {
	tx, err := s.GetTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListByOrderID(ctx, tx.OrderID, s.cfg.NotificationsLimit)
}
