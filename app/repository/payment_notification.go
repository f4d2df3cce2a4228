package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
)

type PaymentNotificationRepository struct {
	db DBTX
}

func NewPaymentNotificationRepository(db DBTX) *PaymentNotificationRepository {
	return &PaymentNotificationRepository{db: db}
}

func (r *PaymentNotificationRepository) Create(ctx context.Context, n *entity.PaymentNotification) error {
	query := `
		INSERT INTO payment_notifications (
			transaction_id, order_id, transaction_status, gateway_transaction_id, status_code,
			gross_amount, payment_type, transaction_time, settlement_time, signature_key,
			raw_payload, is_processed, processed_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		n.TransactionID,
		n.OrderID,
		n.TransactionStatus,
		n.GatewayTransactionID,
		n.StatusCode,
		n.GrossAmount,
		n.PaymentType,
		nullableTimeValue(n.TransactionTime),
		nullableTimeValue(n.SettlementTime),
		nullableStringValue(n.SignatureKey),
		n.RawPayload,
		n.IsProcessed,
		nullableTimeValue(n.ProcessedAt),
		n.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)

	return nil
}

func (r *PaymentNotificationRepository) ListByOrderID(ctx context.Context, orderID string, limit int32) ([]*entity.PaymentNotification, error) {
	query := `
		SELECT id, transaction_id, order_id, transaction_status, gateway_transaction_id, status_code,
			gross_amount, payment_type, transaction_time, settlement_time, signature_key,
			raw_payload, is_processed, processed_at, created_at
		FROM payment_notifications
		WHERE order_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentNotification, 0)
	for rows.Next() {
		var transactionTime, settlementTime, processedAt sql.NullTime
		var signatureKey sql.NullString

		item := &entity.PaymentNotification{}
		if err := rows.Scan(
			&item.ID,
			&item.TransactionID,
			&item.OrderID,
			&item.TransactionStatus,
			&item.GatewayTransactionID,
			&item.StatusCode,
			&item.GrossAmount,
			&item.PaymentType,
			&transactionTime,
			&settlementTime,
			&signatureKey,
			&item.RawPayload,
			&item.IsProcessed,
			&processedAt,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.TransactionTime = timePtrFromNull(transactionTime)
		item.SettlementTime = timePtrFromNull(settlementTime)
		item.SignatureKey = stringPtrFromNull(signatureKey)
		item.ProcessedAt = timePtrFromNull(processedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
