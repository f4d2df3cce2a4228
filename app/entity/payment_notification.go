package entity

import "time"

// PaymentNotification is the append-only audit record of one gateway webhook delivery.
type PaymentNotification struct {
	ID            uint64
	TransactionID uint64
	OrderID       string

	TransactionStatus    string
	GatewayTransactionID string
	StatusCode           string
	GrossAmount          int64
	PaymentType          string
	TransactionTime      *time.Time
	SettlementTime       *time.Time
	SignatureKey         *string
	RawPayload           string

	IsProcessed bool
	ProcessedAt *time.Time
	CreatedAt   time.Time
}
