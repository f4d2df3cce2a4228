package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusPending  = "PENDING"
	TransactionStatusPaid     = "PAID"
	TransactionStatusExpired  = "EXPIRED"
	TransactionStatusRefunded = "REFUNDED"
)

// PaymentMethodExpired is recorded on transactions that expire before any payment method was reported.
const PaymentMethodExpired = "expired"

type Transaction struct {
	ID uint64

	OrderID   string
	StudentID uint64
	CourseID  uint64

	CustomerName  string
	CustomerEmail string

	BasePrice       int64
	TaxAmount       int64
	TaxRate         decimal.Decimal
	PlatformFee     int64
	PlatformFeeRate decimal.Decimal
	MentorNetAmount int64
	GrossAmount     int64

	GatewaySessionToken string
	GatewayRedirectURL  string

	Status        string
	PaymentMethod *string
	PaidAt        *time.Time
	ExpiredAt     time.Time

	TransactionDate time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllowedSourceStatuses lists the states a transaction may be in for a move to target to apply.
// PENDING is its own source so that non-terminal notifications can still record a payment method.
func AllowedSourceStatuses(target string) []string {
	switch target {
	case TransactionStatusPending, TransactionStatusPaid, TransactionStatusExpired:
		return []string{TransactionStatusPending}
	case TransactionStatusRefunded:
		return []string{TransactionStatusPending, TransactionStatusPaid}
	default:
		return nil
	}
}

func CanTransition(from, to string) bool {
	for _, status := range AllowedSourceStatuses(to) {
		if status == from {
			return true
		}
	}
	return false
}
