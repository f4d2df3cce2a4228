package provider

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrLineItemsMismatch = errors.New("line item total does not match gross amount")

type LineItem struct {
	ID       string
	Name     string
	Price    int64
	Quantity int32
}

type Customer struct {
	FirstName string
	Email     string
}

type Expiry struct {
	StartTime time.Time
	Duration  time.Duration
}

type SessionInput struct {
	OrderID     string
	GrossAmount int64
	Items       []LineItem
	Customer    Customer
	Expiry      Expiry
}

type Session struct {
	Token       string
	RedirectURL string
}

// GatewayError is returned when the gateway answers with a non-success status.
type GatewayError struct {
	StatusCode int
	Messages   []string
}

func (e *GatewayError) Error() string {
	if len(e.Messages) == 0 {
		return "gateway request failed"
	}
	return strings.Join(e.Messages, "; ")
}

type Gateway interface {
	CreateSession(ctx context.Context, input *SessionInput) (*Session, error)
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

func lineItemsTotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}
