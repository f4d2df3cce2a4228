package types

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxNotificationBytes = 64 << 10

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CheckoutRequest struct {
	CourseId          int64  `json:"course_id"`
	TestExpirySeconds *int64 `json:"test_expiry_seconds,omitempty"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *CheckoutRequest) GetCourseId() int64 {
	return r.CourseId
}

func (r *CheckoutRequest) GetTestExpirySeconds() int64 {
	if r.TestExpirySeconds == nil {
		return 0
	}
	return *r.TestExpirySeconds
}

func (r *CheckoutRequest) Validate() error {
	if r.GetCourseId() <= 0 {
		return errors.New("course_id must be a positive integer")
	}
	if r.TestExpirySeconds != nil && *r.TestExpirySeconds <= 0 {
		return errors.New("test_expiry_seconds must be a positive integer")
	}
	return nil
}

type CheckoutCourse struct {
	Id    uint64 `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

type CheckoutCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CheckoutResponse struct {
	OrderId         string           `json:"orderId"`
	SnapToken       string           `json:"snapToken"`
	RedirectUrl     string           `json:"redirectUrl"`
	BasePrice       int64            `json:"basePrice"`
	PpnAmount       int64            `json:"ppnAmount"`
	TotalAmount     int64            `json:"totalAmount"`
	Currency        string           `json:"currency"`
	Status          string           `json:"status"`
	ExpiresAt       string           `json:"expiresAt"`
	PlatformFee     int64            `json:"platformFee"`
	MentorNetAmount int64            `json:"mentorNetAmount"`
	Course          CheckoutCourse   `json:"course"`
	Customer        CheckoutCustomer `json:"customer"`
}

// MidtransNotificationRequest is the gateway's HTTP notification body. The raw bytes are kept
// for the audit trail.
type MidtransNotificationRequest struct {
	OrderId           string      `json:"order_id"`
	TransactionStatus string      `json:"transaction_status"`
	TransactionId     string      `json:"transaction_id"`
	StatusCode        string      `json:"status_code"`
	GrossAmount       json.Number `json:"gross_amount"`
	SignatureKey      string      `json:"signature_key"`
	PaymentType       string      `json:"payment_type"`
	TransactionTime   string      `json:"transaction_time"`
	SettlementTime    string      `json:"settlement_time,omitempty"`
	FraudStatus       string      `json:"fraud_status,omitempty"`

	raw []byte
}

func NewMidtransNotificationRequestFromContext(ctx echo.Context) (*MidtransNotificationRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxNotificationBytes))
	if err != nil {
		return nil, err
	}

	var body MidtransNotificationRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body.OrderId = strings.TrimSpace(body.OrderId)
	body.TransactionStatus = strings.TrimSpace(body.TransactionStatus)
	body.TransactionId = strings.TrimSpace(body.TransactionId)
	body.StatusCode = strings.TrimSpace(body.StatusCode)
	body.SignatureKey = strings.TrimSpace(body.SignatureKey)
	body.PaymentType = strings.TrimSpace(body.PaymentType)
	body.raw = raw

	return &body, nil
}

func (r *MidtransNotificationRequest) GetOrderId() string           { return r.OrderId }
func (r *MidtransNotificationRequest) GetTransactionStatus() string { return r.TransactionStatus }
func (r *MidtransNotificationRequest) GetTransactionId() string     { return r.TransactionId }
func (r *MidtransNotificationRequest) GetStatusCode() string        { return r.StatusCode }
func (r *MidtransNotificationRequest) GetGrossAmount() string       { return r.GrossAmount.String() }
func (r *MidtransNotificationRequest) GetSignatureKey() string      { return r.SignatureKey }
func (r *MidtransNotificationRequest) GetPaymentType() string       { return r.PaymentType }
func (r *MidtransNotificationRequest) GetTransactionTime() string   { return r.TransactionTime }
func (r *MidtransNotificationRequest) GetSettlementTime() string    { return r.SettlementTime }
func (r *MidtransNotificationRequest) GetRawPayload() []byte        { return r.raw }

func (r *MidtransNotificationRequest) Validate() error {
	if r.GetOrderId() == "" {
		return errors.New("order_id is required")
	}
	if r.GetTransactionStatus() == "" {
		return errors.New("transaction_status is required")
	}
	if r.GetStatusCode() == "" {
		return errors.New("status_code is required")
	}
	if r.GetGrossAmount() == "" {
		return errors.New("gross_amount is required")
	}
	return nil
}

type WebhookResponse struct {
	Success bool `json:"success"`
}

type GetTransactionRequest struct {
	OrderId string
}

func NewGetTransactionRequestFromContext(ctx echo.Context) *GetTransactionRequest {
	return &GetTransactionRequest{OrderId: strings.TrimSpace(ctx.Param("orderId"))}
}

func (r *GetTransactionRequest) Validate() error {
	if r.OrderId == "" {
		return errors.New("order id is required")
	}
	return nil
}

type TransactionResponse struct {
	OrderId         string  `json:"orderId"`
	StudentId       uint64  `json:"studentId"`
	CourseId        uint64  `json:"courseId"`
	Status          string  `json:"status"`
	PaymentMethod   string  `json:"paymentMethod,omitempty"`
	BasePrice       int64   `json:"basePrice"`
	PpnAmount       int64   `json:"ppnAmount"`
	PpnRate         string  `json:"ppnRate"`
	TotalAmount     int64   `json:"totalAmount"`
	PlatformFee     int64   `json:"platformFee"`
	PlatformFeeRate string  `json:"platformFeeRate"`
	MentorNetAmount int64   `json:"mentorNetAmount"`
	SnapToken       string  `json:"snapToken"`
	RedirectUrl     string  `json:"redirectUrl"`
	PaidAt          *string `json:"paidAt"`
	ExpiresAt       string  `json:"expiresAt"`
	TransactionDate string  `json:"transactionDate"`
	UpdatedAt       string  `json:"updatedAt"`
}

type PaymentNotificationResponse struct {
	Id                   uint64          `json:"id"`
	OrderId              string          `json:"orderId"`
	TransactionStatus    string          `json:"transactionStatus"`
	GatewayTransactionId string          `json:"gatewayTransactionId"`
	StatusCode           string          `json:"statusCode"`
	GrossAmount          int64           `json:"grossAmount"`
	PaymentType          string          `json:"paymentType"`
	TransactionTime      *string         `json:"transactionTime"`
	SettlementTime       *string         `json:"settlementTime"`
	IsProcessed          bool            `json:"isProcessed"`
	ProcessedAt          *string         `json:"processedAt"`
	CreatedAt            string          `json:"createdAt"`
	RawPayload           json.RawMessage `json:"rawPayload,omitempty"`
}

type ListPaymentNotificationsResponse struct {
	Notifications []*PaymentNotificationResponse `json:"notifications"`
}
