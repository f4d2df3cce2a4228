package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-course-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-course-checkout/app/lock"
	"github.com/vibast-solutions/ms-go-course-checkout/app/middleware"
	"github.com/vibast-solutions/ms-go-course-checkout/app/notification"
	"github.com/vibast-solutions/ms-go-course-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-course-checkout/app/service"
	"github.com/vibast-solutions/ms-go-course-checkout/app/types"
	"github.com/vibast-solutions/ms-go-course-checkout/config"
)

const controllerServerKey = "server-key"

type controllerTransactionRepo struct {
	items map[string]*entity.Transaction
}

func (r *controllerTransactionRepo) Create(_ context.Context, tx *entity.Transaction) error {
	tx.ID = uint64(len(r.items) + 1)
	r.items[tx.OrderID] = tx
	return nil
}

func (r *controllerTransactionRepo) FindByOrderID(_ context.Context, orderID string) (*entity.Transaction, error) {
	tx, ok := r.items[orderID]
	if !ok {
		return nil, nil
	}
	copied := *tx
	return &copied, nil
}

func (r *controllerTransactionRepo) UpdateIfStatus(_ context.Context, id uint64, expected []string, patch entity.TransactionPatch, now time.Time) (bool, error) {
	for key, tx := range r.items {
		if tx.ID != id {
			continue
		}
		for _, status := range expected {
			if tx.Status == status {
				updated := patch.Apply(*tx, now)
				r.items[key] = &updated
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *controllerTransactionRepo) ListExpiredPending(context.Context, time.Time, int32) ([]*entity.Transaction, error) {
	return nil, nil
}

type controllerNotificationRepo struct {
	items []*entity.PaymentNotification
}

func (r *controllerNotificationRepo) Create(_ context.Context, n *entity.PaymentNotification) error {
	r.items = append(r.items, n)
	return nil
}

func (r *controllerNotificationRepo) ListByOrderID(_ context.Context, orderID string, _ int32) ([]*entity.PaymentNotification, error) {
	result := make([]*entity.PaymentNotification, 0)
	for _, n := range r.items {
		if n.OrderID == orderID {
			result = append(result, n)
		}
	}
	return result, nil
}

type controllerEnrollmentRepo struct {
	existsFn func(studentID, courseID uint64) bool
	created  int
}

func (r *controllerEnrollmentRepo) Exists(_ context.Context, studentID, courseID uint64) (bool, error) {
	if r.existsFn != nil {
		return r.existsFn(studentID, courseID), nil
	}
	return false, nil
}

func (r *controllerEnrollmentRepo) CreateForPurchase(context.Context, *entity.Enrollment) (bool, error) {
	r.created++
	return r.created == 1, nil
}

type controllerCourseRepo struct{}

func (controllerCourseRepo) FindByID(_ context.Context, id uint64) (*entity.Course, error) {
	if id != 10 {
		return nil, nil
	}
	return &entity.Course{ID: 10, Title: "Go for Backend Engineers", Price: 100000}, nil
}

type controllerGateway struct {
	err error
}

func (g *controllerGateway) CreateSession(_ context.Context, input *provider.SessionInput) (*provider.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &provider.Session{Token: "snap-token", RedirectURL: "https://snap/" + input.OrderID}, nil
}

func (g *controllerGateway) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return provider.MidtransSignature(orderID, statusCode, grossAmount, controllerServerKey) == signatureKey
}

type controllerScheduler struct{}

func (controllerScheduler) Schedule(context.Context, string, string, interface{}, time.Duration) error {
	return nil
}

type controllerNotifier struct{}

func (controllerNotifier) Enqueue(context.Context, notification.EmailJob) error { return nil }

type controllerLocker struct {
	err error
}

func (l *controllerLocker) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

type harness struct {
	controller    *TransactionController
	locker        *controllerLocker
	transactions  *controllerTransactionRepo
	notifications *controllerNotificationRepo
	enrollments   *controllerEnrollmentRepo
	gateway       *controllerGateway
}

func newHarness() *harness {
	h := &harness{
		transactions:  &controllerTransactionRepo{items: map[string]*entity.Transaction{}},
		notifications: &controllerNotificationRepo{},
		enrollments:   &controllerEnrollmentRepo{},
		gateway:       &controllerGateway{},
		locker:        &controllerLocker{},
	}
	svc := service.NewTransactionService(service.Dependencies{
		Transactions:  h.transactions,
		Notifications: h.notifications,
		Enrollments:   h.enrollments,
		Courses:       controllerCourseRepo{},
		Gateway:       h.gateway,
		Scheduler:     controllerScheduler{},
		Notifier:      controllerNotifier{},
		Locker:        h.locker,
	}, config.CheckoutConfig{
		TaxRate:         decimal.RequireFromString("0.11"),
		PlatformFeeRate: decimal.RequireFromString("0.10"),
	})
	h.controller = NewTransactionController(svc)
	return h
}

func (h *harness) seedPending(orderID string, studentID uint64) {
	_ = h.transactions.Create(context.Background(), &entity.Transaction{
		OrderID:       orderID,
		StudentID:     studentID,
		CourseID:      10,
		CustomerEmail: "sari@example.com",
		GrossAmount:   111000,
		Status:        entity.TransactionStatusPending,
	})
}

func newJSONContext(method, path, body string, buyer *entity.Buyer) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	if buyer != nil {
		middleware.WithBuyer(ctx, buyer)
	}
	return ctx, rec
}

func notificationBody(orderID, status, signature string) string {
	if signature == "" {
		signature = provider.MidtransSignature(orderID, "200", "111000.00", controllerServerKey)
	}
	payload, _ := json.Marshal(map[string]string{
		"order_id":           orderID,
		"transaction_status": status,
		"transaction_id":     "gw-1",
		"status_code":        "200",
		"gross_amount":       "111000.00",
		"signature_key":      signature,
		"payment_type":       "bank_transfer",
		"transaction_time":   "2026-10-15 09:58:00",
		"settlement_time":    "2026-10-15 10:00:00",
	})
	return string(payload)
}

var sari = &entity.Buyer{ID: 7, Name: "Sari", Email: "sari@example.com"}

func TestHealth(t *testing.T) {
	h := newHarness()
	ctx, rec := newJSONContext(http.MethodGet, "/health", "", nil)

	if err := h.controller.Health(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCheckoutRequiresBuyer(t *testing.T) {
	h := newHarness()
	ctx, rec := newJSONContext(http.MethodPost, "/transactions/checkout", `{"course_id":10}`, nil)

	_ = h.controller.Checkout(ctx)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCheckoutSuccess(t *testing.T) {
	h := newHarness()
	ctx, rec := newJSONContext(http.MethodPost, "/transactions/checkout", `{"course_id":10}`, sari)

	if err := h.controller.Checkout(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SnapToken != "snap-token" || resp.BasePrice != 100000 || resp.PpnAmount != 11000 || resp.TotalAmount != 111000 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Currency != "IDR" || resp.Status != "PENDING" || resp.PlatformFee != 10000 || resp.MentorNetAmount != 90000 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Course.Id != 10 || resp.Customer.Email != "sari@example.com" || !strings.HasPrefix(resp.OrderId, "LMS-") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		setup  func(h *harness)
		status int
	}{
		{name: "malformed body", body: `{"course_id":`, status: http.StatusBadRequest},
		{name: "non positive course", body: `{"course_id":0}`, status: http.StatusBadRequest},
		{name: "unknown course", body: `{"course_id":99}`, status: http.StatusNotFound},
		{
			name: "already enrolled",
			body: `{"course_id":10}`,
			setup: func(h *harness) {
				h.enrollments.existsFn = func(uint64, uint64) bool { return true }
			},
			status: http.StatusConflict,
		},
		{
			name: "gateway failure",
			body: `{"course_id":10}`,
			setup: func(h *harness) {
				h.gateway.err = &provider.GatewayError{StatusCode: 400, Messages: []string{"transaction_details.gross_amount is not equal to the sum of item_details"}}
			},
			status: http.StatusBadRequest,
		},
		{
			name: "checkout in progress",
			body: `{"course_id":10}`,
			setup: func(h *harness) {
				h.locker.err = lock.ErrLockHeld
			},
			status: http.StatusConflict,
		},
		{
			name: "lock backend down",
			body: `{"course_id":10}`,
			setup: func(h *harness) {
				h.locker.err = fmt.Errorf("%w: connection refused", lock.ErrLockUnavailable)
			},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			if tc.setup != nil {
				tc.setup(h)
			}
			ctx, rec := newJSONContext(http.MethodPost, "/transactions/checkout", tc.body, sari)
			_ = h.controller.Checkout(ctx)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if len(h.transactions.items) != 0 {
				t.Fatal("failed checkout must not persist a transaction")
			}
		})
	}
}

func TestMidtransWebhookSettlement(t *testing.T) {
	h := newHarness()
	h.seedPending("LMS-1", 7)
	ctx, rec := newJSONContext(http.MethodPost, "/transactions/webhook/midtrans", notificationBody("LMS-1", "settlement", ""), nil)

	if err := h.controller.MidtransWebhook(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if h.transactions.items["LMS-1"].Status != entity.TransactionStatusPaid {
		t.Fatal("transaction must be PAID")
	}
	if h.enrollments.created != 1 || len(h.notifications.items) != 1 {
		t.Fatalf("expected enrollment and audit row, got %d/%d", h.enrollments.created, len(h.notifications.items))
	}
}

func TestMidtransWebhookErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "invalid json", body: `{`, status: http.StatusBadRequest},
		{name: "missing fields", body: `{"order_id":"LMS-1"}`, status: http.StatusBadRequest},
		{name: "unknown order", body: notificationBody("LMS-404", "settlement", ""), status: http.StatusNotFound},
		{name: "invalid signature", body: notificationBody("LMS-1", "settlement", "bad"), status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.seedPending("LMS-1", 7)
			ctx, rec := newJSONContext(http.MethodPost, "/transactions/webhook/midtrans", tc.body, nil)
			_ = h.controller.MidtransWebhook(ctx)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if h.transactions.items["LMS-1"].Status != entity.TransactionStatusPending {
				t.Fatal("transaction must be unchanged")
			}
		})
	}
}

func TestGetTransactionIsScopedToBuyer(t *testing.T) {
	h := newHarness()
	h.seedPending("LMS-1", 7)

	ctx, rec := newJSONContext(http.MethodGet, "/transactions/LMS-1", "", sari)
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("LMS-1")
	_ = h.controller.GetTransaction(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	ctx, rec = newJSONContext(http.MethodGet, "/transactions/LMS-1", "", &entity.Buyer{ID: 8})
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("LMS-1")
	_ = h.controller.GetTransaction(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another buyer, got %d", rec.Code)
	}
}

func TestInternalListNotifications(t *testing.T) {
	h := newHarness()
	h.seedPending("LMS-1", 7)
	webhookCtx, _ := newJSONContext(http.MethodPost, "/transactions/webhook/midtrans", notificationBody("LMS-1", "pending", ""), nil)
	_ = h.controller.MidtransWebhook(webhookCtx)

	ctx, rec := newJSONContext(http.MethodGet, "/internal/transactions/LMS-1/notifications", "", nil)
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("LMS-1")
	if err := h.controller.InternalListNotifications(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp types.ListPaymentNotificationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notifications) != 1 || resp.Notifications[0].TransactionStatus != "pending" || len(resp.Notifications[0].RawPayload) == 0 {
		t.Fatalf("unexpected notifications: %+v", resp.Notifications)
	}

	ctx, rec = newJSONContext(http.MethodGet, "/internal/transactions/LMS-404", "", nil)
	ctx.SetParamNames("orderId")
	ctx.SetParamValues("LMS-404")
	_ = h.controller.InternalGetTransaction(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
