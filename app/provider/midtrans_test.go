package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sessionInput() *SessionInput {
	return &SessionInput{
		OrderID:     "LMS-1700000000000-AB12",
		GrossAmount: 111000,
		Items: []LineItem{
			{ID: "course-7", Name: "Go Concurrency", Price: 100000, Quantity: 1},
			{ID: "tax", Name: "PPN 11%", Price: 11000, Quantity: 1},
		},
		Customer: Customer{FirstName: "Sari", Email: "sari@example.com"},
		Expiry:   Expiry{StartTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Duration: 24 * time.Hour},
	}
}

func TestVerifyMidtransSignature(t *testing.T) {
	p := NewMidtransProvider(MidtransConfig{ServerKey: "SB-Mid-server-test"})
	sig := MidtransSignature("LMS-1-ABCD", "200", "111000.00", "SB-Mid-server-test")

	if !p.VerifySignature("LMS-1-ABCD", "200", "111000.00", sig) {
		t.Fatal("expected signature to validate")
	}
	if !p.VerifySignature("LMS-1-ABCD", "200", "111000.00", strings.ToUpper(sig)) {
		t.Fatal("expected hex comparison to be case-insensitive")
	}
	if p.VerifySignature("LMS-1-ABCD", "200", "111000", sig) {
		t.Fatal("expected signature over a different amount string to fail")
	}
	if p.VerifySignature("LMS-1-ABCD", "200", "111000.00", "") {
		t.Fatal("expected empty signature to fail")
	}

	other := NewMidtransProvider(MidtransConfig{ServerKey: "another-key"})
	if other.VerifySignature("LMS-1-ABCD", "200", "111000.00", sig) {
		t.Fatal("expected signature with wrong server key to fail")
	}
}

func TestMidtransCreateSessionSuccess(t *testing.T) {
	var captured snapRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snap/v1/transactions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "server-key" || pass != "" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"snap-token-1","redirect_url":"https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token-1"}`))
	}))
	defer srv.Close()

	p := NewMidtransProvider(MidtransConfig{ServerKey: "server-key", BaseURL: srv.URL + "/", FrontendCallbackURL: "https://lms.example"})
	session, err := p.CreateSession(context.Background(), sessionInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Token != "snap-token-1" || !strings.HasSuffix(session.RedirectURL, "snap-token-1") {
		t.Fatalf("unexpected session: %+v", session)
	}
	if captured.TransactionDetails.GrossAmount != 111000 || len(captured.ItemDetails) != 2 {
		t.Fatalf("unexpected snap request: %+v", captured)
	}
	if captured.Expiry == nil || captured.Expiry.Duration != 1440 || captured.Expiry.Unit != "minute" {
		t.Fatalf("unexpected expiry: %+v", captured.Expiry)
	}
	if captured.Expiry.StartTime != "2026-03-01 10:00:00 +0000" {
		t.Fatalf("unexpected expiry start time: %s", captured.Expiry.StartTime)
	}
	if captured.Callbacks == nil || captured.Callbacks.Finish != "https://lms.example/payment/finish?order_id=LMS-1700000000000-AB12" {
		t.Fatalf("unexpected callbacks: %+v", captured.Callbacks)
	}
}

func TestMidtransCreateSessionGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.gross_amount is not equal to the sum of item_details"]}`))
	}))
	defer srv.Close()

	p := NewMidtransProvider(MidtransConfig{ServerKey: "server-key", BaseURL: srv.URL})
	_, err := p.CreateSession(context.Background(), sessionInput())

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gwErr.StatusCode != http.StatusBadRequest || !strings.Contains(gwErr.Error(), "gross_amount") {
		t.Fatalf("unexpected gateway error: %+v", gwErr)
	}
}

func TestMidtransCreateSessionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := NewMidtransProvider(MidtransConfig{ServerKey: "server-key", BaseURL: srv.URL, HTTPTimeout: 50 * time.Millisecond})
	if _, err := p.CreateSession(context.Background(), sessionInput()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestMidtransCreateSessionRejectsMismatchedItems(t *testing.T) {
	p := NewMidtransProvider(MidtransConfig{ServerKey: "server-key", BaseURL: "http://127.0.0.1:1"})
	input := sessionInput()
	input.GrossAmount = 100000

	if _, err := p.CreateSession(context.Background(), input); !errors.Is(err, ErrLineItemsMismatch) {
		t.Fatalf("expected ErrLineItemsMismatch, got %v", err)
	}
}

func TestNewMidtransProviderBaseURL(t *testing.T) {
	if p := NewMidtransProvider(MidtransConfig{}); p.cfg.BaseURL != midtransSandboxSnapURL {
		t.Fatalf("unexpected sandbox url: %s", p.cfg.BaseURL)
	}
	if p := NewMidtransProvider(MidtransConfig{IsProduction: true}); p.cfg.BaseURL != midtransProductionSnapURL {
		t.Fatalf("unexpected production url: %s", p.cfg.BaseURL)
	}
}

func TestExpiryMinutesRoundsUp(t *testing.T) {
	if got := expiryMinutes(30 * time.Second); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := expiryMinutes(90 * time.Second); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
