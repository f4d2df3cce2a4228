package provider

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	midtransSandboxSnapURL    = "https://app.sandbox.midtrans.com"
	midtransProductionSnapURL = "https://app.midtrans.com"
	midtransExpiryTimeLayout  = "2006-01-02 15:04:05 -0700"
)

type MidtransConfig struct {
	ServerKey           string
	IsProduction        bool
	BaseURL             string
	FrontendCallbackURL string
	HTTPTimeout         time.Duration
}

type MidtransProvider struct {
	cfg    MidtransConfig
	client *http.Client
}

func NewMidtransProvider(cfg MidtransConfig) *MidtransProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = midtransSandboxSnapURL
		if cfg.IsProduction {
			cfg.BaseURL = midtransProductionSnapURL
		}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &MidtransProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int32  `json:"quantity"`
	Name     string `json:"name"`
}

type snapCustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

type snapExpiry struct {
	StartTime string `json:"start_time"`
	Unit      string `json:"unit"`
	Duration  int64  `json:"duration"`
}

type snapCallbacks struct {
	Finish string `json:"finish"`
}

type snapRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	ItemDetails        []snapItemDetail       `json:"item_details"`
	CustomerDetails    snapCustomerDetails    `json:"customer_details"`
	Expiry             *snapExpiry            `json:"expiry,omitempty"`
	Callbacks          *snapCallbacks         `json:"callbacks,omitempty"`
}

func (p *MidtransProvider) CreateSession(ctx context.Context, input *SessionInput) (*Session, error) {
	if strings.TrimSpace(p.cfg.ServerKey) == "" {
		return nil, errors.New("midtrans server key is not configured")
	}
	if lineItemsTotal(input.Items) != input.GrossAmount {
		return nil, ErrLineItemsMismatch
	}

	body, err := json.Marshal(p.buildSnapRequest(input))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.ServerKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Token         string   `json:"token"`
		RedirectURL   string   `json:"redirect_url"`
		ErrorMessages []string `json:"error_messages"`
	}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &payload); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("midtrans response decode failed: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		messages := payload.ErrorMessages
		if len(messages) == 0 {
			messages = []string{fmt.Sprintf("midtrans request failed: status=%d", resp.StatusCode)}
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode, Messages: messages}
	}
	if strings.TrimSpace(payload.Token) == "" {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Messages: []string{"midtrans response is missing token"}}
	}

	return &Session{Token: payload.Token, RedirectURL: payload.RedirectURL}, nil
}

func (p *MidtransProvider) buildSnapRequest(input *SessionInput) snapRequest {
	items := make([]snapItemDetail, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, snapItemDetail{ID: item.ID, Price: item.Price, Quantity: item.Quantity, Name: truncateName(item.Name)})
	}

	req := snapRequest{
		TransactionDetails: snapTransactionDetails{OrderID: input.OrderID, GrossAmount: input.GrossAmount},
		ItemDetails:        items,
		CustomerDetails:    snapCustomerDetails{FirstName: input.Customer.FirstName, Email: input.Customer.Email},
	}
	if input.Expiry.Duration > 0 {
		req.Expiry = &snapExpiry{
			StartTime: input.Expiry.StartTime.Format(midtransExpiryTimeLayout),
			Unit:      "minute",
			Duration:  expiryMinutes(input.Expiry.Duration),
		}
	}
	if callback := strings.TrimSpace(p.cfg.FrontendCallbackURL); callback != "" {
		req.Callbacks = &snapCallbacks{Finish: strings.TrimRight(callback, "/") + "/payment/finish?order_id=" + input.OrderID}
	}
	return req
}

// VerifySignature checks signatureKey against sha512(order_id + status_code + gross_amount + server_key).
// grossAmount must be the raw string from the notification, e.g. "111000.00".
func (p *MidtransProvider) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if strings.TrimSpace(p.cfg.ServerKey) == "" || strings.TrimSpace(signatureKey) == "" {
		return false
	}
	expected := MidtransSignature(orderID, statusCode, grossAmount, p.cfg.ServerKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signatureKey)))) == 1
}

func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Snap only accepts whole minutes; anything shorter is rounded up.
func expiryMinutes(d time.Duration) int64 {
	minutes := int64(math.Ceil(d.Minutes()))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= 50 {
		return name
	}
	return string(runes[:50])
}
