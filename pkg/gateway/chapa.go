package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrMissingSecretKey is returned by NewChapa when no secret key is
// configured; the process should fail fast rather than limp along unable to
// take payments.
var ErrMissingSecretKey = errors.New("chapa: secret key not configured")

const defaultChapaBaseURL = "https://api.chapa.co/v1"

// Chapa implements Provider against the Chapa REST API.
type Chapa struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

func NewChapa(baseURL, secretKey string, log *zap.Logger) (*Chapa, error) {
	if secretKey == "" {
		return nil, ErrMissingSecretKey
	}
	if baseURL == "" {
		baseURL = defaultChapaBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Chapa{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}, nil
}

type chapaEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chapaInitiateReq struct {
	Amount      string         `json:"amount,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Email       string         `json:"email,omitempty"`
	FirstName   string         `json:"first_name,omitempty"`
	LastName    string         `json:"last_name,omitempty"`
	PhoneNumber string         `json:"phone_number,omitempty"`
	TxRef       string         `json:"tx_ref,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	ReturnURL   string         `json:"return_url,omitempty"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type chapaInitiateData struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

type chapaVerifyData struct {
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	TxRef     string          `json:"tx_ref"`
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func (c *Chapa) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	first, last := SplitName(req.Customer.Name)
	payload := chapaInitiateReq{
		Amount:      req.Amount.String(),
		Currency:    req.Currency,
		Email:       req.Customer.Email,
		FirstName:   first,
		LastName:    last,
		PhoneNumber: req.Customer.Phone,
		TxRef:       req.Reference,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Description: fmt.Sprintf("Payment for booking %d", req.BookingID),
		// Opaque metadata, passed through unmodified by the gateway.
		Meta: map[string]any{
			"booking_id":    req.BookingID,
			"customer_name": req.Customer.Name,
		},
	}
	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, &Error{Kind: ErrKindDeclined, Detail: env.Message}
	}
	var data chapaInitiateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Kind: ErrKindDecode, Detail: err.Error()}
	}
	return &InitiateResult{CheckoutURL: data.CheckoutURL, TransactionID: data.TxRef}, nil
}

func (c *Chapa) Verify(ctx context.Context, transactionID string) (*VerifyResult, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+transactionID, nil)
	if err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, &Error{Kind: ErrKindDeclined, Detail: env.Message}
	}
	var data chapaVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &Error{Kind: ErrKindDecode, Detail: err.Error()}
	}
	return &VerifyResult{
		Status:        data.Status,
		Amount:        data.Amount,
		Currency:      data.Currency,
		TransactionID: data.TxRef,
		PaymentMethod: data.Type,
		CreatedAt:     data.CreatedAt,
		UpdatedAt:     data.UpdatedAt,
	}, nil
}

func (c *Chapa) Status(ctx context.Context, transactionID string) (string, error) {
	res, err := c.Verify(ctx, transactionID)
	if err != nil {
		return "", err
	}
	return NormalizeStatus(res.Status), nil
}

func (c *Chapa) do(ctx context.Context, method, path string, payload any) (*chapaEnvelope, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Kind: ErrKindDecode, Detail: err.Error()}
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Kind: ErrKindNetwork, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("chapa request failed", zap.String("path", path), zap.Error(err))
		return nil, &Error{Kind: ErrKindNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		c.log.Error("chapa error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return nil, &Error{
			Kind:       ErrKindStatus,
			Detail:     http.StatusText(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			RawBody:    string(respBody),
		}
	}
	var env chapaEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		c.log.Error("chapa unparsable response", zap.String("path", path), zap.ByteString("body", respBody))
		return nil, &Error{Kind: ErrKindDecode, Detail: err.Error(), RawBody: string(respBody)}
	}
	return &env, nil
}
