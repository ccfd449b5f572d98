package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/pi-pioneer-hub/apperr"
)

// PiPayment is the provider's payment resource, narrowed to the fields this
// system consumes.
type PiPayment struct {
	Identifier  string                 `json:"identifier"`
	UserUID     string                 `json:"user_uid"`
	Amount      float64                `json:"amount"`
	Memo        string                 `json:"memo"`
	Metadata    map[string]interface{} `json:"metadata"`
	ToAddress   string                 `json:"to_address"`
	FromAddress string                 `json:"from_address"`
	Status      PiPaymentStatus        `json:"status"`
	Transaction *PiTransaction         `json:"transaction,omitempty"`
}

type PiPaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

type PiTransaction struct {
	Txid     string `json:"txid"`
	Verified bool   `json:"verified"`
}

// piError is the provider's failure payload. error_message travels to the
// caller verbatim.
type piError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// PiClientInterface is the upstream Pi Platform payment API.
type PiClientInterface interface {
	CreatePayment(ctx context.Context, uid string, amount float64, memo string, metadata map[string]interface{}) (*PiPayment, error)
	ApprovePayment(ctx context.Context, paymentID string) (*PiPayment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*PiPayment, error)
}

type PiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPiClient(baseURL, apiKey string) PiClientInterface {
	return &PiClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PiClient) CreatePayment(ctx context.Context, uid string, amount float64, memo string, metadata map[string]interface{}) (*PiPayment, error) {
	body := map[string]interface{}{
		"payment": map[string]interface{}{
			"uid":      uid,
			"amount":   amount,
			"memo":     memo,
			"metadata": metadata,
		},
	}
	return p.do(ctx, http.MethodPost, "/payments", body)
}

func (p *PiClient) ApprovePayment(ctx context.Context, paymentID string) (*PiPayment, error) {
	return p.do(ctx, http.MethodPost, "/payments/"+paymentID+"/approve", nil)
}

func (p *PiClient) CompletePayment(ctx context.Context, paymentID, txid string) (*PiPayment, error) {
	return p.do(ctx, http.MethodPost, "/payments/"+paymentID+"/complete", map[string]interface{}{"txid": txid})
}

func (p *PiClient) do(ctx context.Context, method, path string, body interface{}) (*PiPayment, error) {
	if p.apiKey == "" {
		return nil, &apperr.ConfigurationError{Setting: "PI_API_KEY"}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.UpstreamUnavailable{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.UpstreamUnavailable{Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &apperr.UpstreamUnavailable{Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, raw)}
	}
	if resp.StatusCode >= 300 {
		var pe piError
		msg := string(raw)
		if err := json.Unmarshal(raw, &pe); err == nil && pe.ErrorMessage != "" {
			msg = pe.ErrorMessage
		}
		return nil, &apperr.UpstreamRejection{StatusCode: resp.StatusCode, ErrorMessage: msg}
	}

	var payment PiPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return &payment, nil
}
