package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("mercadopago: resource not found")
	ErrNotConfigured  = errors.New("mercadopago: access token is not configured")
	ErrUnexpectedBody = errors.New("mercadopago: unexpected response body")
)

// APIError is a non-2xx response from the MercadoPago API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: %d %s: %s", e.Status, e.Code, e.Message)
}

// AutoRecurring is the billing schedule of a preapproval.
type AutoRecurring struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	EndDate           string  `json:"end_date,omitempty"`
}

// Preapproval is a MercadoPago recurring subscription.
type Preapproval struct {
	ID                string        `json:"id"`
	Status            string        `json:"status"`
	Reason            string        `json:"reason"`
	ExternalReference string        `json:"external_reference"`
	PayerID           int64         `json:"payer_id"`
	PayerEmail        string        `json:"payer_email,omitempty"`
	BackURL           string        `json:"back_url,omitempty"`
	InitPoint         string        `json:"init_point,omitempty"`
	NextPaymentDate   string        `json:"next_payment_date,omitempty"`
	AutoRecurring     AutoRecurring `json:"auto_recurring"`
}

// Payment is a single MercadoPago charge.
type Payment struct {
	ID                int64          `json:"id"`
	Status            string         `json:"status"`
	StatusDetail      string         `json:"status_detail"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	ExternalReference string         `json:"external_reference"`
	Metadata          map[string]any `json:"metadata"`
	Payer             struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"payer"`
	PointOfInteraction struct {
		TransactionData struct {
			SubscriptionID string `json:"subscription_id"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// API is the subset of the MercadoPago REST API the adapter uses.
type API interface {
	CreatePreapproval(ctx context.Context, p *Preapproval) (*Preapproval, error)
	GetPreapproval(ctx context.Context, id string) (*Preapproval, error)
	UpdatePreapproval(ctx context.Context, id string, changes map[string]any) (*Preapproval, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

// Client is a minimal MercadoPago REST client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a client. A nil httpClient uses a client with a 30s timeout.
func NewClient(baseURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), token: accessToken}
}

func (c *Client) CreatePreapproval(ctx context.Context, p *Preapproval) (*Preapproval, error) {
	var out Preapproval
	if err := c.do(ctx, http.MethodPost, "/preapproval", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPreapproval(ctx context.Context, id string) (*Preapproval, error) {
	var out Preapproval
	if err := c.do(ctx, http.MethodGet, "/preapproval/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePreapproval(ctx context.Context, id string, changes map[string]any) (*Preapproval, error) {
	var out Preapproval
	if err := c.do(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(id), changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("mercadopago: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("mercadopago: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Join(ErrUnexpectedBody, err)
		}
	}
	return nil
}
