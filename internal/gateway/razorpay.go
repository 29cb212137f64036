package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/transport"
)

const DefaultBaseURL = "https://api.razorpay.com/v1"

// Provider is the payment provider REST surface the adapter depends on
type Provider interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*models.ProviderOrder, error)
	FetchPayment(ctx context.Context, paymentId string) (*models.ProviderPayment, error)
	FetchOrderPayments(ctx context.Context, orderId string) ([]models.ProviderPayment, error)
}

// OrderRequest is the body of an order creation. Amount is in paise.
type OrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	Notes          map[string]string `json:"notes,omitempty"`
	PaymentCapture int               `json:"payment_capture"`
}

// ProviderError is a non-2xx answer from the provider
type ProviderError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d %s: %s", e.StatusCode, e.Code, e.Description)
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type paymentCollection struct {
	Entity string                   `json:"entity"`
	Count  int                      `json:"count"`
	Items  []models.ProviderPayment `json:"items"`
}

// RazorpayClient talks to the Razorpay REST API with basic auth
type RazorpayClient struct {
	http *resty.Client
}

func NewRazorpayClient(cfg models.GatewayConfig) (*RazorpayClient, error) {
	httpClient, err := transport.NewHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(cfg.KeyId, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &RazorpayClient{http: client}, nil
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (*models.ProviderOrder, error) {
	var order models.ProviderOrder
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&order).
		SetError(&errorEnvelope{}).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("unable to create order: %w", err)
	}
	if resp.IsError() {
		return nil, providerError(resp)
	}
	return &order, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentId string) (*models.ProviderPayment, error) {
	var payment models.ProviderPayment
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", paymentId).
		SetResult(&payment).
		SetError(&errorEnvelope{}).
		Get("/payments/{id}")
	if err != nil {
		return nil, fmt.Errorf("unable to fetch payment: %w", err)
	}
	if resp.IsError() {
		return nil, providerError(resp)
	}
	return &payment, nil
}

func (c *RazorpayClient) FetchOrderPayments(ctx context.Context, orderId string) ([]models.ProviderPayment, error) {
	var collection paymentCollection
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", orderId).
		SetResult(&collection).
		SetError(&errorEnvelope{}).
		Get("/orders/{id}/payments")
	if err != nil {
		return nil, fmt.Errorf("unable to fetch order payments: %w", err)
	}
	if resp.IsError() {
		return nil, providerError(resp)
	}
	return collection.Items, nil
}

func providerError(resp *resty.Response) error {
	perr := &ProviderError{StatusCode: resp.StatusCode()}
	if envelope, ok := resp.Error().(*errorEnvelope); ok && envelope != nil {
		perr.Code = envelope.Error.Code
		perr.Description = envelope.Error.Description
	}
	if perr.Description == "" {
		perr.Description = resp.Status()
	}
	return perr
}
