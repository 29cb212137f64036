package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamprime-wallet-go/internal/models"
)

const (
	testKeyId     = "rzp_test_key"
	testKeySecret = "rzp_test_secret"
)

// fakeRazorpay is an in-memory stand-in for the provider REST API
type fakeRazorpay struct {
	mu       sync.Mutex
	orders   map[string]models.ProviderOrder
	payments map[string][]models.ProviderPayment
	seq      int
	failNext bool
}

func newFakeRazorpay(t *testing.T) (*fakeRazorpay, *httptest.Server) {
	t.Helper()
	fake := &fakeRazorpay{
		orders:   make(map[string]models.ProviderOrder),
		payments: make(map[string][]models.ProviderPayment),
	}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeRazorpay) addPayment(orderId string, payment models.ProviderPayment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment.OrderId = orderId
	f.payments[orderId] = append(f.payments[orderId], payment)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProviderError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "description": description},
	})
}

func (f *fakeRazorpay) serve(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != testKeyId || pass != testKeySecret {
		writeProviderError(w, http.StatusUnauthorized, "BAD_REQUEST_ERROR", "Authentication failed")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/orders":
		if f.failNext {
			f.failNext = false
			writeProviderError(w, http.StatusInternalServerError, "SERVER_ERROR", "The server encountered an error")
			return
		}
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProviderError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", err.Error())
			return
		}
		f.seq++
		order := models.ProviderOrder{
			Id:        fmt.Sprintf("order_%04d", f.seq),
			Entity:    "order",
			Amount:    req.Amount,
			AmountDue: req.Amount,
			Currency:  req.Currency,
			Receipt:   req.Receipt,
			Status:    "created",
			Notes:     req.Notes,
			CreatedAt: time.Now().Unix(),
		}
		f.orders[order.Id] = order
		writeJSON(w, http.StatusOK, order)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/orders/") && strings.HasSuffix(r.URL.Path, "/payments"):
		orderId := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/orders/"), "/payments")
		if _, ok := f.orders[orderId]; !ok {
			writeProviderError(w, http.StatusNotFound, "BAD_REQUEST_ERROR", "The id provided does not exist")
			return
		}
		items := f.payments[orderId]
		writeJSON(w, http.StatusOK, map[string]any{"entity": "collection", "count": len(items), "items": items})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/payments/"):
		paymentId := strings.TrimPrefix(r.URL.Path, "/payments/")
		for _, list := range f.payments {
			for _, p := range list {
				if p.Id == paymentId {
					writeJSON(w, http.StatusOK, p)
					return
				}
			}
		}
		writeProviderError(w, http.StatusNotFound, "BAD_REQUEST_ERROR", "The id provided does not exist")

	default:
		writeProviderError(w, http.StatusNotFound, "BAD_REQUEST_ERROR", "The requested URL was not found on the server")
	}
}

func newTestRazorpayClient(t *testing.T, baseURL, keyId, keySecret string) *RazorpayClient {
	t.Helper()
	client, err := NewRazorpayClient(models.GatewayConfig{
		BaseURL:   baseURL,
		KeyId:     keyId,
		KeySecret: keySecret,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestRazorpayClient_CreateOrder(t *testing.T) {
	_, server := newFakeRazorpay(t)
	client := newTestRazorpayClient(t, server.URL, testKeyId, testKeySecret)

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:         10000,
		Currency:       models.Currency,
		Receipt:        "rcpt_test",
		Notes:          map[string]string{"type": "wallet_recharge"},
		PaymentCapture: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "order_0001", order.Id)
	assert.Equal(t, int64(10000), order.Amount)
	assert.Equal(t, "rcpt_test", order.Receipt)
	assert.Equal(t, "wallet_recharge", order.Notes["type"])
}

func TestRazorpayClient_ErrorEnvelope(t *testing.T) {
	_, server := newFakeRazorpay(t)
	client := newTestRazorpayClient(t, server.URL, testKeyId, "wrong")

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: models.Currency})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", perr.Code)
	assert.Equal(t, "Authentication failed", perr.Description)
}

func TestRazorpayClient_FetchOrderPayments(t *testing.T) {
	fake, server := newFakeRazorpay(t)
	client := newTestRazorpayClient(t, server.URL, testKeyId, testKeySecret)
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, OrderRequest{Amount: 5000, Currency: models.Currency})
	require.NoError(t, err)
	fake.addPayment(order.Id, models.ProviderPayment{Id: "pay_1", Amount: 5000, Status: "failed"})
	fake.addPayment(order.Id, models.ProviderPayment{Id: "pay_2", Amount: 5000, Status: "captured"})

	payments, err := client.FetchOrderPayments(ctx, order.Id)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.False(t, payments[0].Captured())
	assert.True(t, payments[1].Captured())

	payment, err := client.FetchPayment(ctx, "pay_2")
	require.NoError(t, err)
	assert.Equal(t, order.Id, payment.OrderId)

	_, err = client.FetchPayment(ctx, "pay_missing")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
}
