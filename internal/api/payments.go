package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"streamprime-wallet-go/internal/gateway"
	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/wallet"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	maxWebhookBody  = 1 << 20
)

type createOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type createOrderResponse struct {
	*models.OrderDescriptor
	Fees models.ProcessingFees `json:"fees"`
}

type verifyPaymentRequest struct {
	OrderId   string `json:"razorpay_order_id"`
	PaymentId string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type verifyPaymentResponse struct {
	Transaction models.TransactionRecord `json:"transaction"`
	Balance     decimal.Decimal          `json:"wallet_balance"`
	Replayed    bool                     `json:"replayed"`
}

type balanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func (s *WalletService) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, &models.ValidationError{Field: "amount", Message: "must be a number"})
		return
	}

	order, err := s.gateway.CreateRechargeOrder(r.Context(), accountIdFrom(r), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, createOrderResponse{
		OrderDescriptor: order,
		Fees:            gateway.CalculateProcessingFees(order.Amount),
	})
}

func (s *WalletService) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, &models.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}

	entry, err := s.gateway.VerifyClientProof(r.Context(), req.OrderId, req.PaymentId, req.Signature)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.ledger.Balance(r.Context(), entry.AccountId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, verifyPaymentResponse{
		Transaction: wallet.ToRecord(*entry),
		Balance:     balance,
		Replayed:    entry.Replayed,
	})
}

// handleWebhook verifies the signature over the exact bytes received, so the
// body is read raw and never re-encoded.
func (s *WalletService) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, &models.ValidationError{Field: "body", Message: "too large"})
			return
		}
		writeError(w, r, err)
		return
	}

	ack, err := s.gateway.VerifyWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		zap.L().Warn("Webhook rejected", zap.Error(err))
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ack)
}

func (s *WalletService) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.Balance(r.Context(), accountIdFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, balanceResponse{Balance: balance, Currency: models.Currency})
}

func (s *WalletService) handleTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	history, err := s.ledger.History(r.Context(), accountIdFrom(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, history)
}

func (s *WalletService) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.Stats(r.Context(), accountIdFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// queryInt returns 0 for a missing or malformed value; callers apply their own defaults
func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
