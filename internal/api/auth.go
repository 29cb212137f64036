package api

import (
	"net/http"

	"streamprime-wallet-go/internal/models"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
)

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"otp"`
}

type profileResponse struct {
	Account *models.Account `json:"user"`
	Balance decimal.Decimal `json:"wallet_balance"`
}

type loginResponse struct {
	*models.Credential
	profileResponse
}

func (s *WalletService) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "unavailable"})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *WalletService) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, &models.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}

	receipt, err := s.session.RequestLogin(r.Context(), req.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, receipt)
}

func (s *WalletService) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, &models.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	if req.Code == "" {
		writeError(w, r, &models.ValidationError{Field: "otp", Message: "is required"})
		return
	}

	credential, err := s.session.VerifyLogin(r.Context(), req.Phone, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.profile(r, credential.AccountId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, loginResponse{Credential: credential, profileResponse: *profile})
}

func (s *WalletService) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.profile(r, accountIdFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, profile)
}

func (s *WalletService) profile(r *http.Request, accountId string) (*profileResponse, error) {
	account, err := s.store.GetAccountById(r.Context(), accountId)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(r.Context(), accountId)
	if err != nil {
		return nil, err
	}
	return &profileResponse{Account: account, Balance: balance}, nil
}
