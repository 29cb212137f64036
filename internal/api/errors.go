package api

import (
	"errors"
	"net/http"
	"time"

	"streamprime-wallet-go/internal/models"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	ContentId string `json:"content_id,omitempty"`
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// writeError maps a service error to its HTTP status. Anything unrecognized
// is logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	body.Timestamp = time.Now().Unix()
	render.Status(r, status)
	render.JSON(w, r, body)
}

func errorStatus(err error) (int, errorResponse) {
	var (
		validation *models.ValidationError
		required   *models.PaymentRequiredError
		shortfall  *models.InsufficientFundsError
		mismatch   *models.AmountMismatchError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field}
	case errors.As(err, &required):
		return http.StatusPaymentRequired, errorResponse{
			Error:     "payment required",
			ContentId: required.ContentId,
			Required:  required.Required.String(),
			Available: required.Available.String(),
		}
	case errors.As(err, &shortfall):
		return http.StatusPaymentRequired, errorResponse{
			Error:     "insufficient funds",
			Required:  shortfall.Required.String(),
			Available: shortfall.Available.String(),
		}
	case errors.As(err, &mismatch):
		return http.StatusBadRequest, errorResponse{Error: "amount mismatch"}
	case errors.Is(err, models.ErrInvalidSignature):
		return http.StatusBadRequest, errorResponse{Error: "invalid signature"}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found"}
	case errors.Is(err, models.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "payment gateway unavailable"}
	case errors.Is(err, models.ErrNoChallenge):
		return http.StatusBadRequest, errorResponse{Error: "no pending code, request a new one"}
	case errors.Is(err, models.ErrChallengeExpired):
		return http.StatusBadRequest, errorResponse{Error: "code expired, request a new one"}
	case errors.Is(err, models.ErrInvalidCode):
		return http.StatusUnauthorized, errorResponse{Error: "invalid code"}
	case errors.Is(err, models.ErrInvalidCredential):
		return http.StatusUnauthorized, errorResponse{Error: "invalid or missing credential"}
	case errors.Is(err, models.ErrEntryFinalized), errors.Is(err, models.ErrDuplicateEntry):
		return http.StatusConflict, errorResponse{Error: "transaction already finalized"}
	case errors.Is(err, models.ErrDeliveryFailed):
		return http.StatusBadGateway, errorResponse{Error: "could not deliver code"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}
