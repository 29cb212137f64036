/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultCodeLength = 6
	maxCodeLength     = 10
)

var challengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "otp_challenges_total",
	Help: "OTP challenges by outcome",
}, []string{"outcome"})

// Accounts is the account lookup the session needs
type Accounts interface {
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	GetAccountByPhone(ctx context.Context, phone string) (*models.Account, error)
	TouchLastLogin(ctx context.Context, accountId string, at time.Time) error
}

// AccountOpener creates an account with its opening balance
type AccountOpener interface {
	OpenAccount(ctx context.Context, phone, name, email string) (*models.Account, error)
}

// Session issues one-time codes and exchanges a correct code for a credential.
type Session struct {
	challenges store.ChallengeStore
	accounts   Accounts
	opener     AccountOpener
	sender     Sender
	issuer     *CredentialIssuer
	codeLength int
	ttl        time.Duration
	exposeCode bool
	now        func() time.Time
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(cfg models.OTPConfig, challenges store.ChallengeStore, accounts Accounts, opener AccountOpener,
	sender Sender, issuer *CredentialIssuer, opts ...Option) *Session {

	s := &Session{
		challenges: challenges,
		accounts:   accounts,
		opener:     opener,
		sender:     sender,
		issuer:     issuer,
		codeLength: cfg.CodeLength,
		ttl:        cfg.TTL,
		exposeCode: cfg.ExposeCode,
		now:        time.Now,
	}
	if s.codeLength <= 0 || s.codeLength > maxCodeLength {
		s.codeLength = DefaultCodeLength
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.sender == nil {
		s.sender = NewLogSender()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// randomCode returns a uniformly random decimal code of the given length,
// zero padded.
func randomCode(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

func hashCode(accountId, code string) string {
	sum := sha256.Sum256([]byte(accountId + ":" + code))
	return hex.EncodeToString(sum[:])
}

// IssueChallenge replaces any pending challenge for the account with a fresh
// code and delivers it.
func (s *Session) IssueChallenge(ctx context.Context, accountId string) (*models.ChallengeReceipt, error) {
	account, err := s.accounts.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, account)
}

func (s *Session) issue(ctx context.Context, account *models.Account) (*models.ChallengeReceipt, error) {
	code, err := randomCode(s.codeLength)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	challenge := models.Challenge{
		AccountId: account.Id,
		CodeHash:  hashCode(account.Id, code),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.ttl),
	}
	if err := s.challenges.PutChallenge(ctx, challenge); err != nil {
		zap.L().Error("Failed to store challenge", zap.String("account_id", account.Id), zap.Error(err))
		return nil, err
	}

	delivery, err := s.sender.Send(ctx, account.Phone, code)
	if err != nil {
		challengesTotal.WithLabelValues("delivery_failed").Inc()
		// nobody received this code, so it should not linger as the pending one
		if discardErr := s.challenges.DiscardChallenge(ctx, account.Id, challenge.CodeHash); discardErr != nil {
			zap.L().Warn("Failed to discard undelivered challenge",
				zap.String("account_id", account.Id),
				zap.Error(discardErr))
		}
		if !errors.Is(err, models.ErrDeliveryFailed) {
			err = fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
		}
		return nil, err
	}
	challengesTotal.WithLabelValues("issued").Inc()

	zap.L().Info("Challenge issued",
		zap.String("account_id", account.Id),
		zap.String("provider", delivery.Provider),
		zap.Time("expires_at", challenge.ExpiresAt))

	receipt := &models.ChallengeReceipt{
		AccountId: account.Id,
		ExpiresAt: challenge.ExpiresAt,
		Provider:  delivery.Provider,
		MessageId: delivery.MessageId,
	}
	if s.exposeCode {
		receipt.Code = code
	}
	return receipt, nil
}

// Verify consumes the account's challenge. A wrong code leaves it in place;
// an expired one is cleared; a correct one is cleared and a credential issued.
func (s *Session) Verify(ctx context.Context, accountId, code string) (*models.Credential, error) {
	account, err := s.accounts.GetAccountById(ctx, accountId)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, account, code)
}

func (s *Session) verify(ctx context.Context, account *models.Account, code string) (*models.Credential, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "otp", Message: "is required"}
	}

	now := s.now()
	if err := s.challenges.ConsumeChallenge(ctx, account.Id, hashCode(account.Id, code), now); err != nil {
		switch {
		case errors.Is(err, models.ErrNoChallenge):
			challengesTotal.WithLabelValues("no_challenge").Inc()
		case errors.Is(err, models.ErrChallengeExpired):
			challengesTotal.WithLabelValues("expired").Inc()
		case errors.Is(err, models.ErrInvalidCode):
			challengesTotal.WithLabelValues("invalid").Inc()
			zap.L().Warn("Invalid code", zap.String("account_id", account.Id))
		default:
			zap.L().Error("Failed to consume challenge", zap.String("account_id", account.Id), zap.Error(err))
		}
		return nil, err
	}
	challengesTotal.WithLabelValues("verified").Inc()

	if err := s.accounts.TouchLastLogin(ctx, account.Id, now); err != nil {
		zap.L().Warn("Failed to update last login", zap.String("account_id", account.Id), zap.Error(err))
	}

	credential, err := s.issuer.Issue(account)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Login verified", zap.String("account_id", account.Id))
	return credential, nil
}

// RequestLogin finds the account for phone, opening one with the welcome
// bonus if needed, and issues it a challenge.
func (s *Session) RequestLogin(ctx context.Context, phone string) (*models.ChallengeReceipt, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByPhone(ctx, phone)
	if errors.Is(err, models.ErrNotFound) {
		account, err = s.opener.OpenAccount(ctx, phone, "", "")
		if errors.Is(err, models.ErrDuplicateEntry) {
			// opened concurrently by another request
			account, err = s.accounts.GetAccountByPhone(ctx, phone)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, account)
}

// VerifyLogin verifies the code sent to phone
func (s *Session) VerifyLogin(ctx context.Context, phone, code string) (*models.Credential, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetAccountByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, account, code)
}

// Validate checks a credential previously issued by this session
func (s *Session) Validate(token string) (*Claims, error) {
	return s.issuer.Validate(token)
}

func normalizePhone(phone string) (string, error) {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", &models.ValidationError{Field: "phone", Message: "must have 10 to 15 digits"}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", &models.ValidationError{Field: "phone", Message: "must contain digits only"}
		}
	}
	return phone, nil
}
