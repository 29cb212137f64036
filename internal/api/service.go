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

package api

import (
	"context"
	"fmt"
	"net/http"

	"streamprime-wallet-go/internal/access"
	"streamprime-wallet-go/internal/gateway"
	"streamprime-wallet-go/internal/models"
	"streamprime-wallet-go/internal/otp"
	"streamprime-wallet-go/internal/wallet"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the read-only slice of storage the handlers query directly
type Store interface {
	GetAccountById(ctx context.Context, accountId string) (*models.Account, error)
	ListContent(ctx context.Context) ([]models.ContentItem, error)
	GetWatchHistory(ctx context.Context, accountId string, limit int) ([]models.WatchRecord, error)
}

// WalletService exposes the wallet, payments, content access and login over HTTP
type WalletService struct {
	store          Store
	ledger         *wallet.Ledger
	gateway        *gateway.Adapter
	access         *access.Engine
	session        *otp.Session
	allowedOrigins []string
}

func NewWalletService(cfg models.ServerConfig, store Store, ledger *wallet.Ledger, gw *gateway.Adapter,
	engine *access.Engine, session *otp.Session) *WalletService {

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &WalletService{
		store:          store,
		ledger:         ledger,
		gateway:        gw,
		access:         engine,
		session:        session,
		allowedOrigins: origins,
	}
}

func (s *WalletService) HealthCheck(ctx context.Context) error {
	_, err := s.store.ListContent(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Router builds the HTTP surface
func (s *WalletService) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Razorpay-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/send-otp", s.handleSendOTP)
		r.Post("/verify-otp", s.handleVerifyOTP)
		r.With(s.requireAuth).Get("/profile", s.handleProfile)
	})

	r.Route("/payment", func(r chi.Router) {
		// provider notifications authenticate by signature, not by bearer token
		r.Post("/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/create-order", s.handleCreateOrder)
			r.Post("/verify", s.handleVerifyPayment)
			r.Get("/wallet/balance", s.handleBalance)
			r.Get("/wallet/transactions", s.handleTransactions)
			r.Get("/wallet/stats", s.handleStats)
		})
	})

	r.Route("/videos", func(r chi.Router) {
		r.Get("/", s.handleCatalog)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/{id}/watch", s.handleWatch)
			r.Get("/access", s.handleAccess)
			r.Get("/history", s.handleWatchHistory)
		})
	})

	return r
}
