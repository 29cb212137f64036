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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Wallet   WalletConfig
	Gateway  GatewayConfig
	OTP      OTPConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Server   ServerConfig
	Sweeper  SweeperConfig
	Formance FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
	CatalogFile     string
}

// WalletConfig holds ledger and access rules
type WalletConfig struct {
	WelcomeBonus  decimal.Decimal
	DefaultPrice  decimal.Decimal
	ReuseWindow   time.Duration
	MaxCasRetries int
}

// GatewayConfig holds payment provider credentials and limits.
// Empty KeyId or KeySecret leaves the gateway disabled.
type GatewayConfig struct {
	BaseURL       string
	KeyId         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
	MinRecharge   decimal.Decimal
	MaxRecharge   decimal.Decimal
}

// Enabled reports whether provider credentials are configured.
func (c GatewayConfig) Enabled() bool {
	return c.KeyId != "" && c.KeySecret != ""
}

// OTPConfig holds one-time code settings and delivery provider credentials
type OTPConfig struct {
	CodeLength  int
	TTL         time.Duration
	Store       string // sqlite or redis
	Provider    string // log, twilio, fast2sms, msg91
	ExposeCode  bool
	SendTimeout time.Duration

	TwilioAccountSid  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	Fast2SMSApiKey    string
	MSG91AuthKey      string
	MSG91TemplateId   string
}

// AuthConfig holds credential signing settings
type AuthConfig struct {
	JWTSecret     string
	Issuer        string
	Audience      string
	CredentialTTL time.Duration
}

// RedisConfig holds the optional Redis connection for OTP challenges
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// SweeperConfig holds pending recharge sweeper settings
type SweeperConfig struct {
	Enabled         bool
	PollingInterval time.Duration
	MinAge          time.Duration
	PendingTTL      time.Duration
	CleanupInterval time.Duration
	BatchSize       int
}

// FormanceConfig holds the optional Formance ledger mirror settings
type FormanceConfig struct {
	Enabled      bool
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}
