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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"streamprime-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	d := durations{}

	connMaxLifetime := d.get("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	connMaxIdleTime := d.get("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	pingTimeout := d.get("DB_PING_TIMEOUT", 5*time.Second)
	busyTimeout := d.get("DB_BUSY_TIMEOUT", 5*time.Second)

	reuseWindow := d.get("ACCESS_REUSE_WINDOW", 48*time.Hour)
	gatewayTimeout := d.get("RAZORPAY_TIMEOUT", 15*time.Second)
	otpTTL := d.get("OTP_TTL", 10*time.Minute)
	otpSendTimeout := d.get("OTP_SEND_TIMEOUT", 10*time.Second)
	credentialTTL := d.get("JWT_TTL", 7*24*time.Hour)

	readTimeout := d.get("SERVER_READ_TIMEOUT", 15*time.Second)
	writeTimeout := d.get("SERVER_WRITE_TIMEOUT", 30*time.Second)

	pollingInterval := d.get("SWEEPER_POLLING_INTERVAL", time.Minute)
	minAge := d.get("SWEEPER_MIN_AGE", 15*time.Minute)
	pendingTTL := d.get("SWEEPER_PENDING_TTL", 24*time.Hour)
	cleanupInterval := d.get("SWEEPER_CLEANUP_INTERVAL", 10*time.Minute)

	if d.err != nil {
		return nil, d.err
	}

	welcomeBonus, err := getEnvDecimal("WELCOME_BONUS", decimal.NewFromInt(50))
	if err != nil {
		return nil, err
	}
	defaultPrice, err := getEnvDecimal("DEFAULT_VIDEO_PRICE", decimal.NewFromInt(2))
	if err != nil {
		return nil, err
	}
	minRecharge, err := getEnvDecimal("MIN_RECHARGE", decimal.NewFromInt(50))
	if err != nil {
		return nil, err
	}
	maxRecharge, err := getEnvDecimal("MAX_RECHARGE", decimal.NewFromInt(100000))
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "streamprime.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
			CatalogFile:     getEnvString("CATALOG_FILE", "catalog.yaml"),
		},
		Wallet: models.WalletConfig{
			WelcomeBonus:  welcomeBonus,
			DefaultPrice:  defaultPrice,
			ReuseWindow:   reuseWindow,
			MaxCasRetries: getEnvInt("WALLET_MAX_CAS_RETRIES", 3),
		},
		Gateway: models.GatewayConfig{
			BaseURL:       getEnvString("RAZORPAY_BASE_URL", ""),
			KeyId:         getEnvString("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnvString("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnvString("RAZORPAY_WEBHOOK_SECRET", ""),
			Timeout:       gatewayTimeout,
			MinRecharge:   minRecharge,
			MaxRecharge:   maxRecharge,
		},
		OTP: models.OTPConfig{
			CodeLength:        getEnvInt("OTP_LENGTH", 6),
			TTL:               otpTTL,
			Store:             getEnvString("OTP_STORE", "sqlite"),
			Provider:          getEnvString("SMS_PROVIDER", "log"),
			ExposeCode:        getEnvBool("OTP_EXPOSE_CODE", false),
			SendTimeout:       otpSendTimeout,
			TwilioAccountSid:  getEnvString("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:   getEnvString("TWILIO_AUTH_TOKEN", ""),
			TwilioPhoneNumber: getEnvString("TWILIO_PHONE_NUMBER", ""),
			Fast2SMSApiKey:    getEnvString("FAST2SMS_API_KEY", ""),
			MSG91AuthKey:      getEnvString("MSG91_AUTH_KEY", ""),
			MSG91TemplateId:   getEnvString("MSG91_TEMPLATE_ID", ""),
		},
		Auth: models.AuthConfig{
			JWTSecret:     getEnvString("JWT_SECRET", ""),
			Issuer:        getEnvString("JWT_ISSUER", "streamprime"),
			Audience:      getEnvString("JWT_AUDIENCE", "streamprime-app"),
			CredentialTTL: credentialTTL,
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", "localhost:6379"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Server: models.ServerConfig{
			Addr:           getEnvString("SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		},
		Sweeper: models.SweeperConfig{
			Enabled:         getEnvBool("SWEEPER_ENABLED", true),
			PollingInterval: pollingInterval,
			MinAge:          minAge,
			PendingTTL:      pendingTTL,
			CleanupInterval: cleanupInterval,
			BatchSize:       getEnvInt("SWEEPER_BATCH_SIZE", 100),
		},
		Formance: models.FormanceConfig{
			Enabled:      getEnvBool("FORMANCE_ENABLED", false),
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "streamprime-wallet"),
		},
	}, nil
}

// Validate checks cross-field rules Load cannot express per variable.
// requireAuth is set by binaries that issue credentials.
func Validate(cfg *models.Config, requireAuth bool) error {
	if cfg.Wallet.WelcomeBonus.IsNegative() {
		return fmt.Errorf("WELCOME_BONUS must not be negative")
	}
	if !cfg.Wallet.DefaultPrice.IsPositive() {
		return fmt.Errorf("DEFAULT_VIDEO_PRICE must be positive")
	}
	if _, err := models.ToMinor(cfg.Wallet.WelcomeBonus); err != nil {
		return fmt.Errorf("WELCOME_BONUS: %w", err)
	}
	if !cfg.Gateway.MinRecharge.IsPositive() || cfg.Gateway.MinRecharge.GreaterThan(cfg.Gateway.MaxRecharge) {
		return fmt.Errorf("recharge limits must satisfy 0 < MIN_RECHARGE <= MAX_RECHARGE, got %s and %s",
			cfg.Gateway.MinRecharge.String(), cfg.Gateway.MaxRecharge.String())
	}
	if cfg.Wallet.ReuseWindow <= 0 {
		return fmt.Errorf("ACCESS_REUSE_WINDOW must be positive")
	}
	if cfg.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if cfg.OTP.CodeLength < 4 || cfg.OTP.CodeLength > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", cfg.OTP.CodeLength)
	}
	if cfg.OTP.Store != "sqlite" && cfg.OTP.Store != "redis" {
		return fmt.Errorf("OTP_STORE must be sqlite or redis, got %q", cfg.OTP.Store)
	}
	if cfg.Formance.Enabled && (cfg.Formance.StackURL == "" || cfg.Formance.ClientID == "" || cfg.Formance.ClientSecret == "") {
		return fmt.Errorf("FORMANCE_ENABLED requires FORMANCE_STACK_URL, FORMANCE_CLIENT_ID and FORMANCE_CLIENT_SECRET")
	}
	if requireAuth && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// durations collects the first parse error so Load reads as a flat list
type durations struct {
	err error
}

func (d *durations) get(key string, defaultValue time.Duration) time.Duration {
	value, err := getEnvDuration(key, defaultValue)
	if err != nil && d.err == nil {
		d.err = err
	}
	return value
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount for %s: %q (%w)", key, value, err)
		}
		return amount, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
