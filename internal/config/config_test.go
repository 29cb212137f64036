package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Wallet.WelcomeBonus.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 48*time.Hour, cfg.Wallet.ReuseWindow)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, 6, cfg.OTP.CodeLength)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.CredentialTTL)
	assert.True(t, cfg.Gateway.MinRecharge.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Gateway.MaxRecharge.Equal(decimal.NewFromInt(100000)))
	assert.False(t, cfg.Gateway.Enabled())
	assert.Equal(t, "sqlite", cfg.OTP.Store)

	assert.NoError(t, Validate(cfg, false))
	assert.Error(t, Validate(cfg, true), "server needs a signing secret")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WELCOME_BONUS", "25.50")
	t.Setenv("ACCESS_REUSE_WINDOW", "24h")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")
	t.Setenv("OTP_EXPOSE_CODE", "true")
	t.Setenv("JWT_SECRET", "jwt")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Wallet.WelcomeBonus.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, 24*time.Hour, cfg.Wallet.ReuseWindow)
	assert.True(t, cfg.Gateway.Enabled())
	assert.True(t, cfg.OTP.ExposeCode)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.NoError(t, Validate(cfg, true))
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("OTP_TTL", "ten minutes")
		_, err := Load()
		assert.ErrorContains(t, err, "OTP_TTL")
	})

	t.Run("amount", func(t *testing.T) {
		t.Setenv("MIN_RECHARGE", "fifty")
		_, err := Load()
		assert.ErrorContains(t, err, "MIN_RECHARGE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"min above max", map[string]string{"MIN_RECHARGE": "500", "MAX_RECHARGE": "100"}},
		{"negative bonus", map[string]string{"WELCOME_BONUS": "-1"}},
		{"sub-paise bonus", map[string]string{"WELCOME_BONUS": "0.001"}},
		{"zero ttl", map[string]string{"OTP_TTL": "0s"}},
		{"short code", map[string]string{"OTP_LENGTH": "3"}},
		{"unknown store", map[string]string{"OTP_STORE": "memcached"}},
		{"formance without credentials", map[string]string{"FORMANCE_ENABLED": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			assert.Error(t, Validate(cfg, false))
		})
	}
}
