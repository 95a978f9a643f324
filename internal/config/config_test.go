package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 60*time.Second, cfg.OTPResendInterval)
	assert.True(t, cfg.TradeAllowResubmit)
	assert.Equal(t, 20, cfg.AuthRateLimit)
	assert.False(t, cfg.LogJSON)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("OTP_RESEND_INTERVAL", "90")
	t.Setenv("TRADE_ALLOW_RESUBMIT", "false")
	t.Setenv("AUTH_RATE_LIMIT", "5")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.OTPResendInterval)
	assert.False(t, cfg.TradeAllowResubmit)
	assert.Equal(t, 5, cfg.AuthRateLimit)
	assert.True(t, cfg.LogJSON)

	t.Setenv("OTP_RESEND_INTERVAL", "2m")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.OTPResendInterval)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
