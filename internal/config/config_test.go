package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMINS", "111,222")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []int64{111, 222}, cfg.Admins)
	assert.Equal(t, "@WinWinSupport", cfg.SupportUsername)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "https://partners.servcul.com/CashdeskBotAPI/", cfg.Cashdesk.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Cashdesk.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Deposit.Timeout)
	assert.True(t, cfg.Deposit.Minimum().Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 100*time.Millisecond, cfg.BroadcastDelay)
	assert.Equal(t, []string{"127.0.0.0/8", "::1/128"}, cfg.MetricsAllowedCIDRs)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DEPOSIT_TIMEOUT", "90s")
	t.Setenv("DEPOSIT_MIN_AMOUNT", "250.50")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 90*time.Second, cfg.Deposit.Timeout)
	assert.True(t, cfg.Deposit.Minimum().Equal(decimal.RequireFromString("250.5")))
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing token":    {"TELEGRAM_BOT_TOKEN": ""},
		"unknown driver":   {"DB_DRIVER": "mysql"},
		"bad minimum":      {"DEPOSIT_MIN_AMOUNT": "lots"},
		"negative minimum": {"DEPOSIT_MIN_AMOUNT": "-1"},
		"zero timeout":     {"DEPOSIT_TIMEOUT": "0s"},
		"bad admins":       {"ADMINS": "alice"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
