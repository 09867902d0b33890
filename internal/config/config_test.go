package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_URL", "https://ledger.example/api/v1/")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("OPERATOR_CHAT_IDS", "101, 202")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://ledger.example/api/v1", cfg.APIURL)
	assert.Equal(t, []int64{101, 202}, cfg.OperatorChatIDs)
	assert.Equal(t, 30*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, time.Minute, cfg.QueryStaleTime)
	assert.Equal(t, StoreBadger, cfg.StoreBackend)
	assert.False(t, cfg.SentinelEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigValidates(t *testing.T) {
	t.Setenv("API_URL", "https://ledger.example/api/v1")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("OPERATOR_CHAT_IDS", "101")
	t.Setenv("STORE_BACKEND", "redis")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
	assert.Contains(t, err.Error(), `unknown STORE_BACKEND "redis"`)
}

func TestLoadConfigRejectsBadChatID(t *testing.T) {
	t.Setenv("OPERATOR_CHAT_IDS", "101,abc")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc")
}

func TestValidateReportsEverythingMissing(t *testing.T) {
	cfg := &Config{StoreBackend: StoreSupabase}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"API_URL", "TELEGRAM_TOKEN", "OPERATOR_CHAT_IDS", "SUPABASE_URL", "SUBMIT_TIMEOUT"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSentinelNeedsBothValues(t *testing.T) {
	cfg := &Config{CreditSentinel: "Nyra"}
	assert.False(t, cfg.SentinelEnabled())

	cfg.CreditPassword = "operational"
	assert.True(t, cfg.SentinelEnabled())
}

func TestWebhookModeNeedsSecret(t *testing.T) {
	cfg := &Config{WebhookPath: "/telegram/webhook"}
	err := cfg.ValidateWebhook()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEBHOOK_SECRET")

	cfg.WebhookSecret = "s3cret"
	assert.NoError(t, cfg.ValidateWebhook())
}
