package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Ingest.TokenPollInterval())
	assert.Equal(t, 30*time.Second, cfg.Ingest.MarketPollInterval())
	assert.Equal(t, 30*time.Second, cfg.Ingest.MomentumInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.Ingest.FallbackSpacing())
	assert.Equal(t, 500, cfg.Registry.MaxTrackedTokens)
	assert.False(t, cfg.Features.ProEnabled)
	assert.False(t, cfg.Premium.Enabled)
	assert.True(t, cfg.Premium.BetaMode)
	assert.Equal(t, "0.02", cfg.Premium.MonthlyPrice().String())
	assert.Equal(t, "0.05", cfg.Premium.LifetimePrice().String())
	assert.Equal(t, DefaultRecipient, cfg.Premium.PaymentWallet)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Solana.Endpoint())
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_POLL_INTERVAL", "5000")
	t.Setenv("ENABLE_PRO_FEATURES", "true")
	t.Setenv("MONTHLY_PRICE_SOL", "0.1")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("TELEGRAM_CHAT_ID", "chat")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Ingest.TokenPollInterval())
	assert.True(t, cfg.Features.ProEnabled)
	assert.Equal(t, "0.1", cfg.Premium.MonthlyPrice().String())
	assert.True(t, cfg.Telegram.Enabled())
}

func TestLoad_SectionEnvWins(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  cors_origin: "*"
ingest:
  refresh_batch_size: 12
premium:
  enabled: true
  lifetime_price_sol: "1.5"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
	assert.Equal(t, 12, cfg.Ingest.RefreshBatchSize)
	assert.True(t, cfg.Premium.Enabled)
	assert.Equal(t, "1.5", cfg.Premium.LifetimePrice().String())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_HeliusEndpoint(t *testing.T) {
	t.Setenv("HELIUS_API_KEY", "secret-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=secret-key", cfg.Solana.Endpoint())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"zero poll interval", func(c *Config) { c.Ingest.MarketPollIntervalMs = 0 }, "poll intervals"},
		{"zero batch", func(c *Config) { c.Ingest.RefreshBatchSize = 0 }, "refresh batch size"},
		{"zero max tokens", func(c *Config) { c.Registry.MaxTrackedTokens = 0 }, "max tracked tokens"},
		{"unparseable price", func(c *Config) { c.Premium.MonthlyPriceSOL = "cheap" }, "parse monthly price"},
		{"non-positive price", func(c *Config) { c.Premium.LifetimePriceSOL = "0" }, "lifetime price must be positive"},
		{"short wallet", func(c *Config) { c.Premium.PaymentWallet = "abc" }, "payment wallet"},
		{"invalid wallet alphabet", func(c *Config) { c.Premium.PaymentWallet = "0OIl" }, "payment wallet"},
		{"no rpc", func(c *Config) { c.Solana.RPCURL = "" }, "solana rpc url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
