// Package config loads radar settings from defaults, an optional file and
// the environment.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"solana-meme-radar/internal/solana"
)

// DefaultRecipient is the wallet payments are sent to unless overridden.
const DefaultRecipient = "EcNDgT8jmBqDiRm4zcg4PjqdqjBwmCF51v2h1KUuo9z7"

const heliusRPCBase = "https://mainnet.helius-rpc.com/?api-key="

// Config is the full radar configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Features   FeaturesConfig   `mapstructure:"features"`
	Premium    PremiumConfig    `mapstructure:"premium"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MarketDataConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// IngestConfig intervals are in milliseconds.
type IngestConfig struct {
	TokenPollIntervalMs  int `mapstructure:"token_poll_interval"`
	MarketPollIntervalMs int `mapstructure:"market_poll_interval"`
	MomentumIntervalMs   int `mapstructure:"momentum_broadcast_interval"`
	RefreshBatchSize     int `mapstructure:"refresh_batch_size"`
	FallbackLimit        int `mapstructure:"fallback_limit"`
	FallbackSpacingMs    int `mapstructure:"fallback_spacing"`
}

func (c IngestConfig) TokenPollInterval() time.Duration {
	return time.Duration(c.TokenPollIntervalMs) * time.Millisecond
}

func (c IngestConfig) MarketPollInterval() time.Duration {
	return time.Duration(c.MarketPollIntervalMs) * time.Millisecond
}

func (c IngestConfig) MomentumInterval() time.Duration {
	return time.Duration(c.MomentumIntervalMs) * time.Millisecond
}

func (c IngestConfig) FallbackSpacing() time.Duration {
	return time.Duration(c.FallbackSpacingMs) * time.Millisecond
}

type RegistryConfig struct {
	MaxTrackedTokens int `mapstructure:"max_tracked_tokens"`
}

type FeaturesConfig struct {
	ProEnabled bool `mapstructure:"pro_enabled"`
}

type PremiumConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BetaMode         bool   `mapstructure:"beta_mode"`
	MonthlyPriceSOL  string `mapstructure:"monthly_price_sol"`
	LifetimePriceSOL string `mapstructure:"lifetime_price_sol"`
	PaymentWallet    string `mapstructure:"payment_wallet"`
	TestSecret       string `mapstructure:"test_secret"`
}

// MonthlyPrice parses the monthly price. Validate guarantees it parses.
func (c PremiumConfig) MonthlyPrice() decimal.Decimal {
	d, _ := decimal.NewFromString(c.MonthlyPriceSOL)
	return d
}

// LifetimePrice parses the lifetime price. Validate guarantees it parses.
func (c PremiumConfig) LifetimePrice() decimal.Decimal {
	d, _ := decimal.NewFromString(c.LifetimePriceSOL)
	return d
}

type SolanaConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	HeliusAPIKey string `mapstructure:"helius_api_key"`
}

// Endpoint returns the Helius URL when an API key is set, otherwise RPCURL.
func (c SolanaConfig) Endpoint() string {
	if c.HeliusAPIKey != "" {
		return heliusRPCBase + c.HeliusAPIKey
	}
	return c.RPCURL
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

type AuthConfig struct {
	ProviderURL string `mapstructure:"provider_url"`
	ServiceKey  string `mapstructure:"service_key"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ClickHouseConfig struct {
	DSN string `mapstructure:"dsn"`
}

var defaults = map[string]any{
	"server.port":                        3001,
	"server.cors_origin":                 "http://localhost:5173",
	"logger.level":                       "info",
	"logger.format":                      "text",
	"marketdata.base_url":                "https://api.dexscreener.com",
	"ingest.token_poll_interval":         10000,
	"ingest.market_poll_interval":        30000,
	"ingest.momentum_broadcast_interval": 30000,
	"ingest.refresh_batch_size":          30,
	"ingest.fallback_limit":              10,
	"ingest.fallback_spacing":            200,
	"registry.max_tracked_tokens":        500,
	"features.pro_enabled":               false,
	"premium.enabled":                    false,
	"premium.beta_mode":                  true,
	"premium.monthly_price_sol":          "0.02",
	"premium.lifetime_price_sol":         "0.05",
	"premium.payment_wallet":             DefaultRecipient,
	"premium.test_secret":                "",
	"solana.rpc_url":                     "https://api.mainnet-beta.solana.com",
	"solana.helius_api_key":              "",
	"telegram.bot_token":                 "",
	"telegram.chat_id":                   "",
	"auth.provider_url":                  "",
	"auth.service_key":                   "",
	"postgres.dsn":                       "",
	"clickhouse.dsn":                     "",
}

// Legacy variable names kept working alongside the SECTION_KEY form.
var legacyEnv = map[string]string{
	"server.port":                 "PORT",
	"server.cors_origin":          "CORS_ORIGIN",
	"logger.level":                "LOG_LEVEL",
	"logger.format":               "LOG_FORMAT",
	"ingest.token_poll_interval":  "TOKEN_POLL_INTERVAL",
	"ingest.market_poll_interval": "METADATA_POLL_INTERVAL",
	"features.pro_enabled":        "ENABLE_PRO_FEATURES",
	"premium.enabled":             "PREMIUM_ENABLED",
	"premium.beta_mode":           "BETA_MODE",
	"premium.monthly_price_sol":   "MONTHLY_PRICE_SOL",
	"premium.lifetime_price_sol":  "LIFETIME_PRICE_SOL",
	"premium.payment_wallet":      "PAYMENT_WALLET_ADDRESS",
	"premium.test_secret":         "PREMIUM_TEST_SECRET",
	"solana.rpc_url":              "SOLANA_RPC_URL",
	"solana.helius_api_key":       "HELIUS_API_KEY",
	"telegram.bot_token":          "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":            "TELEGRAM_CHAT_ID",
	"auth.provider_url":           "SUPABASE_URL",
	"auth.service_key":            "SUPABASE_SERVICE_KEY",
	"postgres.dsn":                "POSTGRES_DSN",
	"clickhouse.dsn":              "CLICKHOUSE_DSN",
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		upper := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, upper, env); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", env)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("invalid server port %d", c.Server.Port)
	}
	if c.Ingest.TokenPollIntervalMs <= 0 || c.Ingest.MarketPollIntervalMs <= 0 || c.Ingest.MomentumIntervalMs <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.Ingest.RefreshBatchSize <= 0 || c.Ingest.FallbackLimit <= 0 || c.Ingest.FallbackSpacingMs < 0 {
		return errors.New("refresh batch size and fallback limit must be positive")
	}
	if c.Registry.MaxTrackedTokens <= 0 {
		return errors.Newf("invalid max tracked tokens %d", c.Registry.MaxTrackedTokens)
	}
	for name, raw := range map[string]string{
		"monthly":  c.Premium.MonthlyPriceSOL,
		"lifetime": c.Premium.LifetimePriceSOL,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrapf(err, "parse %s price", name)
		}
		if !d.IsPositive() {
			return errors.Newf("%s price must be positive, got %s", name, raw)
		}
	}
	if err := solana.ValidateAddress(c.Premium.PaymentWallet); err != nil {
		return errors.Wrap(err, "payment wallet")
	}
	if c.Solana.Endpoint() == "" {
		return errors.New("solana rpc url is required")
	}
	return nil
}
