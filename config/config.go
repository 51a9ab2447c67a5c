package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App        `json:"app"        toml:"app"`
		HTTP       `json:"http"       toml:"http"`
		Exchange   `json:"exchange"   toml:"exchange"`
		Feeds      `json:"feeds"      toml:"feeds"`
		Blockchain `json:"blockchain" toml:"blockchain"`
		WorldID    `json:"world_id"   toml:"world_id"`
		Auth       `json:"auth"       toml:"auth"`
		Store      `json:"store"      toml:"store"`
		DB         `json:"db"         toml:"db"`
		Log        `json:"logger"     toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME" env-default:"changewld"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port           string   `json:"port"            toml:"port"            env:"PORT" env-default:"4000"`
		AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"http://localhost:5173"`
	}

	Exchange struct {
		// Spread is the fractional margin subtracted from the gross rate.
		Spread        float64 `json:"spread"          toml:"spread"          env:"SPREAD"        env-default:"0.25"`
		OperatorPIN   string  `json:"operator_pin"    toml:"operator_pin"    env:"OPERATOR_PIN"  env-default:"4321"`
		WalletDestino string  `json:"wallet_destino"  toml:"wallet_destino"  env:"WALLET_DESTINO"`
		// TestMode advances freshly created orders to "enviada" with a
		// simulated transfer reference, no on-chain submission required.
		TestMode bool `json:"test_mode" toml:"test_mode" env:"TEST_MODE" env-default:"true"`
		// RateCacheTTL is the quote freshness window in seconds.
		RateCacheTTL int `json:"rate_cache_ttl" toml:"rate_cache_ttl" env:"RATE_CACHE_TTL" env-default:"60"`
	}

	Feeds struct {
		BinanceURL      string `json:"binance_url"       toml:"binance_url"       env:"BINANCE_URL"       env-default:"https://api.binance.com"`
		ExchangeRateURL string `json:"exchange_rate_url" toml:"exchange_rate_url" env:"EXCHANGE_RATE_URL" env-default:"https://api.exchangerate.host"`
		// TimeoutSeconds bounds each upstream call independently.
		TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds" env:"FEED_TIMEOUT" env-default:"6"`
	}

	Blockchain struct {
		RPCURL          string `json:"rpc_url"           toml:"rpc_url"           env:"WORLDCHAIN_RPC"`
		WLDTokenAddress string `json:"wld_token_address" toml:"wld_token_address" env:"WLD_TOKEN_ADDRESS"`
	}

	WorldID struct {
		AppID  string `json:"app_id"  toml:"app_id"  env:"WORLD_APP_ID"`
		Action string `json:"action"  toml:"action"  env:"WORLD_ACTION" env-default:"changewld-verify"`
		APIURL string `json:"api_url" toml:"api_url" env:"WORLD_API_URL" env-default:"https://developer.worldcoin.org"`
	}

	Auth struct {
		// NonceSecret keys the HMAC over wallet-auth nonces.
		NonceSecret string `json:"nonce_secret" toml:"nonce_secret" env:"NONCE_SECRET" env-default:"changewld-dev-secret"`
	}

	Store struct {
		// OrdersFile backs the flat-file store used when no DATABASE_URL
		// is configured.
		OrdersFile string `json:"orders_file" toml:"orders_file" env:"ORDERS_FILE" env-default:"orders.json"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"1"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
