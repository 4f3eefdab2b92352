// Package config loads the immutable service configuration.
//
// Values come from defaults, an optional notary.yaml, and environment
// variables. A nested key such as ledger.rpc_endpoint is read from the
// LEDGER_RPC_ENDPOINT environment variable.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	platformstrings "notary/pkg/platform/strings"
)

// Treasury modes.
const (
	TreasuryBookkeeping = "bookkeeping"
	TreasuryOnChain     = "onchain"
)

// Config is injected at construction time and never mutated afterwards.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	IPFS     IPFSConfig     `mapstructure:"ipfs"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig controls the identity collaborator. With Required unset,
// trusted internal callers identify the account with the X-Account-ID header.
type AuthConfig struct {
	Required      bool   `mapstructure:"required"`
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	GuardTTL     time.Duration `mapstructure:"guard_ttl"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	AuditTopic    string        `mapstructure:"audit_topic"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
}

type IPFSConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries uint64        `mapstructure:"max_retries"`
}

type LedgerConfig struct {
	RPCEndpoint     string        `mapstructure:"rpc_endpoint"`
	ContractHash    string        `mapstructure:"contract_hash"`
	GasCost         string        `mapstructure:"gas_cost"`
	MaxGas          string        `mapstructure:"max_gas"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
}

type PricingConfig struct {
	TokenPriceURL     string        `mapstructure:"token_price_url"`
	TokenPriceAPIKey  string        `mapstructure:"token_price_api_key"`
	TokenID           string        `mapstructure:"token_id"`
	FXRateURL         string        `mapstructure:"fx_rate_url"`
	ReferenceCurrency string        `mapstructure:"reference_currency"`
	OperatingCurrency string        `mapstructure:"operating_currency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
}

type BillingConfig struct {
	AutoTopUpPlan     string `mapstructure:"auto_top_up_plan"`
	TreasuryMode      string `mapstructure:"treasury_mode"`
	TreasuryAccountID string `mapstructure:"treasury_account_id"`
	TreasuryWIF       string `mapstructure:"treasury_wif"`
}

type SecretsConfig struct {
	KeyEncryptionKey string `mapstructure:"key_encryption_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("auth.required", true)
	v.SetDefault("auth.jwt_signing_key", "")
	v.SetDefault("auth.issuer", "notary")
	v.SetDefault("auth.audience", "notary-api")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.guard_ttl", 5*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "notary.audit")
	v.SetDefault("kafka.flush_interval", time.Second)
	v.SetDefault("kafka.batch_size", 100)

	v.SetDefault("ipfs.api_url", "http://127.0.0.1:5001")
	v.SetDefault("ipfs.timeout", 30*time.Second)
	v.SetDefault("ipfs.max_retries", 3)

	v.SetDefault("ledger.rpc_endpoint", "http://127.0.0.1:30333")
	v.SetDefault("ledger.contract_hash", "")
	v.SetDefault("ledger.gas_cost", "0.0069")
	v.SetDefault("ledger.max_gas", "1")
	v.SetDefault("ledger.dial_timeout", 5*time.Second)
	v.SetDefault("ledger.request_timeout", 10*time.Second)
	v.SetDefault("ledger.wait_timeout", 60*time.Second)
	v.SetDefault("ledger.finalize_timeout", 30*time.Second)

	v.SetDefault("pricing.token_price_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("pricing.token_price_api_key", "")
	v.SetDefault("pricing.token_id", "gas")
	v.SetDefault("pricing.fx_rate_url", "https://api.exchangerate-api.com/v4/latest")
	v.SetDefault("pricing.reference_currency", "USD")
	v.SetDefault("pricing.operating_currency", "BRL")
	v.SetDefault("pricing.requests_per_second", 4.0)
	v.SetDefault("pricing.timeout", 5*time.Second)
	v.SetDefault("pricing.max_retries", 2)

	v.SetDefault("billing.auto_top_up_plan", "mensal_10")
	v.SetDefault("billing.treasury_mode", TreasuryBookkeeping)
	v.SetDefault("billing.treasury_account_id", "")
	v.SetDefault("billing.treasury_wif", "")

	v.SetDefault("secrets.key_encryption_key", "")
}

// Load reads configuration. configPaths are searched for notary.yaml; a
// missing file is not an error.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("notary")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(configPaths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.SplitList(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Auth.Required && c.Auth.JWTSigningKey == "" {
		return errors.New("auth.jwt_signing_key is required when auth.required is set")
	}
	gas, err := decimal.NewFromString(c.Ledger.GasCost)
	if err != nil || !gas.IsPositive() {
		return fmt.Errorf("ledger.gas_cost must be a positive decimal, got %q", c.Ledger.GasCost)
	}
	maxGas, err := decimal.NewFromString(c.Ledger.MaxGas)
	if err != nil || !maxGas.IsPositive() {
		return fmt.Errorf("ledger.max_gas must be a positive decimal, got %q", c.Ledger.MaxGas)
	}
	if c.Ledger.WaitTimeout <= 0 {
		return errors.New("ledger.wait_timeout must be positive")
	}
	switch c.Billing.TreasuryMode {
	case TreasuryBookkeeping:
		if c.Billing.TreasuryAccountID == "" {
			return errors.New("billing.treasury_account_id is required in bookkeeping mode")
		}
	case TreasuryOnChain:
		if c.Billing.TreasuryWIF == "" {
			return errors.New("billing.treasury_wif is required in onchain mode")
		}
	default:
		return fmt.Errorf("unknown billing.treasury_mode %q", c.Billing.TreasuryMode)
	}
	if c.Pricing.RequestsPerSecond <= 0 {
		return errors.New("pricing.requests_per_second must be positive")
	}
	return nil
}

// GasCost is the fixed native amount charged per submission.
func (c *Config) GasCost() decimal.Decimal {
	return decimal.RequireFromString(c.Ledger.GasCost)
}

// MaxGas caps the estimated gas a submission may consume.
func (c *Config) MaxGas() decimal.Decimal {
	return decimal.RequireFromString(c.Ledger.MaxGas)
}
