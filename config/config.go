package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Wallet      WalletConfig      `mapstructure:"wallet"`
	QR          QRConfig          `mapstructure:"qr"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	RateLimit     int           `mapstructure:"rate_limit"` // requests per window per caller, 0 disables
	RateWindow    time.Duration `mapstructure:"rate_window"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	AdminToken    string        `mapstructure:"admin_token"` // guards eligibility updates, empty disables them
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver  string `mapstructure:"driver"` // postgres, memory
	Migrate bool   `mapstructure:"migrate"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GatewayConfig configures the payment processor client.
type GatewayConfig struct {
	StripeKey         string        `mapstructure:"stripe_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxNetworkRetries int64         `mapstructure:"max_network_retries"`
	// TestMethodIDs are method refs served by the simulated processor.
	TestMethodIDs []string `mapstructure:"test_method_ids"`
	// DeclineMethodIDs are simulated method refs whose confirmation is refused.
	DeclineMethodIDs []string `mapstructure:"decline_method_ids"`
	// Simulated routes every call to the simulated processor.
	Simulated bool `mapstructure:"simulated"`
	// SimulatedRetention is how long idle simulated intents are kept.
	SimulatedRetention time.Duration `mapstructure:"simulated_retention"`
}

type EligibilityConfig struct {
	AutoApprove bool `mapstructure:"auto_approve"`
}

type WalletConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

type QRConfig struct {
	SigningSecret string        `mapstructure:"signing_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// NotifyConfig selects where user notifications are sent.
type NotifyConfig struct {
	Driver        string        `mapstructure:"driver"` // log, webhook, rabbitmq
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	AMQPURL       string        `mapstructure:"amqp_url"`
	Exchange      string        `mapstructure:"exchange"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// DefaultTestMethodIDs are the processor's published test payment methods.
var DefaultTestMethodIDs = []string{
	"pm_card_visa",
	"pm_card_mastercard",
	"pm_card_amex",
	"pm_card_discover",
	"pm_card_diners",
	"pm_card_jcb",
	"pm_card_unionpay",
	"pm_card_visa_debit",
	"pm_card_mastercard_prepaid",
	"pm_card_threeDSecure2Required",
	"pm_usBankAccount",
	"pm_sepaDebit",
	"pm_bacsDebit",
	"pm_alipay",
	"pm_wechat",
}

// DefaultDeclineMethodIDs are test payment methods that always fail to confirm.
var DefaultDeclineMethodIDs = []string{
	"pm_card_chargeDeclined",
	"pm_card_chargeDeclinedInsufficientFunds",
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: DWL_ (Digital WaLlet).
// Nested keys use underscore: DWL_DATABASE_HOST, DWL_GATEWAY_STRIPE_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", "1m")
	v.SetDefault("server.shutdown_grace", "15s")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.migrate", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "digital_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "24h")
	v.SetDefault("redis.lock_ttl", "30s")
	v.SetDefault("gateway.stripe_key", "")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.max_network_retries", 2)
	v.SetDefault("gateway.test_method_ids", DefaultTestMethodIDs)
	v.SetDefault("gateway.decline_method_ids", DefaultDeclineMethodIDs)
	v.SetDefault("gateway.simulated", false)
	v.SetDefault("gateway.simulated_retention", "24h")
	v.SetDefault("eligibility.auto_approve", false)
	v.SetDefault("wallet.default_currency", "USD")
	v.SetDefault("qr.signing_secret", "")
	v.SetDefault("qr.issuer", "digital-wallet")
	v.SetDefault("qr.ttl", "15m")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.exchange", "wallet.notifications")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// DWL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("DWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the binary cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Notify.Driver {
	case "log", "webhook", "rabbitmq":
	default:
		return fmt.Errorf("notify.driver must be log, webhook or rabbitmq, got %q", c.Notify.Driver)
	}
	if c.Notify.Driver == "webhook" && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required for the webhook driver")
	}
	if c.Notify.Driver == "rabbitmq" && c.Notify.AMQPURL == "" {
		return fmt.Errorf("notify.amqp_url is required for the rabbitmq driver")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	return nil
}
