package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/multierr"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gt=0"`
}

// DBConfig points at the backend Postgres. It is the only mandatory backend
// dependency; the service refuses to start without it.
type DBConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// AuthConfig verifies the bearer tokens issued by the backend's auth service.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required"`
	Issuer    string `mapstructure:"issuer"`
	// AdminUserIDs may call the admin API. Empty locks the admin API.
	AdminUserIDs []string `mapstructure:"admin_user_ids"`
}

// StripeConfig holds the environment-level fallback for billing secrets and the
// default checkout redirects. Secrets stored in the billing_setting table win.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url" validate:"omitempty,url"`
	CancelURL     string `mapstructure:"cancel_url" validate:"omitempty,url"`
}

type WriteFailurePolicy string

const (
	// WriteFailurePolicyRetry answers 5xx so the processor redelivers the event.
	WriteFailurePolicyRetry WriteFailurePolicy = "retry"
	// WriteFailurePolicyAcknowledge logs the failure and answers 200.
	WriteFailurePolicyAcknowledge WriteFailurePolicy = "acknowledge"
)

type BillingConfig struct {
	ConfigCacheTTL     time.Duration      `mapstructure:"config_cache_ttl" validate:"gte=0"`
	WriteFailurePolicy WriteFailurePolicy `mapstructure:"write_failure_policy" validate:"oneof=retry acknowledge"`
	// RejectStaleEvents skips events created before the row's last applied event.
	RejectStaleEvents bool `mapstructure:"reject_stale_events"`
}

// RedisConfig enables the processed-event ledger when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	EventTTL time.Duration `mapstructure:"event_ttl"`
}

type CheckoutConfig struct {
	RatePerMinute float64 `mapstructure:"rate_per_minute" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

type Env string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

type Config struct {
	Env         Env            `mapstructure:"env"`
	Log         LogConfig      `mapstructure:"log"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DBConfig       `mapstructure:"database"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Stripe      StripeConfig   `mapstructure:"stripe"`
	Billing     BillingConfig  `mapstructure:"billing"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Checkout    CheckoutConfig `mapstructure:"checkout"`
	Plans       []*types.Plan  `mapstructure:"plans" validate:"dive"`
	MetricsAddr string         `mapstructure:"metrics_addr"`
}

// PlanCatalog builds the price id → tier table from the configured plans.
func (c *Config) PlanCatalog() *types.PlanCatalog {
	return types.NewPlanCatalog(c.Plans)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var all error
	for _, fe := range verrs {
		all = multierr.Append(all, fmt.Errorf("config %s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return all
}

func New() (*Config, error) {
	// .env is optional; values already in the environment take precedence.
	_ = godotenv.Load()

	v := viper.New()
	// Allow overriding config file via env:
	// - APP_CONFIG_FILE: absolute or relative file path (e.g., /etc/app/prod.yaml)
	// - APP_CONFIG_NAME: config base name without extension (default: "config")
	if file := os.Getenv("APP_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		cfgName := os.Getenv("APP_CONFIG_NAME")
		if cfgName == "" {
			cfgName = "config"
		}
		v.SetConfigName(cfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8888)
	v.SetDefault("metrics_addr", ":9090")

	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.admin_user_ids", []string{})
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.success_url", "")
	v.SetDefault("stripe.cancel_url", "")

	v.SetDefault("billing.config_cache_ttl", 5*time.Minute)
	v.SetDefault("billing.write_failure_policy", string(WriteFailurePolicyRetry))
	v.SetDefault("billing.reject_stale_events", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.event_ttl", 72*time.Hour)

	v.SetDefault("checkout.rate_per_minute", 6)
	v.SetDefault("checkout.burst", 3)
}

var Module = fx.Options(
	fx.Provide(New),
)
