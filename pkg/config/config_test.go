package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatflowers/membership/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8888},
		Database: DBConfig{DSN: "postgres://localhost/app"},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Billing:  BillingConfig{ConfigCacheTTL: time.Minute, WriteFailurePolicy: WriteFailurePolicyRetry},
		Plans:    []*types.Plan{{PriceID: "price_core", Tier: types.TierCore}},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	c := validConfig()
	c.Database.DSN = ""
	c.Auth.JWTSecret = ""
	c.Billing.WriteFailurePolicy = "ignore"

	err := c.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
	require.Contains(t, err.Error(), "DSN")
	require.Contains(t, err.Error(), "JWTSecret")
	require.Contains(t, err.Error(), "WriteFailurePolicy")
}

func TestValidate_RejectsUnknownPlanTier(t *testing.T) {
	c := validConfig()
	c.Plans = append(c.Plans, &types.Plan{PriceID: "price_gold", Tier: "gold"})
	require.Error(t, c.Validate())
}

func TestNew_ReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  dsn: postgres://localhost/app
auth:
  jwt_secret: from-file
billing:
  config_cache_ttl: 2m
plans:
  - price_id: price_daily_monthly
    tier: daily
    name: Daily
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_STRIPE_WEBHOOK_SECRET", "whsec_env")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "from-file", c.Auth.JWTSecret)
	require.Equal(t, "whsec_env", c.Stripe.WebhookSecret)
	require.Equal(t, 2*time.Minute, c.Billing.ConfigCacheTTL)
	require.Equal(t, WriteFailurePolicyRetry, c.Billing.WriteFailurePolicy)
	require.Equal(t, types.TierDaily, c.PlanCatalog().TierFor("price_daily_monthly"))
}

func TestNew_MissingDSNIsFatal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("auth:\n  jwt_secret: x\n"), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_DATABASE_DSN", "")

	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DSN")
}
