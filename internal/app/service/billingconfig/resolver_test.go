package billingconfig

import (
	"context"
	"testing"
	"time"

	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/db/dbtest"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestResolver(t *testing.T, stripeCfg config.StripeConfig, ttl time.Duration) (*Resolver, *gorm.DB, *metrics.Billing) {
	t.Helper()
	db := dbtest.New(t)
	cfg := &config.Config{Stripe: stripeCfg, Billing: config.BillingConfig{ConfigCacheTTL: ttl}}
	m := metrics.NewNopBilling()
	return NewResolver(db, cfg, zap.NewNop().Sugar(), m), db, m
}

func putSetting(t *testing.T, db *gorm.DB, key, value string) {
	t.Helper()
	require.NoError(t, db.Save(&models.BillingSetting{Key: key, Value: value}).Error)
}

func TestResolver_StoreWinsOverEnv(t *testing.T) {
	r, db, m := newTestResolver(t, config.StripeConfig{WebhookSecret: "whsec_env"}, time.Minute)
	ctx := context.Background()

	v, err := r.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "whsec_env", v)

	putSetting(t, db, models.BillingSettingStripeWebhookSecret, "whsec_store")

	v, err = r.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "whsec_env", v, "cached value served until invalidated")

	r.Invalidate(models.BillingSettingStripeWebhookSecret)
	v, err = r.WebhookSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "whsec_store", v)

	key := models.BillingSettingStripeWebhookSecret
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigResolutions.WithLabelValues(key, "env")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigResolutions.WithLabelValues(key, "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigResolutions.WithLabelValues(key, "store")))
}

func TestResolver_TTLExpiry(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{}, time.Minute)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_old")
	v, err := r.StripeSecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_old", v)

	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_new")
	now = now.Add(30 * time.Second)
	v, _ = r.StripeSecretKey(ctx)
	assert.Equal(t, "sk_old", v)

	now = now.Add(31 * time.Second)
	v, _ = r.StripeSecretKey(ctx)
	assert.Equal(t, "sk_new", v)
}

func TestResolver_MissingIsNotCached(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{}, time.Minute)
	ctx := context.Background()

	_, err := r.StripeSecretKey(ctx)
	assert.ErrorIs(t, err, ErrConfigMissing)

	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_live")
	v, err := r.StripeSecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_live", v)
}

func TestResolver_InvalidateAll(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{SecretKey: "sk_env", WebhookSecret: "whsec_env"}, time.Hour)
	ctx := context.Background()

	_, _ = r.StripeSecretKey(ctx)
	_, _ = r.WebhookSecret(ctx)
	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_store")
	putSetting(t, db, models.BillingSettingStripeWebhookSecret, "whsec_store")

	r.Invalidate()
	sk, _ := r.StripeSecretKey(ctx)
	wh, _ := r.WebhookSecret(ctx)
	assert.Equal(t, "sk_store", sk)
	assert.Equal(t, "whsec_store", wh)
}

func TestResolver_NoCacheWhenTTLZero(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{SecretKey: "sk_env"}, 0)
	ctx := context.Background()

	v, _ := r.StripeSecretKey(ctx)
	assert.Equal(t, "sk_env", v)
	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_store")
	v, _ = r.StripeSecretKey(ctx)
	assert.Equal(t, "sk_store", v)
}

func TestResolver_LoadSurvivesCallerCancellation(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{}, time.Minute)
	putSetting(t, db, models.BillingSettingStripeSecretKey, "sk_store")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := r.StripeSecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_store", v)
}

func TestResolver_InvalidateDuringLoadIsNotOverwritten(t *testing.T) {
	r, db, _ := newTestResolver(t, config.StripeConfig{}, time.Minute)
	ctx := context.Background()
	key := models.BillingSettingStripeSecretKey
	putSetting(t, db, key, "sk_old")

	invalidated := false
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:invalidate_mid_load", func(*gorm.DB) {
		if !invalidated {
			invalidated = true
			r.Invalidate(key)
		}
	}))

	v, err := r.StripeSecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_old", v)
	require.True(t, invalidated)

	_, ok := r.cached(key)
	assert.False(t, ok, "value loaded before the invalidation is not cached")

	putSetting(t, db, key, "sk_new")
	v, err = r.StripeSecretKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk_new", v)
}
