package billingconfig

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/config"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ErrConfigMissing means neither the live settings table nor the environment
// provides a value.
var ErrConfigMissing = errors.New("billing configuration missing")

type Source string

const (
	SourceStore Source = "store"
	SourceEnv   Source = "env"
)

type entry struct {
	value     string
	source    Source
	fetchedAt time.Time
}

// Resolver looks billing secrets up in the billing_setting table first and the
// environment second. Hits are cached for ttl; misses are never cached.
type Resolver struct {
	db      *gorm.DB
	env     map[string]string
	ttl     time.Duration
	log     *zap.SugaredLogger
	metrics *metrics.Billing
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	// gen is bumped by Invalidate; a load started under an older gen is not cached.
	gen   uint64
	group singleflight.Group
}

func NewResolver(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger, m *metrics.Billing) *Resolver {
	return &Resolver{
		db: db,
		env: map[string]string{
			models.BillingSettingStripeSecretKey:     cfg.Stripe.SecretKey,
			models.BillingSettingStripeWebhookSecret: cfg.Stripe.WebhookSecret,
		},
		ttl:     cfg.Billing.ConfigCacheTTL,
		log:     log,
		metrics: m,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// StripeSecretKey returns the processor API key.
func (r *Resolver) StripeSecretKey(ctx context.Context) (string, error) {
	return r.Get(ctx, models.BillingSettingStripeSecretKey)
}

// WebhookSecret returns the webhook signing secret.
func (r *Resolver) WebhookSecret(ctx context.Context) (string, error) {
	return r.Get(ctx, models.BillingSettingStripeWebhookSecret)
}

// Get resolves key. The returned error wraps ErrConfigMissing when no source has it.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if e, ok := r.cached(key); ok {
		r.observe(key, "cache")
		return e.value, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		gen := r.gen
		r.mu.RUnlock()

		// shared by every waiter on key, so one caller's cancellation must not fail the rest
		e, err := r.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		if r.ttl > 0 {
			r.mu.Lock()
			if r.gen == gen {
				r.entries[key] = e
			}
			r.mu.Unlock()
		}
		return e, nil
	})
	if err != nil {
		return "", err
	}
	e := v.(entry)
	r.observe(key, string(e.source))
	return e.value, nil
}

// Invalidate drops cached values for keys, or every cached value when none is given.
func (r *Resolver) Invalidate(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if len(keys) == 0 {
		for k := range r.entries {
			r.group.Forget(k)
		}
		r.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		r.group.Forget(k)
		delete(r.entries, k)
	}
}

func (r *Resolver) cached(key string) (entry, bool) {
	if r.ttl <= 0 {
		return entry{}, false
	}
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok || r.now().Sub(e.fetchedAt) >= r.ttl {
		return entry{}, false
	}
	return e, true
}

func (r *Resolver) load(ctx context.Context, key string) (entry, error) {
	var setting models.BillingSetting
	err := r.db.WithContext(ctx).Where("setting_key = ?", key).Limit(1).Find(&setting).Error
	switch {
	case err != nil:
		// the environment still answers when the settings table is unreachable
		logctx.FromCtx(ctx, r.log).Warnw("billing_setting_lookup_failed", "key", key, "err", err)
	case setting.Value != "":
		return entry{value: setting.Value, source: SourceStore, fetchedAt: r.now()}, nil
	}

	if v := r.env[key]; v != "" {
		return entry{value: v, source: SourceEnv, fetchedAt: r.now()}, nil
	}
	r.observe(key, "missing")
	return entry{}, fmt.Errorf("%w: %s", ErrConfigMissing, key)
}

func (r *Resolver) observe(key, source string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ConfigResolutions.WithLabelValues(key, source).Inc()
}
