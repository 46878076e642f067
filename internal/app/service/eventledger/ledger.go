package eventledger

import (
	"context"
	"time"

	platformredis "github.com/fatflowers/membership/internal/platform/redis"
	"github.com/fatflowers/membership/pkg/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const eventPrefix = "billing_event"

// Ledger remembers processor event ids that were handled successfully, so a
// redelivery can be acknowledged without running the reconciler again.
// A nil *Ledger reports nothing as seen and marks nothing.
type Ledger struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func New(rdb goredis.Cmdable, ttl time.Duration) *Ledger {
	return &Ledger{rdb: rdb, ttl: ttl}
}

// Seen reports whether eventID was marked handled.
func (l *Ledger) Seen(ctx context.Context, eventID string) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, nil
	}
	n, err := l.rdb.Exists(ctx, key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records eventID as handled for the ledger TTL.
func (l *Ledger) Mark(ctx context.Context, eventID string) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.SetNX(ctx, key(eventID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
}

func key(eventID string) string {
	return platformredis.Key(eventPrefix, eventID)
}

func newLedger(rdb *goredis.Client, cfg *config.Config) *Ledger {
	if rdb == nil {
		return nil
	}
	return New(rdb, cfg.Redis.EventTTL)
}

var Module = fx.Options(
	fx.Provide(newLedger),
)
