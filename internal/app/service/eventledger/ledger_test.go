package eventledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := New(rdb, time.Hour)
	ctx := context.Background()

	seen, err := l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, "evt_1"))
	seen, err = l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("membership:billing_event:evt_1"))
	assert.Equal(t, time.Hour, mr.TTL("membership:billing_event:evt_1"))

	mr.FastForward(2 * time.Hour)
	seen, err = l.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "entries expire with the ledger TTL")
}

func TestLedger_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	l := New(rdb, time.Hour)
	mr.Close()

	_, err := l.Seen(context.Background(), "evt_1")
	assert.Error(t, err)
}

func TestNilLedger(t *testing.T) {
	var l *Ledger
	seen, err := l.Seen(context.Background(), "evt_1")
	assert.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, l.Mark(context.Background(), "evt_1"))
}
