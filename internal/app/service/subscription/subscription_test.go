package subscription

import (
	"context"
	"testing"
	"time"

	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/db/dbtest"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.New(t), zap.NewNop().Sugar())
}

func ptrTime(t time.Time) *time.Time { return &t }

func sampleSubscription(externalID, userID string, start time.Time) *models.Subscription {
	return &models.Subscription{
		ExternalSubscriptionID: externalID,
		UserID:                 userID,
		ExternalCustomerID:     "cus_1",
		Status:                 types.SubscriptionStatusActive,
		PlanID:                 "price_core",
		Tier:                   types.TierCore,
		CurrentPeriodStart:     ptrTime(start),
		CurrentPeriodEnd:       ptrTime(start.Add(30 * 24 * time.Hour)),
	}
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := sampleSubscription("sub_1", "u1", start)
	require.NoError(t, s.Upsert(ctx, first, Change{Reason: "checkout.session.completed", EventID: "evt_1", CachedTier: types.TierCore}))
	require.NotEmpty(t, first.ID)

	got, err := s.GetByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, types.SubscriptionStatusActive, got.Status)

	second := sampleSubscription("sub_1", "u1", start)
	second.Status = types.SubscriptionStatusPastDue
	second.PlanID = "price_max"
	second.Tier = types.TierMax
	require.NoError(t, s.Upsert(ctx, second, Change{Reason: "checkout.session.completed", EventID: "evt_2"}))

	got, err = s.GetByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "upsert keeps the row identity")
	assert.Equal(t, types.SubscriptionStatusPastDue, got.Status)
	assert.Equal(t, "price_max", got.PlanID)

	rows, err := s.ListByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "one row per external subscription")

	tier, err := s.GetCachedTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.TierCore, tier)

	logs, err := s.ListLogs(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Nil(t, logs[0].Before.Data())
	assert.Equal(t, types.SubscriptionStatusActive, logs[1].Before.Data().Status)
	assert.Equal(t, types.SubscriptionStatusPastDue, logs[1].After.Data().Status)
}

func TestUpsert_RejectsInvertedPeriod(t *testing.T) {
	s := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := sampleSubscription("sub_1", "u1", start)
	m.CurrentPeriodEnd = ptrTime(start)

	err := s.Upsert(context.Background(), m, Change{Reason: "test"})
	require.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = s.GetByExternalID(context.Background(), "sub_1")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestUpdate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eventAt := start.Add(time.Hour)

	tests := []struct {
		name    string
		seed    bool
		change  Change
		wantErr error
		want    types.SubscriptionStatus
	}{
		{name: "missing row", seed: false, change: Change{Reason: "customer.subscription.updated"}, wantErr: ErrSubscriptionNotFound},
		{name: "applies mutation", seed: true, change: Change{Reason: "customer.subscription.updated", EventAt: eventAt.Add(time.Minute)}, want: types.SubscriptionStatusCanceled},
		{name: "older event still applies by default", seed: true, change: Change{Reason: "customer.subscription.updated", EventAt: eventAt.Add(-time.Minute)}, want: types.SubscriptionStatusCanceled},
		{name: "older event rejected when asked", seed: true, change: Change{Reason: "customer.subscription.updated", EventAt: eventAt.Add(-time.Minute), RejectStale: true}, wantErr: ErrStaleEvent, want: types.SubscriptionStatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			ctx := context.Background()
			if tt.seed {
				require.NoError(t, s.Upsert(ctx, sampleSubscription("sub_1", "u1", start), Change{Reason: "seed", EventAt: eventAt}))
			}

			updated, err := s.Update(ctx, "sub_1", tt.change, func(m *models.Subscription) {
				m.Status = types.SubscriptionStatusCanceled
				m.ID = "overwritten"
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, updated)
			} else {
				require.NoError(t, err)
				assert.NotEqual(t, "overwritten", updated.ID)
			}

			if !tt.seed {
				return
			}
			got, err := s.GetByExternalID(ctx, "sub_1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestGetLatestByUserID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.GetLatestByUserID(ctx, "u1")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	older := sampleSubscription("sub_old", "u1", start)
	older.CreatedAt = start
	older.Status = types.SubscriptionStatusCanceled
	newer := sampleSubscription("sub_new", "u1", start)
	newer.CreatedAt = start.Add(24 * time.Hour)
	other := sampleSubscription("sub_other", "u2", start)
	other.CreatedAt = start.Add(48 * time.Hour)

	for _, m := range []*models.Subscription{older, newer, other} {
		require.NoError(t, s.Upsert(ctx, m, Change{Reason: "seed"}))
	}

	got, err := s.GetLatestByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_new", got.ExternalSubscriptionID)
}

func TestCachedTierAndPayments(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tier, err := s.GetCachedTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.TierFree, tier)

	require.NoError(t, s.SetCachedTier(ctx, "u1", types.TierDaily))
	require.NoError(t, s.SetCachedTier(ctx, "u1", types.TierMax))
	tier, err = s.GetCachedTier(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.TierMax, tier)

	assert.Error(t, s.SetCachedTier(ctx, "", types.TierMax))

	p := &models.PaymentTransaction{
		UserID:                 "u1",
		ExternalSubscriptionID: "sub_1",
		ExternalInvoiceID:      "in_1",
		Amount:                 decimal.RequireFromString("9.99"),
		AmountMinor:            999,
		Currency:               "usd",
		Status:                 types.PaymentStatusSucceeded,
		OccurredAt:             time.Now(),
	}
	require.NoError(t, s.AppendPayment(ctx, p))
	assert.NotEmpty(t, p.ID)
}

func TestInsertOrOverwrite_ConcurrentInsertConverges(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Row written by another delivery between our read and our insert.
	winner := sampleSubscription("sub_1", "u1", start)
	winner.ID = "0190a000-0000-7000-8000-000000000001"
	winner.CreatedAt = start
	require.NoError(t, s.db.Create(winner).Error)

	late := sampleSubscription("sub_1", "u1", start)
	late.ID = "0190a000-0000-7000-8000-000000000002"
	late.Status = types.SubscriptionStatusPastDue
	late.CancelAtPeriodEnd = true
	require.NoError(t, s.insertOrOverwrite(ctx, s.db, late))
	assert.Equal(t, winner.ID, late.ID)

	rows, err := s.ListByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, winner.ID, rows[0].ID)
	assert.Equal(t, types.SubscriptionStatusPastDue, rows[0].Status)
	assert.True(t, rows[0].CancelAtPeriodEnd)
}
