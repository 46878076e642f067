package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/tool"
	"github.com/fatflowers/membership/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrStaleEvent is returned when stale-event rejection is on and the event
	// predates the last one applied to the row.
	ErrStaleEvent = errors.New("event older than last applied event")
	// ErrInvalidPeriod rejects a write whose period end is not after its start.
	ErrInvalidPeriod = errors.New("subscription period end not after start")
)

// Change describes the event behind a write.
type Change struct {
	// Reason is the processor event type.
	Reason  string
	EventID string
	// EventAt is the processor creation time of the event; zero when unknown.
	EventAt time.Time
	// CachedTier, when set, is written to the owner's profile in the same transaction.
	CachedTier types.Tier
	// RejectStale refuses the write when EventAt is before the row's LastEventAt.
	RejectStale bool
}

// Service is the subscription record store. Writes are full overwrites keyed by
// external subscription id; rows are never deleted.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// Upsert writes m as the complete state of its external subscription. An existing row
// keeps its ID and CreatedAt; every other column is replaced.
func (s *Service) Upsert(ctx context.Context, m *models.Subscription, ch Change) error {
	if m == nil || m.ExternalSubscriptionID == "" {
		return fmt.Errorf("upsert subscription: external subscription id required")
	}
	if err := checkPeriod(m); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.getByExternalIDWithTx(ctx, tx, m.ExternalSubscriptionID)
		if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
		if original != nil {
			if ch.RejectStale && isStale(original, ch.EventAt) {
				return ErrStaleEvent
			}
			m.ID = original.ID
			m.CreatedAt = original.CreatedAt
		} else if m.ID == "" {
			m.ID = tool.GenerateUUIDV7()
		}
		s.stamp(m, ch)

		if original != nil {
			err = tx.WithContext(ctx).Save(m).Error
		} else {
			err = s.insertOrOverwrite(ctx, tx, m)
		}
		if err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}
		return s.afterWrite(ctx, tx, original, m, ch)
	})
}

// Update applies mutate to the row of externalID and saves the result. It returns
// ErrSubscriptionNotFound when no row exists; nothing is written in that case.
func (s *Service) Update(ctx context.Context, externalID string, ch Change, mutate func(*models.Subscription)) (*models.Subscription, error) {
	var updated *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.getByExternalIDWithTx(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if ch.RejectStale && isStale(original, ch.EventAt) {
			return ErrStaleEvent
		}
		before := *original
		m := original
		mutate(m)
		m.ID = before.ID
		m.ExternalSubscriptionID = before.ExternalSubscriptionID
		m.CreatedAt = before.CreatedAt
		if err := checkPeriod(m); err != nil {
			return err
		}
		s.stamp(m, ch)

		if err := tx.WithContext(ctx).Save(m).Error; err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		updated = m
		return s.afterWrite(ctx, tx, &before, m, ch)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetByExternalID returns the row of a processor subscription.
func (s *Service) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	return s.getByExternalIDWithTx(ctx, s.db, externalID)
}

// GetLatestByUserID returns the most recently created subscription of a user.
func (s *Service) GetLatestByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var m models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription by user: %w", err)
	}
	return &m, nil
}

// ListByUserID returns every subscription row of a user, newest first.
func (s *Service) ListByUserID(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var items []*models.Subscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AppendPayment inserts a payment transaction. Payments are never updated.
func (s *Service) AppendPayment(ctx context.Context, p *models.PaymentTransaction) error {
	if p == nil {
		return fmt.Errorf("append payment: nil transaction")
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to append payment transaction: %w", err)
	}
	return nil
}

// SetCachedTier writes the user's cached plan tier.
func (s *Service) SetCachedTier(ctx context.Context, userID string, tier types.Tier) error {
	return setCachedTier(ctx, s.db, userID, tier, s.now())
}

// GetCachedTier returns the user's cached tier, TierFree when no profile exists.
func (s *Service) GetCachedTier(ctx context.Context, userID string) (types.Tier, error) {
	var p models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.TierFree, nil
		}
		return "", fmt.Errorf("failed to get user profile: %w", err)
	}
	return p.SubscriptionTier, nil
}

// ListLogs returns the change log of an external subscription, oldest first.
func (s *Service) ListLogs(ctx context.Context, externalID string) ([]*models.SubscriptionLog, error) {
	var logs []*models.SubscriptionLog
	if err := s.db.WithContext(ctx).Where("external_subscription_id = ?", externalID).Order("created_at").Order("id").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Service) getByExternalIDWithTx(ctx context.Context, tx *gorm.DB, externalID string) (*models.Subscription, error) {
	var m models.Subscription
	if err := tx.WithContext(ctx).Where("external_subscription_id = ?", externalID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &m, nil
}

// upsertColumns are overwritten when an insert collides with an existing
// external subscription id. Row identity and creation time are kept.
var upsertColumns = []string{
	"user_id", "external_customer_id", "status", "plan_id", "plan_name", "tier",
	"current_period_start", "current_period_end", "cancel_at_period_end", "cancel_at",
	"canceled_at", "trial_end", "last_event_at", "updated_at",
}

// insertOrOverwrite inserts m, or overwrites the row a concurrent writer created
// after our read. m is refreshed with the stored row identity.
func (s *Service) insertOrOverwrite(ctx context.Context, tx *gorm.DB, m *models.Subscription) error {
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_subscription_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(m).Error
	if err != nil {
		return err
	}
	stored, err := s.getByExternalIDWithTx(ctx, tx, m.ExternalSubscriptionID)
	if err != nil {
		return err
	}
	m.ID = stored.ID
	m.CreatedAt = stored.CreatedAt
	return nil
}

func (s *Service) stamp(m *models.Subscription, ch Change) {
	m.UpdatedAt = s.now()
	if !ch.EventAt.IsZero() {
		at := ch.EventAt
		m.LastEventAt = &at
	}
}

func (s *Service) afterWrite(ctx context.Context, tx *gorm.DB, before, after *models.Subscription, ch Change) error {
	if ch.CachedTier != "" {
		if err := setCachedTier(ctx, tx, after.UserID, ch.CachedTier, s.now()); err != nil {
			return err
		}
	}

	entry := &models.SubscriptionLog{
		ID:                     tool.GenerateUUIDV7(),
		UserID:                 after.UserID,
		ExternalSubscriptionID: after.ExternalSubscriptionID,
		Reason:                 ch.Reason,
		EventID:                ch.EventID,
		Before:                 datatypes.NewJSONType(before),
		After:                  datatypes.NewJSONType(after),
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save subscription log: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_written",
		"external_subscription_id", after.ExternalSubscriptionID,
		"user_id", after.UserID,
		"status", after.Status,
		"reason", ch.Reason,
	)
	return nil
}

func setCachedTier(ctx context.Context, db *gorm.DB, userID string, tier types.Tier, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("set cached tier: user id required")
	}
	p := &models.UserProfile{UserID: userID, SubscriptionTier: tier, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_tier", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to set cached tier: %w", err)
	}
	return nil
}

func isStale(row *models.Subscription, eventAt time.Time) bool {
	return row != nil && row.LastEventAt != nil && !eventAt.IsZero() && eventAt.Before(*row.LastEventAt)
}

func checkPeriod(m *models.Subscription) error {
	if m.CurrentPeriodStart != nil && m.CurrentPeriodEnd != nil && !m.CurrentPeriodEnd.After(*m.CurrentPeriodStart) {
		return fmt.Errorf("%w: subscription %s end %s start %s", ErrInvalidPeriod,
			m.ExternalSubscriptionID, m.CurrentPeriodEnd.Format(time.RFC3339), m.CurrentPeriodStart.Format(time.RFC3339))
	}
	return nil
}
