package subscription

import (
	"context"
	"errors"
	"fmt"

	models "github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxScanSize = 200

// ErrInvalidScanRequest rejects filters or sort fields outside the allowed columns.
var ErrInvalidScanRequest = errors.New("invalid scan request")

// Columns the admin list APIs may filter and sort on.
var (
	SubscriptionScanFields = []string{
		"user_id", "external_subscription_id", "external_customer_id", "status", "plan_id", "tier",
		"cancel_at_period_end", "current_period_end", "created_at", "updated_at",
	}
	PaymentScanFields = []string{
		"user_id", "external_subscription_id", "external_invoice_id", "status", "currency",
		"amount_minor", "occurred_at", "created_at",
	}
)

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}

// ScanSubscriptions implements paginated admin listing of subscriptions.
func (s *Service) ScanSubscriptions(ctx context.Context, req *ScanRequest) (*ScanResponse[models.Subscription], error) {
	return scan[models.Subscription](ctx, s.db, req, SubscriptionScanFields)
}

// ScanPayments implements paginated admin listing of payment transactions.
func (s *Service) ScanPayments(ctx context.Context, req *ScanRequest) (*ScanResponse[models.PaymentTransaction], error) {
	return scan[models.PaymentTransaction](ctx, s.db, req, PaymentScanFields)
}

func scan[T any](ctx context.Context, db *gorm.DB, req *ScanRequest, allowed []string) (*ScanResponse[T], error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidScanRequest)
	}
	for _, f := range req.Filters {
		if err := f.Validate(allowed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScanRequest, err)
		}
	}
	if req.SortBy != "" && !lo.Contains(allowed, req.SortBy) {
		return nil, fmt.Errorf("%w: sort on field %q is not allowed", ErrInvalidScanRequest, req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	req.Size = min(req.Size, maxScanSize)
	req.From = max(req.From, 0)

	var model T
	tx := db.WithContext(ctx).Model(&model)
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}

	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	q := tx.Limit(req.Size).Offset(req.From)
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"},
		{Column: clause.Column{Name: "id"}, Desc: req.SortOrder != "asc"},
	}})

	var rows []*T
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	return &ScanResponse[T]{Items: rows, Total: total}, nil
}
