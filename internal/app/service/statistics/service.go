package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/types"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatisticType string

const (
	// Payment transactions
	StatisticTypeDailyPaymentCount StatisticType = "daily_payment_count"
	StatisticTypeDailyRevenue      StatisticType = "daily_revenue"
	StatisticTypeTotalRevenue      StatisticType = "total_revenue"

	// Subscriptions
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"
	StatisticTypeSubscriptionCountByStatus StatisticType = "subscription_count_by_status"
	StatisticTypeActiveSubscriptionByTier  StatisticType = "active_subscription_count_by_tier"
)

var statisticTypes = []StatisticType{
	StatisticTypeDailyPaymentCount, StatisticTypeDailyRevenue, StatisticTypeTotalRevenue,
	StatisticTypeDailyNewSubscriptionCount, StatisticTypeSubscriptionCountByStatus, StatisticTypeActiveSubscriptionByTier,
}

// Filter fields and the statistics they apply to. A filter on a field that does
// not apply to a statistic is dropped for that statistic.
var validFilters = map[string][]StatisticType{
	"currency": {StatisticTypeDailyPaymentCount, StatisticTypeDailyRevenue, StatisticTypeTotalRevenue},
	"status":   {StatisticTypeDailyPaymentCount},
	"user_id": {
		StatisticTypeDailyPaymentCount, StatisticTypeDailyRevenue, StatisticTypeTotalRevenue,
		StatisticTypeDailyNewSubscriptionCount, StatisticTypeSubscriptionCountByStatus, StatisticTypeActiveSubscriptionByTier,
	},
	"plan_id": {StatisticTypeDailyNewSubscriptionCount, StatisticTypeSubscriptionCountByStatus, StatisticTypeActiveSubscriptionByTier},
	"tier":    {StatisticTypeDailyNewSubscriptionCount, StatisticTypeSubscriptionCountByStatus},
}

// AllowedFilterFields lists the columns a statistic request may filter on.
func AllowedFilterFields() []string { return lo.Keys(validFilters) }

type BillingStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type BillingStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*BillingStatisticDataItem `json:"data_items"`
}

// Validate checks every data item id and every filter against the allowed columns.
func (r *BillingStatisticRequest) Validate() error {
	if r == nil || len(r.DataItems) == 0 {
		return fmt.Errorf("data_items required")
	}
	for i, item := range r.DataItems {
		if item == nil {
			return fmt.Errorf("data_items[%d] is null", i)
		}
		if !lo.Contains(statisticTypes, item.ID) {
			return fmt.Errorf("invalid data item id: %s", item.ID)
		}
	}
	allowed := AllowedFilterFields()
	for _, f := range r.Filters {
		if err := f.Validate(allowed); err != nil {
			return err
		}
	}
	return nil
}

// filtersFor keeps the filters applicable to statisticType.
func (r *BillingStatisticRequest) filtersFor(statisticType StatisticType) types.FiltersAnd {
	return lo.Filter(r.Filters, func(f *types.CommonFilter, _ int) bool {
		return lo.Contains(validFilters[f.Field], statisticType)
	})
}

type BillingStatisticResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
	// Amount is Value in major currency units for revenue statistics.
	Amount *decimal.Decimal `json:"amount,omitempty" gorm:"-"`
}

type BillingStatisticResponse struct {
	DataItems map[StatisticType][]BillingStatisticResponseDataItem `json:"data_items"`
}

// Service provides admin statistics over payment transactions and subscriptions.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

// day renders column as YYYY-MM-DD in the connected dialect.
func (s *Service) day(column string) string {
	if s.db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("substr(%s, 1, 10)", column)
}

func (s *Service) payments(ctx context.Context, request *BillingStatisticRequest, t StatisticType) *gorm.DB {
	return s.db.WithContext(ctx).Table((models.PaymentTransaction{}).TableName()).
		Where(clause.Where{Exprs: []clause.Expression{request.filtersFor(t)}})
}

func (s *Service) subscriptions(ctx context.Context, request *BillingStatisticRequest, t StatisticType) *gorm.DB {
	return s.db.WithContext(ctx).Table((models.Subscription{}).TableName()).
		Where(clause.Where{Exprs: []clause.Expression{request.filtersFor(t)}})
}

func (s *Service) getDailyPaymentCount(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	day := s.day("occurred_at")
	q := s.payments(ctx, request, StatisticTypeDailyPaymentCount).
		Select(day + " as date, status as label, count(*) as value").
		Group(day).Group("status").
		Order("date desc").Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyRevenue(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	day := s.day("occurred_at")
	q := s.payments(ctx, request, StatisticTypeDailyRevenue).
		Select(day+" as date, currency as label, sum(amount_minor) as value").
		Where("status = ?", types.PaymentStatusSucceeded).
		Group(day).Group("currency").
		Order("date desc").Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return withAmounts(results), nil
}

func (s *Service) getTotalRevenue(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.payments(ctx, request, StatisticTypeTotalRevenue).
		Select("currency as label, sum(amount_minor) as value").
		Where("status = ?", types.PaymentStatusSucceeded).
		Group("currency").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return withAmounts(results), nil
}

func (s *Service) getDailyNewSubscriptionCount(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	day := s.day("created_at")
	q := s.subscriptions(ctx, request, StatisticTypeDailyNewSubscriptionCount).
		Select(day + " as date, count(*) as value").
		Group(day).
		Order("date desc")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getSubscriptionCountByStatus(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.subscriptions(ctx, request, StatisticTypeSubscriptionCountByStatus).
		Select("status as label, count(*) as value").
		Group("status").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveSubscriptionByTier(ctx context.Context, request *BillingStatisticRequest) ([]BillingStatisticResponseDataItem, error) {
	var results []BillingStatisticResponseDataItem
	q := s.subscriptions(ctx, request, StatisticTypeActiveSubscriptionByTier).
		Select("tier as label, count(*) as value").
		Where("status IN ?", []types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}).
		Group("tier").
		Order("label")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func withAmounts(items []BillingStatisticResponseDataItem) []BillingStatisticResponseDataItem {
	for i := range items {
		amount := types.MinorToMajor(items[i].Value, items[i].Label)
		items[i].Amount = &amount
	}
	return items
}

func (s *Service) getBillingStatistic(ctx context.Context, request *BillingStatisticRequest, dataItem *BillingStatisticDataItem) ([]BillingStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyPaymentCount:
		return s.getDailyPaymentCount(ctx, request)
	case StatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case StatisticTypeTotalRevenue:
		return s.getTotalRevenue(ctx, request)
	case StatisticTypeDailyNewSubscriptionCount:
		return s.getDailyNewSubscriptionCount(ctx, request)
	case StatisticTypeSubscriptionCountByStatus:
		return s.getSubscriptionCountByStatus(ctx, request)
	case StatisticTypeActiveSubscriptionByTier:
		return s.getActiveSubscriptionByTier(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetBillingStatistic computes every requested data item concurrently.
func (s *Service) GetBillingStatistic(ctx context.Context, request *BillingStatisticRequest) (*BillingStatisticResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	var mu sync.Mutex
	results := make(map[StatisticType][]BillingStatisticResponseDataItem, len(request.DataItems))
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range request.DataItems {
		g.Go(func() error {
			res, err := s.getBillingStatistic(gctx, request, item)
			if err != nil {
				return err
			}
			mu.Lock()
			results[item.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &BillingStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
