package eventlog

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/pkg/logctx"
	"github.com/fatflowers/membership/pkg/tool"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const providerStripe = "stripe"

// Service persists verified billing events and their handling results.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	wg  sync.WaitGroup
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Received logs ev with status received.
func (s *Service) Received(ctx context.Context, ev *billingevent.Event) {
	s.Save(ctx, s.entry(ctx, ev, models.BillingEventLogStatusReceived))
}

// Finished logs the outcome of ev: handled with the result, or handle_failed with the error.
func (s *Service) Finished(ctx context.Context, ev *billingevent.Event, res any, err error) {
	status := models.BillingEventLogStatusHandled
	if err != nil {
		status = models.BillingEventLogStatusHandleFailed
	}
	e := s.entry(ctx, ev, status)
	resMap := map[string]any{"result": res}
	if err != nil {
		resMap["error"] = err.Error()
	}
	resBytes, _ := json.Marshal(resMap)
	j := datatypes.JSON(resBytes)
	e.Result = &j
	s.Save(ctx, e)
}

// Save asynchronously persists an event log row. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.BillingEventLog) {
	if log == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if log.ID == "" {
			log.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save billing event log: %v", err)
		}
	}()
}

// Wait blocks until every pending save has finished.
func (s *Service) Wait() { s.wg.Wait() }

// ListByEventID returns the log rows of one processor event, oldest first.
func (s *Service) ListByEventID(ctx context.Context, eventID string) ([]*models.BillingEventLog, error) {
	var rows []*models.BillingEventLog
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) entry(ctx context.Context, ev *billingevent.Event, status models.BillingEventLogStatus) *models.BillingEventLog {
	e := &models.BillingEventLog{
		Provider:       providerStripe,
		EventID:        ev.ID,
		EventType:      string(ev.Type),
		TraceID:        logctx.TraceID(ctx),
		EventCreatedAt: ev.CreatedAt,
		Status:         status,
	}
	if ev.Payload != nil {
		e.ExternalSubscriptionID = ev.Payload.SubscriptionRef()
	}
	if json.Valid(ev.Raw) {
		e.Data = datatypes.JSON(ev.Raw)
	}
	return e
}

func registerFlush(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			s.Wait()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerFlush),
)
