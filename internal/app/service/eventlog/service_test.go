package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/membership/internal/app/service/billingevent"
	"github.com/fatflowers/membership/internal/models"
	"github.com/fatflowers/membership/internal/platform/db/dbtest"
	"github.com/fatflowers/membership/pkg/logctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReceivedAndFinished(t *testing.T) {
	s := New(dbtest.New(t), zap.NewNop().Sugar())
	ctx := logctx.WithTraceID(context.Background(), "trace-1")
	ev := &billingevent.Event{
		ID:        "evt_1",
		Type:      billingevent.TypeInvoicePaid,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Raw:       []byte(`{"object":"invoice","id":"in_1"}`),
		Payload:   &billingevent.InvoiceOutcome{InvoiceID: "in_1", SubscriptionID: "sub_1"},
	}

	s.Received(ctx, ev)
	s.Wait()
	s.Finished(ctx, ev, map[string]string{"action": "payment_recorded"}, nil)
	s.Wait()
	s.Finished(ctx, ev, nil, errors.New("boom"))
	s.Wait()

	rows, err := s.ListByEventID(context.Background(), "evt_1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, models.BillingEventLogStatusReceived, rows[0].Status)
	assert.Equal(t, "trace-1", rows[0].TraceID)
	assert.Equal(t, "sub_1", rows[0].ExternalSubscriptionID)
	assert.Equal(t, "stripe", rows[0].Provider)
	assert.Nil(t, rows[0].Result)

	assert.Equal(t, models.BillingEventLogStatusHandled, rows[1].Status)
	require.NotNil(t, rows[1].Result)
	assert.Contains(t, string(*rows[1].Result), "payment_recorded")

	assert.Equal(t, models.BillingEventLogStatusHandleFailed, rows[2].Status)
	assert.Contains(t, string(*rows[2].Result), "boom")
}
