package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"

	"github.com/mit-dci/pfs/eventbus"
	"github.com/mit-dci/pfs/ingest"
	"github.com/mit-dci/pfs/ledger"
	"github.com/mit-dci/pfs/lncore"
)

func countFor(t *testing.T, viewName, tagValue string) int64 {
	t.Helper()
	rows, err := view.RetrieveData(viewName)
	require.NoError(t, err)
	for _, r := range rows {
		for _, tg := range r.Tags {
			if tg.Value == tagValue {
				return r.Data.(*view.CountData).Value
			}
		}
	}
	return 0
}

func TestRecordSearch(t *testing.T) {
	require.NoError(t, RegisterViews())
	before := countFor(t, "pathfind/requests", OutcomeNoRoute)

	RecordSearch(context.Background(), OutcomeNoRoute, 3*time.Millisecond, 0)
	RecordSearch(context.Background(), OutcomeNoRoute, time.Millisecond, 0)
	assert.Equal(t, before+2, countFor(t, "pathfind/requests", OutcomeNoRoute))
}

func TestWatchBus(t *testing.T) {
	require.NoError(t, RegisterViews())
	bus := eventbus.NewEventBus()
	WatchBus(bus)
	before := countFor(t, "ingest/events", ingest.EventFlagged)

	_, err := bus.Publish(ingest.FlaggedEvent{Reason: "test"})
	require.NoError(t, err)
	assert.Equal(t, before+1, countFor(t, "ingest/events", ingest.EventFlagged))
}

func TestWatchLedger(t *testing.T) {
	require.NoError(t, RegisterViews())
	l, err := ledger.New(ledger.Config{Service: lncore.Address{1}, CreditLimit: 100})
	require.NoError(t, err)

	ch := l.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- WatchLedger(ctx, ch) }()

	r, err := l.CheckAndReserve(lncore.Address{2}, 5)
	require.NoError(t, err)
	require.NoError(t, r.Commit())

	var owed int64
	for i := 0; i < 100 && owed != 5; i++ {
		time.Sleep(10 * time.Millisecond)
		rows, err := view.RetrieveData("ledger/owed")
		require.NoError(t, err)
		if len(rows) == 1 {
			owed = int64(rows[0].Data.(*view.LastValueData).Value)
		}
	}
	assert.Equal(t, int64(5), owed)

	cancel()
	assert.NoError(t, <-done)
	l.Unsubscribe(ch)
	require.NoError(t, l.Close())
}

func TestSetupDisabled(t *testing.T) {
	srv, err := SetupMetrics(Config{})
	assert.NoError(t, err)
	assert.Nil(t, srv)
}

func TestSetupBadEndpoint(t *testing.T) {
	_, err := SetupMetrics(Config{Enabled: true, ReportInterval: "1s", PrometheusEndpoint: "nonsense"})
	assert.Error(t, err)

	_, err = SetupMetrics(Config{Enabled: true, ReportInterval: "soon", PrometheusEndpoint: "/ip4/127.0.0.1/tcp/9400"})
	assert.Error(t, err)
}
