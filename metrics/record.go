package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/mit-dci/pfs/eventbus"
	"github.com/mit-dci/pfs/ingest"
	"github.com/mit-dci/pfs/ledger"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
)

func record(ctx context.Context, key tag.Key, value string, ms ...stats.Measurement) {
	ctx, err := tag.New(ctx, tag.Upsert(key, value))
	if err != nil {
		logging.Warnf("metrics: tagging %s: %s", value, err.Error())
		return
	}
	stats.Record(ctx, ms...)
}

// RecordSearch notes one route request.
func RecordSearch(ctx context.Context, outcome string, took time.Duration, routes int) {
	ms := float64(took) / float64(time.Millisecond)
	record(ctx, KeyOutcome, outcome, MSearchMs.M(ms), MRoutes.M(int64(routes)))
}

// WatchBus counts ingestion results off the bus.
func WatchBus(bus *eventbus.EventBus) {
	for _, name := range []string{ingest.EventApplied, ingest.EventDropped, ingest.EventFlagged} {
		name := name
		bus.RegisterHandler(name, func(eventbus.Event) eventbus.EventHandleResult {
			record(context.Background(), KeyEvent, name, MIngest.M(1))
			return eventbus.EHANDLE_OK
		})
	}
}

// WatchLedger keeps the owed and paid totals current from a ledger delta
// subscription until ctx is done or the subscription closes.
func WatchLedger(ctx context.Context, ch <-chan interface{}) error {
	type account struct{ owed, paid int64 }
	accounts := make(map[lncore.Address]account)
	var owed, paid int64

	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			d, ok := v.(ledger.Delta)
			if !ok {
				continue
			}
			old := accounts[d.Participant]
			owed += d.Owed - old.owed
			paid += d.Paid - old.paid
			accounts[d.Participant] = account{d.Owed, d.Paid}
			stats.Record(ctx, MOwed.M(owed), MPaid.M(paid))
		}
	}
}
