package metrics

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// KeyOutcome tags a route request with how it ended.
var KeyOutcome, _ = tag.NewKey("outcome")

// KeyEvent tags ingestion counts with what happened to the event.
var KeyEvent, _ = tag.NewKey("event")

// Request outcomes.
const (
	OutcomeRoutes   = "routes"
	OutcomeNoRoute  = "no_route"
	OutcomeCredit   = "credit"
	OutcomeInvalid  = "invalid"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Opencensus observables
var (
	// MSearchMs is the duration of one FindRoutes search in milliseconds
	MSearchMs = stats.Float64("pathfind/search", "The duration in milliseconds of a route search", stats.UnitMilliseconds)

	MRoutes = stats.Int64("pathfind/routes", "Routes returned per request", stats.UnitDimensionless)

	MIngest = stats.Int64("ingest/events", "Events seen by the ingestor", stats.UnitDimensionless)

	MOwed = stats.Int64("ledger/owed", "Total owed by all participants", stats.UnitDimensionless)
	MPaid = stats.Int64("ledger/paid", "Total paid by all participants", stats.UnitDimensionless)

	searchView = &view.View{
		Name:        "pathfind/search",
		Measure:     MSearchMs,
		Description: "The distribution of search durations",

		// [>=0ms, >=1ms, >=5ms, >=10ms, >=25ms, >=50ms, >=100ms, >=250ms, >=500ms, >=1s, >=5s]
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
		TagKeys:     []tag.Key{KeyOutcome},
	}
	requestsView = &view.View{
		Name:        "pathfind/requests",
		Measure:     MRoutes,
		Description: "Route requests by outcome",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyOutcome},
	}
	routesView = &view.View{
		Name:        "pathfind/routes",
		Measure:     MRoutes,
		Description: "Routes returned per request",
		Aggregation: view.Distribution(1, 2, 3, 5, 10, 25),
	}
	ingestView = &view.View{
		Name:        "ingest/events",
		Measure:     MIngest,
		Description: "Ingested events by result",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyEvent},
	}
	owedView = &view.View{
		Name:        "ledger/owed",
		Measure:     MOwed,
		Description: "Total owed by all participants",
		Aggregation: view.LastValue(),
	}
	paidView = &view.View{
		Name:        "ledger/paid",
		Measure:     MPaid,
		Description: "Total paid by all participants",
		Aggregation: view.LastValue(),
	}
)

// Views are all the views this package records into.
var Views = []*view.View{searchView, requestsView, routesView, ingestView, owedView, paidView}
