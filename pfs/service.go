// Package pfs is the pathfinding service: a channel graph kept current from
// chain and off-chain events, route searches over it, and a ledger that
// charges for them.
package pfs

import (
	"context"
	"time"

	"github.com/mit-dci/pfs/consts"
	"github.com/mit-dci/pfs/eventbus"
	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/ingest"
	"github.com/mit-dci/pfs/ledger"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/mit-dci/pfs/metrics"
	"github.com/mit-dci/pfs/pathfind"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Config wires the parts together.  Ledger.Service doubles as our address.
type Config struct {
	RequestFee    int64
	PruneInterval time.Duration
	Engine        pathfind.Config
	Ingest        ingest.Config
	Ledger        ledger.Config
}

// RouteRequest is a route search in one token network.
type RouteRequest struct {
	Token lncore.TokenID
	pathfind.Request
}

// Service answers route requests for any number of token networks.
type Service struct {
	cfg      Config
	bus      *eventbus.EventBus
	store    *graph.Store
	ingestor *ingest.Ingestor
	engine   *pathfind.Engine
	ledger   *ledger.Ledger
}

func New(cfg Config) (*Service, error) {
	if cfg.RequestFee < 0 {
		return nil, errors.Errorf("negative request fee %d", cfg.RequestFee)
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 10 * consts.DefaultRetryInterval
	}

	l, err := ledger.New(cfg.Ledger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    cfg,
		bus:    eventbus.NewEventBus(),
		store:  graph.NewStore(),
		engine: pathfind.NewEngine(cfg.Engine),
		ledger: l,
	}
	icfg := cfg.Ingest
	icfg.Store = s.store
	icfg.Bus = s.bus
	s.ingestor = ingest.New(icfg)
	metrics.WatchBus(s.bus)

	logging.Infof("pfs: service %v up, request fee %d", cfg.Ledger.Service, cfg.RequestFee)
	return s, nil
}

func (s *Service) Bus() *eventbus.EventBus { return s.bus }
func (s *Service) Ledger() *ledger.Ledger  { return s.ledger }
func (s *Service) Address() lncore.Address { return s.cfg.Ledger.Service }

// FindRoutes charges requester the request fee and searches one snapshot of
// the token network.  The fee is only owed when routes come back; on no
// route, an error or cancellation the reservation is released.
func (s *Service) FindRoutes(ctx context.Context, requester lncore.Address, req RouteRequest) (routes []pathfind.Route, err error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.RecordSearch(ctx, outcome, time.Since(start), len(routes))
	}()

	if requester.IsZero() {
		requester = req.Source
	}
	res, err := s.ledger.CheckAndReserve(requester, s.cfg.RequestFee)
	if err != nil {
		outcome = metrics.OutcomeCredit
		return nil, err
	}
	defer res.Release()

	routes, err = s.engine.FindRoutes(ctx, s.store.Snapshot(req.Token), req.Request)
	switch {
	case errors.Cause(err) == pathfind.ErrInvalidRequest:
		outcome = metrics.OutcomeInvalid
		return nil, err
	case err == context.Canceled || err == context.DeadlineExceeded:
		outcome = metrics.OutcomeCanceled
		return nil, err
	case err != nil:
		return nil, err
	case len(routes) == 0:
		outcome = metrics.OutcomeNoRoute
		return routes, nil
	}

	if err := res.Commit(); err != nil {
		return nil, err
	}
	outcome = metrics.OutcomeRoutes
	return routes, nil
}

// GraphSnapshot is a frozen view of a token network.
func (s *Service) GraphSnapshot(token lncore.TokenID) *graph.Snapshot {
	return s.store.Snapshot(token)
}

func (s *Service) Tokens() []lncore.TokenID {
	return s.store.Tokens()
}

func (s *Service) LedgerBalance(p lncore.Address) (ledger.Entry, error) {
	return s.ledger.Balance(p)
}

func (s *Service) SettleIOU(iou ledger.IOU) error {
	return s.ledger.Settle(iou)
}

// Ingest applies one event, as if it had come from the event feed.
func (s *Service) Ingest(ev lncore.Event) error {
	return s.ingestor.Ingest(ev)
}

// Pending counts events held for channels not opened yet.
func (s *Service) Pending() int {
	return s.ingestor.Pending()
}

// Run feeds events into the graph, prunes settled channels now and then,
// and keeps the ledger metrics current.  It returns when ctx is done or
// ingestion had to halt.
func (s *Service) Run(ctx context.Context, evs <-chan lncore.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the rest has no reason to go on once the feed ends
		defer cancel()
		return s.ingestor.Run(ctx, evs)
	})

	deltas := s.ledger.Subscribe()
	g.Go(func() error {
		return metrics.WatchLedger(ctx, deltas)
	})

	g.Go(func() error {
		tick := time.NewTicker(s.cfg.PruneInterval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				for _, t := range s.store.Tokens() {
					if n := s.store.Prune(t); n > 0 {
						logging.Infof("pfs: pruned %d edges from %v", n, t)
					}
				}
			}
		}
	})

	err := g.Wait()
	// pubsub may still be delivering; drain until Unsubscribe closes deltas
	go func() {
		for range deltas {
		}
	}()
	s.ledger.Unsubscribe(deltas)
	if err == context.Canceled {
		return nil
	}
	return err
}

// Close releases the ledger storage.
func (s *Service) Close() error {
	return s.ledger.Close()
}
