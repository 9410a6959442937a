// Package pathfind searches a graph snapshot for the cheapest routes of a
// payment.
//
// Fees depend on the amount forwarded, and the amount forwarded over an
// edge depends on the fees of everything after it.  So searches run from
// the target back to the source, and the K shortest paths come from Yen's
// algorithm with the fixed part of each path being its suffix.
package pathfind

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/mit-dci/pfs/consts"
	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/pkg/errors"
)

// ErrInvalidRequest is returned for requests that can't describe a payment.
var ErrInvalidRequest = errors.New("invalid route request")

// Config holds the engine defaults.  A zero SettleRevealRatio turns the
// timeout check off.
type Config struct {
	MaxPaths          int
	MaxHops           int
	SettleRevealRatio uint64
}

// DefaultConfig is what the daemon runs with unless told otherwise.
func DefaultConfig() Config {
	return Config{
		MaxPaths:          consts.DefaultMaxPaths,
		MaxHops:           consts.DefaultMaxHops,
		SettleRevealRatio: consts.SettleToRevealRatio,
	}
}

// Engine runs route searches.  It holds no state between calls, so one
// engine serves any number of concurrent searches.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.MaxPaths <= 0 {
		cfg.MaxPaths = consts.DefaultMaxPaths
	}
	if cfg.MaxPaths > consts.MaxPathsPerRequest {
		cfg.MaxPaths = consts.MaxPathsPerRequest
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = consts.DefaultMaxHops
	}
	return &Engine{cfg: cfg}
}

type edgeKey struct {
	channel lncore.ChannelID
	from    lncore.Address
}

func keyOf(e *graph.Edge) edgeKey {
	return edgeKey{e.Channel, e.From}
}

// search is the state of one FindRoutes call.
type search struct {
	ctx   context.Context
	snap  *graph.Snapshot
	req   Request
	ratio uint64
	hops  int
	pops  int

	excludedNodes map[lncore.Address]bool
	excludedChans map[lncore.ChannelID]bool
}

// FindRoutes returns up to K feasible routes, best first.  No route is an
// empty result, not an error.
func (en *Engine) FindRoutes(ctx context.Context, snap *graph.Snapshot, req Request) ([]Route, error) {
	k, maxHops, err := en.limits(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &search{
		ctx:           ctx,
		snap:          snap,
		req:           req,
		ratio:         en.cfg.SettleRevealRatio,
		hops:          maxHops,
		excludedNodes: make(map[lncore.Address]bool),
		excludedChans: make(map[lncore.ChannelID]bool),
	}
	for _, a := range req.ExcludeNodes {
		s.excludedNodes[a] = true
	}
	for _, c := range req.ExcludeChannels {
		s.excludedChans[c] = true
	}

	routes := []Route{}
	if s.excludedNodes[req.Source] || s.excludedNodes[req.Target] {
		return routes, nil
	}

	found, err := s.yen(k)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return better(found[i], found[j]) })
	for _, l := range found {
		routes = append(routes, l.route(req.Amount))
	}

	logging.Debugf("pathfind: %d routes %v -> %v for %d in %v (v%d), %d labels popped",
		len(routes), req.Source, req.Target, req.Amount, snap.Token(), snap.Version(), s.pops)
	return routes, nil
}

func (en *Engine) limits(req Request) (int, int, error) {
	switch {
	case req.Amount <= 0:
		return 0, 0, errors.Wrap(ErrInvalidRequest, "amount must be positive")
	case req.Source.IsZero() || req.Target.IsZero():
		return 0, 0, errors.Wrap(ErrInvalidRequest, "missing source or target")
	case req.Source == req.Target:
		return 0, 0, errors.Wrap(ErrInvalidRequest, "source is the target")
	case req.MaxPaths < 0 || req.MaxHops < 0:
		return 0, 0, errors.Wrap(ErrInvalidRequest, "negative limit")
	}

	k := req.MaxPaths
	if k == 0 {
		k = en.cfg.MaxPaths
	}
	if k > consts.MaxPathsPerRequest {
		k = consts.MaxPathsPerRequest
	}
	hops := req.MaxHops
	if hops == 0 {
		hops = en.cfg.MaxHops
	}
	return k, hops, nil
}

// yen collects up to k loopless routes in order of cost.
func (s *search) yen(k int) ([]*label, error) {
	target := &label{node: s.req.Target}
	first, err := s.shortest(target, nil)
	if err != nil || first == nil {
		return nil, err
	}

	found := []*label{first}
	seen := map[string]bool{first.key(): true}
	var candidates labelHeap

	for len(found) < k {
		prev := found[len(found)-1]

		// labels of prev from the source down to the target; chain[i]
		// starts the suffix kept fixed while we look for another prefix
		var chain []*label
		for l := prev; l != nil; l = l.next {
			chain = append(chain, l)
		}

		for i := len(chain) - 1; i >= 1; i-- {
			root := chain[i]
			rootKey := root.key()

			banned := make(map[edgeKey]bool)
			for _, p := range found {
				if l := suffixAt(p, root.hops); l != nil && l.node == root.node && l.key() == rootKey {
					// p shares the root; its edge into the root node is out
					if in := entering(p, l); in != nil {
						banned[keyOf(in.edge)] = true
					}
				}
			}

			spur, err := s.shortest(root, banned)
			if err != nil {
				return nil, err
			}
			if spur == nil {
				continue
			}
			if key := spur.key(); !seen[key] {
				seen[key] = true
				heap.Push(&candidates, spur)
			}
		}

		if candidates.Len() == 0 {
			break
		}
		found = append(found, heap.Pop(&candidates).(*label))
	}
	return found, nil
}

// suffixAt returns the label of p that has hops edges left to the target.
func suffixAt(p *label, hops int) *label {
	for l := p; l != nil; l = l.next {
		if l.hops == hops {
			return l
		}
	}
	return nil
}

// entering returns the label of p whose edge ends at l.
func entering(p, l *label) *label {
	for x := p; x != nil; x = x.next {
		if x.next == l {
			return x
		}
	}
	return nil
}

// shortest runs the reverse label-setting search from start until it
// reaches the source.  Edges in banned are skipped; nodes of start's own
// suffix are never revisited.
func (s *search) shortest(start *label, banned map[edgeKey]bool) (*label, error) {
	// settled[node] holds the hop counts of labels already expanded there;
	// a later label with no fewer hops can't do better
	settled := make(map[lncore.Address][]int)
	h := labelHeap{start}

	for h.Len() > 0 {
		s.pops++
		if s.pops%consts.SearchCheckInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				return nil, err
			}
		}

		l := heap.Pop(&h).(*label)
		if l.node == s.req.Source {
			return l, nil
		}
		if dominated(settled[l.node], l.hops) {
			continue
		}
		settled[l.node] = append(settled[l.node], l.hops)

		if l.hops >= s.hops {
			continue
		}

		if l.cost > math.MaxInt64-s.req.Amount {
			continue
		}
		fwd := s.req.Amount + l.cost

		s.snap.Incoming(l.node, func(e *graph.Edge) bool {
			if s.excludedChans[e.Channel] || s.excludedNodes[e.From] || banned[keyOf(e)] {
				return true
			}
			if l.has(e.From) {
				return true
			}
			if e.Capacity < fwd {
				return true
			}
			if s.ratio > 0 && e.RevealTimeout > 0 && e.SettleTimeout < s.ratio*e.RevealTimeout {
				return true
			}
			fee, err := fees.Compute(e.Schedule, e.Capacity, fwd)
			if err != nil || fee > math.MaxInt64-l.cost {
				return true
			}
			heap.Push(&h, &label{
				node: e.From,
				hops: l.hops + 1,
				cost: l.cost + fee,
				edge: e,
				next: l,
			})
			return true
		})
	}

	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func dominated(hops []int, h int) bool {
	for _, x := range hops {
		if x <= h {
			return true
		}
	}
	return false
}
