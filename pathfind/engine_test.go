package pathfind

import (
	"context"
	"sync"
	"testing"

	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/lncore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tok = lncore.TokenID{7}

var (
	A = lncore.Address{0xa}
	B = lncore.Address{0xb}
	C = lncore.Address{0xc}
	D = lncore.Address{0xd}
	E = lncore.Address{0xe}
)

type testNet struct {
	t     *testing.T
	store *graph.Store
}

func newNet(t *testing.T) *testNet {
	return &testNet{t: t, store: graph.NewStore()}
}

func (n *testNet) apply(ev lncore.Event) {
	n.t.Helper()
	_, err := n.store.Apply(ev)
	require.NoError(n.t, err)
}

// link opens channel id from a to b with deposit on a's side only and a
// flat fee on the a->b direction.
func (n *testNet) link(id lncore.ChannelID, a, b lncore.Address, deposit, fee int64) {
	n.t.Helper()
	h := lncore.EventHeader{Token: tok, Channel: id}
	n.apply(lncore.ChannelOpened{EventHeader: h, Participant1: a, Participant2: b, SettleTimeout: 100})
	n.apply(lncore.ChannelDeposit{EventHeader: h, Participant: a, TotalDeposit: deposit})
	if fee > 0 {
		n.apply(lncore.FeeUpdate{EventHeader: h, From: a, To: b, Nonce: 1, Schedule: fees.Flat{Base: fee}})
	}
}

func (n *testNet) find(req Request) []Route {
	n.t.Helper()
	routes, err := NewEngine(DefaultConfig()).FindRoutes(context.Background(), n.store.Snapshot(tok), req)
	require.NoError(n.t, err)
	require.NotNil(n.t, routes)
	return routes
}

func channels(r Route) []lncore.ChannelID {
	var ids []lncore.ChannelID
	for _, h := range r.Hops {
		ids = append(ids, h.Channel)
	}
	return ids
}

// feasible checks a route against the snapshot it came from.
func feasible(t *testing.T, snap *graph.Snapshot, req Request, r Route) {
	t.Helper()
	require.NotEmpty(t, r.Hops)
	assert.Equal(t, req.Source, r.Hops[0].From)
	assert.Equal(t, req.Target, r.Hops[len(r.Hops)-1].To)

	var total int64
	seen := map[lncore.Address]bool{req.Source: true}
	for i, h := range r.Hops {
		if i > 0 {
			assert.Equal(t, r.Hops[i-1].To, h.From)
		}
		assert.False(t, seen[h.To], "route visits %v twice", h.To)
		seen[h.To] = true

		e := snap.Edge(h.Channel, h.From)
		require.NotNil(t, e)
		assert.True(t, snap.Routable(h.Channel))
		assert.True(t, e.Capacity >= h.Forwarded)

		fee, err := fees.Compute(e.Schedule, e.Capacity, h.Forwarded)
		require.NoError(t, err)
		assert.Equal(t, fee, h.Fee)
		total += h.Fee
	}
	assert.Equal(t, total, r.Fee)
	assert.Equal(t, req.Amount, r.Hops[len(r.Hops)-1].Forwarded)
}

func TestDirectRoute(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)

	routes := n.find(Request{Source: A, Target: B, Amount: 10})
	require.Len(t, routes, 1)
	assert.Equal(t, []lncore.ChannelID{1}, channels(routes[0]))
	assert.Zero(t, routes[0].Fee)
	assert.Equal(t, int64(10), routes[0].Hops[0].Forwarded)
}

func TestFeesAccumulateBackwards(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 1)
	n.link(2, B, C, 100, 1)
	n.link(3, C, D, 100, 1)

	req := Request{Source: A, Target: D, Amount: 10}
	routes := n.find(req)
	require.Len(t, routes, 1)
	r := routes[0]
	assert.Equal(t, int64(3), r.Fee)
	assert.Equal(t, []int64{12, 11, 10}, []int64{r.Hops[0].Forwarded, r.Hops[1].Forwarded, r.Hops[2].Forwarded})
	feasible(t, n.store.Snapshot(tok), req, r)
}

func TestCapacityTooLow(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 5, 0)

	assert.Empty(t, n.find(Request{Source: A, Target: B, Amount: 10}))
	// the other direction has nothing at all
	assert.Empty(t, n.find(Request{Source: B, Target: A, Amount: 1}))
}

func TestSuffixFeesCountAgainstCapacity(t *testing.T) {
	n := newNet(t)
	// A->B can carry 10 but B->C charges 1, so A->B would forward 11
	n.link(1, A, B, 10, 0)
	n.link(2, B, C, 100, 1)
	assert.Empty(t, n.find(Request{Source: A, Target: C, Amount: 10}))
	assert.Len(t, n.find(Request{Source: A, Target: C, Amount: 9}), 1)
}

func TestRanking(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 1)
	n.link(2, B, D, 100, 1) // A-B-D costs 2
	n.link(3, A, C, 100, 4)
	n.link(4, C, D, 100, 0) // A-C-D costs 4
	n.link(5, A, D, 100, 7) // A-D costs 7

	req := Request{Source: A, Target: D, Amount: 10, MaxPaths: 5}
	routes := n.find(req)
	require.Len(t, routes, 3)
	assert.Equal(t, []lncore.ChannelID{1, 2}, channels(routes[0]))
	assert.Equal(t, []lncore.ChannelID{3, 4}, channels(routes[1]))
	assert.Equal(t, []lncore.ChannelID{5}, channels(routes[2]))
	for _, r := range routes {
		feasible(t, n.store.Snapshot(tok), req, r)
	}

	req.MaxPaths = 2
	assert.Len(t, n.find(req), 2)
}

func TestTieBreak(t *testing.T) {
	n := newNet(t)
	n.link(4, A, B, 100, 1)
	n.link(5, B, D, 100, 1)
	n.link(2, A, C, 100, 1)
	n.link(3, C, D, 100, 1)
	n.link(9, A, D, 100, 2)

	routes := n.find(Request{Source: A, Target: D, Amount: 1, MaxPaths: 3})
	require.Len(t, routes, 3)
	// the one hop route wins on hops, then channel ids decide
	assert.Equal(t, []lncore.ChannelID{9}, channels(routes[0]))
	assert.Equal(t, []lncore.ChannelID{2, 3}, channels(routes[1]))
	assert.Equal(t, []lncore.ChannelID{4, 5}, channels(routes[2]))
}

func TestHopBound(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)
	n.link(2, B, C, 100, 0)
	n.link(3, C, D, 100, 0)
	n.link(4, A, E, 100, 5)
	n.link(5, E, D, 100, 5)

	routes := n.find(Request{Source: A, Target: D, Amount: 1, MaxHops: 2, MaxPaths: 5})
	require.Len(t, routes, 1)
	assert.Equal(t, []lncore.ChannelID{4, 5}, channels(routes[0]))

	routes = n.find(Request{Source: A, Target: D, Amount: 1, MaxPaths: 5})
	require.Len(t, routes, 2)
	assert.Equal(t, []lncore.ChannelID{1, 2, 3}, channels(routes[0]))
}

func TestHopBoundKeepsCostlierShortPath(t *testing.T) {
	n := newNet(t)
	// the cheap way into C is long; with two hops only the dear one fits
	n.link(1, A, B, 100, 0)
	n.link(2, B, C, 100, 0)
	n.link(3, A, C, 100, 9)
	n.link(4, C, D, 100, 0)

	routes := n.find(Request{Source: A, Target: D, Amount: 1, MaxHops: 2})
	require.Len(t, routes, 1)
	assert.Equal(t, []lncore.ChannelID{3, 4}, channels(routes[0]))
}

func TestExclusions(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 1)
	n.link(2, B, D, 100, 1)
	n.link(3, A, C, 100, 2)
	n.link(4, C, D, 100, 2)

	routes := n.find(Request{Source: A, Target: D, Amount: 1, ExcludeNodes: []lncore.Address{B}, MaxPaths: 5})
	require.Len(t, routes, 1)
	assert.Equal(t, []lncore.ChannelID{3, 4}, channels(routes[0]))

	routes = n.find(Request{Source: A, Target: D, Amount: 1, ExcludeChannels: []lncore.ChannelID{4}, MaxPaths: 5})
	require.Len(t, routes, 1)
	assert.Equal(t, []lncore.ChannelID{1, 2}, channels(routes[0]))

	assert.Empty(t, n.find(Request{Source: A, Target: D, Amount: 1, ExcludeNodes: []lncore.Address{D}}))
}

func TestClosedAndFlaggedSkipped(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)
	n.link(2, A, C, 100, 0)
	n.link(3, C, B, 100, 0)

	n.apply(lncore.ChannelClosed{EventHeader: lncore.EventHeader{Token: tok, Channel: 1}, ClosingParticipant: A})
	_, err := n.store.Apply(lncore.ChannelWithdraw{
		EventHeader: lncore.EventHeader{Token: tok, Channel: 3}, Participant: C, TotalWithdraw: 500,
	})
	require.True(t, graph.IsDataConsistency(err))

	assert.Empty(t, n.find(Request{Source: A, Target: B, Amount: 1}))
}

func TestSettleRevealRatio(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)
	// settle timeout 100 against reveal 60 is below the ratio of 2
	n.apply(lncore.BalanceUpdate{
		EventHeader: lncore.EventHeader{Token: tok, Channel: 1},
		Updater:     A, Partner: B, Nonce: 1, RevealTimeout: 60,
	})
	assert.Empty(t, n.find(Request{Source: A, Target: B, Amount: 1}))

	n.apply(lncore.BalanceUpdate{
		EventHeader: lncore.EventHeader{Token: tok, Channel: 1},
		Updater:     A, Partner: B, Nonce: 2, RevealTimeout: 50,
	})
	assert.Len(t, n.find(Request{Source: A, Target: B, Amount: 1}), 1)
}

func TestInvalidRequests(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)
	en := NewEngine(DefaultConfig())
	snap := n.store.Snapshot(tok)

	for name, req := range map[string]Request{
		"zero amount":   {Source: A, Target: B},
		"negative":      {Source: A, Target: B, Amount: -1},
		"self":          {Source: A, Target: A, Amount: 1},
		"no source":     {Target: B, Amount: 1},
		"negative hops": {Source: A, Target: B, Amount: 1, MaxHops: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := en.FindRoutes(context.Background(), snap, req)
			assert.Equal(t, ErrInvalidRequest, errors.Cause(err))
		})
	}
}

func TestCancelled(t *testing.T) {
	n := newNet(t)
	n.link(1, A, B, 100, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(DefaultConfig()).FindRoutes(ctx, n.store.Snapshot(tok), Request{Source: A, Target: B, Amount: 1})
	assert.Equal(t, context.Canceled, err)
}

// grid builds a size x size grid with channels both ways between
// neighbours and fees varying by position.
func grid(t *testing.T, size int) (*testNet, []lncore.Address) {
	n := newNet(t)
	nodes := make([]lncore.Address, size*size)
	for i := range nodes {
		nodes[i] = lncore.Address{byte(i + 1), 0x99}
	}
	id := lncore.ChannelID(1)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			i := r*size + c
			var nbrs []int
			if c+1 < size {
				nbrs = append(nbrs, i+1)
			}
			if r+1 < size {
				nbrs = append(nbrs, i+size)
			}
			for _, j := range nbrs {
				h := lncore.EventHeader{Token: tok, Channel: id}
				n.apply(lncore.ChannelOpened{EventHeader: h, Participant1: nodes[i], Participant2: nodes[j], SettleTimeout: 100})
				n.apply(lncore.ChannelDeposit{EventHeader: h, Participant: nodes[i], TotalDeposit: 1000})
				n.apply(lncore.ChannelDeposit{EventHeader: h, Participant: nodes[j], TotalDeposit: 1000})
				n.apply(lncore.FeeUpdate{EventHeader: h, From: nodes[i], To: nodes[j], Nonce: 1,
					Schedule: fees.Proportional{Base: int64(i % 3), RatePPM: 10000}})
				n.apply(lncore.FeeUpdate{EventHeader: h, From: nodes[j], To: nodes[i], Nonce: 1,
					Schedule: fees.Flat{Base: int64(j % 4)}})
				id++
			}
		}
	}
	return n, nodes
}

func TestKShortestOnGrid(t *testing.T) {
	n, nodes := grid(t, 4)
	snap := n.store.Snapshot(tok)
	req := Request{Source: nodes[0], Target: nodes[15], Amount: 100, MaxPaths: 10}

	routes := n.find(req)
	require.Len(t, routes, 10)

	keys := map[string]bool{}
	for i, r := range routes {
		feasible(t, snap, req, r)
		k := r.String()
		assert.False(t, keys[k], "duplicate route %s", k)
		keys[k] = true
		if i > 0 {
			prev := routes[i-1]
			assert.True(t, prev.Fee < r.Fee || (prev.Fee == r.Fee && len(prev.Hops) <= len(r.Hops)),
				"route %d out of order", i)
		}
	}
	assert.True(t, len(routes[0].Hops) <= 10)
}

func TestMaxPathsCapped(t *testing.T) {
	n, nodes := grid(t, 5)
	routes := n.find(Request{Source: nodes[0], Target: nodes[24], Amount: 1, MaxPaths: 1000})
	assert.Len(t, routes, 25)
}

func TestConcurrentSearchesAndWrites(t *testing.T) {
	n, nodes := grid(t, 4)
	en := NewEngine(DefaultConfig())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				snap := n.store.Snapshot(tok)
				routes, err := en.FindRoutes(context.Background(), snap, Request{Source: nodes[0], Target: nodes[15], Amount: 10})
				if assert.NoError(t, err) {
					for _, r := range routes {
						assert.NotNil(t, snap.Edge(r.Hops[0].Channel, r.Hops[0].From))
					}
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, err := n.store.Apply(lncore.ChannelDeposit{
			EventHeader: lncore.EventHeader{Token: tok, Channel: 1},
			Participant: nodes[0], TotalDeposit: int64(1000 + i),
		})
		require.NoError(t, err)
	}
	wg.Wait()
}
