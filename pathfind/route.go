package pathfind

import (
	"fmt"
	"strings"

	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/lncore"
)

// Request asks for up to MaxPaths routes carrying Amount from Source to
// Target.  Zero MaxPaths or MaxHops take the engine defaults.
type Request struct {
	Source          lncore.Address
	Target          lncore.Address
	Amount          int64
	ExcludeNodes    []lncore.Address
	ExcludeChannels []lncore.ChannelID
	MaxPaths        int
	MaxHops         int
}

// Hop is one channel crossing.  Forwarded is what goes over the channel,
// Fee what the hop charges for it.
type Hop struct {
	Channel   lncore.ChannelID
	From      lncore.Address
	To        lncore.Address
	Forwarded int64
	Fee       int64
}

// Route is a path from source to target.  Fee is the sum of the hop fees.
type Route struct {
	Hops []Hop
	Fee  int64
}

func (r Route) String() string {
	parts := make([]string, 0, len(r.Hops))
	for _, h := range r.Hops {
		parts = append(parts, fmt.Sprintf("%v-[%v %d/%d]->", h.From, h.Channel, h.Forwarded, h.Fee))
	}
	if len(r.Hops) > 0 {
		parts = append(parts, r.Hops[len(r.Hops)-1].To.String())
	}
	return strings.Join(parts, " ")
}

// label is a partial route from node to the target.  Labels form a chain
// through next; edge leaves node towards next.node.
type label struct {
	node lncore.Address
	hops int
	cost int64 // fees of the suffix, this label's edge included
	edge *graph.Edge
	next *label
}

// has tells if a sits anywhere on the suffix starting at l.
func (l *label) has(a lncore.Address) bool {
	for ; l != nil; l = l.next {
		if l.node == a {
			return true
		}
	}
	return false
}

// edges lists the suffix edges in travel order.
func (l *label) edges() []*graph.Edge {
	var es []*graph.Edge
	for ; l.next != nil; l = l.next {
		es = append(es, l.edge)
	}
	return es
}

// lexLess compares two suffixes edge by edge using (channel, from).  A
// proper prefix sorts first.
func lexLess(a, b *label) bool {
	for a.next != nil && b.next != nil {
		if a.edge.KeyLess(b.edge) {
			return true
		}
		if b.edge.KeyLess(a.edge) {
			return false
		}
		a, b = a.next, b.next
	}
	return a.next == nil && b.next != nil
}

// better is the route order: cost, then hops, then edge identifiers.
func better(a, b *label) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	return lexLess(a, b)
}

// key identifies a path by its edges.
func (l *label) key() string {
	var sb strings.Builder
	for _, e := range l.edges() {
		fmt.Fprintf(&sb, "%d:%x/", e.Channel, e.From[:])
	}
	return sb.String()
}

func (l *label) route(amount int64) Route {
	r := Route{Fee: l.cost}
	for ; l.next != nil; l = l.next {
		r.Hops = append(r.Hops, Hop{
			Channel:   l.edge.Channel,
			From:      l.edge.From,
			To:        l.edge.To,
			Forwarded: amount + l.next.cost,
			Fee:       l.cost - l.next.cost,
		})
	}
	return r
}

// labelHeap is a min-heap of labels in route order.
type labelHeap []*label

func (h labelHeap) Len() int            { return len(h) }
func (h labelHeap) Less(i, j int) bool  { return better(h[i], h[j]) }
func (h labelHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *labelHeap) Push(x interface{}) { *h = append(*h, x.(*label)) }

func (h *labelHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
