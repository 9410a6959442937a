package graph

import (
	"sort"

	"github.com/google/btree"
	"github.com/mit-dci/pfs/lncore"
)

// Snapshot is a read-only view of one token network as of Version.  It
// needs no locking and never changes, whatever the store does after.
type Snapshot struct {
	token    lncore.TokenID
	version  uint64
	channels *btree.BTree
	edges    *btree.BTree
}

func (s *Snapshot) Token() lncore.TokenID { return s.token }

// Version counts the mutations the network had when the snapshot was taken.
func (s *Snapshot) Version() uint64 { return s.version }

func (s *Snapshot) NumChannels() int { return s.channels.Len() }

// Channel returns the channel with the given ID, routable or not.
func (s *Snapshot) Channel(id lncore.ChannelID) *Channel {
	item := s.channels.Get(&Channel{ID: id})
	if item == nil {
		return nil
	}
	return item.(*Channel)
}

// Edge returns the direction of channel id sent by from.
func (s *Snapshot) Edge(id lncore.ChannelID, from lncore.Address) *Edge {
	ch := s.Channel(id)
	if ch == nil {
		return nil
	}
	i := ch.Index(from)
	if i < 0 {
		return nil
	}
	item := s.edges.Get(&Edge{Channel: id, From: from, To: ch.Participants[1-i]})
	if item == nil {
		return nil
	}
	return item.(*Edge)
}

// Routable tells whether searches may use channel id.
func (s *Snapshot) Routable(id lncore.ChannelID) bool {
	ch := s.Channel(id)
	return ch != nil && ch.Routable()
}

// Flagged returns the reconciliation reason of a channel, empty if none.
func (s *Snapshot) Flagged(id lncore.ChannelID) string {
	if ch := s.Channel(id); ch != nil {
		return ch.Flag
	}
	return ""
}

// Incoming calls fn for every routable edge ending at to, in (From, Channel)
// order, until fn returns false.
func (s *Snapshot) Incoming(to lncore.Address, fn func(*Edge) bool) {
	lo := &Edge{To: to}
	s.edges.AscendGreaterOrEqual(lo, func(i btree.Item) bool {
		e := i.(*Edge)
		if e.To != to {
			return false
		}
		if !s.Routable(e.Channel) {
			return true
		}
		return fn(e)
	})
}

// Edges calls fn for every stored edge, routable or not.
func (s *Snapshot) Edges(fn func(*Edge) bool) {
	s.edges.Ascend(func(i btree.Item) bool {
		return fn(i.(*Edge))
	})
}

// Channels calls fn for every channel in ID order.
func (s *Snapshot) Channels(fn func(*Channel) bool) {
	s.channels.Ascend(func(i btree.Item) bool {
		return fn(i.(*Channel))
	})
}

// Nodes lists every participant with at least one channel, sorted.
func (s *Snapshot) Nodes() []lncore.Address {
	seen := make(map[lncore.Address]struct{})
	s.Channels(func(c *Channel) bool {
		seen[c.Participants[0]] = struct{}{}
		seen[c.Participants[1]] = struct{}{}
		return true
	})
	nodes := make([]lncore.Address, 0, len(seen))
	for a := range seen {
		nodes = append(nodes, a)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
	return nodes
}
