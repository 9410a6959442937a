package graph

import (
	"fmt"

	"github.com/google/btree"
	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/lncore"
)

// Channel is our view of one channel.  Values stored in the graph are never
// modified; a change writes a new value under the same ID so snapshots keep
// the old one.
//
// Index 0 is Participant1 of the opened event, index 1 Participant2.
type Channel struct {
	Token         lncore.TokenID
	ID            lncore.ChannelID
	Participants  [2]lncore.Address
	SettleTimeout uint64
	Status        lncore.ChannelStatus

	Deposit      [2]int64
	Withdrawn    [2]int64
	Transferred  [2]int64
	Locked       [2]int64
	BalanceNonce [2]uint64

	OpenedBlock  uint64
	ClosedBlock  uint64
	SettledBlock uint64

	// Flag is non-empty when the channel waits for reconciliation.  Flagged
	// channels aren't routed through.
	Flag string
	// FlagBalance is set when Flag is about amounts only.
	FlagBalance bool
}

// Less orders channels by ID in the btree.
func (c *Channel) Less(than btree.Item) bool {
	return c.ID < than.(*Channel).ID
}

func (c *Channel) clone() *Channel {
	nc := *c
	return &nc
}

// Index returns 0 or 1 for a participant, -1 for anyone else.
func (c *Channel) Index(a lncore.Address) int {
	switch a {
	case c.Participants[0]:
		return 0
	case c.Participants[1]:
		return 1
	}
	return -1
}

// Capacity is what participant i can send to the other one right now.
func (c *Channel) Capacity(i int) int64 {
	j := 1 - i
	return c.Deposit[i] - c.Withdrawn[i] - c.Transferred[i] + c.Transferred[j] - c.Locked[i]
}

// TotalDeposit is what's left on chain: deposits minus withdrawals.
func (c *Channel) TotalDeposit() int64 {
	return c.Deposit[0] + c.Deposit[1] - c.Withdrawn[0] - c.Withdrawn[1]
}

// Routable channels show up in searches.
func (c *Channel) Routable() bool {
	return c.Status.Routable() && c.Flag == ""
}

// check verifies the conservation invariant:
// cap(0) + cap(1) + locked(0) + locked(1) == total deposit
func (c *Channel) check() error {
	if c.Participants[0] == c.Participants[1] {
		return fmt.Errorf("channel %v has the same participant twice", c.ID)
	}
	for i := 0; i < 2; i++ {
		if c.Deposit[i] < 0 || c.Withdrawn[i] < 0 || c.Locked[i] < 0 || c.Transferred[i] < 0 {
			return fmt.Errorf("channel %v has a negative amount for participant %d", c.ID, i)
		}
		if c.Capacity(i) < 0 {
			return fmt.Errorf("channel %v has negative capacity %d for participant %d",
				c.ID, c.Capacity(i), i)
		}
	}
	if c.Capacity(0)+c.Capacity(1)+c.Locked[0]+c.Locked[1] != c.TotalDeposit() {
		return fmt.Errorf("channel %v doesn't conserve its deposit", c.ID)
	}
	return nil
}

// Edge is one direction of a channel: From forwards to To and charges its
// schedule for it.
type Edge struct {
	Channel       lncore.ChannelID
	From          lncore.Address
	To            lncore.Address
	Capacity      int64
	Schedule      fees.Schedule
	FeeNonce      uint64
	SettleTimeout uint64
	RevealTimeout uint64
}

// Less orders edges by (To, From, Channel) so the edges coming into a node
// are one range.
func (e *Edge) Less(than btree.Item) bool {
	o := than.(*Edge)
	if e.To != o.To {
		return e.To.Less(o.To)
	}
	if e.From != o.From {
		return e.From.Less(o.From)
	}
	return e.Channel < o.Channel
}

// KeyLess is the identifier order used to break ties between routes:
// channel first, then the sending side.
func (e *Edge) KeyLess(o *Edge) bool {
	if e.Channel != o.Channel {
		return e.Channel < o.Channel
	}
	return e.From.Less(o.From)
}

func (e *Edge) String() string {
	return fmt.Sprintf("%v:%v->%v", e.Channel, e.From, e.To)
}
