package lncore

import "fmt"

// ChannelID is unique inside one token network.
type ChannelID uint64

func (c ChannelID) String() string {
	return fmt.Sprintf("%d", uint64(c))
}

// ChannelStatus only ever moves forward.
type ChannelStatus uint8

const (
	// StatusOpening means we've heard of the channel but it can't carry
	// transfers yet.
	StatusOpening ChannelStatus = 0

	// StatusOpened means the channel is on chain and routable.
	StatusOpened ChannelStatus = 1

	// StatusClosing means a close has been requested but not mined.
	StatusClosing ChannelStatus = 2

	// StatusClosed means the close tx is in; the channel is in its settle period.
	StatusClosed ChannelStatus = 3

	// StatusSettled means nothing else can happen to the channel.
	StatusSettled ChannelStatus = 4
)

func (s ChannelStatus) String() string {
	switch s {
	case StatusOpening:
		return "opening"
	case StatusOpened:
		return "opened"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusSettled:
		return "settled"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Merge returns the later of the two statuses.  Replays and late events can
// never move a channel backwards.
func (s ChannelStatus) Merge(next ChannelStatus) ChannelStatus {
	if next > s {
		return next
	}
	return s
}

// Routable is true only for open channels.
func (s ChannelStatus) Routable() bool {
	return s == StatusOpened
}
