package ingest

import (
	"github.com/mit-dci/pfs/eventbus"
	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/lncore"
)

// Bus event names.
const (
	EventApplied = "ingest.applied"
	EventDropped = "ingest.dropped"
	EventFlagged = "graph.flagged"
)

// AppliedEvent is published after an event changed the graph.
type AppliedEvent struct {
	Event   lncore.Event
	Channel *graph.Channel
}

func (AppliedEvent) Name() string { return EventApplied }
func (AppliedEvent) Flags() uint8 { return eventbus.EFLAG_UNCANCELLABLE }

// DroppedEvent is published when an event is thrown away for good.
type DroppedEvent struct {
	Event    lncore.Event
	Attempts int
	Reason   string
}

func (DroppedEvent) Name() string { return EventDropped }
func (DroppedEvent) Flags() uint8 { return eventbus.EFLAG_UNCANCELLABLE }

// FlaggedEvent is published when a channel needs reconciliation.
type FlaggedEvent struct {
	Token   lncore.TokenID
	Channel lncore.ChannelID
	Reason  string
}

func (FlaggedEvent) Name() string { return EventFlagged }
func (FlaggedEvent) Flags() uint8 { return eventbus.EFLAG_UNCANCELLABLE }
