package graph

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/getlantern/deepcopy"
	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/lncore"
)

// Dot renders the network as a graphviz digraph.  Routable edges are black,
// flagged ones red and the rest grey; labels show capacity and fee kind.
func (s *Snapshot) Dot() string {
	g := gographviz.NewGraph()
	name := "pfs_" + s.token.String()[2:]
	g.SetName(name)
	g.SetDir(true)

	for _, n := range s.Nodes() {
		g.AddNode(name, strconv.Quote(n.String()), nil)
	}

	s.Edges(func(e *Edge) bool {
		ch := s.Channel(e.Channel)
		attrs := make(map[string]string)
		switch {
		case ch.Flag != "":
			attrs["color"] = "red"
		case ch.Routable():
			attrs["color"] = "black"
		default:
			attrs["color"] = "grey"
		}
		kind := "none"
		if e.Schedule != nil {
			kind = e.Schedule.Kind().String()
		}
		attrs["label"] = strconv.Quote(fmt.Sprintf("%v: %d %s", e.Channel, e.Capacity, kind))
		g.AddEdge(strconv.Quote(e.From.String()), strconv.Quote(e.To.String()), true, attrs)
		return true
	})

	return g.String()
}

// ExportEdge is an Edge with the schedule in its encoded form.
type ExportEdge struct {
	Channel       lncore.ChannelID
	From          lncore.Address
	To            lncore.Address
	Capacity      int64
	ScheduleKind  string
	Schedule      []byte
	FeeNonce      uint64
	SettleTimeout uint64
	RevealTimeout uint64
}

// Export is a detached copy of a snapshot, safe to hand to code that might
// modify it.
type Export struct {
	Token    lncore.TokenID
	Version  uint64
	Channels []Channel
	Edges    []ExportEdge
}

// Export copies the whole snapshot out of the trees.
func (s *Snapshot) Export() (*Export, error) {
	var chans []*Channel
	s.Channels(func(c *Channel) bool {
		chans = append(chans, c)
		return true
	})

	ex := &Export{Token: s.token, Version: s.version}
	if err := deepcopy.Copy(&ex.Channels, chans); err != nil {
		return nil, err
	}

	s.Edges(func(e *Edge) bool {
		ee := ExportEdge{
			Channel:       e.Channel,
			From:          e.From,
			To:            e.To,
			Capacity:      e.Capacity,
			Schedule:      fees.Encode(e.Schedule),
			FeeNonce:      e.FeeNonce,
			SettleTimeout: e.SettleTimeout,
			RevealTimeout: e.RevealTimeout,
		}
		if e.Schedule != nil {
			ee.ScheduleKind = e.Schedule.Kind().String()
		}
		ex.Edges = append(ex.Edges, ee)
		return true
	})
	return ex, nil
}
