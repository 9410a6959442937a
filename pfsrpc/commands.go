package pfsrpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/ledger"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/pathfind"
	"github.com/mit-dci/pfs/pfs"
	"github.com/pkg/errors"
)

// DefaultSearchTimeout bounds one FindRoutes call.
const DefaultSearchTimeout = 10 * time.Second

type StatusReply struct {
	Status string
}

type NoArgs struct {
	// nothin
}

// ------------------------- routes

type FindRoutesArgs struct {
	Requester       string
	Token           string
	Source          string
	Target          string
	Amount          int64
	ExcludeNodes    []string
	ExcludeChannels []uint64
	MaxPaths        int
	MaxHops         int
}

type HopInfo struct {
	Channel   uint64
	From      string
	To        string
	Forwarded int64
	Fee       int64
}

type RouteInfo struct {
	Fee  int64
	Hops []HopInfo
}

type FindRoutesReply struct {
	Routes []RouteInfo
}

func (args FindRoutesArgs) request() (lncore.Address, pfs.RouteRequest, error) {
	var req pfs.RouteRequest
	var requester lncore.Address
	var err error

	if args.Requester != "" {
		if requester, err = lncore.ParseAddress(args.Requester); err != nil {
			return requester, req, errors.Wrap(err, "bad requester")
		}
	}
	if req.Token, err = lncore.ParseTokenID(args.Token); err != nil {
		return requester, req, errors.Wrap(err, "bad token")
	}
	if req.Source, err = lncore.ParseAddress(args.Source); err != nil {
		return requester, req, errors.Wrap(err, "bad source")
	}
	if req.Target, err = lncore.ParseAddress(args.Target); err != nil {
		return requester, req, errors.Wrap(err, "bad target")
	}
	for _, s := range args.ExcludeNodes {
		a, err := lncore.ParseAddress(s)
		if err != nil {
			return requester, req, errors.Wrapf(err, "bad excluded node %s", s)
		}
		req.ExcludeNodes = append(req.ExcludeNodes, a)
	}
	for _, c := range args.ExcludeChannels {
		req.ExcludeChannels = append(req.ExcludeChannels, lncore.ChannelID(c))
	}
	req.Amount = args.Amount
	req.MaxPaths = args.MaxPaths
	req.MaxHops = args.MaxHops
	return requester, req, nil
}

func routeInfo(r pathfind.Route) RouteInfo {
	ri := RouteInfo{Fee: r.Fee}
	for _, h := range r.Hops {
		ri.Hops = append(ri.Hops, HopInfo{
			Channel:   uint64(h.Channel),
			From:      h.From.String(),
			To:        h.To.String(),
			Forwarded: h.Forwarded,
			Fee:       h.Fee,
		})
	}
	return ri
}

// FindRoutes asks for routes.  The requester, or the source if there is no
// requester, is charged the request fee.
func (r *PfsRPC) FindRoutes(args FindRoutesArgs, reply *FindRoutesReply) error {
	requester, req, err := args.request()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultSearchTimeout)
	defer cancel()
	routes, err := r.Service.FindRoutes(ctx, requester, req)
	if err != nil {
		return err
	}

	reply.Routes = make([]RouteInfo, 0, len(routes))
	for _, rt := range routes {
		reply.Routes = append(reply.Routes, routeInfo(rt))
	}
	return nil
}

// ------------------------- graph

type GraphArgs struct {
	Token string // empty for every token
}

type TokenInfo struct {
	Token    string
	Version  uint64
	Channels int
	Routable int
	Flagged  int
	Nodes    int
}

type GraphInfoReply struct {
	Tokens  []TokenInfo
	Pending int
}

type GraphDotReply struct {
	Graph string
}

func (r *PfsRPC) tokens(s string) ([]lncore.TokenID, error) {
	if s == "" {
		return r.Service.Tokens(), nil
	}
	t, err := lncore.ParseTokenID(s)
	if err != nil {
		return nil, err
	}
	return []lncore.TokenID{t}, nil
}

// GraphInfo summarizes token networks.
func (r *PfsRPC) GraphInfo(args GraphArgs, reply *GraphInfoReply) error {
	tokens, err := r.tokens(args.Token)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		snap := r.Service.GraphSnapshot(t)
		info := TokenInfo{
			Token:    t.String(),
			Version:  snap.Version(),
			Channels: snap.NumChannels(),
			Nodes:    len(snap.Nodes()),
		}
		snap.Channels(func(c *graph.Channel) bool {
			if c.Routable() {
				info.Routable++
			}
			if c.Flag != "" {
				info.Flagged++
			}
			return true
		})
		reply.Tokens = append(reply.Tokens, info)
	}
	reply.Pending = r.Service.Pending()
	return nil
}

// GraphDot dumps one token network for graphviz.
func (r *PfsRPC) GraphDot(args GraphArgs, reply *GraphDotReply) error {
	t, err := lncore.ParseTokenID(args.Token)
	if err != nil {
		return err
	}
	reply.Graph = r.Service.GraphSnapshot(t).Dot()
	return nil
}

// ------------------------- ledger

type BalanceArgs struct {
	Participant string
}

type BalanceReply struct {
	Participant string
	Owed        int64
	Paid        int64
	Reserved    int64
	CreditLimit int64
	Service     string
}

func (r *PfsRPC) Balance(args BalanceArgs, reply *BalanceReply) error {
	p, err := lncore.ParseAddress(args.Participant)
	if err != nil {
		return err
	}
	e, err := r.Service.LedgerBalance(p)
	if err != nil {
		return err
	}
	reply.Participant = p.String()
	reply.Owed = e.Owed
	reply.Paid = e.Paid
	reply.Reserved = e.Reserved
	reply.CreditLimit = r.Service.Ledger().CreditLimit()
	reply.Service = r.Service.Address().String()
	return nil
}

type SettleIOUArgs struct {
	Sender    string
	Receiver  string
	Amount    int64
	Expiry    int64 // unix seconds
	Signature string
}

// IOUArgs puts an IOU on the wire.
func IOUArgs(u ledger.IOU) SettleIOUArgs {
	return SettleIOUArgs{
		Sender:    u.Sender.String(),
		Receiver:  u.Receiver.String(),
		Amount:    u.Amount,
		Expiry:    u.Expiry.Unix(),
		Signature: hex.EncodeToString(u.Signature),
	}
}

func (args SettleIOUArgs) iou() (ledger.IOU, error) {
	var u ledger.IOU
	var err error
	if u.Sender, err = lncore.ParseAddress(args.Sender); err != nil {
		return u, errors.Wrap(err, "bad sender")
	}
	if u.Receiver, err = lncore.ParseAddress(args.Receiver); err != nil {
		return u, errors.Wrap(err, "bad receiver")
	}
	if u.Signature, err = hex.DecodeString(args.Signature); err != nil {
		return u, errors.Wrap(err, "bad signature")
	}
	u.Amount = args.Amount
	u.Expiry = time.Unix(args.Expiry, 0)
	return u, nil
}

func (r *PfsRPC) SettleIOU(args SettleIOUArgs, reply *StatusReply) error {
	u, err := args.iou()
	if err != nil {
		return err
	}
	if err := r.Service.SettleIOU(u); err != nil {
		return err
	}
	e, err := r.Service.LedgerBalance(u.Sender)
	if err != nil {
		return err
	}
	reply.Status = fmt.Sprintf("%v has paid %d of %d owed", u.Sender, e.Paid, e.Owed)
	return nil
}

// ------------------------- events

type PushEventsArgs struct {
	Events []EventEnvelope
}

type PushEventsReply struct {
	Accepted int
	Errors   []string
}

// PushEvents ingests events in order.  A bad event doesn't stop the rest;
// its error is reported at its position.
func (r *PfsRPC) PushEvents(args PushEventsArgs, reply *PushEventsReply) error {
	for i, env := range args.Events {
		ev, err := env.Event()
		if err == nil {
			err = r.Service.Ingest(ev)
		}
		if err != nil {
			reply.Errors = append(reply.Errors, fmt.Sprintf("%d: %s", i, err.Error()))
			continue
		}
		reply.Accepted++
	}
	return nil
}

// ------------------------- stop

func (r *PfsRPC) Stop(args NoArgs, reply *StatusReply) error {
	reply.Status = "Stopping pfs node"
	select {
	case r.OffButton <- true:
	default:
	}
	return nil
}
