// Package ingest feeds the channel graph.  It checks signed updates, holds
// on to events that arrive before their channel is opened and is the only
// writer of the store.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/mit-dci/pfs/consts"
	"github.com/mit-dci/pfs/eventbus"
	"github.com/mit-dci/pfs/graph"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/pkg/errors"
)

// Config of an Ingestor.  Zero values get the defaults from consts.
type Config struct {
	Store         *graph.Store
	Bus           *eventbus.EventBus
	MaxRetries    int
	MaxPending    int
	RetryInterval time.Duration
	Now           func() time.Time
}

type chanKey struct {
	token lncore.TokenID
	id    lncore.ChannelID
}

type pending struct {
	ev       lncore.Event
	attempts int
}

// Ingestor applies events to a graph store.
type Ingestor struct {
	cfg Config

	mtx      sync.Mutex // serializes all writes to the store
	buffered map[chanKey][]*pending
	order    []chanKey // channels in the order their first event was buffered
	npending int
	pertoken map[lncore.TokenID]int // held events per token, bounded by MaxPending
}

func New(cfg Config) *Ingestor {
	if cfg.Store == nil {
		cfg.Store = graph.NewStore()
	}
	if cfg.Bus == nil {
		cfg.Bus = eventbus.NewEventBus()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = consts.DefaultMaxRetries
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = consts.DefaultMaxPending
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = consts.DefaultRetryInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ingestor{
		cfg:      cfg,
		buffered: make(map[chanKey][]*pending),
		pertoken: make(map[lncore.TokenID]int),
	}
}

func (in *Ingestor) Store() *graph.Store { return in.cfg.Store }

func (in *Ingestor) Bus() *eventbus.EventBus { return in.cfg.Bus }

// Pending counts the events waiting for their channel to show up.
func (in *Ingestor) Pending() int {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	return in.npending
}

// Ingest verifies and applies one event.  Events for channels we don't know
// yet are kept and replayed once the channel is opened; that isn't an error.
// Only an error wrapping graph.ErrStoreCorrupted is fatal.
func (in *Ingestor) Ingest(ev lncore.Event) error {
	if err := in.verify(ev); err != nil {
		logging.Warnf("ingest: dropping %v: %s", ev.Kind(), err.Error())
		in.publish(DroppedEvent{Event: ev, Reason: err.Error()})
		return err
	}

	in.mtx.Lock()
	defer in.mtx.Unlock()

	err := in.apply(ev)
	if graph.IsUnknownChannel(err) {
		in.buffer(ev)
		return nil
	}
	if err != nil {
		return err
	}

	if ev.Kind() == lncore.KindChannelOpened {
		h := ev.Header()
		return in.replay(chanKey{h.Token, h.Channel})
	}
	return nil
}

func (in *Ingestor) verify(ev lncore.Event) error {
	switch e := ev.(type) {
	case lncore.FeeUpdate:
		bad := func(reason string) error {
			return &InvalidFeeUpdateError{Channel: e.Channel, From: e.From, Reason: reason}
		}
		if err := in.window(e); err != nil {
			return err
		}
		if len(e.Signature) == 0 {
			return bad("unsigned")
		}
		signer, err := e.Signer()
		if err != nil {
			return bad(err.Error())
		}
		if signer != e.From {
			return bad("signed by " + signer.String())
		}

	case lncore.BalanceUpdate:
		bad := func(reason string) error {
			return &InvalidBalanceUpdateError{Channel: e.Channel, Updater: e.Updater, Reason: reason}
		}
		if len(e.Signature) == 0 {
			return bad("unsigned")
		}
		signer, err := e.Signer()
		if err != nil {
			return bad(err.Error())
		}
		if signer != e.Updater {
			return bad("signed by " + signer.String())
		}
	}
	return nil
}

// window checks a fee update's validity window against the clock.
func (in *Ingestor) window(e lncore.FeeUpdate) error {
	now := in.cfg.Now()
	if !e.ValidFrom.IsZero() && now.Before(e.ValidFrom) {
		return &InvalidFeeUpdateError{Channel: e.Channel, From: e.From, Reason: "not valid yet"}
	}
	if !e.ValidUntil.IsZero() && now.After(e.ValidUntil) {
		return &InvalidFeeUpdateError{Channel: e.Channel, From: e.From, Reason: "expired"}
	}
	return nil
}

// apply hands ev to the store and reports the outcome on the bus.  Unknown
// channel errors are returned untouched for the caller to buffer.
func (in *Ingestor) apply(ev lncore.Event) error {
	// held updates may have run out of time while they waited
	if fu, ok := ev.(lncore.FeeUpdate); ok {
		if err := in.window(fu); err != nil {
			logging.Warnf("ingest: dropping %v: %s", ev.Kind(), err.Error())
			in.publish(DroppedEvent{Event: ev, Reason: err.Error()})
			return err
		}
	}

	res, err := in.cfg.Store.Apply(ev)
	switch {
	case err == nil:
		if res.Applied {
			in.publish(AppliedEvent{Event: ev, Channel: res.Channel})
		} else {
			logging.Debugf("ingest: %v for channel %v changed nothing", ev.Kind(), ev.Header().Channel)
		}
		return nil

	case graph.IsUnknownChannel(err):
		return err

	case graph.IsDataConsistency(err):
		dce := errors.Cause(err).(*graph.DataConsistencyError)
		logging.Warnf("ingest: %s", err.Error())
		in.publish(FlaggedEvent{Token: dce.Token, Channel: dce.Channel, Reason: dce.Reason})
		in.publish(DroppedEvent{Event: ev, Reason: err.Error()})
		return err

	case errors.Cause(err) == graph.ErrStoreCorrupted:
		logging.Errorf("ingest: %s", err.Error())
		return err
	}

	if _, ok := errors.Cause(err).(*graph.ParticipantMismatchError); ok {
		if fu, ok := ev.(lncore.FeeUpdate); ok {
			err = &InvalidFeeUpdateError{Channel: fu.Channel, From: fu.From, Reason: err.Error()}
		}
	}
	logging.Warnf("ingest: dropping %v: %s", ev.Kind(), err.Error())
	in.publish(DroppedEvent{Event: ev, Reason: err.Error()})
	return err
}

func (in *Ingestor) buffer(ev lncore.Event) {
	h := ev.Header()
	if in.pertoken[h.Token] >= in.cfg.MaxPending {
		logging.Warnf("ingest: %d events pending in %v, dropping %v for channel %v",
			in.pertoken[h.Token], h.Token, ev.Kind(), h.Channel)
		in.publish(DroppedEvent{Event: ev, Reason: "pending buffer full"})
		return
	}

	k := chanKey{h.Token, h.Channel}
	if _, ok := in.buffered[k]; !ok {
		in.order = append(in.order, k)
	}
	in.buffered[k] = append(in.buffered[k], &pending{ev: ev})
	in.npending++
	in.pertoken[h.Token]++
	logging.Debugf("ingest: holding %v for unknown channel %v", ev.Kind(), h.Channel)
}

func (in *Ingestor) forget(k chanKey) {
	in.npending -= len(in.buffered[k])
	in.pertoken[k.token] -= len(in.buffered[k])
	if in.pertoken[k.token] <= 0 {
		delete(in.pertoken, k.token)
	}
	delete(in.buffered, k)
	for i, o := range in.order {
		if o == k {
			in.order = append(in.order[:i], in.order[i+1:]...)
			break
		}
	}
}

// replay applies what was held back for a channel that now exists, in the
// order it came in.
func (in *Ingestor) replay(k chanKey) error {
	held := in.buffered[k]
	if len(held) == 0 {
		return nil
	}
	in.forget(k)
	logging.Infof("ingest: replaying %d events for channel %v", len(held), k.id)

	for _, p := range held {
		err := in.apply(p.ev)
		if errors.Cause(err) == graph.ErrStoreCorrupted {
			return err
		}
	}
	return nil
}

// Retry makes one pass over the held events.  Anything whose channel is
// still unknown after MaxRetries attempts is dropped.
func (in *Ingestor) Retry() error {
	in.mtx.Lock()
	defer in.mtx.Unlock()

	keys := make([]chanKey, len(in.order))
	copy(keys, in.order)

	for _, k := range keys {
		held := in.buffered[k]
		var keep []*pending
		for _, p := range held {
			p.attempts++
			err := in.apply(p.ev)
			if errors.Cause(err) == graph.ErrStoreCorrupted {
				return err
			}
			if !graph.IsUnknownChannel(err) {
				continue
			}
			if p.attempts >= in.cfg.MaxRetries {
				logging.Warnf("ingest: giving up on %v for channel %v after %d attempts",
					p.ev.Kind(), k.id, p.attempts)
				in.publish(DroppedEvent{Event: p.ev, Attempts: p.attempts, Reason: err.Error()})
				continue
			}
			keep = append(keep, p)
		}

		in.forget(k)
		if len(keep) > 0 {
			in.buffered[k] = keep
			in.order = append(in.order, k)
			in.npending += len(keep)
			in.pertoken[k.token] += len(keep)
		}
	}
	return nil
}

// Run applies events from evs and retries held ones on a ticker.  It
// returns when ctx is done, when evs is closed, or when the store is
// corrupted and ingestion has to stop for an operator.
func (in *Ingestor) Run(ctx context.Context, evs <-chan lncore.Event) error {
	tick := time.NewTicker(in.cfg.RetryInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			err := in.Ingest(ev)
			if errors.Cause(err) == graph.ErrStoreCorrupted {
				logging.Errorf("ingest: halting, store corrupted: %s", err.Error())
				return err
			}

		case <-tick.C:
			if err := in.Retry(); err != nil {
				logging.Errorf("ingest: halting, store corrupted: %s", err.Error())
				return err
			}
		}
	}
}

func (in *Ingestor) publish(ev eventbus.Event) {
	if _, err := in.cfg.Bus.Publish(ev); err != nil {
		logging.Warnf("ingest: publishing %s: %s", ev.Name(), err.Error())
	}
}
