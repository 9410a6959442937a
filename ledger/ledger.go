// Package ledger keeps track of what each participant owes the service for
// route requests, and of the IOUs they gave to pay for them.
package ledger

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cskr/pubsub"
	"github.com/mit-dci/pfs/consts"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/pkg/errors"
)

// DeltaTopic is the pubsub topic ledger changes go out on.
const DeltaTopic = "ledger.delta"

// Entry is one participant's account.  Owed only grows.
type Entry struct {
	Participant lncore.Address `json:"participant"`
	Owed        int64          `json:"owed"`
	Paid        int64          `json:"paid"`
	Reserved    int64          `json:"reserved"`
}

// Outstanding is what the participant owes beyond what it paid, counting
// reservations.
func (e Entry) Outstanding() int64 {
	return e.Owed + e.Reserved - e.Paid
}

// Delta is published after every committed change.
type Delta struct {
	Participant lncore.Address
	Owed        int64
	Paid        int64
}

// Config of a Ledger.  Service is the address IOUs must be made out to.
type Config struct {
	Service     lncore.Address
	CreditLimit int64
	Storage     Storage
	Now         func() time.Time
	// ExpiryLeeway is how long an IOU has to stay valid to be accepted.
	// A negative leeway takes IOUs that expired less than that long ago.
	ExpiryLeeway time.Duration
}

type shard struct {
	mtx     sync.Mutex
	entries map[lncore.Address]*Entry
}

// Ledger accounts requests per participant.  Each participant maps to one
// of a fixed set of shards, and only its shard is locked while it is
// charged, so different participants rarely wait on each other.
type Ledger struct {
	cfg    Config
	shards [consts.LedgerShards]shard
	ps     *pubsub.PubSub
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Service.IsZero() {
		return nil, errors.New("ledger needs the service address")
	}
	if cfg.CreditLimit < 0 {
		return nil, errors.Errorf("negative credit limit %d", cfg.CreditLimit)
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemStorage()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ExpiryLeeway == 0 {
		cfg.ExpiryLeeway = consts.DefaultIOUExpiryLeeway
	}

	l := &Ledger{cfg: cfg, ps: pubsub.New(64)}
	for i := range l.shards {
		l.shards[i].entries = make(map[lncore.Address]*Entry)
	}

	n := 0
	err := cfg.Storage.ForEach(func(e Entry) error {
		sh := l.shard(e.Participant)
		e.Reserved = 0
		sh.entries[e.Participant] = &e
		n++
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading ledger")
	}
	logging.Infof("ledger: loaded %d accounts, credit limit %d", n, cfg.CreditLimit)
	return l, nil
}

func (l *Ledger) CreditLimit() int64 { return l.cfg.CreditLimit }

func (l *Ledger) shard(p lncore.Address) *shard {
	h := fnv.New32a()
	h.Write(p[:])
	return &l.shards[h.Sum32()%consts.LedgerShards]
}

// entry returns p's account, creating it.  The shard must be locked.
func (sh *shard) entry(p lncore.Address) *Entry {
	e, ok := sh.entries[p]
	if !ok {
		e = &Entry{Participant: p}
		sh.entries[p] = e
	}
	return e
}

// Reservation is credit set aside for one request.  Exactly one of Commit
// and Release takes effect; later calls do nothing.
type Reservation struct {
	l           *Ledger
	participant lncore.Address
	cost        int64
	state       uint32
}

const (
	resOpen uint32 = iota
	resCommitted
	resReleased
)

func (r *Reservation) Participant() lncore.Address { return r.participant }
func (r *Reservation) Cost() int64                 { return r.cost }

// CheckAndReserve sets cost aside for p if p's account stays within the
// credit limit.
func (l *Ledger) CheckAndReserve(p lncore.Address, cost int64) (*Reservation, error) {
	if cost < 0 {
		return nil, errors.Errorf("negative cost %d", cost)
	}
	sh := l.shard(p)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()

	e := sh.entry(p)
	if e.Outstanding()+cost > l.cfg.CreditLimit {
		return nil, &InsufficientCreditError{
			Participant: p,
			Owed:        e.Owed,
			Paid:        e.Paid,
			Reserved:    e.Reserved,
			Cost:        cost,
			Limit:       l.cfg.CreditLimit,
		}
	}
	e.Reserved += cost
	return &Reservation{l: l, participant: p, cost: cost}, nil
}

// Commit turns the reservation into debt.
func (r *Reservation) Commit() error {
	if !atomic.CompareAndSwapUint32(&r.state, resOpen, resCommitted) {
		return nil
	}
	sh := r.l.shard(r.participant)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()

	e := sh.entry(r.participant)
	next := *e
	next.Reserved -= r.cost
	next.Owed += r.cost
	if err := r.l.persist(next); err != nil {
		// not charged, but the reservation is used up
		e.Reserved -= r.cost
		return err
	}
	*e = next
	return nil
}

// Release gives the reserved credit back.
func (r *Reservation) Release() {
	if !atomic.CompareAndSwapUint32(&r.state, resOpen, resReleased) {
		return
	}
	sh := r.l.shard(r.participant)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()
	sh.entry(r.participant).Reserved -= r.cost
}

// Settle takes an IOU as payment.  IOU amounts are cumulative, so the
// amount becomes what the sender has paid; an IOU no bigger than what we
// already have changes nothing.
func (l *Ledger) Settle(iou IOU) error {
	bad := func(reason string) error {
		return &InvalidIOUError{Sender: iou.Sender, Reason: reason}
	}
	if iou.Receiver != l.cfg.Service {
		return bad("made out to " + iou.Receiver.String())
	}
	if iou.Amount <= 0 {
		return bad("amount must be positive")
	}
	if iou.Expiry.IsZero() || iou.Expiry.Before(l.cfg.Now().Add(l.cfg.ExpiryLeeway)) {
		return bad("expires too soon")
	}
	signer, err := iou.Signer()
	if err != nil {
		return bad(err.Error())
	}
	if signer != iou.Sender {
		return bad("signed by " + signer.String())
	}

	sh := l.shard(iou.Sender)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()

	e := sh.entry(iou.Sender)
	if iou.Amount <= e.Paid {
		logging.Debugf("ledger: stale IOU from %v for %d, have %d", iou.Sender, iou.Amount, e.Paid)
		return nil
	}
	if iou.Amount > e.Owed+l.cfg.CreditLimit {
		return bad("pays more than owed plus the credit limit")
	}
	next := *e
	next.Paid = iou.Amount
	if err := l.persist(next); err != nil {
		return err
	}
	*e = next
	return nil
}

// persist saves e and announces the change.  The shard must be locked.
func (l *Ledger) persist(e Entry) error {
	if err := l.cfg.Storage.Save(e); err != nil {
		logging.Errorf("ledger: saving %v: %s", e.Participant, err.Error())
		return errors.Wrapf(err, "saving account of %v", e.Participant)
	}
	l.ps.Pub(Delta{Participant: e.Participant, Owed: e.Owed, Paid: e.Paid}, DeltaTopic)
	return nil
}

// Balance returns a copy of p's account.
func (l *Ledger) Balance(p lncore.Address) (Entry, error) {
	sh := l.shard(p)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()
	if e, ok := sh.entries[p]; ok {
		return *e, nil
	}
	return Entry{Participant: p}, nil
}

// Subscribe returns a channel of Delta values.  Subscribers must keep
// reading it or ledger writes stall; hand it back with Unsubscribe.
func (l *Ledger) Subscribe() chan interface{} {
	return l.ps.Sub(DeltaTopic)
}

func (l *Ledger) Unsubscribe(ch chan interface{}) {
	l.ps.Unsub(ch, DeltaTopic)
}

// Close stops delta delivery and closes the storage.
func (l *Ledger) Close() error {
	l.ps.Shutdown()
	return l.cfg.Storage.Close()
}
