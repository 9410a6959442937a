package graph

import (
	"sync"

	"github.com/google/btree"
	"github.com/mit-dci/pfs/fees"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/logging"
	"github.com/pkg/errors"
)

const btreeDegree = 32

// Result tells what Apply did.  Applied is false for replays and stale
// events, which are not errors.
type Result struct {
	Applied bool
	Channel *Channel
}

// Store holds one network per token.  Each network has its own writer lock;
// nothing is ever locked across tokens.
type Store struct {
	mtx      sync.RWMutex // guards the map only
	networks map[lncore.TokenID]*network
}

type network struct {
	token lncore.TokenID

	// mtx serializes writers, and Clone which must not race with them.
	mtx      sync.Mutex
	version  uint64
	channels *btree.BTree
	edges    *btree.BTree
}

func NewStore() *Store {
	return &Store{networks: make(map[lncore.TokenID]*network)}
}

func newNetwork(token lncore.TokenID) *network {
	return &network{
		token:    token,
		channels: btree.New(btreeDegree),
		edges:    btree.New(btreeDegree),
	}
}

func (s *Store) network(token lncore.TokenID, create bool) *network {
	s.mtx.RLock()
	n, ok := s.networks[token]
	s.mtx.RUnlock()
	if ok || !create {
		return n
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	n, ok = s.networks[token]
	if !ok {
		n = newNetwork(token)
		s.networks[token] = n
		logging.Infof("graph: new token network %v", token)
	}
	return n
}

// Tokens lists the token networks we've seen a channel for.
func (s *Store) Tokens() []lncore.TokenID {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	tokens := make([]lncore.TokenID, 0, len(s.networks))
	for t := range s.networks {
		tokens = append(tokens, t)
	}
	return tokens
}

// Snapshot returns a frozen view of one token network.  It costs a btree
// clone; later writes copy the nodes they touch and leave the snapshot alone.
func (s *Store) Snapshot(token lncore.TokenID) *Snapshot {
	n := s.network(token, false)
	if n == nil {
		return &Snapshot{
			token:    token,
			channels: btree.New(btreeDegree),
			edges:    btree.New(btreeDegree),
		}
	}

	n.mtx.Lock()
	defer n.mtx.Unlock()
	return &Snapshot{
		token:    token,
		version:  n.version,
		channels: n.channels.Clone(),
		edges:    n.edges.Clone(),
	}
}

// Apply merges one event into the graph.  It is idempotent: a replayed or
// stale event returns Applied false and leaves everything as it was.
func (s *Store) Apply(ev lncore.Event) (Result, error) {
	h := ev.Header()
	n := s.network(h.Token, ev.Kind() == lncore.KindChannelOpened)
	if n == nil {
		return Result{}, &UnknownChannelError{Token: h.Token, Channel: h.Channel}
	}

	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.apply(ev)
}

// ClearFlag makes a flagged channel routable again once someone has
// reconciled it.
func (s *Store) ClearFlag(token lncore.TokenID, id lncore.ChannelID) error {
	n := s.network(token, false)
	if n == nil {
		return &UnknownChannelError{Token: token, Channel: id}
	}
	n.mtx.Lock()
	defer n.mtx.Unlock()

	ch := n.channel(id)
	if ch == nil {
		return &UnknownChannelError{Token: token, Channel: id}
	}
	if ch.Flag == "" {
		return nil
	}
	nc := ch.clone()
	nc.Flag = ""
	nc.FlagBalance = false
	n.channels.ReplaceOrInsert(nc)
	n.version++
	return nil
}

// Prune drops the edges of settled channels.  The channels stay as
// tombstones so a replayed open can't bring them back.
func (s *Store) Prune(token lncore.TokenID) int {
	n := s.network(token, false)
	if n == nil {
		return 0
	}
	n.mtx.Lock()
	defer n.mtx.Unlock()

	var dead []*Edge
	n.edges.Ascend(func(i btree.Item) bool {
		e := i.(*Edge)
		if ch := n.channel(e.Channel); ch == nil || ch.Status == lncore.StatusSettled {
			dead = append(dead, e)
		}
		return true
	})
	for _, e := range dead {
		n.edges.Delete(e)
	}
	if len(dead) > 0 {
		n.version++
	}
	return len(dead)
}

func (n *network) channel(id lncore.ChannelID) *Channel {
	item := n.channels.Get(&Channel{ID: id})
	if item == nil {
		return nil
	}
	return item.(*Channel)
}

func (n *network) edge(ch *Channel, i int) *Edge {
	item := n.edges.Get(&Edge{
		Channel: ch.ID,
		From:    ch.Participants[i],
		To:      ch.Participants[1-i],
	})
	if item == nil {
		return nil
	}
	return item.(*Edge)
}

// inconsistent flags ch.  balance says whether the problem is one of
// amounts, which a later signed balance update settles.
func (n *network) inconsistent(ch *Channel, reason string, balance bool) error {
	nc := ch.clone()
	if ch.Flag == "" || ch.FlagBalance {
		// an amounts flag never hides a participant one
		nc.Flag = reason
		nc.FlagBalance = balance
	}
	n.channels.ReplaceOrInsert(nc)
	n.version++
	logging.Warnf("graph: flagging channel %v in %v: %s", ch.ID, n.token, reason)
	return &DataConsistencyError{Token: n.token, Channel: ch.ID, Reason: reason}
}

// commit stores nc and rewrites both of its edges with fresh capacities.
// edit, if given, may change the edge of direction i further.
func (n *network) commit(nc *Channel, edit func(i int, e *Edge)) error {
	if err := nc.check(); err != nil {
		return errors.Wrap(ErrStoreCorrupted, err.Error())
	}

	var next [2]*Edge
	for i := 0; i < 2; i++ {
		old := n.edge(nc, i)
		if old == nil {
			return errors.Wrapf(ErrStoreCorrupted, "channel %v has no edge for direction %d", nc.ID, i)
		}
		e := *old
		e.Capacity = nc.Capacity(i)
		if edit != nil {
			edit(i, &e)
		}
		next[i] = &e
	}

	n.channels.ReplaceOrInsert(nc)
	n.edges.ReplaceOrInsert(next[0])
	n.edges.ReplaceOrInsert(next[1])
	n.version++
	return nil
}

func (n *network) apply(ev lncore.Event) (Result, error) {
	h := ev.Header()

	if open, ok := ev.(lncore.ChannelOpened); ok {
		return n.open(open)
	}

	ch := n.channel(h.Channel)
	if ch == nil {
		return Result{}, &UnknownChannelError{Token: n.token, Channel: h.Channel}
	}
	if ch.Status == lncore.StatusSettled {
		// nothing happens to a channel after settlement
		return Result{Channel: ch}, nil
	}

	var nc *Channel
	var edit func(int, *Edge)

	switch e := ev.(type) {
	case lncore.ChannelDeposit:
		i := ch.Index(e.Participant)
		if i < 0 {
			return Result{}, n.inconsistent(ch, "deposit for a non participant", false)
		}
		if e.TotalDeposit <= ch.Deposit[i] {
			return Result{Channel: ch}, nil
		}
		nc = ch.clone()
		nc.Deposit[i] = e.TotalDeposit

	case lncore.ChannelWithdraw:
		i := ch.Index(e.Participant)
		if i < 0 {
			return Result{}, n.inconsistent(ch, "withdraw for a non participant", false)
		}
		if e.TotalWithdraw <= ch.Withdrawn[i] {
			return Result{Channel: ch}, nil
		}
		nc = ch.clone()
		nc.Withdrawn[i] = e.TotalWithdraw
		if nc.Capacity(i) < 0 {
			return Result{}, n.inconsistent(ch, "withdraw exceeds capacity", true)
		}

	case lncore.ChannelClosed:
		if ch.Status >= lncore.StatusClosed {
			return Result{Channel: ch}, nil
		}
		nc = ch.clone()
		nc.Status = ch.Status.Merge(lncore.StatusClosed)
		nc.ClosedBlock = h.Block

	case lncore.ChannelSettled:
		nc = ch.clone()
		nc.Status = ch.Status.Merge(lncore.StatusSettled)
		nc.SettledBlock = h.Block

	case lncore.FeeUpdate:
		i, err := n.direction(ch, e.From, e.To)
		if err != nil {
			return Result{}, err
		}
		old := n.edge(ch, i)
		if old != nil && e.Nonce <= old.FeeNonce {
			return Result{Channel: ch}, nil
		}
		if e.Schedule != nil {
			if err := e.Schedule.Validate(); err != nil {
				return Result{}, err
			}
		}
		nc = ch.clone()
		edit = func(dir int, edge *Edge) {
			if dir == i {
				edge.Schedule = e.Schedule
				edge.FeeNonce = e.Nonce
			}
		}

	case lncore.BalanceUpdate:
		i, err := n.direction(ch, e.Updater, e.Partner)
		if err != nil {
			return Result{}, err
		}
		if e.Nonce <= ch.BalanceNonce[i] {
			return Result{Channel: ch}, nil
		}
		if e.TransferredAmount < ch.Transferred[i] {
			return Result{}, n.inconsistent(ch, "transferred amount went down", true)
		}
		if e.LockedAmount < 0 {
			return Result{}, n.inconsistent(ch, "negative locked amount", true)
		}
		nc = ch.clone()
		nc.Transferred[i] = e.TransferredAmount
		nc.Locked[i] = e.LockedAmount
		nc.BalanceNonce[i] = e.Nonce
		if nc.Capacity(0) < 0 || nc.Capacity(1) < 0 {
			return Result{}, n.inconsistent(ch, "balance update exceeds capacity", true)
		}
		// a fresh state signed by a participant settles the amounts, not
		// a wrong participant set
		if nc.FlagBalance {
			nc.Flag = ""
			nc.FlagBalance = false
		}
		edit = func(dir int, edge *Edge) {
			if dir == i {
				edge.RevealTimeout = e.RevealTimeout
			}
		}

	default:
		return Result{}, errors.Errorf("unhandled event kind %v", ev.Kind())
	}

	if err := n.commit(nc, edit); err != nil {
		return Result{}, err
	}
	return Result{Applied: true, Channel: nc}, nil
}

func (n *network) direction(ch *Channel, from, to lncore.Address) (int, error) {
	i := ch.Index(from)
	if i < 0 {
		return -1, &ParticipantMismatchError{Token: n.token, Channel: ch.ID, Address: from}
	}
	if ch.Index(to) != 1-i {
		return -1, &ParticipantMismatchError{Token: n.token, Channel: ch.ID, Address: to}
	}
	return i, nil
}

func (n *network) open(e lncore.ChannelOpened) (Result, error) {
	if ch := n.channel(e.Channel); ch != nil {
		same := (ch.Participants[0] == e.Participant1 && ch.Participants[1] == e.Participant2) ||
			(ch.Participants[0] == e.Participant2 && ch.Participants[1] == e.Participant1)
		if same {
			return Result{Channel: ch}, nil
		}
		return Result{}, n.inconsistent(ch, "reopened with other participants", false)
	}

	if e.Participant1 == e.Participant2 || e.Participant1.IsZero() || e.Participant2.IsZero() {
		return Result{}, &DataConsistencyError{
			Token: n.token, Channel: e.Channel, Reason: "bad participants in open",
		}
	}

	ch := &Channel{
		Token:         n.token,
		ID:            e.Channel,
		Participants:  [2]lncore.Address{e.Participant1, e.Participant2},
		SettleTimeout: e.SettleTimeout,
		Status:        lncore.StatusOpened,
		OpenedBlock:   e.Block,
	}
	n.channels.ReplaceOrInsert(ch)
	for i := 0; i < 2; i++ {
		n.edges.ReplaceOrInsert(&Edge{
			Channel:       ch.ID,
			From:          ch.Participants[i],
			To:            ch.Participants[1-i],
			SettleTimeout: ch.SettleTimeout,
		})
	}
	n.version++
	return Result{Applied: true, Channel: ch}, nil
}

// FeeOf is a convenience for callers holding an edge: the fee to forward
// amount over it with its current schedule.
func FeeOf(e *Edge, amount int64) (int64, error) {
	return fees.Compute(e.Schedule, e.Capacity, amount)
}
