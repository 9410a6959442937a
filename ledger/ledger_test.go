package ledger

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mit-dci/pfs/lncore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	service = lncore.Address{0x5e}
	now     = time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newLedger(t *testing.T, limit int64, st Storage) *Ledger {
	l, err := New(Config{
		Service:      service,
		CreditLimit:  limit,
		Storage:      st,
		Now:          func() time.Time { return now },
		ExpiryLeeway: time.Minute,
	})
	require.NoError(t, err)
	return l
}

type payer struct {
	priv *btcec.PrivateKey
	addr lncore.Address
}

func newPayer(t *testing.T) payer {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	require.NoError(t, err)
	return payer{priv, lncore.AddressFromPubKey(priv.PubKey())}
}

func (p payer) iou(t *testing.T, amount int64) IOU {
	u := IOU{Sender: p.addr, Receiver: service, Amount: amount, Expiry: now.Add(time.Hour)}
	require.NoError(t, u.Sign(p.priv))
	return u
}

func TestReserveCommitRelease(t *testing.T) {
	l := newLedger(t, 10, nil)
	p := lncore.Address{1}

	r1, err := l.CheckAndReserve(p, 4)
	require.NoError(t, err)
	r2, err := l.CheckAndReserve(p, 6)
	require.NoError(t, err)

	_, err = l.CheckAndReserve(p, 1)
	ice, ok := err.(*InsufficientCreditError)
	require.True(t, ok)
	assert.Equal(t, int64(10), ice.Reserved)

	require.NoError(t, r1.Commit())
	require.NoError(t, r1.Commit())
	r1.Release()
	r2.Release()
	r2.Release()
	require.NoError(t, r2.Commit())

	e, err := l.Balance(p)
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.Owed)
	assert.Zero(t, e.Reserved)
	assert.Zero(t, e.Paid)
}

func TestLedgerBound(t *testing.T) {
	l := newLedger(t, 5, nil)
	p := lncore.Address{2}

	var committed int
	for i := 0; i < 10; i++ {
		r, err := l.CheckAndReserve(p, 1)
		if err != nil {
			continue
		}
		require.NoError(t, r.Commit())
		committed++
	}
	assert.Equal(t, 5, committed)

	e, _ := l.Balance(p)
	assert.True(t, e.Owed-e.Paid <= l.CreditLimit())
}

func TestConcurrentReservations(t *testing.T) {
	l := newLedger(t, 100, nil)
	p := lncore.Address{3}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r, err := l.CheckAndReserve(p, 1)
				if err != nil {
					continue
				}
				if (g+i)%2 == 0 {
					assert.NoError(t, r.Commit())
				} else {
					r.Release()
				}
			}
		}(g)
	}
	wg.Wait()

	e, _ := l.Balance(p)
	assert.Zero(t, e.Reserved)
	assert.True(t, e.Owed <= 100)
}

func TestSettle(t *testing.T) {
	l := newLedger(t, 10, nil)
	p := newPayer(t)

	for i := 0; i < 8; i++ {
		r, err := l.CheckAndReserve(p.addr, 1)
		require.NoError(t, err)
		require.NoError(t, r.Commit())
	}

	require.NoError(t, l.Settle(p.iou(t, 5)))
	e, _ := l.Balance(p.addr)
	assert.Equal(t, int64(5), e.Paid)

	// older IOU is stale
	require.NoError(t, l.Settle(p.iou(t, 3)))
	e, _ = l.Balance(p.addr)
	assert.Equal(t, int64(5), e.Paid)

	// prepaying up to the credit limit is fine, past it isn't
	require.NoError(t, l.Settle(p.iou(t, 18)))
	err := l.Settle(p.iou(t, 19))
	_, ok := err.(*InvalidIOUError)
	assert.True(t, ok)
}

func TestSettleRejects(t *testing.T) {
	l := newLedger(t, 10, nil)
	p, q := newPayer(t), newPayer(t)

	wrongReceiver := p.iou(t, 1)
	wrongReceiver.Receiver = lncore.Address{9}
	require.NoError(t, wrongReceiver.Sign(p.priv))

	expired := p.iou(t, 1)
	expired.Expiry = now.Add(30 * time.Second)
	require.NoError(t, expired.Sign(p.priv))

	forged := q.iou(t, 1)
	forged.Sender = p.addr

	for name, u := range map[string]IOU{
		"receiver": wrongReceiver,
		"expiry":   expired,
		"forged":   forged,
		"zero":     {Sender: p.addr, Receiver: service, Expiry: now.Add(time.Hour)},
	} {
		t.Run(name, func(t *testing.T) {
			err := l.Settle(u)
			_, ok := errors.Cause(err).(*InvalidIOUError)
			assert.True(t, ok, "%v", err)
		})
	}
}

func TestDeltas(t *testing.T) {
	l := newLedger(t, 10, nil)
	defer l.Close()
	p := lncore.Address{4}
	ch := l.Subscribe()

	r, err := l.CheckAndReserve(p, 3)
	require.NoError(t, err)
	require.NoError(t, r.Commit())

	select {
	case v := <-ch:
		assert.Equal(t, Delta{Participant: p, Owed: 3}, v.(Delta))
	case <-time.After(time.Second):
		t.Fatal("no delta")
	}
	l.Unsubscribe(ch)
}

func TestBoltPersists(t *testing.T) {
	dir, err := ioutil.TempDir("", "pfsledger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "ledger.db")

	st, err := OpenBolt(file)
	require.NoError(t, err)
	l := newLedger(t, 10, st)
	p := newPayer(t)

	r, err := l.CheckAndReserve(p.addr, 7)
	require.NoError(t, err)
	require.NoError(t, r.Commit())
	require.NoError(t, l.Settle(p.iou(t, 2)))
	_, err = l.CheckAndReserve(p.addr, 1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	st, err = OpenBolt(file)
	require.NoError(t, err)
	l = newLedger(t, 10, st)
	defer l.Close()

	e, err := l.Balance(p.addr)
	require.NoError(t, err)
	assert.Equal(t, Entry{Participant: p.addr, Owed: 7, Paid: 2}, e)

	var n int
	require.NoError(t, st.ForEach(func(Entry) error { n++; return nil }))
	assert.Equal(t, 1, n)
}

// brokenStorage fails every save once broken is set.
type brokenStorage struct {
	*MemStorage
	broken bool
}

func (b *brokenStorage) Save(e Entry) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.MemStorage.Save(e)
}

func TestFailedSaveChargesNothing(t *testing.T) {
	st := &brokenStorage{MemStorage: NewMemStorage()}
	l := newLedger(t, 10, st)
	p := newPayer(t)

	r, err := l.CheckAndReserve(p.addr, 3)
	require.NoError(t, err)
	require.NoError(t, r.Commit())

	st.broken = true
	r, err = l.CheckAndReserve(p.addr, 4)
	require.NoError(t, err)
	assert.Error(t, r.Commit())
	r.Release()

	e, err := l.Balance(p.addr)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Owed)
	assert.Zero(t, e.Reserved)

	assert.Error(t, l.Settle(p.iou(t, 3)))
	e, err = l.Balance(p.addr)
	require.NoError(t, err)
	assert.Zero(t, e.Paid)

	st.broken = false
	require.NoError(t, l.Settle(p.iou(t, 3)))
	e, err = l.Balance(p.addr)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Paid)
}

func TestNewNeedsService(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
