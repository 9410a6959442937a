package ledger

import (
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/mit-dci/pfs/lncore"
	"github.com/mit-dci/pfs/lnutil"
	"github.com/pkg/errors"
)

// Storage keeps ledger entries across restarts.  Only Owed and Paid are
// stored; reservations die with the process.
type Storage interface {
	Load(p lncore.Address) (Entry, bool, error)
	Save(e Entry) error
	ForEach(fn func(Entry) error) error
	Close() error
}

/*
The bolt file has one bucket:

BUCKETEntries is k:v
participant (20 bytes) : owed (8) | paid (8)
*/
var BUCKETEntries = []byte("ent")

const entryLen = 16

// BoltStorage keeps entries in a bolt file.
type BoltStorage struct {
	db *bolt.DB
}

// OpenBolt opens or creates the ledger file.
func OpenBolt(filename string) (*BoltStorage, error) {
	db, err := bolt.Open(filename, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening ledger %s", filename)
	}
	err = db.Update(func(btx *bolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(BUCKETEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Load(p lncore.Address) (Entry, bool, error) {
	e := Entry{Participant: p}
	var found bool
	err := b.db.View(func(btx *bolt.Tx) error {
		bkt := btx.Bucket(BUCKETEntries)
		if bkt == nil {
			return errors.New("no entries bucket")
		}
		v := bkt.Get(p[:])
		if v == nil {
			return nil
		}
		found = true
		return decodeEntry(&e, v)
	})
	return e, found, err
}

func (b *BoltStorage) Save(e Entry) error {
	return b.db.Update(func(btx *bolt.Tx) error {
		bkt := btx.Bucket(BUCKETEntries)
		if bkt == nil {
			return errors.New("no entries bucket")
		}
		return bkt.Put(e.Participant[:], encodeEntry(e))
	})
}

func (b *BoltStorage) ForEach(fn func(Entry) error) error {
	return b.db.View(func(btx *bolt.Tx) error {
		bkt := btx.Bucket(BUCKETEntries)
		if bkt == nil {
			return errors.New("no entries bucket")
		}
		return bkt.ForEach(func(k, v []byte) error {
			var e Entry
			copy(e.Participant[:], k)
			if err := decodeEntry(&e, v); err != nil {
				return err
			}
			return fn(e)
		})
	})
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 0, entryLen)
	buf = append(buf, lnutil.I64tB(e.Owed)...)
	return append(buf, lnutil.I64tB(e.Paid)...)
}

func decodeEntry(e *Entry, v []byte) error {
	if len(v) != entryLen {
		return errors.Errorf("entry for %v is %d bytes, expect %d", e.Participant, len(v), entryLen)
	}
	e.Owed = lnutil.BtI64(v[:8])
	e.Paid = lnutil.BtI64(v[8:])
	return nil
}

// MemStorage keeps entries in a map.  For tests and for running without a
// data directory.
type MemStorage struct {
	mtx     sync.Mutex
	entries map[lncore.Address]Entry
}

func NewMemStorage() *MemStorage {
	return &MemStorage{entries: make(map[lncore.Address]Entry)}
}

func (m *MemStorage) Load(p lncore.Address) (Entry, bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e, ok := m.entries[p]
	if !ok {
		e.Participant = p
	}
	return e, ok, nil
}

func (m *MemStorage) Save(e Entry) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	e.Reserved = 0
	m.entries[e.Participant] = e
	return nil
}

func (m *MemStorage) ForEach(fn func(Entry) error) error {
	m.mtx.Lock()
	all := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	m.mtx.Unlock()
	for _, e := range all {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemStorage) Close() error { return nil }
