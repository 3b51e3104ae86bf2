package ledger

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Record key prefixes. Bids are keyed by auction then bidder so a prefix
// scan lists every bid of one auction.
const (
	prefixAuction byte = 'a'
	prefixBid     byte = 'b'
	prefixVault   byte = 'v'
	prefixWallet  byte = 'w'
)

var errRecordNotFound = errors.New("record not found")

// Store persists ledger records in leveldb. Reads go through an LRU cache of
// encoded values; writes only happen through Tx.commit.
type Store struct {
	db    *leveldb.DB
	cache *lru.Cache
	enc   cbor.EncMode
}

// OpenStore opens (or creates) the database at path. An empty path keeps
// everything in memory.
func OpenStore(path string, cacheSize int) (*Store, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}

	cache, err := lru.New(cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create record cache: %w", err)
	}

	// Canonical encoding keeps equal records byte-identical on disk.
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cbor encoder: %w", err)
	}

	return &Store{db: db, cache: cache, enc: enc}, nil
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

func (s *Store) getRaw(key []byte) ([]byte, error) {
	if v, ok := s.cache.Get(string(key)); ok {
		return v.([]byte), nil
	}
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	s.cache.Add(string(key), value)
	return value, nil
}

// get decodes the committed record at key into v.
func (s *Store) get(key []byte, v any) error {
	raw, err := s.getRaw(key)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record %x: %w", key, err)
	}
	return nil
}

// scan calls fn for every committed record whose key starts with prefix,
// in key order.
func (s *Store) scan(prefix []byte, fn func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

func (s *Store) begin() *Tx {
	return &Tx{store: s, writes: make(map[string][]byte)}
}

// Tx stages the writes of one instruction. Nothing reaches the database
// until commit, which applies every staged write in a single batch.
type Tx struct {
	store  *Store
	writes map[string][]byte // nil value marks a delete
	order  []string
	after  []func()
}

// afterCommit queues fn to run once the writes are durable. A transaction
// that is abandoned or fails to commit never runs it.
func (tx *Tx) afterCommit(fn func()) {
	tx.after = append(tx.after, fn)
}

func (tx *Tx) get(key []byte, v any) error {
	if raw, ok := tx.writes[string(key)]; ok {
		if raw == nil {
			return errRecordNotFound
		}
		return cbor.Unmarshal(raw, v)
	}
	return tx.store.get(key, v)
}

func (tx *Tx) exists(key []byte) (bool, error) {
	var raw cbor.RawMessage
	err := tx.get(key, &raw)
	if errors.Is(err, errRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (tx *Tx) stage(key string, raw []byte) {
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = raw
}

func (tx *Tx) put(key []byte, v any) error {
	raw, err := tx.store.enc.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %x: %w", key, err)
	}
	tx.stage(string(key), raw)
	return nil
}

func (tx *Tx) delete(key []byte) {
	tx.stage(string(key), nil)
}

func (tx *Tx) commit() error {
	if len(tx.order) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for _, key := range tx.order {
		if raw := tx.writes[key]; raw != nil {
			batch.Put([]byte(key), raw)
		} else {
			batch.Delete([]byte(key))
		}
	}
	if err := tx.store.db.Write(batch, nil); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	for _, key := range tx.order {
		if raw := tx.writes[key]; raw != nil {
			tx.store.cache.Add(key, raw)
		} else {
			tx.store.cache.Remove(key)
		}
	}
	return nil
}
