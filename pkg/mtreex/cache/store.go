package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// gcDiscardRatio is the share of stale data a value log file needs
// before Compact rewrites it.
const gcDiscardRatio = 0.5

// Store is the Badger database behind a Cache. Keys are root and relative
// path joined by KeySeparator; values are gob-encoded CachedDigest.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates the database in dir.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the entry for root/relPath or ErrNotFound.
func (s *Store) Get(root, relPath string) (*CachedDigest, error) {
	entry := new(CachedDigest)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(root, relPath))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return ErrNotFound
		case err != nil:
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put writes the entry for root/relPath.
func (s *Store) Put(root, relPath string, entry *CachedDigest) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(root, relPath), value)
	})
}

// Delete removes the entries for the given keys in one batch.
func (s *Store) Delete(keys ...[]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DeletePrefix removes every entry under root, or the whole database for
// the empty root, and returns how many entries there were.
func (s *Store) DeletePrefix(root string) (int, error) {
	n, err := s.count(root)
	if err != nil || n == 0 {
		return 0, err
	}
	if root == "" {
		err = s.db.DropAll()
	} else {
		err = s.db.DropPrefix(MakeKeyPrefix(root))
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ForEach calls fn for every entry under root, stopping at the first error.
// The empty root visits every entry.
func (s *Store) ForEach(root string, fn func(root, relPath string, entry *CachedDigest) error) error {
	prefix := MakeKeyPrefix(root)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry CachedDigest
			if err := item.Value(entry.Decode); err != nil {
				return err
			}
			r, rel := ParseKey(item.Key())
			if err := fn(r, rel, &entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Compact reclaims value log space left by deleted and overwritten
// entries.
func (s *Store) Compact() error {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// DiskSize returns the bytes used by the LSM tree and the value log.
func (s *Store) DiskSize() int64 {
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

func (s *Store) count(root string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: MakeKeyPrefix(root)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
