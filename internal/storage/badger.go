package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB is the on-disk backend. The wallet keeps one small JSON
// document per address and network, so every write is synced: a record
// the node has accepted must survive a crash right after submit.
type BadgerDB struct {
	db   *badger.DB
	path string
}

// NewBadger opens (or creates) the store in dir.
func NewBadger(dir string) (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions(dir).WithSyncWrites(true), dir)
}

// NewBadgerInMemory opens a store that keeps everything in RAM.
func NewBadgerInMemory() (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true), "memory")
}

func openBadger(opts badger.Options, path string) (*BadgerDB, error) {
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		if locked(err) {
			return nil, fmt.Errorf("wallet data at %s is in use by another octwallet process: %w", path, err)
		}
		return nil, fmt.Errorf("open wallet data at %s: %w", path, err)
	}
	return &BadgerDB{db: db, path: path}, nil
}

func locked(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot acquire directory lock") ||
		strings.Contains(msg, "resource temporarily unavailable")
}

func (b *BadgerDB) view(op string, fn func(txn *badger.Txn) error) error {
	if err := b.db.View(fn); err != nil {
		return b.wrap(op, err)
	}
	return nil
}

func (b *BadgerDB) update(op string, fn func(txn *badger.Txn) error) error {
	if err := b.db.Update(fn); err != nil {
		return b.wrap(op, err)
	}
	return nil
}

func (b *BadgerDB) wrap(op string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("badger %s (%s): %w", op, b.path, err)
}

// Get returns the value of key, or ErrNotFound.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.view("get", func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// Put stores value under key.
func (b *BadgerDB) Put(key, value []byte) error {
	return b.update("put", func(txn *badger.Txn) error { return txn.Set(key, value) })
}

// Delete removes key. Deleting a missing key is not an error.
func (b *BadgerDB) Delete(key []byte) error {
	return b.update("delete", func(txn *badger.Txn) error { return txn.Delete(key) })
}

// Has reports whether key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// ForEach visits the keys under prefix in key order.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.view("scan", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// DropPrefix deletes every key under prefix without reading them. Clear
// uses it when the store is a BadgerDB.
func (b *BadgerDB) DropPrefix(prefix []byte) error {
	drop := func() error { return b.db.DropPrefix(prefix) }
	if len(prefix) == 0 {
		drop = b.db.DropAll
	}
	if err := drop(); err != nil {
		return b.wrap("drop", err)
	}
	return nil
}

// Close flushes and closes the store.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
