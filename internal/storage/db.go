// Package storage provides the key-value stores the wallet persists to.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// prefixDropper is implemented by stores that can delete a key range
// without iterating it.
type prefixDropper interface {
	DropPrefix(prefix []byte) error
}

// Clear deletes every key under prefix. An empty prefix clears the store.
func Clear(db DB, prefix []byte) error {
	if d, ok := db.(prefixDropper); ok {
		return d.DropPrefix(prefix)
	}
	// Collect all keys first to avoid modifying during iteration.
	var keys [][]byte
	err := db.ForEach(prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
