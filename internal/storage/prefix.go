package storage

// PrefixDB is one network's namespace inside a shared store. Mainnet and
// testnet records for the same address live side by side as
// "mainnet/pending:<addr>" and "testnet/pending:<addr>"; callers see only
// the part after the namespace.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns the namespace prefix of inner. prefix is copied.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: append([]byte(nil), prefix...)}
}

func (p *PrefixDB) key(k []byte) []byte {
	full := make([]byte, 0, len(p.prefix)+len(k))
	return append(append(full, p.prefix...), k...)
}

// Get returns the value of key in the namespace.
func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }

// Put stores value under key in the namespace.
func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

// Delete removes key from the namespace.
func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }

// Has reports whether key exists in the namespace.
func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(p.key(key)) }

// ForEach visits the namespace's keys under prefix, with the namespace
// stripped from each key.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// DeleteAll empties the namespace. Other namespaces and unprefixed keys
// are kept.
func (p *PrefixDB) DeleteAll() error {
	return Clear(p.inner, p.prefix)
}

// Close does nothing; the shared store is closed by its owner.
func (p *PrefixDB) Close() error { return nil }
