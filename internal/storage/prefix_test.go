package storage

import (
	"errors"
	"strings"
	"testing"
)

const (
	alice = "octAliceAddr"
	bob   = "octBobAddr"
)

// backends returns a fresh store of every local kind.
func backends(t *testing.T) map[string]DB {
	t.Helper()
	b, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("NewBadgerInMemory() error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]DB{"memory": NewMemory(), "badger": b}
}

func TestPrefixDB_NetworkNamespaces(t *testing.T) {
	for name, inner := range backends(t) {
		t.Run(name, func(t *testing.T) {
			mainnet := NewPrefixDB(inner, []byte("mainnet/"))
			testnet := NewPrefixDB(inner, []byte("testnet/"))
			inner.Put([]byte("settings"), []byte(`{"currentNetwork":"mainnet"}`))

			mainnet.Put([]byte("pending:"+alice), []byte("main"))
			testnet.Put([]byte("pending:"+alice), []byte("test"))

			tests := []struct {
				db   DB
				key  string
				want string
			}{
				{mainnet, "pending:" + alice, "main"},
				{testnet, "pending:" + alice, "test"},
				{inner, "mainnet/pending:" + alice, "main"},
				{inner, "testnet/pending:" + alice, "test"},
			}
			for _, tt := range tests {
				got, err := tt.db.Get([]byte(tt.key))
				if err != nil || string(got) != tt.want {
					t.Errorf("Get(%s) = %q, %v; want %q", tt.key, got, err, tt.want)
				}
			}

			if _, err := mainnet.Get([]byte("settings")); !errors.Is(err, ErrNotFound) {
				t.Errorf("settings visible inside the mainnet namespace: %v", err)
			}
			if ok, _ := testnet.Has([]byte("pending:" + bob)); ok {
				t.Error("Has(bob) = true, want false")
			}

			if err := testnet.Delete([]byte("pending:" + alice)); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if ok, _ := mainnet.Has([]byte("pending:" + alice)); !ok {
				t.Error("deleting on testnet removed the mainnet record")
			}
		})
	}
}

func TestPrefixDB_ForEach(t *testing.T) {
	for name, inner := range backends(t) {
		t.Run(name, func(t *testing.T) {
			db := NewPrefixDB(inner, []byte("mainnet/"))
			db.Put([]byte("pending:"+bob), []byte("b"))
			db.Put([]byte("pending:"+alice), []byte("a"))
			db.Put([]byte("meta"), []byte("m"))
			inner.Put([]byte("testnet/pending:"+alice), []byte("other"))

			var got []string
			err := db.ForEach([]byte("pending:"), func(key, value []byte) error {
				got = append(got, string(key)+"="+string(value))
				return nil
			})
			if err != nil {
				t.Fatalf("ForEach() error: %v", err)
			}
			want := "pending:" + alice + "=a,pending:" + bob + "=b"
			if strings.Join(got, ",") != want {
				t.Errorf("ForEach() = %v, want %s", got, want)
			}

			stop := errors.New("stop")
			calls := 0
			err = db.ForEach(nil, func(key, value []byte) error {
				calls++
				return stop
			})
			if !errors.Is(err, stop) || calls != 1 {
				t.Errorf("ForEach() stop = %v after %d calls, want stop after 1", err, calls)
			}
		})
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	for name, inner := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{
				"testnet/pending:" + alice,
				"testnet/pending:" + bob,
				"mainnet/pending:" + alice,
				"testnetwork",
				"settings",
			}
			for _, k := range keys {
				inner.Put([]byte(k), []byte("{}"))
			}

			testnet := NewPrefixDB(inner, []byte("testnet/"))
			if err := testnet.DeleteAll(); err != nil {
				t.Fatalf("DeleteAll() error: %v", err)
			}
			for i, k := range keys {
				has, _ := inner.Has([]byte(k))
				if want := i >= 2; has != want {
					t.Errorf("Has(%s) = %v, want %v", k, has, want)
				}
			}

			if err := NewPrefixDB(inner, []byte("custom/")).DeleteAll(); err != nil {
				t.Errorf("DeleteAll() on an empty namespace error: %v", err)
			}
		})
	}
}

func TestPrefixDB_PrefixCopied(t *testing.T) {
	inner := NewMemory()
	prefix := []byte("mainnet/")
	db := NewPrefixDB(inner, prefix)
	copy(prefix, "testnet/")

	db.Put([]byte("pending:"+alice), []byte("x"))
	if ok, _ := inner.Has([]byte("mainnet/pending:" + alice)); !ok {
		t.Error("NewPrefixDB() should copy its prefix")
	}
}

func TestPrefixDB_CloseLeavesInner(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("mainnet/"))
	db.Put([]byte("pending:"+alice), []byte("x"))

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got, err := inner.Get([]byte("mainnet/pending:" + alice)); err != nil || string(got) != "x" {
		t.Errorf("inner Get() after Close = %q, %v", got, err)
	}
}
