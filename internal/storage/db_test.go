package storage

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		err := db.Put([]byte("key1"), []byte("value1"))
		if err != nil {
			t.Fatalf("Put() error: %v", err)
		}

		val, err := db.Get([]byte("key1"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("value1")) {
			t.Errorf("Get() = %q, want %q", val, "value1")
		}
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		_, err := db.Get([]byte("nonexistent"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() for missing key error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Has", func(t *testing.T) {
		db.Put([]byte("exists"), []byte("yes"))

		ok, err := db.Has([]byte("exists"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if !ok {
			t.Error("Has() = false for existing key")
		}

		ok, err = db.Has([]byte("missing"))
		if err != nil {
			t.Fatalf("Has() error: %v", err)
		}
		if ok {
			t.Error("Has() = true for missing key")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db.Put([]byte("ow"), []byte("first"))
		db.Put([]byte("ow"), []byte("second"))

		val, err := db.Get([]byte("ow"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte("second")) {
			t.Errorf("Get() after overwrite = %q, want %q", val, "second")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db.Put([]byte("del"), []byte("value"))

		err := db.Delete([]byte("del"))
		if err != nil {
			t.Fatalf("Delete() error: %v", err)
		}

		ok, _ := db.Has([]byte("del"))
		if ok {
			t.Error("key should be gone after Delete()")
		}

		_, err = db.Get([]byte("del"))
		if err == nil {
			t.Error("Get() after Delete() should return error")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		// Deleting a nonexistent key should not error.
		err := db.Delete([]byte("never-existed"))
		if err != nil {
			t.Errorf("Delete() nonexistent key error: %v", err)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		err := db.Put([]byte("empty"), []byte{})
		if err != nil {
			t.Fatalf("Put() empty value error: %v", err)
		}

		val, err := db.Get([]byte("empty"))
		if err != nil {
			t.Fatalf("Get() empty value error: %v", err)
		}
		if len(val) != 0 {
			t.Errorf("expected empty value, got %d bytes", len(val))
		}
	})

	t.Run("BinaryData", func(t *testing.T) {
		key := []byte{0x00, 0x01, 0xFF}
		value := make([]byte, 256)
		for i := range value {
			value[i] = byte(i)
		}

		err := db.Put(key, value)
		if err != nil {
			t.Fatalf("Put() binary error: %v", err)
		}

		got, err := db.Get(key)
		if err != nil {
			t.Fatalf("Get() binary error: %v", err)
		}
		if !bytes.Equal(got, value) {
			t.Error("binary roundtrip failed")
		}
	})

	t.Run("ForEach", func(t *testing.T) {
		db.Put([]byte("prefix/a"), []byte("1"))
		db.Put([]byte("prefix/b"), []byte("2"))
		db.Put([]byte("prefix/c"), []byte("3"))
		db.Put([]byte("other/x"), []byte("4"))

		var count int
		err := db.ForEach([]byte("prefix/"), func(key, value []byte) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if count != 3 {
			t.Errorf("ForEach(prefix/) count = %d, want 3", count)
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		db.Put([]byte("ord/3"), []byte("c"))
		db.Put([]byte("ord/1"), []byte("a"))
		db.Put([]byte("ord/2"), []byte("b"))

		var got []string
		db.ForEach([]byte("ord/"), func(key, value []byte) error {
			got = append(got, string(value))
			return nil
		})
		if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
			t.Errorf("ForEach(ord/) order = %v, want [a b c]", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db.Put([]byte("clr/a"), []byte("1"))
		db.Put([]byte("clr/b"), []byte("2"))
		db.Put([]byte("keep"), []byte("3"))

		if err := Clear(db, []byte("clr/")); err != nil {
			t.Fatalf("Clear() error: %v", err)
		}
		if ok, _ := db.Has([]byte("clr/a")); ok {
			t.Error("clr/a should be gone after Clear()")
		}
		if ok, _ := db.Has([]byte("keep")); !ok {
			t.Error("keys outside the prefix should survive Clear()")
		}
	})

	t.Run("ForEachEmpty", func(t *testing.T) {
		var count int
		err := db.ForEach([]byte("nonexistent/"), func(key, value []byte) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if count != 0 {
			t.Errorf("ForEach(nonexistent/) count = %d, want 0", count)
		}
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB_InMemory(t *testing.T) {
	db, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("NewBadgerInMemory() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestRedisDB(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := NewRedis(RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestRedisDB_GlobCharsInPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := NewRedis(RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis() error: %v", err)
	}
	defer db.Close()

	db.Put([]byte("a*b/1"), []byte("x"))
	db.Put([]byte("aXb/1"), []byte("y"))

	var count int
	db.ForEach([]byte("a*b/"), func(key, value []byte) error {
		count++
		return nil
	})
	if count != 1 {
		t.Errorf("ForEach(a*b/) count = %d, want 1", count)
	}
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedis(RedisOptions{Addr: addr}); err == nil {
		t.Error("NewRedis() should fail when the server is down")
	}
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"memory", Options{Backend: BackendMemory}, false},
		{"badger", Options{Backend: BackendBadger, Path: t.TempDir()}, false},
		{"redis", Options{Backend: BackendRedis, Redis: RedisOptions{Addr: mr.Addr()}}, false},
		{"badger without path", Options{Backend: BackendBadger}, true},
		{"redis without addr", Options{Backend: BackendRedis}, true},
		{"unknown", Options{Backend: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if db != nil {
				db.Close()
			}
		})
	}
}

func TestBadgerDB_Persistence(t *testing.T) {
	dir := t.TempDir()

	// Write data.
	db1, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	db1.Put([]byte("persist"), []byte("data"))
	db1.Close()

	// Reopen and read.
	db2, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	val, err := db2.Get([]byte("persist"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if !bytes.Equal(val, []byte("data")) {
		t.Errorf("persisted value = %q, want %q", val, "data")
	}
}

func TestBadgerDB_Locked(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	if second, err := NewBadger(dir); err == nil {
		second.Close()
		t.Fatal("second NewBadger() on the same dir should fail")
	} else if !strings.Contains(err.Error(), "in use by another octwallet process") {
		t.Errorf("error = %q, want the lock hint", err)
	}
}

func TestClear(t *testing.T) {
	badgerDB, err := NewBadgerInMemory()
	if err != nil {
		t.Fatalf("NewBadgerInMemory() error: %v", err)
	}
	defer badgerDB.Close()

	backends := []struct {
		name string
		db   DB
	}{
		{"memory", NewMemory()},
		{"badger", badgerDB},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			keys := []string{"testnet/pending:a", "testnet/pending:b", "mainnet/pending:a", "settings"}
			for _, k := range keys {
				b.db.Put([]byte(k), []byte("{}"))
			}
			if err := Clear(b.db, []byte("testnet/")); err != nil {
				t.Fatalf("Clear() error: %v", err)
			}
			for i, k := range keys {
				has, _ := b.db.Has([]byte(k))
				if want := i >= 2; has != want {
					t.Errorf("Has(%s) = %v, want %v", k, has, want)
				}
			}

			if err := Clear(b.db, nil); err != nil {
				t.Fatalf("Clear(all) error: %v", err)
			}
			if has, _ := b.db.Has([]byte("settings")); has {
				t.Error("Clear(nil) should empty the store")
			}
		})
	}
}
