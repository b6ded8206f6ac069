package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/internal/wallet"
	"github.com/Klingon-tech/octwallet/pkg/tx"
)

var start = time.UnixMilli(1_700_000_000_000)

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]*rpcclient.TxStatus
	calls    int
	onCall   func(n int)
}

func (f *fakeStatus) GetTransaction(_ context.Context, hash string) (*rpcclient.TxStatus, error) {
	f.mu.Lock()
	f.calls++
	n, hook := f.calls, f.onCall
	st, ok := f.statuses[hash]
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if !ok {
		return nil, errs.E(errs.NotFound, "fake", "unknown transaction")
	}
	cp := *st
	return &cp, nil
}

func testKeys(t *testing.T, b byte) *wallet.Keys {
	t.Helper()
	k, err := wallet.FromSeed(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("FromSeed() error: %v", err)
	}
	return k
}

func signedTx(t *testing.T, from, to *wallet.Keys, nonce uint64) *tx.Transaction {
	t.Helper()
	b := tx.NewBuilder(tx.KindPublic).
		From(from.Address()).
		To(to.Address()).
		Amount(1_000_000, tx.DefaultFeeSchedule()).
		Nonce(nonce).
		Timestamp(start)
	if err := b.Sign(from); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return b.Build()
}

func newTestTracker(t *testing.T, db storage.DB, node StatusSource) (*Tracker, *clock.Fake) {
	t.Helper()
	klog.SetOutput(io.Discard, "error")
	clk := clock.NewFake(start)
	return New(db, node, Options{Clock: clk}), clk
}

func TestTracker_Lifecycle(t *testing.T) {
	node := &fakeStatus{statuses: map[string]*rpcclient.TxStatus{
		"0xa": {Hash: "0xa", Status: rpcclient.StatusConfirmed, Epoch: 9},
	}}
	tr, _ := newTestTracker(t, storage.NewMemory(), node)
	alice, bob := testKeys(t, 1), testKeys(t, 2)

	var seen []string
	tr.OnTransition(func(tn Transition) {
		seen = append(seen, string(tn.From)+">"+string(tn.Record.Status))
	})

	id, err := tr.Queue(signedTx(t, alice, bob, 1))
	if err != nil {
		t.Fatalf("Queue() error: %v", err)
	}
	if err := tr.Processing(id); err != nil {
		t.Fatalf("Processing() error: %v", err)
	}
	if err := tr.Submitted(id, "0xa"); err != nil {
		t.Fatalf("Submitted() error: %v", err)
	}
	if err := tr.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}

	r, ok := tr.Get(id)
	if !ok {
		t.Fatal("record missing")
	}
	if r.Status != StatusConfirmed || r.Epoch != 9 || r.Attempts != 1 {
		t.Errorf("record = %+v", r)
	}
	want := []string{">queued", "queued>processing", "processing>submitted", "submitted>confirmed"}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
	if tr.LastFetch(alice.Address().String()).IsZero() {
		t.Error("LastFetch should be set after reconcile")
	}
}

func TestTracker_IllegalTransitions(t *testing.T) {
	tr, _ := newTestTracker(t, storage.NewMemory(), nil)
	alice, bob := testKeys(t, 1), testKeys(t, 2)

	id, _ := tr.Queue(signedTx(t, alice, bob, 1))
	tests := []struct {
		name string
		do   func() error
		kind errs.Kind
	}{
		{"submit before processing", func() error { return tr.Submitted(id, "0x1") }, errs.BadInput},
		{"unknown id", func() error { return tr.Processing("nope") }, errs.NotFound},
	}
	for _, tt := range tests {
		if err := tt.do(); !errs.Is(err, tt.kind) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.kind)
		}
	}

	tr.Processing(id)
	tr.Submitted(id, "0x1")
	if err := tr.Cancel(id); !errs.Is(err, errs.BadInput) {
		t.Errorf("Cancel(submitted) error = %v, want BadInput", err)
	}

	id2, _ := tr.Queue(signedTx(t, alice, bob, 2))
	if err := tr.Cancel(id2); err != nil {
		t.Fatalf("Cancel(queued) error: %v", err)
	}
	if err := tr.Processing(id2); !errs.Is(err, errs.BadInput) {
		t.Errorf("Processing(cancelled) error = %v, want BadInput", err)
	}
}

func TestTracker_HashlessExpiry(t *testing.T) {
	node := &fakeStatus{statuses: map[string]*rpcclient.TxStatus{}}
	tr, clk := newTestTracker(t, storage.NewMemory(), node)
	alice, bob := testKeys(t, 1), testKeys(t, 2)

	submitted, _ := tr.Queue(signedTx(t, alice, bob, 1))
	tr.Processing(submitted)
	if err := tr.Submitted(submitted, ""); err != nil {
		t.Fatalf("Submitted() error: %v", err)
	}
	stuck, _ := tr.Queue(signedTx(t, alice, bob, 2))
	tr.Processing(stuck)
	queued, _ := tr.Queue(signedTx(t, alice, bob, 3))

	tests := []struct {
		name    string
		advance time.Duration
		want    Status
	}{
		{"fresh", 0, StatusSubmitted},
		{"at the bound", DefaultHashlessAge, StatusSubmitted},
		{"past the bound", time.Second, StatusFailed},
	}
	for _, tt := range tests {
		clk.Advance(tt.advance)
		if err := tr.Reconcile(context.Background()); err != nil {
			t.Fatalf("%s: Reconcile() error: %v", tt.name, err)
		}
		if r, _ := tr.Get(submitted); r.Status != tt.want {
			t.Errorf("%s: status = %s, want %s", tt.name, r.Status, tt.want)
		}
	}

	for _, id := range []string{submitted, stuck} {
		r, _ := tr.Get(id)
		if r.Status != StatusFailed || r.LastError != "node returned no hash" {
			t.Errorf("record %s = %s %q, want failed with no hash", id, r.Status, r.LastError)
		}
	}
	if r, _ := tr.Get(queued); r.Status != StatusQueued {
		t.Errorf("queued record status = %s, want queued", r.Status)
	}
	if node.calls != 0 {
		t.Errorf("status lookups = %d, want 0", node.calls)
	}
	if n := len(tr.Visible(alice.Address().String())); n != 1 {
		t.Errorf("Visible() = %d records, want only the queued one", n)
	}
}

func TestTracker_FingerprintDedupe(t *testing.T) {
	tr, _ := newTestTracker(t, storage.NewMemory(), nil)
	txn := signedTx(t, testKeys(t, 1), testKeys(t, 2), 1)

	id, err := tr.Queue(txn)
	if err != nil {
		t.Fatalf("Queue() error: %v", err)
	}
	again, err := tr.Queue(txn)
	if !errs.Is(err, errs.Duplicate) {
		t.Fatalf("second Queue() error = %v, want Duplicate", err)
	}
	if again != id {
		t.Errorf("second Queue() id = %s, want %s", again, id)
	}

	tr.Cancel(id)
	if _, err := tr.Queue(txn); err != nil {
		t.Errorf("Queue() after cancel error: %v", err)
	}
}

func TestTracker_Persistence(t *testing.T) {
	db := storage.NewMemory()
	tr, _ := newTestTracker(t, db, nil)
	alice, bob := testKeys(t, 1), testKeys(t, 2)
	addr := alice.Address().String()

	id, _ := tr.Queue(signedTx(t, alice, bob, 1))
	tr.Processing(id)

	data, err := db.Get([]byte("pending:" + addr))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("stored document is not JSON: %v", err)
	}
	for _, k := range []string{"version", "address", "transactions", "lastFetchTime", "storedAt"} {
		if _, ok := doc[k]; !ok {
			t.Errorf("stored document lacks %q", k)
		}
	}
	if string(doc["version"]) != "2" {
		t.Errorf("version = %s, want 2", doc["version"])
	}

	reloaded, _ := newTestTracker(t, db, nil)
	if err := reloaded.Load(context.Background(), addr); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	r, ok := reloaded.Get(id)
	if !ok {
		t.Fatal("record not reloaded")
	}
	if r.Status != StatusProcessing || r.To != bob.Address().String() || r.Amount != 1_000_000 {
		t.Errorf("reloaded record = %+v", r)
	}
}

func TestTracker_InvalidDocuments(t *testing.T) {
	docs := []string{
		`not json`,
		`{"version":1,"transactions":[]}`,
		`{"version":2,"transactions":{"a":1}}`,
		`{"version":2}`,
		`{"version":2,"transactions":[{"id":5}]}`,
		`[]`,
	}
	for _, d := range docs {
		db := storage.NewMemory()
		db.Put([]byte("pending:oct1"), []byte(d))
		tr, _ := newTestTracker(t, db, nil)
		if err := tr.Load(context.Background(), "oct1"); err != nil {
			t.Errorf("Load(%s) error: %v", d, err)
		}
		if h := tr.History("oct1"); len(h) != 0 {
			t.Errorf("Load(%s) history = %d records, want 0", d, len(h))
		}
	}
}

func TestTracker_PruneOnLoad(t *testing.T) {
	db := storage.NewMemory()
	alice := testKeys(t, 1).Address().String()
	old := start.Add(-8 * 24 * time.Hour)
	recent := start.Add(-time.Hour)
	doc := document{
		Version: docVersion,
		Address: alice,
		Transactions: []*Record{
			{ID: "old-failed", From: alice, Status: StatusFailed, CreatedAt: old, UpdatedAt: old},
			{ID: "new-failed", From: alice, Status: StatusFailed, CreatedAt: recent, UpdatedAt: recent},
			{ID: "old-confirmed", From: alice, Status: StatusConfirmed, CreatedAt: old, UpdatedAt: old},
		},
	}
	if err := writeDocument(db, doc, start); err != nil {
		t.Fatalf("writeDocument() error: %v", err)
	}

	tr, _ := newTestTracker(t, db, nil)
	if err := tr.Load(context.Background(), alice); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := tr.Get("old-failed"); ok {
		t.Error("failed record older than 7 days should be pruned")
	}
	for _, id := range []string{"new-failed", "old-confirmed"} {
		if _, ok := tr.Get(id); !ok {
			t.Errorf("record %s should be kept", id)
		}
	}

	again, _ := newTestTracker(t, db, nil)
	again.Load(context.Background(), alice)
	if _, ok := again.Get("old-failed"); ok {
		t.Error("pruning should be persisted")
	}
}

func TestTracker_ReverifyOnLoad(t *testing.T) {
	db := storage.NewMemory()
	alice := testKeys(t, 1).Address().String()
	doc := document{
		Version: docVersion,
		Address: alice,
		Transactions: []*Record{
			{ID: "a", From: alice, Status: StatusSubmitted, TxHash: "0xa", CreatedAt: start, UpdatedAt: start},
			{ID: "b", From: alice, Status: StatusProcessing, TxHash: "0xb", CreatedAt: start, UpdatedAt: start},
			{ID: "c", From: alice, Status: StatusSubmitted, TxHash: "0xc", CreatedAt: start, UpdatedAt: start},
			{ID: "d", From: alice, Status: StatusProcessing, CreatedAt: start, UpdatedAt: start},
		},
	}
	writeDocument(db, doc, start)

	node := &fakeStatus{statuses: map[string]*rpcclient.TxStatus{
		"0xa": {Status: rpcclient.StatusConfirmed, Epoch: 3},
		"0xb": {Status: rpcclient.StatusRejected, Error: "bad nonce"},
	}}
	tr, _ := newTestTracker(t, db, node)
	if err := tr.Load(context.Background(), alice); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		id     string
		status Status
	}{
		{"a", StatusConfirmed},
		{"b", StatusFailed},
		{"c", StatusSubmitted},
		{"d", StatusProcessing},
	}
	for _, tt := range tests {
		r, _ := tr.Get(tt.id)
		if r.Status != tt.status {
			t.Errorf("record %s status = %s, want %s", tt.id, r.Status, tt.status)
		}
	}
	if r, _ := tr.Get("b"); r.LastError != "bad nonce" {
		t.Errorf("LastError = %q, want bad nonce", r.LastError)
	}
	if node.calls != 3 {
		t.Errorf("status lookups = %d, want 3", node.calls)
	}
}

func TestTracker_VisibleAndHistory(t *testing.T) {
	db := storage.NewMemory()
	alice, bob := testKeys(t, 1), testKeys(t, 2)
	addr := alice.Address().String()
	doc := document{
		Version: docVersion,
		Address: addr,
		Transactions: []*Record{
			{ID: "mine-old", From: addr, Status: StatusConfirmed, CreatedAt: start.Add(-2 * time.Hour)},
			{ID: "mine-live", From: addr, Status: StatusQueued, CreatedAt: start.Add(-time.Hour)},
			{ID: "foreign", From: bob.Address().String(), Status: StatusQueued, CreatedAt: start},
		},
	}
	writeDocument(db, doc, start)
	tr, clk := newTestTracker(t, db, nil)
	tr.Load(context.Background(), addr)

	vis := tr.Visible(addr)
	if len(vis) != 1 || vis[0].ID != "mine-live" {
		t.Errorf("Visible() = %+v, want [mine-live]", vis)
	}
	hist := tr.History(addr)
	if len(hist) != 2 || hist[0].ID != "mine-live" || hist[1].ID != "mine-old" {
		t.Errorf("History() = %+v", hist)
	}

	clk.Advance(time.Minute)
	id, _ := tr.Queue(signedTx(t, alice, bob, 7))
	hist = tr.History(addr)
	if len(hist) != 3 || hist[0].ID != id {
		t.Errorf("History() after Queue should lead with the new record, got %+v", hist)
	}
}

func TestTracker_Run(t *testing.T) {
	tr, clk := newTestTracker(t, storage.NewMemory(), nil)
	node := &fakeStatus{statuses: map[string]*rpcclient.TxStatus{}}
	tr.node = node

	alice, bob := testKeys(t, 1), testKeys(t, 2)
	id, _ := tr.Queue(signedTx(t, alice, bob, 1))
	tr.Processing(id)
	tr.Submitted(id, "0xslow")

	ctx, cancel := context.WithCancel(context.Background())
	node.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, 5*time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	sleeps := clk.Sleeps()
	if len(sleeps) < 2 {
		t.Fatalf("sleeps = %v, want at least 2", sleeps)
	}
	for _, d := range sleeps {
		if d != 5*time.Second {
			t.Errorf("sleep = %v, want 5s", d)
		}
	}
	r, _ := tr.Get(id)
	if r.Status != StatusSubmitted || r.Attempts != 3 {
		t.Errorf("record = %+v, want submitted after 3 lookups", r)
	}
}

// failingDB fails every write.
type failingDB struct{ *storage.MemoryDB }

func (failingDB) Put(_, _ []byte) error { return errors.New("disk full") }

func TestTracker_PersistFailure(t *testing.T) {
	tr, _ := newTestTracker(t, failingDB{storage.NewMemory()}, nil)
	id, err := tr.Queue(signedTx(t, testKeys(t, 1), testKeys(t, 2), 1))
	if err == nil {
		t.Fatal("Queue() should report the write failure")
	}
	if _, ok := tr.Get(id); !ok {
		t.Error("record should still be tracked in memory")
	}
}
