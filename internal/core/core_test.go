package core

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/octwallet/config"
	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/sender"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/internal/tracker"
	"github.com/Klingon-tech/octwallet/internal/wallet"
	"github.com/Klingon-tech/octwallet/pkg/tx"
)

func testKeys(t *testing.T, b byte) *wallet.Keys {
	t.Helper()
	k, err := wallet.FromSeed(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("FromSeed() error: %v", err)
	}
	return k
}

// fakeNodeServer answers the endpoints a public send touches.
func fakeNodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	var sent int
	mux := http.NewServeMux()
	mux.HandleFunc("/balance/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"balance":"10","balance_raw":"10000000","nonce":4}`)
	})
	mux.HandleFunc("/staging", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"staged_transactions":[]}`)
	})
	mux.HandleFunc("/send-tx", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		sent++
		mu.Unlock()
		io.WriteString(w, `{"success":true,"tx_hash":"0xfeed"}`)
	})
	mux.HandleFunc("/tx/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"hash":"0xfeed","status":"confirmed","epoch":12}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	cfg := config.DefaultMainnet()
	cfg.Node.URL = url
	cfg.Storage.Backend = storage.BackendMemory
	return cfg
}

func TestNew_RequiresArguments(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	if _, err := New(nil, testKeys(t, 1), storage.NewMemory()); err == nil {
		t.Error("New() without config should fail")
	}
	cfg := testConfig("ftp://nope")
	if _, err := New(cfg, testKeys(t, 1), storage.NewMemory()); err == nil {
		t.Error("New() with an invalid config should fail")
	}
}

func TestCore_SendIsTracked(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	srv := fakeNodeServer(t)
	db := storage.NewMemory()
	keys := testKeys(t, 1)

	var seen []tracker.Status
	var mu sync.Mutex
	c, err := New(testConfig(srv.URL), keys, db,
		WithClock(clock.NewFake(time.UnixMilli(1_700_000_000_000))),
		WithTransitions(func(tn tracker.Transition) {
			mu.Lock()
			seen = append(seen, tn.Record.Status)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	res, err := c.Sender.Send(context.Background(), sender.Request{
		To:     testKeys(t, 2).Address().String(),
		Amount: 1_000_000,
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.TxHash != "0xfeed" || res.Nonce != 5 {
		t.Errorf("Send() = %+v", res)
	}

	vis := c.Tracker.Visible(c.Address())
	if len(vis) != 1 || vis[0].Status != tracker.StatusSubmitted {
		t.Fatalf("Visible() = %+v, want one submitted record", vis)
	}

	if err := c.Tracker.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error: %v", err)
	}
	hist := c.Tracker.History(c.Address())
	if len(hist) != 1 || hist[0].Status != tracker.StatusConfirmed || hist[0].Epoch != 12 {
		t.Errorf("History() = %+v", hist)
	}

	mu.Lock()
	got := append([]tracker.Status(nil), seen...)
	mu.Unlock()
	want := []tracker.Status{tracker.StatusQueued, tracker.StatusProcessing, tracker.StatusSubmitted, tracker.StatusConfirmed}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}

	if ok, _ := db.Has([]byte("mainnet/pending:" + c.Address())); !ok {
		t.Error("records should be stored under the network namespace")
	}
}

func TestCore_SendersShareNonceReservation(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	srv := fakeNodeServer(t)
	c, err := New(testConfig(srv.URL), testKeys(t, 1), storage.NewMemory())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()
	to := testKeys(t, 2)

	release, err := c.Balance.Reserve("test")
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	_, err = c.Sender.Send(context.Background(), sender.Request{To: to.Address().String(), Amount: 1_000_000})
	if !errs.Is(err, errs.Busy) {
		t.Errorf("Send() error = %v, want Busy", err)
	}
	_, err = c.Private.TransferTo(context.Background(), to.Address().String(), 1_000_000, to.PublicKey())
	if !errs.Is(err, errs.Busy) {
		t.Errorf("TransferTo() error = %v, want Busy", err)
	}
	release()

	if _, err := c.Sender.Send(context.Background(), sender.Request{To: to.Address().String(), Amount: 1_000_000}); err != nil {
		t.Errorf("Send() after release error: %v", err)
	}
}

func TestCore_StartClose(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	srv := fakeNodeServer(t)
	cfg := testConfig(srv.URL)
	cfg.Tracker.Interval = time.Millisecond
	c, err := New(cfg, testKeys(t, 1), storage.NewMemory())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	db := storage.NewMemory()
	if got := LoadSettings(db); got.CurrentNetwork != config.Mainnet {
		t.Errorf("LoadSettings(empty) = %+v, want mainnet", got)
	}

	s := Settings{CurrentNetwork: config.Custom, CustomNetwork: &CustomNetwork{Name: "local", URL: "http://127.0.0.1:8080"}}
	if err := SaveSettings(db, s); err != nil {
		t.Fatalf("SaveSettings() error: %v", err)
	}
	got := LoadSettings(db)
	if got.CurrentNetwork != config.Custom || got.CustomNetwork == nil || got.CustomNetwork.URL != s.CustomNetwork.URL {
		t.Errorf("LoadSettings() = %+v", got)
	}

	raw, _ := db.Get(settingsKey)
	var doc map[string]any
	json.Unmarshal(raw, &doc)
	if doc["currentNetwork"] != "custom" {
		t.Errorf("stored document = %s", raw)
	}

	if err := SaveSettings(db, Settings{CurrentNetwork: config.Custom}); err == nil {
		t.Error("SaveSettings(custom without url) should fail")
	}
}

func TestSettings_Invalid(t *testing.T) {
	docs := []string{
		`garbage`,
		`{"currentNetwork":"moon"}`,
		`{"currentNetwork":"custom"}`,
		`[]`,
	}
	for _, d := range docs {
		db := storage.NewMemory()
		db.Put(settingsKey, []byte(d))
		if got := LoadSettings(db); got.CurrentNetwork != config.Mainnet {
			t.Errorf("LoadSettings(%s) = %+v, want defaults", d, got)
		}
	}
}

func TestSettings_Apply(t *testing.T) {
	cfg := config.DefaultMainnet()
	Settings{CurrentNetwork: config.Testnet}.Apply(cfg)
	if cfg.Network != config.Testnet || cfg.Node.URL != config.TestnetNodeURL {
		t.Errorf("after Apply(testnet) network = %s, url = %s", cfg.Network, cfg.Node.URL)
	}

	cfg = config.DefaultMainnet()
	Settings{CurrentNetwork: config.Custom, CustomNetwork: &CustomNetwork{URL: "https://node.example"}}.Apply(cfg)
	if cfg.Network != config.Custom || !strings.HasPrefix(cfg.Node.URL, "https://node.example") {
		t.Errorf("after Apply(custom) network = %s, url = %s", cfg.Network, cfg.Node.URL)
	}
}

func queuedTx(t *testing.T, c *Core, from *wallet.Keys, nonce uint64) string {
	t.Helper()
	b := tx.NewBuilder(tx.KindPublic).
		From(from.Address()).
		To(testKeys(t, 9).Address()).
		Amount(1_000_000, tx.DefaultFeeSchedule()).
		Nonce(nonce).
		Timestamp(time.UnixMilli(1_700_000_000_000))
	if err := b.Sign(from); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	id, err := c.Tracker.Queue(b.Build())
	if err != nil {
		t.Fatalf("Queue() error: %v", err)
	}
	return id
}

func TestCore_Cancel(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	keys := testKeys(t, 1)
	c, err := New(testConfig("http://127.0.0.1:1"), keys, storage.NewMemory())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	queued := queuedTx(t, c, keys, 7)
	foreign := queuedTx(t, c, testKeys(t, 2), 7)
	handed := queuedTx(t, c, keys, 8)
	c.Tracker.Processing(handed)

	tests := []struct {
		name string
		id   string
		kind errs.Kind
	}{
		{"unknown", "nope", errs.NotFound},
		{"other wallet", foreign, errs.NotFound},
		{"already processing", handed, errs.BadInput},
	}
	for _, tt := range tests {
		if err := c.Cancel(tt.id); !errs.Is(err, tt.kind) {
			t.Errorf("Cancel(%s) error = %v, want %v", tt.name, err, tt.kind)
		}
	}

	if err := c.Cancel(queued); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if r, _ := c.Tracker.Get(queued); r.Status != tracker.StatusCancelled {
		t.Errorf("status = %s, want cancelled", r.Status)
	}
	for _, r := range c.Tracker.Visible(c.Address()) {
		if r.ID == queued {
			t.Error("cancelled record should not be visible")
		}
	}
}

func TestForgetAddress(t *testing.T) {
	db := storage.NewMemory()
	alice := testKeys(t, 1).Address().String()
	bob := testKeys(t, 2).Address().String()
	keys := []string{
		"mainnet/pending:" + alice,
		"testnet/pending:" + alice,
		"custom/pending:" + alice,
		"mainnet/pending:" + bob,
		"settings",
	}
	for _, k := range keys {
		db.Put([]byte(k), []byte("{}"))
	}

	if err := ForgetAddress(db, alice); err != nil {
		t.Fatalf("ForgetAddress() error: %v", err)
	}
	if err := ForgetAddress(db, alice); err != nil {
		t.Errorf("second ForgetAddress() error: %v", err)
	}
	for i, k := range keys {
		has, _ := db.Has([]byte(k))
		if want := i >= 3; has != want {
			t.Errorf("Has(%s) = %v, want %v", k, has, want)
		}
	}
}

func TestResetNetwork(t *testing.T) {
	db := storage.NewMemory()
	keys := []string{"testnet/pending:a", "testnet/pending:b", "mainnet/pending:a", "testnetwork", "settings"}
	for _, k := range keys {
		db.Put([]byte(k), []byte("{}"))
	}

	if err := ResetNetwork(db, config.Testnet); err != nil {
		t.Fatalf("ResetNetwork() error: %v", err)
	}
	for i, k := range keys {
		has, _ := db.Has([]byte(k))
		if want := i >= 2; has != want {
			t.Errorf("Has(%s) = %v, want %v", k, has, want)
		}
	}
}
