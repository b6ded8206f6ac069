package balance

import (
	"sync"
	"testing"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

func TestGate_Reserve(t *testing.T) {
	var g Gate
	release, err := g.Reserve("first")
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if _, err := g.Reserve("second"); !errs.Is(err, errs.Busy) {
		t.Errorf("second Reserve() error = %v, want Busy", err)
	}

	release()
	release() // second call is a no-op

	again, err := g.Reserve("third")
	if err != nil {
		t.Fatalf("Reserve() after release error: %v", err)
	}
	// A stale release from the first holder must not free the new one.
	release()
	if _, err := g.Reserve("fourth"); !errs.Is(err, errs.Busy) {
		t.Errorf("Reserve() while third holds = %v, want Busy", err)
	}
	again()
}

func TestGate_OneWinner(t *testing.T) {
	var g Gate
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Reserve("race"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("reservations granted = %d, want 1", wins)
	}
}

func TestCache_SharesGate(t *testing.T) {
	c := New(&fakeSource{}, "octA", 0, nil)
	release, err := c.Reserve("send")
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	defer release()
	if _, err := c.Reserve("private"); !errs.Is(err, errs.Busy) {
		t.Errorf("Reserve() through the cache = %v, want Busy", err)
	}
}
