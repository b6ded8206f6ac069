package balance

import (
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

// Gate admits one nonce-consuming submission per wallet at a time. Public
// sends and private transfers draw from the same nonce sequence, so they
// share one Gate. The zero value is ready to use.
type Gate struct {
	held atomic.Bool
}

// Reserve claims the wallet's next nonce. While a reservation is held
// other callers fail fast with Busy. release is safe to call more than
// once.
func (g *Gate) Reserve(op string) (release func(), err error) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, errs.E(errs.Busy, op, "another transaction is in flight for this wallet")
	}
	var once sync.Once
	return func() { once.Do(func() { g.held.Store(false) }) }, nil
}
