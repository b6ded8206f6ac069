package tx

import (
	"fmt"
	"math"
	"math/bits"
)

// Default fee constants. Networks override them from config; they must
// match what the node charges.
const (
	DefaultMinFee  = 1_000 // micro-OCT
	DefaultRateBps = 1
)

// FeeSchedule prices a transfer: max(MinFee, ceil(amount*RateBps/10000)).
type FeeSchedule struct {
	MinFee  uint64
	RateBps uint64
}

// DefaultFeeSchedule returns the built-in schedule.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{MinFee: DefaultMinFee, RateBps: DefaultRateBps}
}

// Fee returns the fee for amount. The product is computed in 128 bits, so
// large amounts saturate instead of wrapping.
func (s FeeSchedule) Fee(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, s.RateBps)
	// ceil(x / 10000) = (x + 9999) / 10000
	lo, carry := bits.Add64(lo, 9_999, 0)
	hi += carry

	var fee uint64
	if hi >= 10_000 {
		fee = math.MaxUint64
	} else {
		fee, _ = bits.Div64(hi, lo, 10_000)
	}
	if fee < s.MinFee {
		return s.MinFee
	}
	return fee
}

// Total returns amount + Fee(amount).
func (s FeeSchedule) Total(amount uint64) (uint64, error) {
	return addAmounts(amount, s.Fee(amount))
}

func addAmounts(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("amount overflow: %d + %d", a, b)
	}
	return sum, nil
}
