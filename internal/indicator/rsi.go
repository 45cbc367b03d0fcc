package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
)

// RSI is the relative strength index with Wilder smoothing.
type RSI struct {
	period  int
	prev    float64
	hasPrev bool
	changes int
	avgGain float64
	avgLoss float64
}

// NewRSI builds a relative strength index. A non-positive period falls back
// to the default of 14 bars.
func NewRSI(period int) *RSI {
	if period <= 0 {
		period = 14
	}
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("rsi(%d)", r.period)
}

func (r *RSI) Update(price float64) {
	if !r.hasPrev {
		r.prev = price
		r.hasPrev = true
		return
	}

	change := price - r.prev
	r.prev = price

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.changes++
	if r.changes <= r.period {
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
		return
	}

	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
}

func (r *RSI) Value() optional.Option[float64] {
	if r.changes < r.period {
		return optional.None[float64]()
	}
	if r.avgLoss == 0 {
		return optional.Some(100.0)
	}
	rs := r.avgGain / r.avgLoss
	return optional.Some(100 - 100/(1+rs))
}
