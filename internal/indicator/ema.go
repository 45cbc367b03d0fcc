package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
)

// EMA is an exponential moving average seeded with the simple average of the
// first period bars.
type EMA struct {
	period int
	alpha  float64
	seed   float64
	seen   int
	value  float64
}

// NewEMA builds an exponential moving average. A non-positive period falls
// back to the default of 20 bars.
func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 20
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("ema(%d)", e.period)
}

func (e *EMA) Update(price float64) {
	if e.seen < e.period {
		e.seed += price
		e.seen++
		if e.seen == e.period {
			e.value = e.seed / float64(e.period)
		}
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
}

func (e *EMA) Value() optional.Option[float64] {
	if e.seen < e.period {
		return optional.None[float64]()
	}
	return optional.Some(e.value)
}
