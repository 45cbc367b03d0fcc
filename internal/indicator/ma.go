package indicator

import (
	"fmt"

	"github.com/moznion/go-optional"
)

// MA is a simple moving average over the last period bars.
type MA struct {
	period int
	window []float64
	sum    float64
	next   int
	filled bool
}

// NewMA builds a simple moving average. A non-positive period falls back to
// the default of 20 bars.
func NewMA(period int) *MA {
	if period <= 0 {
		period = 20
	}
	return &MA{
		period: period,
		window: make([]float64, period),
	}
}

func (m *MA) Name() string {
	return fmt.Sprintf("ma(%d)", m.period)
}

func (m *MA) Update(price float64) {
	if m.filled {
		m.sum -= m.window[m.next]
	}
	m.window[m.next] = price
	m.sum += price

	m.next++
	if m.next == m.period {
		m.next = 0
		m.filled = true
	}
}

func (m *MA) Value() optional.Option[float64] {
	if !m.filled {
		return optional.None[float64]()
	}
	return optional.Some(m.sum / float64(m.period))
}
