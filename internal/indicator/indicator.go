// Package indicator provides streaming technical indicators. Each indicator
// consumes one price per bar and exposes its current value once enough bars
// have been seen to make it meaningful.
//
// The package is a palette for strategies: built-ins pick the indicators they
// trade on, and the rest stay available for user strategies built on the same
// interface.
package indicator

import (
	"github.com/moznion/go-optional"
)

// Indicator is a rolling computation over a price series.
type Indicator interface {
	// Name identifies the indicator, including its configuration.
	Name() string
	// Update feeds the next bar's price.
	Update(price float64)
	// Value returns the current indicator value, or None while warming up.
	Value() optional.Option[float64]
}
