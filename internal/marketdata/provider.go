// Package marketdata supplies historical bar and tick series to the engine.
package marketdata

import (
	"github.com/khquant-lab/khquant/internal/types"
)

// HistoryRequest describes one synchronous retrieval of per-instrument
// history tables.
type HistoryRequest struct {
	Codes        []string
	Period       types.Period
	Start        string // YYYYMMDD, inclusive
	End          string // YYYYMMDD, inclusive
	DividendType string
	FillData     bool
}

// ProgressFunc reports download progress as finished count over total.
type ProgressFunc func(finished, total int)

// Provider is the market-data collaborator. GetHistory returns one History
// per requested code; codes without data map to an empty History, never to a
// missing key.
type Provider interface {
	GetHistory(req HistoryRequest) (map[string]types.History, error)
	Download(codes []string, period types.Period, start, end string, incremental bool, progress ProgressFunc) error
	Close() error
}
