package types

import (
	"github.com/moznion/go-optional"
)

// SnapshotRow is one instrument's data at one timeline point. Instruments
// without a bar at a given timestamp carry an empty row.
type SnapshotRow struct {
	Code      string
	Timestamp Timestamp
	LastPrice optional.Option[float64]
	Open      optional.Option[float64]
	High      optional.Option[float64]
	Low       optional.Option[float64]
	Close     optional.Option[float64]
	Volume    optional.Option[float64]
	Amount    optional.Option[float64]
}

// EmptyRow returns the placeholder row for an instrument with no data at ts.
func EmptyRow(code string, ts Timestamp) SnapshotRow {
	return SnapshotRow{Code: code, Timestamp: ts}
}

// Empty reports whether the row carries no price fields at all.
func (r SnapshotRow) Empty() bool {
	return r.LastPrice.IsNone() && r.Open.IsNone() && r.High.IsNone() &&
		r.Low.IsNone() && r.Close.IsNone() && r.Volume.IsNone() && r.Amount.IsNone()
}

// Price resolves the tradable price for the row. Last price wins when
// present, close is the fallback.
func (r SnapshotRow) Price() optional.Option[float64] {
	if r.LastPrice.IsSome() {
		return r.LastPrice
	}
	return r.Close
}

// History is one instrument's bar series in ascending timestamp order.
type History struct {
	Code string
	Rows []SnapshotRow
}

// Timestamps returns the raw epoch of every row.
func (h History) Timestamps() []int64 {
	out := make([]int64, len(h.Rows))
	for i, row := range h.Rows {
		out[i] = row.Timestamp.Raw()
	}
	return out
}
