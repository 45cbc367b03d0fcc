package marketdata

import (
	"sort"

	"github.com/khquant-lab/khquant/internal/types"
)

// MemoryProvider serves pre-loaded histories keyed by instrument and
// period. It backs tests and any caller that already holds its data in
// memory.
type MemoryProvider struct {
	histories map[periodKey]types.History
}

type periodKey struct {
	code   string
	period types.Period
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{histories: make(map[periodKey]types.History)}
}

// SetHistory installs rows for code at the given period, sorted by
// normalized timestamp.
func (p *MemoryProvider) SetHistory(code string, period types.Period, rows []types.SnapshotRow) {
	sorted := make([]types.SnapshotRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Unix() < sorted[j].Timestamp.Unix()
	})
	p.histories[periodKey{code, period}] = types.History{Code: code, Rows: sorted}
}

// GetHistory implements Provider. Codes without installed data map to an
// empty History.
func (p *MemoryProvider) GetHistory(req HistoryRequest) (map[string]types.History, error) {
	out := make(map[string]types.History, len(req.Codes))
	for _, code := range req.Codes {
		h, ok := p.histories[periodKey{code, req.Period}]
		if !ok {
			out[code] = types.History{Code: code}
			continue
		}
		out[code] = types.History{Code: code, Rows: filterByDate(h.Rows, req.Start, req.End)}
	}
	return out, nil
}

// Download implements Provider. Data is already resident, so the progress
// callback jumps straight to completion.
func (p *MemoryProvider) Download(codes []string, period types.Period, start, end string, incremental bool, progress ProgressFunc) error {
	if progress != nil {
		progress(len(codes), len(codes))
	}
	return nil
}

func (p *MemoryProvider) Close() error { return nil }

func filterByDate(rows []types.SnapshotRow, start, end string) []types.SnapshotRow {
	if start == "" && end == "" {
		return rows
	}
	var out []types.SnapshotRow
	for _, row := range rows {
		day := row.Timestamp.Date().String()
		if start != "" && day < start {
			continue
		}
		if end != "" && day > end {
			continue
		}
		out = append(out, row)
	}
	return out
}
