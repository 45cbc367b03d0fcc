package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// TimelineIndex holds the global replay axis and per-instrument row lookup.
// The axis is the sorted, deduplicated union of every instrument's
// normalized timestamps, except under a custom trigger where it is
// synthesized from trading days and configured offsets.
type TimelineIndex struct {
	Timestamps []types.Timestamp

	rows map[string]map[int64]types.SnapshotRow
}

// BuildTimelineIndex indexes the given histories against the trigger
// policy. tradeDays is only consulted for custom-trigger synthesis.
func BuildTimelineIndex(histories map[string]types.History, policy TriggerPolicy, tradeDays []types.Date, log *logger.Logger) (*TimelineIndex, error) {
	custom, isCustom := policy.(*CustomTimeTrigger)

	index := &TimelineIndex{
		rows: make(map[string]map[int64]types.SnapshotRow, len(histories)),
	}

	for code, history := range histories {
		rows := history.Rows
		if isCustom {
			rows = filterCustomRows(code, rows, custom, log)
		}
		lookup := make(map[int64]types.SnapshotRow, len(rows))
		for _, row := range rows {
			lookup[row.Timestamp.Unix()] = row
		}
		index.rows[code] = lookup
	}

	if isCustom {
		index.Timestamps = synthesizeTimestamps(tradeDays, custom.Offsets())
	} else {
		index.Timestamps = mergeTimestamps(index.rows)
	}

	if len(index.Timestamps) == 0 {
		return nil, errors.New(errors.ErrCodeNoTimestamps, "no valid timestamps resolved from instrument data")
	}

	return index, nil
}

// Row returns the instrument's row at ts, or the empty sentinel when the
// instrument has no data there.
func (idx *TimelineIndex) Row(code string, ts types.Timestamp) types.SnapshotRow {
	if lookup, ok := idx.rows[code]; ok {
		if row, ok := lookup[ts.Unix()]; ok {
			return row
		}
	}
	return types.EmptyRow(code, ts)
}

// Codes returns the indexed instruments.
func (idx *TimelineIndex) Codes() []string {
	out := make([]string, 0, len(idx.rows))
	for code := range idx.rows {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func mergeTimestamps(rows map[string]map[int64]types.SnapshotRow) []types.Timestamp {
	seen := make(map[int64]struct{})
	var merged []types.Timestamp
	for _, lookup := range rows {
		for sec, row := range lookup {
			if _, dup := seen[sec]; dup {
				continue
			}
			seen[sec] = struct{}{}
			merged = append(merged, row.Timestamp)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Unix() < merged[j].Unix()
	})
	return merged
}

// filterCustomRows keeps rows near a configured offset on the instrument's
// own trading days. An instrument with no matching rows keeps its full
// series rather than vanishing from the replay.
func filterCustomRows(code string, rows []types.SnapshotRow, custom *CustomTimeTrigger, log *logger.Logger) []types.SnapshotRow {
	var filtered []types.SnapshotRow
	for _, row := range rows {
		if custom.MatchesFilter(row.Timestamp) {
			filtered = append(filtered, row)
		}
	}
	if len(filtered) == 0 && len(rows) > 0 {
		log.Warn("No rows match the custom trigger times; keeping the full series",
			zap.String("code", code),
			zap.Int("rows", len(rows)))
		return rows
	}
	return filtered
}

func synthesizeTimestamps(tradeDays []types.Date, offsets []int) []types.Timestamp {
	sortedOffsets := make([]int, len(offsets))
	copy(sortedOffsets, offsets)
	sort.Ints(sortedOffsets)

	days := make([]types.Date, len(tradeDays))
	copy(days, tradeDays)
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	seen := make(map[int64]struct{})
	var out []types.Timestamp
	for _, day := range days {
		midnight := time.Date(day.Year, day.Month, day.Day, 0, 0, 0, 0, time.UTC).Unix()
		for _, offset := range sortedOffsets {
			sec := midnight + int64(offset)
			if _, dup := seen[sec]; dup {
				continue
			}
			seen[sec] = struct{}{}
			out = append(out, types.NewTimestamp(sec))
		}
	}
	return out
}
