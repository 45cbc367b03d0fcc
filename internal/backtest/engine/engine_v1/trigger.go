package engine

import (
	"fmt"

	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// Trigger tolerances. Live firing accepts any timestamp within 5 seconds of
// a configured offset; the timeline pre-filter keeps only rows within 1
// second so neighboring ticks are not pulled into a custom session. The
// asymmetry is intentional: coarse firing, tight filtering.
const (
	fireToleranceSec   = 5
	filterToleranceSec = 1
)

// TriggerPolicy decides, from the timestamp alone, whether a timeline point
// invokes the strategy. Implementations never inspect row payloads.
type TriggerPolicy interface {
	ShouldTrigger(ts types.Timestamp) bool
	DataPeriod() types.Period
}

// NewTriggerPolicy builds the policy for the configured trigger type.
func NewTriggerPolicy(triggerType string, customTimes []string) (TriggerPolicy, error) {
	switch triggerType {
	case "tick":
		return &TickTrigger{}, nil
	case "1m", "5m", "1d":
		return &KlineTrigger{period: types.Period(triggerType)}, nil
	case "custom":
		return NewCustomTimeTrigger(customTimes)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidTrigger, "unknown trigger type %q", triggerType)
	}
}

// TickTrigger fires on every timestamp.
type TickTrigger struct{}

func (t *TickTrigger) ShouldTrigger(types.Timestamp) bool { return true }
func (t *TickTrigger) DataPeriod() types.Period           { return types.PeriodTick }

// KlineTrigger fires on bar boundaries of its period.
type KlineTrigger struct {
	period   types.Period
	lastDate types.Date
	hasFired bool
}

func (t *KlineTrigger) ShouldTrigger(ts types.Timestamp) bool {
	switch t.period {
	case types.Period1m:
		_, _, sec := ts.Clock()
		return sec == 0
	case types.Period5m:
		_, min, sec := ts.Clock()
		return min%5 == 0 && sec == 0
	case types.Period1d:
		date := ts.Date()
		if t.hasFired && date == t.lastDate {
			return false
		}
		t.lastDate = date
		t.hasFired = true
		return true
	default:
		return false
	}
}

func (t *KlineTrigger) DataPeriod() types.Period { return t.period }

// CustomTimeTrigger fires near configured times of day.
type CustomTimeTrigger struct {
	offsets []int // seconds since midnight, as configured
	period  types.Period
}

func NewCustomTimeTrigger(clocks []string) (*CustomTimeTrigger, error) {
	if len(clocks) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidTrigger, "custom trigger requires at least one time of day")
	}

	offsets := make([]int, 0, len(clocks))
	wholeMinutes := true
	for _, clock := range clocks {
		offset, err := parseClock(clock)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, offset)
		if offset%60 != 0 {
			wholeMinutes = false
		}
	}

	// Whole-minute offsets can ride on 1m bars; anything finer needs ticks.
	period := types.PeriodTick
	if wholeMinutes {
		period = types.Period1m
	}

	return &CustomTimeTrigger{offsets: offsets, period: period}, nil
}

func (t *CustomTimeTrigger) ShouldTrigger(ts types.Timestamp) bool {
	return t.withinTolerance(ts, fireToleranceSec, false)
}

// MatchesFilter reports whether ts survives the timeline pre-filter.
func (t *CustomTimeTrigger) MatchesFilter(ts types.Timestamp) bool {
	return t.withinTolerance(ts, filterToleranceSec, true)
}

func (t *CustomTimeTrigger) withinTolerance(ts types.Timestamp, tolerance int, inclusive bool) bool {
	sod := ts.SecondOfDay()
	for _, offset := range t.offsets {
		diff := sod - offset
		if diff < 0 {
			diff = -diff
		}
		if diff < tolerance || (inclusive && diff == tolerance) {
			return true
		}
	}
	return false
}

func (t *CustomTimeTrigger) DataPeriod() types.Period { return t.period }

// Offsets returns the configured seconds-since-midnight values.
func (t *CustomTimeTrigger) Offsets() []int { return t.offsets }

// parseClock converts "HH:MM:SS" to seconds since midnight.
func parseClock(clock string) (int, error) {
	var h, m, s int
	if _, err := fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidTrigger, err, "invalid clock %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, errors.Newf(errors.ErrCodeInvalidTrigger, "clock %q out of range", clock)
	}
	return h*3600 + m*60 + s, nil
}
