package types

import (
	"fmt"
	"time"
)

// Period identifies the bar interval of market data and trigger cadence.
type Period string

const (
	PeriodTick   Period = "tick"
	Period1m     Period = "1m"
	Period5m     Period = "5m"
	Period1d     Period = "1d"
	PeriodCustom Period = "custom"
)

// msThreshold separates second epochs from millisecond epochs. Raw values
// above it are treated as milliseconds.
const msThreshold = 1e10

// Date is a comparable calendar day, usable as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// Dashed renders the date as YYYY-MM-DD.
func (d Date) Dashed() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// Timestamp is a normalized point on the replay timeline. Raw epoch values
// in either seconds or milliseconds are normalized exactly once at
// construction; all calendar derivations afterwards use the second epoch.
type Timestamp struct {
	raw int64
	sec int64
}

// NewTimestamp normalizes a raw epoch. Values above 1e10 are interpreted as
// milliseconds, everything else as seconds.
func NewTimestamp(raw int64) Timestamp {
	sec := raw
	if raw > msThreshold {
		sec = raw / 1000
	}
	return Timestamp{raw: raw, sec: sec}
}

// NewTimestampFromTime builds a second-resolution timestamp from t.
func NewTimestampFromTime(t time.Time) Timestamp {
	return Timestamp{raw: t.Unix(), sec: t.Unix()}
}

// Raw returns the epoch value as originally supplied.
func (ts Timestamp) Raw() int64 { return ts.raw }

// Unix returns the normalized second epoch.
func (ts Timestamp) Unix() int64 { return ts.sec }

// Time returns the instant in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.sec, 0).UTC()
}

// Date returns the UTC calendar day.
func (ts Timestamp) Date() Date {
	y, m, d := ts.Time().Date()
	return Date{Year: y, Month: m, Day: d}
}

// Clock returns hour, minute and second of the UTC day.
func (ts Timestamp) Clock() (hour, minute, second int) {
	return ts.Time().Clock()
}

// SecondOfDay returns seconds elapsed since UTC midnight.
func (ts Timestamp) SecondOfDay() int {
	h, m, s := ts.Clock()
	return h*3600 + m*60 + s
}

// DateTime renders the timestamp as "YYYY-MM-DD HH:MM:SS".
func (ts Timestamp) DateTime() string {
	return ts.Time().Format("2006-01-02 15:04:05")
}

// TimeOfDay renders the clock portion as "HH:MM:SS".
func (ts Timestamp) TimeOfDay() string {
	return ts.Time().Format("15:04:05")
}

// Before reports whether ts precedes other on the normalized axis.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.sec < other.sec
}
