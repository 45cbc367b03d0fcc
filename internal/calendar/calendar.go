// Package calendar decides trading-day membership for the replay loop.
package calendar

import (
	"time"

	"github.com/khquant-lab/khquant/internal/types"
)

// Calendar answers whether the market is open on a given date.
type Calendar interface {
	IsTradeDay(date types.Date) bool
}

// WeekdayCalendar treats Monday through Friday as trading days, minus an
// explicit holiday set.
type WeekdayCalendar struct {
	holidays map[types.Date]struct{}
}

// NewWeekdayCalendar builds a calendar with the given holidays closed.
func NewWeekdayCalendar(holidays ...types.Date) *WeekdayCalendar {
	set := make(map[types.Date]struct{}, len(holidays))
	for _, d := range holidays {
		set[d] = struct{}{}
	}
	return &WeekdayCalendar{holidays: set}
}

func (c *WeekdayCalendar) IsTradeDay(date types.Date) bool {
	if _, closed := c.holidays[date]; closed {
		return false
	}
	wd := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// FixedCalendar is open exactly on an enumerated set of dates. Useful when
// the trading calendar comes from an external source.
type FixedCalendar struct {
	open map[types.Date]struct{}
}

func NewFixedCalendar(days ...types.Date) *FixedCalendar {
	set := make(map[types.Date]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return &FixedCalendar{open: set}
}

func (c *FixedCalendar) IsTradeDay(date types.Date) bool {
	_, ok := c.open[date]
	return ok
}
