package engine

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/khquant-lab/khquant/internal/types"
)

// session is the run-scoped state container. Every cache lives here as a
// named field initialized up front, so there is no first-call branching
// hidden in the replay path. A session is built once per Run and discarded
// afterwards.
type session struct {
	RunID   string
	Records *types.BacktestRecords

	// Caches, all pure memoization keyed by immutable inputs.
	DailyPrices    map[types.Date]map[string]float64
	BenchmarkClose map[types.Date]float64
	TradeDays      map[types.Date]bool
	DayTimePoints  map[types.Date][]int64

	PrevDate    types.Date
	HasPrevDate bool
	LastView    *types.ReplayView

	WallStart time.Time
	WallEnd   time.Time

	cancelled atomic.Bool
}

func newSession(config *EngineV1Config) *session {
	return &session{
		RunID: uuid.New().String(),
		Records: &types.BacktestRecords{
			Start:       config.StartTime,
			End:         config.EndTime,
			InitCapital: config.InitCapital,
		},
		DailyPrices:    make(map[types.Date]map[string]float64),
		BenchmarkClose: make(map[types.Date]float64),
		TradeDays:      make(map[types.Date]bool),
		DayTimePoints:  make(map[types.Date][]int64),
		WallStart:      time.Now(),
	}
}

// indexDayTimePoints groups the timeline by date. The per-day sets drive
// end-of-day detection.
func (s *session) indexDayTimePoints(timeline []types.Timestamp) {
	for _, ts := range timeline {
		date := ts.Date()
		s.DayTimePoints[date] = append(s.DayTimePoints[date], ts.Unix())
	}
}

// eodTolerance absorbs unit and rounding noise when comparing against the
// day's last time point, in seconds.
const eodTolerance = 0.1

// IsEndOfDay reports whether ts is the day's final time point.
func (s *session) IsEndOfDay(ts types.Timestamp) bool {
	points := s.DayTimePoints[ts.Date()]
	if len(points) == 0 {
		return false
	}
	max := points[0]
	for _, p := range points[1:] {
		if p > max {
			max = p
		}
	}
	diff := float64(ts.Unix() - max)
	if diff < 0 {
		diff = -diff
	}
	return diff < eodTolerance
}

// Cancel requests a cooperative stop at the next timestamp boundary.
func (s *session) Cancel() {
	s.cancelled.Store(true)
}

func (s *session) Cancelled() bool {
	return s.cancelled.Load()
}

// sessionHandle is the engine back-reference exposed to strategy callbacks.
type sessionHandle struct {
	session *session
}

func (h sessionHandle) RunID() string { return h.session.RunID }
func (h sessionHandle) Cancel()       { h.session.Cancel() }
