package types

// LogLevel classifies messages crossing the interaction boundary.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// EngineHandle is the back-reference a view carries into strategy callbacks.
// It exposes the few engine operations a strategy may legitimately reach
// back for.
type EngineHandle interface {
	RunID() string
	Cancel()
}

// ReplayView is the per-timestamp snapshot handed to strategy callbacks.
// Rows holds exactly one row per instrument, empty rows included. TimeOfDay
// overrides the clock rendering for pre and post market hooks.
type ReplayView struct {
	Time      Timestamp
	TimeOfDay string
	Rows      map[string]SnapshotRow
	Assets    AssetSnapshot
	Positions map[string]Position
	StockList []string
	Engine    EngineHandle
}

// Row returns the instrument's row, or an empty row when the instrument is
// not part of the view.
func (v *ReplayView) Row(code string) SnapshotRow {
	if row, ok := v.Rows[code]; ok {
		return row
	}
	return EmptyRow(code, v.Time)
}

// EmptyCodes returns the instruments whose row carries no data at this
// timestamp.
func (v *ReplayView) EmptyCodes() []string {
	var out []string
	for _, code := range v.StockList {
		if v.Row(code).Empty() {
			out = append(out, code)
		}
	}
	return out
}

// Clock returns the view's clock rendering, honoring the hook override.
func (v *ReplayView) Clock() string {
	if v.TimeOfDay != "" {
		return v.TimeOfDay
	}
	return v.Time.TimeOfDay()
}

// Clone returns a copy with independent row and position maps, for hook
// invocations that must not observe later mutations.
func (v *ReplayView) Clone() *ReplayView {
	rows := make(map[string]SnapshotRow, len(v.Rows))
	for code, row := range v.Rows {
		rows[code] = row
	}
	positions := make(map[string]Position, len(v.Positions))
	for code, pos := range v.Positions {
		positions[code] = pos
	}
	stocks := make([]string, len(v.StockList))
	copy(stocks, v.StockList)
	return &ReplayView{
		Time:      v.Time,
		TimeOfDay: v.TimeOfDay,
		Rows:      rows,
		Assets:    v.Assets,
		Positions: positions,
		StockList: stocks,
		Engine:    v.Engine,
	}
}
