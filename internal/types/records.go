package types

import (
	"encoding/json"
)

// TradeRecord is one row of trades.csv.
type TradeRecord struct {
	Datetime    string  `csv:"datetime"`
	Code        string  `csv:"code"`
	Action      string  `csv:"action"`
	Price       float64 `csv:"price"`
	Volume      int64   `csv:"volume"`
	Amount      float64 `csv:"amount"`
	Commission  float64 `csv:"commission"`
	StampTax    float64 `csv:"stamp_tax"`
	TransferFee float64 `csv:"transfer_fee"`
	FlowFee     float64 `csv:"flow_fee"`
	TotalAsset  float64 `csv:"total_asset"`
	Cash        float64 `csv:"cash"`
	MarketValue float64 `csv:"market_value"`
}

// TotalCost sums the itemized fee columns.
func (r TradeRecord) TotalCost() float64 {
	return r.Commission + r.StampTax + r.TransferFee + r.FlowFee
}

// PositionSnapshot is a frozen copy of one position inside a daily stat row.
type PositionSnapshot struct {
	Volume       int64   `json:"volume"`
	CanUseVolume int64   `json:"can_use_volume"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	MarketValue  float64 `json:"market_value"`
	Profit       float64 `json:"profit"`
	ProfitRatio  float64 `json:"profit_ratio"`
}

// PositionSnapshotMap serializes the day-end position map as a single JSON
// cell so daily_stats.csv stays one row per day.
type PositionSnapshotMap map[string]PositionSnapshot

func (m PositionSnapshotMap) MarshalCSV() (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *PositionSnapshotMap) UnmarshalCSV(cell string) error {
	if cell == "" {
		*m = PositionSnapshotMap{}
		return nil
	}
	return json.Unmarshal([]byte(cell), m)
}

// DailyStatRecord is one row of daily_stats.csv.
type DailyStatRecord struct {
	Date           string              `csv:"date"`
	TotalAsset     float64             `csv:"total_asset"`
	Cash           float64             `csv:"cash"`
	MarketValue    float64             `csv:"market_value"`
	DailyReturn    float64             `csv:"daily_return"`
	BenchmarkClose *float64            `csv:"benchmark_close"`
	Positions      PositionSnapshotMap `csv:"positions"`
}

// SummaryRecord is the single row of summary.csv.
type SummaryRecord struct {
	InitCapital  float64 `csv:"init_capital"`
	FinalCapital float64 `csv:"final_capital"`
	TotalReturn  float64 `csv:"total_return"`
	AnnualReturn float64 `csv:"annual_return"`
	MaxDrawdown  float64 `csv:"max_drawdown"`
	TradeDays    int     `csv:"trade_days"`
}

// BenchmarkRecord is one row of benchmark.csv.
type BenchmarkRecord struct {
	Date  string  `csv:"date"`
	Close float64 `csv:"close"`
}

// RunConfigRecord is the single row of config.csv, capturing both the run
// configuration and wall-clock bookkeeping.
type RunConfigRecord struct {
	StartTime             string  `csv:"start_time"`
	EndTime               string  `csv:"end_time"`
	InitCapital           float64 `csv:"init_capital"`
	Benchmark             string  `csv:"benchmark"`
	StrategyFile          string  `csv:"strategy_file"`
	ActualStartTime       string  `csv:"actual_start_time"`
	ActualEndTime         string  `csv:"actual_end_time"`
	TotalRuntimeSeconds   float64 `csv:"total_runtime_seconds"`
	TotalRuntimeFormatted string  `csv:"total_runtime_formatted"`
	StockList             string  `csv:"stock_list"`
	MinVolume             int64   `csv:"min_volume"`
	KlinePeriod           string  `csv:"kline_period"`
	DividendType          string  `csv:"dividend_type"`
}

// BacktestRecords accumulates everything a run produces. It is created once
// per run and only appended to until the run finishes.
type BacktestRecords struct {
	Trades      []TradeRecord
	DailyStats  []DailyStatRecord
	Benchmark   []BenchmarkRecord
	Start       string
	End         string
	InitCapital float64
}

// LastTotalAsset returns the most recent day-end total asset, or the initial
// capital when no daily stats exist yet.
func (r *BacktestRecords) LastTotalAsset() float64 {
	if len(r.DailyStats) == 0 {
		return r.InitCapital
	}
	return r.DailyStats[len(r.DailyStats)-1].TotalAsset
}
