package engine

import (
	"math"

	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
)

// tradingDaysPerYear drives annualization of the total return.
const tradingDaysPerYear = 250

// recorder turns executed signals and day boundaries into run records.
type recorder struct {
	session   *session
	ledger    broker.Ledger
	logger    *logger.Logger
	benchmark string
}

// RecordTrades appends one TradeRecord per executed signal. A signal
// carrying a pre-aggregated trade cost has it split across the fee columns
// proportionally to the ledger's own per-fee formulas, so the columns always
// sum back to the aggregate.
func (r *recorder) RecordTrades(executed []*types.Signal) {
	for _, signal := range executed {
		if signal == nil || signal.Code == "" || signal.Action == "" {
			continue
		}

		price := signal.Price.TakeOr(0)
		if signal.ActualPrice.IsSome() {
			price = signal.ActualPrice.Unwrap()
		}

		commission, stampTax, transferFee, flowFee := r.splitCost(signal, price)

		assets := r.ledger.Assets()
		r.session.Records.Trades = append(r.session.Records.Trades, types.TradeRecord{
			Datetime:    signal.Timestamp.DateTime(),
			Code:        signal.Code,
			Action:      string(signal.Action),
			Price:       price,
			Volume:      signal.Volume,
			Amount:      price * float64(signal.Volume),
			Commission:  commission,
			StampTax:    stampTax,
			TransferFee: transferFee,
			FlowFee:     flowFee,
			TotalAsset:  assets.TotalAsset,
			Cash:        assets.Cash,
			MarketValue: assets.MarketValue,
		})
	}
}

// splitCost produces the four fee columns for one signal. With an aggregate
// trade cost present, each column is cost * (component / sum of components);
// otherwise the ledger's native per-fee values are used directly.
func (r *recorder) splitCost(signal *types.Signal, price float64) (commission, stampTax, transferFee, flowFee float64) {
	commission = r.ledger.Commission(price, signal.Volume)
	stampTax = r.ledger.StampTax(price, signal.Volume, signal.Action)
	transferFee = r.ledger.TransferFee(signal.Code, price, signal.Volume)
	flowFee = r.ledger.FlowFee()

	if signal.TradeCost.IsNone() {
		return commission, stampTax, transferFee, flowFee
	}

	total := commission + stampTax + transferFee + flowFee
	if total == 0 {
		return 0, 0, 0, 0
	}

	cost := signal.TradeCost.Unwrap()

	return cost * (commission / total),
		cost * (stampTax / total),
		cost * (transferFee / total),
		cost * (flowFee / total)
}

// RecordDailyStats closes out one trading day: resolve an end-of-day price
// per position, revalue the ledger, and append the day's stat row with a
// frozen position snapshot.
func (r *recorder) RecordDailyStats(view *types.ReplayView) {
	date := view.Time.Date()

	prices := make(map[string]float64)
	for code, pos := range r.ledger.Positions() {
		prices[code] = r.resolveDailyPrice(code, pos, view, date)
	}
	r.ledger.Revalue(prices)

	assets := r.ledger.Assets()

	prevTotal := r.session.Records.LastTotalAsset()
	dailyReturn := 0.0
	if prevTotal != 0 {
		dailyReturn = (assets.TotalAsset - prevTotal) / prevTotal
	}

	var benchmarkClose *float64
	if close, ok := r.session.BenchmarkClose[date]; ok {
		benchmarkClose = &close
	} else if r.benchmark != "" {
		r.logger.Warn("No benchmark close for date",
			zap.String("benchmark", r.benchmark),
			zap.String("date", date.String()))
	}

	snapshot := make(types.PositionSnapshotMap, len(r.ledger.Positions()))
	for code, pos := range r.ledger.Positions() {
		snapshot[code] = types.PositionSnapshot{
			Volume:       pos.Volume,
			CanUseVolume: pos.CanUseVolume,
			AvgPrice:     pos.AvgPrice,
			CurrentPrice: pos.CurrentPrice,
			MarketValue:  pos.MarketValue,
			Profit:       pos.Profit,
			ProfitRatio:  pos.ProfitRatio,
		}
	}

	r.session.Records.DailyStats = append(r.session.Records.DailyStats, types.DailyStatRecord{
		Date:           date.Dashed(),
		TotalAsset:     assets.TotalAsset,
		Cash:           assets.Cash,
		MarketValue:    assets.MarketValue,
		DailyReturn:    dailyReturn,
		BenchmarkClose: benchmarkClose,
		Positions:      snapshot,
	})
}

// resolveDailyPrice picks the end-of-day mark for one position, in fallback
// order: batched daily close, the day's last view row, the position's last
// mark, average cost.
func (r *recorder) resolveDailyPrice(code string, pos *types.Position, view *types.ReplayView, date types.Date) float64 {
	if closes, ok := r.session.DailyPrices[date]; ok {
		if close, ok := closes[code]; ok && close > 0 {
			return close
		}
	}
	if price := view.Row(code).Price(); price.IsSome() && price.Unwrap() > 0 {
		return price.Unwrap()
	}
	if pos.CurrentPrice > 0 {
		return pos.CurrentPrice
	}
	return pos.AvgPrice
}

// Summarize computes the post-run metrics. Fewer than two daily rows yields
// all-zero metrics with a stable schema instead of an error.
func (r *recorder) Summarize() types.SummaryRecord {
	stats := r.session.Records.DailyStats
	initCapital := r.session.Records.InitCapital

	summary := types.SummaryRecord{
		InitCapital:  initCapital,
		FinalCapital: initCapital,
		TradeDays:    len(stats),
	}

	if len(stats) < 2 {
		r.logger.Warn("Not enough daily stats for summary metrics; reporting zeros",
			zap.Int("rows", len(stats)))
		if len(stats) == 1 {
			summary.FinalCapital = stats[0].TotalAsset
		}
		return summary
	}

	final := stats[len(stats)-1].TotalAsset
	summary.FinalCapital = final
	summary.TotalReturn = (final - initCapital) / initCapital * 100
	summary.AnnualReturn = (math.Pow(final/initCapital, tradingDaysPerYear/float64(len(stats))) - 1) * 100

	runningMax := stats[0].TotalAsset
	maxDrawdown := 0.0
	for _, row := range stats {
		if row.TotalAsset > runningMax {
			runningMax = row.TotalAsset
		}
		if runningMax > 0 {
			drawdown := (runningMax - row.TotalAsset) / runningMax * 100
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	summary.MaxDrawdown = maxDrawdown

	return summary
}
