package engine

import (
	"context"
	"math"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/runtime"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// progressHeadIterations is how many leading iterations always report
// progress before the reporting thins out to percent steps.
const progressHeadIterations = 5

// replay drives the timeline from start to finish, one timestamp at a
// time, strictly ascending, each visited exactly once.
func (b *BacktestEngineV1) replay(ctx context.Context) error {
	total := len(b.timeline.Timestamps)
	progressStep := total / 100
	if progressStep < 1 {
		progressStep = 1
	}

	for i, ts := range b.timeline.Timestamps {
		if b.session.Cancelled() || ctx.Err() != nil {
			b.log.Info("Replay cancelled",
				zap.Int("iteration", i),
				zap.Int("total", total))
			break
		}

		if i < progressHeadIterations || i%progressStep == 0 || i == total-1 {
			b.boundary.Progress((i + 1) * 100 / total)
		}

		view := b.buildView(ts)

		b.handleDayBoundary(view)

		// The day marker advances on every visited timestamp, not just the
		// triggered ones, so a day boundary is crossed exactly once and the
		// post-market hook sees the day's true last view.
		b.session.PrevDate = ts.Date()
		b.session.HasPrevDate = true
		b.session.LastView = view

		if !b.policy.ShouldTrigger(ts) {
			continue
		}

		if !b.riskGate.CheckRisk(view) {
			b.log.Debug("Risk gate closed", zap.String("time", ts.DateTime()))
			continue
		}

		// Trading-day membership is authoritative over trigger timing.
		if !b.isTradeDay(ts.Date()) {
			b.log.Debug("Skipping non-trading day", zap.String("date", ts.Date().String()))
			continue
		}

		var signals []*types.Signal
		emptyCodes := view.EmptyCodes()
		switch {
		case len(emptyCodes) == len(b.config.StockList):
			b.log.Info("All instruments empty at timestamp; skipping strategy",
				zap.String("time", ts.DateTime()))
		default:
			if len(emptyCodes) > 0 {
				b.log.Warn("Some instruments have no data at timestamp",
					zap.String("time", ts.DateTime()),
					zap.Strings("codes", emptyCodes))
			}

			var err error
			signals, err = b.strategy.OnBar(view)
			if err != nil {
				// Per-bar failures are fatal, unlike the contained hooks.
				return errors.Wrap(errors.ErrCodeStrategyCallback, "strategy OnBar failed", err)
			}
		}

		executed := b.processSignalBatch(signals, view)
		b.recorder.RecordTrades(executed)

		if b.session.IsEndOfDay(ts) {
			b.recorder.RecordDailyStats(b.buildView(ts))
		}
	}

	b.finalPostMarket()

	return nil
}

// buildView assembles the per-timestamp snapshot: one row per instrument
// with the ledger marked to the freshest prices.
func (b *BacktestEngineV1) buildView(ts types.Timestamp) *types.ReplayView {
	rows := make(map[string]types.SnapshotRow, len(b.config.StockList))
	prices := make(map[string]float64)
	for _, code := range b.config.StockList {
		row := b.timeline.Row(code, ts)
		rows[code] = row
		if price := row.Price(); price.IsSome() && price.Unwrap() > 0 {
			prices[code] = price.Unwrap()
		}
	}
	b.ledger.Revalue(prices)

	return &types.ReplayView{
		Time:      ts,
		Rows:      rows,
		Assets:    *b.ledger.Assets(),
		Positions: clonePositions(b.ledger.Positions()),
		StockList: b.config.StockList,
		Engine:    sessionHandle{session: b.session},
	}
}

// handleDayBoundary fires the market hooks and releases T+1 settlement when
// the calendar date advances. Hooks run only on trading days; release
// happens on every boundary.
func (b *BacktestEngineV1) handleDayBoundary(view *types.ReplayView) {
	date := view.Time.Date()
	if b.session.HasPrevDate && date == b.session.PrevDate {
		return
	}

	if b.session.HasPrevDate {
		b.firePostMarket(b.session.LastView, b.session.PrevDate)
	}

	if !b.ledger.T0Mode() {
		b.ledger.ReleaseSettlement()
	}

	if b.config.MarketCallback.PreMarketEnabled && b.isTradeDay(date) {
		handler, ok := b.strategy.(runtime.PreMarketHandler)
		if !ok {
			return
		}

		hookView := view.Clone()
		hookView.TimeOfDay = b.config.MarketCallback.PreMarketTime

		signals, err := handler.OnPreMarket(hookView)
		if err != nil {
			// Hook failures are contained: logged, never fatal.
			b.log.Error("Pre-market hook failed", zap.Error(err))
			return
		}

		executed := b.processSignalBatch(signals, hookView)
		b.recorder.RecordTrades(executed)
	}
}

// firePostMarket runs the post-market hook against a day's last view.
func (b *BacktestEngineV1) firePostMarket(lastView *types.ReplayView, date types.Date) {
	if !b.config.MarketCallback.PostMarketEnabled || lastView == nil || !b.isTradeDay(date) {
		return
	}

	handler, ok := b.strategy.(runtime.PostMarketHandler)
	if !ok {
		return
	}

	hookView := lastView.Clone()
	hookView.TimeOfDay = b.config.MarketCallback.PostMarketTime

	signals, err := handler.OnPostMarket(hookView)
	if err != nil {
		b.log.Error("Post-market hook failed", zap.Error(err))
		return
	}

	executed := b.processSignalBatch(signals, hookView)
	b.recorder.RecordTrades(executed)
}

// finalPostMarket closes out the last replayed day after the loop ends.
func (b *BacktestEngineV1) finalPostMarket() {
	if b.session.HasPrevDate {
		b.firePostMarket(b.session.LastView, b.session.PrevDate)
	}
}

// processSignalBatch rounds and stamps each signal, resolves its execution
// price from the view, and hands the batch to the ledger.
func (b *BacktestEngineV1) processSignalBatch(signals []*types.Signal, view *types.ReplayView) []*types.Signal {
	if len(signals) == 0 {
		return nil
	}

	for _, signal := range signals {
		if signal == nil {
			continue
		}
		signal.Timestamp = view.Time

		fill := signal.FillPrice(view.Row(signal.Code).Price())
		if fill.IsSome() {
			signal.ActualPrice = optional.Some(b.roundPrice(fill.Unwrap()))
		}
		if signal.Price.IsSome() {
			signal.Price = optional.Some(b.roundPrice(signal.Price.Unwrap()))
		}
	}

	return b.ledger.ProcessSignals(signals)
}

func (b *BacktestEngineV1) roundPrice(price float64) float64 {
	factor := math.Pow10(b.config.DecimalPrecision)
	return math.Round(price*factor) / factor
}
