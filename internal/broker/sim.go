package broker

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
)

var _ Ledger = (*SimLedger)(nil)

// SimLedger is the simulated account used during replay. Fills are
// immediate at the signal's resolved price; there is no order book and no
// partial fill. Settlement follows T+1 unless t0 is set.
type SimLedger struct {
	assets    types.AssetSnapshot
	positions map[string]*types.Position
	fees      FeeSchedule
	t0        bool
	minVolume int64
	logger    *logger.Logger
}

func NewSimLedger(initCapital float64, fees FeeSchedule, t0 bool, minVolume int64, log *logger.Logger) *SimLedger {
	if minVolume <= 0 {
		minVolume = 100
	}
	return &SimLedger{
		assets: types.AssetSnapshot{
			Cash:       initCapital,
			TotalAsset: initCapital,
		},
		positions: make(map[string]*types.Position),
		fees:      fees,
		t0:        t0,
		minVolume: minVolume,
		logger:    log,
	}
}

func (l *SimLedger) Assets() *types.AssetSnapshot          { return &l.assets }
func (l *SimLedger) Positions() map[string]*types.Position { return l.positions }
func (l *SimLedger) T0Mode() bool                          { return l.t0 }

func (l *SimLedger) Commission(price float64, volume int64) float64 {
	return l.fees.Commission(price, volume)
}

func (l *SimLedger) StampTax(price float64, volume int64, action types.TradeAction) float64 {
	return l.fees.StampTax(price, volume, action)
}

func (l *SimLedger) TransferFee(code string, price float64, volume int64) float64 {
	return l.fees.TransferFee(code, price, volume)
}

func (l *SimLedger) FlowFee() float64 {
	return l.fees.FlowFee()
}

// ProcessSignals implements Ledger. Rejected signals are logged and dropped;
// executed ones come back with ActualPrice and TradeCost stamped.
func (l *SimLedger) ProcessSignals(signals []*types.Signal) []*types.Signal {
	var executed []*types.Signal
	for _, signal := range signals {
		if signal == nil {
			continue
		}
		if err := signal.Validate(); err != nil {
			l.logger.Warn("Dropping invalid signal", zap.Error(err))
			continue
		}
		if signal.ActualPrice.IsNone() {
			l.logger.Warn("Dropping signal without a resolvable price",
				zap.String("code", signal.Code),
				zap.String("action", string(signal.Action)))
			continue
		}

		var ok bool
		switch signal.Action {
		case types.TradeActionBuy:
			ok = l.applyBuy(signal)
		case types.TradeActionSell:
			ok = l.applySell(signal)
		}
		if ok {
			executed = append(executed, signal)
		}
	}

	l.refreshAssets()

	return executed
}

func (l *SimLedger) applyBuy(signal *types.Signal) bool {
	price := signal.ActualPrice.Unwrap()
	if signal.Volume%l.minVolume != 0 {
		l.logger.Warn("Rejecting buy: volume not a lot multiple",
			zap.String("code", signal.Code),
			zap.Int64("volume", signal.Volume),
			zap.Int64("min_volume", l.minVolume))
		return false
	}

	cost := l.fees.TotalCost(signal.Code, price, signal.Volume, types.TradeActionBuy)
	total := price*float64(signal.Volume) + cost
	if total > l.assets.Cash {
		l.logger.Warn("Rejecting buy: insufficient cash",
			zap.String("code", signal.Code),
			zap.Float64("required", total),
			zap.Float64("cash", l.assets.Cash))
		return false
	}

	l.assets.Cash -= total

	pos, exists := l.positions[signal.Code]
	if !exists {
		pos = &types.Position{Code: signal.Code, AvgPrice: price}
		l.positions[signal.Code] = pos
	} else {
		oldCost := decimal.NewFromFloat(pos.AvgPrice).Mul(decimal.NewFromInt(pos.Volume))
		newCost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(signal.Volume))
		avg := oldCost.Add(newCost).Div(decimal.NewFromInt(pos.Volume + signal.Volume))
		pos.AvgPrice, _ = avg.Float64()
	}

	pos.Volume += signal.Volume
	if l.t0 {
		pos.CanUseVolume += signal.Volume
	}
	pos.Revalue(price)

	if signal.TradeCost.IsNone() {
		signal.TradeCost = optional.Some(cost)
	}

	return true
}

func (l *SimLedger) applySell(signal *types.Signal) bool {
	price := signal.ActualPrice.Unwrap()

	pos, exists := l.positions[signal.Code]
	if !exists {
		l.logger.Warn("Rejecting sell: no position",
			zap.String("code", signal.Code))
		return false
	}
	if pos.CanUseVolume < signal.Volume {
		l.logger.Warn("Rejecting sell: insufficient sellable volume",
			zap.String("code", signal.Code),
			zap.Int64("requested", signal.Volume),
			zap.Int64("can_use", pos.CanUseVolume))
		return false
	}

	cost := l.fees.TotalCost(signal.Code, price, signal.Volume, types.TradeActionSell)
	l.assets.Cash += price*float64(signal.Volume) - cost

	pos.Volume -= signal.Volume
	pos.CanUseVolume -= signal.Volume
	if pos.Volume == 0 {
		delete(l.positions, signal.Code)
	} else {
		pos.Revalue(price)
	}

	if signal.TradeCost.IsNone() {
		signal.TradeCost = optional.Some(cost)
	}

	return true
}

// ReleaseSettlement makes every held share sellable. The engine calls this
// at each trading-day boundary under T+1.
func (l *SimLedger) ReleaseSettlement() {
	for _, pos := range l.positions {
		pos.CanUseVolume = pos.Volume
	}
}

// Revalue marks every position against the given prices and refreshes the
// aggregate asset snapshot. Instruments missing from prices keep their last
// mark.
func (l *SimLedger) Revalue(prices map[string]float64) {
	for code, pos := range l.positions {
		if price, ok := prices[code]; ok {
			pos.Revalue(price)
		}
	}
	l.refreshAssets()
}

func (l *SimLedger) refreshAssets() {
	var mv float64
	for _, pos := range l.positions {
		mv += pos.MarketValue
	}
	l.assets.MarketValue = mv
	l.assets.TotalAsset = l.assets.Cash + l.assets.FrozenCash + mv
}
