package runtime

import (
	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/indicator"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/internal/utils"
)

func init() {
	Register("rsi_reversion", func() Strategy { return NewRSIReversion(14, 30, 70, 100) })
}

// RSIReversion trades oversold and overbought extremes per instrument: buy
// when RSI drops below the lower band, flatten when it rises above the upper
// band.
type RSIReversion struct {
	period  int
	lower   float64
	upper   float64
	lotSize int64
	fees    broker.FeeSchedule

	rsi    map[string]*indicator.RSI
	stocks []string
}

func NewRSIReversion(period int, lower, upper float64, lotSize int64) *RSIReversion {
	return &RSIReversion{
		period:  period,
		lower:   lower,
		upper:   upper,
		lotSize: lotSize,
		fees:    broker.DefaultFeeSchedule(),
	}
}

func (s *RSIReversion) Name() string { return "rsi_reversion" }

func (s *RSIReversion) Init(stocks []string, ctx *InitContext) error {
	s.stocks = stocks
	s.rsi = make(map[string]*indicator.RSI, len(stocks))
	for _, code := range stocks {
		s.rsi[code] = indicator.NewRSI(s.period)
	}
	return nil
}

func (s *RSIReversion) OnBar(view *types.ReplayView) ([]*types.Signal, error) {
	var signals []*types.Signal

	for _, code := range s.stocks {
		price := view.Row(code).Price()
		if price.IsNone() || price.Unwrap() <= 0 {
			continue
		}

		s.rsi[code].Update(price.Unwrap())

		value := s.rsi[code].Value()
		if value.IsNone() {
			continue
		}

		switch {
		case value.Unwrap() < s.lower:
			if signal := s.buySignal(code, price.Unwrap(), view); signal != nil {
				signals = append(signals, signal)
			}
		case value.Unwrap() > s.upper:
			if signal := s.sellSignal(code, view); signal != nil {
				signals = append(signals, signal)
			}
		}
	}

	return signals, nil
}

func (s *RSIReversion) buySignal(code string, price float64, view *types.ReplayView) *types.Signal {
	if _, held := view.Positions[code]; held {
		return nil
	}

	unheld := 0
	for _, candidate := range s.stocks {
		if _, held := view.Positions[candidate]; !held {
			unheld++
		}
	}
	if unheld == 0 {
		return nil
	}

	slice := view.Assets.Cash / float64(unheld)
	cost := func(price float64, volume int64) float64 {
		return s.fees.TotalCost(code, price, volume, types.TradeActionBuy)
	}
	volume := utils.MaxAffordableVolume(slice, price, s.lotSize, cost)
	if volume == 0 {
		return nil
	}

	return &types.Signal{
		Code:     code,
		Action:   types.TradeActionBuy,
		Volume:   volume,
		Reason:   "oversold",
		Strategy: s.Name(),
	}
}

func (s *RSIReversion) sellSignal(code string, view *types.ReplayView) *types.Signal {
	position, held := view.Positions[code]
	if !held || position.CanUseVolume <= 0 {
		return nil
	}

	return &types.Signal{
		Code:     code,
		Action:   types.TradeActionSell,
		Volume:   position.CanUseVolume,
		Reason:   "overbought",
		Strategy: s.Name(),
	}
}
