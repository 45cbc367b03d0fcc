package runtime

import (
	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/indicator"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/internal/utils"
)

func init() {
	Register("ma_cross", func() Strategy { return NewMACross(5, 20, 100) })
}

// MACross trades moving-average crossovers per instrument: buy when the fast
// average crosses above the slow one, flatten when it crosses back below.
type MACross struct {
	fastPeriod int
	slowPeriod int
	lotSize    int64
	fees       broker.FeeSchedule

	fast     map[string]*indicator.MA
	slow     map[string]*indicator.MA
	wasAbove map[string]bool
	stocks   []string
}

func NewMACross(fastPeriod, slowPeriod int, lotSize int64) *MACross {
	return &MACross{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		lotSize:    lotSize,
		fees:       broker.DefaultFeeSchedule(),
	}
}

func (s *MACross) Name() string { return "ma_cross" }

func (s *MACross) Init(stocks []string, ctx *InitContext) error {
	s.stocks = stocks
	s.fast = make(map[string]*indicator.MA, len(stocks))
	s.slow = make(map[string]*indicator.MA, len(stocks))
	s.wasAbove = make(map[string]bool, len(stocks))
	for _, code := range stocks {
		s.fast[code] = indicator.NewMA(s.fastPeriod)
		s.slow[code] = indicator.NewMA(s.slowPeriod)
	}
	return nil
}

func (s *MACross) OnBar(view *types.ReplayView) ([]*types.Signal, error) {
	var signals []*types.Signal

	for _, code := range s.stocks {
		price := view.Row(code).Price()
		if price.IsNone() || price.Unwrap() <= 0 {
			continue
		}

		s.fast[code].Update(price.Unwrap())
		s.slow[code].Update(price.Unwrap())

		fast, slow := s.fast[code].Value(), s.slow[code].Value()
		if fast.IsNone() || slow.IsNone() {
			continue
		}

		above := fast.Unwrap() > slow.Unwrap()
		crossedUp := above && !s.wasAbove[code]
		crossedDown := !above && s.wasAbove[code]
		s.wasAbove[code] = above

		switch {
		case crossedUp:
			if signal := s.buySignal(code, price.Unwrap(), view); signal != nil {
				signals = append(signals, signal)
			}
		case crossedDown:
			if signal := s.sellSignal(code, view); signal != nil {
				signals = append(signals, signal)
			}
		}
	}

	return signals, nil
}

// buySignal sizes a buy from the cash slice available for instruments not yet
// held.
func (s *MACross) buySignal(code string, price float64, view *types.ReplayView) *types.Signal {
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
		Reason:   "fast average crossed above slow",
		Strategy: s.Name(),
	}
}

// sellSignal flattens the sellable part of an existing position.
func (s *MACross) sellSignal(code string, view *types.ReplayView) *types.Signal {
	position, held := view.Positions[code]
	if !held || position.CanUseVolume <= 0 {
		return nil
	}

	return &types.Signal{
		Code:     code,
		Action:   types.TradeActionSell,
		Volume:   position.CanUseVolume,
		Reason:   "fast average crossed below slow",
		Strategy: s.Name(),
	}
}
