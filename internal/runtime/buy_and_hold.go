package runtime

import (
	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/internal/utils"
)

func init() {
	Register("buy_and_hold", func() Strategy {
		return &BuyAndHold{LotSize: 100, Fees: broker.DefaultFeeSchedule()}
	})
	Register("noop", func() Strategy { return &Noop{} })
}

// BuyAndHold buys an equal cash slice of every instrument on the first bar
// and then holds. It doubles as the reference strategy for exercising the
// full replay path.
type BuyAndHold struct {
	LotSize int64
	Fees    broker.FeeSchedule
	stocks  []string
	bought  bool
	capital float64
}

func (s *BuyAndHold) Name() string { return "buy_and_hold" }

func (s *BuyAndHold) Init(stocks []string, ctx *InitContext) error {
	s.stocks = stocks
	s.bought = false
	s.capital = ctx.InitCapital
	return nil
}

func (s *BuyAndHold) OnBar(view *types.ReplayView) ([]*types.Signal, error) {
	if s.bought || len(s.stocks) == 0 {
		return nil, nil
	}

	slice := s.capital / float64(len(s.stocks))

	var signals []*types.Signal
	for _, code := range s.stocks {
		price := view.Row(code).Price()
		if price.IsNone() || price.Unwrap() <= 0 {
			continue
		}
		cost := func(price float64, volume int64) float64 {
			return s.Fees.TotalCost(code, price, volume, types.TradeActionBuy)
		}
		volume := utils.MaxAffordableVolume(slice, price.Unwrap(), s.LotSize, cost)
		if volume == 0 {
			continue
		}
		signals = append(signals, &types.Signal{
			Code:     code,
			Action:   types.TradeActionBuy,
			Volume:   volume,
			Reason:   "initial allocation",
			Strategy: s.Name(),
		})
	}

	if len(signals) > 0 {
		s.bought = true
	}

	return signals, nil
}

// Noop never trades. It exists for dry runs and engine tests.
type Noop struct{}

func (Noop) Name() string                                     { return "noop" }
func (Noop) Init([]string, *InitContext) error                { return nil }
func (Noop) OnBar(*types.ReplayView) ([]*types.Signal, error) { return nil, nil }
