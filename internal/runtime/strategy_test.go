package runtime

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

type RuntimeTestSuite struct {
	suite.Suite
}

func TestRuntimeSuite(t *testing.T) {
	suite.Run(t, new(RuntimeTestSuite))
}

func (suite *RuntimeTestSuite) TestResolveBuiltins() {
	for _, name := range []string{"buy_and_hold", "noop"} {
		strategy, err := Resolve(name)
		suite.NoError(err)
		suite.Equal(name, strategy.Name())
	}
}

func (suite *RuntimeTestSuite) TestResolveUnknown() {
	_, err := Resolve("does_not_exist")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))
}

func (suite *RuntimeTestSuite) TestNamesSorted() {
	names := Names()
	suite.Contains(names, "buy_and_hold")
	suite.Contains(names, "noop")
	suite.IsIncreasing(names)
}

func (suite *RuntimeTestSuite) newView(price float64) *types.ReplayView {
	return &types.ReplayView{
		Time: types.NewTimestamp(1700000000),
		Rows: map[string]types.SnapshotRow{
			"600000.SH": {Code: "600000.SH", LastPrice: optional.Some(price)},
		},
		StockList: []string{"600000.SH"},
	}
}

func (suite *RuntimeTestSuite) TestBuyAndHoldBuysOnce() {
	s := &BuyAndHold{LotSize: 100}
	suite.NoError(s.Init([]string{"600000.SH"}, &InitContext{InitCapital: 100000}))

	signals, err := s.OnBar(suite.newView(10.0))
	suite.NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.TradeActionBuy, signals[0].Action)
	// 100000 / 10.0 = 10000 shares, already a lot multiple
	suite.Equal(int64(10000), signals[0].Volume)

	again, err := s.OnBar(suite.newView(10.0))
	suite.NoError(err)
	suite.Empty(again)
}

func (suite *RuntimeTestSuite) TestBuyAndHoldLeavesRoomForFees() {
	s := &BuyAndHold{LotSize: 100, Fees: broker.DefaultFeeSchedule()}
	suite.NoError(s.Init([]string{"600000.SH"}, &InitContext{InitCapital: 100000}))

	signals, err := s.OnBar(suite.newView(10.0))
	suite.NoError(err)
	suite.Require().Len(signals, 1)
	// the full 10000 shares would leave nothing for commission
	suite.Equal(int64(9900), signals[0].Volume)
}

func (suite *RuntimeTestSuite) TestBuyAndHoldSkipsEmptyRows() {
	s := &BuyAndHold{LotSize: 100}
	suite.NoError(s.Init([]string{"600000.SH"}, &InitContext{InitCapital: 100000}))

	view := &types.ReplayView{
		Time:      types.NewTimestamp(1700000000),
		Rows:      map[string]types.SnapshotRow{"600000.SH": types.EmptyRow("600000.SH", types.NewTimestamp(1700000000))},
		StockList: []string{"600000.SH"},
	}
	signals, err := s.OnBar(view)
	suite.NoError(err)
	suite.Empty(signals)

	// Still unbought, so a later bar with data produces signals
	signals, err = s.OnBar(suite.newView(10.0))
	suite.NoError(err)
	suite.Len(signals, 1)
}

func (suite *RuntimeTestSuite) TestNoopNeverTrades() {
	s := &Noop{}
	suite.NoError(s.Init(nil, &InitContext{}))
	signals, err := s.OnBar(suite.newView(10.0))
	suite.NoError(err)
	suite.Empty(signals)
}
