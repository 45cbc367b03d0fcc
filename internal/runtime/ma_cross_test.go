package runtime

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/khquant-lab/khquant/internal/types"
)

type MACrossTestSuite struct {
	suite.Suite
	strategy *MACross
}

func TestMACrossSuite(t *testing.T) {
	suite.Run(t, new(MACrossTestSuite))
}

func (suite *MACrossTestSuite) SetupTest() {
	suite.strategy = NewMACross(2, 3, 100)
	suite.Require().NoError(suite.strategy.Init([]string{"600000.SH"}, &InitContext{InitCapital: 100000}))
}

func (suite *MACrossTestSuite) view(price float64, cash float64, positions map[string]types.Position) *types.ReplayView {
	if positions == nil {
		positions = map[string]types.Position{}
	}
	return &types.ReplayView{
		Time: types.NewTimestampFromTime(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)),
		Rows: map[string]types.SnapshotRow{
			"600000.SH": {Code: "600000.SH", LastPrice: optional.Some(price)},
		},
		Assets:    types.AssetSnapshot{Cash: cash, TotalAsset: cash},
		Positions: positions,
		StockList: []string{"600000.SH"},
	}
}

func (suite *MACrossTestSuite) TestWarmupProducesNoSignals() {
	for _, price := range []float64{10, 10.1} {
		signals, err := suite.strategy.OnBar(suite.view(price, 100000, nil))
		suite.NoError(err)
		suite.Empty(signals)
	}
}

func (suite *MACrossTestSuite) TestGoldenCrossBuys() {
	// a falling then rising series pushes the fast average above the slow one
	for _, price := range []float64{12, 11, 10} {
		_, err := suite.strategy.OnBar(suite.view(price, 100000, nil))
		suite.Require().NoError(err)
	}

	signals, err := suite.strategy.OnBar(suite.view(13, 100000, nil))
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.TradeActionBuy, signals[0].Action)
	suite.Equal(int64(0), signals[0].Volume%100)
	suite.Positive(signals[0].Volume)
}

func (suite *MACrossTestSuite) TestDeathCrossSellsPosition() {
	for _, price := range []float64{10, 11, 12, 13} {
		_, err := suite.strategy.OnBar(suite.view(price, 100000, nil))
		suite.Require().NoError(err)
	}

	positions := map[string]types.Position{
		"600000.SH": {Code: "600000.SH", Volume: 1000, CanUseVolume: 1000},
	}
	signals, err := suite.strategy.OnBar(suite.view(7, 50000, positions))
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.TradeActionSell, signals[0].Action)
	suite.Equal(int64(1000), signals[0].Volume)
}

func (suite *MACrossTestSuite) TestDeathCrossWithFrozenPositionStaysQuiet() {
	for _, price := range []float64{10, 11, 12, 13} {
		_, err := suite.strategy.OnBar(suite.view(price, 100000, nil))
		suite.Require().NoError(err)
	}

	positions := map[string]types.Position{
		"600000.SH": {Code: "600000.SH", Volume: 1000, CanUseVolume: 0},
	}
	signals, err := suite.strategy.OnBar(suite.view(7, 50000, positions))
	suite.NoError(err)
	suite.Empty(signals)
}

func (suite *MACrossTestSuite) TestHeldInstrumentNotRebought() {
	for _, price := range []float64{12, 11, 10} {
		_, err := suite.strategy.OnBar(suite.view(price, 100000, nil))
		suite.Require().NoError(err)
	}

	positions := map[string]types.Position{
		"600000.SH": {Code: "600000.SH", Volume: 1000, CanUseVolume: 1000},
	}
	signals, err := suite.strategy.OnBar(suite.view(13, 50000, positions))
	suite.NoError(err)
	suite.Empty(signals)
}

func (suite *MACrossTestSuite) TestRegisteredAsBuiltin() {
	strategy, err := Resolve("ma_cross")
	suite.NoError(err)
	suite.Equal("ma_cross", strategy.Name())
}
