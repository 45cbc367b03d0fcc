package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestMAWarmup() {
	ma := NewMA(3)

	ma.Update(1)
	ma.Update(2)
	suite.True(ma.Value().IsNone())

	ma.Update(3)
	suite.InDelta(2.0, ma.Value().Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestMASlidesWindow() {
	ma := NewMA(3)
	for _, price := range []float64{1, 2, 3, 4, 5} {
		ma.Update(price)
	}
	// window holds 3, 4, 5
	suite.InDelta(4.0, ma.Value().Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestMADefaultPeriod() {
	ma := NewMA(0)
	suite.Equal("ma(20)", ma.Name())
}

func (suite *IndicatorTestSuite) TestEMASeedsWithSimpleAverage() {
	ema := NewEMA(3)

	ema.Update(1)
	ema.Update(2)
	suite.True(ema.Value().IsNone())

	ema.Update(3)
	suite.InDelta(2.0, ema.Value().Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestEMAWeighsRecentPrices() {
	ema := NewEMA(3)
	for _, price := range []float64{1, 2, 3} {
		ema.Update(price)
	}
	// alpha = 0.5, seed = 2
	ema.Update(6)
	suite.InDelta(4.0, ema.Value().Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIWarmup() {
	rsi := NewRSI(14)
	for i := 0; i < 14; i++ {
		rsi.Update(float64(i))
	}
	suite.True(rsi.Value().IsNone())

	rsi.Update(14)
	suite.True(rsi.Value().IsSome())
}

func (suite *IndicatorTestSuite) TestRSIAllGainsIsHundred() {
	rsi := NewRSI(3)
	for _, price := range []float64{1, 2, 3, 4, 5} {
		rsi.Update(price)
	}
	suite.InDelta(100.0, rsi.Value().Unwrap(), 1e-9)
}

func (suite *IndicatorTestSuite) TestRSIBalancedSeriesNearFifty() {
	rsi := NewRSI(2)
	for _, price := range []float64{10, 11, 10, 11, 10} {
		rsi.Update(price)
	}
	value := rsi.Value().Unwrap()
	suite.Greater(value, 30.0)
	suite.Less(value, 70.0)
}
