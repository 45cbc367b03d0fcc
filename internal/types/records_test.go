package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RecordsTestSuite struct {
	suite.Suite
}

func TestRecordsSuite(t *testing.T) {
	suite.Run(t, new(RecordsTestSuite))
}

func (suite *RecordsTestSuite) TestPositionSnapshotMapRoundTrip() {
	m := PositionSnapshotMap{
		"600000.SH": {Volume: 200, CanUseVolume: 100, AvgPrice: 10.0, CurrentPrice: 10.5, MarketValue: 2100, Profit: 100, ProfitRatio: 0.05},
	}
	cell, err := m.MarshalCSV()
	suite.NoError(err)

	var got PositionSnapshotMap
	suite.NoError(got.UnmarshalCSV(cell))
	suite.Equal(m, got)
}

func (suite *RecordsTestSuite) TestEmptyPositionSnapshotMap() {
	cell, err := PositionSnapshotMap{}.MarshalCSV()
	suite.NoError(err)
	suite.Equal("{}", cell)

	var got PositionSnapshotMap
	suite.NoError(got.UnmarshalCSV(""))
	suite.Empty(got)
}

func (suite *RecordsTestSuite) TestTradeRecordTotalCost() {
	r := TradeRecord{Commission: 5, StampTax: 1, TransferFee: 0.1, FlowFee: 0.5}
	suite.InDelta(6.6, r.TotalCost(), 1e-9)
}

func (suite *RecordsTestSuite) TestLastTotalAsset() {
	records := &BacktestRecords{InitCapital: 100000}
	suite.Equal(100000.0, records.LastTotalAsset())

	records.DailyStats = append(records.DailyStats, DailyStatRecord{TotalAsset: 101000})
	suite.Equal(101000.0, records.LastTotalAsset())
}
