package types

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestEmptyRow() {
	ts := NewTimestamp(1700000000)
	row := EmptyRow("600000.SH", ts)
	suite.True(row.Empty())
	suite.True(row.Price().IsNone())
	suite.Equal("600000.SH", row.Code)
}

func (suite *MarketTestSuite) TestRowWithDataNotEmpty() {
	row := SnapshotRow{
		Code:      "600000.SH",
		Timestamp: NewTimestamp(1700000000),
		Close:     optional.Some(10.5),
	}
	suite.False(row.Empty())
}

func (suite *MarketTestSuite) TestPricePrefersLastPrice() {
	row := SnapshotRow{
		LastPrice: optional.Some(10.4),
		Close:     optional.Some(10.5),
	}
	suite.Equal(10.4, row.Price().Unwrap())
}

func (suite *MarketTestSuite) TestPriceFallsBackToClose() {
	row := SnapshotRow{Close: optional.Some(10.5)}
	suite.Equal(10.5, row.Price().Unwrap())
}

func (suite *MarketTestSuite) TestHistoryTimestamps() {
	h := History{
		Code: "600000.SH",
		Rows: []SnapshotRow{
			{Timestamp: NewTimestamp(100)},
			{Timestamp: NewTimestamp(200)},
		},
	}
	suite.Equal([]int64{100, 200}, h.Timestamps())
}
