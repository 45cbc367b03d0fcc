package types

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type ViewTestSuite struct {
	suite.Suite
}

func TestViewSuite(t *testing.T) {
	suite.Run(t, new(ViewTestSuite))
}

func (suite *ViewTestSuite) newView() *ReplayView {
	ts := NewTimestamp(1700000000)
	return &ReplayView{
		Time: ts,
		Rows: map[string]SnapshotRow{
			"600000.SH": {Code: "600000.SH", Timestamp: ts, Close: optional.Some(10.5)},
			"000001.SZ": EmptyRow("000001.SZ", ts),
		},
		Positions: map[string]Position{},
		StockList: []string{"600000.SH", "000001.SZ"},
	}
}

func (suite *ViewTestSuite) TestRowLookup() {
	view := suite.newView()
	suite.False(view.Row("600000.SH").Empty())
	suite.True(view.Row("000001.SZ").Empty())
	suite.True(view.Row("999999.SH").Empty())
}

func (suite *ViewTestSuite) TestEmptyCodes() {
	view := suite.newView()
	suite.Equal([]string{"000001.SZ"}, view.EmptyCodes())
}

func (suite *ViewTestSuite) TestClockOverride() {
	view := suite.newView()
	original := view.Clock()
	view.TimeOfDay = "08:30:00"
	suite.Equal("08:30:00", view.Clock())
	suite.NotEqual(original, view.Clock())
}

func (suite *ViewTestSuite) TestCloneIsIndependent() {
	view := suite.newView()
	view.Positions["600000.SH"] = Position{Code: "600000.SH", Volume: 100}

	clone := view.Clone()
	clone.Positions["600000.SH"] = Position{Code: "600000.SH", Volume: 999}
	clone.Rows["600000.SH"] = EmptyRow("600000.SH", view.Time)

	suite.Equal(int64(100), view.Positions["600000.SH"].Volume)
	suite.False(view.Row("600000.SH").Empty())
}
