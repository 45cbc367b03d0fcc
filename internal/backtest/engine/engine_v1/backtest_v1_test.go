package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/khquant-lab/khquant/internal/marketdata"
	"github.com/khquant-lab/khquant/internal/runtime"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// captureStrategy counts invocations and emits whatever onBar returns.
type captureStrategy struct {
	invocations int
	barTimes    []string
	onBar       func(view *types.ReplayView) ([]*types.Signal, error)
}

func (s *captureStrategy) Name() string { return "capture" }

func (s *captureStrategy) Init(stocks []string, ctx *runtime.InitContext) error { return nil }

func (s *captureStrategy) OnBar(view *types.ReplayView) ([]*types.Signal, error) {
	s.invocations++
	s.barTimes = append(s.barTimes, view.Time.DateTime())
	if s.onBar != nil {
		return s.onBar(view)
	}
	return nil, nil
}

// hookStrategy additionally records pre and post market hook calls.
type hookStrategy struct {
	captureStrategy
	preMarketClocks  []string
	postMarketClocks []string
	hookErr          error
}

func (s *hookStrategy) OnPreMarket(view *types.ReplayView) ([]*types.Signal, error) {
	s.preMarketClocks = append(s.preMarketClocks, view.Clock())
	return nil, s.hookErr
}

func (s *hookStrategy) OnPostMarket(view *types.ReplayView) ([]*types.Signal, error) {
	s.postMarketClocks = append(s.postMarketClocks, view.Clock())
	return nil, s.hookErr
}

type BacktestEngineV1TestSuite struct {
	suite.Suite
}

func TestBacktestEngineV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestEngineV1TestSuite))
}

func configYAML(triggerType string, klinePeriod types.Period, extra string) string {
	return fmt.Sprintf(`
start_time: "20240115"
end_time: "20240119"
init_capital: 100000
stock_list:
  - 600000.SH
trigger_type: %s
kline_period: %s
%s`, triggerType, klinePeriod, extra)
}

func (suite *BacktestEngineV1TestSuite) newEngine(config string, strategy runtime.Strategy, provider marketdata.Provider) *BacktestEngineV1 {
	eng, err := NewBacktestEngineV1()
	suite.Require().NoError(err)
	v1 := eng.(*BacktestEngineV1)

	suite.Require().NoError(v1.Initialize(config))
	suite.Require().NoError(v1.LoadStrategy(strategy))
	suite.Require().NoError(v1.SetDataProvider(provider))
	suite.Require().NoError(v1.SetResultsFolder(suite.T().TempDir()))

	return v1
}

// tickData installs three same-day ticks for 600000.SH (Monday 2024-01-15).
func tickData() *marketdata.MemoryProvider {
	provider := marketdata.NewMemoryProvider()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	provider.SetHistory("600000.SH", types.PeriodTick, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day.Add(9*time.Hour + 30*time.Minute).Unix()), LastPrice: optional.Some(10.0)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day.Add(10 * time.Hour).Unix()), LastPrice: optional.Some(10.2)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day.Add(14 * time.Hour).Unix()), LastPrice: optional.Some(10.1)},
	})
	return provider
}

// dailyData installs one daily bar on each of Monday and Tuesday.
func dailyData() *marketdata.MemoryProvider {
	provider := marketdata.NewMemoryProvider()
	provider.SetHistory("600000.SH", types.Period1d, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC).Unix()), Close: optional.Some(10.0)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC).Unix()), Close: optional.Some(10.5)},
	})
	return provider
}

func (suite *BacktestEngineV1TestSuite) TestThreeTicksOneDay() {
	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))

	// every tick invokes the strategy, daily stats close the day once
	suite.Equal(3, strategy.invocations)
	suite.Len(engine.session.Records.DailyStats, 1)
	suite.Equal("2024-01-15 14:00:00", strategy.barTimes[2])
}

func (suite *BacktestEngineV1TestSuite) TestDailyTriggerTwoDays() {
	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("1d", types.Period1d, ""), strategy, dailyData())

	suite.Require().NoError(engine.Run(context.Background()))

	suite.Equal(2, strategy.invocations)
	suite.Len(engine.session.Records.DailyStats, 2)
}

func (suite *BacktestEngineV1TestSuite) TestPeriodMismatchFailsHeadless() {
	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("1m", types.PeriodTick, ""), strategy, tickData())

	err := engine.Run(context.Background())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePeriodMismatch))
	// no trading state was initialized and no strategy calls happened
	suite.Equal(0, strategy.invocations)
}

func (suite *BacktestEngineV1TestSuite) TestPeriodMismatchOverride() {
	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("1m", types.PeriodTick, "allow_period_mismatch: true\n"), strategy, tickData())

	suite.NoError(engine.Run(context.Background()))
	// ticks at 09:30:00, 10:00:00 and 14:00:00 all sit on minute boundaries
	suite.Equal(3, strategy.invocations)
}

func (suite *BacktestEngineV1TestSuite) TestEmptyRunProducesStableArtifacts() {
	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))

	folder := engine.LastRunFolder()
	suite.Require().NotEmpty(folder)

	for _, name := range []string{TradesFile, DailyStatsFile, SummaryFile, BenchmarkFile, ConfigFile} {
		suite.FileExists(filepath.Join(folder, name))
	}

	content, err := os.ReadFile(filepath.Join(folder, TradesFile))
	suite.Require().NoError(err)
	header := strings.SplitN(strings.TrimSpace(string(content)), "\n", 2)[0]
	suite.Equal("datetime,code,action,price,volume,amount,commission,stamp_tax,transfer_fee,flow_fee,total_asset,cash,market_value", header)

	result, err := ParseBacktestDir(folder)
	suite.Require().NoError(err)
	suite.Empty(result.Trades)
	suite.Equal(100000.0, result.Summary.InitCapital)
	suite.Equal(0.0, result.Summary.TotalReturn)
	suite.Equal(0.0, result.Summary.MaxDrawdown)
}

func (suite *BacktestEngineV1TestSuite) TestTradeRoundTrip() {
	bought := false
	strategy := &captureStrategy{onBar: func(view *types.ReplayView) ([]*types.Signal, error) {
		if bought {
			return nil, nil
		}
		bought = true
		return []*types.Signal{{Code: "600000.SH", Action: types.TradeActionBuy, Volume: 1000}}, nil
	}}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))

	suite.Require().Len(engine.session.Records.Trades, 1)
	trade := engine.session.Records.Trades[0]
	suite.Equal("buy", trade.Action)
	suite.Equal(10.0, trade.Price)
	suite.InDelta(trade.Cash+trade.MarketValue, trade.TotalAsset, 1e-6)

	stats := engine.session.Records.DailyStats
	suite.Require().Len(stats, 1)
	suite.InDelta(stats[0].Cash+stats[0].MarketValue, stats[0].TotalAsset, 1e-6)
	suite.Equal(int64(1000), stats[0].Positions["600000.SH"].Volume)
}

func (suite *BacktestEngineV1TestSuite) TestT1SettlementAcrossDays() {
	provider := marketdata.NewMemoryProvider()
	day1 := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC)
	provider.SetHistory("600000.SH", types.PeriodTick, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day1.Unix()), LastPrice: optional.Some(10.0)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day1.Add(time.Hour).Unix()), LastPrice: optional.Some(10.1)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day2.Unix()), LastPrice: optional.Some(10.5)},
	})

	step := 0
	strategy := &captureStrategy{onBar: func(view *types.ReplayView) ([]*types.Signal, error) {
		step++
		switch step {
		case 1:
			return []*types.Signal{{Code: "600000.SH", Action: types.TradeActionBuy, Volume: 1000}}, nil
		case 2, 3:
			// same-day sell must be rejected, next-day sell must fill
			return []*types.Signal{{Code: "600000.SH", Action: types.TradeActionSell, Volume: 1000}}, nil
		}
		return nil, nil
	}}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, provider)

	suite.Require().NoError(engine.Run(context.Background()))

	trades := engine.session.Records.Trades
	suite.Require().Len(trades, 2)
	suite.Equal("buy", trades[0].Action)
	suite.Equal("sell", trades[1].Action)
	suite.Contains(trades[1].Datetime, "2024-01-16")
}

func (suite *BacktestEngineV1TestSuite) TestT0SellsSameDay() {
	step := 0
	strategy := &captureStrategy{onBar: func(view *types.ReplayView) ([]*types.Signal, error) {
		step++
		switch step {
		case 1:
			return []*types.Signal{{Code: "600000.SH", Action: types.TradeActionBuy, Volume: 1000}}, nil
		case 2:
			return []*types.Signal{{Code: "600000.SH", Action: types.TradeActionSell, Volume: 1000}}, nil
		}
		return nil, nil
	}}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, "t0: true\n"), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))
	suite.Len(engine.session.Records.Trades, 2)
}

func (suite *BacktestEngineV1TestSuite) TestOnBarErrorAbortsRun() {
	strategy := &captureStrategy{onBar: func(view *types.ReplayView) ([]*types.Signal, error) {
		return nil, fmt.Errorf("indicator blew up")
	}}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, tickData())

	err := engine.Run(context.Background())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyCallback))
	suite.Equal(1, strategy.invocations)
}

func (suite *BacktestEngineV1TestSuite) TestHookErrorIsContained() {
	strategy := &hookStrategy{hookErr: fmt.Errorf("hook failure")}
	extra := "market_callback:\n  pre_market_enabled: true\n  post_market_enabled: true\n"
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, extra), strategy, tickData())

	suite.NoError(engine.Run(context.Background()))
	suite.Equal(3, strategy.invocations)
	suite.NotEmpty(strategy.preMarketClocks)
}

func (suite *BacktestEngineV1TestSuite) TestHookClockOverrides() {
	strategy := &hookStrategy{}
	extra := "market_callback:\n  pre_market_enabled: true\n  post_market_enabled: true\n"
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, extra), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))

	suite.Require().NotEmpty(strategy.preMarketClocks)
	suite.Equal("08:30:00", strategy.preMarketClocks[0])
	// the final post-market hook fires after the loop for the last day
	suite.Require().NotEmpty(strategy.postMarketClocks)
	suite.Equal("15:30:00", strategy.postMarketClocks[0])
}

func (suite *BacktestEngineV1TestSuite) TestHooksFireOncePerDay() {
	provider := marketdata.NewMemoryProvider()
	day1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	// day 2 opens with two off-minute ticks that never trigger a 1m strategy
	// call; the day boundary must still be crossed exactly once
	provider.SetHistory("600000.SH", types.PeriodTick, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day1.Add(10 * time.Hour).Unix()), LastPrice: optional.Some(10.0)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day1.Add(10*time.Hour + 30*time.Minute).Unix()), LastPrice: optional.Some(10.1)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day2.Add(9*time.Hour + 30*time.Minute + 5*time.Second).Unix()), LastPrice: optional.Some(10.2)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day2.Add(9*time.Hour + 30*time.Minute + 20*time.Second).Unix()), LastPrice: optional.Some(10.3)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day2.Add(10 * time.Hour).Unix()), LastPrice: optional.Some(10.4)},
	})

	strategy := &hookStrategy{}
	extra := "allow_period_mismatch: true\nmarket_callback:\n  pre_market_enabled: true\n  post_market_enabled: true\n"
	engine := suite.newEngine(configYAML("1m", types.PeriodTick, extra), strategy, provider)

	suite.Require().NoError(engine.Run(context.Background()))

	suite.Equal(3, strategy.invocations)
	suite.Len(strategy.preMarketClocks, 2)
	suite.Len(strategy.postMarketClocks, 2)
}

func (suite *BacktestEngineV1TestSuite) TestNonTradingDaysSkipped() {
	provider := marketdata.NewMemoryProvider()
	// Saturday 2024-01-13 and Monday 2024-01-15
	provider.SetHistory("600000.SH", types.PeriodTick, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC).Unix()), LastPrice: optional.Some(9.9)},
		{Code: "600000.SH", Timestamp: types.NewTimestamp(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC).Unix()), LastPrice: optional.Some(10.0)},
	})

	strategy := &captureStrategy{}
	config := strings.Replace(configYAML("tick", types.PeriodTick, ""), `"20240115"`, `"20240113"`, 1)
	engine := suite.newEngine(config, strategy, provider)

	suite.Require().NoError(engine.Run(context.Background()))

	// only the Monday tick reaches the strategy, and only Monday is recorded
	suite.Equal(1, strategy.invocations)
	suite.Require().Len(engine.session.Records.DailyStats, 1)
	suite.Equal("2024-01-15", engine.session.Records.DailyStats[0].Date)
}

func (suite *BacktestEngineV1TestSuite) TestCancellationStopsReplay() {
	strategy := &captureStrategy{onBar: func(view *types.ReplayView) ([]*types.Signal, error) {
		view.Engine.Cancel()
		return nil, nil
	}}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, ""), strategy, tickData())

	suite.Require().NoError(engine.Run(context.Background()))

	// cancellation lands before the second timestamp, artifacts still flush
	suite.Equal(1, strategy.invocations)
	suite.NotEmpty(engine.LastRunFolder())
}

func (suite *BacktestEngineV1TestSuite) TestBenchmarkPrefetch() {
	provider := tickData()
	provider.SetHistory("000300.SH", types.Period1d, []types.SnapshotRow{
		{Code: "000300.SH", Timestamp: types.NewTimestamp(time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC).Unix()), Close: optional.Some(3500.0)},
	})

	strategy := &captureStrategy{}
	engine := suite.newEngine(configYAML("tick", types.PeriodTick, "benchmark: 000300.SH\n"), strategy, provider)

	suite.Require().NoError(engine.Run(context.Background()))

	suite.Require().Len(engine.session.Records.Benchmark, 1)
	suite.Equal(3500.0, engine.session.Records.Benchmark[0].Close)

	stats := engine.session.Records.DailyStats
	suite.Require().Len(stats, 1)
	suite.Require().NotNil(stats[0].BenchmarkClose)
	suite.Equal(3500.0, *stats[0].BenchmarkClose)
}

func (suite *BacktestEngineV1TestSuite) TestCustomTriggerScenario() {
	provider := marketdata.NewMemoryProvider()
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	provider.SetHistory("600000.SH", types.PeriodTick, []types.SnapshotRow{
		{Code: "600000.SH", Timestamp: types.NewTimestamp(day.Add(9*time.Hour + 30*time.Minute).Unix()), LastPrice: optional.Some(10.0)},
	})

	strategy := &captureStrategy{}
	extra := "custom_times:\n  - \"09:30:30\"\n"
	config := configYAML("custom", types.PeriodTick, extra)
	// one trading day in range keeps the synthesized timeline small
	config = strings.Replace(config, `"20240119"`, `"20240115"`, 1)
	engine := suite.newEngine(config, strategy, provider)

	suite.Require().NoError(engine.Run(context.Background()))

	// the synthesized 09:30:30 point fires; the 09:30:00 tick is 30s away
	// from the offset so the instrument row at that point is empty and the
	// strategy is skipped
	suite.Equal(0, strategy.invocations)
	suite.Len(engine.session.Records.DailyStats, 1)
}

func (suite *BacktestEngineV1TestSuite) TestRunRequiresSetup() {
	eng, err := NewBacktestEngineV1()
	suite.Require().NoError(err)

	err = eng.Run(context.Background())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestEngineV1TestSuite) TestGetConfigSchema() {
	eng, err := NewBacktestEngineV1()
	suite.Require().NoError(err)

	schema, err := eng.GetConfigSchema()
	suite.NoError(err)
	suite.Contains(schema, "stock_list")
}
