package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	backtestengine "github.com/khquant-lab/khquant/internal/backtest/engine"
	"github.com/khquant-lab/khquant/internal/broker"
	"github.com/khquant-lab/khquant/internal/calendar"
	"github.com/khquant-lab/khquant/internal/interaction"
	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/marketdata"
	"github.com/khquant-lab/khquant/internal/risk"
	"github.com/khquant-lab/khquant/internal/runtime"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// downloadPollInterval paces the wait for historical data to finish
// downloading before the replay starts.
const downloadPollInterval = time.Second

type BacktestEngineV1 struct {
	config     EngineV1Config
	configured bool

	strategy runtime.Strategy
	provider marketdata.Provider
	calendar calendar.Calendar
	riskGate risk.Gate
	boundary interaction.RuntimeInteraction

	resultsFolder string
	log           *logger.Logger

	ledger   *broker.SimLedger
	session  *session
	timeline *TimelineIndex
	policy   TriggerPolicy
	recorder *recorder

	lastRunFolder string
}

// NewBacktestEngineV1 builds an engine with headless defaults. Collaborators
// can be swapped before Run.
func NewBacktestEngineV1() (backtestengine.Engine, error) {
	log, err := logger.NewLogger()
	if err != nil {
		return nil, err
	}

	return &BacktestEngineV1{
		calendar: calendar.NewWeekdayCalendar(),
		riskGate: risk.Unrestricted{},
		boundary: interaction.NewHeadless(log),
		log:      log,
	}, nil
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	policy, err := NewTriggerPolicy(cfg.TriggerType, cfg.CustomTimes)
	if err != nil {
		return err
	}

	// Fast pre-flight: reject an obvious mismatch before anything else is
	// wired up. The full resolution runs again at backtest start.
	if !PeriodsConsistent(cfg.TriggerType, cfg.KlinePeriod) && !cfg.AllowPeriodMismatch {
		b.log.Warn("Configured data period does not match the trigger type",
			zap.String("trigger_type", cfg.TriggerType),
			zap.String("kline_period", string(cfg.KlinePeriod)))
	}

	b.config = cfg
	b.policy = policy
	b.configured = true
	if b.resultsFolder == "" {
		b.resultsFolder = cfg.ResultsFolder
	}

	b.log.Info("Engine initialized",
		zap.String("trigger_type", cfg.TriggerType),
		zap.String("kline_period", string(cfg.KlinePeriod)),
		zap.Strings("stock_list", cfg.StockList))

	return nil
}

// SetConfigPath implements engine.Engine.
func (b *BacktestEngineV1) SetConfigPath(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}
	return b.Initialize(string(content))
}

// LoadStrategy implements engine.Engine.
func (b *BacktestEngineV1) LoadStrategy(strategy runtime.Strategy) error {
	if strategy == nil {
		return errors.New(errors.ErrCodeStrategyNotFound, "strategy is nil")
	}
	b.strategy = strategy
	return nil
}

// SetDataProvider implements engine.Engine.
func (b *BacktestEngineV1) SetDataProvider(provider marketdata.Provider) error {
	if provider == nil {
		return errors.New(errors.ErrCodeDataSourceNotReady, "data provider is nil")
	}
	b.provider = provider
	return nil
}

// SetCalendar implements engine.Engine.
func (b *BacktestEngineV1) SetCalendar(cal calendar.Calendar) error {
	if cal == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "calendar is nil")
	}
	b.calendar = cal
	return nil
}

// SetRiskGate implements engine.Engine.
func (b *BacktestEngineV1) SetRiskGate(gate risk.Gate) error {
	if gate == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "risk gate is nil")
	}
	b.riskGate = gate
	return nil
}

// SetInteraction implements engine.Engine.
func (b *BacktestEngineV1) SetInteraction(boundary interaction.RuntimeInteraction) error {
	if boundary == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "interaction boundary is nil")
	}
	b.boundary = boundary
	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	return nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	cfg := DefaultConfig()
	return cfg.GenerateSchemaJSON()
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context) error {
	if !b.configured {
		return errors.New(errors.ErrCodeInvalidConfiguration, "engine is not initialized")
	}
	if b.strategy == nil {
		return errors.New(errors.ErrCodeStrategyNotFound, "no strategy loaded")
	}
	if b.provider == nil {
		return errors.New(errors.ErrCodeDataSourceNotReady, "no data provider set")
	}

	guard := periodGuard{
		allowMismatch: b.config.AllowPeriodMismatch,
		boundary:      b.boundary,
		logger:        b.log,
	}
	proceed, err := guard.Check(b.config.TriggerType, b.config.KlinePeriod)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	b.session = newSession(&b.config)
	b.ledger = broker.NewSimLedger(
		b.config.InitCapital,
		b.feeSchedule(),
		b.config.T0,
		b.config.MinVolume,
		b.log,
	)
	b.recorder = &recorder{
		session:   b.session,
		ledger:    b.ledger,
		logger:    b.log,
		benchmark: b.config.Benchmark,
	}

	if err := b.downloadData(ctx); err != nil {
		return err
	}
	if err := b.prefetchBenchmark(); err != nil {
		return err
	}
	if err := b.prefetchDailyCloses(); err != nil {
		return err
	}

	histories, err := b.provider.GetHistory(marketdata.HistoryRequest{
		Codes:        b.config.StockList,
		Period:       b.dataPeriod(),
		Start:        b.config.StartTime,
		End:          b.config.EndTime,
		DividendType: b.config.DividendType,
		FillData:     b.config.FillData,
	})
	if err != nil {
		return err
	}

	timeline, err := BuildTimelineIndex(histories, b.policy, b.tradeDaysInRange(), b.log)
	if err != nil {
		return err
	}
	b.timeline = timeline
	b.session.indexDayTimePoints(timeline.Timestamps)

	if err := b.strategy.Init(b.config.StockList, &runtime.InitContext{
		Assets:      *b.ledger.Assets(),
		Positions:   clonePositions(b.ledger.Positions()),
		StockList:   b.config.StockList,
		InitCapital: b.config.InitCapital,
		Engine:      sessionHandle{session: b.session},
	}); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyInit, "strategy initialization failed", err)
	}

	if err := b.replay(ctx); err != nil {
		return err
	}

	b.session.WallEnd = time.Now()

	folder, err := b.writeArtifacts()
	if err != nil {
		return err
	}
	b.lastRunFolder = folder

	b.boundary.OnFinished()
	b.boundary.OpenResult(folder)

	return nil
}

// LastRunFolder returns the artifact folder of the most recent run, empty
// before any run completes.
func (b *BacktestEngineV1) LastRunFolder() string {
	return b.lastRunFolder
}

// dataPeriod is the granularity to fetch. The configured kline_period wins;
// the custom trigger derives its own from the offsets.
func (b *BacktestEngineV1) dataPeriod() types.Period {
	if b.config.TriggerType == "custom" {
		return b.policy.DataPeriod()
	}
	return b.config.KlinePeriod
}

func (b *BacktestEngineV1) feeSchedule() broker.FeeSchedule {
	fees := broker.DefaultFeeSchedule()
	cfg := b.config.Fees
	if cfg.CommissionRate > 0 {
		fees.CommissionRate = decimalFromFloat(cfg.CommissionRate)
	}
	if cfg.MinCommission > 0 {
		fees.MinCommission = decimalFromFloat(cfg.MinCommission)
	}
	if cfg.StampTaxRate > 0 {
		fees.StampTaxRate = decimalFromFloat(cfg.StampTaxRate)
	}
	if cfg.TransferRate > 0 {
		fees.TransferRate = decimalFromFloat(cfg.TransferRate)
	}
	if cfg.FlowFee > 0 {
		fees.FlowFeeAmount = decimalFromFloat(cfg.FlowFee)
	}
	return fees
}

// downloadData kicks off the provider download and polls until the reported
// progress reaches the expected total.
func (b *BacktestEngineV1) downloadData(ctx context.Context) error {
	total := len(b.config.StockList)
	if total == 0 {
		return nil
	}

	var finished atomic.Int64
	errCh := make(chan error, 1)

	go func() {
		errCh <- b.provider.Download(
			b.config.StockList,
			b.dataPeriod(),
			b.config.StartTime,
			b.config.EndTime,
			true,
			func(done, _ int) { finished.Store(int64(done)) },
		)
	}()

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return errors.Wrap(errors.ErrCodeDownloadFailed, "historical data download failed", err)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(downloadPollInterval):
			b.log.Debug("Waiting for data download",
				zap.Int64("finished", finished.Load()),
				zap.Int("total", total))
		}
	}
}

// prefetchBenchmark loads the benchmark's daily closes for the whole range
// into the session cache and the benchmark artifact rows.
func (b *BacktestEngineV1) prefetchBenchmark() error {
	if b.config.Benchmark == "" {
		return nil
	}

	histories, err := b.provider.GetHistory(marketdata.HistoryRequest{
		Codes:        []string{b.config.Benchmark},
		Period:       types.Period1d,
		Start:        b.config.StartTime,
		End:          b.config.EndTime,
		DividendType: b.config.DividendType,
	})
	if err != nil {
		return err
	}

	for _, row := range histories[b.config.Benchmark].Rows {
		close := row.Price()
		if close.IsNone() {
			continue
		}
		date := row.Timestamp.Date()
		b.session.BenchmarkClose[date] = close.Unwrap()
		b.session.Records.Benchmark = append(b.session.Records.Benchmark, types.BenchmarkRecord{
			Date:  date.Dashed(),
			Close: close.Unwrap(),
		})
	}

	return nil
}

// prefetchDailyCloses batches the instruments' daily closes, the first rung
// of the end-of-day price fallback chain.
func (b *BacktestEngineV1) prefetchDailyCloses() error {
	histories, err := b.provider.GetHistory(marketdata.HistoryRequest{
		Codes:        b.config.StockList,
		Period:       types.Period1d,
		Start:        b.config.StartTime,
		End:          b.config.EndTime,
		DividendType: b.config.DividendType,
	})
	if err != nil {
		return err
	}

	for code, history := range histories {
		for _, row := range history.Rows {
			close := row.Price()
			if close.IsNone() {
				continue
			}
			date := row.Timestamp.Date()
			if b.session.DailyPrices[date] == nil {
				b.session.DailyPrices[date] = make(map[string]float64)
			}
			b.session.DailyPrices[date][code] = close.Unwrap()
		}
	}

	return nil
}

// tradeDaysInRange enumerates the trading days between the configured start
// and end, inclusive.
func (b *BacktestEngineV1) tradeDaysInRange() []types.Date {
	start, errStart := time.Parse("20060102", b.config.StartTime)
	end, errEnd := time.Parse("20060102", b.config.EndTime)
	if errStart != nil || errEnd != nil {
		return nil
	}

	var out []types.Date
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := types.Date{Year: day.Year(), Month: day.Month(), Day: day.Day()}
		if b.isTradeDay(date) {
			out = append(out, date)
		}
	}
	return out
}

// isTradeDay consults the calendar through the session cache.
func (b *BacktestEngineV1) isTradeDay(date types.Date) bool {
	if cached, ok := b.session.TradeDays[date]; ok {
		return cached
	}
	result := b.calendar.IsTradeDay(date)
	b.session.TradeDays[date] = result
	return result
}

func (b *BacktestEngineV1) writeArtifacts() (string, error) {
	writer := &artifactWriter{logger: b.log}

	folder, err := writer.RunFolder(b.resultsFolder, b.strategy.Name(), b.session.RunID)
	if err != nil {
		return "", err
	}

	summary := b.recorder.Summarize()
	runtimeSeconds := b.session.WallEnd.Sub(b.session.WallStart).Seconds()

	configRecord := types.RunConfigRecord{
		StartTime:             b.config.StartTime,
		EndTime:               b.config.EndTime,
		InitCapital:           b.config.InitCapital,
		Benchmark:             b.config.Benchmark,
		StrategyFile:          b.config.StrategyFile,
		ActualStartTime:       b.session.WallStart.Format("2006-01-02 15:04:05"),
		ActualEndTime:         b.session.WallEnd.Format("2006-01-02 15:04:05"),
		TotalRuntimeSeconds:   runtimeSeconds,
		TotalRuntimeFormatted: formatRuntime(runtimeSeconds),
		StockList:             strings.Join(b.config.StockList, ","),
		MinVolume:             b.config.MinVolume,
		KlinePeriod:           string(b.config.KlinePeriod),
		DividendType:          b.config.DividendType,
	}

	if err := writer.WriteAll(folder, b.session.Records, summary, configRecord); err != nil {
		return "", err
	}

	b.log.Info("Backtest artifacts written",
		zap.String("folder", folder),
		zap.Int("trades", len(b.session.Records.Trades)),
		zap.Int("daily_stats", len(b.session.Records.DailyStats)))

	return folder, nil
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func formatRuntime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func clonePositions(positions map[string]*types.Position) map[string]types.Position {
	out := make(map[string]types.Position, len(positions))
	for code, pos := range positions {
		out[code] = *pos
	}
	return out
}
