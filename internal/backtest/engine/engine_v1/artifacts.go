package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

const (
	artifactWriteAttempts = 3
	artifactRetryBase     = 200 * time.Millisecond
)

// Artifact file names inside a run folder.
const (
	TradesFile     = "trades.csv"
	DailyStatsFile = "daily_stats.csv"
	SummaryFile    = "summary.csv"
	BenchmarkFile  = "benchmark.csv"
	ConfigFile     = "config.csv"
)

// artifactWriter persists the five run artifacts. Every file is written
// even when its data set is empty, so consumers always see stable headers.
type artifactWriter struct {
	logger *logger.Logger
}

// RunFolder builds the output directory path for a run and creates it.
func (w *artifactWriter) RunFolder(base string, strategyName string, runID string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s", time.Now().Format("20060102_150405"), strategyName, shortID(runID))
	folder := filepath.Join(base, name)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeArtifactWrite, err, "failed to create results folder %s", folder)
	}
	return folder, nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// WriteAll writes the five artifacts into folder.
func (w *artifactWriter) WriteAll(folder string, records *types.BacktestRecords, summary types.SummaryRecord, config types.RunConfigRecord) error {
	if err := writeCSV(w, filepath.Join(folder, TradesFile), &records.Trades); err != nil {
		return err
	}
	if err := writeCSV(w, filepath.Join(folder, DailyStatsFile), &records.DailyStats); err != nil {
		return err
	}
	summaryRows := []types.SummaryRecord{summary}
	if err := writeCSV(w, filepath.Join(folder, SummaryFile), &summaryRows); err != nil {
		return err
	}
	if err := writeCSV(w, filepath.Join(folder, BenchmarkFile), &records.Benchmark); err != nil {
		return err
	}
	configRows := []types.RunConfigRecord{config}
	if err := writeCSV(w, filepath.Join(folder, ConfigFile), &configRows); err != nil {
		return err
	}
	return nil
}

// writeCSV writes one artifact with a bounded retry for transient sharing
// violations, backing off linearly between attempts.
func writeCSV[T any](w *artifactWriter, path string, rows *[]T) error {
	if *rows == nil {
		*rows = []T{}
	}

	var lastErr error
	for attempt := 1; attempt <= artifactWriteAttempts; attempt++ {
		lastErr = writeCSVOnce(path, *rows)
		if lastErr == nil {
			return nil
		}
		w.logger.Warn("Artifact write failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < artifactWriteAttempts {
			time.Sleep(artifactRetryBase * time.Duration(attempt))
		}
	}

	return errors.Wrapf(errors.ErrCodeArtifactWrite, lastErr, "failed to write %s after %d attempts", path, artifactWriteAttempts)
}

func writeCSVOnce[T any](path string, rows []T) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return gocsv.MarshalFile(&rows, file)
}
