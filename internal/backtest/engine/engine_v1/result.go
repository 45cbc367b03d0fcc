package engine

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// BacktestResult is the parsed content of one run folder.
type BacktestResult struct {
	Folder     string
	Trades     []types.TradeRecord
	DailyStats []types.DailyStatRecord
	Summary    types.SummaryRecord
	Benchmark  []types.BenchmarkRecord
	Config     types.RunConfigRecord
}

// ParseBacktestDir reads a run folder's artifacts back into memory.
func ParseBacktestDir(folder string) (*BacktestResult, error) {
	result := &BacktestResult{Folder: folder}

	if err := readCSV(filepath.Join(folder, TradesFile), &result.Trades); err != nil {
		return nil, err
	}
	if err := readCSV(filepath.Join(folder, DailyStatsFile), &result.DailyStats); err != nil {
		return nil, err
	}

	var summaries []types.SummaryRecord
	if err := readCSV(filepath.Join(folder, SummaryFile), &summaries); err != nil {
		return nil, err
	}
	if len(summaries) > 0 {
		result.Summary = summaries[0]
	}

	if err := readCSV(filepath.Join(folder, BenchmarkFile), &result.Benchmark); err != nil {
		return nil, err
	}

	var configs []types.RunConfigRecord
	if err := readCSV(filepath.Join(folder, ConfigFile), &configs); err != nil {
		return nil, err
	}
	if len(configs) > 0 {
		result.Config = configs[0]
	}

	return result, nil
}

func readCSV[T any](path string, out *[]T) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactMissing, err, "failed to open %s", path)
	}
	defer file.Close()

	if err := gocsv.UnmarshalFile(file, out); err != nil {
		// An artifact with headers but no rows is a valid empty data set
		if err == gocsv.ErrEmptyCSVFile {
			return nil
		}
		return errors.Wrapf(errors.ErrCodeArtifactMissing, err, "failed to parse %s", path)
	}

	return nil
}
