package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/khquant-lab/khquant/internal/logger"
	"github.com/khquant-lab/khquant/internal/types"
	"github.com/khquant-lab/khquant/pkg/errors"
)

// DuckDBProvider stores bar and tick history in a DuckDB database and serves
// range queries from it. CSV files are ingested once and queried many times.
type DuckDBProvider struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBProvider opens the database at path; an empty path opens an
// in-memory database.
func NewDuckDBProvider(path string, logger *logger.Logger) (*DuckDBProvider, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceNotReady, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			code VARCHAR NOT NULL,
			period VARCHAR NOT NULL,
			ts BIGINT NOT NULL,
			last_price DOUBLE,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			amount DOUBLE
		);
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceNotReady, "failed to create market_data table", err)
	}

	return &DuckDBProvider{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// IngestCSV loads one instrument's series from a CSV file. The file must
// carry a header row with columns matching the market_data table, minus code
// and period which are supplied here.
func (p *DuckDBProvider) IngestCSV(code string, period types.Period, path string) error {
	p.logger.Debug("Ingesting CSV into DuckDB",
		zap.String("code", code),
		zap.String("period", string(period)),
		zap.String("path", path))

	// read_csv_auto takes the path as a literal, not a bind parameter
	query := fmt.Sprintf(`
		INSERT INTO market_data
		SELECT '%s' AS code, '%s' AS period, ts, last_price, open, high, low, close, volume, amount
		FROM read_csv_auto('%s', header=true);
	`, code, period, path)

	if _, err := p.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "failed to ingest %s", path)
	}

	return nil
}

// InsertRows loads rows directly, mainly for tests and programmatic feeds.
func (p *DuckDBProvider) InsertRows(code string, period types.Period, rows []types.SnapshotRow) error {
	for _, row := range rows {
		insert := p.sq.Insert("market_data").
			Columns("code", "period", "ts", "last_price", "open", "high", "low", "close", "volume", "amount").
			Values(code, string(period), row.Timestamp.Raw(),
				nullable(row.LastPrice), nullable(row.Open), nullable(row.High),
				nullable(row.Low), nullable(row.Close), nullable(row.Volume), nullable(row.Amount))

		query, args, err := insert.ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeHistoryLoadFailed, "failed to build insert", err)
		}
		if _, err := p.db.Exec(query, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "failed to insert row for %s", code)
		}
	}
	return nil
}

// GetHistory implements Provider.
func (p *DuckDBProvider) GetHistory(req HistoryRequest) (map[string]types.History, error) {
	out := make(map[string]types.History, len(req.Codes))
	for _, code := range req.Codes {
		rows, err := p.queryCode(code, req)
		if err != nil {
			return nil, err
		}
		out[code] = types.History{Code: code, Rows: rows}
	}
	return out, nil
}

func (p *DuckDBProvider) queryCode(code string, req HistoryRequest) ([]types.SnapshotRow, error) {
	query := p.sq.Select("ts", "last_price", "open", "high", "low", "close", "volume", "amount").
		From("market_data").
		Where(squirrel.Eq{"code": code, "period": string(req.Period)}).
		OrderBy("ts ASC")

	if startSec, ok := dayStartEpoch(req.Start); ok {
		query = query.Where(squirrel.GtOrEq{"ts": startSec})
	}
	if endSec, ok := dayEndEpoch(req.End); ok {
		query = query.Where(squirrel.LtOrEq{"ts": endSec})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoryLoadFailed, "failed to build history query", err)
	}

	rows, err := p.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "history query failed for %s", code)
	}
	defer rows.Close()

	var out []types.SnapshotRow
	for rows.Next() {
		var (
			ts                                                int64
			lastPrice, open, high, low, close, volume, amount sql.NullFloat64
		)
		if err := rows.Scan(&ts, &lastPrice, &open, &high, &low, &close, &volume, &amount); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "failed to scan row for %s", code)
		}
		out = append(out, types.SnapshotRow{
			Code:      code,
			Timestamp: types.NewTimestamp(ts),
			LastPrice: fromNull(lastPrice),
			Open:      fromNull(open),
			High:      fromNull(high),
			Low:       fromNull(low),
			Close:     fromNull(close),
			Volume:    fromNull(volume),
			Amount:    fromNull(amount),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "row iteration failed for %s", code)
	}

	return out, nil
}

// Download implements Provider. Local storage means there is nothing to
// fetch; the provider verifies each code has rows for the range and reports
// progress per code.
func (p *DuckDBProvider) Download(codes []string, period types.Period, start, end string, incremental bool, progress ProgressFunc) error {
	total := len(codes)
	for i, code := range codes {
		count, err := p.countCode(code, period, start, end)
		if err != nil {
			return err
		}
		if count == 0 {
			p.logger.Warn("No local data for instrument",
				zap.String("code", code),
				zap.String("period", string(period)))
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

func (p *DuckDBProvider) countCode(code string, period types.Period, start, end string) (int, error) {
	query := p.sq.Select("COUNT(*)").
		From("market_data").
		Where(squirrel.Eq{"code": code, "period": string(period)})

	if startSec, ok := dayStartEpoch(start); ok {
		query = query.Where(squirrel.GtOrEq{"ts": startSec})
	}
	if endSec, ok := dayEndEpoch(end); ok {
		query = query.Where(squirrel.LtOrEq{"ts": endSec})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeHistoryLoadFailed, "failed to build count query", err)
	}

	var count int
	if err := p.db.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeHistoryLoadFailed, err, "count query failed for %s", code)
	}
	return count, nil
}

func (p *DuckDBProvider) Close() error {
	return p.db.Close()
}

func nullable(v optional.Option[float64]) interface{} {
	if v.IsSome() {
		return v.Unwrap()
	}
	return nil
}

func fromNull(v sql.NullFloat64) optional.Option[float64] {
	if v.Valid {
		return optional.Some(v.Float64)
	}
	return optional.None[float64]()
}

func dayStartEpoch(day string) (int64, bool) {
	t, err := time.Parse("20060102", day)
	if err != nil {
		return 0, false
	}
	return t.Unix(), true
}

func dayEndEpoch(day string) (int64, bool) {
	t, err := time.Parse("20060102", day)
	if err != nil {
		return 0, false
	}
	return t.Add(24*time.Hour - time.Second).Unix(), true
}
