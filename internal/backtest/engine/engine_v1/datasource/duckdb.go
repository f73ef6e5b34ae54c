package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/quantra-lab/quantra/pkg/errors"
	"go.uber.org/zap"
)

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource creates a new DuckDB-backed data source. The path parameter
// specifies the DuckDB database file location, usually ":memory:". This is
// distinct from Initialize() which loads market data into the database.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource. The file format is picked by extension:
// .csv files go through read_csv_auto, everything else through read_parquet.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	// First drop the view if it exists
	_, err := d.db.Exec(`DROP VIEW IF EXISTS market_data;`)
	if err != nil {
		return fmt.Errorf("failed to drop existing view: %w", err)
	}

	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader = "read_csv_auto"
	}

	// Create a view over the file - using raw SQL as Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`
		CREATE VIEW market_data AS
		SELECT * FROM %s('%s');
	`, reader, path)

	_, err = d.db.Exec(query)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load market data from %s", path)
	}

	return nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	query := "SELECT COUNT(*) FROM market_data"

	conditions, params := timeRangeConditions(start, end, 0)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int

	err := d.db.QueryRow(query, params...).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// ReadAll implements DataSource. Bars are streamed straight off the cursor in
// ascending time order.
func (d *DuckDBDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		query := `
			SELECT time, symbol, open, high, low, close, volume
			FROM market_data
		`

		conditions, params := timeRangeConditions(start, end, 0)
		if len(conditions) > 0 {
			query += " WHERE " + strings.Join(conditions, " AND ")
		}

		query += " ORDER BY time ASC"

		rows, err := d.db.Query(query, params...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			var bar types.Bar

			err := rows.Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
			if err != nil {
				yield(types.Bar{}, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to scan bar", err))

				return
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err))
		}
	}
}

// ReadLastBar implements DataSource.
func (d *DuckDBDataSource) ReadLastBar(symbol string) (types.Bar, error) {
	query := d.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time DESC").
		Limit(1).
		RunWith(d.db)

	var bar types.Bar

	err := query.QueryRow().Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Bar{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars for symbol %s", symbol)
		}

		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read last bar", err)
	}

	return bar, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}

func timeRangeConditions(start optional.Option[time.Time], end optional.Option[time.Time], paramOffset int) ([]string, []interface{}) {
	var conditions []string

	var params []interface{}

	paramCount := paramOffset

	if start.IsSome() {
		paramCount++
		conditions = append(conditions, fmt.Sprintf("time >= $%d", paramCount))
		params = append(params, start.Unwrap())
	}

	if end.IsSome() {
		paramCount++
		conditions = append(conditions, fmt.Sprintf("time <= $%d", paramCount))
		params = append(params, end.Unwrap())
	}

	return conditions, params
}
