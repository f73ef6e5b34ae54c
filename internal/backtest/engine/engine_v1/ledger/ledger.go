package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/types"
	"go.uber.org/zap"
)

// Ledger is the durable record of every position a run opens. Records are
// inserted at open, patched when a trailing stop first activates, and patched
// again with the exit facts at close.
type Ledger interface {
	Initialize() error
	OpenPosition(record types.PositionRecord) error
	UpdateTrailing(positionID string, trailingStopPrice float64) error
	ClosePosition(record types.PositionRecord) error
	GetPosition(positionID string) (optional.Option[types.PositionRecord], error)
	ListPositions() ([]types.PositionRecord, error)
	InsertFeatures(vector types.FeatureVector) error
	GetStats() ([]types.SymbolStats, error)
	Write(path string) error
	Cleanup() error
	Close() error
}

// DuckDBLedger keeps the position records in an in-memory DuckDB database so
// statistics can be computed in SQL and the final state exported to Parquet.
type DuckDBLedger struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewDuckDBLedger(logger *logger.Logger) *DuckDBLedger {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return nil
	}

	return &DuckDBLedger{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// Initialize creates the positions table.
func (l *DuckDBLedger) Initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			position_id TEXT PRIMARY KEY,
			symbol TEXT,
			direction TEXT,
			status TEXT,
			entry_price DOUBLE,
			entry_bar_index INTEGER,
			entry_time TIMESTAMP,
			size_usd DOUBLE,
			size_units DOUBLE,
			entry_fees_usd DOUBLE,
			atr_at_entry DOUBLE,
			stop_loss_price DOUBLE,
			take_profit_price DOUBLE,
			time_stop_bars INTEGER,
			trailing_activated BOOLEAN,
			trailing_stop_price DOUBLE,
			exit_price DOUBLE,
			exit_bar_index INTEGER,
			exit_time TIMESTAMP,
			exit_reason TEXT,
			exit_fees_usd DOUBLE,
			bars_held INTEGER,
			pnl_usd DOUBLE,
			pnl_pct DOUBLE,
			r_multiple DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}

	// One DOUBLE column per feature key, in schema order
	columns := make([]string, 0, 3+types.FeatureCount())
	columns = append(columns, `symbol TEXT`, `time TIMESTAMP`, `bar_index INTEGER`)

	for _, key := range types.FeatureKeys() {
		columns = append(columns, fmt.Sprintf(`"%s" DOUBLE`, key))
	}

	_, err = l.db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS features (%s)`, strings.Join(columns, ", ")))
	if err != nil {
		return fmt.Errorf("failed to create features table: %w", err)
	}

	return nil
}

// InsertFeatures appends one feature vector to the features table.
func (l *DuckDBLedger) InsertFeatures(vector types.FeatureVector) error {
	keys := types.FeatureKeys()

	columns := make([]string, 0, 3+len(keys))
	values := make([]interface{}, 0, 3+len(keys))

	columns = append(columns, "symbol", "time", "bar_index")
	values = append(values, vector.Symbol, vector.Time, vector.BarIndex)

	for _, key := range keys {
		columns = append(columns, fmt.Sprintf(`"%s"`, key))
		values = append(values, vector.Values[key])
	}

	insertQuery := l.sq.
		Insert("features").
		Columns(columns...).
		Values(values...).
		RunWith(l.db)

	_, err := insertQuery.Exec()
	if err != nil {
		return fmt.Errorf("failed to insert features: %w", err)
	}

	return nil
}

// OpenPosition inserts a freshly opened position. The exit columns stay at
// their zero values until ClosePosition patches them.
func (l *DuckDBLedger) OpenPosition(record types.PositionRecord) error {
	insertQuery := l.sq.
		Insert("positions").
		Columns(
			"position_id", "symbol", "direction", "status",
			"entry_price", "entry_bar_index", "entry_time",
			"size_usd", "size_units", "entry_fees_usd", "atr_at_entry",
			"stop_loss_price", "take_profit_price", "time_stop_bars",
			"trailing_activated", "trailing_stop_price",
			"exit_price", "exit_bar_index", "exit_time", "exit_reason",
			"exit_fees_usd", "bars_held", "pnl_usd", "pnl_pct", "r_multiple",
		).
		Values(
			record.PositionID, record.Symbol, record.Direction, types.PositionStatusOpen,
			record.EntryPrice, record.EntryBarIndex, record.EntryTime,
			record.SizeUSD, record.SizeUnits, record.EntryFeesUSD, record.ATRAtEntry,
			record.StopLossPrice, record.TakeProfitPrice, record.TimeStopBars,
			record.TrailingActivated, record.TrailingStopPrice,
			record.ExitPrice, record.ExitBarIndex, record.ExitTime, record.ExitReason,
			record.ExitFeesUSD, record.BarsHeld, record.PnLUSD, record.PnLPct, record.RMultiple,
		).
		RunWith(l.db)

	_, err := insertQuery.Exec()
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	return nil
}

// UpdateTrailing records the first activation of a trailing stop.
func (l *DuckDBLedger) UpdateTrailing(positionID string, trailingStopPrice float64) error {
	updateQuery := l.sq.
		Update("positions").
		Set("trailing_activated", true).
		Set("trailing_stop_price", trailingStopPrice).
		Where(squirrel.Eq{"position_id": positionID}).
		RunWith(l.db)

	_, err := updateQuery.Exec()
	if err != nil {
		return fmt.Errorf("failed to update trailing stop: %w", err)
	}

	return nil
}

// ClosePosition patches the exit facts onto an open record.
func (l *DuckDBLedger) ClosePosition(record types.PositionRecord) error {
	updateQuery := l.sq.
		Update("positions").
		Set("status", types.PositionStatusClosed).
		Set("trailing_activated", record.TrailingActivated).
		Set("trailing_stop_price", record.TrailingStopPrice).
		Set("exit_price", record.ExitPrice).
		Set("exit_bar_index", record.ExitBarIndex).
		Set("exit_time", record.ExitTime).
		Set("exit_reason", record.ExitReason).
		Set("exit_fees_usd", record.ExitFeesUSD).
		Set("bars_held", record.BarsHeld).
		Set("pnl_usd", record.PnLUSD).
		Set("pnl_pct", record.PnLPct).
		Set("r_multiple", record.RMultiple).
		Where(squirrel.Eq{"position_id": record.PositionID}).
		RunWith(l.db)

	_, err := updateQuery.Exec()
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}

	return nil
}

func scanPositionRecord(scan func(dest ...any) error) (types.PositionRecord, error) {
	var record types.PositionRecord
	err := scan(
		&record.PositionID,
		&record.Symbol,
		&record.Direction,
		&record.Status,
		&record.EntryPrice,
		&record.EntryBarIndex,
		&record.EntryTime,
		&record.SizeUSD,
		&record.SizeUnits,
		&record.EntryFeesUSD,
		&record.ATRAtEntry,
		&record.StopLossPrice,
		&record.TakeProfitPrice,
		&record.TimeStopBars,
		&record.TrailingActivated,
		&record.TrailingStopPrice,
		&record.ExitPrice,
		&record.ExitBarIndex,
		&record.ExitTime,
		&record.ExitReason,
		&record.ExitFeesUSD,
		&record.BarsHeld,
		&record.PnLUSD,
		&record.PnLPct,
		&record.RMultiple,
	)
	return record, err
}

var positionColumns = []string{
	"position_id", "symbol", "direction", "status",
	"entry_price", "entry_bar_index", "entry_time",
	"size_usd", "size_units", "entry_fees_usd", "atr_at_entry",
	"stop_loss_price", "take_profit_price", "time_stop_bars",
	"trailing_activated", "trailing_stop_price",
	"exit_price", "exit_bar_index", "exit_time", "exit_reason",
	"exit_fees_usd", "bars_held", "pnl_usd", "pnl_pct", "r_multiple",
}

// GetPosition returns a position record by its id.
func (l *DuckDBLedger) GetPosition(positionID string) (optional.Option[types.PositionRecord], error) {
	query := l.sq.
		Select(positionColumns...).
		From("positions").
		Where(squirrel.Eq{"position_id": positionID}).
		RunWith(l.db)

	record, err := scanPositionRecord(query.QueryRow().Scan)
	if err != nil {
		// check if error is no rows in result set
		if err == sql.ErrNoRows {
			return optional.None[types.PositionRecord](), nil
		}
		return optional.None[types.PositionRecord](), fmt.Errorf("failed to get position by id: %w", err)
	}
	return optional.Some(record), nil
}

// ListPositions returns all position records ordered by entry time.
func (l *DuckDBLedger) ListPositions() ([]types.PositionRecord, error) {
	selectQuery := l.sq.
		Select(positionColumns...).
		From("positions").
		OrderBy("entry_time ASC", "position_id ASC").
		RunWith(l.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var records []types.PositionRecord
	for rows.Next() {
		record, err := scanPositionRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return records, nil
}

// calculateSymbolResult computes the trade counts and pnl aggregates for a
// symbol over its closed positions.
func (l *DuckDBLedger) calculateSymbolResult(symbol string) (types.SymbolStats, error) {
	// Using raw SQL for CTE query - Squirrel doesn't natively support CTEs well
	query := `
		WITH closed AS (
			SELECT pnl_usd, entry_fees_usd, exit_fees_usd, r_multiple, bars_held
			FROM positions
			WHERE symbol = ? AND status = ?
		)
		SELECT
			COUNT(*) as total_trades,
			SUM(CASE WHEN pnl_usd > 0 THEN 1 ELSE 0 END) as winning_trades,
			SUM(CASE WHEN pnl_usd < 0 THEN 1 ELSE 0 END) as losing_trades,
			CASE WHEN COUNT(*) > 0 THEN CAST(SUM(CASE WHEN pnl_usd > 0 THEN 1 ELSE 0 END) AS DOUBLE) / COUNT(*) ELSE 0 END as win_rate,
			COALESCE(SUM(pnl_usd), 0) as total_pnl,
			COALESCE(SUM(entry_fees_usd + exit_fees_usd), 0) as total_fees,
			COALESCE(AVG(r_multiple), 0) as avg_r_multiple,
			COALESCE(MAX(CASE WHEN pnl_usd > 0 THEN pnl_usd ELSE 0 END), 0) as max_win,
			COALESCE(MIN(CASE WHEN pnl_usd < 0 THEN pnl_usd ELSE 0 END), 0) as max_loss,
			COALESCE(AVG(CAST(bars_held AS DOUBLE)), 0) as avg_bars_held
		FROM closed
	`

	stats := types.SymbolStats{Symbol: symbol}
	err := l.db.QueryRow(query, symbol, types.PositionStatusClosed).Scan(
		&stats.TotalTrades,
		&stats.WinningTrades,
		&stats.LosingTrades,
		&stats.WinRate,
		&stats.TotalPnLUSD,
		&stats.TotalFeesUSD,
		&stats.AvgRMultiple,
		&stats.MaxWinUSD,
		&stats.MaxLossUSD,
		&stats.AvgBarsHeld,
	)
	if err != nil {
		return types.SymbolStats{}, fmt.Errorf("failed to calculate symbol result: %w", err)
	}

	return stats, nil
}

// calculateExitReasonCounts tallies closed positions per exit reason for a symbol.
func (l *DuckDBLedger) calculateExitReasonCounts(symbol string) (types.ExitReasonCounts, error) {
	query := l.sq.
		Select().
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonStopLoss).
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonTakeProfit).
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonTrailingStop).
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonTimeStop).
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonEndOfRun).
		Column("SUM(CASE WHEN exit_reason = ? THEN 1 ELSE 0 END)", types.ExitReasonManual).
		From("positions").
		Where(squirrel.Eq{"symbol": symbol, "status": types.PositionStatusClosed}).
		RunWith(l.db)

	var counts types.ExitReasonCounts
	err := query.QueryRow().Scan(
		&counts.StopLoss,
		&counts.TakeProfit,
		&counts.TrailingStop,
		&counts.TimeStop,
		&counts.EndOfRun,
		&counts.Manual,
	)
	if err != nil {
		return types.ExitReasonCounts{}, fmt.Errorf("failed to calculate exit reason counts: %w", err)
	}

	return counts, nil
}

// GetStats returns per-symbol statistics over the closed positions.
func (l *DuckDBLedger) GetStats() ([]types.SymbolStats, error) {
	selectQuery := l.sq.
		Select("DISTINCT symbol").
		From("positions").
		Where(squirrel.Eq{"status": types.PositionStatusClosed}).
		OrderBy("symbol").
		RunWith(l.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to get unique symbols: %w", err)
	}
	defer rows.Close()

	var stats []types.SymbolStats
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}

		symbolStats, err := l.calculateSymbolResult(symbol)
		if err != nil {
			return nil, err
		}

		counts, err := l.calculateExitReasonCounts(symbol)
		if err != nil {
			return nil, err
		}
		symbolStats.ExitReasons = counts

		stats = append(stats, symbolStats)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return stats, nil
}

// Cleanup resets the database state
func (l *DuckDBLedger) Cleanup() error {
	// Use raw SQL for dropping tables - Squirrel doesn't have DROP syntax
	_, err := l.db.Exec(`
		DROP TABLE IF EXISTS positions;
		DROP TABLE IF EXISTS features;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	// Reinitialize
	return l.Initialize()
}

// Write saves the position records to a Parquet file in the specified directory
func (l *DuckDBLedger) Write(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Export positions to Parquet - using raw SQL as Squirrel doesn't support COPY
	positionsPath := filepath.Join(path, "positions.parquet")
	_, err := l.db.Exec(fmt.Sprintf(`COPY positions TO '%s' (FORMAT PARQUET)`, positionsPath))
	if err != nil {
		return fmt.Errorf("failed to export positions to Parquet: %w", err)
	}

	// Features go out as CSV so downstream model tooling can read them directly
	featuresPath := filepath.Join(path, "features.csv")
	_, err = l.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM features ORDER BY time ASC, symbol ASC) TO '%s' (FORMAT CSV, HEADER)`, featuresPath))
	if err != nil {
		return fmt.Errorf("failed to export features to CSV: %w", err)
	}

	l.logger.Info("Successfully exported run artifacts",
		zap.String("positions", positionsPath),
		zap.String("features", featuresPath),
	)
	return nil
}

// Close releases the underlying database.
func (l *DuckDBLedger) Close() error {
	return l.db.Close()
}
