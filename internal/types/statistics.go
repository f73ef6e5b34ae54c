package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExitReasonCounts tallies closed positions per exit reason.
type ExitReasonCounts struct {
	StopLoss     int `yaml:"stop_loss"`
	TakeProfit   int `yaml:"take_profit"`
	TrailingStop int `yaml:"trailing_stop"`
	TimeStop     int `yaml:"time_stop"`
	EndOfRun     int `yaml:"end_of_run"`
	Manual       int `yaml:"manual"`
}

// SymbolStats summarizes the closed positions of one symbol.
type SymbolStats struct {
	// Symbol of the trading pair.
	Symbol string `yaml:"symbol"`
	// Count of all closed positions.
	TotalTrades int `yaml:"total_trades"`
	// Count of closed positions with positive net pnl.
	WinningTrades int `yaml:"winning_trades"`
	// Count of closed positions with negative net pnl.
	LosingTrades int `yaml:"losing_trades"`
	// Win rate over closed positions.
	WinRate float64 `yaml:"win_rate"`
	// Sum of net pnl over closed positions.
	TotalPnLUSD float64 `yaml:"total_pnl_usd"`
	// Sum of entry and exit fees.
	TotalFeesUSD float64 `yaml:"total_fees_usd"`
	// Average R-multiple over closed positions.
	AvgRMultiple float64 `yaml:"avg_r_multiple"`
	// Largest single winning pnl.
	MaxWinUSD float64 `yaml:"max_win_usd"`
	// Largest single losing pnl (negative).
	MaxLossUSD float64 `yaml:"max_loss_usd"`
	// Average bars held across closed positions.
	AvgBarsHeld float64 `yaml:"avg_bars_held"`
	// Per-reason exit counts.
	ExitReasons ExitReasonCounts `yaml:"exit_reasons"`
}

// RunStats is the summary artifact of one backtest run.
type RunStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp"`
	// DataPath is the path to the market data file used for this run.
	DataPath string `yaml:"data_path"`
	// FeatureSchemaVersion identifies the feature key set emitted.
	FeatureSchemaVersion string `yaml:"feature_schema_version"`
	// Symbols holds per-symbol trade summaries.
	Symbols []SymbolStats `yaml:"symbols"`
}

// WriteRunStats writes run statistics to a YAML file.
func WriteRunStats(path string, stats RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats to file: %w", err)
	}

	return nil
}
