package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/datasource"
)

// OnProcessDataCallback is called for each bar processed. Returning an error
// aborts the run.
type OnProcessDataCallback func(current int, total int) error

type Engine interface {
	// Initialize the engine with the given YAML configuration content.
	Initialize(config string) error
	// SetDataPath sets the path to the market data files. Accepts glob
	// patterns for batch loading (e.g., "data/*.csv").
	SetDataPath(path string) error
	// SetResultsFolder sets the output directory for saving run results.
	SetResultsFolder(folder string) error
	// SetDataSource sets the data source for the engine.
	SetDataSource(dataSource datasource.DataSource) error
	// Run replays every data file through the feature pipeline and position
	// simulation. The context can be used to cancel the run.
	Run(ctx context.Context, onProcessData optional.Option[OnProcessDataCallback]) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
