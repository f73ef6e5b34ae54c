package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/types"
)

// DataSource streams historical bars in ascending time order. Implementations
// must yield bars sorted by time so the consumer can assign bar indexes.
type DataSource interface {
	// Initialize loads the market data file at the given path. CSV and
	// Parquet files are supported.
	Initialize(path string) error
	// ReadAll reads all the bars from the data source and yields them to the
	// caller, optionally bounded by an inclusive time range.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// ReadLastBar reads the most recent bar for a specific symbol.
	ReadLastBar(symbol string) (types.Bar, error)
	// Count returns the number of bars in the data source.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources.
	Close() error
}
