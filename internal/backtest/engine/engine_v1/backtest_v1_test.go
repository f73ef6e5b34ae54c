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
	backtestengine "github.com/quantra-lab/quantra/internal/backtest/engine"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/datasource"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

const testEngineConfig = `
fees:
  taker_fee_bps: 12.5
  maker_fee_bps: 6.0
  default_spread_bps: 1.5
warmup_bars: 96
rule:
  size_usd: 1000
  stop_atr: 2.0
  take_profit_atr: 4.0
  time_stop_bars: 10
  trailing_activation_atr: 2.0
  trailing_distance_atr: 2.0
  max_open_positions: 1
`

// alwaysLongRule enters long on every bar it is allowed to.
type alwaysLongRule struct{}

func (r *alwaysLongRule) Name() string { return "always_long" }

func (r *alwaysLongRule) Evaluate(features types.FeatureVector, bar types.Bar) optional.Option[EntryIntent] {
	atr := features.Get("atr_14")
	if atr <= 0 {
		return optional.None[EntryIntent]()
	}

	return optional.Some(EntryIntent{
		Symbol:    bar.Symbol,
		Direction: types.DirectionLong,
		ATR:       atr,
	})
}

type BacktestEngineV1TestSuite struct {
	suite.Suite
	csvPath string
}

func TestBacktestEngineV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestEngineV1TestSuite))
}

func (suite *BacktestEngineV1TestSuite) SetupSuite() {
	// A drifting price series long enough to clear warmup with room to trade
	var sb strings.Builder
	sb.WriteString("time,symbol,open,high,low,close,volume\n")

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prevClose := 100.0

	for i := 0; i < 200; i++ {
		closePrice := 100.0 + 0.1*float64(i)
		high := closePrice + 0.5
		low := prevClose - 0.5

		sb.WriteString(fmt.Sprintf("%s,BTCUSDT,%.4f,%.4f,%.4f,%.4f,%.2f\n",
			start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"),
			prevClose, high, low, closePrice, 10.0))

		prevClose = closePrice
	}

	suite.csvPath = filepath.Join(suite.T().TempDir(), "bars.csv")
	suite.Require().NoError(os.WriteFile(suite.csvPath, []byte(sb.String()), 0644))
}

func (suite *BacktestEngineV1TestSuite) newEngine(resultsFolder string) backtestengine.Engine {
	backtester := NewBacktestEngineV1()
	suite.Require().NoError(backtester.Initialize(testEngineConfig))

	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	source, err := datasource.NewDataSource(":memory:", log)
	suite.Require().NoError(err)

	suite.Require().NoError(backtester.SetDataSource(source))
	suite.Require().NoError(backtester.SetDataPath(suite.csvPath))
	suite.Require().NoError(backtester.SetResultsFolder(resultsFolder))

	return backtester
}

func (suite *BacktestEngineV1TestSuite) TestInitializeRejectsBadConfig() {
	backtester := NewBacktestEngineV1()
	suite.Error(backtester.Initialize("warmup_bars: -5"))
}

func (suite *BacktestEngineV1TestSuite) TestPreRunChecks() {
	backtester := NewBacktestEngineV1()
	suite.Require().NoError(backtester.Initialize(testEngineConfig))

	err := backtester.Run(context.Background(), optional.None[backtestengine.OnProcessDataCallback]())
	suite.Error(err)
}

func (suite *BacktestEngineV1TestSuite) TestRunProducesArtifacts() {
	resultsFolder := suite.T().TempDir()
	backtester := suite.newEngine(resultsFolder)

	v1, ok := backtester.(*BacktestEngineV1)
	suite.Require().True(ok)
	suite.Require().NoError(v1.LoadRule(&alwaysLongRule{}))

	barsSeen := 0
	callback := backtestengine.OnProcessDataCallback(func(current int, total int) error {
		barsSeen = current
		suite.Equal(200, total)

		return nil
	})

	suite.Require().NoError(backtester.Run(context.Background(), optional.Some(callback)))
	suite.Equal(200, barsSeen)

	resultFolder := filepath.Join(resultsFolder, "bars_always_long")
	statsPath := filepath.Join(resultFolder, "stats.yaml")
	suite.Require().FileExists(statsPath)
	suite.Require().FileExists(filepath.Join(resultFolder, "positions.parquet"))
	suite.Require().FileExists(filepath.Join(resultFolder, "features.csv"))

	content, err := os.ReadFile(statsPath)
	suite.Require().NoError(err)

	var stats types.RunStats
	suite.Require().NoError(yaml.Unmarshal(content, &stats))
	suite.Equal(types.FeatureSchemaVersion, stats.FeatureSchemaVersion)
	suite.Require().Len(stats.Symbols, 1)
	suite.Equal("BTCUSDT", stats.Symbols[0].Symbol)
	// Warmup eats 96 bars; the remainder must produce trades
	suite.Greater(stats.Symbols[0].TotalTrades, 0)
}

func (suite *BacktestEngineV1TestSuite) TestRunHonorsContextCancellation() {
	resultsFolder := suite.T().TempDir()
	backtester := suite.newEngine(resultsFolder)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := backtester.Run(ctx, optional.None[backtestengine.OnProcessDataCallback]())
	suite.ErrorIs(err, context.Canceled)
}

func (suite *BacktestEngineV1TestSuite) TestGetConfigSchema() {
	backtester := NewBacktestEngineV1()
	suite.Require().NoError(backtester.Initialize(testEngineConfig))

	schema, err := backtester.GetConfigSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "backtest-engine-v1-config")
}
