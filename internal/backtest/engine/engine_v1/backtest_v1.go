package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/backtest/engine"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/datasource"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/ledger"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/pipeline"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/quantra-lab/quantra/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	dataPaths     []string
	resultsFolder string
	log           *logger.Logger
	datasource    datasource.DataSource
	ledger        *ledger.DuckDBLedger
	rule          Rule
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        EmptyConfig(),
		dataPaths:     nil,
		resultsFolder: "",
		log:           nil,
		datasource:    nil,
		ledger:        nil,
		rule:          nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	// parse the config
	err := yaml.Unmarshal([]byte(config), &b.config)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	// initialize the logger
	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	b.log.Debug("Backtest engine initialized",
		zap.String("config", config),
	)

	// initialize the position ledger
	b.ledger = ledger.NewDuckDBLedger(b.log)
	if b.ledger == nil {
		return errors.New(errors.ErrCodeLedgerWriteFailed, "failed to create position ledger")
	}

	if err := b.ledger.Initialize(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to initialize ledger", err)
	}

	b.rule = NewDonchianBreakoutRule()

	return nil
}

// LoadRule replaces the default entry rule.
func (b *BacktestEngineV1) LoadRule(rule Rule) error {
	if rule == nil {
		return errors.New(errors.ErrCodeMissingParameter, "rule is required")
	}

	b.rule = rule
	b.log.Debug("Rule loaded",
		zap.String("rule", rule.Name()),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set data path",
			zap.String("path", path),
			zap.Error(err),
		)

		return err
	}

	// Convert all paths to absolute paths
	absolutePaths := make([]string, len(files))

	for i, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			b.log.Error("Failed to get absolute path",
				zap.String("path", file),
				zap.Error(err),
			)

			return err
		}

		absolutePaths[i] = absPath
	}

	b.dataPaths = absolutePaths
	b.log.Debug("Data paths set",
		zap.Strings("files", absolutePaths),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(dataSource datasource.DataSource) error {
	b.datasource = dataSource

	return nil
}

// symbolState is the per-symbol replay state of one run.
type symbolState struct {
	pipeline *pipeline.Pipeline
	barIndex int
	pending  optional.Option[EntryIntent]
	lastBar  types.Bar
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, onProcessData optional.Option[engine.OnProcessDataCallback]) error {
	if err := b.preRunCheck(); err != nil {
		return err
	}

	// clean the results folder
	if _, err := os.Stat(b.resultsFolder); err == nil {
		os.RemoveAll(b.resultsFolder)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return fmt.Errorf("failed to create results folder: %w", err)
	}

	for _, dataPath := range b.dataPaths {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.runDataPath(ctx, dataPath, onProcessData); err != nil {
			return err
		}
	}

	return nil
}

// runDataPath replays one data file: features are computed on every bar
// close, entries decided there fill on the next bar's open, and everything
// still open at the end is liquidated at the last close.
func (b *BacktestEngineV1) runDataPath(ctx context.Context, dataPath string, onProcessData optional.Option[engine.OnProcessDataCallback]) error {
	runID := uuid.New().String()

	if err := b.ledger.Initialize(); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to initialize ledger", err)
	}

	if err := b.datasource.Initialize(dataPath); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to initialize data source for %s", dataPath)
	}

	count, err := b.datasource.Count(b.config.StartTime, b.config.EndTime)
	if err != nil {
		return fmt.Errorf("failed to get data count: %w", err)
	}

	b.log.Debug("Running backtest",
		zap.String("run_id", runID),
		zap.String("rule", b.rule.Name()),
		zap.String("data", dataPath),
		zap.Int("bars", count),
	)

	manager := NewPositionManager(b.config.Fees, b.ledger, b.log)
	symbols := make(map[string]*symbolState)
	currentCount := 0

	for bar, err := range b.datasource.ReadAll(b.config.StartTime, b.config.EndTime) {
		if err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		state, ok := symbols[bar.Symbol]
		if !ok {
			pl, err := pipeline.NewPipeline(bar.Symbol, b.config.PipelineConfig(), b.log)
			if err != nil {
				return err
			}

			state = &symbolState{
				pipeline: pl,
				barIndex: 0,
				pending:  optional.None[EntryIntent](),
				lastBar:  types.Bar{},
			}
			symbols[bar.Symbol] = state
		}

		if err := b.processBar(bar, state, manager); err != nil {
			return err
		}

		state.lastBar = bar
		state.barIndex++
		currentCount++

		if onProcessData.IsSome() {
			if err := onProcessData.Unwrap()(currentCount, count); err != nil {
				return err
			}
		}
	}

	// Liquidate whatever is still open at the last seen bar per symbol
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		state := symbols[name]
		if _, err := manager.CloseAllPositions(name, state.lastBar.Close, state.barIndex-1, state.lastBar.Time); err != nil {
			return err
		}
	}

	if err := b.writeResults(runID, dataPath); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if err := b.ledger.Cleanup(); err != nil {
		return fmt.Errorf("failed to cleanup run: %w", err)
	}

	return nil
}

// processBar runs the bar-close sequence: fill the pending entry at this
// bar's open, advance open positions against this bar, then compute features
// and let the rule decide the next entry.
func (b *BacktestEngineV1) processBar(bar types.Bar, state *symbolState, manager *PositionManager) error {
	if state.pending.IsSome() {
		request := buildOpenRequest(state.pending.Unwrap(), b.config.Rule, bar, state.barIndex)
		state.pending = optional.None[EntryIntent]()

		if _, err := manager.OpenPosition(request); err != nil {
			return err
		}
	}

	if _, err := manager.UpdatePositions(bar, state.barIndex); err != nil {
		return err
	}

	portfolio := types.PortfolioContext{
		OpenPositions:  float64(manager.OpenCount()),
		ExposureFrac:   b.exposureFrac(manager),
		Drawdown24hBps: 0,
		HaltFlag:       0,
	}

	features := state.pipeline.OnBar(bar, portfolio)
	if features.IsNone() {
		return nil
	}

	vector := features.Unwrap()

	if err := b.ledger.InsertFeatures(vector); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record features", err)
	}

	if manager.OpenCountForSymbol(bar.Symbol) < b.config.Rule.MaxOpenPositions {
		state.pending = b.rule.Evaluate(vector, bar)
	}

	return nil
}

func (b *BacktestEngineV1) exposureFrac(manager *PositionManager) float64 {
	capacity := float64(b.config.Rule.MaxOpenPositions) * b.config.Rule.SizeUSD
	if capacity <= 0 {
		return 0
	}

	return manager.OpenNotionalUSD() / capacity
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

func (b *BacktestEngineV1) writeResults(runID string, dataPath string) error {
	resultFolderPath := filepath.Join(b.resultsFolder, getResultFolderName(dataPath, b.rule.Name()))
	if err := os.MkdirAll(resultFolderPath, 0755); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	symbolStats, err := b.ledger.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	stats := types.RunStats{
		ID:                   runID,
		Timestamp:            time.Now(),
		DataPath:             dataPath,
		FeatureSchemaVersion: types.FeatureSchemaVersion,
		Symbols:              symbolStats,
	}

	if err := types.WriteRunStats(filepath.Join(resultFolderPath, "stats.yaml"), stats); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	if err := b.ledger.Write(resultFolderPath); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	return nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.datasource == nil {
		b.log.Error("No data source set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no data source set")
	}

	if len(b.dataPaths) == 0 {
		b.log.Error("No data paths loaded")

		return errors.New(errors.ErrCodeBacktestNoDataPaths, "no data paths loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestNoResultsDir, "no results folder set")
	}

	if b.rule == nil {
		b.log.Error("No rule loaded")

		return errors.New(errors.ErrCodeBacktestRunFailed, "no rule loaded")
	}

	return nil
}

func getResultFolderName(dataPath string, ruleName string) string {
	base := filepath.Base(dataPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return fmt.Sprintf("%s_%s", base, ruleName)
}
