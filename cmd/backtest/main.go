package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/backtest/engine"
	backtest "github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/datasource"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// defaultConfigYAML mirrors backtest.DefaultConfig for runs without a config
// file.
const defaultConfigYAML = `
fees:
  taker_fee_bps: 12.5
  maker_fee_bps: 6.0
  default_spread_bps: 2.0
warmup_bars: 96
rule:
  size_usd: 1000
  stop_atr: 2.0
  take_profit_atr: 4.0
  time_stop_bars: 48
  trailing_activation_atr: 2.0
  trailing_distance_atr: 2.0
  max_open_positions: 1
`

// runAction replays the given data files through the backtest engine.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataGlob := cmd.String("data")
	output := cmd.String("output")

	configContent := defaultConfigYAML

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		configContent = string(content)
	}

	backtester := backtest.NewBacktestEngineV1()
	if err := backtester.Initialize(configContent); err != nil {
		return fmt.Errorf("failed to initialize backtest engine: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	source, err := datasource.NewDataSource(":memory:", log)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer source.Close()

	if err := backtester.SetDataSource(source); err != nil {
		return err
	}

	if err := backtester.SetDataPath(dataGlob); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(output); err != nil {
		return err
	}

	bar := progressbar.Default(-1)
	bar.Describe("Processing bars")

	callback := engine.OnProcessDataCallback(func(current int, total int) error {
		if bar.GetMax() != total {
			bar.ChangeMax(total)
		}

		return bar.Set(current)
	})

	if err := backtester.Run(ctx, optional.Some(callback)); err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Printf("\nResults written to %s\n", output)

	return nil
}

// schemaAction prints the JSON schema of the engine configuration.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	backtester := backtest.NewBacktestEngineV1()

	schema, err := backtester.GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay historical bars through the feature pipeline and position simulation",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest over one or more data files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine YAML config; defaults apply when omitted",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Market data file or glob pattern (CSV or Parquet)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Results output directory",
						Value:    "results",
						Required: false,
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the engine configuration",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
