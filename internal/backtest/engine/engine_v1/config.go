package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/pipeline"
	"github.com/quantra-lab/quantra/pkg/errors"
)

// RuleConfig parameterizes the entry rule and the exit contract it attaches
// to every position it opens. The ATR-relative fields are multiples of the
// ATR captured on the decision bar.
type RuleConfig struct {
	SizeUSD               float64 `yaml:"size_usd" json:"size_usd" validate:"required,gt=0" jsonschema:"title=Position Size,description=Notional size of each position in USD,minimum=0"`
	StopATR               float64 `yaml:"stop_atr" json:"stop_atr" validate:"required,gt=0" jsonschema:"title=Stop Distance,description=Stop loss distance in ATR multiples"`
	TakeProfitATR         float64 `yaml:"take_profit_atr" json:"take_profit_atr" validate:"required,gt=0" jsonschema:"title=Take Profit Distance,description=Take profit distance in ATR multiples"`
	TimeStopBars          int     `yaml:"time_stop_bars" json:"time_stop_bars" validate:"required,gt=0" jsonschema:"title=Time Stop,description=Maximum holding period in bars"`
	TrailingActivationATR float64 `yaml:"trailing_activation_atr" json:"trailing_activation_atr" validate:"gte=0" jsonschema:"title=Trailing Activation,description=Profit distance in ATR multiples before the trailing stop arms; zero disables trailing"`
	TrailingDistanceATR   float64 `yaml:"trailing_distance_atr" json:"trailing_distance_atr" validate:"gte=0" jsonschema:"title=Trailing Distance,description=Trailing stop distance in ATR multiples"`
	MaxOpenPositions      int     `yaml:"max_open_positions" json:"max_open_positions" validate:"required,gt=0" jsonschema:"title=Max Open Positions,description=Maximum simultaneously open positions per symbol"`
}

type BacktestEngineV1Config struct {
	Fees       FeesConfig                 `yaml:"fees" json:"fees" jsonschema:"title=Fees,description=Fee and spread assumptions for fill simulation"`
	WarmupBars int                        `yaml:"warmup_bars" json:"warmup_bars" validate:"required,gt=0" jsonschema:"title=Warmup Bars,description=Bars consumed before features are emitted,minimum=1"`
	Rule       RuleConfig                 `yaml:"rule" json:"rule" jsonschema:"title=Rule,description=Entry rule and exit contract parameters"`
	StartTime  optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime    optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		Fees       FeesConfig `yaml:"fees"`
		WarmupBars int        `yaml:"warmup_bars"`
		Rule       RuleConfig `yaml:"rule"`
		StartTime  *time.Time `yaml:"start_time"`
		EndTime    *time.Time `yaml:"end_time"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.Fees = config.Fees
	c.WarmupBars = config.WarmupBars
	c.Rule = config.Rule
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate validates the config.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid engine config", err)
	}

	if c.Rule.TrailingActivationATR > 0 && c.Rule.TrailingDistanceATR <= 0 {
		return errors.New(errors.ErrCodeBacktestConfigError, "trailing_distance_atr must be positive when trailing is enabled")
	}

	return nil
}

// PipelineConfig derives the feature pipeline config from the engine config.
func (c *BacktestEngineV1Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		WarmupBars:       c.WarmupBars,
		DefaultSpreadBps: c.Fees.DefaultSpreadBps,
		SpreadBps:        c.Fees.SpreadBps,
	}
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a config with conservative fee assumptions and the
// standard warmup.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		Fees: FeesConfig{
			TakerFeeBps:      12.5,
			MakerFeeBps:      6.0,
			DefaultSpreadBps: 2.0,
			SpreadBps:        map[string]float64{},
		},
		WarmupBars: pipeline.DefaultWarmupBars,
		Rule: RuleConfig{
			SizeUSD:               1000,
			StopATR:               2.0,
			TakeProfitATR:         4.0,
			TimeStopBars:          48,
			TrailingActivationATR: 2.0,
			TrailingDistanceATR:   2.0,
			MaxOpenPositions:      1,
		},
		StartTime: optional.None[time.Time](),
		EndTime:   optional.None[time.Time](),
	}
}

// EmptyConfig returns a BacktestEngineV1Config with zero values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		Fees:       FeesConfig{},
		WarmupBars: 0,
		Rule:       RuleConfig{},
		StartTime:  optional.None[time.Time](),
		EndTime:    optional.None[time.Time](),
	}
}
