package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/pkg/errors"
)

type Direction string

type ExitReason string

type PositionStatus string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

const (
	ExitReasonStopLoss     ExitReason = "stop_loss"
	ExitReasonTakeProfit   ExitReason = "take_profit"
	ExitReasonTrailingStop ExitReason = "trailing_stop"
	ExitReasonTimeStop     ExitReason = "time_stop"
	ExitReasonEndOfRun     ExitReason = "end_of_run"
	ExitReasonManual       ExitReason = "manual"
)

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// TrailingConfig configures a trailing stop. Its presence on an ExitSpec means
// trailing is enabled; absence means the position uses only the fixed stops.
type TrailingConfig struct {
	// ActivationPrice is the level price must reach before the trailing stop
	// starts tracking.
	ActivationPrice float64 `yaml:"activation_price" json:"activation_price" validate:"required,gt=0"`
	// DistanceATR is the trailing distance expressed in multiples of the ATR
	// captured at entry.
	DistanceATR float64 `yaml:"distance_atr" json:"distance_atr" validate:"required,gt=0"`
}

// ExitSpec is the immutable per-position exit contract, set once at open.
type ExitSpec struct {
	StopLossPrice   float64                         `yaml:"stop_loss_price" json:"stop_loss_price" validate:"required,gt=0"`
	TakeProfitPrice float64                         `yaml:"take_profit_price" json:"take_profit_price" validate:"required,gt=0"`
	TimeStopBars    int                             `yaml:"time_stop_bars" json:"time_stop_bars" validate:"required,gt=0"`
	Trailing        optional.Option[TrailingConfig] `yaml:"trailing" json:"trailing"`
}

// Validate validates the ExitSpec struct.
func (s *ExitSpec) Validate() error {
	validate := validator.New()

	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidExitSpec, "invalid exit spec", err)
	}

	if s.Trailing.IsSome() {
		trailing := s.Trailing.Unwrap()
		if err := validate.Struct(trailing); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidExitSpec, "invalid trailing config", err)
		}
	}

	return nil
}

// ExitResult describes a fired exit. It is produced by the position state
// machine and consumed immediately by the manager; the ledger record is the
// durable artifact, not this value.
type ExitResult struct {
	Reason       ExitReason
	TriggerPrice float64
	BarIndex     int
	Time         time.Time
	BarsHeld     int
	HighestHigh  float64
	LowestLow    float64
	// TrailingActivated reports whether the trailing stop was live at exit.
	TrailingActivated bool
	// TrailingStopPrice is the trailing level at exit, None when trailing was
	// disabled or never activated.
	TrailingStopPrice optional.Option[float64]
}

// OpenPositionRequest carries everything the manager needs to open a position.
// NextOpen is the open of the bar following the decision bar; fills are
// simulated against it.
type OpenPositionRequest struct {
	Symbol     string    `yaml:"symbol" json:"symbol" validate:"required"`
	Direction  Direction `yaml:"direction" json:"direction" validate:"required,oneof=long short"`
	NextOpen   float64   `yaml:"next_open" json:"next_open" validate:"required,gt=0"`
	SizeUSD    float64   `yaml:"size_usd" json:"size_usd" validate:"required,gt=0"`
	ATRAtEntry float64   `yaml:"atr_at_entry" json:"atr_at_entry" validate:"gte=0"`
	Spec       ExitSpec  `yaml:"spec" json:"spec" validate:"required"`
	BarIndex   int       `yaml:"bar_index" json:"bar_index" validate:"gte=0"`
	Time       time.Time `yaml:"time" json:"time" validate:"required"`
}

// Validate validates the OpenPositionRequest struct.
func (r *OpenPositionRequest) Validate() error {
	validate := validator.New()

	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeOpenPositionFailed, "invalid open position request", err)
	}

	return r.Spec.Validate()
}

// PositionRecord is the ledger-facing view of a position: the entry facts
// written at open, trailing state updated while the position lives, and the
// exit facts written at close.
type PositionRecord struct {
	PositionID string         `yaml:"position_id" json:"position_id" csv:"position_id"`
	Symbol     string         `yaml:"symbol" json:"symbol" csv:"symbol"`
	Direction  Direction      `yaml:"direction" json:"direction" csv:"direction"`
	Status     PositionStatus `yaml:"status" json:"status" csv:"status"`

	EntryPrice    float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	EntryBarIndex int       `yaml:"entry_bar_index" json:"entry_bar_index" csv:"entry_bar_index"`
	EntryTime     time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	SizeUSD       float64   `yaml:"size_usd" json:"size_usd" csv:"size_usd"`
	SizeUnits     float64   `yaml:"size_units" json:"size_units" csv:"size_units"`
	EntryFeesUSD  float64   `yaml:"entry_fees_usd" json:"entry_fees_usd" csv:"entry_fees_usd"`
	ATRAtEntry    float64   `yaml:"atr_at_entry" json:"atr_at_entry" csv:"atr_at_entry"`

	StopLossPrice   float64 `yaml:"stop_loss_price" json:"stop_loss_price" csv:"stop_loss_price"`
	TakeProfitPrice float64 `yaml:"take_profit_price" json:"take_profit_price" csv:"take_profit_price"`
	TimeStopBars    int     `yaml:"time_stop_bars" json:"time_stop_bars" csv:"time_stop_bars"`

	TrailingActivated bool    `yaml:"trailing_activated" json:"trailing_activated" csv:"trailing_activated"`
	TrailingStopPrice float64 `yaml:"trailing_stop_price" json:"trailing_stop_price" csv:"trailing_stop_price"`

	ExitPrice    float64    `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	ExitBarIndex int        `yaml:"exit_bar_index" json:"exit_bar_index" csv:"exit_bar_index"`
	ExitTime     time.Time  `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	ExitReason   ExitReason `yaml:"exit_reason" json:"exit_reason" csv:"exit_reason"`
	ExitFeesUSD  float64    `yaml:"exit_fees_usd" json:"exit_fees_usd" csv:"exit_fees_usd"`
	BarsHeld     int        `yaml:"bars_held" json:"bars_held" csv:"bars_held"`

	PnLUSD    float64 `yaml:"pnl_usd" json:"pnl_usd" csv:"pnl_usd"`
	PnLPct    float64 `yaml:"pnl_pct" json:"pnl_pct" csv:"pnl_pct"`
	RMultiple float64 `yaml:"r_multiple" json:"r_multiple" csv:"r_multiple"`
}
