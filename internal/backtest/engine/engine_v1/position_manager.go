package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/quantra-lab/quantra/internal/backtest/engine/engine_v1/ledger"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/quantra-lab/quantra/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const bpsDenominator = 10000.0

// rEpsilon guards the R-multiple denominator against degenerate stop
// distances.
const rEpsilon = 1e-12

// FeesConfig describes the fill simulation costs. Entries pay the taker fee
// and cross half the spread against themselves; exits pay the maker fee and
// cross the other half.
type FeesConfig struct {
	TakerFeeBps      float64            `yaml:"taker_fee_bps" json:"taker_fee_bps" validate:"gte=0"`
	MakerFeeBps      float64            `yaml:"maker_fee_bps" json:"maker_fee_bps" validate:"gte=0"`
	DefaultSpreadBps float64            `yaml:"default_spread_bps" json:"default_spread_bps" validate:"gte=0"`
	SpreadBps        map[string]float64 `yaml:"spread_bps" json:"spread_bps"`
}

// SpreadFor returns the spread for a symbol, falling back to the default.
func (c FeesConfig) SpreadFor(symbol string) float64 {
	if spread, ok := c.SpreadBps[symbol]; ok {
		return spread
	}

	return c.DefaultSpreadBps
}

// PositionManager owns the open positions of one run: it simulates fills,
// drives every position's exit state machine once per bar, and mirrors every
// lifecycle event into the ledger.
type PositionManager struct {
	fees   FeesConfig
	ledger ledger.Ledger
	logger *logger.Logger
	open   map[string]*Position
}

func NewPositionManager(fees FeesConfig, ledger ledger.Ledger, logger *logger.Logger) *PositionManager {
	return &PositionManager{
		fees:   fees,
		ledger: ledger,
		logger: logger,
		open:   make(map[string]*Position),
	}
}

// OpenPosition simulates an entry fill at the request's next open and
// registers the resulting position. Longs fill above the open by half the
// spread, shorts below; the entry fee is taker on the requested notional.
func (m *PositionManager) OpenPosition(request types.OpenPositionRequest) (*Position, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	spreadFrac := decimal.NewFromFloat(m.fees.SpreadFor(request.Symbol)).Div(decimal.NewFromFloat(bpsDenominator))

	var fillFactor decimal.Decimal
	if request.Direction == types.DirectionLong {
		fillFactor = decimal.NewFromInt(1).Add(spreadFrac)
	} else {
		fillFactor = decimal.NewFromInt(1).Sub(spreadFrac)
	}

	entryDec := decimal.NewFromFloat(request.NextOpen).Mul(fillFactor)
	entryPrice, _ := entryDec.Float64()

	sizeDec := decimal.NewFromFloat(request.SizeUSD)
	entryFees, _ := sizeDec.Mul(decimal.NewFromFloat(m.fees.TakerFeeBps)).Div(decimal.NewFromFloat(bpsDenominator)).Float64()
	sizeUnits, _ := sizeDec.Div(entryDec).Float64()

	position, err := NewPosition(uuid.New().String(), request, entryPrice, sizeUnits, entryFees)
	if err != nil {
		return nil, err
	}

	if err := m.ledger.OpenPosition(m.buildOpenRecord(position)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record opened position", err)
	}

	m.open[position.PositionID] = position

	m.logger.Debug("Opened position",
		zap.String("position_id", position.PositionID),
		zap.String("symbol", position.Symbol),
		zap.String("direction", string(position.Direction)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("size_units", sizeUnits),
	)

	return position, nil
}

// UpdatePositions advances every open position for the bar's symbol and
// closes the ones whose exits fired. Positions are visited in position id
// order so a run replays identically. Returns the closed records.
func (m *PositionManager) UpdatePositions(bar types.Bar, barIndex int) ([]types.PositionRecord, error) {
	ids := make([]string, 0, len(m.open))
	for id, position := range m.open {
		if position.Symbol == bar.Symbol {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var closed []types.PositionRecord
	for _, id := range ids {
		position := m.open[id]
		wasActivated := position.TrailingActivated()

		result := position.UpdateBar(bar.High, bar.Low, bar.Close, barIndex, bar.Time)

		if position.IsOpen() && position.TrailingActivated() && !wasActivated {
			if err := m.ledger.UpdateTrailing(id, position.TrailingStopPrice().Unwrap()); err != nil {
				return nil, errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record trailing activation", err)
			}
		}

		if result.IsSome() {
			record, err := m.closePosition(position, result.Unwrap())
			if err != nil {
				return nil, err
			}
			closed = append(closed, record)
		}
	}

	return closed, nil
}

// CloseAllPositions liquidates every open position for a symbol at the given
// close, used at the end of a run.
func (m *PositionManager) CloseAllPositions(symbol string, closePrice float64, barIndex int, timestamp time.Time) ([]types.PositionRecord, error) {
	ids := make([]string, 0, len(m.open))
	for id, position := range m.open {
		if position.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var closed []types.PositionRecord
	for _, id := range ids {
		position := m.open[id]
		result := position.ForceClose(closePrice, barIndex, timestamp, types.ExitReasonEndOfRun)

		record, err := m.closePosition(position, result)
		if err != nil {
			return nil, err
		}
		closed = append(closed, record)
	}

	return closed, nil
}

// GetOpenPositions returns the open positions ordered by position id.
func (m *PositionManager) GetOpenPositions() []*Position {
	ids := make([]string, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	positions := make([]*Position, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, m.open[id])
	}

	return positions
}

// OpenCount returns the number of open positions.
func (m *PositionManager) OpenCount() int {
	return len(m.open)
}

// OpenCountForSymbol returns the number of open positions for one symbol.
func (m *PositionManager) OpenCountForSymbol(symbol string) int {
	count := 0
	for _, position := range m.open {
		if position.Symbol == symbol {
			count++
		}
	}

	return count
}

// OpenNotionalUSD returns the summed entry notional of all open positions.
func (m *PositionManager) OpenNotionalUSD() float64 {
	total := 0.0
	for _, position := range m.open {
		total += position.SizeUSD
	}

	return total
}

// closePosition simulates the exit fill at the trigger price, settles pnl and
// fees, and writes the closed record to the ledger. Longs give back half the
// spread on exit, shorts pay it; the exit fee is maker on the exit notional.
func (m *PositionManager) closePosition(position *Position, result types.ExitResult) (types.PositionRecord, error) {
	spreadFrac := decimal.NewFromFloat(m.fees.SpreadFor(position.Symbol)).Div(decimal.NewFromFloat(bpsDenominator))

	var fillFactor decimal.Decimal
	if position.Direction == types.DirectionLong {
		fillFactor = decimal.NewFromInt(1).Sub(spreadFrac)
	} else {
		fillFactor = decimal.NewFromInt(1).Add(spreadFrac)
	}

	exitDec := decimal.NewFromFloat(result.TriggerPrice).Mul(fillFactor)
	exitNotional := exitDec.Mul(decimal.NewFromFloat(position.SizeUnits))
	exitFeesDec := exitNotional.Mul(decimal.NewFromFloat(m.fees.MakerFeeBps)).Div(decimal.NewFromFloat(bpsDenominator))

	var grossDec decimal.Decimal
	if position.Direction == types.DirectionLong {
		grossDec = exitNotional.Sub(decimal.NewFromFloat(position.SizeUSD))
	} else {
		grossDec = decimal.NewFromFloat(position.SizeUSD).Sub(exitNotional)
	}

	netDec := grossDec.Sub(decimal.NewFromFloat(position.EntryFeesUSD)).Sub(exitFeesDec)

	exitPrice, _ := exitDec.Float64()
	exitFees, _ := exitFeesDec.Float64()
	pnl, _ := netDec.Float64()
	pnlPct, _ := netDec.Div(decimal.NewFromFloat(position.SizeUSD)).Float64()

	// One R is the entry-to-stop distance on the full position size.
	riskUSD := math.Abs(position.EntryPrice-position.Spec.StopLossPrice) * position.SizeUnits
	rMultiple := 0.0
	if riskUSD > rEpsilon {
		rMultiple, _ = netDec.Div(decimal.NewFromFloat(riskUSD)).Float64()
	}

	record := m.buildOpenRecord(position)
	record.Status = types.PositionStatusClosed
	record.TrailingActivated = result.TrailingActivated
	record.TrailingStopPrice = result.TrailingStopPrice.TakeOr(0)
	record.ExitPrice = exitPrice
	record.ExitBarIndex = result.BarIndex
	record.ExitTime = result.Time
	record.ExitReason = result.Reason
	record.ExitFeesUSD = exitFees
	record.BarsHeld = result.BarsHeld
	record.PnLUSD = pnl
	record.PnLPct = pnlPct
	record.RMultiple = rMultiple

	if err := m.ledger.ClosePosition(record); err != nil {
		return types.PositionRecord{}, errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record closed position", err)
	}

	delete(m.open, position.PositionID)

	m.logger.Debug("Closed position",
		zap.String("position_id", position.PositionID),
		zap.String("symbol", position.Symbol),
		zap.String("exit_reason", string(result.Reason)),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl_usd", pnl),
	)

	return record, nil
}

func (m *PositionManager) buildOpenRecord(position *Position) types.PositionRecord {
	return types.PositionRecord{
		PositionID:        position.PositionID,
		Symbol:            position.Symbol,
		Direction:         position.Direction,
		Status:            types.PositionStatusOpen,
		EntryPrice:        position.EntryPrice,
		EntryBarIndex:     position.EntryBarIndex,
		EntryTime:         position.EntryTime,
		SizeUSD:           position.SizeUSD,
		SizeUnits:         position.SizeUnits,
		EntryFeesUSD:      position.EntryFeesUSD,
		ATRAtEntry:        position.ATRAtEntry,
		StopLossPrice:     position.Spec.StopLossPrice,
		TakeProfitPrice:   position.Spec.TakeProfitPrice,
		TimeStopBars:      position.Spec.TimeStopBars,
		TrailingActivated: position.TrailingActivated(),
		TrailingStopPrice: position.TrailingStopPrice().TakeOr(0),
	}
}
