package engine

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) baseTime() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *PositionTestSuite) longRequest(trailing optional.Option[types.TrailingConfig]) types.OpenPositionRequest {
	return types.OpenPositionRequest{
		Symbol:     "BTCUSDT",
		Direction:  types.DirectionLong,
		NextOpen:   100.0,
		SizeUSD:    1000.0,
		ATRAtEntry: 5.0,
		Spec: types.ExitSpec{
			StopLossPrice:   95.0,
			TakeProfitPrice: 120.0,
			TimeStopBars:    10,
			Trailing:        trailing,
		},
		BarIndex: 0,
		Time:     suite.baseTime(),
	}
}

func (suite *PositionTestSuite) shortRequest(trailing optional.Option[types.TrailingConfig]) types.OpenPositionRequest {
	return types.OpenPositionRequest{
		Symbol:     "BTCUSDT",
		Direction:  types.DirectionShort,
		NextOpen:   100.0,
		SizeUSD:    1000.0,
		ATRAtEntry: 5.0,
		Spec: types.ExitSpec{
			StopLossPrice:   105.0,
			TakeProfitPrice: 80.0,
			TimeStopBars:    10,
			Trailing:        trailing,
		},
		BarIndex: 0,
		Time:     suite.baseTime(),
	}
}

func (suite *PositionTestSuite) newLong(trailing optional.Option[types.TrailingConfig]) *Position {
	position, err := NewPosition("pos-1", suite.longRequest(trailing), 100.0, 10.0, 1.25)
	suite.Require().NoError(err)
	return position
}

func (suite *PositionTestSuite) newShort(trailing optional.Option[types.TrailingConfig]) *Position {
	position, err := NewPosition("pos-1", suite.shortRequest(trailing), 100.0, 10.0, 1.25)
	suite.Require().NoError(err)
	return position
}

func (suite *PositionTestSuite) TestNewPositionValidation() {
	request := suite.longRequest(optional.None[types.TrailingConfig]())

	_, err := NewPosition("", request, 100.0, 10.0, 1.25)
	suite.Assert().Error(err)

	_, err = NewPosition("pos-1", request, 0, 10.0, 1.25)
	suite.Assert().Error(err)

	_, err = NewPosition("pos-1", request, 100.0, 0, 1.25)
	suite.Assert().Error(err)

	bad := request
	bad.Spec.StopLossPrice = 0
	_, err = NewPosition("pos-1", bad, 100.0, 10.0, 1.25)
	suite.Assert().Error(err)
}

func (suite *PositionTestSuite) TestStopLossExitLong() {
	position := suite.newLong(optional.None[types.TrailingConfig]())

	result := position.UpdateBar(101.0, 94.0, 94.5, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsSome())

	exit := result.Unwrap()
	suite.Assert().Equal(types.ExitReasonStopLoss, exit.Reason)
	suite.Assert().Equal(94.5, exit.TriggerPrice)
	suite.Assert().Equal(1, exit.BarsHeld)
	suite.Assert().False(position.IsOpen())
}

func (suite *PositionTestSuite) TestTakeProfitExitShort() {
	position := suite.newShort(optional.None[types.TrailingConfig]())

	result := position.UpdateBar(100.0, 78.0, 79.0, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsSome())
	suite.Assert().Equal(types.ExitReasonTakeProfit, result.Unwrap().Reason)
}

func (suite *PositionTestSuite) TestTimeStopExit() {
	position := suite.newLong(optional.None[types.TrailingConfig]())

	for i := 1; i < 10; i++ {
		result := position.UpdateBar(101.0, 99.0, 100.0, i, suite.baseTime().Add(time.Duration(i)*time.Hour))
		suite.Require().True(result.IsNone(), "no exit expected at bar %d", i)
	}

	result := position.UpdateBar(101.0, 99.0, 100.0, 10, suite.baseTime().Add(10*time.Hour))
	suite.Require().True(result.IsSome())

	exit := result.Unwrap()
	suite.Assert().Equal(types.ExitReasonTimeStop, exit.Reason)
	suite.Assert().Equal(10, exit.BarsHeld)
}

func (suite *PositionTestSuite) TestUpdateBarOnClosedPositionIsNoop() {
	position := suite.newLong(optional.None[types.TrailingConfig]())

	first := position.UpdateBar(101.0, 94.0, 94.5, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(first.IsSome())

	second := position.UpdateBar(101.0, 94.0, 94.5, 2, suite.baseTime().Add(2*time.Hour))
	suite.Assert().True(second.IsNone())
	suite.Assert().Equal(1, position.BarsHeld())
}

func (suite *PositionTestSuite) TestTrailingActivatesAndRatchets() {
	trailing := optional.Some(types.TrailingConfig{ActivationPrice: 110.0, DistanceATR: 2.0})
	position := suite.newLong(trailing)

	// Below activation: no trailing stop yet
	result := position.UpdateBar(105.0, 100.0, 104.0, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().False(position.TrailingActivated())
	suite.Assert().True(position.TrailingStopPrice().IsNone())

	// High reaches activation: stop = max(hh - 2*atr, entry) = max(112-10, 100) = 102
	result = position.UpdateBar(112.0, 104.0, 111.0, 2, suite.baseTime().Add(2*time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().True(position.TrailingActivated())
	suite.Assert().Equal(102.0, position.TrailingStopPrice().Unwrap())

	// New high ratchets up: max(118-10, 100) = 108
	result = position.UpdateBar(118.0, 110.0, 117.0, 3, suite.baseTime().Add(3*time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().Equal(108.0, position.TrailingStopPrice().Unwrap())

	// Pullback bar: the stop must not loosen
	result = position.UpdateBar(117.0, 109.0, 110.0, 4, suite.baseTime().Add(4*time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().Equal(108.0, position.TrailingStopPrice().Unwrap())

	// Close through the trailing stop fires a trailing_stop exit
	result = position.UpdateBar(110.0, 106.0, 107.0, 5, suite.baseTime().Add(5*time.Hour))
	suite.Require().True(result.IsSome())

	exit := result.Unwrap()
	suite.Assert().Equal(types.ExitReasonTrailingStop, exit.Reason)
	suite.Assert().Equal(107.0, exit.TriggerPrice)
	suite.Assert().True(exit.TrailingActivated)
	suite.Assert().Equal(108.0, exit.TrailingStopPrice.Unwrap())
}

func (suite *PositionTestSuite) TestTrailingStopNeverBelowEntryLong() {
	trailing := optional.Some(types.TrailingConfig{ActivationPrice: 105.0, DistanceATR: 2.0})
	position := suite.newLong(trailing)

	// hh 105 activates; candidate 105 - 10 = 95 is floored at entry 100
	result := position.UpdateBar(105.0, 101.0, 104.0, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().True(position.TrailingActivated())
	suite.Assert().Equal(100.0, position.TrailingStopPrice().Unwrap())
}

func (suite *PositionTestSuite) TestTrailingRatchetsDownForShort() {
	trailing := optional.Some(types.TrailingConfig{ActivationPrice: 90.0, DistanceATR: 2.0})
	position := suite.newShort(trailing)

	// ll 88 activates; candidate min(88 + 10, 100) = 98
	result := position.UpdateBar(95.0, 88.0, 94.0, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().True(position.TrailingActivated())
	suite.Assert().Equal(98.0, position.TrailingStopPrice().Unwrap())

	// New low 84: stop ratchets down to 94
	result = position.UpdateBar(93.0, 84.0, 85.0, 2, suite.baseTime().Add(2*time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().Equal(94.0, position.TrailingStopPrice().Unwrap())

	// Bounce bar: stop holds at 94, close above it exits
	result = position.UpdateBar(96.0, 90.0, 95.0, 3, suite.baseTime().Add(3*time.Hour))
	suite.Require().True(result.IsSome())
	suite.Assert().Equal(types.ExitReasonTrailingStop, result.Unwrap().Reason)
}

func (suite *PositionTestSuite) TestStopLossOutranksTrailingStop() {
	trailing := optional.Some(types.TrailingConfig{ActivationPrice: 110.0, DistanceATR: 1.0})
	position := suite.newLong(trailing)

	// Activate trailing: stop = max(112 - 5, 100) = 107
	result := position.UpdateBar(112.0, 104.0, 111.0, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsNone())
	suite.Assert().Equal(107.0, position.TrailingStopPrice().Unwrap())

	// Crash through both levels on one bar: the fixed stop wins
	result = position.UpdateBar(111.0, 93.0, 94.0, 2, suite.baseTime().Add(2*time.Hour))
	suite.Require().True(result.IsSome())
	suite.Assert().Equal(types.ExitReasonStopLoss, result.Unwrap().Reason)
}

func (suite *PositionTestSuite) TestForceClose() {
	position := suite.newLong(optional.None[types.TrailingConfig]())

	result := position.UpdateBar(101.0, 99.0, 100.5, 1, suite.baseTime().Add(time.Hour))
	suite.Require().True(result.IsNone())

	exit := position.ForceClose(100.5, 2, suite.baseTime().Add(2*time.Hour), types.ExitReasonEndOfRun)
	suite.Assert().Equal(types.ExitReasonEndOfRun, exit.Reason)
	suite.Assert().Equal(100.5, exit.TriggerPrice)
	suite.Assert().Equal(1, exit.BarsHeld)
	suite.Assert().False(position.IsOpen())
}

func (suite *PositionTestSuite) TestUnrealizedPnL() {
	long := suite.newLong(optional.None[types.TrailingConfig]())
	suite.Assert().InDelta(50.0, long.GetUnrealizedPnL(105.0), 1e-9)
	suite.Assert().InDelta(0.05, long.GetUnrealizedPnLPct(105.0), 1e-9)

	short := suite.newShort(optional.None[types.TrailingConfig]())
	suite.Assert().InDelta(50.0, short.GetUnrealizedPnL(95.0), 1e-9)
	suite.Assert().InDelta(-50.0, short.GetUnrealizedPnL(105.0), 1e-9)
}
