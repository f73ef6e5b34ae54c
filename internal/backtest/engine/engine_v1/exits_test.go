package engine

import (
	"testing"

	"github.com/quantra-lab/quantra/internal/types"
	"github.com/stretchr/testify/suite"
)

type ExitChecksTestSuite struct {
	suite.Suite
}

func TestExitChecksSuite(t *testing.T) {
	suite.Run(t, new(ExitChecksTestSuite))
}

func (suite *ExitChecksTestSuite) TestCheckStopLoss() {
	tests := []struct {
		name       string
		closePrice float64
		stopPrice  float64
		direction  types.Direction
		expected   bool
	}{
		{"long above stop", 101.0, 100.0, types.DirectionLong, false},
		{"long at stop", 100.0, 100.0, types.DirectionLong, true},
		{"long below stop", 99.0, 100.0, types.DirectionLong, true},
		{"short below stop", 99.0, 100.0, types.DirectionShort, false},
		{"short at stop", 100.0, 100.0, types.DirectionShort, true},
		{"short above stop", 101.0, 100.0, types.DirectionShort, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Assert().Equal(tc.expected, CheckStopLoss(tc.closePrice, tc.stopPrice, tc.direction))
		})
	}
}

func (suite *ExitChecksTestSuite) TestCheckTakeProfit() {
	tests := []struct {
		name            string
		closePrice      float64
		takeProfitPrice float64
		direction       types.Direction
		expected        bool
	}{
		{"long below target", 99.0, 100.0, types.DirectionLong, false},
		{"long at target", 100.0, 100.0, types.DirectionLong, true},
		{"long above target", 101.0, 100.0, types.DirectionLong, true},
		{"short above target", 101.0, 100.0, types.DirectionShort, false},
		{"short at target", 100.0, 100.0, types.DirectionShort, true},
		{"short below target", 99.0, 100.0, types.DirectionShort, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Assert().Equal(tc.expected, CheckTakeProfit(tc.closePrice, tc.takeProfitPrice, tc.direction))
		})
	}
}

func (suite *ExitChecksTestSuite) TestCheckTimeStop() {
	suite.Assert().False(CheckTimeStop(47, 48))
	suite.Assert().True(CheckTimeStop(48, 48))
	suite.Assert().True(CheckTimeStop(49, 48))
}

func (suite *ExitChecksTestSuite) TestExtremumUpdates() {
	suite.Assert().Equal(105.0, UpdateHighestHigh(100.0, 105.0))
	suite.Assert().Equal(100.0, UpdateHighestHigh(100.0, 95.0))
	suite.Assert().Equal(95.0, UpdateLowestLow(100.0, 95.0))
	suite.Assert().Equal(100.0, UpdateLowestLow(100.0, 105.0))
}

func (suite *ExitChecksTestSuite) TestTrailingActivation() {
	suite.Assert().False(CheckTrailingActivationLong(104.9, 105.0))
	suite.Assert().True(CheckTrailingActivationLong(105.0, 105.0))
	suite.Assert().False(CheckTrailingActivationShort(95.1, 95.0))
	suite.Assert().True(CheckTrailingActivationShort(95.0, 95.0))
}

func (suite *ExitChecksTestSuite) TestCalculateTrailingStopLong() {
	// hh 120, atr 5, distance 2 -> candidate 110
	suite.Assert().Equal(110.0, CalculateTrailingStopLong(120.0, 5.0, 2.0, 100.0))
	// candidate below entry is floored at entry
	suite.Assert().Equal(100.0, CalculateTrailingStopLong(105.0, 5.0, 2.0, 100.0))
}

func (suite *ExitChecksTestSuite) TestCalculateTrailingStopShort() {
	// ll 80, atr 5, distance 2 -> candidate 90
	suite.Assert().Equal(90.0, CalculateTrailingStopShort(80.0, 5.0, 2.0, 100.0))
	// candidate above entry is capped at entry
	suite.Assert().Equal(100.0, CalculateTrailingStopShort(95.0, 5.0, 2.0, 100.0))
}
