package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ATRTestSuite struct {
	suite.Suite
}

func TestATRSuite(t *testing.T) {
	suite.Run(t, new(ATRTestSuite))
}

func (suite *ATRTestSuite) TestNewATRInvalidPeriod() {
	_, err := NewATR(0)
	suite.Error(err)
}

func (suite *ATRTestSuite) TestFirstBarUsesHighLow() {
	atr, err := NewATR(14)
	suite.NoError(err)

	value := atr.Update(105, 95, 100)
	suite.InDelta(10.0, value, 1e-9)
	suite.InDelta(10.0, atr.TrueRange(), 1e-9)
}

func (suite *ATRTestSuite) TestTrueRangeUsesPreviousClose() {
	atr, err := NewATR(14)
	suite.NoError(err)

	atr.Update(105, 95, 100)

	// Gap up: high-low = 4, |high-prevClose| = 20, |low-prevClose| = 16
	atr.Update(120, 116, 118)
	suite.InDelta(20.0, atr.TrueRange(), 1e-9)
}

func (suite *ATRTestSuite) TestWilderSmoothing() {
	atr, err := NewATR(2)
	suite.NoError(err)

	atr.Update(110, 100, 105) // TR = 10, seeds smoother
	value := atr.Update(109, 103, 106)

	// TR = max(6, |109-105|, |103-105|) = 6; smoothed = 10 + (6-10)/2 = 8
	suite.InDelta(8.0, value, 1e-9)
}

func (suite *ATRTestSuite) TestReset() {
	atr, err := NewATR(3)
	suite.NoError(err)

	atr.Update(110, 100, 105)
	atr.Reset()
	suite.Equal(0.0, atr.Value())

	// First bar after reset uses high-low again.
	value := atr.Update(60, 50, 55)
	suite.InDelta(10.0, value, 1e-9)
}
