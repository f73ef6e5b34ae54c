package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type PositionTypesTestSuite struct {
	suite.Suite
}

func TestPositionTypesSuite(t *testing.T) {
	suite.Run(t, new(PositionTypesTestSuite))
}

func validSpec() ExitSpec {
	return ExitSpec{
		StopLossPrice:   49000,
		TakeProfitPrice: 53000,
		TimeStopBars:    96,
		Trailing:        optional.None[TrailingConfig](),
	}
}

func (suite *PositionTypesTestSuite) TestExitSpecValid() {
	spec := validSpec()
	suite.NoError(spec.Validate())
}

func (suite *PositionTypesTestSuite) TestExitSpecValidWithTrailing() {
	spec := validSpec()
	spec.Trailing = optional.Some(TrailingConfig{
		ActivationPrice: 51000,
		DistanceATR:     2.0,
	})
	suite.NoError(spec.Validate())
}

func (suite *PositionTypesTestSuite) TestExitSpecInvalidPrices() {
	spec := validSpec()
	spec.StopLossPrice = 0
	suite.Error(spec.Validate())

	spec = validSpec()
	spec.TakeProfitPrice = -1
	suite.Error(spec.Validate())

	spec = validSpec()
	spec.TimeStopBars = 0
	suite.Error(spec.Validate())
}

func (suite *PositionTypesTestSuite) TestExitSpecInvalidTrailing() {
	spec := validSpec()
	spec.Trailing = optional.Some(TrailingConfig{
		ActivationPrice: 51000,
		DistanceATR:     0,
	})
	suite.Error(spec.Validate())
}

func validRequest() OpenPositionRequest {
	return OpenPositionRequest{
		Symbol:     "BTCUSDT",
		Direction:  DirectionLong,
		NextOpen:   50000,
		SizeUSD:    1000,
		ATRAtEntry: 150,
		Spec:       validSpec(),
		BarIndex:   10,
		Time:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (suite *PositionTypesTestSuite) TestOpenPositionRequestValid() {
	request := validRequest()
	suite.NoError(request.Validate())
}

func (suite *PositionTypesTestSuite) TestOpenPositionRequestInvalidDirection() {
	request := validRequest()
	request.Direction = Direction("sideways")
	suite.Error(request.Validate())
}

func (suite *PositionTypesTestSuite) TestOpenPositionRequestInvalidSize() {
	request := validRequest()
	request.SizeUSD = 0
	suite.Error(request.Validate())

	request = validRequest()
	request.NextOpen = -5
	suite.Error(request.Validate())
}

func (suite *PositionTypesTestSuite) TestOpenPositionRequestMissingSymbol() {
	request := validRequest()
	request.Symbol = ""
	suite.Error(request.Validate())
}

func (suite *PositionTypesTestSuite) TestOpenPositionRequestInvalidSpec() {
	request := validRequest()
	request.Spec.StopLossPrice = 0
	suite.Error(request.Validate())
}
