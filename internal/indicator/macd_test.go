package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type MACDTestSuite struct {
	suite.Suite
}

func TestMACDSuite(t *testing.T) {
	suite.Run(t, new(MACDTestSuite))
}

func (suite *MACDTestSuite) TestNewMACDInvalidPeriods() {
	_, err := NewMACD(26, 12, 9)
	suite.Error(err)

	_, err = NewMACD(12, 12, 9)
	suite.Error(err)

	_, err = NewMACD(0, 26, 9)
	suite.Error(err)

	_, err = NewMACD(12, 26, 0)
	suite.Error(err)
}

func (suite *MACDTestSuite) TestFirstBarIsZero() {
	macd, err := NewMACD(12, 26, 9)
	suite.NoError(err)

	m, s, h := macd.Update(100)
	suite.Equal(0.0, m)
	suite.Equal(0.0, s)
	suite.Equal(0.0, h)
}

func (suite *MACDTestSuite) TestRisingPricesGivePositiveMACD() {
	macd, err := NewMACD(12, 26, 9)
	suite.NoError(err)

	price := 100.0
	for i := 0; i < 60; i++ {
		price += 1.0
		macd.Update(price)
	}

	m, _, _ := macd.Value()
	suite.Greater(m, 0.0)
}

func (suite *MACDTestSuite) TestHistogramIsMACDMinusSignal() {
	macd, err := NewMACD(12, 26, 9)
	suite.NoError(err)

	price := 100.0
	for i := 0; i < 40; i++ {
		price += 0.5
		m, s, h := macd.Update(price)
		suite.InDelta(m-s, h, 1e-12)
	}
}

func (suite *MACDTestSuite) TestReset() {
	macd, err := NewMACD(12, 26, 9)
	suite.NoError(err)

	price := 100.0
	for i := 0; i < 40; i++ {
		price += 1.0
		macd.Update(price)
	}

	macd.Reset()

	m, s, h := macd.Value()
	suite.Equal(0.0, m)
	suite.Equal(0.0, s)
	suite.Equal(0.0, h)
}
