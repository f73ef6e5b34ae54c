package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/suite"
)

type RollingWindowTestSuite struct {
	suite.Suite
}

func TestRollingWindowSuite(t *testing.T) {
	suite.Run(t, new(RollingWindowTestSuite))
}

func (suite *RollingWindowTestSuite) TestNewRollingWindowInvalidCapacity() {
	_, err := NewRollingWindow(0)
	suite.Error(err)

	_, err = NewRollingWindow(-3)
	suite.Error(err)
}

func (suite *RollingWindowTestSuite) TestEmptyWindow() {
	window, err := NewRollingWindow(5)
	suite.NoError(err)
	suite.Equal(0, window.Size())
	suite.False(window.IsFull())
	suite.Equal(0.0, window.Mean())
	suite.Equal(0.0, window.Std())
	suite.Equal(0.0, window.Min())
	suite.Equal(0.0, window.Max())
}

func (suite *RollingWindowTestSuite) TestMeanAndStd() {
	window, err := NewRollingWindow(4)
	suite.NoError(err)

	for _, v := range []float64{2, 4, 6, 8} {
		window.Push(v)
	}

	suite.True(window.IsFull())
	suite.InDelta(5.0, window.Mean(), 1e-9)
	// Population std of {2,4,6,8} is sqrt(5)
	suite.InDelta(math.Sqrt(5), window.Std(), 1e-9)
}

func (suite *RollingWindowTestSuite) TestEviction() {
	window, err := NewRollingWindow(3)
	suite.NoError(err)

	for _, v := range []float64{1, 2, 3, 4, 5} {
		window.Push(v)
	}

	// Window now holds {3,4,5}
	suite.Equal(3, window.Size())
	suite.InDelta(4.0, window.Mean(), 1e-9)
	suite.InDelta(3.0, window.Min(), 1e-9)
	suite.InDelta(5.0, window.Max(), 1e-9)
}

func (suite *RollingWindowTestSuite) TestVarianceFlooredAtZero() {
	window, err := NewRollingWindow(8)
	suite.NoError(err)

	// Identical values can drift the incremental variance slightly negative.
	for i := 0; i < 8; i++ {
		window.Push(0.1)
	}

	suite.GreaterOrEqual(window.Variance(), 0.0)
	suite.InDelta(0.0, window.Std(), 1e-9)
}

func (suite *RollingWindowTestSuite) TestZScore() {
	window, err := NewRollingWindow(4)
	suite.NoError(err)

	for _, v := range []float64{2, 4, 6, 8} {
		window.Push(v)
	}

	suite.InDelta((10.0-5.0)/math.Sqrt(5), window.ZScore(10), 1e-9)
}

func (suite *RollingWindowTestSuite) TestZScoreZeroStd() {
	window, err := NewRollingWindow(3)
	suite.NoError(err)

	for i := 0; i < 3; i++ {
		window.Push(7)
	}

	suite.Equal(0.0, window.ZScore(100))
}

func (suite *RollingWindowTestSuite) TestReset() {
	window, err := NewRollingWindow(3)
	suite.NoError(err)

	window.Push(1)
	window.Push(2)
	window.Reset()

	suite.Equal(0, window.Size())
	suite.Equal(0.0, window.Mean())

	window.Push(9)
	suite.InDelta(9.0, window.Mean(), 1e-9)
}
