package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type FeatureTestSuite struct {
	suite.Suite
}

func TestFeatureSuite(t *testing.T) {
	suite.Run(t, new(FeatureTestSuite))
}

func (suite *FeatureTestSuite) TestSchemaKeyCount() {
	suite.Equal(84, FeatureCount())
	suite.Len(FeatureKeys(), FeatureCount())
}

func (suite *FeatureTestSuite) TestSchemaKeysUnique() {
	seen := make(map[string]bool)

	for _, key := range FeatureKeys() {
		suite.False(seen[key], "duplicate feature key %s", key)
		seen[key] = true
	}
}

func (suite *FeatureTestSuite) TestFeatureKeysReturnsCopy() {
	keys := FeatureKeys()
	keys[0] = "mutated"

	suite.NotEqual("mutated", FeatureKeys()[0])
}

func (suite *FeatureTestSuite) TestOrderedFollowsSchemaOrder() {
	values := make(map[string]float64)
	for i, key := range FeatureKeys() {
		values[key] = float64(i)
	}

	vector := FeatureVector{
		Symbol:   "BTCUSDT",
		Time:     time.Now(),
		BarIndex: 100,
		Values:   values,
	}

	ordered := vector.Ordered()
	suite.Len(ordered, FeatureCount())

	for i, value := range ordered {
		suite.Equal(float64(i), value)
	}
}

func (suite *FeatureTestSuite) TestGetMissingKeyIsZero() {
	vector := FeatureVector{Values: map[string]float64{}}
	suite.Equal(0.0, vector.Get("close"))
}

func (suite *FeatureTestSuite) TestExpectedGroupsPresent() {
	keys := make(map[string]bool)
	for _, key := range FeatureKeys() {
		keys[key] = true
	}

	// One representative per group; the full list is the contract itself.
	for _, key := range []string{
		"close", "ret_96_bps", "ema_200", "adx_14", "rsi_14", "macd_hist",
		"atr_bps", "bb_position", "donchian_upper_20", "volume_z_96",
		"spread_bps", "hour_of_day_sin", "open_positions", "funding_rate_bps",
		"llm_confidence",
	} {
		suite.True(keys[key], "expected key %s in schema", key)
	}
}
