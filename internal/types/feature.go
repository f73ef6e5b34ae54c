package types

import "time"

// FeatureSchemaVersion identifies the feature vector key set. Bump it whenever
// a key is added, removed, or changes units; downstream consumers key their
// models to this version.
const FeatureSchemaVersion = "v1"

// featureKeys is the canonical, ordered key set of the feature vector. The
// order is part of the schema contract: consumers that flatten the vector into
// a dense array rely on it being stable across runs.
var featureKeys = []string{
	// Price and returns. Returns are close-to-close, expressed in basis points.
	"close",
	"open",
	"high",
	"low",
	"ret_1_bps",
	"ret_4_bps",
	"ret_16_bps",
	"ret_96_bps",
	"bar_range_bps",
	"close_open_bps",
	"gap_open_bps",
	"price_in_bar_pos",

	// Rolling return statistics over the trailing 96 bars.
	"ret_mean_96_bps",
	"ret_std_96_bps",
	"ret_z_96",

	// Trend. EMA levels are raw prices, slopes and distances in basis points.
	"ema_20",
	"ema_50",
	"ema_200",
	"ema_20_slope_bps",
	"ema_50_slope_bps",
	"close_vs_ema_20_bps",
	"close_vs_ema_50_bps",
	"close_vs_ema_200_bps",
	"ema_20_vs_50_bps",
	"ema_50_vs_200_bps",
	"adx_14",
	"di_plus_14",
	"di_minus_14",

	// Momentum.
	"rsi_14",
	"rsi_28",
	"macd",
	"macd_signal",
	"macd_hist",
	"macd_hist_bps",
	"di_spread_14",
	"streak_up_bars",
	"streak_down_bars",

	// Volatility.
	"atr_14",
	"atr_bps",
	"atr_z_96",
	"true_range_bps",
	"std_20_bps",
	"high_low_range_atr",

	// Bollinger bands (20, 2.0).
	"bb_upper",
	"bb_mid",
	"bb_lower",
	"bb_width",
	"bb_position",

	// Range and levels relative to the Donchian channel over the prior 20 bars.
	"donchian_upper_20",
	"donchian_lower_20",
	"donchian_mid_20",
	"donchian_width_bps",
	"breakout_up_atr",
	"breakout_down_atr",
	"pullback_ema_20_atr",
	"pullback_ema_50_atr",
	"channel_pos_20",
	"dist_donchian_mid_atr",

	// Volume and liquidity.
	"volume",
	"volume_z_96",
	"volume_mean_96",
	"dollar_volume",

	// Microstructure. Spread is a constant per-symbol estimate; slippage is a
	// capped function of spread and volatility.
	"spread_bps",
	"slippage_est_bps",

	// Cyclical time-of-day and day-of-week encodings.
	"hour_of_day_sin",
	"hour_of_day_cos",
	"day_of_week_sin",
	"day_of_week_cos",

	// Portfolio/risk passthrough supplied by the caller.
	"open_positions",
	"exposure_frac",
	"dd_24h_bps",
	"halt_flag",

	// Derivatives context. Always zero here; populated by a downstream layer
	// that has access to funding and open-interest feeds.
	"funding_rate_bps",
	"funding_rate_z",
	"open_interest_usd",
	"open_interest_chg_bps",
	"basis_bps",
	"liquidations_long_usd",
	"liquidations_short_usd",
	"perp_spot_spread_bps",

	// Decision-layer confidence. Always zero here; populated downstream.
	"llm_confidence",
	"llm_long_bias",
	"llm_short_bias",
	"llm_risk_flag",
}

// FeatureKeys returns a copy of the canonical feature key list in schema order.
func FeatureKeys() []string {
	keys := make([]string, len(featureKeys))
	copy(keys, featureKeys)

	return keys
}

// FeatureCount returns the number of keys in the feature schema.
func FeatureCount() int {
	return len(featureKeys)
}

// FeatureVector is one fully-populated feature observation for a bar. Values
// holds exactly the keys of FeatureKeys; every value is finite.
type FeatureVector struct {
	Symbol   string
	Time     time.Time
	BarIndex int
	Values   map[string]float64
}

// Get returns the value for a key, or 0 if the key is not present.
func (fv *FeatureVector) Get(key string) float64 {
	return fv.Values[key]
}

// Ordered returns the values as a dense slice in canonical key order.
func (fv *FeatureVector) Ordered() []float64 {
	out := make([]float64, len(featureKeys))
	for i, key := range featureKeys {
		out[i] = fv.Values[key]
	}

	return out
}
