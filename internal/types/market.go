package types

import "time"

// Bar is a single OHLCV sample for a fixed timeframe. Bars within one symbol
// stream are strictly ordered by time and must be applied sequentially.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// PortfolioContext carries portfolio/risk scalars supplied by the external
// portfolio layer alongside each bar. The pipeline passes them through to the
// feature vector unchanged.
type PortfolioContext struct {
	// OpenPositions is the number of currently open positions across the portfolio.
	OpenPositions float64 `yaml:"open_positions" json:"open_positions"`
	// ExposureFrac is the fraction of capital currently deployed, in [0,1].
	ExposureFrac float64 `yaml:"exposure_frac" json:"exposure_frac"`
	// Drawdown24hBps is the trailing 24h portfolio drawdown in basis points.
	Drawdown24hBps float64 `yaml:"dd_24h_bps" json:"dd_24h_bps"`
	// HaltFlag is 1 when the risk layer has halted new entries, otherwise 0.
	HaltFlag float64 `yaml:"halt_flag" json:"halt_flag"`
}
