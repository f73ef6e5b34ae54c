package pipeline

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/indicator"
	"github.com/quantra-lab/quantra/internal/logger"
	"github.com/quantra-lab/quantra/internal/types"
	"github.com/quantra-lab/quantra/pkg/errors"
	"go.uber.org/zap"
)

// Indicator parameters are part of the feature schema: changing any of them
// changes the meaning of the emitted keys, so they are fixed here rather than
// configurable per run.
const (
	emaFastPeriod = 20
	emaMidPeriod  = 50
	emaSlowPeriod = 200

	atrPeriod     = 14
	adxPeriod     = 14
	rsiPeriod     = 14
	rsiSlowPeriod = 28

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	bollingerPeriod = 20
	bollingerK      = 2.0
	donchianPeriod  = 20
	stdPeriod       = 20

	zScoreWindow  = 96
	slopeLookback = 4

	// slippageCapBps bounds the microstructure slippage estimate.
	slippageCapBps = 15.0

	// featureClamp bounds every emitted feature value. Finiteness is a hard
	// contract with downstream consumers, not an optimization.
	featureClamp = 1e6

	epsilon = 1e-12
)

// DefaultWarmupBars is the default number of bars suppressed before the first
// feature vector is emitted.
const DefaultWarmupBars = 96

// returnLookbacks are the horizons, in bars, of the simple-return features.
var returnLookbacks = []struct {
	key  string
	bars int
}{
	{"ret_1_bps", 1},
	{"ret_4_bps", 4},
	{"ret_16_bps", 16},
	{"ret_96_bps", 96},
}

// Config configures a feature pipeline.
type Config struct {
	// WarmupBars is the number of leading bars during which no feature vector
	// is emitted.
	WarmupBars int `yaml:"warmup_bars" json:"warmup_bars"`
	// DefaultSpreadBps is the spread estimate used for symbols not listed in
	// SpreadBps.
	DefaultSpreadBps float64 `yaml:"default_spread_bps" json:"default_spread_bps"`
	// SpreadBps maps symbols to their constant spread estimate in basis points.
	SpreadBps map[string]float64 `yaml:"spread_bps" json:"spread_bps"`
}

// DefaultConfig returns a pipeline config with the standard warmup and a
// 2 bps default spread.
func DefaultConfig() Config {
	return Config{
		WarmupBars:       DefaultWarmupBars,
		DefaultSpreadBps: 2.0,
		SpreadBps:        map[string]float64{},
	}
}

// Pipeline consumes one symbol's bar stream and emits a feature vector per
// bar once warmed up. A Pipeline owns all of its indicator state exclusively;
// parallelism across symbols means one Pipeline per symbol, never sharing.
type Pipeline struct {
	symbol string
	config Config
	logger *logger.Logger

	barCount int

	emaFast *indicator.EMA
	emaMid  *indicator.EMA
	emaSlow *indicator.EMA

	atr       *indicator.ATR
	adx       *indicator.ADX
	rsiFast   *indicator.RSI
	rsiSlow   *indicator.RSI
	macd      *indicator.MACD
	bollinger *indicator.BollingerBands
	donchian  *indicator.Donchian

	closes     *history
	emaFastLog *history
	emaMidLog  *history

	returnsWin *indicator.RollingWindow
	atrBpsWin  *indicator.RollingWindow
	volumeWin  *indicator.RollingWindow
	stdWin     *indicator.RollingWindow

	prevClose  float64
	hasPrev    bool
	streakUp   int
	streakDown int
}

// NewPipeline creates a feature pipeline for one symbol.
func NewPipeline(symbol string, config Config, log *logger.Logger) (*Pipeline, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "pipeline symbol is required")
	}

	if config.WarmupBars <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "warmup bars must be positive, got %d", config.WarmupBars)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	p := &Pipeline{
		symbol: symbol,
		config: config,
		logger: log,
	}

	var err error
	if p.emaFast, err = indicator.NewEMA(emaFastPeriod); err != nil {
		return nil, err
	}

	if p.emaMid, err = indicator.NewEMA(emaMidPeriod); err != nil {
		return nil, err
	}

	if p.emaSlow, err = indicator.NewEMA(emaSlowPeriod); err != nil {
		return nil, err
	}

	if p.atr, err = indicator.NewATR(atrPeriod); err != nil {
		return nil, err
	}

	if p.adx, err = indicator.NewADX(adxPeriod); err != nil {
		return nil, err
	}

	if p.rsiFast, err = indicator.NewRSI(rsiPeriod); err != nil {
		return nil, err
	}

	if p.rsiSlow, err = indicator.NewRSI(rsiSlowPeriod); err != nil {
		return nil, err
	}

	if p.macd, err = indicator.NewMACD(macdFastPeriod, macdSlowPeriod, macdSignalPeriod); err != nil {
		return nil, err
	}

	if p.bollinger, err = indicator.NewBollingerBands(bollingerPeriod, bollingerK); err != nil {
		return nil, err
	}

	if p.donchian, err = indicator.NewDonchian(donchianPeriod); err != nil {
		return nil, err
	}

	p.closes = newHistory(zScoreWindow + 1)
	p.emaFastLog = newHistory(slopeLookback + 1)
	p.emaMidLog = newHistory(slopeLookback + 1)

	if p.returnsWin, err = indicator.NewRollingWindow(zScoreWindow); err != nil {
		return nil, err
	}

	if p.atrBpsWin, err = indicator.NewRollingWindow(zScoreWindow); err != nil {
		return nil, err
	}

	if p.volumeWin, err = indicator.NewRollingWindow(zScoreWindow); err != nil {
		return nil, err
	}

	if p.stdWin, err = indicator.NewRollingWindow(stdPeriod); err != nil {
		return nil, err
	}

	return p, nil
}

// Symbol returns the symbol this pipeline is bound to.
func (p *Pipeline) Symbol() string {
	return p.symbol
}

// GetBarCount returns the number of bars consumed since creation or reset.
func (p *Pipeline) GetBarCount() int {
	return p.barCount
}

// IsWarmedUp reports whether enough bars have been seen to emit features.
func (p *Pipeline) IsWarmedUp() bool {
	return p.barCount >= p.config.WarmupBars
}

// SpreadBps returns the configured spread estimate for this pipeline's symbol.
func (p *Pipeline) SpreadBps() float64 {
	if spread, ok := p.config.SpreadBps[p.symbol]; ok {
		return spread
	}

	return p.config.DefaultSpreadBps
}

// OnBar consumes one bar plus portfolio context and returns the feature
// vector, or None while still warming up.
func (p *Pipeline) OnBar(bar types.Bar, portfolio types.PortfolioContext) optional.Option[types.FeatureVector] {
	p.barCount++

	// Feed every indicator. Order does not matter: each owns disjoint state.
	emaFast := p.emaFast.Update(bar.Close)
	emaMid := p.emaMid.Update(bar.Close)
	emaSlow := p.emaSlow.Update(bar.Close)
	atr := p.atr.Update(bar.High, bar.Low, bar.Close)
	adx, diPlus, diMinus := p.adx.Update(bar.High, bar.Low, bar.Close)
	rsiFast := p.rsiFast.Update(bar.Close)
	rsiSlow := p.rsiSlow.Update(bar.Close)
	macd, macdSignal, macdHist := p.macd.Update(bar.Close)
	bands := p.bollinger.Update(bar.Close)
	channel := p.donchian.Update(bar.High, bar.Low)

	// Pipeline-local derived state.
	var ret1Bps float64
	if p.hasPrev && p.prevClose > epsilon {
		ret1Bps = (bar.Close/p.prevClose - 1) * 1e4
	}

	atrBps := safeRatio(atr, bar.Close) * 1e4

	p.returnsWin.Push(ret1Bps)
	p.atrBpsWin.Push(atrBps)
	p.volumeWin.Push(bar.Volume)
	p.stdWin.Push(bar.Close)
	p.closes.Push(bar.Close)
	p.emaFastLog.Push(emaFast)
	p.emaMidLog.Push(emaMid)

	switch {
	case p.hasPrev && bar.Close > p.prevClose:
		p.streakUp++
		p.streakDown = 0
	case p.hasPrev && bar.Close < p.prevClose:
		p.streakDown++
		p.streakUp = 0
	default:
		p.streakUp = 0
		p.streakDown = 0
	}

	prevClose := p.prevClose
	hadPrev := p.hasPrev
	p.prevClose = bar.Close
	p.hasPrev = true

	if p.barCount < p.config.WarmupBars {
		return optional.None[types.FeatureVector]()
	}

	values := make(map[string]float64, types.FeatureCount())

	// Price and returns.
	values["close"] = bar.Close
	values["open"] = bar.Open
	values["high"] = bar.High
	values["low"] = bar.Low

	for _, lookback := range returnLookbacks {
		past, ok := p.closes.At(lookback.bars)
		if ok && past > epsilon {
			values[lookback.key] = (bar.Close/past - 1) * 1e4
		} else {
			values[lookback.key] = 0
		}
	}

	values["bar_range_bps"] = safeRatio(bar.High-bar.Low, bar.Close) * 1e4
	values["close_open_bps"] = safeRatio(bar.Close-bar.Open, bar.Open) * 1e4

	if hadPrev {
		values["gap_open_bps"] = safeRatio(bar.Open-prevClose, prevClose) * 1e4
	} else {
		values["gap_open_bps"] = 0
	}

	if barRange := bar.High - bar.Low; barRange > epsilon {
		values["price_in_bar_pos"] = (bar.Close - bar.Low) / barRange
	} else {
		values["price_in_bar_pos"] = 0.5
	}

	// Rolling return statistics.
	values["ret_mean_96_bps"] = p.returnsWin.Mean()
	values["ret_std_96_bps"] = p.returnsWin.Std()
	values["ret_z_96"] = p.returnsWin.ZScore(ret1Bps)

	// Trend.
	values["ema_20"] = emaFast
	values["ema_50"] = emaMid
	values["ema_200"] = emaSlow
	values["ema_20_slope_bps"] = p.emaSlope(p.emaFastLog, bar.Close)
	values["ema_50_slope_bps"] = p.emaSlope(p.emaMidLog, bar.Close)
	values["close_vs_ema_20_bps"] = safeRatio(bar.Close-emaFast, bar.Close) * 1e4
	values["close_vs_ema_50_bps"] = safeRatio(bar.Close-emaMid, bar.Close) * 1e4
	values["close_vs_ema_200_bps"] = safeRatio(bar.Close-emaSlow, bar.Close) * 1e4
	values["ema_20_vs_50_bps"] = safeRatio(emaFast-emaMid, bar.Close) * 1e4
	values["ema_50_vs_200_bps"] = safeRatio(emaMid-emaSlow, bar.Close) * 1e4
	values["adx_14"] = adx
	values["di_plus_14"] = diPlus
	values["di_minus_14"] = diMinus

	// Momentum.
	values["rsi_14"] = rsiFast
	values["rsi_28"] = rsiSlow
	values["macd"] = macd
	values["macd_signal"] = macdSignal
	values["macd_hist"] = macdHist
	values["macd_hist_bps"] = safeRatio(macdHist, bar.Close) * 1e4
	values["di_spread_14"] = diPlus - diMinus
	values["streak_up_bars"] = float64(p.streakUp)
	values["streak_down_bars"] = float64(p.streakDown)

	// Volatility.
	values["atr_14"] = atr
	values["atr_bps"] = atrBps
	values["atr_z_96"] = p.atrBpsWin.ZScore(atrBps)
	values["true_range_bps"] = safeRatio(p.atr.TrueRange(), bar.Close) * 1e4
	values["std_20_bps"] = safeRatio(p.stdWin.Std(), bar.Close) * 1e4
	values["high_low_range_atr"] = safeRatio(bar.High-bar.Low, atr)

	// Bollinger.
	values["bb_upper"] = bands.Upper
	values["bb_mid"] = bands.Mid
	values["bb_lower"] = bands.Lower
	values["bb_width"] = bands.Width
	values["bb_position"] = bands.Position

	// Range and levels.
	values["donchian_upper_20"] = channel.Upper
	values["donchian_lower_20"] = channel.Lower
	values["donchian_mid_20"] = channel.Mid
	values["donchian_width_bps"] = safeRatio(channel.Upper-channel.Lower, bar.Close) * 1e4
	values["breakout_up_atr"] = safeRatio(bar.Close-channel.Upper, atr)
	values["breakout_down_atr"] = safeRatio(channel.Lower-bar.Close, atr)
	values["pullback_ema_20_atr"] = safeRatio(bar.Close-emaFast, atr)
	values["pullback_ema_50_atr"] = safeRatio(bar.Close-emaMid, atr)

	if channelRange := channel.Upper - channel.Lower; channelRange > epsilon {
		values["channel_pos_20"] = (bar.Close - channel.Lower) / channelRange
	} else {
		values["channel_pos_20"] = 0.5
	}

	values["dist_donchian_mid_atr"] = safeRatio(bar.Close-channel.Mid, atr)

	// Volume and liquidity.
	values["volume"] = bar.Volume
	values["volume_z_96"] = p.volumeWin.ZScore(bar.Volume)
	values["volume_mean_96"] = p.volumeWin.Mean()
	values["dollar_volume"] = bar.Close * bar.Volume

	// Microstructure.
	spreadBps := p.SpreadBps()
	values["spread_bps"] = spreadBps
	values["slippage_est_bps"] = math.Min(0.5*spreadBps+0.02*atrBps, slippageCapBps)

	// Cyclical time encodings.
	hour := float64(bar.Time.UTC().Hour())
	weekday := float64(bar.Time.UTC().Weekday())
	values["hour_of_day_sin"] = math.Sin(2 * math.Pi * hour / 24)
	values["hour_of_day_cos"] = math.Cos(2 * math.Pi * hour / 24)
	values["day_of_week_sin"] = math.Sin(2 * math.Pi * weekday / 7)
	values["day_of_week_cos"] = math.Cos(2 * math.Pi * weekday / 7)

	// Portfolio/risk passthrough.
	values["open_positions"] = portfolio.OpenPositions
	values["exposure_frac"] = portfolio.ExposureFrac
	values["dd_24h_bps"] = portfolio.Drawdown24hBps
	values["halt_flag"] = portfolio.HaltFlag

	// Derivatives context and decision-layer confidence are populated by
	// downstream layers; emitted here as zeros to keep the schema fixed.
	for _, key := range []string{
		"funding_rate_bps", "funding_rate_z", "open_interest_usd", "open_interest_chg_bps",
		"basis_bps", "liquidations_long_usd", "liquidations_short_usd", "perp_spot_spread_bps",
		"llm_confidence", "llm_long_bias", "llm_short_bias", "llm_risk_flag",
	} {
		values[key] = 0
	}

	for key, value := range values {
		values[key] = sanitize(value)
	}

	if len(values) != types.FeatureCount() {
		// Schema drift is a programming error; surface it loudly but keep the
		// bar loop alive.
		p.logger.Error("feature vector key count mismatch",
			zap.String("symbol", p.symbol),
			zap.Int("got", len(values)),
			zap.Int("want", types.FeatureCount()),
		)
	}

	return optional.Some(types.FeatureVector{
		Symbol:   p.symbol,
		Time:     bar.Time,
		BarIndex: p.barCount - 1,
		Values:   values,
	})
}

// Reset reinitializes all indicator state and counters, used when restarting
// a symbol stream. Replaying an identical bar sequence after Reset reproduces
// the identical feature vectors.
func (p *Pipeline) Reset() {
	p.barCount = 0
	p.emaFast.Reset()
	p.emaMid.Reset()
	p.emaSlow.Reset()
	p.atr.Reset()
	p.adx.Reset()
	p.rsiFast.Reset()
	p.rsiSlow.Reset()
	p.macd.Reset()
	p.bollinger.Reset()
	p.donchian.Reset()
	p.closes.Reset()
	p.emaFastLog.Reset()
	p.emaMidLog.Reset()
	p.returnsWin.Reset()
	p.atrBpsWin.Reset()
	p.volumeWin.Reset()
	p.stdWin.Reset()
	p.prevClose = 0
	p.hasPrev = false
	p.streakUp = 0
	p.streakDown = 0
}

// emaSlope returns the change of an EMA over the slope lookback, in basis
// points of the current close. 0 when the history is still too short.
func (p *Pipeline) emaSlope(log *history, closePrice float64) float64 {
	past, ok := log.At(slopeLookback)
	if !ok {
		return 0
	}

	latest, _ := log.At(0)

	return safeRatio(latest-past, closePrice) * 1e4
}

// safeRatio divides numerator by denominator, returning 0 when the
// denominator is within epsilon of zero.
func safeRatio(numerator, denominator float64) float64 {
	if math.Abs(denominator) < epsilon {
		return 0
	}

	return numerator / denominator
}

// sanitize clamps a feature value to a finite range. NaN maps to 0.
func sanitize(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}

	if value > featureClamp {
		return featureClamp
	}

	if value < -featureClamp {
		return -featureClamp
	}

	return value
}
