package engine

import (
	"github.com/moznion/go-optional"
	"github.com/quantra-lab/quantra/internal/types"
)

// EntryIntent is a rule's decision to enter on the next bar's open. The ATR
// is the value on the decision bar; the engine sizes the exit contract from
// it once the fill price is known.
type EntryIntent struct {
	Symbol    string
	Direction types.Direction
	ATR       float64
}

// Rule decides entries from the feature vector of a closed bar. Rules never
// see future bars; the engine delays the fill to the next open.
type Rule interface {
	Name() string
	Evaluate(features types.FeatureVector, bar types.Bar) optional.Option[EntryIntent]
}

// DonchianBreakoutRule enters in the direction of a close beyond the prior
// 20-bar Donchian channel.
type DonchianBreakoutRule struct{}

func NewDonchianBreakoutRule() Rule {
	return &DonchianBreakoutRule{}
}

// Name implements Rule.
func (r *DonchianBreakoutRule) Name() string {
	return "donchian_breakout"
}

// Evaluate implements Rule.
func (r *DonchianBreakoutRule) Evaluate(features types.FeatureVector, bar types.Bar) optional.Option[EntryIntent] {
	atr := features.Get("atr_14")
	if atr <= 0 {
		return optional.None[EntryIntent]()
	}

	upper := features.Get("donchian_upper_20")
	lower := features.Get("donchian_lower_20")

	if bar.Close > upper {
		return optional.Some(EntryIntent{
			Symbol:    bar.Symbol,
			Direction: types.DirectionLong,
			ATR:       atr,
		})
	}

	if bar.Close < lower {
		return optional.Some(EntryIntent{
			Symbol:    bar.Symbol,
			Direction: types.DirectionShort,
			ATR:       atr,
		})
	}

	return optional.None[EntryIntent]()
}

// buildOpenRequest turns an intent into a concrete open request against the
// next bar's open. Stops and targets are anchored on the open, not the fill,
// so the contract does not depend on the spread assumption.
func buildOpenRequest(intent EntryIntent, rule RuleConfig, bar types.Bar, barIndex int) types.OpenPositionRequest {
	spec := types.ExitSpec{
		TimeStopBars: rule.TimeStopBars,
		Trailing:     optional.None[types.TrailingConfig](),
	}

	if intent.Direction == types.DirectionLong {
		spec.StopLossPrice = bar.Open - rule.StopATR*intent.ATR
		spec.TakeProfitPrice = bar.Open + rule.TakeProfitATR*intent.ATR

		if rule.TrailingActivationATR > 0 {
			spec.Trailing = optional.Some(types.TrailingConfig{
				ActivationPrice: bar.Open + rule.TrailingActivationATR*intent.ATR,
				DistanceATR:     rule.TrailingDistanceATR,
			})
		}
	} else {
		spec.StopLossPrice = bar.Open + rule.StopATR*intent.ATR
		spec.TakeProfitPrice = bar.Open - rule.TakeProfitATR*intent.ATR

		if rule.TrailingActivationATR > 0 {
			spec.Trailing = optional.Some(types.TrailingConfig{
				ActivationPrice: bar.Open - rule.TrailingActivationATR*intent.ATR,
				DistanceATR:     rule.TrailingDistanceATR,
			})
		}
	}

	return types.OpenPositionRequest{
		Symbol:     intent.Symbol,
		Direction:  intent.Direction,
		NextOpen:   bar.Open,
		SizeUSD:    rule.SizeUSD,
		ATRAtEntry: intent.ATR,
		Spec:       spec,
		BarIndex:   barIndex,
		Time:       bar.Time,
	}
}
