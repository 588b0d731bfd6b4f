// Package comparison ranks the on-chain route against off-chain providers.
package comparison

import (
	"sort"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/conversion"
	"bridgewatch/internal/domain"
)

// WinnerOnchain names the on-chain route in Comparison.Winner.
const WinnerOnchain = "onchain"

var hundred = decimal.NewFromInt(100)

// ProviderQuote is a directly quoted conversion from an off-chain provider.
// Forward quotes carry OutputAmount, reverse quotes carry InputAmount.
type ProviderQuote struct {
	ProviderName  string
	OutputAmount  decimal.Decimal
	InputAmount   decimal.Decimal
	EffectiveRate decimal.Decimal
}

// Comparison is the ranked outcome of Merge.
type Comparison struct {
	Pair           domain.Pair
	Mode           conversion.Mode
	Onchain        conversion.Result
	BestProvider   *ProviderQuote
	OtherProviders []ProviderQuote
	// DeltaPercent is invalid when no provider quoted.
	DeltaPercent decimal.NullDecimal
	Winner       string
}

// HasProviders reports whether any off-chain quote took part.
func (c Comparison) HasProviders() bool {
	return c.BestProvider != nil
}

// Merge ranks quotes by the metric of the mode (output in forward mode, input
// in reverse mode) and measures the on-chain route against the best one.
// Quotes with a non-positive metric are discarded.
func Merge(onchain conversion.Result, quotes []ProviderQuote, mode conversion.Mode) Comparison {
	res := Comparison{
		Pair:           onchain.Pair,
		Mode:           mode,
		Onchain:        onchain,
		OtherProviders: []ProviderQuote{},
		Winner:         WinnerOnchain,
	}

	ranked := make([]ProviderQuote, 0, len(quotes))
	for _, q := range quotes {
		if metric(q, mode).IsPositive() {
			ranked = append(ranked, q)
		}
	}
	if len(ranked) == 0 {
		return res
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		mi, mj := metric(ranked[i], mode), metric(ranked[j], mode)
		if !mi.Equal(mj) {
			if mode == conversion.Reverse {
				return mi.LessThan(mj)
			}
			return mi.GreaterThan(mj)
		}
		return ranked[i].ProviderName < ranked[j].ProviderName
	})

	best := ranked[0]
	res.BestProvider = &best
	res.OtherProviders = append(res.OtherProviders, ranked[1:]...)

	bestMetric := metric(best, mode)
	onchainMetric := onchain.OutputAmount
	if mode == conversion.Reverse {
		onchainMetric = onchain.InputAmount
	}
	delta := onchainMetric.Sub(bestMetric).Div(bestMetric).Mul(hundred)
	res.DeltaPercent = decimal.NewNullDecimal(delta)

	if !favoursOnchain(delta, mode) {
		res.Winner = best.ProviderName
	}
	return res
}

func metric(q ProviderQuote, mode conversion.Mode) decimal.Decimal {
	if mode == conversion.Reverse {
		return q.InputAmount
	}
	return q.OutputAmount
}

// More output wins forward; less required input wins reverse. A tie goes to
// the provider.
func favoursOnchain(delta decimal.Decimal, mode conversion.Mode) bool {
	if mode == conversion.Reverse {
		return delta.IsNegative()
	}
	return delta.IsPositive()
}
