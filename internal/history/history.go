// Package history averages historical rate samples over trailing windows.
package history

import (
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/domain"
)

const day = 24 * time.Hour

// Sample is one observed rate.
type Sample struct {
	Timestamp time.Time
	Rate      decimal.Decimal
}

// AverageFunc yields the mean rate of pair over the trailing windowDays, and
// false when no sample falls inside the window.
type AverageFunc func(pair domain.Pair, windowDays int) (decimal.Decimal, bool)

// Average returns the arithmetic mean of the samples inside
// [now-windowDays, now]. It reports false, never zero, for an empty window.
func Average(samples []Sample, windowDays int, now time.Time) (decimal.Decimal, bool) {
	if windowDays <= 0 {
		return decimal.Zero, false
	}
	from := now.Add(-time.Duration(windowDays) * day)

	sum := decimal.Zero
	n := int64(0)
	for _, s := range samples {
		if s.Timestamp.Before(from) || s.Timestamp.After(now) {
			continue
		}
		sum = sum.Add(s.Rate)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)), true
}

// FromSamples binds per-pair sample sets and a fixed evaluation time into an
// AverageFunc.
func FromSamples(byPair map[domain.Pair][]Sample, now time.Time) AverageFunc {
	return func(pair domain.Pair, windowDays int) (decimal.Decimal, bool) {
		return Average(byPair[pair], windowDays, now)
	}
}

// SamplesFor projects snapshots onto the direct rate of pair.
func SamplesFor(pair domain.Pair, snapshots []domain.RateSnapshot) []Sample {
	out := make([]Sample, 0, len(snapshots))
	for _, s := range snapshots {
		rate := s.RateFor(pair)
		if !rate.IsPositive() {
			continue
		}
		out = append(out, Sample{Timestamp: s.Timestamp, Rate: rate})
	}
	return out
}
