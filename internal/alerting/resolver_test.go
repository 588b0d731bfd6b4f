package alerting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgewatch/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedAverage(window int, value string) func(domain.Pair, int) (decimal.Decimal, bool) {
	return func(_ domain.Pair, days int) (decimal.Decimal, bool) {
		if days != window {
			return decimal.Zero, false
		}
		return dec(value), true
	}
}

func TestResolveAbsolute(t *testing.T) {
	alert := Alert{Pair: domain.PairEURBRL, ThresholdType: ThresholdAbsolute, ThresholdValue: dec("6.25")}

	res, err := Resolve(alert, dec("6.10"), nil)
	require.NoError(t, err)
	assert.False(t, res.ReferenceValue.Valid)
	assert.True(t, res.CalculatedThreshold.Equal(dec("6.25")))
	assert.True(t, res.CurrentRate.Equal(dec("6.10")))
}

func TestResolveRelativeAverage(t *testing.T) {
	alert := Alert{
		Pair:           domain.PairEURBRL,
		ThresholdType:  ThresholdRelative,
		ThresholdValue: dec("3"),
		ReferenceType:  ReferenceAvg30d,
	}

	res, err := Resolve(alert, dec("6.20"), fixedAverage(30, "6.00"))
	require.NoError(t, err)
	require.True(t, res.ReferenceValue.Valid)
	assert.True(t, res.ReferenceValue.Decimal.Equal(dec("6.00")))
	assert.True(t, res.CalculatedThreshold.Equal(dec("6.18")), "got %s", res.CalculatedThreshold)
}

func TestResolveRelativeCurrent(t *testing.T) {
	alert := Alert{
		Pair:           domain.PairBRLEUR,
		ThresholdType:  ThresholdRelative,
		ThresholdValue: dec("10"),
		ReferenceType:  ReferenceCurrent,
	}

	res, err := Resolve(alert, dec("0.16"), nil)
	require.NoError(t, err)
	assert.True(t, res.ReferenceValue.Decimal.Equal(dec("0.16")))
	assert.True(t, res.CalculatedThreshold.Equal(dec("0.176")))
}

func TestResolveWindowMapping(t *testing.T) {
	for ref, days := range map[ReferenceType]int{ReferenceAvg7d: 7, ReferenceAvg30d: 30, ReferenceAvg90d: 90} {
		alert := Alert{Pair: domain.PairEURBRL, ThresholdType: ThresholdRelative, ThresholdValue: dec("1"), ReferenceType: ref}
		_, err := Resolve(alert, dec("6"), fixedAverage(days, "6"))
		assert.NoError(t, err, ref)
	}
	assert.Equal(t, 0, ReferenceCurrent.WindowDays())
}

func TestResolveMissingReferenceData(t *testing.T) {
	alert := Alert{
		Pair:           domain.PairEURBRL,
		ThresholdType:  ThresholdRelative,
		ThresholdValue: dec("3"),
		ReferenceType:  ReferenceAvg90d,
	}

	_, err := Resolve(alert, dec("6.20"), fixedAverage(30, "6.00"))
	assert.ErrorIs(t, err, ErrMissingReferenceData)

	_, err = Resolve(alert, dec("6.20"), nil)
	assert.ErrorIs(t, err, ErrMissingReferenceData)
}

func TestAlertValidate(t *testing.T) {
	valid := Alert{Pair: domain.PairEURBRL, ThresholdType: ThresholdAbsolute, ThresholdValue: dec("6"), CooldownMinutes: 60}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(a *Alert){
		"absolute with reference": func(a *Alert) { a.ReferenceType = ReferenceAvg7d },
		"relative without reference": func(a *Alert) {
			a.ThresholdType = ThresholdRelative
		},
		"unknown reference": func(a *Alert) {
			a.ThresholdType = ThresholdRelative
			a.ReferenceType = "avg365d"
		},
		"zero cooldown":     func(a *Alert) { a.CooldownMinutes = 0 },
		"negative value":    func(a *Alert) { a.ThresholdValue = dec("-1") },
		"unknown pair":      func(a *Alert) { a.Pair = 0 },
		"unknown threshold": func(a *Alert) { a.ThresholdType = "below" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := valid
			mutate(&a)
			assert.ErrorIs(t, a.Validate(), ErrInvalidAlert)
		})
	}
}
