package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgewatch/internal/domain"
)

func TestEvaluateAbsoluteBoundary(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	alert := Alert{Pair: domain.PairEURBRL, ThresholdType: ThresholdAbsolute, ThresholdValue: dec("6.25"), CooldownMinutes: 60, Active: true}

	atThreshold, err := Resolve(alert, dec("6.25"), nil)
	require.NoError(t, err)
	res := Evaluate(alert, atThreshold, now)
	assert.True(t, res.Triggered)
	assert.True(t, res.ShouldFire())

	below, err := Resolve(alert, dec("6.249999"), nil)
	require.NoError(t, err)
	res = Evaluate(alert, below, now)
	assert.False(t, res.Triggered)
	assert.False(t, res.ShouldFire())
}

func TestEvaluateCooldownBoundary(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	recent := now.Add(-1 * time.Minute)
	old := now.Add(-61 * time.Minute)
	exact := now.Add(-60 * time.Minute)

	alert := Alert{Pair: domain.PairEURBRL, ThresholdType: ThresholdAbsolute, ThresholdValue: dec("6"), CooldownMinutes: 60}
	resolved := Resolution{CurrentRate: dec("6.5"), CalculatedThreshold: dec("6")}

	alert.LastTriggeredAt = &recent
	res := Evaluate(alert, resolved, now)
	assert.True(t, res.Triggered)
	assert.True(t, res.SuppressedByCooldown)
	assert.False(t, res.ShouldFire())

	alert.LastTriggeredAt = &old
	res = Evaluate(alert, resolved, now)
	assert.False(t, res.SuppressedByCooldown)
	assert.True(t, res.ShouldFire())

	alert.LastTriggeredAt = &exact
	assert.False(t, Evaluate(alert, resolved, now).SuppressedByCooldown)

	alert.LastTriggeredAt = nil
	assert.False(t, Evaluate(alert, resolved, now).SuppressedByCooldown)
}

func TestEvaluateRelativeScenario(t *testing.T) {
	alert := Alert{
		Pair:            domain.PairEURBRL,
		ThresholdType:   ThresholdRelative,
		ThresholdValue:  dec("3"),
		ReferenceType:   ReferenceAvg30d,
		CooldownMinutes: 30,
		Active:          true,
	}

	resolved, err := Resolve(alert, dec("6.20"), fixedAverage(30, "6.00"))
	require.NoError(t, err)

	res := Evaluate(alert, resolved, time.Now())
	assert.True(t, res.CalculatedThreshold.Equal(dec("6.18")))
	assert.True(t, res.Triggered)
	assert.True(t, res.ReferenceValue.Valid)
	assert.Equal(t, alert, res.Alert)
}

func TestEvaluateDoesNotMutateAlert(t *testing.T) {
	last := time.Now().Add(-2 * time.Hour)
	alert := Alert{ThresholdType: ThresholdAbsolute, ThresholdValue: dec("1"), CooldownMinutes: 5, Active: true, LastTriggeredAt: &last}
	before := alert

	_ = Evaluate(alert, Resolution{CurrentRate: dec("2"), CalculatedThreshold: dec("1")}, time.Now())

	assert.Equal(t, before, alert)
	assert.Equal(t, last, *alert.LastTriggeredAt)
}
