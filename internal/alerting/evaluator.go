package alerting

import (
	"time"

	"github.com/shopspring/decimal"
)

// EvaluationResult is the decision for one alert. The persistence layer acts
// on it; the evaluator itself never touches the alert.
type EvaluationResult struct {
	Alert                Alert
	CurrentRate          decimal.Decimal
	ReferenceValue       decimal.NullDecimal
	CalculatedThreshold  decimal.Decimal
	Triggered            bool
	SuppressedByCooldown bool
	EvaluatedAt          time.Time
}

// ShouldFire reports whether a notification must be sent.
func (r EvaluationResult) ShouldFire() bool {
	return r.Triggered && !r.SuppressedByCooldown
}

// Evaluate compares the current rate with the resolved threshold and applies
// the cooldown window. The threshold is inclusive.
func Evaluate(alert Alert, resolved Resolution, now time.Time) EvaluationResult {
	return EvaluationResult{
		Alert:                alert,
		CurrentRate:          resolved.CurrentRate,
		ReferenceValue:       resolved.ReferenceValue,
		CalculatedThreshold:  resolved.CalculatedThreshold,
		Triggered:            resolved.CurrentRate.GreaterThanOrEqual(resolved.CalculatedThreshold),
		SuppressedByCooldown: InCooldown(alert, now),
		EvaluatedAt:          now,
	}
}

// InCooldown reports whether alert fired less than its cooldown ago.
func InCooldown(alert Alert, now time.Time) bool {
	if alert.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*alert.LastTriggeredAt) < alert.Cooldown()
}
