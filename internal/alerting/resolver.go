package alerting

import (
	"errors"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/history"
)

// ErrMissingReferenceData means a relative alert's historical average is not
// available. The alert cannot be evaluated this cycle; it is neither met nor
// unmet.
var ErrMissingReferenceData = errors.New("alerting: missing reference data")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Resolution is a concrete trigger threshold for one alert at one instant.
type Resolution struct {
	CurrentRate decimal.Decimal
	// ReferenceValue is invalid for absolute alerts.
	ReferenceValue      decimal.NullDecimal
	CalculatedThreshold decimal.Decimal
}

// Resolve turns an alert into a numeric threshold. Relative alerts with an
// averaged reference consult avg; when it has no data Resolve returns
// ErrMissingReferenceData rather than falling back to the current rate.
func Resolve(alert Alert, currentRate decimal.Decimal, avg history.AverageFunc) (Resolution, error) {
	res := Resolution{CurrentRate: currentRate}

	if alert.ThresholdType != ThresholdRelative {
		res.CalculatedThreshold = alert.ThresholdValue
		return res, nil
	}

	reference := currentRate
	if alert.ReferenceType != ReferenceCurrent {
		if avg == nil {
			return Resolution{}, ErrMissingReferenceData
		}
		value, ok := avg(alert.Pair, alert.ReferenceType.WindowDays())
		if !ok {
			return Resolution{}, ErrMissingReferenceData
		}
		reference = value
	}

	res.ReferenceValue = decimal.NewNullDecimal(reference)
	res.CalculatedThreshold = reference.Mul(one.Add(alert.ThresholdValue.Div(hundred)))
	return res, nil
}
