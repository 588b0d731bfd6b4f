package alerting

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bridgewatch/internal/domain"
)

// ThresholdType selects how an alert's ThresholdValue is read.
type ThresholdType string

const (
	// ThresholdAbsolute treats ThresholdValue as a rate.
	ThresholdAbsolute ThresholdType = "absolute"
	// ThresholdRelative treats ThresholdValue as a percentage over a reference.
	ThresholdRelative ThresholdType = "relative"
)

// ReferenceType is the baseline a relative alert is measured against.
type ReferenceType string

const (
	ReferenceNone    ReferenceType = ""
	ReferenceCurrent ReferenceType = "current"
	ReferenceAvg7d   ReferenceType = "avg7d"
	ReferenceAvg30d  ReferenceType = "avg30d"
	ReferenceAvg90d  ReferenceType = "avg90d"
)

// WindowDays maps an averaged reference onto its window length. It returns 0
// for references that are not averages.
func (r ReferenceType) WindowDays() int {
	switch r {
	case ReferenceAvg7d:
		return 7
	case ReferenceAvg30d:
		return 30
	case ReferenceAvg90d:
		return 90
	default:
		return 0
	}
}

// MaxWindowDays is the longest averaging window an alert can ask for.
const MaxWindowDays = 90

// ErrInvalidAlert wraps every alert definition rejected by Validate.
var ErrInvalidAlert = errors.New("invalid alert")

// Alert is a programmed rate alert. Alerts only fire upwards: the rate must
// reach or exceed the resolved threshold.
type Alert struct {
	ID              uuid.UUID
	Pair            domain.Pair
	ThresholdType   ThresholdType
	ThresholdValue  decimal.Decimal
	ReferenceType   ReferenceType
	CooldownMinutes int
	Active          bool
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// Cooldown returns the minimum spacing between two firings.
func (a Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// Validate rejects malformed definitions at creation time. Evaluation assumes
// alerts already passed it.
func (a Alert) Validate() error {
	if !a.Pair.Valid() {
		return fmt.Errorf("%w: unknown pair", ErrInvalidAlert)
	}
	if !a.ThresholdValue.IsPositive() {
		return fmt.Errorf("%w: threshold value must be positive", ErrInvalidAlert)
	}
	if a.CooldownMinutes <= 0 {
		return fmt.Errorf("%w: cooldown must be positive", ErrInvalidAlert)
	}
	switch a.ThresholdType {
	case ThresholdAbsolute:
		if a.ReferenceType != ReferenceNone {
			return fmt.Errorf("%w: absolute alerts take no reference", ErrInvalidAlert)
		}
	case ThresholdRelative:
		switch a.ReferenceType {
		case ReferenceCurrent, ReferenceAvg7d, ReferenceAvg30d, ReferenceAvg90d:
		case ReferenceNone:
			return fmt.Errorf("%w: relative alerts require a reference", ErrInvalidAlert)
		default:
			return fmt.Errorf("%w: unknown reference %q", ErrInvalidAlert, a.ReferenceType)
		}
	default:
		return fmt.Errorf("%w: unknown threshold type %q", ErrInvalidAlert, a.ThresholdType)
	}
	return nil
}
