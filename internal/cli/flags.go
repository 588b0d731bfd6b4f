package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/conversion"
)

func parseDecimalFlag(name, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return d, nil
}

func parseTimeFlag(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return t, nil
}

func parseMode(raw string) (conversion.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "forward":
		return conversion.Forward, nil
	case "reverse":
		return conversion.Reverse, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want forward or reverse)", raw)
	}
}

// parseRule reads "absolute" or "relative:<reference>".
func parseRule(raw string) (alerting.ThresholdType, alerting.ReferenceType, error) {
	kind, ref, _ := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ":")
	switch alerting.ThresholdType(kind) {
	case alerting.ThresholdAbsolute:
		if ref != "" {
			return "", "", fmt.Errorf("absolute rules take no reference")
		}
		return alerting.ThresholdAbsolute, alerting.ReferenceNone, nil
	case alerting.ThresholdRelative:
		return alerting.ThresholdRelative, alerting.ReferenceType(ref), nil
	default:
		return "", "", fmt.Errorf("unknown rule %q (want absolute or relative:<current|avg7d|avg30d|avg90d>)", raw)
	}
}

func parseDecimalList(name, raw string) ([]decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]decimal.Decimal, 0, len(parts))
	for _, p := range parts {
		d, err := parseDecimalFlag(name, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
