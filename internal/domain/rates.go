package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRate is returned when a snapshot carries a non-positive rate.
	ErrInvalidRate = errors.New("domain: rate must be positive")
	// ErrInvalidFees is returned when a fee configuration is out of range.
	ErrInvalidFees = errors.New("domain: invalid fee configuration")
)

var one = decimal.NewFromInt(1)

// RateSnapshot is a consistent set of USDC cross rates taken at one instant.
type RateSnapshot struct {
	USDCBRL   decimal.Decimal
	USDCEUR   decimal.Decimal
	EURToUSDC decimal.Decimal
	Cross     decimal.Decimal
	Timestamp time.Time
}

// NewRateSnapshot derives EURToUSDC and Cross from the two USDC legs.
func NewRateSnapshot(usdcBRL, usdcEUR decimal.Decimal, ts time.Time) (RateSnapshot, error) {
	if !usdcBRL.IsPositive() || !usdcEUR.IsPositive() {
		return RateSnapshot{}, ErrInvalidRate
	}
	eurToUSDC := one.Div(usdcEUR)
	return RateSnapshot{
		USDCBRL:   usdcBRL,
		USDCEUR:   usdcEUR,
		EURToUSDC: eurToUSDC,
		Cross:     eurToUSDC.Mul(usdcBRL),
		Timestamp: ts.UTC(),
	}, nil
}

// Validate checks that every rate is positive.
func (s RateSnapshot) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"usdc_brl":    s.USDCBRL,
		"usdc_eur":    s.USDCEUR,
		"eur_to_usdc": s.EURToUSDC,
		"cross":       s.Cross,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("%s: %w", name, ErrInvalidRate)
		}
	}
	return nil
}

// RateFor returns the direct rate quoted for pair: EUR->BRL is the cross rate,
// BRL->EUR is its reciprocal.
func (s RateSnapshot) RateFor(p Pair) decimal.Decimal {
	if p == PairBRLEUR {
		if s.Cross.IsZero() {
			return decimal.Zero
		}
		return one.Div(s.Cross)
	}
	return s.Cross
}

// FeeConfig holds the immutable fee schedule of the on-chain route.
type FeeConfig struct {
	// TradeFeeEU and TradeFeeBR are proportional, in [0,1).
	TradeFeeEU decimal.Decimal
	TradeFeeBR decimal.Decimal
	// NetworkFeeFixed is charged in USDC units.
	NetworkFeeFixed decimal.Decimal
	// WithdrawFeeFixed is charged in destination currency units.
	WithdrawFeeFixed decimal.Decimal
}

// Validate enforces the fee ranges.
func (f FeeConfig) Validate() error {
	for name, v := range map[string]decimal.Decimal{"trade_fee_eu": f.TradeFeeEU, "trade_fee_br": f.TradeFeeBR} {
		if v.IsNegative() || v.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must be in [0,1): %w", name, ErrInvalidFees)
		}
	}
	if f.NetworkFeeFixed.IsNegative() {
		return fmt.Errorf("network_fee_fixed cannot be negative: %w", ErrInvalidFees)
	}
	if f.WithdrawFeeFixed.IsNegative() {
		return fmt.Errorf("withdraw_fee_fixed cannot be negative: %w", ErrInvalidFees)
	}
	return nil
}
