// Package conversion prices the on-chain route: buy USDC with the source
// currency, move it over the network, sell it for the target currency.
//
// Every function here is pure. Amounts and rates are expected to be validated
// by the caller (positive, finite); the engine never returns an error.
package conversion

import (
	"github.com/shopspring/decimal"

	"bridgewatch/internal/domain"
)

// Mode selects between pricing a known input and solving for a desired output.
type Mode uint8

const (
	// Forward computes the output produced by a given input.
	Forward Mode = iota + 1
	// Reverse computes the input required for a desired output.
	Reverse
)

func (m Mode) String() string {
	if m == Reverse {
		return "reverse"
	}
	return "forward"
}

// Breakdown step names.
const (
	StepInput            = "input"
	StepUSDCAfterBuy     = "usdc_after_buy"
	StepUSDCFromBRL      = "usdc_from_brl"
	StepUSDCAfterNetwork = "usdc_after_network"
	StepBRLAfterTrade    = "brl_after_trade"
	StepBRLNet           = "brl_net"
	StepEUROut           = "eur_out"
)

var one = decimal.NewFromInt(1)

// Step is one named intermediate quantity of a conversion.
type Step struct {
	Name  string
	Value decimal.Decimal
}

// Result describes a priced conversion.
type Result struct {
	Pair         domain.Pair
	Mode         Mode
	InputAmount  decimal.Decimal
	OutputAmount decimal.Decimal
	// EffectiveRate is OutputAmount/InputAmount; invalid when InputAmount is zero.
	EffectiveRate decimal.NullDecimal
	Breakdown     []Step
	// Clamped is set when a fixed fee floored an intermediate amount at zero.
	// Such results are not invertible.
	Clamped bool
}

// Step returns the breakdown value with the given name.
func (r Result) Step(name string) (decimal.Decimal, bool) {
	for _, s := range r.Breakdown {
		if s.Name == name {
			return s.Value, true
		}
	}
	return decimal.Zero, false
}

// CalculateForward prices amountIn of the pair's source currency.
func CalculateForward(pair domain.Pair, amountIn decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	if pair == domain.PairBRLEUR {
		return forwardBRLEUR(amountIn, rates, fees)
	}
	return forwardEURBRL(amountIn, rates, fees)
}

func forwardEURBRL(in decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	usdcAfterBuy := in.Mul(one.Sub(fees.TradeFeeEU)).Mul(rates.EURToUSDC)
	usdcAfterNetwork, clampNetwork := subFloor(usdcAfterBuy, fees.NetworkFeeFixed)
	brlAfterTrade := usdcAfterNetwork.Mul(one.Sub(fees.TradeFeeBR)).Mul(rates.USDCBRL)
	brlNet, clampWithdraw := subFloor(brlAfterTrade, fees.WithdrawFeeFixed)

	return newResult(domain.PairEURBRL, Forward, in, brlNet, clampNetwork || clampWithdraw, []Step{
		{Name: StepInput, Value: in},
		{Name: StepUSDCAfterBuy, Value: usdcAfterBuy},
		{Name: StepUSDCAfterNetwork, Value: usdcAfterNetwork},
		{Name: StepBRLAfterTrade, Value: brlAfterTrade},
		{Name: StepBRLNet, Value: brlNet},
	})
}

// The EUR leg has no withdrawal fee.
func forwardBRLEUR(in decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	usdcFromBRL := div(in, rates.USDCBRL).Mul(one.Sub(fees.TradeFeeBR))
	usdcAfterNetwork, clamped := subFloor(usdcFromBRL, fees.NetworkFeeFixed)
	eurOut := div(usdcAfterNetwork, rates.EURToUSDC).Mul(one.Sub(fees.TradeFeeEU))

	return newResult(domain.PairBRLEUR, Forward, in, eurOut, clamped, []Step{
		{Name: StepInput, Value: in},
		{Name: StepUSDCFromBRL, Value: usdcFromBRL},
		{Name: StepUSDCAfterNetwork, Value: usdcAfterNetwork},
		{Name: StepEUROut, Value: eurOut},
	})
}

// CalculateReverse solves for the input needed to receive desiredOut of the
// pair's target currency by undoing the forward steps in reverse order.
//
// The inverse is exact up to decimal division precision (16 fractional digits)
// whenever the matching forward pass does not clamp. Forward passes whose
// output was floored at zero cannot be recovered: every input below the fixed
// fee floor maps to zero, so reversing a zero output yields the smallest input
// that reaches the floor and the result is marked Clamped. Callers comparing a
// round trip should allow a relative tolerance of 1e-9.
func CalculateReverse(pair domain.Pair, desiredOut decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	if pair == domain.PairBRLEUR {
		return reverseBRLEUR(desiredOut, rates, fees)
	}
	return reverseEURBRL(desiredOut, rates, fees)
}

func reverseEURBRL(out decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	brlAfterTrade := out.Add(fees.WithdrawFeeFixed)
	usdcAfterNetwork := div(brlAfterTrade, one.Sub(fees.TradeFeeBR).Mul(rates.USDCBRL))
	usdcAfterBuy := usdcAfterNetwork.Add(fees.NetworkFeeFixed)
	in := div(usdcAfterBuy, one.Sub(fees.TradeFeeEU).Mul(rates.EURToUSDC))

	return newResult(domain.PairEURBRL, Reverse, in, out, !out.IsPositive(), []Step{
		{Name: StepInput, Value: in},
		{Name: StepUSDCAfterBuy, Value: usdcAfterBuy},
		{Name: StepUSDCAfterNetwork, Value: usdcAfterNetwork},
		{Name: StepBRLAfterTrade, Value: brlAfterTrade},
		{Name: StepBRLNet, Value: out},
	})
}

func reverseBRLEUR(out decimal.Decimal, rates domain.RateSnapshot, fees domain.FeeConfig) Result {
	usdcAfterNetwork := div(out, one.Sub(fees.TradeFeeEU)).Mul(rates.EURToUSDC)
	usdcFromBRL := usdcAfterNetwork.Add(fees.NetworkFeeFixed)
	in := div(usdcFromBRL, one.Sub(fees.TradeFeeBR)).Mul(rates.USDCBRL)

	return newResult(domain.PairBRLEUR, Reverse, in, out, !out.IsPositive(), []Step{
		{Name: StepInput, Value: in},
		{Name: StepUSDCFromBRL, Value: usdcFromBRL},
		{Name: StepUSDCAfterNetwork, Value: usdcAfterNetwork},
		{Name: StepEUROut, Value: out},
	})
}

func newResult(pair domain.Pair, mode Mode, in, out decimal.Decimal, clamped bool, steps []Step) Result {
	res := Result{
		Pair:         pair,
		Mode:         mode,
		InputAmount:  in,
		OutputAmount: out,
		Breakdown:    steps,
		Clamped:      clamped,
	}
	if !in.IsZero() {
		res.EffectiveRate = decimal.NewNullDecimal(out.Div(in))
	}
	return res
}

// subFloor returns max(0, a-b) and whether the floor was hit.
func subFloor(a, b decimal.Decimal) (decimal.Decimal, bool) {
	d := a.Sub(b)
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d, false
}

func div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
