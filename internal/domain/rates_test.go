package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateSnapshotDerivesCross(t *testing.T) {
	snap, err := NewRateSnapshot(decimal.RequireFromString("5.65"), decimal.RequireFromString("0.92"), time.Now())
	require.NoError(t, err)

	assert.InDelta(t, 1.086956, snap.EURToUSDC.InexactFloat64(), 1e-6)
	assert.InDelta(t, 6.141304, snap.Cross.InexactFloat64(), 1e-6)
	assert.InDelta(t, 1/6.141304, snap.RateFor(PairBRLEUR).InexactFloat64(), 1e-6)
	assert.True(t, snap.RateFor(PairEURBRL).Equal(snap.Cross))
	assert.NoError(t, snap.Validate())
}

func TestNewRateSnapshotRejectsNonPositive(t *testing.T) {
	_, err := NewRateSnapshot(decimal.Zero, decimal.NewFromInt(1), time.Now())
	assert.True(t, errors.Is(err, ErrInvalidRate))

	err = RateSnapshot{USDCBRL: decimal.NewFromInt(1)}.Validate()
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestFeeConfigValidate(t *testing.T) {
	ok := FeeConfig{
		TradeFeeEU:       decimal.RequireFromString("0.001"),
		TradeFeeBR:       decimal.RequireFromString("0.001"),
		NetworkFeeFixed:  decimal.NewFromInt(1),
		WithdrawFeeFixed: decimal.RequireFromString("3.5"),
	}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.TradeFeeBR = decimal.NewFromInt(1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidFees)

	bad = ok
	bad.NetworkFeeFixed = decimal.NewFromInt(-1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidFees)
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair(" EURBRL ")
	require.NoError(t, err)
	assert.Equal(t, PairEURBRL, p)
	assert.Equal(t, "brleur", PairBRLEUR.String())
	assert.Equal(t, "BRL", PairBRLEUR.Source())
	assert.Equal(t, "EUR", PairBRLEUR.Target())

	_, err = ParsePair("usdbrl")
	assert.Error(t, err)
	assert.False(t, Pair(0).Valid())
}
