package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/storage"
	"bridgewatch/internal/storage/memory"
)

// SimulateOptions describe a dry-run alert evaluation.
type SimulateOptions struct {
	Alert alerting.Alert
	// Rate is the current direct rate of Alert.Pair.
	Rate decimal.Decimal
	// History holds daily rates before now, most recent first.
	History []decimal.Decimal
}

// SimulateAlert evaluates an alert against supplied rates in memory and
// dispatches through the configured notifier when it fires.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}
	if !opts.Rate.IsPositive() {
		return errors.New("rate must be positive")
	}

	now := time.Now().UTC()
	store := memory.NewStore()

	if err := putRate(ctx, store, opts.Alert.Pair, opts.Rate, now); err != nil {
		return err
	}
	for i, rate := range opts.History {
		if err := putRate(ctx, store, opts.Alert.Pair, rate, now.Add(-time.Duration(i+1)*24*time.Hour)); err != nil {
			return err
		}
	}

	alert := opts.Alert
	alert.Active = true
	alert.LastTriggeredAt = nil
	if _, err := store.InsertAlert(ctx, alert); err != nil {
		return err
	}

	svc, err := a.newService(nil, store, store)
	if err != nil {
		return err
	}
	report, err := svc.EvaluateAlerts(ctx, now)
	if err != nil {
		return err
	}
	renderReport(a.Out, report)
	return nil
}

// putRate stores a snapshot whose direct rate for pair is rate.
func putRate(ctx context.Context, store storage.SnapshotStore, pair domain.Pair, rate decimal.Decimal, ts time.Time) error {
	if !rate.IsPositive() {
		return domain.ErrInvalidRate
	}
	usdcBRL := rate
	if pair == domain.PairBRLEUR {
		usdcBRL = decimal.NewFromInt(1).Div(rate)
	}
	snap, err := domain.NewRateSnapshot(usdcBRL, decimal.NewFromInt(1), ts)
	if err != nil {
		return err
	}
	return store.UpsertSnapshot(ctx, storage.SnapshotRecord{RateSnapshot: snap, Source: "simulated"})
}
