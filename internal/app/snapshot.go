package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/storage"
)

// SnapshotOptions describe a manually supplied rate snapshot.
type SnapshotOptions struct {
	USDCBRL decimal.Decimal
	USDCEUR decimal.Decimal
	At      time.Time
	Source  string
}

// RecordSnapshot stores a snapshot derived from the two USDC legs.
func (a *App) RecordSnapshot(ctx context.Context, opts SnapshotOptions) error {
	store, closeStore, err := a.requireStore(ctx, "record snapshots")
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := a.newService(nil, store, store)
	if err != nil {
		return err
	}

	at := opts.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	source := opts.Source
	if source == "" {
		source = "manual"
	}

	record, err := svc.RecordSnapshot(ctx, opts.USDCBRL, opts.USDCEUR, at, source)
	if err != nil {
		return err
	}
	renderSnapshots(a.Out, []storage.SnapshotRecord{record})
	return nil
}
