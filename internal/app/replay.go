package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/service"
	"bridgewatch/internal/storage"
)

// Replay re-evaluates a stored alert over recorded snapshots and lists the
// times it would have fired.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	id, err := uuid.Parse(opts.AlertID)
	if err != nil {
		return fmt.Errorf("invalid alert id: %w", err)
	}
	from, to := opts.From.UTC(), opts.To.UTC()
	if !from.Before(to) {
		return errors.New("replay range is empty, check --from/--to")
	}

	store, closeStore, err := a.requireStore(ctx, "replay alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	alert, err := store.GetAlert(ctx, id)
	if err != nil {
		return err
	}
	// replay starts from a clean trigger history
	alert.LastTriggeredAt = nil

	warmup := from.Add(-time.Duration(alert.ReferenceType.WindowDays()) * 24 * time.Hour)
	records, err := store.ListSnapshotsBetween(ctx, warmup, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no snapshots found for replay window")
		return nil
	}

	fired := service.Replay(alert, snapshotsOf(records), from)
	a.Logger.Info().Str("alert_id", id.String()).
		Int("snapshots", len(records)).
		Int("fired", len(fired)).
		Msg("replay finished")
	renderFirings(a.Out, fired)
	return nil
}

func snapshotsOf(records []storage.SnapshotRecord) []domain.RateSnapshot {
	out := make([]domain.RateSnapshot, len(records))
	for i, r := range records {
		out[i] = r.RateSnapshot
	}
	return out
}

func renderFirings(out io.Writer, fired []alerting.EvaluationResult) {
	if len(fired) == 0 {
		fmt.Fprintln(out, "alert would not have fired")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tRate\tThreshold\tReference")
	for _, r := range fired {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			r.EvaluatedAt.UTC().Format(time.RFC3339),
			formatDecimal(r.CurrentRate, 6),
			formatDecimal(r.CalculatedThreshold, 6),
			formatNullDecimal(r.ReferenceValue, 6),
		)
	}
	writer.Flush()
}
