package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/service"
	"bridgewatch/internal/storage"
)

// Show prints recent snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx, "show snapshots")
	if err != nil {
		return err
	}
	defer closeStore()

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	renderSnapshots(a.Out, snapshots)
	return nil
}

func renderSnapshots(out io.Writer, snapshots []storage.SnapshotRecord) {
	if len(snapshots) == 0 {
		fmt.Fprintln(out, "no snapshots found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tUSDC/BRL\tUSDC/EUR\tEUR/BRL\tBRL/EUR\tSource")
	for _, snap := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			snap.Timestamp.UTC().Format(time.RFC3339),
			formatDecimal(snap.USDCBRL, 4),
			formatDecimal(snap.USDCEUR, 4),
			formatDecimal(snap.Cross, 4),
			formatDecimal(snap.RateFor(domain.PairBRLEUR), 6),
			sanitizeInline(snap.Source),
		)
	}
	writer.Flush()
}

func renderReport(out io.Writer, report service.CycleReport) {
	switch {
	case report.Skipped:
		fmt.Fprintln(out, "cycle skipped: another instance holds the lock")
		return
	case report.RatesUnavailable:
		fmt.Fprintln(out, "rates unavailable: no snapshot recorded")
		return
	}

	fmt.Fprintf(out, "evaluated=%d triggered=%d fired=%d suppressed=%d deferred=%d lost_race=%d failed=%d\n",
		report.Evaluated, report.Triggered, report.Fired, report.Suppressed,
		report.Deferred, report.LostRace, report.Failed)
	if len(report.Results) == 0 {
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Alert\tPair\tRate\tThreshold\tReference\tTriggered\tCooldown")
	for _, r := range report.Results {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%t\t%t\n",
			r.Alert.ID,
			r.Alert.Pair,
			formatDecimal(r.CurrentRate, 6),
			formatDecimal(r.CalculatedThreshold, 6),
			formatNullDecimal(r.ReferenceValue, 6),
			r.Triggered,
			r.SuppressedByCooldown,
		)
	}
	writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return strings.ReplaceAll(cleaned, "\t", " ")
}
