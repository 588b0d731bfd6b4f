package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/history"
	"bridgewatch/internal/storage"
)

const exportAverageDays = 7

// exportRow is one snapshot plus its trailing average.
type exportRow struct {
	Snapshot storage.SnapshotRecord
	Avg7d    decimal.NullDecimal
}

// Export renders historical snapshots as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx, "export")
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	// the extra week feeds the first averages
	records, err := store.ListSnapshotsBetween(ctx, from.Add(-exportAverageDays*24*time.Hour), to)
	if err != nil {
		return err
	}
	rows := buildExportRows(records, from)
	if len(rows) == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleRows(rows, opts.MaxPoints)
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

// buildExportRows keeps records at or after from, attaching the trailing
// EUR/BRL average computed over every record.
func buildExportRows(records []storage.SnapshotRecord, from time.Time) []exportRow {
	samples := history.SamplesFor(domain.PairEURBRL, snapshotsOf(records))

	rows := make([]exportRow, 0, len(records))
	for _, rec := range records {
		if rec.Timestamp.Before(from) {
			continue
		}
		row := exportRow{Snapshot: rec}
		if avg, ok := history.Average(samples, exportAverageDays, rec.Timestamp); ok {
			row.Avg7d = decimal.NewNullDecimal(avg)
		}
		rows = append(rows, row)
	}
	return rows
}

func downsampleRows(rows []exportRow, max int) []exportRow {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	if max == 1 {
		return rows[len(rows)-1:]
	}

	result := make([]exportRow, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, rows []exportRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts", "usdc_brl", "usdc_eur", "eur_to_usdc", "eur_brl", "brl_eur", "eur_brl_avg7d", "source"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		snap := row.Snapshot
		avg := ""
		if row.Avg7d.Valid {
			avg = row.Avg7d.Decimal.String()
		}
		record := []string{
			snap.Timestamp.Format(time.RFC3339),
			snap.USDCBRL.String(),
			snap.USDCEUR.String(),
			snap.EURToUSDC.String(),
			snap.Cross.String(),
			snap.RateFor(domain.PairBRLEUR).String(),
			avg,
			snap.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSnapshotsPNG(path string, rows []exportRow) error {
	if len(rows) < 2 {
		return errors.New("at least two snapshots are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(rows))
	cross := make([]float64, len(rows))
	var avgX []time.Time
	var avg []float64

	for i, row := range rows {
		x[i] = row.Snapshot.Timestamp
		cross[i] = row.Snapshot.Cross.InexactFloat64()
		if row.Avg7d.Valid {
			avgX = append(avgX, row.Snapshot.Timestamp)
			avg = append(avg, row.Avg7d.Decimal.InexactFloat64())
		}
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    "EUR/BRL",
			XValues: x,
			YValues: cross,
		},
	}
	// go-chart needs at least two points per series
	if len(avg) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "EUR/BRL 7d avg",
			XValues: avgX,
			YValues: avg,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Rate (BRL per EUR)",
			ValueFormatter: rateFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
