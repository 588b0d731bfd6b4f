package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"bridgewatch/internal/alerting"
)

// AlertOptions describe a new alert.
type AlertOptions struct {
	Alert alerting.Alert
}

// AddAlert validates and persists a new alert.
func (a *App) AddAlert(ctx context.Context, opts AlertOptions) error {
	if err := opts.Alert.Validate(); err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx, "add alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	alert := opts.Alert
	alert.Active = true
	stored, err := store.InsertAlert(ctx, alert)
	if err != nil {
		return err
	}
	a.Logger.Info().Str("alert_id", stored.ID.String()).Str("pair", stored.Pair.String()).Msg("alert created")
	renderAlerts(a.Out, []alerting.Alert{stored})
	return nil
}

// ListAlerts prints up to limit alerts.
func (a *App) ListAlerts(ctx context.Context, limit int) error {
	store, closeStore, err := a.requireStore(ctx, "list alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := store.ListAlerts(ctx, limit)
	if err != nil {
		return err
	}
	renderAlerts(a.Out, alerts)
	return nil
}

// SetAlertActive enables or disables an alert.
func (a *App) SetAlertActive(ctx context.Context, rawID string, active bool) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid alert id: %w", err)
	}

	store, closeStore, err := a.requireStore(ctx, "update alerts")
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.SetAlertActive(ctx, id, active); err != nil {
		return err
	}
	a.Logger.Info().Str("alert_id", id.String()).Bool("active", active).Msg("alert updated")
	return nil
}

func renderAlerts(out io.Writer, alerts []alerting.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tPair\tRule\tCooldown\tActive\tLast Triggered (UTC)")
	for _, alert := range alerts {
		last := "-"
		if alert.LastTriggeredAt != nil {
			last = alert.LastTriggeredAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%t\t%s\n",
			alert.ID,
			alert.Pair,
			describeRule(alert),
			alert.Cooldown(),
			alert.Active,
			last,
		)
	}
	writer.Flush()
}

func describeRule(alert alerting.Alert) string {
	if alert.ThresholdType == alerting.ThresholdRelative {
		return fmt.Sprintf(">= %s +%s%%", alert.ReferenceType, alert.ThresholdValue)
	}
	return fmt.Sprintf(">= %s", alert.ThresholdValue)
}
