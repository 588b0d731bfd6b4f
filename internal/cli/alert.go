package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/app"
	"bridgewatch/internal/domain"
)

var (
	alertPair      string
	alertRule      string
	alertThreshold string
	alertCooldown  int
	alertListLimit int
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage rate alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a rate alert",
	Example: `  bridgewatch alert add --pair eurbrl --rule absolute --threshold 6.20
  bridgewatch alert add --pair eurbrl --rule relative:avg30d --threshold 3 --cooldown 120`,
	RunE: func(cmd *cobra.Command, args []string) error {
		alert, err := alertFromFlags(alertPair, alertRule, alertThreshold, alertCooldown)
		if err != nil {
			return err
		}
		return getApp().AddAlert(cmd.Context(), app.AlertOptions{Alert: alert})
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertListLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ListAlerts(cmd.Context(), alertListLimit)
	},
}

var alertEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Re-activate an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAlertActive(cmd.Context(), args[0], true)
	},
}

var alertDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Deactivate an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAlertActive(cmd.Context(), args[0], false)
	},
}

func alertFromFlags(pairRaw, ruleRaw, thresholdRaw string, cooldown int) (alerting.Alert, error) {
	pair, err := domain.ParsePair(pairRaw)
	if err != nil {
		return alerting.Alert{}, err
	}
	thresholdType, reference, err := parseRule(ruleRaw)
	if err != nil {
		return alerting.Alert{}, err
	}
	threshold, err := parseDecimalFlag("threshold", thresholdRaw)
	if err != nil {
		return alerting.Alert{}, err
	}

	alert := alerting.Alert{
		Pair:            pair,
		ThresholdType:   thresholdType,
		ThresholdValue:  threshold,
		ReferenceType:   reference,
		CooldownMinutes: cooldown,
	}
	if err := alert.Validate(); err != nil {
		return alerting.Alert{}, err
	}
	return alert, nil
}

func addAlertRuleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&alertPair, "pair", "eurbrl", "Rate pair (eurbrl or brleur)")
	cmd.Flags().StringVar(&alertRule, "rule", "absolute", "absolute or relative:<current|avg7d|avg30d|avg90d>")
	cmd.Flags().StringVar(&alertThreshold, "threshold", "", "Absolute rate, or percentage over the reference")
	cmd.Flags().IntVar(&alertCooldown, "cooldown", 60, "Minutes between two notifications")
}

func init() {
	addAlertRuleFlags(alertAddCmd)
	addAlertRuleFlags(simulateCmd)
	alertListCmd.Flags().IntVar(&alertListLimit, "limit", 50, "Number of alerts to display")

	alertCmd.AddCommand(alertAddCmd, alertListCmd, alertEnableCmd, alertDisableCmd)
}
