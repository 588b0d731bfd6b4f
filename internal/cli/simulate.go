package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"bridgewatch/internal/app"
)

var (
	simulateRate    string
	simulateHistory string
)

var simulateCmd = &cobra.Command{
	Use:     "simulate-alert",
	Short:   "Evaluate an alert against supplied rates and notify if it fires",
	Example: `  bridgewatch simulate-alert --rule relative:avg30d --threshold 3 --rate 6.18 --history 5.91,5.91`,
	RunE: func(cmd *cobra.Command, args []string) error {
		alert, err := alertFromFlags(alertPair, alertRule, alertThreshold, alertCooldown)
		if err != nil {
			return err
		}
		rate, err := parseDecimalFlag("rate", simulateRate)
		if err != nil {
			return err
		}
		if !rate.IsPositive() {
			return errors.New("--rate must be greater than zero")
		}
		history, err := parseDecimalList("history", simulateHistory)
		if err != nil {
			return err
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Alert:   alert,
			Rate:    rate,
			History: history,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateRate, "rate", "", "Current direct rate of the pair")
	simulateCmd.Flags().StringVar(&simulateHistory, "history", "", "Comma separated daily rates before now, most recent first")
}
