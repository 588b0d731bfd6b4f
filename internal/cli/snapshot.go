package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bridgewatch/internal/app"
)

var (
	snapshotUSDCBRL string
	snapshotUSDCEUR string
	snapshotAt      string
	snapshotSource  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record a USDC rate snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		usdcBRL, err := parseDecimalFlag("usdc-brl", snapshotUSDCBRL)
		if err != nil {
			return err
		}
		usdcEUR, err := parseDecimalFlag("usdc-eur", snapshotUSDCEUR)
		if err != nil {
			return err
		}
		if !usdcBRL.IsPositive() || !usdcEUR.IsPositive() {
			return fmt.Errorf("--usdc-brl and --usdc-eur must be greater than zero")
		}

		opts := app.SnapshotOptions{USDCBRL: usdcBRL, USDCEUR: usdcEUR, Source: snapshotSource}
		if snapshotAt != "" {
			if opts.At, err = parseTimeFlag("at", snapshotAt); err != nil {
				return err
			}
		}
		return getApp().RecordSnapshot(cmd.Context(), opts)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotUSDCBRL, "usdc-brl", "", "BRL per USDC")
	snapshotCmd.Flags().StringVar(&snapshotUSDCEUR, "usdc-eur", "", "EUR per USDC")
	snapshotCmd.Flags().StringVar(&snapshotAt, "at", "", "Snapshot timestamp (RFC3339, defaults to now)")
	snapshotCmd.Flags().StringVar(&snapshotSource, "source", "manual", "Label stored with the snapshot")
}
