package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bridgewatch/internal/app"
)

var (
	replayFrom string
	replayTo   string
)

var replayCmd = &cobra.Command{
	Use:   "replay <alert-id>",
	Short: "Re-evaluate an alert over recorded snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFrom == "" {
			return fmt.Errorf("--from must be provided")
		}
		from, err := parseTimeFlag("from", replayFrom)
		if err != nil {
			return err
		}

		to := time.Now().UTC()
		if replayTo != "" {
			if to, err = parseTimeFlag("to", replayTo); err != nil {
				return err
			}
		}
		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		return getApp().Replay(cmd.Context(), app.ReplayOptions{AlertID: args[0], From: from, To: to})
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "End timestamp (RFC3339, inclusive, defaults to now)")
}
