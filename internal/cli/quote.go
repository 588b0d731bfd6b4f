package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bridgewatch/internal/app"
	"bridgewatch/internal/domain"
)

var (
	quotePair    string
	quoteMode    string
	quoteAmount  string
	quoteUSDCBRL string
	quoteUSDCEUR string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a conversion on-chain and compare it with providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		pair, err := domain.ParsePair(quotePair)
		if err != nil {
			return err
		}
		mode, err := parseMode(quoteMode)
		if err != nil {
			return err
		}
		amount, err := parseDecimalFlag("amount", quoteAmount)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return fmt.Errorf("--amount must be greater than zero")
		}

		opts := app.QuoteOptions{Pair: pair, Mode: mode, Amount: amount}
		if opts.USDCBRL, err = parseDecimalFlag("usdc-brl", quoteUSDCBRL); err != nil {
			return err
		}
		if opts.USDCEUR, err = parseDecimalFlag("usdc-eur", quoteUSDCEUR); err != nil {
			return err
		}
		if opts.USDCBRL.IsPositive() != opts.USDCEUR.IsPositive() {
			return fmt.Errorf("--usdc-brl and --usdc-eur must be given together")
		}

		return getApp().Quote(cmd.Context(), opts)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quotePair, "pair", "eurbrl", "Conversion route (eurbrl or brleur)")
	quoteCmd.Flags().StringVar(&quoteMode, "mode", "forward", "forward: amount is sent; reverse: amount is received")
	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Amount to convert")
	quoteCmd.Flags().StringVar(&quoteUSDCBRL, "usdc-brl", "", "USDC/BRL rate to use instead of the stored snapshot")
	quoteCmd.Flags().StringVar(&quoteUSDCEUR, "usdc-eur", "", "USDC/EUR rate to use instead of the stored snapshot")
}
