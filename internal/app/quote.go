package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/comparison"
	"bridgewatch/internal/conversion"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/storage/memory"
)

// QuoteOptions configure a one-off comparison.
type QuoteOptions struct {
	Pair   domain.Pair
	Mode   conversion.Mode
	Amount decimal.Decimal
	// USDCBRL and USDCEUR, when both set, replace the stored snapshot.
	USDCBRL decimal.Decimal
	USDCEUR decimal.Decimal
}

// Quote prices a conversion on the on-chain route and compares it with the
// configured providers.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	if opts.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}

	cmp, err := a.compare(ctx, opts)
	if err != nil {
		return err
	}
	renderComparison(a.Out, cmp)
	return nil
}

func (a *App) compare(ctx context.Context, opts QuoteOptions) (comparison.Comparison, error) {
	if opts.USDCBRL.IsPositive() && opts.USDCEUR.IsPositive() {
		// ad-hoc rates never touch the database
		scratch := memory.NewStore()
		svc, err := a.newService(nil, scratch, scratch)
		if err != nil {
			return comparison.Comparison{}, err
		}
		if _, err := svc.RecordSnapshot(ctx, opts.USDCBRL, opts.USDCEUR, time.Now().UTC(), "cli"); err != nil {
			return comparison.Comparison{}, err
		}
		return svc.Compare(ctx, opts.Pair, opts.Amount, opts.Mode)
	}

	store, closeStore, err := a.requireStore(ctx, "quote without --usdc-brl/--usdc-eur")
	if err != nil {
		return comparison.Comparison{}, err
	}
	defer closeStore()

	svc, err := a.newService(nil, store, store)
	if err != nil {
		return comparison.Comparison{}, err
	}
	return svc.Compare(ctx, opts.Pair, opts.Amount, opts.Mode)
}

func renderComparison(out io.Writer, cmp comparison.Comparison) {
	src, dst := cmp.Pair.Source(), cmp.Pair.Target()
	onchain := cmp.Onchain

	fmt.Fprintf(out, "%s -> %s (%s)\n", src, dst, cmp.Mode)
	if onchain.Clamped {
		fmt.Fprintln(out, "note: amount is below the fixed fees of the on-chain route")
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Step\tValue")
	for _, step := range onchain.Breakdown {
		fmt.Fprintf(writer, "%s\t%s\n", step.Name, step.Value.StringFixed(4))
	}
	writer.Flush()

	writer = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "\nRoute\tIn (%s)\tOut (%s)\tRate\n", src, dst)
	fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
		comparison.WinnerOnchain,
		onchain.InputAmount.StringFixed(2),
		onchain.OutputAmount.StringFixed(2),
		formatNullDecimal(onchain.EffectiveRate, 6),
	)
	if cmp.BestProvider != nil {
		writeQuoteRow(writer, *cmp.BestProvider)
	}
	for _, q := range cmp.OtherProviders {
		writeQuoteRow(writer, q)
	}
	writer.Flush()

	fmt.Fprintln(out)
	if !cmp.HasProviders() {
		fmt.Fprintln(out, "no provider quotes available")
	} else {
		fmt.Fprintf(out, "delta vs %s: %s%%\n", cmp.BestProvider.ProviderName, formatNullDecimal(cmp.DeltaPercent, 3))
	}
	fmt.Fprintf(out, "winner: %s\n", cmp.Winner)
}

func writeQuoteRow(w io.Writer, q comparison.ProviderQuote) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		sanitizeInline(q.ProviderName),
		q.InputAmount.StringFixed(2),
		q.OutputAmount.StringFixed(2),
		q.EffectiveRate.StringFixed(6),
	)
}

func formatNullDecimal(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(places)
}
