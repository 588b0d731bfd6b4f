package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"bridgewatch/internal/comparison"
	"bridgewatch/internal/conversion"
	"bridgewatch/internal/domain"
)

// QuoteRequest asks off-chain providers to price a conversion.
type QuoteRequest struct {
	Pair domain.Pair
	Mode conversion.Mode
	// Amount is the source amount in forward mode and the desired target
	// amount in reverse mode.
	Amount decimal.Decimal
	// SendAmountHint sizes the provider query in reverse mode, where providers
	// only quote by send amount.
	SendAmountHint decimal.Decimal
}

// ProviderQuoter retrieves off-chain provider quotes.
type ProviderQuoter interface {
	Quotes(ctx context.Context, req QuoteRequest) ([]comparison.ProviderQuote, error)
}
