package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"bridgewatch/internal/comparison"
	"bridgewatch/internal/conversion"
	"bridgewatch/internal/logging"
)

const wiseComparisonsPath = "/v3/comparisons/"

// WiseOptions parameterise the Wise comparison client.
type WiseOptions struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimit      float64
	RateLimitBurst int
	UserAgent      string
}

// Wise fetches provider quotes from the public Wise comparison endpoint,
// which lists Wise alongside banks and other remittance services.
type Wise struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewWise constructs the comparison client.
func NewWise(opts WiseOptions, logger zerolog.Logger) *Wise {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.wise.com"
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "bridgewatch/1.0"
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua)

	return &Wise{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.Component(logger, "wise_quoter"),
	}
}

// Quotes returns one quote per provider. Forward quotes carry the received
// amount; reverse quotes carry the send amount needed to receive req.Amount,
// derived from each provider's rate and fixed fee.
func (w *Wise) Quotes(ctx context.Context, req QuoteRequest) ([]comparison.ProviderQuote, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.New("quote amount must be positive")
	}

	sendAmount := req.Amount
	if req.Mode == conversion.Reverse {
		sendAmount = req.SendAmountHint
		if !sendAmount.IsPositive() {
			return nil, errors.New("reverse quotes need a positive send amount hint")
		}
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var payload comparisonResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sourceCurrency": req.Pair.Source(),
			"targetCurrency": req.Pair.Target(),
			"sendAmount":     sendAmount.StringFixed(2),
		}).
		SetResult(&payload).
		Get(wiseComparisonsPath)
	if err != nil {
		return nil, fmt.Errorf("wise comparison request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("wise api error (%d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	quotes := make([]comparison.ProviderQuote, 0, len(payload.Providers))
	for _, p := range payload.Providers {
		q, ok := toProviderQuote(p, req, sendAmount)
		if !ok {
			continue
		}
		quotes = append(quotes, q)
	}

	w.logger.Debug().Str("pair", req.Pair.String()).
		Str("mode", req.Mode.String()).
		Int("providers", len(payload.Providers)).
		Int("quotes", len(quotes)).
		Msg("provider quotes fetched")
	return quotes, nil
}

func toProviderQuote(p comparisonProvider, req QuoteRequest, sendAmount decimal.Decimal) (comparison.ProviderQuote, bool) {
	if len(p.Quotes) == 0 {
		return comparison.ProviderQuote{}, false
	}
	q := p.Quotes[0]
	if !q.Rate.IsPositive() {
		return comparison.ProviderQuote{}, false
	}

	name := p.Name
	if name == "" {
		name = p.Alias
	}
	out := comparison.ProviderQuote{ProviderName: name}

	if req.Mode == conversion.Reverse {
		in := req.Amount.Div(q.Rate).Add(q.Fee)
		out.InputAmount = in
		out.OutputAmount = req.Amount
		out.EffectiveRate = req.Amount.Div(in)
		return out, true
	}

	received := q.ReceivedAmount
	if !received.IsPositive() {
		received = sendAmount.Sub(q.Fee).Mul(q.Rate)
	}
	if !received.IsPositive() {
		return comparison.ProviderQuote{}, false
	}
	out.InputAmount = sendAmount
	out.OutputAmount = received
	out.EffectiveRate = received.Div(sendAmount)
	return out, true
}

type comparisonResponse struct {
	SourceCurrency string               `json:"sourceCurrency"`
	TargetCurrency string               `json:"targetCurrency"`
	Providers      []comparisonProvider `json:"providers"`
}

type comparisonProvider struct {
	ID     int               `json:"id"`
	Alias  string            `json:"alias"`
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Quotes []comparisonQuote `json:"quotes"`
}

type comparisonQuote struct {
	Rate           decimal.Decimal `json:"rate"`
	Fee            decimal.Decimal `json:"fee"`
	ReceivedAmount decimal.Decimal `json:"receivedAmount"`
	DateCollected  string          `json:"dateCollected"`
}

var _ ProviderQuoter = (*Wise)(nil)
