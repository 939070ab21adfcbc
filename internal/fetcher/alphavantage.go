package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	alphaVantageDefaultBaseURL = "https://www.alphavantage.co"
	exchangeRateKey            = "Realtime Currency Exchange Rate"
	exchangeRateField          = "5. Exchange Rate"
)

// Payload keys Alpha Vantage uses instead of an HTTP error status.
var alphaVantageMarkers = []string{"Error Message", "Note", "Information"}

// AlphaVantage reads realtime currency and crypto exchange rates.
type AlphaVantage struct {
	httpSource
	apiKey string
}

// NewAlphaVantage constructs a currency-rate fetcher.
func NewAlphaVantage(opts Options, gate Gate, logger zerolog.Logger) *AlphaVantage {
	return &AlphaVantage{
		httpSource: newHTTPSource("alphavantage", alphaVantageDefaultBaseURL, opts, gate, logger),
		apiKey:     opts.APIKey,
	}
}

// Name identifies the source in provenance and rate-gate state.
func (a *AlphaVantage) Name() string { return a.name }

// Fetch returns the rate for a pair written as FROM:TO, e.g. USD:INR.
func (a *AlphaVantage) Fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	if a.apiKey == "" {
		return decimal.Decimal{}, NewError(a.name, pair, KindUpstream, errors.New("api key not configured"))
	}
	from, to, ok := strings.Cut(strings.ToUpper(pair), ":")
	if !ok || from == "" || to == "" {
		return decimal.Decimal{}, NewError(a.name, pair, KindShape, errors.New("pair must be FROM:TO"))
	}

	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", from)
	params.Set("to_currency", to)
	params.Set("apikey", a.apiKey)

	payload, err := a.get(ctx, pair, "/query", params)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var raw map[string]json.RawMessage
	if err := a.decode(pair, payload, &raw); err != nil {
		return decimal.Decimal{}, err
	}

	for _, marker := range alphaVantageMarkers {
		if msg, found := raw[marker]; found {
			var text string
			_ = json.Unmarshal(msg, &text)
			return decimal.Decimal{}, NewError(a.name, pair, KindUpstream, fmt.Errorf("%s: %s", marker, text))
		}
	}

	body, found := raw[exchangeRateKey]
	if !found {
		return decimal.Decimal{}, NewError(a.name, pair, KindShape, fmt.Errorf("%q missing", exchangeRateKey))
	}

	var fields map[string]string
	if err := a.decode(pair, body, &fields); err != nil {
		return decimal.Decimal{}, err
	}

	rateText, found := fields[exchangeRateField]
	if !found || rateText == "" {
		return decimal.Decimal{}, NewError(a.name, pair, KindShape, fmt.Errorf("%q missing", exchangeRateField))
	}

	rate, err := decimal.NewFromString(rateText)
	if err != nil {
		return decimal.Decimal{}, NewError(a.name, pair, KindShape, fmt.Errorf("parse rate: %w", err))
	}

	return rate, nil
}

var _ Source = (*AlphaVantage)(nil)
