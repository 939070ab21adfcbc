package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const yahooDefaultBaseURL = "https://query1.finance.yahoo.com"

// Yahoo reads the latest regular-market price from the Yahoo Finance chart API.
type Yahoo struct {
	httpSource
}

// NewYahoo constructs a market-quote fetcher.
func NewYahoo(opts Options, gate Gate, logger zerolog.Logger) *Yahoo {
	return &Yahoo{httpSource: newHTTPSource("yahoo", yahooDefaultBaseURL, opts, gate, logger)}
}

// Name identifies the source in provenance and rate-gate state.
func (y *Yahoo) Name() string { return y.name }

// Fetch returns the latest price for a Yahoo symbol such as ^NSEI or GC=F.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		return decimal.Decimal{}, NewError(y.name, symbol, KindShape, errors.New("symbol required"))
	}

	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	payload, err := y.get(ctx, symbol, "/v8/finance/chart/"+url.PathEscape(symbol), params)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var res chartResponse
	if err := y.decode(symbol, payload, &res); err != nil {
		return decimal.Decimal{}, err
	}

	if res.Chart.Error != nil {
		msg := res.Chart.Error.Description
		if msg == "" {
			msg = res.Chart.Error.Code
		}
		return decimal.Decimal{}, NewError(y.name, symbol, KindUpstream, errors.New(msg))
	}
	if len(res.Chart.Result) == 0 {
		return decimal.Decimal{}, NewError(y.name, symbol, KindShape, errors.New("empty chart result"))
	}

	price := res.Chart.Result[0].Meta.RegularMarketPrice
	if price == nil {
		return decimal.Decimal{}, NewError(y.name, symbol, KindShape, errors.New("regularMarketPrice missing"))
	}
	if *price <= 0 {
		return decimal.Decimal{}, NewError(y.name, symbol, KindShape, fmt.Errorf("non-positive price %v", *price))
	}

	return decimal.NewFromFloat(*price), nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var _ Source = (*Yahoo)(nil)
