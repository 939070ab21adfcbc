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

const worldBankDefaultBaseURL = "https://api.worldbank.org"

// WorldBank reads the most recent non-empty observation of a World Bank
// indicator for one country.
type WorldBank struct {
	httpSource
	country string
}

// NewWorldBank constructs a macro-statistics fetcher. Country is an ISO3 code.
func NewWorldBank(opts Options, country string, gate Gate, logger zerolog.Logger) *WorldBank {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = "IND"
	}
	return &WorldBank{
		httpSource: newHTTPSource("worldbank", worldBankDefaultBaseURL, opts, gate, logger),
		country:    country,
	}
}

// Name identifies the source in provenance and rate-gate state.
func (w *WorldBank) Name() string { return w.name }

// Fetch returns the latest value for an indicator code such as FP.CPI.TOTL.ZG.
func (w *WorldBank) Fetch(ctx context.Context, indicator string) (decimal.Decimal, error) {
	if indicator == "" {
		return decimal.Decimal{}, NewError(w.name, indicator, KindShape, errors.New("indicator code required"))
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("mrnev", "1")

	path := fmt.Sprintf("/v2/country/%s/indicator/%s", url.PathEscape(w.country), url.PathEscape(indicator))
	payload, err := w.get(ctx, indicator, path, params)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var parts []json.RawMessage
	if err := w.decode(indicator, payload, &parts); err != nil {
		return decimal.Decimal{}, err
	}
	if len(parts) == 0 {
		return decimal.Decimal{}, NewError(w.name, indicator, KindShape, errors.New("empty payload"))
	}

	var meta worldBankMeta
	if err := json.Unmarshal(parts[0], &meta); err == nil && len(meta.Message) > 0 {
		msg := meta.Message[0]
		return decimal.Decimal{}, NewError(w.name, indicator, KindUpstream, fmt.Errorf("%s: %s", msg.Key, msg.Value))
	}
	if len(parts) < 2 {
		return decimal.Decimal{}, NewError(w.name, indicator, KindShape, errors.New("observation list missing"))
	}

	var rows []worldBankRow
	if err := w.decode(indicator, parts[1], &rows); err != nil {
		return decimal.Decimal{}, err
	}
	for _, row := range rows {
		if row.Value != nil {
			w.logger.Debug().Str("indicator", indicator).Str("date", row.Date).Float64("value", *row.Value).Msg("observation")
			return decimal.NewFromFloat(*row.Value), nil
		}
	}

	return decimal.Decimal{}, NewError(w.name, indicator, KindShape, errors.New("no non-empty observation"))
}

type worldBankMeta struct {
	Page    int `json:"page"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type worldBankRow struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

var _ Source = (*WorldBank)(nil)
