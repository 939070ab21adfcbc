package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"econ-snapshot/internal/ratelimit"
	"econ-snapshot/internal/version"
)

// Options parameterise an HTTP-backed source.
type Options struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

type httpSource struct {
	name      string
	baseURL   string
	userAgent string
	client    *http.Client
	gate      Gate
	logger    zerolog.Logger
}

func newHTTPSource(name, defaultBaseURL string, opts Options, gate Gate, logger zerolog.Logger) httpSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return httpSource{
		name:      name,
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		gate:      gate,
		logger:    logger.With().Str("component", name+"_fetcher").Logger(),
	}
}

// get issues one gated GET and returns the body of a 200 response.
func (h *httpSource) get(ctx context.Context, identifier, path string, params url.Values) ([]byte, error) {
	if h.gate != nil {
		if err := h.gate.Acquire(ctx, h.name); err != nil {
			if errors.Is(err, ratelimit.ErrBudgetExhausted) {
				return nil, NewError(h.name, identifier, KindExhausted, err)
			}
			return nil, NewError(h.name, identifier, KindNetwork, err)
		}
	}

	endpoint := h.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewError(h.name, identifier, KindNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	h.logger.Debug().Str("identifier", identifier).Str("path", path).Msg("upstream request")

	resp, err := h.client.Do(req)
	if h.gate != nil {
		h.gate.Record(h.name)
	}
	if err != nil {
		return nil, NewError(h.name, identifier, KindNetwork, redactURLError(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(h.name, identifier, KindNetwork, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(h.name, identifier, KindUpstream, parseHTTPError(resp.StatusCode, payload))
	}

	return payload, nil
}

// Query parameters whose values never appear in errors or logs.
var secretParams = []string{"apikey", "api_key", "token"}

// redactURLError masks credentials in the request URL that net/http embeds
// in transport errors.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: redactURL(uerr.URL), Err: uerr.Err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	query := u.Query()
	changed := false
	for _, key := range secretParams {
		if query.Has(key) {
			query.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func (h *httpSource) decode(identifier string, payload []byte, dest any) error {
	if err := json.Unmarshal(payload, dest); err != nil {
		return NewError(h.name, identifier, KindShape, fmt.Errorf("decode: %w", err))
	}
	return nil
}

type errorResponse struct {
	Description string `json:"description"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("status %d: %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("status %d: %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", status, apiErr.Error)
		}
	}
	if text := strings.TrimSpace(string(payload)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		return fmt.Errorf("status %d: %s", status, text)
	}
	return fmt.Errorf("status %d", status)
}
