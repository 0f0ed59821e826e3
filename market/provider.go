// Package market implements the market data tools: a quote provider client,
// a TTL cache over its responses, and the tool registrations that expose
// stock information, historical bars, dividends, and multi-ticker comparison.
package market

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
)

// Info is the provider's snapshot of one instrument.
type Info struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	MarketCap     float64 `json:"market_cap"`
	Price         float64 `json:"price"`
	PERatio       float64 `json:"pe_ratio"`
	DividendYield float64 `json:"dividend_yield"`
	High52Week    float64 `json:"high_52_week"`
	Low52Week     float64 `json:"low_52_week"`
}

// Bar is one OHLCV observation.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Dividend is one historical distribution.
type Dividend struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Provider fetches market data for the market tools. Implementations may
// suspend on outbound I/O; this is the only suspension point in the tool
// stack, so every method takes a context.
type Provider interface {
	StockInfo(ctx context.Context, ticker string) (Info, error)
	History(ctx context.Context, ticker, period, interval string) ([]Bar, error)
	Dividends(ctx context.Context, ticker string) ([]Dividend, error)
}

// ErrUpstream tags provider failures so the tool layer can report them as
// upstream failures rather than internal defects.
var ErrUpstream = errors.New("market: upstream provider failure")

const defaultRequestTimeout = 15 * time.Second

// HTTPProviderConfig configures the HTTP quote provider.
type HTTPProviderConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// HTTPProvider talks to a quote API over HTTP JSON. Endpoints:
// GET {base}/v1/quote/{ticker}, GET {base}/v1/history/{ticker}?period=&interval=,
// GET {base}/v1/dividends/{ticker}.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates an HTTP provider for the given base URL.
func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("market: provider base URL is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPProvider{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  client,
	}, nil
}

// StockInfo fetches the instrument snapshot.
func (p *HTTPProvider) StockInfo(ctx context.Context, ticker string) (Info, error) {
	var info Info
	err := p.getJSON(ctx, "/v1/quote/"+url.PathEscape(ticker), nil, &info)
	return info, err
}

// History fetches OHLCV bars over a period at the given interval.
func (p *HTTPProvider) History(ctx context.Context, ticker, period, interval string) ([]Bar, error) {
	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}
	if interval != "" {
		query.Set("interval", interval)
	}
	var bars []Bar
	err := p.getJSON(ctx, "/v1/history/"+url.PathEscape(ticker), query, &bars)
	return bars, err
}

// Dividends fetches the distribution history, most recent last.
func (p *HTTPProvider) Dividends(ctx context.Context, ticker string) ([]Dividend, error) {
	var dividends []Dividend
	err := p.getJSON(ctx, "/v1/dividends/"+url.PathEscape(ticker), nil, &dividends)
	return dividends, err
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := p.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s answered %d", ErrUpstream, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
