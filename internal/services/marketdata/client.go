package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"FinSqueeze/internal/domain/models"
	drepo "FinSqueeze/internal/domain/repository"
	xhttp "FinSqueeze/pkg/http"
	"FinSqueeze/pkg/util"
)

// Client reads bars and quotes from the upstream market-data HTTP API. Failures are
// reported as *models.DataUnavailableError and never retried here.
type Client struct {
	http *xhttp.Client
}

var (
	_ drepo.BarStore    = (*Client)(nil)
	_ drepo.QuoteSource = (*Client)(nil)
)

// New builds a client for baseURL; apiKey is sent as X-API-Key when set.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	opts := []xhttp.ClientOption{xhttp.WithBaseURL(baseURL), xhttp.WithTimeout(timeout)}
	if apiKey != "" {
		opts = append(opts, xhttp.WithHeader("X-API-Key", apiKey))
	}
	return &Client{http: xhttp.NewClient(opts...)}
}

type barDTO struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type barsResponse struct {
	Symbol string   `json:"symbol"`
	Bars   []barDTO `json:"bars"`
}

type quoteResponse struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Client) GetBars(ctx context.Context, symbol string, from, to time.Time, tf drepo.Timeframe) ([]models.Bar, error) {
	return c.fetchBars(ctx, symbol, map[string][]string{
		"tf":   {string(tf)},
		"from": {from.UTC().Format(time.RFC3339)},
		"to":   {to.UTC().Format(time.RFC3339)},
	})
}

func (c *Client) GetLatestNBars(ctx context.Context, symbol string, n int, tf drepo.Timeframe) ([]models.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	bars, err := c.fetchBars(ctx, symbol, map[string][]string{
		"tf":    {string(tf)},
		"limit": {strconv.Itoa(n)},
	})
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

func (c *Client) fetchBars(ctx context.Context, symbol string, q map[string][]string) ([]models.Bar, error) {
	symbol = util.NormalizeSymbol(symbol)
	q["symbol"] = []string{symbol}

	var resp barsResponse
	if err := c.http.Get(ctx, "/v1/bars", q, &resp); err != nil {
		return nil, &models.DataUnavailableError{Symbol: symbol, Err: err}
	}
	return normalize(symbol, resp.Bars), nil
}

// normalize drops malformed bars and sorts ascending by time, removing duplicates.
func normalize(symbol string, in []barDTO) []models.Bar {
	out := make([]models.Bar, 0, len(in))
	for _, b := range in {
		if b.Time.IsZero() || b.High < b.Low || b.Close <= 0 {
			continue
		}
		out = append(out, models.Bar{
			Time: b.Time.UTC(), Symbol: symbol,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	dedup := out[:0]
	for i, b := range out {
		if i > 0 && b.Time.Equal(dedup[len(dedup)-1].Time) {
			dedup[len(dedup)-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

func (c *Client) LastQuote(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = util.NormalizeSymbol(symbol)
	var resp quoteResponse
	if err := c.http.Get(ctx, "/v1/quote", map[string][]string{"symbol": {symbol}}, &resp); err != nil {
		return models.Quote{}, &models.DataUnavailableError{Symbol: symbol, Err: err}
	}
	if resp.Price <= 0 {
		return models.Quote{}, &models.DataUnavailableError{Symbol: symbol, Err: fmt.Errorf("no price in quote")}
	}
	return models.Quote{Symbol: symbol, Price: resp.Price, Volume: resp.Volume, Timestamp: resp.Timestamp.UTC()}, nil
}
