package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"stockfeed/internal/httpx"
	"stockfeed/internal/quote"
)

// DefaultBaseURL is the public Yahoo Finance query host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// BatchSource fetches a group of symbols in one request against the
// v7 quote endpoint. It prefers the regular market price and falls back to
// the previous close when the market price is absent; entries with neither
// are dropped.
type BatchSource struct {
	baseURL string
	client  *httpx.Client
}

func NewBatchSource(baseURL string, hc *httpx.Client) *BatchSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &BatchSource{baseURL: strings.TrimRight(baseURL, "/"), client: hc}
}

func (s *BatchSource) Name() string { return "yahoo-batch" }

func (s *BatchSource) Fetch(ctx context.Context, symbols []string) ([]quote.Quote, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	u := fmt.Sprintf("%s/v7/finance/quote?%s", s.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, &quote.StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	out := make([]quote.Quote, 0, len(body.QuoteResponse.Result))
	for _, r := range body.QuoteResponse.Result {
		if r.Symbol == "" {
			continue
		}
		price := r.RegularMarketPrice
		if price == nil {
			price = r.RegularMarketPreviousClose
		}
		if price == nil {
			continue
		}
		out = append(out, quote.Quote{Symbol: r.Symbol, Close: *price})
	}
	return out, nil
}

type batchResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
	} `json:"quoteResponse"`
}
