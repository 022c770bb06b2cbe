package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockfeed/internal/httpx"
	"stockfeed/internal/quote"
)

// HistorySource fetches one symbol at a time from the v8 chart endpoint,
// taking the most recent daily close. When a symbol has no recent bars it
// falls back to the previous close from the quoteSummary endpoint; when
// that is missing too, the symbol yields ErrNoData.
type HistorySource struct {
	baseURL string
	client  *httpx.Client
}

func NewHistorySource(baseURL string, hc *httpx.Client) *HistorySource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HistorySource{baseURL: strings.TrimRight(baseURL, "/"), client: hc}
}

func (s *HistorySource) Name() string { return "yahoo-history" }

func (s *HistorySource) Fetch(ctx context.Context, symbols []string) ([]quote.Quote, error) {
	out := make([]quote.Quote, 0, len(symbols))
	for _, sym := range symbols {
		px, err := s.latestClose(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		out = append(out, quote.Quote{Symbol: sym, Close: px})
	}
	return out, nil
}

func (s *HistorySource) latestClose(ctx context.Context, symbol string) (float64, error) {
	bars, err := s.History(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return s.previousClose(ctx, symbol)
}

// Bar is one daily close from the chart series.
type Bar struct {
	Date  time.Time
	Close float64
}

// History returns up to days daily bars for one symbol, oldest first.
// Bars without a close value are skipped.
func (s *HistorySource) History(ctx context.Context, symbol string, days int) ([]Bar, error) {
	q := url.Values{}
	q.Set("range", fmt.Sprintf("%dd", days))
	q.Set("interval", "1d")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), q.Encode())

	var body chartResponse
	if err := s.getJSON(ctx, u, &body); err != nil {
		return nil, err
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}
	res := body.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := res.Indicators.Quote[0].Close

	bars := make([]Bar, 0, len(closes))
	for i, c := range closes {
		if c == nil || i >= len(res.Timestamp) {
			continue
		}
		bars = append(bars, Bar{Date: time.Unix(res.Timestamp[i], 0).UTC(), Close: *c})
	}
	return bars, nil
}

func (s *HistorySource) previousClose(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("modules", "price")
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", s.baseURL, url.PathEscape(symbol), q.Encode())

	var body summaryResponse
	if err := s.getJSON(ctx, u, &body); err != nil {
		return 0, err
	}
	for _, r := range body.QuoteSummary.Result {
		if raw := r.Price.RegularMarketPreviousClose.Raw; raw != nil {
			return *raw, nil
		}
	}
	return 0, quote.ErrNoData
}

func (s *HistorySource) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return &quote.StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPreviousClose struct {
					Raw *float64 `json:"raw"`
				} `json:"regularMarketPreviousClose"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}
