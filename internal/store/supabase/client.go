package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"stockfeed/internal/rows"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=supabase_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultTable = "stock_prices"

// Client talks to a Supabase project's PostgREST endpoint for the daily
// close table. The service-role key is sent both as a bearer token and as
// the apikey header, the way PostgREST expects.
type Client struct {
	baseURL    string
	table      string
	httpClient HTTPClient
	header     http.Header
}

// Option is a configuration option for the store client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTable overrides the target table name.
func WithTable(table string) Option {
	return func(c *Client) {
		c.table = table
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a store client. Both the project URL and the service key are
// required; their absence is a configuration error, caught before any
// network activity.
func New(baseURL, serviceKey string, options ...Option) (*Client, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, errors.New("supabase: missing base URL or service key")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		table:      defaultTable,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	c.header.Set("apikey", serviceKey)
	c.header.Set("Authorization", "Bearer "+serviceKey)
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Upsert writes a batch of rows with merge-on-conflict semantics keyed by
// (symbol, trade_date): existing rows for a key are overwritten, absent
// rows inserted. Callers must not pass an empty batch; an empty run is
// their no-op, not the store's.
func (c *Client) Upsert(ctx context.Context, rs []rows.Row) error {
	body, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("upsert: encoding rows: %w", err)
	}

	query := url.Values{}
	query.Set("on_conflict", "symbol,trade_date")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(query), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upsert: creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	return c.do(req, "upsert")
}

// DeleteBefore removes rows whose trade_date is strictly before cutoff
// (YYYY-MM-DD), across all symbols.
func (c *Client) DeleteBefore(ctx context.Context, cutoff string) error {
	query := url.Values{}
	query.Set("trade_date", "lt."+cutoff)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(query), http.NoBody)
	if err != nil {
		return fmt.Errorf("delete: creating request: %w", err)
	}
	req.Header = c.header.Clone()

	return c.do(req, "delete")
}

// DeleteSymbol removes every stored row for one symbol. Used by backfills
// that replace a symbol's history wholesale.
func (c *Client) DeleteSymbol(ctx context.Context, symbol string) error {
	query := url.Values{}
	query.Set("symbol", "eq."+symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(query), http.NoBody)
	if err != nil {
		return fmt.Errorf("delete symbol: creating request: %w", err)
	}
	req.Header = c.header.Clone()

	return c.do(req, "delete symbol")
}

func (c *Client) endpoint(query url.Values) string {
	return fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, c.table, query.Encode())
}

func (c *Client) do(req *http.Request, op string) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: performing request: %w", op, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return fmt.Errorf("%s: status %d: %s", op, res.StatusCode, string(b))
	}
	return nil
}
