package supabase_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockfeed/internal/rows"
	"stockfeed/internal/store/supabase"
)

func ok(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
	}
}

func testRows() []rows.Row {
	fetched := time.Date(2025, 8, 22, 21, 5, 0, 0, time.UTC)
	return []rows.Row{
		{Symbol: "SPY", TradeDate: "2025-08-22", Close: 512.34, FetchedAt: fetched},
		{Symbol: "BILL", TradeDate: "2025-08-22", Close: 100.5, FetchedAt: fetched},
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := supabase.New("", "key")
	require.Error(t, err)

	_, err = supabase.New("https://proj.supabase.co", "")
	require.Error(t, err)
}

func TestUpsert_SendsMergeOnConflictRequest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "/rest/v1/stock_prices", req.URL.Path)
			require.Equal(t, "symbol,trade_date", req.URL.Query().Get("on_conflict"))
			require.Equal(t, "resolution=merge-duplicates", req.Header.Get("Prefer"))
			require.Equal(t, "service-key", req.Header.Get("apikey"))
			require.Equal(t, "Bearer service-key", req.Header.Get("Authorization"))
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))

			var got []rows.Row
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			require.Equal(t, testRows(), got)

			return ok(http.StatusCreated), nil
		}).
		Times(1)

	client, err := supabase.New("https://proj.supabase.co/", "service-key", supabase.WithHTTPClient(httpClient))
	require.NoError(t, err)

	require.NoError(t, client.Upsert(t.Context(), testRows()))
}

func TestUpsert_NonSuccessStatusIsAnError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(&http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"message":"invalid key"}`))),
		}, nil).
		Times(1)

	client, err := supabase.New("https://proj.supabase.co", "service-key", supabase.WithHTTPClient(httpClient))
	require.NoError(t, err)

	err = client.Upsert(t.Context(), testRows())
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "invalid key")
}

func TestDeleteBefore_FiltersStrictlyOlderRows(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodDelete, req.Method)
			require.Equal(t, "/rest/v1/stock_prices", req.URL.Path)
			require.Equal(t, "lt.2024-10-26", req.URL.Query().Get("trade_date"))
			require.Equal(t, "Bearer service-key", req.Header.Get("Authorization"))
			return ok(http.StatusNoContent), nil
		}).
		Times(1)

	client, err := supabase.New("https://proj.supabase.co", "service-key", supabase.WithHTTPClient(httpClient))
	require.NoError(t, err)

	require.NoError(t, client.DeleteBefore(t.Context(), "2024-10-26"))
}

func TestDeleteSymbol_TargetsOneSymbol(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodDelete, req.Method)
			require.Equal(t, "eq.BIL", req.URL.Query().Get("symbol"))
			return ok(http.StatusNoContent), nil
		}).
		Times(1)

	client, err := supabase.New("https://proj.supabase.co", "service-key", supabase.WithHTTPClient(httpClient))
	require.NoError(t, err)

	require.NoError(t, client.DeleteSymbol(t.Context(), "BIL"))
}

func TestWithTable_OverridesTarget(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/rest/v1/stock_prices_staging", req.URL.Path)
			return ok(http.StatusCreated), nil
		}).
		Times(1)

	client, err := supabase.New("https://proj.supabase.co", "service-key",
		supabase.WithHTTPClient(httpClient),
		supabase.WithTable("stock_prices_staging"))
	require.NoError(t, err)

	require.NoError(t, client.Upsert(t.Context(), testRows()))
}
