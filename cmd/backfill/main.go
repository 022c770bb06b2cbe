package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockfeed/internal/config"
	"stockfeed/internal/httpx"
	"stockfeed/internal/quote/yahoo"
	"stockfeed/internal/rows"
	"stockfeed/internal/store/supabase"
)

// Backfills daily close history for the roster (or an explicit symbol
// list), one symbol at a time, and upserts everything in a single batch.
// With -replace, each fetched symbol's existing rows are deleted first so
// the backfill becomes the symbol's whole history.
func main() {
	var days int
	var symbolsCSV string
	var replace bool
	flag.IntVar(&days, "days", 240, "days of history to fetch per symbol")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols (default: configured roster)")
	flag.BoolVar(&replace, "replace", false, "delete each symbol's existing rows before upserting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	symbols := cfg.Tickers
	if symbolsCSV != "" {
		symbols = splitCSV(symbolsCSV)
	}
	if len(symbols) == 0 {
		logger.Fatal("no symbols to backfill")
	}

	httpClient := httpx.New(cfg.RequestTimeout)
	src := yahoo.NewHistorySource(cfg.QuoteBaseURL, httpClient)

	store, err := supabase.New(cfg.SupabaseURL, cfg.ServiceKey, supabase.WithHTTPClient(httpClient.HTTP))
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	ctx := context.Background()
	now := time.Now().UTC()

	var batch []rows.Row
	var fetched []string
	for i, sym := range symbols {
		if i > 0 {
			pause(cfg.CallPause, cfg.Jitter)
		}
		bars, err := src.History(ctx, sym, days)
		if err != nil {
			logger.Warn("history fetch failed, skipping symbol", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if len(bars) == 0 {
			logger.Warn("no history for symbol, skipping", zap.String("symbol", sym))
			continue
		}
		for _, b := range bars {
			if !(b.Close > 0) {
				continue
			}
			batch = append(batch, rows.Row{
				Symbol:    sym,
				TradeDate: b.Date.Format(rows.DateLayout),
				Close:     b.Close,
				FetchedAt: now,
			})
		}
		fetched = append(fetched, sym)
		logger.Info("history fetched", zap.String("symbol", sym), zap.Int("bars", len(bars)))
	}

	if len(batch) == 0 {
		logger.Info("no rows prepared, nothing to do")
		return
	}

	if replace {
		for _, sym := range fetched {
			if err := store.DeleteSymbol(ctx, sym); err != nil {
				logger.Fatal("deleting existing rows", zap.String("symbol", sym), zap.Error(err))
			}
		}
	}

	if err := store.Upsert(ctx, batch); err != nil {
		logger.Fatal("upsert failed", zap.Error(err))
	}
	logger.Info("backfill complete", zap.Int("symbols", len(fetched)), zap.Int("rows", len(batch)))
}

func pause(d time.Duration, jitter float64) {
	if d <= 0 {
		return
	}
	if jitter > 0 {
		d += time.Duration(rand.Float64() * jitter * float64(d))
	}
	time.Sleep(d)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
