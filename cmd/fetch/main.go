package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"stockfeed/internal/config"
	"stockfeed/internal/httpx"
	"stockfeed/internal/pipeline"
	"stockfeed/internal/quote"
	"stockfeed/internal/quote/pacing"
	"stockfeed/internal/quote/yahoo"
	"stockfeed/internal/store/supabase"
)

// Argument-free daily run: fetch the roster's closes, upsert, prune.
// Exits non-zero on a configuration error or a failed upsert; a run where
// only pruning failed, or where no symbol produced a row, still exits zero.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	httpClient := httpx.New(cfg.RequestTimeout)

	policy := pacing.Policy{
		GroupMin:    cfg.GroupMin,
		GroupMax:    cfg.GroupMax,
		GroupPause:  cfg.GroupPause,
		CallPause:   cfg.CallPause,
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.BaseBackoff,
		Jitter:      cfg.Jitter,
	}

	var src quote.Source
	switch cfg.Source {
	case "history":
		src = yahoo.NewHistorySource(cfg.QuoteBaseURL, httpClient)
		// The chart endpoint serves one symbol per request.
		policy.CallSize = 1
	default:
		src = yahoo.NewBatchSource(cfg.QuoteBaseURL, httpClient)
	}

	store, err := supabase.New(cfg.SupabaseURL, cfg.ServiceKey, supabase.WithHTTPClient(httpClient.HTTP))
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	p := pipeline.New(pacing.New(src, policy, logger), store, cfg.RetentionDays, logger)

	logger.Info("starting run",
		zap.String("source", src.Name()),
		zap.Int("roster", len(cfg.Tickers)),
		zap.Int("retention_days", cfg.RetentionDays))

	if err := p.Run(context.Background(), cfg.Tickers); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
	logger.Info("run complete")
}
