package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stockfeed/internal/quote/pacing"
	"stockfeed/internal/rows"
)

// Fetcher walks a roster and reports fetched quotes and failed symbols.
type Fetcher interface {
	Run(ctx context.Context, symbols []string) pacing.Result
}

// Store is the subset of the persistence client the pipeline needs.
type Store interface {
	Upsert(ctx context.Context, rs []rows.Row) error
	DeleteBefore(ctx context.Context, cutoff string) error
}

// Pipeline runs one full ingestion pass: fetch the roster, normalize into
// rows, upsert, then prune rows older than the retention window.
type Pipeline struct {
	fetcher       Fetcher
	store         Store
	retentionDays int
	log           *zap.Logger
	now           func() time.Time
}

func New(fetcher Fetcher, store Store, retentionDays int, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		fetcher:       fetcher,
		store:         store,
		retentionDays: retentionDays,
		log:           log,
		now:           time.Now,
	}
}

// Run returns an error only on a persistence write failure: per-symbol
// fetch failures shrink the batch, and a prune failure is logged as a
// warning since the fresh rows are already durable by then.
func (p *Pipeline) Run(ctx context.Context, symbols []string) error {
	res := p.fetcher.Run(ctx, symbols)
	p.log.Info("fetch complete",
		zap.Int("fetched", len(res.Quotes)),
		zap.Int("failed", len(res.Failed)),
		zap.Strings("failed_symbols", res.Failed))

	now := p.now()
	batch := rows.Build(res.Quotes, now)
	if len(batch) == 0 {
		p.log.Info("no rows to upsert, nothing to do")
		return nil
	}

	if err := p.store.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("upsert %d rows: %w", len(batch), err)
	}
	p.log.Info("upsert complete", zap.Int("rows", len(batch)))

	// Prune only after the upsert succeeded: a wide deletion with no fresh
	// write would silently thin out the table on a bad day.
	cutoff := rows.Cutoff(now, p.retentionDays)
	if err := p.store.DeleteBefore(ctx, cutoff); err != nil {
		p.log.Warn("prune failed, continuing", zap.String("cutoff", cutoff), zap.Error(err))
		return nil
	}
	p.log.Info("prune complete", zap.String("cutoff", cutoff))
	return nil
}
