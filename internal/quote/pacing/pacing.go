package pacing

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"stockfeed/internal/quote"
)

// Policy controls grouping, pacing and retry behavior.
type Policy struct {
	GroupMin    int           // smallest group size
	GroupMax    int           // largest group size
	CallSize    int           // symbols per upstream call; 0 means the whole group
	GroupPause  time.Duration // pause between groups
	CallPause   time.Duration // pause between calls within a group
	MaxRetries  int           // retry attempts after the first try of a call
	BaseBackoff time.Duration // first retry delay, doubled per attempt
	Jitter      float64       // fraction of each sleep added at random; 0 disables
}

// DefaultPolicy keeps the request rate under the upstream's unofficial
// limits with headroom to spare.
func DefaultPolicy() Policy {
	return Policy{
		GroupMin:    2,
		GroupMax:    5,
		GroupPause:  3 * time.Second,
		CallPause:   700 * time.Millisecond,
		MaxRetries:  3,
		BaseBackoff: 2 * time.Second,
		Jitter:      0.5,
	}
}

// Result separates symbols that produced a quote from those whose calls
// failed for good.
type Result struct {
	Quotes []quote.Quote
	Failed []string
}

// Fetcher drives a Source across a roster strictly sequentially, pacing
// calls and retrying transient failures with exponential backoff. A call
// that exhausts its retries only fails the symbols it carried; the rest of
// the roster still runs.
type Fetcher struct {
	src    quote.Source
	policy Policy
	log    *zap.Logger

	// injectable for deterministic tests
	sleep  func(time.Duration)
	randFn func() float64
}

func New(src quote.Source, policy Policy, log *zap.Logger) *Fetcher {
	if policy.GroupMin < 1 {
		policy.GroupMin = 1
	}
	if policy.GroupMax < policy.GroupMin {
		policy.GroupMax = policy.GroupMin
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		src:    src,
		policy: policy,
		log:    log,
		sleep:  time.Sleep,
		randFn: rand.Float64,
	}
}

// Run fetches every roster symbol once. It never returns an error: upstream
// failures degrade to entries in Result.Failed.
func (f *Fetcher) Run(ctx context.Context, symbols []string) Result {
	var res Result
	for i, group := range f.groups(symbols) {
		if i > 0 {
			f.pause(f.policy.GroupPause)
		}
		for j, call := range chunk(group, f.policy.CallSize) {
			if j > 0 {
				f.pause(f.policy.CallPause)
			}
			qs, err := f.fetchWithRetry(ctx, call)
			if err != nil {
				f.log.Warn("fetch failed, dropping symbols from this run",
					zap.String("source", f.src.Name()),
					zap.Strings("symbols", call),
					zap.Error(err))
				res.Failed = append(res.Failed, call...)
				continue
			}
			res.Quotes = append(res.Quotes, qs...)
		}
	}
	return res
}

// fetchWithRetry is an explicit bounded loop rather than a recursive retry,
// so the attempt count and backoff schedule stay inspectable.
func (f *Fetcher) fetchWithRetry(ctx context.Context, symbols []string) ([]quote.Quote, error) {
	delay := f.policy.BaseBackoff
	var lastErr error
	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			f.pause(delay)
			delay *= 2
		}
		qs, err := f.src.Fetch(ctx, symbols)
		if err == nil {
			return qs, nil
		}
		lastErr = err
		if !quote.IsTransient(err) {
			break
		}
	}
	return nil, lastErr
}

// pause sleeps for d plus jitter. Jitter applies to every sleep, backoff
// and pacing alike, so retries never line up against the upstream.
func (f *Fetcher) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	if f.policy.Jitter > 0 {
		d += time.Duration(f.randFn() * f.policy.Jitter * float64(d))
	}
	f.sleep(d)
}

// groups splits the roster into randomly sized groups within the policy
// bounds, preserving order.
func (f *Fetcher) groups(symbols []string) [][]string {
	out := make([][]string, 0, len(symbols)/f.policy.GroupMin+1)
	for i := 0; i < len(symbols); {
		n := f.policy.GroupMin
		if span := f.policy.GroupMax - f.policy.GroupMin; span > 0 {
			n += int(f.randFn() * float64(span+1))
			if n > f.policy.GroupMax {
				n = f.policy.GroupMax
			}
		}
		j := i + n
		if j > len(symbols) {
			j = len(symbols)
		}
		out = append(out, symbols[i:j])
		i = j
	}
	return out
}

func chunk(in []string, size int) [][]string {
	if size <= 0 || len(in) <= size {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}
