package quote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Quote is the normalized shape returned by all sources.
type Quote struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

// Source retrieves closing prices for one or more symbols.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) ([]Quote, error)
}

// ErrNoData marks a symbol with no usable price upstream. It is a
// per-symbol condition: callers drop the symbol instead of retrying.
var ErrNoData = errors.New("no price data")

// StatusError is a non-2xx response from the upstream, including the
// explicit rate-limit status 429.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying. Upstream error
// statuses, network failures and timeouts are; empty per-symbol data and
// context cancellation are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNoData) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	// A client timeout surfaces as a net.Error before the run context is
	// anywhere near done, so check it ahead of the context sentinels.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
