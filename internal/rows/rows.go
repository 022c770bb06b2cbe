package rows

import (
	"math"
	"time"

	"stockfeed/internal/quote"
)

// DateLayout is the trade_date column format.
const DateLayout = "2006-01-02"

// Row is the persisted shape for one symbol's daily close. The store keys
// on (symbol, trade_date); fetched_at is informational only.
type Row struct {
	Symbol    string    `json:"symbol"`
	TradeDate string    `json:"trade_date"`
	Close     float64   `json:"close"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Build converts fetched quotes into rows, all stamped with the run's UTC
// calendar date and timestamp. Quotes without a symbol or without a finite
// positive close are dropped, not reported.
func Build(quotes []quote.Quote, now time.Time) []Row {
	now = now.UTC()
	tradeDate := now.Format(DateLayout)

	out := make([]Row, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		if !(q.Close > 0) || math.IsInf(q.Close, 0) {
			continue
		}
		out = append(out, Row{
			Symbol:    q.Symbol,
			TradeDate: tradeDate,
			Close:     q.Close,
			FetchedAt: now,
		})
	}
	return out
}

// Cutoff returns the retention cutoff date for a run: rows with a
// trade_date strictly before it are eligible for deletion.
func Cutoff(now time.Time, retentionDays int) string {
	return now.UTC().AddDate(0, 0, -retentionDays).Format(DateLayout)
}
