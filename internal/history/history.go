// Package history pulls daily closing prices for realized-volatility
// estimation.
package history

import (
	"fmt"
	"time"

	"github.com/markcheno/go-quote"

	"github.com/kmaier/quantlab/internal/logger"
)

// Fetcher returns daily closes for a symbol over a lookback window. The
// indirection lets tests supply canned series instead of hitting Yahoo.
type Fetcher interface {
	DailyCloses(symbol string, years int) ([]float64, error)
}

// YahooFetcher pulls adjusted daily closes from Yahoo Finance
type YahooFetcher struct{}

// DailyCloses fetches adjusted closes for the trailing window. years
// defaults to 1 when zero or negative.
func (YahooFetcher) DailyCloses(symbol string, years int) ([]float64, error) {
	if years <= 0 {
		years = 1
	}
	end := time.Now()
	start := end.AddDate(-years, 0, 0)

	q, err := quote.NewQuoteFromYahoo(symbol,
		start.Format("2006-01-02"), end.Format("2006-01-02"), quote.Daily, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}
	if len(q.Close) < 2 {
		return nil, fmt.Errorf("insufficient history for %s: %d closes", symbol, len(q.Close))
	}

	logger.Debug.Printf("📉 Fetched %d daily closes for %s", len(q.Close), symbol)
	return q.Close, nil
}
