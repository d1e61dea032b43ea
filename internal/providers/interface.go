package providers

import (
	"context"
	"time"
)

// PerformanceMetrics tracks timing and performance data for provider operations
type PerformanceMetrics struct {
	RequestDuration time.Duration `json:"request_duration"`
	NetworkTime     time.Duration `json:"network_time"` // Actual HTTP request time
	ParseTime       time.Duration `json:"parse_time"`   // JSON parsing time
	RequestCount    int           `json:"request_count"`
	BytesReceived   int64         `json:"bytes_received"`
	RetryAttempts   int           `json:"retry_attempts"`
}

// SpotQuote is the latest traded price for an underlying
type SpotQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Volume    int64     `json:"volume,omitempty"`
}

// ChainContract is one option contract as the data vendor reports it.
// Quote fields may be zero when the vendor has no trade or quote data.
type ChainContract struct {
	Symbol         string    `json:"symbol"`
	Underlying     string    `json:"underlying"`
	OptionType     string    `json:"option_type"` // "call" or "put"
	Strike         float64   `json:"strike"`
	ExpirationDate time.Time `json:"expiration_date"`
	Bid            float64   `json:"bid"`
	Ask            float64   `json:"ask"`
	Last           float64   `json:"last"`
	Volume         int64     `json:"volume"`
	OpenInterest   int64     `json:"open_interest"`
}

// MidPrice is the bid/ask midpoint, falling back to the last trade when a
// side of the book is empty.
func (c *ChainContract) MidPrice() float64 {
	if c.Bid > 0 && c.Ask > 0 {
		return (c.Bid + c.Ask) / 2
	}
	return c.Last
}

// SpotResult contains spot quotes with performance metrics
type SpotResult struct {
	Data    map[string]*SpotQuote `json:"data"`
	Metrics PerformanceMetrics    `json:"metrics"`
}

// ChainResult contains option contracts with performance metrics
type ChainResult struct {
	Data    []*ChainContract   `json:"data"`
	Metrics PerformanceMetrics `json:"metrics"`
}

// MarketProvider defines the interface for options data vendors
type MarketProvider interface {
	// GetSpotPrices fetches the latest prices for the given underlyings
	GetSpotPrices(ctx context.Context, symbols []string) (*SpotResult, error)

	// GetOptionChain fetches the contracts for one underlying and expiration.
	// optionType filters to "call" or "put"; empty means both sides.
	GetOptionChain(ctx context.Context, symbol string, expiration time.Time, optionType string) (*ChainResult, error)

	// GetProviderName returns the name of the vendor (e.g., "alpaca")
	GetProviderName() string

	// GetPerformanceStats returns cumulative performance statistics
	GetPerformanceStats() PerformanceMetrics

	// TestConnection verifies credentials against the vendor API
	TestConnection(ctx context.Context) error

	// Close cleans up any resources
	Close() error
}
