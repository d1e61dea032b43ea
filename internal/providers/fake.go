package providers

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

// FakeProvider is an offline MarketProvider that synthesizes chains from a
// flat volatility surface. It backs tests and the demo mode when no vendor
// credentials are configured.
type FakeProvider struct {
	Spot float64 // spot price reported for every underlying
	Vol  float64 // flat volatility used to mark every contract
	Rate float64

	calls int
}

// NewFakeProvider returns a provider marking every chain at the given flat vol
func NewFakeProvider(spot, vol, rate float64) *FakeProvider {
	return &FakeProvider{Spot: spot, Vol: vol, Rate: rate}
}

func (f *FakeProvider) GetProviderName() string { return "fake" }

// GetSpotPrices reports the configured spot for every symbol
func (f *FakeProvider) GetSpotPrices(ctx context.Context, symbols []string) (*SpotResult, error) {
	f.calls++
	result := &SpotResult{Data: make(map[string]*SpotQuote, len(symbols))}
	for _, s := range symbols {
		result.Data[s] = &SpotQuote{
			Symbol:    s,
			Price:     f.Spot,
			Timestamp: time.Now(),
		}
	}
	result.Metrics.RequestCount = 1
	return result, nil
}

// GetOptionChain builds strikes from 80% to 120% of spot in 2.5% increments
// and marks each one at its flat-vol model value
func (f *FakeProvider) GetOptionChain(ctx context.Context, symbol string, expiration time.Time, optionType string) (*ChainResult, error) {
	f.calls++
	expiry := time.Until(expiration).Hours() / 24 / 365
	if expiry <= 0 {
		return nil, fmt.Errorf("expiration %s is in the past", expiration.Format("2006-01-02"))
	}

	types := []string{"call", "put"}
	if optionType != "" {
		types = []string{optionType}
	}

	result := &ChainResult{}
	for step := -8; step <= 8; step++ {
		strike := math.Round(f.Spot*(1+0.025*float64(step))*100) / 100
		for _, typ := range types {
			ot := bs.Call
			if typ == "put" {
				ot = bs.Put
			}
			price, err := bs.Price(ot, bs.Params{
				Spot:   f.Spot,
				Strike: strike,
				Rate:   f.Rate,
				Vol:    f.Vol,
				Expiry: expiry,
			})
			if err != nil {
				return nil, err
			}
			spread := price * 0.02
			result.Data = append(result.Data, &ChainContract{
				Symbol:         fmt.Sprintf("%s%s%c%08d", symbol, expiration.Format("060102"), typ[0]-32, int(strike*1000)),
				Underlying:     symbol,
				OptionType:     typ,
				Strike:         strike,
				ExpirationDate: expiration,
				Bid:            price - spread/2,
				Ask:            price + spread/2,
				Last:           price,
				Volume:         100 + int64(10*(8-abs(step))),
				OpenInterest:   1000 + int64(100*(8-abs(step))),
			})
		}
	}
	result.Metrics.RequestCount = 1
	return result, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (f *FakeProvider) GetPerformanceStats() PerformanceMetrics {
	return PerformanceMetrics{RequestCount: f.calls}
}

func (f *FakeProvider) TestConnection(ctx context.Context) error { return nil }

func (f *FakeProvider) Close() error { return nil }
