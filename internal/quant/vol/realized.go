// Package vol estimates historical (realized) volatility from price series.
package vol

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization convention for daily closes.
const TradingDaysPerYear = 252

// LogReturns converts a price series into log returns. Every price must be
// positive and at least two observations are required.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 prices, got %d", len(prices))
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			return nil, fmt.Errorf("prices must be positive, found %v at index %d", prices[i-1], i-1)
		}
		if prices[i] <= 0 {
			return nil, fmt.Errorf("prices must be positive, found %v at index %d", prices[i], i)
		}
		returns[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return returns, nil
}

// Realized returns the annualized close-to-close volatility of a daily price
// series: the sample standard deviation of log returns scaled by sqrt(252).
func Realized(prices []float64) (float64, error) {
	return RealizedWithPeriods(prices, TradingDaysPerYear)
}

// RealizedWithPeriods annualizes with an arbitrary number of observation
// periods per year (e.g. 52 for weekly closes).
func RealizedWithPeriods(prices []float64, periodsPerYear float64) (float64, error) {
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("periods per year must be positive, got %v", periodsPerYear)
	}
	returns, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("need at least 3 prices for a standard deviation, got %d", len(prices))
	}
	return stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear), nil
}

// Rolling computes a trailing realized-vol series with the given window of
// daily returns. Output index i corresponds to the window ending at price
// index i+window.
func Rolling(prices []float64, window int) ([]float64, error) {
	if window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", window)
	}
	returns, err := LogReturns(prices)
	if err != nil {
		return nil, err
	}
	if len(returns) < window {
		return nil, fmt.Errorf("need %d returns for window %d, have %d", window, window, len(returns))
	}

	out := make([]float64, len(returns)-window+1)
	for i := range out {
		out[i] = stat.StdDev(returns[i:i+window], nil) * math.Sqrt(TradingDaysPerYear)
	}
	return out, nil
}
