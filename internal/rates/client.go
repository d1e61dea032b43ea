// Package rates sources the risk-free rate from the US Treasury fiscal data
// API, with a last-known-rate cache for when the feed is down.
package rates

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kmaier/quantlab/internal/logger"
)

type TreasuryClient struct {
	httpClient    *http.Client
	baseURL       string
	fallbackRate  float64
	mu            sync.Mutex
	lastKnownRate float64
	lastFetchTime time.Time
}

type TreasuryResponse struct {
	Data []TreasuryRate `json:"data"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

type TreasuryRate struct {
	RecordDate            string `json:"record_date"`
	SecurityDesc          string `json:"security_desc"`
	AvgInterestRateAmount string `json:"avg_interest_rate_amt"`
}

// NewTreasuryClient builds a client and primes the cache. fallbackRate is the
// emergency default when the first fetch fails.
func NewTreasuryClient(fallbackRate float64) *TreasuryClient {
	client := &TreasuryClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:      "https://api.fiscaldata.treasury.gov/services/api/fiscal_service",
		fallbackRate: fallbackRate,
	}

	if rate, err := client.fetchRiskFreeRate(); err == nil {
		client.lastKnownRate = rate
		client.lastFetchTime = time.Now()
		logger.Info.Printf("🏛️ Initialized Treasury client with rate: %.6f (%.3f%%)", rate, rate*100)
	} else {
		client.lastKnownRate = fallbackRate
		logger.Warn.Printf("⚠️ Failed to fetch initial Treasury rate: %v, using default %.2f%%", err, fallbackRate*100)
	}

	return client
}

// fetchRiskFreeRate does the actual API call
func (tc *TreasuryClient) fetchRiskFreeRate() (float64, error) {
	url := fmt.Sprintf("%s/v2/accounting/od/avg_interest_rates?fields=avg_interest_rate_amt,record_date&filter=security_desc:eq:Treasury%%20Bills&sort=-record_date&page[size]=1", tc.baseURL)

	resp, err := tc.httpClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch Treasury rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("Treasury API returned status %d", resp.StatusCode)
	}

	var treasuryResp TreasuryResponse
	if err := json.NewDecoder(resp.Body).Decode(&treasuryResp); err != nil {
		return 0, fmt.Errorf("failed to decode Treasury response: %w", err)
	}

	if len(treasuryResp.Data) == 0 {
		return 0, fmt.Errorf("no Treasury rate data returned")
	}

	// Percentage string to decimal (e.g. "3.983" -> 0.03983)
	rateStr := treasuryResp.Data[0].AvgInterestRateAmount
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate %s: %w", rateStr, err)
	}

	return rate / 100.0, nil
}

// GetRiskFreeRate fetches the most recent Treasury Bill rate
func (tc *TreasuryClient) GetRiskFreeRate() (float64, error) {
	rate, err := tc.fetchRiskFreeRate()
	if err != nil {
		return 0, err
	}

	tc.mu.Lock()
	tc.lastKnownRate = rate
	tc.lastFetchTime = time.Now()
	tc.mu.Unlock()

	logger.Debug.Printf("📈 Fetched Treasury Bill rate: %.3f%% (%.6f decimal)", rate*100, rate)

	return rate, nil
}

// GetRiskFreeRateWithLastKnown tries a fresh fetch and falls back to the
// cached rate when the feed is unavailable
func (tc *TreasuryClient) GetRiskFreeRateWithLastKnown() float64 {
	if rate, err := tc.GetRiskFreeRate(); err == nil {
		return rate
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	age := time.Since(tc.lastFetchTime)
	logger.Warn.Printf("⚠️ Treasury API failed, using last known rate: %.6f (%.3f%%) from %v ago",
		tc.lastKnownRate, tc.lastKnownRate*100, age.Round(time.Minute))

	return tc.lastKnownRate
}

// GetCacheInfo returns the cached rate, its age, and whether a fetch has
// ever succeeded
func (tc *TreasuryClient) GetCacheInfo() (rate float64, age time.Duration, isInitialized bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.lastFetchTime.IsZero() {
		return tc.lastKnownRate, 0, false
	}
	return tc.lastKnownRate, time.Since(tc.lastFetchTime), true
}
