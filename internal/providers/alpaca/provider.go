// Package alpaca implements the MarketProvider interface against the Alpaca
// Markets trading and data APIs.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kmaier/quantlab/internal/logger"
	"github.com/kmaier/quantlab/internal/providers"
)

const (
	// Rate limiting for the Basic plan (200 requests per minute)
	basicPlanDelay = 350 * time.Millisecond

	defaultTimeout = 30 * time.Second
)

// AlpacaProvider implements providers.MarketProvider for Alpaca Markets
type AlpacaProvider struct {
	apiKey     string
	secretKey  string
	baseURL    string
	dataURL    string
	httpClient *http.Client

	// Rate limiting
	lastRequest time.Time
	rateMutex   sync.Mutex

	// Performance tracking
	totalRequests    int64
	totalNetworkTime time.Duration
	totalParseTime   time.Duration
	totalBytes       int64
	totalRetries     int64
	statsMutex       sync.RWMutex
}

// NewAlpacaProvider creates a new Alpaca market data provider
func NewAlpacaProvider(apiKey, secretKey string) *AlpacaProvider {
	return &AlpacaProvider{
		apiKey:    apiKey,
		secretKey: secretKey,
		baseURL:   "https://api.alpaca.markets",
		dataURL:   "https://data.alpaca.markets",
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// GetProviderName returns the provider name
func (a *AlpacaProvider) GetProviderName() string {
	return "alpaca"
}

// rateLimit enforces 350ms between requests for the Basic plan
func (a *AlpacaProvider) rateLimit() {
	a.rateMutex.Lock()
	defer a.rateMutex.Unlock()

	elapsed := time.Since(a.lastRequest)
	if elapsed < basicPlanDelay {
		time.Sleep(basicPlanDelay - elapsed)
	}
	a.lastRequest = time.Now()
}

func (a *AlpacaProvider) recordRequest(network, parse time.Duration, bytes int64) {
	a.statsMutex.Lock()
	defer a.statsMutex.Unlock()
	a.totalRequests++
	a.totalNetworkTime += network
	a.totalParseTime += parse
	a.totalBytes += bytes
}

// doRequest issues an authenticated GET and returns the body
func (a *AlpacaProvider) doRequest(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Add("APCA-API-KEY-ID", a.apiKey)
	req.Header.Add("APCA-API-SECRET-KEY", a.secretKey)

	logger.Verbose.Printf("📡 ALPACA API CALL: %s", req.URL.String())
	start := time.Now()
	resp, err := a.httpClient.Do(req)
	network := time.Since(start)
	if err != nil {
		logger.Verbose.Printf("❌ API call failed after %v: %v", network, err)
		return nil, network, err
	}
	defer resp.Body.Close()
	logger.Verbose.Printf("⏱️ API call completed in %v (status: %d)", network, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, network, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, network, fmt.Errorf("alpaca API error: %d - %s", resp.StatusCode, string(body))
	}

	return body, network, nil
}

// GetSpotPrices fetches the latest bars for up to 100 symbols per request
func (a *AlpacaProvider) GetSpotPrices(ctx context.Context, symbols []string) (*providers.SpotResult, error) {
	start := time.Now()
	result := &providers.SpotResult{Data: make(map[string]*providers.SpotQuote)}

	batchSize := 100
	for i := 0; i < len(symbols); i += batchSize {
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		a.rateLimit()
		url := fmt.Sprintf("%s/v2/stocks/bars/latest?symbols=%s",
			a.dataURL, strings.Join(symbols[i:end], ","))
		body, network, err := a.doRequest(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d failed: %v", i, end-1, err)
		}

		parseStart := time.Now()
		var batchResp struct {
			Bars map[string]struct {
				Close     float64 `json:"c"`
				Timestamp string  `json:"t"`
				Volume    int64   `json:"v"`
			} `json:"bars"`
		}
		if err := json.Unmarshal(body, &batchResp); err != nil {
			return nil, fmt.Errorf("failed to decode bars response: %v", err)
		}
		parse := time.Since(parseStart)

		for symbol, bar := range batchResp.Bars {
			ts, _ := time.Parse(time.RFC3339, bar.Timestamp)
			result.Data[symbol] = &providers.SpotQuote{
				Symbol:    symbol,
				Price:     bar.Close,
				Timestamp: ts,
				Volume:    bar.Volume,
			}
		}

		a.recordRequest(network, parse, int64(len(body)))
		result.Metrics.RequestCount++
		result.Metrics.NetworkTime += network
		result.Metrics.ParseTime += parse
		result.Metrics.BytesReceived += int64(len(body))
	}

	result.Metrics.RequestDuration = time.Since(start)
	return result, nil
}

// alpacaContract mirrors the vendor wire format; strike and quote fields
// arrive as strings or untyped JSON values
type alpacaContract struct {
	Symbol           string      `json:"symbol"`
	UnderlyingSymbol string      `json:"underlying_symbol"`
	Type             string      `json:"type"`
	StrikePrice      string      `json:"strike_price"`
	ExpirationDate   string      `json:"expiration_date"`
	OpenInterest     interface{} `json:"open_interest"`
	ClosePrice       interface{} `json:"close_price"`
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

// GetOptionChain fetches contracts for one underlying and expiration, then
// attaches the latest quotes in batches
func (a *AlpacaProvider) GetOptionChain(ctx context.Context, symbol string, expiration time.Time, optionType string) (*providers.ChainResult, error) {
	start := time.Now()
	result := &providers.ChainResult{}

	a.rateLimit()
	url := fmt.Sprintf("%s/v2/options/contracts?underlying_symbols=%s&expiration_date=%s&limit=1000",
		a.baseURL, symbol, expiration.Format("2006-01-02"))
	if optionType != "" {
		url += "&type=" + optionType
	}

	body, network, err := a.doRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	parseStart := time.Now()
	var chainResp struct {
		Options []alpacaContract `json:"option_contracts"`
	}
	if err := json.Unmarshal(body, &chainResp); err != nil {
		return nil, fmt.Errorf("failed to decode contracts response: %v", err)
	}
	parse := time.Since(parseStart)
	a.recordRequest(network, parse, int64(len(body)))
	result.Metrics.RequestCount++
	result.Metrics.NetworkTime += network
	result.Metrics.ParseTime += parse
	result.Metrics.BytesReceived += int64(len(body))

	logger.Verbose.Printf("✅ Parsed %d option contracts for %s", len(chainResp.Options), symbol)

	contracts := make([]*providers.ChainContract, 0, len(chainResp.Options))
	for _, c := range chainResp.Options {
		strike, err := strconv.ParseFloat(c.StrikePrice, 64)
		if err != nil {
			continue
		}
		exp, err := time.Parse("2006-01-02", c.ExpirationDate)
		if err != nil {
			continue
		}
		contracts = append(contracts, &providers.ChainContract{
			Symbol:         c.Symbol,
			Underlying:     c.UnderlyingSymbol,
			OptionType:     c.Type,
			Strike:         strike,
			ExpirationDate: exp,
			Last:           asFloat(c.ClosePrice),
			OpenInterest:   int64(asFloat(c.OpenInterest)),
		})
	}

	if err := a.attachQuotes(ctx, contracts, result); err != nil {
		// Quotes are best effort; the close price still prices the chain
		logger.Warn.Printf("⚠️ quotes unavailable for %s: %v", symbol, err)
	}

	// Sort by strike ascending
	for i := 0; i < len(contracts); i++ {
		for j := i + 1; j < len(contracts); j++ {
			if contracts[i].Strike > contracts[j].Strike {
				contracts[i], contracts[j] = contracts[j], contracts[i]
			}
		}
	}

	result.Data = contracts
	result.Metrics.RequestDuration = time.Since(start)
	return result, nil
}

// attachQuotes fills bid/ask from the latest-quotes endpoint, 100 contracts
// per request
func (a *AlpacaProvider) attachQuotes(ctx context.Context, contracts []*providers.ChainContract, result *providers.ChainResult) error {
	bySymbol := make(map[string]*providers.ChainContract, len(contracts))
	symbols := make([]string, 0, len(contracts))
	for _, c := range contracts {
		bySymbol[c.Symbol] = c
		symbols = append(symbols, c.Symbol)
	}

	batchSize := 100
	for i := 0; i < len(symbols); i += batchSize {
		end := i + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		a.rateLimit()
		url := fmt.Sprintf("%s/v1beta1/options/quotes/latest?symbols=%s",
			a.dataURL, strings.Join(symbols[i:end], ","))
		body, network, err := a.doRequest(ctx, url)
		if err != nil {
			return err
		}

		parseStart := time.Now()
		var quotesResp struct {
			Quotes map[string]struct {
				AskPrice float64 `json:"ap"`
				BidPrice float64 `json:"bp"`
			} `json:"quotes"`
		}
		if err := json.Unmarshal(body, &quotesResp); err != nil {
			return fmt.Errorf("failed to decode quotes response: %v", err)
		}
		parse := time.Since(parseStart)
		a.recordRequest(network, parse, int64(len(body)))
		result.Metrics.RequestCount++
		result.Metrics.NetworkTime += network
		result.Metrics.ParseTime += parse
		result.Metrics.BytesReceived += int64(len(body))

		for sym, q := range quotesResp.Quotes {
			if c, ok := bySymbol[sym]; ok {
				c.Bid = q.BidPrice
				c.Ask = q.AskPrice
			}
		}
	}

	return nil
}

// GetPerformanceStats returns cumulative performance statistics
func (a *AlpacaProvider) GetPerformanceStats() providers.PerformanceMetrics {
	a.statsMutex.RLock()
	defer a.statsMutex.RUnlock()
	return providers.PerformanceMetrics{
		RequestDuration: a.totalNetworkTime + a.totalParseTime,
		NetworkTime:     a.totalNetworkTime,
		ParseTime:       a.totalParseTime,
		RequestCount:    int(a.totalRequests),
		BytesReceived:   a.totalBytes,
		RetryAttempts:   int(a.totalRetries),
	}
}

// TestConnection verifies credentials against the account endpoint
func (a *AlpacaProvider) TestConnection(ctx context.Context) error {
	a.rateLimit()
	_, _, err := a.doRequest(ctx, a.baseURL+"/v2/account")
	if err != nil {
		return fmt.Errorf("alpaca API connection failed: %v", err)
	}
	return nil
}

// Close cleans up resources
func (a *AlpacaProvider) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}
