package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/kmaier/quantlab/internal/logger"
)

// SlowRequestThreshold flags vendor calls worth a warning in the log
const SlowRequestThreshold = 5 * time.Second

// ProviderManager wraps a market data provider with logging and performance
// monitoring
type ProviderManager struct {
	provider MarketProvider
}

// NewProviderManager creates a new provider manager
func NewProviderManager(provider MarketProvider) *ProviderManager {
	return &ProviderManager{
		provider: provider,
	}
}

// GetSpotPrices is a convenience wrapper that adds logging
func (pm *ProviderManager) GetSpotPrices(ctx context.Context, symbols []string) (*SpotResult, error) {
	result, err := pm.provider.GetSpotPrices(ctx, symbols)

	if err != nil {
		return nil, fmt.Errorf("provider %s failed to get spot prices: %v",
			pm.provider.GetProviderName(), err)
	}

	if result.Metrics.RequestDuration > SlowRequestThreshold {
		logger.Warn.Printf("⚠️  SLOW REQUEST: %s spot prices took %v (network: %v, parse: %v)",
			pm.provider.GetProviderName(),
			result.Metrics.RequestDuration,
			result.Metrics.NetworkTime,
			result.Metrics.ParseTime)
	}

	return result, nil
}

// GetOptionChain is a convenience wrapper that adds logging
func (pm *ProviderManager) GetOptionChain(ctx context.Context, symbol string, expiration time.Time, optionType string) (*ChainResult, error) {
	result, err := pm.provider.GetOptionChain(ctx, symbol, expiration, optionType)

	if err != nil {
		return nil, fmt.Errorf("provider %s failed to get option chain for %s: %v",
			pm.provider.GetProviderName(), symbol, err)
	}

	if result.Metrics.RequestDuration > SlowRequestThreshold {
		logger.Warn.Printf("⚠️  SLOW REQUEST: %s option chain for %s took %v (network: %v, parse: %v)",
			pm.provider.GetProviderName(),
			symbol,
			result.Metrics.RequestDuration,
			result.Metrics.NetworkTime,
			result.Metrics.ParseTime)
	}

	return result, nil
}

// GetProvider returns the underlying provider
func (pm *ProviderManager) GetProvider() MarketProvider {
	return pm.provider
}

// GetPerformanceReport returns a detailed performance report
func (pm *ProviderManager) GetPerformanceReport() string {
	stats := pm.provider.GetPerformanceStats()

	report := fmt.Sprintf(`
📊 Provider Performance Report (%s)
=====================================
Requests Made:     %d
Network Time:      %v
Parse Time:        %v
Total Duration:    %v
Bytes Received:    %d
Retry Attempts:    %d
`,
		pm.provider.GetProviderName(),
		stats.RequestCount,
		stats.NetworkTime,
		stats.ParseTime,
		stats.RequestDuration,
		stats.BytesReceived,
		stats.RetryAttempts,
	)

	return report
}

// Close cleans up the provider
func (pm *ProviderManager) Close() error {
	return pm.provider.Close()
}
