// Package universe maintains the instrument catalog used to enrich chain
// analysis results with company and sector metadata.
package universe

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/kmaier/quantlab/internal/logger"
)

// Instrument is one catalog entry. The csv tags match the S&P constituents
// file layout.
type Instrument struct {
	Symbol      string `csv:"Symbol" json:"symbol"`
	Company     string `csv:"Security" json:"company"`
	Sector      string `csv:"GICS Sector" json:"sector"`
	SubIndustry string `csv:"GICS Sub-Industry" json:"sub_industry"`
	DateAdded   string `csv:"Date added" json:"date_added"`
}

// Service loads the catalog from a local CSV asset and can refresh it from
// the public constituents dataset.
type Service struct {
	assetFile  string
	sourceURLs []string
	httpClient *http.Client

	mu          sync.RWMutex
	instruments []Instrument
	bySymbol    map[string]*Instrument
	loadedAt    time.Time
}

// NewService builds a catalog service rooted at dataDir
func NewService(dataDir string) *Service {
	if dataDir == "" {
		dataDir = "assets/universe"
	}
	return &Service{
		assetFile: filepath.Join(dataDir, "constituents.csv"),
		sourceURLs: []string{
			"https://raw.githubusercontent.com/datasets/s-and-p-500-companies/master/data/constituents.csv",
			"https://datahub.io/core/s-and-p-500-companies/r/constituents.csv",
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Load reads the catalog from the local asset file
func (s *Service) Load() error {
	data, err := os.ReadFile(s.assetFile)
	if err != nil {
		return fmt.Errorf("failed to read catalog asset: %w", err)
	}
	return s.loadBytes(data)
}

func (s *Service) loadBytes(data []byte) error {
	var instruments []Instrument
	if err := gocsv.UnmarshalBytes(data, &instruments); err != nil {
		return fmt.Errorf("failed to parse catalog CSV: %w", err)
	}

	cleaned := make([]Instrument, 0, len(instruments))
	bySymbol := make(map[string]*Instrument, len(instruments))
	for _, inst := range instruments {
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if inst.Symbol == "" || len(inst.Symbol) > 5 {
			continue
		}
		inst.Company = strings.TrimSpace(inst.Company)
		inst.Sector = strings.TrimSpace(inst.Sector)
		cleaned = append(cleaned, inst)
	}
	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].Symbol < cleaned[j].Symbol
	})
	for i := range cleaned {
		bySymbol[cleaned[i].Symbol] = &cleaned[i]
	}

	s.mu.Lock()
	s.instruments = cleaned
	s.bySymbol = bySymbol
	s.loadedAt = time.Now()
	s.mu.Unlock()

	logger.Info.Printf("📇 Loaded %d instruments into the catalog", len(cleaned))
	return nil
}

// Update refreshes the catalog from the first reachable upstream source and
// rewrites the local asset
func (s *Service) Update() error {
	var lastErr error
	for _, url := range s.sourceURLs {
		data, err := s.fetch(url)
		if err != nil {
			lastErr = err
			logger.Warn.Printf("⚠️ catalog source %s failed: %v", url, err)
			continue
		}
		if err := s.loadBytes(data); err != nil {
			lastErr = err
			continue
		}
		if err := s.saveAsset(data); err != nil {
			logger.Warn.Printf("⚠️ could not persist catalog asset: %v", err)
		}
		return nil
	}
	return fmt.Errorf("all catalog sources failed: %v", lastErr)
}

func (s *Service) fetch(url string) ([]byte, error) {
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Service) saveAsset(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.assetFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.assetFile, data, 0644)
}

// EnsureLoaded loads from the asset file and falls back to an upstream
// refresh when no local copy exists
func (s *Service) EnsureLoaded() error {
	if err := s.Load(); err == nil {
		return nil
	}
	return s.Update()
}

// Lookup returns company and sector metadata for a symbol, empty strings
// when the symbol is not cataloged
func (s *Service) Lookup(symbol string) (company, sector string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inst, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return inst.Company, inst.Sector
	}
	return "", ""
}

// Symbols returns all cataloged tickers in sorted order
func (s *Service) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.instruments))
	for i, inst := range s.instruments {
		out[i] = inst.Symbol
	}
	return out
}

// Count returns the catalog size
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instruments)
}
