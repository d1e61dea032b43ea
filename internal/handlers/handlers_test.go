package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/kmaier/quantlab/internal/audit"
	"github.com/kmaier/quantlab/internal/config"
	"github.com/kmaier/quantlab/internal/models"
	"github.com/kmaier/quantlab/internal/providers"
	"github.com/kmaier/quantlab/internal/universe"
)

type fixedRates struct{ rate float64 }

func (f fixedRates) GetRiskFreeRateWithLastKnown() float64 { return f.rate }

type cannedHistory struct{ prices []float64 }

func (c cannedHistory) DailyCloses(symbol string, years int) ([]float64, error) {
	if len(c.prices) == 0 {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	return c.prices, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "8080",
		DefaultRate:     0.04,
		DefaultDividend: 0,
		MaxResults:      25,
		Solver:          config.SolverConfig{Method: "newton", MaxIterations: 100, Tolerance: 1e-6},
		Simulation:      config.SimulationConfig{DefaultPaths: 50000, DefaultSteps: 252},
		Grid:            config.GridConfig{SpotSteps: 200, TimeSteps: 200, Scheme: "crank-nicolson"},
		CSV:             config.CSVConfig{FilenameFormat: "{time}_{symbol}_{exp_date}_chain.csv"},
	}
}

func newTestRouter(t *testing.T) (*mux.Router, *Handlers) {
	t.Helper()

	uniDir := t.TempDir()
	csvData := "Symbol,Security,GICS Sector,GICS Sub-Industry,Date added\nAAPL,Apple Inc.,Information Technology,Hardware,1982-11-30\n"
	if err := os.WriteFile(filepath.Join(uniDir, "constituents.csv"), []byte(csvData), 0644); err != nil {
		t.Fatalf("write universe asset: %v", err)
	}
	uni := universe.NewService(uniDir)
	if err := uni.Load(); err != nil {
		t.Fatalf("load universe: %v", err)
	}

	journal := audit.NewJournal(t.TempDir())
	t.Cleanup(journal.Close)

	pm := providers.NewProviderManager(providers.NewFakeProvider(100, 0.2, 0.05))

	h := New(testConfig(), pm, fixedRates{rate: 0.05}, uni, journal,
		cannedHistory{prices: []float64{100, 101, 100.5, 102, 101.5, 103, 102.5, 104}})

	r := mux.NewRouter()
	h.Register(r)
	return r, h
}

func post(t *testing.T, r *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), err)
	}
}

func ptr(f float64) *float64 { return &f }

func TestPriceEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/price", models.PriceRequest{
		OptionType: "call",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.PriceResponse
	decodeBody(t, w, &resp)
	if math.Abs(resp.Price-10.450583572185565) > 1e-9 {
		t.Errorf("price mismatch: %v", resp.Price)
	}
	if resp.Delta <= 0.5 || resp.Delta >= 0.7 {
		t.Errorf("ATM call delta out of range: %v", resp.Delta)
	}
	if resp.RateUsed != 0.05 {
		t.Errorf("rate override ignored: %v", resp.RateUsed)
	}
}

func TestPriceUsesRateSourceWhenNoOverride(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/price", models.PriceRequest{
		OptionType: "put",
		Spot:       100, Strike: 100, Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.PriceResponse
	decodeBody(t, w, &resp)
	if resp.RateUsed != 0.05 {
		t.Errorf("expected treasury rate 0.05, got %v", resp.RateUsed)
	}
}

func TestPriceRejectsBadOptionType(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/price", models.PriceRequest{
		OptionType: "straddle",
		Spot:       100, Strike: 100, Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPriceRejectsUnknownFields(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/price",
		strings.NewReader(`{"option_type":"call","spot":100,"strike":100,"vol_typo":0.2}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown field, got %d", w.Code)
	}
}

func TestImpliedVolRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, method := range []string{"newton", "bisection"} {
		w := post(t, r, "/api/implied-vol", models.ImpliedVolRequest{
			OptionType: "call",
			Spot:       100, Strike: 100, Rate: ptr(0.05), Expiry: 1,
			MarketPrice: 10.450583572185565,
			Method:      method,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("%s status %d: %s", method, w.Code, w.Body.String())
		}

		var resp models.ImpliedVolResponse
		decodeBody(t, w, &resp)
		if math.Abs(resp.ImpliedVol-0.2) > 0.005 {
			t.Errorf("%s IV mismatch: %v", method, resp.ImpliedVol)
		}
		if resp.Method != method {
			t.Errorf("method echo mismatch: %s vs %s", resp.Method, method)
		}
	}
}

func TestImpliedVolHonorsConfiguredBudget(t *testing.T) {
	r, h := newTestRouter(t)
	h.cfg.Solver.MaxIterations = 5

	// A price above the no-arbitrage ceiling never converges, so the solver
	// must stop at the configured budget rather than the package default
	w := post(t, r, "/api/implied-vol", models.ImpliedVolRequest{
		OptionType: "call",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Expiry: 1,
		MarketPrice: 300,
		Method:      "newton",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.ImpliedVolResponse
	decodeBody(t, w, &resp)
	if resp.Converged {
		t.Error("expected non-convergence for an unattainable price")
	}
	if resp.Iterations != 5 {
		t.Errorf("expected the configured 5-iteration budget, got %d", resp.Iterations)
	}
}

func TestBinomialMatchesClosedForm(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/binomial", models.BinomialRequest{
		OptionType: "call", Style: "european",
		Spot: 100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
		Steps: 1000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.BinomialResponse
	decodeBody(t, w, &resp)
	if resp.ClosedFormPrice == nil {
		t.Fatal("expected closed-form comparison for European style")
	}
	if math.Abs(resp.Price-*resp.ClosedFormPrice) > 0.02 {
		t.Errorf("lattice diverges from closed form: %v vs %v", resp.Price, *resp.ClosedFormPrice)
	}
}

func TestAmericanBinomialHasNoClosedForm(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/binomial", models.BinomialRequest{
		OptionType: "put", Style: "american",
		Spot: 100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.BinomialResponse
	decodeBody(t, w, &resp)
	if resp.ClosedFormPrice != nil {
		t.Error("American style should not report a closed-form price")
	}
}

func TestMonteCarloSeedDeterminism(t *testing.T) {
	r, _ := newTestRouter(t)

	req := models.MonteCarloRequest{
		OptionType: "call",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
		Paths: 20000, Seed: 7,
	}

	var first models.MonteCarloResponse
	w := post(t, r, "/api/montecarlo", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &first)

	var second models.MonteCarloResponse
	decodeBody(t, post(t, r, "/api/montecarlo", req), &second)

	if first.Price != second.Price {
		t.Errorf("same seed produced different estimates: %v vs %v", first.Price, second.Price)
	}
	if math.Abs(first.Price-first.ClosedFormPrice) > 4*first.StdError {
		t.Errorf("estimate %v too far from closed form %v (se %v)",
			first.Price, first.ClosedFormPrice, first.StdError)
	}
}

func TestGBMPathsShape(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/gbm-paths", models.GBMPathsRequest{
		Spot: 100, Drift: 0.05, Vol: 0.2, Horizon: 1, Steps: 50, Paths: 5, Seed: 11,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.GBMPathsResponse
	decodeBody(t, w, &resp)
	if len(resp.Paths) != 5 {
		t.Fatalf("expected 5 paths, got %d", len(resp.Paths))
	}
	for _, path := range resp.Paths {
		if len(path) != 51 {
			t.Fatalf("expected 51 points per path, got %d", len(path))
		}
		if path[0] != 100 {
			t.Errorf("path should start at spot, got %v", path[0])
		}
	}
}

func TestPathEndpointsBoundSteps(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/gbm-paths", models.GBMPathsRequest{
		Spot: 100, Drift: 0.05, Vol: 0.2, Horizon: 1, Steps: 1_000_000, Paths: 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("gbm-paths: expected 400 for oversized steps, got %d", w.Code)
	}

	w = post(t, r, "/api/vasicek", models.VasicekRequest{
		Rate0: 0.03, Kappa: 1.5, Theta: 0.05, Sigma: 0.01,
		Horizon: 1, Steps: 1_000_000, Paths: 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("vasicek: expected 400 for oversized steps, got %d", w.Code)
	}
}

func TestVasicekEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/vasicek", models.VasicekRequest{
		Rate0: 0.03, Kappa: 1.5, Theta: 0.05, Sigma: 0.01,
		Horizon: 2, Steps: 200, Paths: 50, Seed: 3,
		Maturities: []float64{1, 2, 5, 10},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.VasicekResponse
	decodeBody(t, w, &resp)
	if len(resp.Paths) != 50 {
		t.Fatalf("expected 50 paths, got %d", len(resp.Paths))
	}
	if len(resp.Yields) != 4 {
		t.Fatalf("expected 4 yields, got %d", len(resp.Yields))
	}
	// Mean reversion pulls the terminal mean toward theta
	if math.Abs(resp.TerminalMean-resp.ExpectedMean) > 0.01 {
		t.Errorf("terminal mean %v far from expected %v", resp.TerminalMean, resp.ExpectedMean)
	}
}

func TestPDEEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/pde", models.PDERequest{
		OptionType: "put",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.PDEResponse
	decodeBody(t, w, &resp)
	if resp.Scheme != "crank-nicolson" {
		t.Errorf("expected configured default scheme, got %s", resp.Scheme)
	}
	if resp.AbsError > 0.05 {
		t.Errorf("grid error too large: %v (price %v vs %v)",
			resp.AbsError, resp.Price, resp.ClosedFormPrice)
	}
}

func TestPDERejectsUnstableExplicitGrid(t *testing.T) {
	r, _ := newTestRouter(t)

	// The configured 200x200 default grid is far outside the explicit
	// stability bound and must be rejected, not priced
	w := post(t, r, "/api/pde", models.PDERequest{
		OptionType: "call",
		Scheme:     "explicit",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "unstable") {
		t.Errorf("error should name the stability bound: %s", w.Body.String())
	}
}

func TestPDEExplicitStableGrid(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/pde", models.PDERequest{
		OptionType: "call",
		Scheme:     "explicit",
		Spot:       100, Strike: 100, Rate: ptr(0.05), Vol: 0.2, Expiry: 1,
		SpotSteps: 100, TimeSteps: 2000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.PDEResponse
	decodeBody(t, w, &resp)
	if resp.AbsError > 0.1 {
		t.Errorf("explicit grid error too large: %v", resp.AbsError)
	}
}

func TestRealizedVolFromRequestPrices(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/realized-vol", models.RealizedVolRequest{
		Prices: []float64{100, 101, 100.5, 102, 101.5, 103},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.RealizedVolResponse
	decodeBody(t, w, &resp)
	if resp.Source != "request" {
		t.Errorf("expected source request, got %s", resp.Source)
	}
	if resp.RealizedVol <= 0 {
		t.Errorf("expected positive realized vol, got %v", resp.RealizedVol)
	}
}

func TestRealizedVolFromProvider(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/realized-vol", models.RealizedVolRequest{Symbol: "AAPL"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.RealizedVolResponse
	decodeBody(t, w, &resp)
	if resp.Source != "provider" {
		t.Errorf("expected source provider, got %s", resp.Source)
	}
	if resp.Observations != 8 {
		t.Errorf("expected 8 observations, got %d", resp.Observations)
	}
}

func TestRealizedVolRequiresInput(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/realized-vol", models.RealizedVolRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestChainAnalysis(t *testing.T) {
	r, _ := newTestRouter(t)

	expDate := time.Now().AddDate(0, 3, 0).Format("2006-01-02")
	w := post(t, r, "/api/chain/analyze", models.ChainAnalysisRequest{
		Symbol:         "AAPL",
		ExpirationDate: expDate,
		Strategy:       "calls",
		Rate:           ptr(0.05),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp models.ChainAnalysisResponse
	decodeBody(t, w, &resp)
	if !resp.Success {
		t.Fatal("expected success")
	}
	if resp.RunID == "" {
		t.Error("expected a run ID")
	}
	if len(resp.Rows) == 0 {
		t.Fatal("expected analyzed rows")
	}

	for _, row := range resp.Rows {
		if row.OptionType != "call" {
			t.Errorf("strategy filter leaked %s", row.OptionType)
		}
		// The synthetic chain is marked at a flat 20% vol
		if math.Abs(row.ImpliedVol-0.2) > 0.02 {
			t.Errorf("strike %v: IV %v far from flat surface", row.Strike, row.ImpliedVol)
		}
		if row.Company != "Apple Inc." {
			t.Errorf("catalog enrichment missing: %q", row.Company)
		}
	}

	if resp.Meta.SolvedContracts == 0 {
		t.Error("expected solved contracts in metadata")
	}
}

func TestChainAnalysisCSVExport(t *testing.T) {
	r, _ := newTestRouter(t)

	expDate := time.Now().AddDate(0, 2, 0).Format("2006-01-02")
	data, _ := json.Marshal(models.ChainAnalysisRequest{
		Symbol:         "AAPL",
		ExpirationDate: expDate,
		Strategy:       "puts",
		Rate:           ptr(0.05),
	})
	req := httptest.NewRequest("POST", "/api/chain/analyze?format=csv", bytes.NewReader(data))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "AAPL") {
		t.Errorf("filename missing symbol: %s", cd)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected header plus rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "implied_volatility") {
		t.Errorf("csv header missing column: %s", lines[0])
	}
}

func TestChainAnalysisRejectsBadStrategy(t *testing.T) {
	r, _ := newTestRouter(t)

	w := post(t, r, "/api/chain/analyze", models.ChainAnalysisRequest{
		Symbol: "AAPL", Strategy: "condor",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestExpirationsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/expirations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	var resp struct {
		Next        string   `json:"next"`
		Expirations []string `json:"expirations"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Expirations) != 6 {
		t.Errorf("expected 6 expirations, got %d", len(resp.Expirations))
	}
	if resp.Next != resp.Expirations[0] {
		t.Errorf("next %s should lead the list %v", resp.Next, resp.Expirations)
	}
}

func TestTestConnectionEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/test-connection", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success  bool   `json:"success"`
		Provider string `json:"provider"`
	}
	decodeBody(t, w, &resp)
	if !resp.Success || resp.Provider != "fake" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status %d", w.Code)
	}
}
