package vol

import (
	"math"
	"strings"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestLogReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns, err := LogReturns(prices)
	if err != nil {
		t.Fatalf("log returns err: %v", err)
	}
	if len(returns) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(returns))
	}
	if math.Abs(returns[0]-math.Log(1.1)) > 1e-12 {
		t.Errorf("first return mismatch: %v", returns[0])
	}
}

func TestRealizedRecoversKnownVol(t *testing.T) {
	// Build a synthetic daily series with known annualized vol and check
	// the estimator lands close
	const trueVol = 0.25
	daily := trueVol / math.Sqrt(TradingDaysPerYear)
	normal := distuv.Normal{Mu: 0, Sigma: daily, Src: rand.NewSource(42)}

	prices := make([]float64, 5001)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		prices[i] = prices[i-1] * math.Exp(normal.Rand())
	}

	got, err := Realized(prices)
	if err != nil {
		t.Fatalf("realized err: %v", err)
	}
	if math.Abs(got-trueVol) > 0.01 {
		t.Errorf("realized vol off: got %v want %v", got, trueVol)
	}
}

func TestConstantPricesZeroVol(t *testing.T) {
	prices := []float64{50, 50, 50, 50, 50}
	got, err := Realized(prices)
	if err != nil {
		t.Fatalf("realized err: %v", err)
	}
	if got != 0 {
		t.Errorf("constant series should have zero vol, got %v", got)
	}
}

func TestInvalidSeries(t *testing.T) {
	if _, err := Realized([]float64{100}); err == nil {
		t.Error("expected error for a single price")
	}
	if _, err := Realized([]float64{100, -5, 110}); err == nil {
		t.Error("expected error for a non-positive price")
	}
	if _, err := RealizedWithPeriods([]float64{100, 101, 102}, 0); err == nil {
		t.Error("expected error for zero periods per year")
	}
}

func TestLogReturnsReportsOffendingPrice(t *testing.T) {
	_, err := LogReturns([]float64{100, -5, 110})
	if err == nil {
		t.Fatal("expected error for a negative price")
	}
	if !strings.Contains(err.Error(), "-5") || !strings.Contains(err.Error(), "index 1") {
		t.Errorf("error should name the bad element and its index: %v", err)
	}
}

func TestRollingWindow(t *testing.T) {
	prices := make([]float64, 41)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		bump := 1.001
		if i%2 == 0 {
			bump = 0.999
		}
		prices[i] = prices[i-1] * bump
	}

	series, err := Rolling(prices, 20)
	if err != nil {
		t.Fatalf("rolling err: %v", err)
	}
	if len(series) != 21 {
		t.Fatalf("expected 21 windows, got %d", len(series))
	}
	for i, v := range series {
		if v < 0 {
			t.Fatalf("negative vol at window %d: %v", i, v)
		}
	}

	if _, err := Rolling(prices, 100); err == nil {
		t.Error("expected error when window exceeds series")
	}
}
