package mc

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

var spec = PathSpec{Spot: 100, Drift: 0.07, Vol: 0.2, Horizon: 1, Steps: 252, Seed: 42}

func TestPathShapeAndPositivity(t *testing.T) {
	path, err := Path(spec)
	if err != nil {
		t.Fatalf("path err: %v", err)
	}
	if len(path) != spec.Steps+1 {
		t.Fatalf("expected %d points, got %d", spec.Steps+1, len(path))
	}
	if path[0] != spec.Spot {
		t.Errorf("path must start at spot: got %v", path[0])
	}
	for i, p := range path {
		if p <= 0 {
			t.Fatalf("GBM price went non-positive at step %d: %v", i, p)
		}
	}
}

func TestPathDeterministicBySeed(t *testing.T) {
	a, err := Path(spec)
	if err != nil {
		t.Fatalf("path err: %v", err)
	}
	b, err := Path(spec)
	if err != nil {
		t.Fatalf("path err: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different paths at step %d", i)
		}
	}

	other := spec
	other.Seed = 43
	c, _ := Path(other)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical paths")
	}
}

func TestTerminalLogReturnMoments(t *testing.T) {
	// Log of S_T/S_0 is normal with mean (mu - sigma^2/2)T and sd sigma*sqrt(T)
	const n = 20000
	paths, err := Paths(PathSpec{Spot: 100, Drift: 0.05, Vol: 0.3, Horizon: 1, Steps: 1, Seed: 7}, n)
	if err != nil {
		t.Fatalf("paths err: %v", err)
	}

	logReturns := make([]float64, n)
	for i, p := range paths {
		logReturns[i] = math.Log(p[len(p)-1] / p[0])
	}

	mean, std := stat.MeanStdDev(logReturns, nil)
	wantMean := 0.05 - 0.5*0.3*0.3
	if math.Abs(mean-wantMean) > 0.01 {
		t.Errorf("log-return mean off: got %v want %v", mean, wantMean)
	}
	if math.Abs(std-0.3) > 0.01 {
		t.Errorf("log-return sd off: got %v want 0.3", std)
	}
}

func TestPriceEuropeanMatchesClosedForm(t *testing.T) {
	p := bs.Params{Spot: 100, Strike: 100, Rate: 0.05, Vol: 0.2, Expiry: 1}
	want, _ := bs.Price(bs.Call, p)

	res, err := PriceEuropean(bs.Call, p, 400000, 99)
	if err != nil {
		t.Fatalf("mc price err: %v", err)
	}

	// Allow three standard errors of sampling noise
	if math.Abs(res.Price-want) > 3*res.StdError {
		t.Errorf("mc estimate %v outside 3 std errors of %v (se=%v)", res.Price, want, res.StdError)
	}
	if res.StdError <= 0 {
		t.Errorf("expected positive std error, got %v", res.StdError)
	}
}

func TestPriceEuropeanPut(t *testing.T) {
	p := bs.Params{Spot: 90, Strike: 100, Rate: 0.02, Vol: 0.35, Expiry: 0.5}
	want, _ := bs.Price(bs.Put, p)

	res, err := PriceEuropean(bs.Put, p, 400000, 99)
	if err != nil {
		t.Fatalf("mc price err: %v", err)
	}
	if math.Abs(res.Price-want) > 3*res.StdError {
		t.Errorf("mc put estimate %v outside 3 std errors of %v", res.Price, want)
	}
}

func TestInvalidSpecs(t *testing.T) {
	bad := spec
	bad.Spot = 0
	if _, err := Path(bad); err == nil {
		t.Error("expected error for zero spot")
	}

	bad = spec
	bad.Steps = 0
	if _, err := Path(bad); err == nil {
		t.Error("expected error for zero steps")
	}

	if _, err := Paths(spec, 0); err == nil {
		t.Error("expected error for zero paths")
	}

	p := bs.Params{Spot: 100, Strike: 100, Rate: 0.05, Vol: 0.2, Expiry: 1}
	if _, err := PriceEuropean(bs.Call, p, 1, 1); err == nil {
		t.Error("expected error for single-path estimate")
	}
	if _, err := PriceEuropean(bs.Call, p, MaxPaths+1, 1); err == nil {
		t.Error("expected error above path cap")
	}
}
