// Package mc simulates Geometric Brownian Motion and prices European options
// by Monte Carlo. Sampling goes through gonum's distuv so a seeded source
// makes every run reproducible.
package mc

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

// MaxPaths bounds a single request; memory for terminal sampling is O(paths).
const MaxPaths = 10_000_000

// PathSpec describes a GBM simulation.
type PathSpec struct {
	Spot    float64 // initial price
	Drift   float64 // annualized drift mu
	Vol     float64 // annualized volatility sigma
	Horizon float64 // total time in years
	Steps   int     // observations per path after the initial one
	Seed    uint64
}

func (s PathSpec) validate() error {
	if s.Spot <= 0 {
		return fmt.Errorf("spot must be positive, got %v", s.Spot)
	}
	if s.Vol < 0 {
		return fmt.Errorf("vol must be non-negative, got %v", s.Vol)
	}
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %v", s.Horizon)
	}
	if s.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", s.Steps)
	}
	return nil
}

// Path generates one GBM path with steps+1 points using the exact log-normal
// increment S_{t+dt} = S_t * exp((mu - sigma^2/2)dt + sigma*sqrt(dt)*Z).
func Path(spec PathSpec) ([]float64, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(spec.Seed)}
	dt := spec.Horizon / float64(spec.Steps)
	drift := (spec.Drift - 0.5*spec.Vol*spec.Vol) * dt
	diffusion := spec.Vol * math.Sqrt(dt)

	prices := make([]float64, spec.Steps+1)
	prices[0] = spec.Spot
	for i := 1; i <= spec.Steps; i++ {
		prices[i] = prices[i-1] * math.Exp(drift+diffusion*normal.Rand())
	}
	return prices, nil
}

// Paths generates n independent GBM paths from one seeded source.
func Paths(spec PathSpec, n int) ([][]float64, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if n < 1 || n > MaxPaths {
		return nil, fmt.Errorf("path count %d outside [1, %d]", n, MaxPaths)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(spec.Seed)}
	dt := spec.Horizon / float64(spec.Steps)
	drift := (spec.Drift - 0.5*spec.Vol*spec.Vol) * dt
	diffusion := spec.Vol * math.Sqrt(dt)

	out := make([][]float64, n)
	for p := 0; p < n; p++ {
		prices := make([]float64, spec.Steps+1)
		prices[0] = spec.Spot
		for i := 1; i <= spec.Steps; i++ {
			prices[i] = prices[i-1] * math.Exp(drift+diffusion*normal.Rand())
		}
		out[p] = prices
	}
	return out, nil
}

// PriceResult is a Monte Carlo estimate with its sampling error.
type PriceResult struct {
	Price    float64 `json:"price"`
	StdError float64 `json:"std_error"`
	Paths    int     `json:"paths"`
}

// PriceEuropean estimates the value of a European option by sampling the
// terminal price directly (one log-normal draw per path, no time stepping)
// and discounting the mean payoff.
func PriceEuropean(typ bs.OptionType, p bs.Params, paths int, seed uint64) (PriceResult, error) {
	if typ != bs.Call && typ != bs.Put {
		return PriceResult{}, fmt.Errorf("unknown option type %q", typ)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return PriceResult{}, fmt.Errorf("spot and strike must be positive")
	}
	if p.Vol < 0 || p.Expiry <= 0 {
		return PriceResult{}, fmt.Errorf("need non-negative vol and positive expiry")
	}
	if paths < 2 || paths > MaxPaths {
		return PriceResult{}, fmt.Errorf("path count %d outside [2, %d]", paths, MaxPaths)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	drift := (p.Rate - p.Dividend - 0.5*p.Vol*p.Vol) * p.Expiry
	diffusion := p.Vol * math.Sqrt(p.Expiry)
	disc := math.Exp(-p.Rate * p.Expiry)

	payoffs := make([]float64, paths)
	for i := range payoffs {
		terminal := p.Spot * math.Exp(drift+diffusion*normal.Rand())
		if typ == bs.Call {
			payoffs[i] = disc * math.Max(terminal-p.Strike, 0)
		} else {
			payoffs[i] = disc * math.Max(p.Strike-terminal, 0)
		}
	}

	mean, std := stat.MeanStdDev(payoffs, nil)
	return PriceResult{
		Price:    mean,
		StdError: std / math.Sqrt(float64(paths)),
		Paths:    paths,
	}, nil
}
