// Package sde provides Euler-Maruyama discretization of one-dimensional
// stochastic differential equations and the Vasicek short-rate model built
// on top of it.
package sde

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Coefficient is a drift or diffusion term a(x, t).
type Coefficient func(x, t float64) float64

// Model pairs the two coefficients of dX = Drift(X,t)dt + Diffusion(X,t)dW.
type Model struct {
	Drift     Coefficient
	Diffusion Coefficient
}

// EulerSpec configures one discretized simulation.
type EulerSpec struct {
	X0      float64 // initial state
	Horizon float64 // total time in years
	Steps   int
	Seed    uint64
}

func (s EulerSpec) validate() error {
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %v", s.Horizon)
	}
	if s.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", s.Steps)
	}
	return nil
}

// Euler simulates one path with the Euler-Maruyama scheme
// X_{t+dt} = X_t + a(X_t,t)dt + b(X_t,t)*sqrt(dt)*Z.
func Euler(m Model, spec EulerSpec) ([]float64, error) {
	if m.Drift == nil || m.Diffusion == nil {
		return nil, fmt.Errorf("model needs both drift and diffusion coefficients")
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(spec.Seed)}
	dt := spec.Horizon / float64(spec.Steps)
	sqrtDt := math.Sqrt(dt)

	path := make([]float64, spec.Steps+1)
	path[0] = spec.X0
	t := 0.0
	for i := 1; i <= spec.Steps; i++ {
		x := path[i-1]
		path[i] = x + m.Drift(x, t)*dt + m.Diffusion(x, t)*sqrtDt*normal.Rand()
		t += dt
	}
	return path, nil
}

// EulerPaths simulates n independent paths from one seeded source.
func EulerPaths(m Model, spec EulerSpec, n int) ([][]float64, error) {
	if m.Drift == nil || m.Diffusion == nil {
		return nil, fmt.Errorf("model needs both drift and diffusion coefficients")
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("path count must be at least 1, got %d", n)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(spec.Seed)}
	dt := spec.Horizon / float64(spec.Steps)
	sqrtDt := math.Sqrt(dt)

	out := make([][]float64, n)
	for p := 0; p < n; p++ {
		path := make([]float64, spec.Steps+1)
		path[0] = spec.X0
		t := 0.0
		for i := 1; i <= spec.Steps; i++ {
			x := path[i-1]
			path[i] = x + m.Drift(x, t)*dt + m.Diffusion(x, t)*sqrtDt*normal.Rand()
			t += dt
		}
		out[p] = path
	}
	return out, nil
}

// GBM returns the Geometric Brownian Motion model dS = mu*S dt + sigma*S dW,
// the standard sanity check for the Euler scheme.
func GBM(mu, sigma float64) Model {
	return Model{
		Drift:     func(x, _ float64) float64 { return mu * x },
		Diffusion: func(x, _ float64) float64 { return sigma * x },
	}
}
