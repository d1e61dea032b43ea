// Package pde solves the Black-Scholes partial differential equation on a
// uniform finite-difference grid. A theta-scheme covers the explicit,
// implicit and Crank-Nicolson discretizations; the implicit systems are
// tridiagonal and solved with the Thomas algorithm.
package pde

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

// Scheme selects the time discretization.
type Scheme string

const (
	Explicit      Scheme = "explicit"       // theta = 0
	Implicit      Scheme = "implicit"       // theta = 1
	CrankNicolson Scheme = "crank-nicolson" // theta = 1/2
)

// GridSpec configures the solution grid.
type GridSpec struct {
	SpotSteps int // interior spatial nodes
	TimeSteps int
	SpotMax   float64 // upper boundary; 0 picks a multiple of strike
}

const (
	maxGridNodes = 4000
	// Default upper boundary as a multiple of the strike. Far enough for
	// the boundary condition to be exact to double precision.
	defaultSpotMaxMultiple = 4.0
)

// Result is the PDE value at the requested spot plus the full grid for
// callers that want the whole value surface.
type Result struct {
	Price float64
	// Surface rows are time layers (row 0 = valuation date), columns are
	// spot nodes from 0 to SpotMax.
	Surface *mat.Dense
	Spots   []float64
}

// Solve values a European option by marching the Black-Scholes PDE backward
// from the payoff at expiry. The solution at the requested spot is read off
// the valuation-date layer by linear interpolation.
func Solve(typ bs.OptionType, scheme Scheme, p bs.Params, grid GridSpec) (Result, error) {
	theta, err := schemeTheta(scheme)
	if err != nil {
		return Result{}, err
	}
	if typ != bs.Call && typ != bs.Put {
		return Result{}, fmt.Errorf("unknown option type %q", typ)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return Result{}, fmt.Errorf("spot and strike must be positive")
	}
	if p.Vol <= 0 || p.Expiry <= 0 {
		return Result{}, fmt.Errorf("PDE solver needs positive vol and expiry")
	}
	if grid.SpotSteps < 3 || grid.SpotSteps > maxGridNodes {
		return Result{}, fmt.Errorf("spot steps %d outside [3, %d]", grid.SpotSteps, maxGridNodes)
	}
	if grid.TimeSteps < 1 || grid.TimeSteps > maxGridNodes {
		return Result{}, fmt.Errorf("time steps %d outside [1, %d]", grid.TimeSteps, maxGridNodes)
	}

	sMax := grid.SpotMax
	if sMax == 0 {
		sMax = defaultSpotMaxMultiple * math.Max(p.Strike, p.Spot)
	}
	if p.Spot >= sMax {
		return Result{}, fmt.Errorf("spot %v outside grid [0, %v]", p.Spot, sMax)
	}

	m := grid.SpotSteps // interior nodes 1..m, boundaries at 0 and m+1
	n := grid.TimeSteps
	ds := sMax / float64(m+1)
	dt := p.Expiry / float64(n)

	// Explicit stepping is only conditionally stable: the update at the
	// outermost interior node has growth factor 1 + dt*b[m], which must stay
	// within the unit interval or the march blows up.
	if theta == 0 {
		limit := p.Vol*p.Vol*float64(m)*float64(m) + p.Rate
		if dt*limit > 1 {
			return Result{}, fmt.Errorf(
				"explicit scheme unstable with %d time steps for %d spot nodes, need at least %d; add time steps or use implicit",
				n, m, int(math.Ceil(p.Expiry*limit)))
		}
	}

	spots := make([]float64, m+2)
	for i := range spots {
		spots[i] = float64(i) * ds
	}

	surface := mat.NewDense(n+1, m+2, nil)

	// Terminal layer: the payoff
	for i := 0; i <= m+1; i++ {
		surface.Set(n, i, payoff(typ, spots[i], p.Strike))
	}

	// Spatial operator coefficients at interior node i:
	// L V = 0.5 sigma^2 S^2 V_SS + (r-q) S V_S - r V
	a := make([]float64, m+1) // sub-diagonal weight
	b := make([]float64, m+1) // diagonal weight
	c := make([]float64, m+1) // super-diagonal weight
	for i := 1; i <= m; i++ {
		fi := float64(i)
		sig2 := p.Vol * p.Vol * fi * fi
		drift := (p.Rate - p.Dividend) * fi
		a[i] = 0.5 * (sig2 - drift)
		b[i] = -sig2 - p.Rate
		c[i] = 0.5 * (sig2 + drift)
	}

	// Tridiagonal system (I - theta*dt*L) V_new = (I + (1-theta)*dt*L) V_old
	sub := make([]float64, m)
	diag := make([]float64, m)
	sup := make([]float64, m)
	rhs := make([]float64, m)
	prev := make([]float64, m+2)
	cur := make([]float64, m+2)

	for i := 0; i <= m+1; i++ {
		prev[i] = surface.At(n, i)
	}

	for step := n - 1; step >= 0; step-- {
		tau := p.Expiry - float64(step)*dt // time remaining at this layer

		// Dirichlet boundaries
		cur[0] = boundaryLow(typ, p, tau)
		cur[m+1] = boundaryHigh(typ, p, sMax, tau)

		for i := 1; i <= m; i++ {
			j := i - 1
			sub[j] = -theta * dt * a[i]
			diag[j] = 1 - theta*dt*b[i]
			sup[j] = -theta * dt * c[i]

			rhs[j] = prev[i] + (1-theta)*dt*(a[i]*prev[i-1]+b[i]*prev[i]+c[i]*prev[i+1])
		}
		// Fold known boundary values into the right-hand side
		rhs[0] += theta * dt * a[1] * cur[0]
		rhs[m-1] += theta * dt * c[m] * cur[m+1]

		if theta == 0 {
			copy(cur[1:m+1], rhs)
		} else {
			if err := thomasSolve(sub, diag, sup, rhs, cur[1:m+1]); err != nil {
				return Result{}, err
			}
		}

		for i := 0; i <= m+1; i++ {
			surface.Set(step, i, cur[i])
		}
		copy(prev, cur)
	}

	price := interpolate(spots, prev, p.Spot)
	return Result{Price: price, Surface: surface, Spots: spots}, nil
}

func schemeTheta(s Scheme) (float64, error) {
	switch s {
	case Explicit:
		return 0, nil
	case Implicit:
		return 1, nil
	case CrankNicolson:
		return 0.5, nil
	default:
		return 0, fmt.Errorf("unknown scheme %q", s)
	}
}

func payoff(typ bs.OptionType, spot, strike float64) float64 {
	if typ == bs.Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

// boundaryLow is the S=0 boundary: worthless call, discounted strike put.
func boundaryLow(typ bs.OptionType, p bs.Params, tau float64) float64 {
	if typ == bs.Call {
		return 0
	}
	return p.Strike * math.Exp(-p.Rate*tau)
}

// boundaryHigh is the S=SpotMax boundary: deep ITM call, worthless put.
func boundaryHigh(typ bs.OptionType, p bs.Params, sMax, tau float64) float64 {
	if typ == bs.Call {
		return sMax*math.Exp(-p.Dividend*tau) - p.Strike*math.Exp(-p.Rate*tau)
	}
	return 0
}

// thomasSolve solves a tridiagonal system in O(n). The inputs are scratch
// space and are overwritten.
func thomasSolve(sub, diag, sup, rhs, out []float64) error {
	n := len(diag)
	for i := 1; i < n; i++ {
		if diag[i-1] == 0 {
			return fmt.Errorf("tridiagonal solve hit a zero pivot at row %d", i-1)
		}
		w := sub[i] / diag[i-1]
		diag[i] -= w * sup[i-1]
		rhs[i] -= w * rhs[i-1]
	}
	if diag[n-1] == 0 {
		return fmt.Errorf("tridiagonal solve hit a zero pivot at row %d", n-1)
	}
	out[n-1] = rhs[n-1] / diag[n-1]
	for i := n - 2; i >= 0; i-- {
		out[i] = (rhs[i] - sup[i]*out[i+1]) / diag[i]
	}
	return nil
}

func interpolate(xs, ys []float64, x float64) float64 {
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			w := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1]*(1-w) + ys[i]*w
		}
	}
	return ys[len(ys)-1]
}
