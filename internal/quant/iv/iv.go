// Package iv recovers implied volatility from observed option prices by
// root-finding against the Black-Scholes pricing function.
//
// Two solvers are provided. Newton iterates with a centered finite-difference
// derivative of price with respect to volatility, which keeps the solver
// independent of the analytic vega. Bisection keeps a bracketing interval and
// stops once the model price rounded to cents matches the market price.
// Neither solver treats hitting the iteration budget as an error: both return
// the best estimate so far together with a convergence flag.
package iv

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

const (
	// DefaultMaxIterations bounds both solvers.
	DefaultMaxIterations = 100

	// DefaultTolerance is the Newton step-size stop.
	DefaultTolerance = 1e-6

	// derivativeFloor guards the Newton division; below this the
	// finite-difference slope carries no usable signal.
	derivativeFloor = 1e-10

	// fdBump is the half-width of the centered difference in vol units.
	fdBump = 1e-4

	// Volatility bounds used for clamping and bracketing.
	minVol = 0.001
	maxVol = 5.0
)

// Result carries the estimate plus solver diagnostics.
type Result struct {
	Vol        float64 `json:"implied_volatility"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Method     string  `json:"method"`
}

// Settings overrides the solver budget. Zero fields fall back to the package
// defaults. Bisection uses only the iteration budget; its stop rule is the
// cent match.
type Settings struct {
	MaxIterations int
	Tolerance     float64
}

func (s Settings) fill() Settings {
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	return s
}

// Newton solves for the volatility that reprices the option to marketPrice.
// The derivative is a centered finite difference of the pricing function, the
// stop is a small step or a vanishing derivative, and the iteration budget
// caps the loop. The last estimate is returned even without convergence.
func Newton(typ bs.OptionType, p bs.Params, marketPrice float64) (Result, error) {
	return NewtonWith(typ, p, marketPrice, Settings{})
}

// NewtonWith is Newton with an explicit budget and step tolerance.
func NewtonWith(typ bs.OptionType, p bs.Params, marketPrice float64, s Settings) (Result, error) {
	if marketPrice <= 0 {
		return Result{}, fmt.Errorf("market price must be positive, got %v", marketPrice)
	}
	if p.Expiry <= 0 {
		return Result{}, fmt.Errorf("expiry must be positive for implied vol, got %v", p.Expiry)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return Result{}, fmt.Errorf("spot and strike must be positive")
	}

	s = s.fill()

	// Brenner-Subrahmanyam style starting guess, clamped into bounds
	vol := clampVol(marketPrice * math.Sqrt(2*math.Pi/p.Expiry) / p.Spot)

	res := Result{Method: "newton"}
	for i := 0; i < s.MaxIterations; i++ {
		res.Iterations = i + 1

		diff, err := priceAt(typ, p, vol)
		if err != nil {
			return res, err
		}
		diff -= marketPrice

		// Centered finite difference of price with respect to vol
		up, err := priceAt(typ, p, vol+fdBump)
		if err != nil {
			return res, err
		}
		down, err := priceAt(typ, p, math.Max(vol-fdBump, minVol/2))
		if err != nil {
			return res, err
		}
		slope := (up - down) / (2 * fdBump)

		if math.Abs(slope) < derivativeFloor {
			// Flat objective: no more signal to follow
			res.Vol = vol
			return res, nil
		}

		step := diff / slope
		vol = clampVol(vol - step)
		res.Vol = vol

		if math.Abs(step) < s.Tolerance {
			res.Converged = true
			return res, nil
		}
	}

	res.Vol = vol
	return res, nil
}

// NewtonVega is Newton iteration with the analytic vega as the derivative.
// Faster per step than the finite-difference variant, so it is the solver of
// choice when repricing whole chains.
func NewtonVega(typ bs.OptionType, p bs.Params, marketPrice float64) (Result, error) {
	return NewtonVegaWith(typ, p, marketPrice, Settings{})
}

// NewtonVegaWith is NewtonVega with an explicit budget and step tolerance.
func NewtonVegaWith(typ bs.OptionType, p bs.Params, marketPrice float64, s Settings) (Result, error) {
	if marketPrice <= 0 {
		return Result{}, fmt.Errorf("market price must be positive, got %v", marketPrice)
	}
	if p.Expiry <= 0 {
		return Result{}, fmt.Errorf("expiry must be positive for implied vol, got %v", p.Expiry)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return Result{}, fmt.Errorf("spot and strike must be positive")
	}

	s = s.fill()

	vol := clampVol(marketPrice * math.Sqrt(2*math.Pi/p.Expiry) / p.Spot)

	res := Result{Method: "newton-vega"}
	for i := 0; i < s.MaxIterations; i++ {
		res.Iterations = i + 1

		diff, err := priceAt(typ, p, vol)
		if err != nil {
			return res, err
		}
		diff -= marketPrice

		p.Vol = vol
		vega, err := bs.Vega(p)
		if err != nil {
			return res, err
		}
		if math.Abs(vega) < derivativeFloor {
			res.Vol = vol
			return res, nil
		}

		step := diff / vega
		vol = clampVol(vol - step)
		res.Vol = vol

		if math.Abs(step) < s.Tolerance {
			res.Converged = true
			return res, nil
		}
	}

	res.Vol = vol
	return res, nil
}

// Bisection brackets the root in [minVol, maxVol] and halves the interval,
// comparing model price to market price. The stop rule follows market
// convention: once the model price rounds to the same cent as the observed
// price, further digits are noise.
func Bisection(typ bs.OptionType, p bs.Params, marketPrice float64) (Result, error) {
	return BisectionWith(typ, p, marketPrice, Settings{})
}

// BisectionWith is Bisection with an explicit iteration budget.
func BisectionWith(typ bs.OptionType, p bs.Params, marketPrice float64, s Settings) (Result, error) {
	if marketPrice <= 0 {
		return Result{}, fmt.Errorf("market price must be positive, got %v", marketPrice)
	}
	if p.Expiry <= 0 {
		return Result{}, fmt.Errorf("expiry must be positive for implied vol, got %v", p.Expiry)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return Result{}, fmt.Errorf("spot and strike must be positive")
	}

	s = s.fill()
	target := decimal.NewFromFloat(marketPrice).Round(2)

	lo, hi := minVol, maxVol
	res := Result{Method: "bisection"}

	for i := 0; i < s.MaxIterations; i++ {
		res.Iterations = i + 1
		mid := (lo + hi) / 2
		res.Vol = mid

		price, err := priceAt(typ, p, mid)
		if err != nil {
			return res, err
		}

		if decimal.NewFromFloat(price).Round(2).Equal(target) {
			res.Converged = true
			return res, nil
		}

		// Price is monotone increasing in vol, so steer the interval directly
		if price < marketPrice {
			lo = mid
		} else {
			hi = mid
		}
	}

	return res, nil
}

func priceAt(typ bs.OptionType, p bs.Params, vol float64) (float64, error) {
	p.Vol = vol
	return bs.Price(typ, p)
}

func clampVol(v float64) float64 {
	return math.Max(minVol, math.Min(maxVol, v))
}
