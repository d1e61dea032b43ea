// Package bs implements closed-form Black-Scholes-Merton pricing and Greeks
// for European options with a continuous dividend yield.
package bs

import (
	"fmt"
	"math"
)

// OptionType identifies a call or put.
type OptionType byte

const (
	Call OptionType = 'C'
	Put  OptionType = 'P'
)

// Params holds the market inputs for a single valuation.
type Params struct {
	Spot     float64 // current underlying price
	Strike   float64
	Rate     float64 // continuously compounded risk-free rate
	Dividend float64 // continuous dividend yield
	Vol      float64 // annualized volatility
	Expiry   float64 // time to expiration in years
}

// Greeks holds the standard sensitivities. Theta is per year; divide by 365
// for a per-day decay. Vega and rho are per unit change (not per 1%).
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

func (p Params) validate() error {
	if p.Spot <= 0 {
		return fmt.Errorf("spot must be positive, got %v", p.Spot)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("strike must be positive, got %v", p.Strike)
	}
	if p.Vol < 0 {
		return fmt.Errorf("volatility must be non-negative, got %v", p.Vol)
	}
	if p.Expiry < 0 {
		return fmt.Errorf("expiry must be non-negative, got %v", p.Expiry)
	}
	return nil
}

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2.0*math.Pi)
}

// d1d2 computes the two Black-Scholes quantiles. Callers must ensure
// vol > 0 and expiry > 0.
func d1d2(p Params) (float64, float64) {
	sqrtT := math.Sqrt(p.Expiry)
	d1 := (math.Log(p.Spot/p.Strike) + (p.Rate-p.Dividend+0.5*p.Vol*p.Vol)*p.Expiry) / (p.Vol * sqrtT)
	return d1, d1 - p.Vol*sqrtT
}

// Price returns the Black-Scholes value of a European option.
// At expiry it returns intrinsic value; with zero volatility it returns the
// discounted deterministic payoff.
func Price(typ OptionType, p Params) (float64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	if typ != Call && typ != Put {
		return 0, fmt.Errorf("unknown option type %q", typ)
	}

	if p.Expiry == 0 {
		return intrinsic(typ, p.Spot, p.Strike), nil
	}

	discS := p.Spot * math.Exp(-p.Dividend*p.Expiry)
	discK := p.Strike * math.Exp(-p.Rate*p.Expiry)

	if p.Vol == 0 {
		// Deterministic forward: payoff of the discounted forward price
		if typ == Call {
			return math.Max(discS-discK, 0), nil
		}
		return math.Max(discK-discS, 0), nil
	}

	d1, d2 := d1d2(p)
	if typ == Call {
		return discS*NormCDF(d1) - discK*NormCDF(d2), nil
	}
	return discK*NormCDF(-d2) - discS*NormCDF(-d1), nil
}

// AllGreeks computes delta, gamma, theta, vega and rho in one pass.
func AllGreeks(typ OptionType, p Params) (Greeks, error) {
	if err := p.validate(); err != nil {
		return Greeks{}, err
	}
	if typ != Call && typ != Put {
		return Greeks{}, fmt.Errorf("unknown option type %q", typ)
	}
	if p.Expiry == 0 || p.Vol == 0 {
		// Degenerate limits: delta collapses to a step function, the rest to zero
		g := Greeks{}
		switch {
		case typ == Call && p.Spot > p.Strike:
			g.Delta = 1
		case typ == Put && p.Spot < p.Strike:
			g.Delta = -1
		}
		return g, nil
	}

	sqrtT := math.Sqrt(p.Expiry)
	d1, d2 := d1d2(p)
	qDisc := math.Exp(-p.Dividend * p.Expiry)
	rDisc := math.Exp(-p.Rate * p.Expiry)

	g := Greeks{
		Gamma: qDisc * NormPDF(d1) / (p.Spot * p.Vol * sqrtT),
		Vega:  p.Spot * qDisc * NormPDF(d1) * sqrtT,
	}

	common := -p.Spot * qDisc * NormPDF(d1) * p.Vol / (2 * sqrtT)
	if typ == Call {
		g.Delta = qDisc * NormCDF(d1)
		g.Theta = common - p.Rate*p.Strike*rDisc*NormCDF(d2) + p.Dividend*p.Spot*qDisc*NormCDF(d1)
		g.Rho = p.Strike * p.Expiry * rDisc * NormCDF(d2)
	} else {
		g.Delta = qDisc * (NormCDF(d1) - 1)
		g.Theta = common + p.Rate*p.Strike*rDisc*NormCDF(-d2) - p.Dividend*p.Spot*qDisc*NormCDF(-d1)
		g.Rho = -p.Strike * p.Expiry * rDisc * NormCDF(-d2)
	}

	return g, nil
}

// Vega returns the analytic sensitivity of the option price to volatility.
// Identical for calls and puts.
func Vega(p Params) (float64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	if p.Expiry == 0 || p.Vol == 0 {
		return 0, nil
	}
	d1, _ := d1d2(p)
	return p.Spot * math.Exp(-p.Dividend*p.Expiry) * NormPDF(d1) * math.Sqrt(p.Expiry), nil
}

func intrinsic(typ OptionType, spot, strike float64) float64 {
	if typ == Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}
