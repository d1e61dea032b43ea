package sde

import (
	"fmt"
	"math"
)

// Vasicek is the mean-reverting short-rate model
// dr = Kappa*(Theta - r)dt + Sigma dW.
type Vasicek struct {
	Kappa float64 // mean-reversion speed
	Theta float64 // long-run mean level
	Sigma float64 // rate volatility
}

func (v Vasicek) validate() error {
	if v.Kappa <= 0 {
		return fmt.Errorf("kappa must be positive, got %v", v.Kappa)
	}
	if v.Sigma < 0 {
		return fmt.Errorf("sigma must be non-negative, got %v", v.Sigma)
	}
	return nil
}

// Model exposes Vasicek as a generic SDE for the Euler scheme.
func (v Vasicek) Model() Model {
	return Model{
		Drift:     func(r, _ float64) float64 { return v.Kappa * (v.Theta - r) },
		Diffusion: func(_, _ float64) float64 { return v.Sigma },
	}
}

// Simulate runs the Euler-Maruyama discretization of the short rate.
func (v Vasicek) Simulate(spec EulerSpec) ([]float64, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	return Euler(v.Model(), spec)
}

// SimulatePaths runs n discretized short-rate paths.
func (v Vasicek) SimulatePaths(spec EulerSpec, n int) ([][]float64, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	return EulerPaths(v.Model(), spec, n)
}

// ConditionalMean is E[r_t | r_0], which decays from r0 toward theta.
func (v Vasicek) ConditionalMean(r0, t float64) float64 {
	e := math.Exp(-v.Kappa * t)
	return r0*e + v.Theta*(1-e)
}

// ConditionalVariance is Var[r_t | r_0].
func (v Vasicek) ConditionalVariance(t float64) float64 {
	return v.Sigma * v.Sigma / (2 * v.Kappa) * (1 - math.Exp(-2*v.Kappa*t))
}

// BondPrice returns the closed-form price at time 0 of a zero-coupon bond
// maturing at T, given the current short rate r0:
// P = A(T) * exp(-B(T) * r0).
func (v Vasicek) BondPrice(r0, maturity float64) (float64, error) {
	if err := v.validate(); err != nil {
		return 0, err
	}
	if maturity <= 0 {
		return 0, fmt.Errorf("maturity must be positive, got %v", maturity)
	}

	b := (1 - math.Exp(-v.Kappa*maturity)) / v.Kappa
	a := math.Exp((v.Theta-v.Sigma*v.Sigma/(2*v.Kappa*v.Kappa))*(b-maturity) -
		v.Sigma*v.Sigma*b*b/(4*v.Kappa))
	return a * math.Exp(-b*r0), nil
}

// YieldCurve returns continuously compounded zero yields for the given
// maturities, derived from the closed-form bond prices.
func (v Vasicek) YieldCurve(r0 float64, maturities []float64) ([]float64, error) {
	yields := make([]float64, len(maturities))
	for i, m := range maturities {
		p, err := v.BondPrice(r0, m)
		if err != nil {
			return nil, err
		}
		yields[i] = -math.Log(p) / m
	}
	return yields, nil
}
