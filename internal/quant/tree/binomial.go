// Package tree prices options on a Cox-Ross-Rubinstein binomial lattice.
package tree

import (
	"fmt"
	"math"

	"github.com/kmaier/quantlab/internal/quant/bs"
)

// ExerciseStyle selects when the holder may exercise.
type ExerciseStyle string

const (
	European ExerciseStyle = "european"
	American ExerciseStyle = "american"
)

// MaxSteps caps the lattice size; beyond a few thousand steps the O(n^2)
// rollback dominates without a meaningful accuracy gain.
const MaxSteps = 10000

// Price values an option on a CRR lattice with the given number of steps.
// The recombining tree uses u = e^{sigma*sqrt(dt)}, d = 1/u and the
// risk-neutral up probability (e^{(r-q)dt} - d) / (u - d).
func Price(typ bs.OptionType, style ExerciseStyle, p bs.Params, steps int) (float64, error) {
	if steps < 1 {
		return 0, fmt.Errorf("steps must be at least 1, got %d", steps)
	}
	if steps > MaxSteps {
		return 0, fmt.Errorf("steps %d exceeds maximum %d", steps, MaxSteps)
	}
	if style != European && style != American {
		return 0, fmt.Errorf("unknown exercise style %q", style)
	}
	if typ != bs.Call && typ != bs.Put {
		return 0, fmt.Errorf("unknown option type %q", typ)
	}
	if p.Spot <= 0 || p.Strike <= 0 {
		return 0, fmt.Errorf("spot and strike must be positive")
	}
	if p.Vol <= 0 || p.Expiry <= 0 {
		return 0, fmt.Errorf("binomial lattice needs positive vol and expiry")
	}

	dt := p.Expiry / float64(steps)
	u := math.Exp(p.Vol * math.Sqrt(dt))
	d := 1 / u
	disc := math.Exp(-p.Rate * dt)
	pUp := (math.Exp((p.Rate-p.Dividend)*dt) - d) / (u - d)

	if pUp < 0 || pUp > 1 {
		return 0, fmt.Errorf("risk-neutral probability %v outside [0,1]; reduce dt or vol", pUp)
	}

	// Terminal payoffs at layer n
	values := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		spot := p.Spot * math.Pow(u, float64(i)) * math.Pow(d, float64(steps-i))
		values[i] = payoff(typ, spot, p.Strike)
	}

	// Roll back one layer at a time
	for n := steps - 1; n >= 0; n-- {
		for i := 0; i <= n; i++ {
			cont := disc * (pUp*values[i+1] + (1-pUp)*values[i])
			if style == American {
				spot := p.Spot * math.Pow(u, float64(i)) * math.Pow(d, float64(n-i))
				cont = math.Max(cont, payoff(typ, spot, p.Strike))
			}
			values[i] = cont
		}
	}

	return values[0], nil
}

func payoff(typ bs.OptionType, spot, strike float64) float64 {
	if typ == bs.Call {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}
