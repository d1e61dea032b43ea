package handlers

import (
	"net/http"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kmaier/quantlab/internal/logger"
	"github.com/kmaier/quantlab/internal/models"
	"github.com/kmaier/quantlab/internal/quant/bs"
	"github.com/kmaier/quantlab/internal/quant/iv"
	"github.com/kmaier/quantlab/internal/quant/mc"
	"github.com/kmaier/quantlab/internal/quant/pde"
	"github.com/kmaier/quantlab/internal/quant/sde"
	"github.com/kmaier/quantlab/internal/quant/tree"
	"github.com/kmaier/quantlab/internal/quant/vol"
)

// Price values a European option in closed form and returns the Greeks
func (h *Handlers) Price(w http.ResponseWriter, r *http.Request) {
	var req models.PriceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rate := h.resolveRate(req.Rate)
	params := bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Expiry:   req.Expiry,
	}

	price, err := bs.Price(typ, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}
	greeks, err := bs.AllGreeks(typ, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.PriceResponse{
		Price:     price,
		Delta:     greeks.Delta,
		Gamma:     greeks.Gamma,
		Theta:     greeks.Theta,
		Vega:      greeks.Vega,
		Rho:       greeks.Rho,
		RateUsed:  rate,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Greeks returns the sensitivities without the valuation
func (h *Handlers) Greeks(w http.ResponseWriter, r *http.Request) {
	var req models.PriceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	greeks, err := bs.AllGreeks(typ, bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     h.resolveRate(req.Rate),
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Expiry:   req.Expiry,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, greeks)
}

// ImpliedVol backs out the volatility that reprices an observed option price
func (h *Handlers) ImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req models.ImpliedVolRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	method := strings.ToLower(strings.TrimSpace(req.Method))
	if method == "" {
		method = h.cfg.Solver.Method
	}

	rate := h.resolveRate(req.Rate)
	params := bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     rate,
		Dividend: req.Dividend,
		Expiry:   req.Expiry,
	}

	var result iv.Result
	switch method {
	case "newton":
		result, err = iv.NewtonWith(typ, params, req.MarketPrice, h.solverSettings())
	case "bisection":
		result, err = iv.BisectionWith(typ, params, req.MarketPrice, h.solverSettings())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "method must be newton or bisection")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	if !result.Converged {
		logger.Warn.Printf("⚠️ IV solver (%s) exhausted budget: best estimate %.4f after %d iterations",
			result.Method, result.Vol, result.Iterations)
	}

	writeJSON(w, http.StatusOK, models.ImpliedVolResponse{
		ImpliedVol: result.Vol,
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Method:     result.Method,
		RateUsed:   rate,
	})
}

// Binomial prices on a CRR lattice, American or European
func (h *Handlers) Binomial(w http.ResponseWriter, r *http.Request) {
	var req models.BinomialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	style := tree.ExerciseStyle(strings.ToLower(strings.TrimSpace(req.Style)))
	if style == "" {
		style = tree.European
	}
	if style != tree.European && style != tree.American {
		writeError(w, http.StatusBadRequest, "bad_request", "style must be european or american")
		return
	}

	steps := req.Steps
	if steps == 0 {
		steps = 500
	}

	rate := h.resolveRate(req.Rate)
	params := bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Expiry:   req.Expiry,
	}

	price, err := tree.Price(typ, style, params, steps)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	resp := models.BinomialResponse{
		Price:    price,
		Steps:    steps,
		RateUsed: rate,
	}
	if style == tree.European {
		if closed, err := bs.Price(typ, params); err == nil {
			resp.ClosedFormPrice = &closed
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MonteCarlo prices a European option by simulation and reports the
// sampling error next to the closed form
func (h *Handlers) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req models.MonteCarloRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	paths := req.Paths
	if paths == 0 {
		paths = h.cfg.Simulation.DefaultPaths
	}
	seed := req.Seed
	if seed == 0 {
		seed = h.cfg.Simulation.Seed
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	rate := h.resolveRate(req.Rate)
	params := bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Expiry:   req.Expiry,
	}

	result, err := mc.PriceEuropean(typ, params, paths, seed)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	closed, err := bs.Price(typ, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.MonteCarloResponse{
		Price:           result.Price,
		StdError:        result.StdError,
		Paths:           result.Paths,
		Seed:            seed,
		ClosedFormPrice: closed,
		RateUsed:        rate,
	})
}

// maxResponsePaths and maxResponseSteps bound the simulated grid returned
// over the wire; the response holds paths*(steps+1) values
const (
	maxResponsePaths = 1000
	maxResponseSteps = 10000
)

// GBMPaths simulates geometric Brownian motion paths
func (h *Handlers) GBMPaths(w http.ResponseWriter, r *http.Request) {
	var req models.GBMPathsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	steps := req.Steps
	if steps == 0 {
		steps = h.cfg.Simulation.DefaultSteps
	}
	if steps > maxResponseSteps {
		writeError(w, http.StatusBadRequest, "bad_request", "at most 10000 steps per request")
		return
	}
	paths := req.Paths
	if paths == 0 {
		paths = 10
	}
	if paths > maxResponsePaths {
		writeError(w, http.StatusBadRequest, "bad_request", "at most 1000 paths per request")
		return
	}
	seed := req.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	out, err := mc.Paths(mc.PathSpec{
		Spot:    req.Spot,
		Drift:   req.Drift,
		Vol:     req.Vol,
		Horizon: req.Horizon,
		Steps:   steps,
		Seed:    seed,
	}, paths)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.GBMPathsResponse{
		Paths: out,
		Steps: steps,
		Seed:  seed,
	})
}

// Vasicek simulates the short rate and prices the zero-coupon curve
func (h *Handlers) Vasicek(w http.ResponseWriter, r *http.Request) {
	var req models.VasicekRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	model := sde.Vasicek{Kappa: req.Kappa, Theta: req.Theta, Sigma: req.Sigma}

	steps := req.Steps
	if steps == 0 {
		steps = h.cfg.Simulation.DefaultSteps
	}
	if steps > maxResponseSteps {
		writeError(w, http.StatusBadRequest, "bad_request", "at most 10000 steps per request")
		return
	}
	paths := req.Paths
	if paths == 0 {
		paths = 10
	}
	if paths > maxResponsePaths {
		writeError(w, http.StatusBadRequest, "bad_request", "at most 1000 paths per request")
		return
	}
	seed := req.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	out, err := model.SimulatePaths(sde.EulerSpec{
		X0:      req.Rate0,
		Horizon: req.Horizon,
		Steps:   steps,
		Seed:    seed,
	}, paths)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	terminal := make([]float64, len(out))
	for i, path := range out {
		terminal[i] = path[len(path)-1]
	}

	resp := models.VasicekResponse{
		Paths:        out,
		TerminalMean: stat.Mean(terminal, nil),
		ExpectedMean: model.ConditionalMean(req.Rate0, req.Horizon),
		Seed:         seed,
	}

	if len(req.Maturities) > 0 {
		yields, err := model.YieldCurve(req.Rate0, req.Maturities)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
			return
		}
		resp.YieldMaturities = req.Maturities
		resp.Yields = yields
	}

	writeJSON(w, http.StatusOK, resp)
}

// PDE values a European option on a finite-difference grid
func (h *Handlers) PDE(w http.ResponseWriter, r *http.Request) {
	var req models.PDERequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	typ, err := parseOptionType(req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	scheme := pde.Scheme(strings.ToLower(strings.TrimSpace(req.Scheme)))
	if scheme == "" {
		scheme = pde.Scheme(h.cfg.Grid.Scheme)
	}

	grid := pde.GridSpec{
		SpotSteps: req.SpotSteps,
		TimeSteps: req.TimeSteps,
	}
	if grid.SpotSteps == 0 {
		grid.SpotSteps = h.cfg.Grid.SpotSteps
	}
	if grid.TimeSteps == 0 {
		grid.TimeSteps = h.cfg.Grid.TimeSteps
	}

	rate := h.resolveRate(req.Rate)
	params := bs.Params{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Rate:     rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Expiry:   req.Expiry,
	}

	result, err := pde.Solve(typ, scheme, params, grid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	closed, err := bs.Price(typ, params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	absErr := result.Price - closed
	if absErr < 0 {
		absErr = -absErr
	}

	writeJSON(w, http.StatusOK, models.PDEResponse{
		Price:           result.Price,
		ClosedFormPrice: closed,
		AbsError:        absErr,
		Scheme:          string(scheme),
		SpotSteps:       grid.SpotSteps,
		TimeSteps:       grid.TimeSteps,
		RateUsed:        rate,
	})
}

// RealizedVol estimates historical volatility from a supplied series or
// from the quote provider
func (h *Handlers) RealizedVol(w http.ResponseWriter, r *http.Request) {
	var req models.RealizedVolRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	prices := req.Prices
	source := "request"
	if len(prices) == 0 {
		if req.Symbol == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "either prices or symbol is required")
			return
		}
		if h.history == nil {
			writeError(w, http.StatusServiceUnavailable, "no_history_source", "historical data source not configured")
			return
		}
		fetched, err := h.history.DailyCloses(req.Symbol, req.Years)
		if err != nil {
			writeError(w, http.StatusBadGateway, "history_fetch_failed", err.Error())
			return
		}
		prices = fetched
		source = "provider"
	}

	realized, err := vol.Realized(prices)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
		return
	}

	resp := models.RealizedVolResponse{
		RealizedVol:  realized,
		Observations: len(prices),
		Source:       source,
	}

	if req.Window > 0 {
		rolling, err := vol.Rolling(prices, req.Window)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_inputs", err.Error())
			return
		}
		resp.Rolling = rolling
	}

	writeJSON(w, http.StatusOK, resp)
}
