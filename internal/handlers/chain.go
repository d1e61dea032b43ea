package handlers

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/kmaier/quantlab/internal/config"
	"github.com/kmaier/quantlab/internal/logger"
	"github.com/kmaier/quantlab/internal/models"
	"github.com/kmaier/quantlab/internal/quant/bs"
	"github.com/kmaier/quantlab/internal/quant/iv"
	"github.com/kmaier/quantlab/internal/utils"
)

// AnalyzeChain fetches the option chain for one underlying, backs out the
// implied volatility of every contract, and returns the enriched rows.
// Append ?format=csv for a CSV download instead of JSON.
func (h *Handlers) AnalyzeChain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.ChainAnalysisRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "symbol is required")
		return
	}

	optionType, err := strategyOptionType(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	expDate := req.ExpirationDate
	if expDate == "" {
		expDate = utils.CalculateNextOptionsExpiration()
	}
	expiration, err := time.Parse("2006-01-02", expDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("expiration_date must be YYYY-MM-DD: %v", err))
		return
	}

	runID := ""
	if h.journal != nil {
		runID = h.journal.Begin(req.Symbol, expDate, req.Strategy)
		defer h.journal.Finish(runID)
	}

	ctx := r.Context()

	spots, err := h.provider.GetSpotPrices(ctx, []string{req.Symbol})
	if err != nil {
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
		return
	}
	spotQuote, ok := spots.Data[req.Symbol]
	if !ok || spotQuote.Price <= 0 {
		writeError(w, http.StatusNotFound, "no_spot_price",
			fmt.Sprintf("no spot price available for %s", req.Symbol))
		return
	}
	spot := spotQuote.Price

	chain, err := h.provider.GetOptionChain(ctx, req.Symbol, expiration, optionType)
	if err != nil {
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
		return
	}
	if len(chain.Data) == 0 {
		writeError(w, http.StatusNotFound, "empty_chain",
			fmt.Sprintf("no contracts for %s expiring %s", req.Symbol, expDate))
		return
	}

	if h.journal != nil {
		h.journal.Append(runID, "chain_fetched", map[string]interface{}{
			"symbol":    req.Symbol,
			"contracts": len(chain.Data),
			"spot":      spot,
		})
	}

	rate := h.resolveRate(req.Rate)
	company, sector := "", ""
	if h.universe != nil {
		company, sector = h.universe.Lookup(req.Symbol)
	}

	rows := make([]models.ChainRow, 0, len(chain.Data))
	solved := 0
	for _, contract := range chain.Data {
		marketPrice := contract.MidPrice()
		if marketPrice <= 0 {
			continue
		}

		daysToExp := int(math.Ceil(contract.ExpirationDate.Sub(time.Now()).Hours() / 24))
		expiry := contract.ExpirationDate.Sub(time.Now()).Hours() / 24 / 365
		if expiry <= 0 {
			continue
		}

		typ, err := parseOptionType(contract.OptionType)
		if err != nil {
			continue
		}

		params := bs.Params{
			Spot:     spot,
			Strike:   contract.Strike,
			Rate:     rate,
			Dividend: h.cfg.DefaultDividend,
			Expiry:   expiry,
		}

		result, err := h.solveIV(typ, params, marketPrice)
		if err != nil {
			logger.Debug.Printf("🔍 IV solve failed for %s @ %.2f: %v", contract.Symbol, contract.Strike, err)
			continue
		}
		if result.Converged {
			solved++
		}

		params.Vol = result.Vol
		modelPrice, err := bs.Price(typ, params)
		if err != nil {
			continue
		}
		greeks, err := bs.AllGreeks(typ, params)
		if err != nil {
			continue
		}

		rows = append(rows, models.ChainRow{
			Symbol:       contract.Symbol,
			Underlying:   req.Symbol,
			Company:      company,
			Sector:       sector,
			OptionType:   contract.OptionType,
			Strike:       contract.Strike,
			SpotPrice:    spot,
			MarketPrice:  marketPrice,
			ModelPrice:   modelPrice,
			ImpliedVol:   result.Vol,
			Delta:        greeks.Delta,
			Gamma:        greeks.Gamma,
			Theta:        greeks.Theta,
			Vega:         greeks.Vega,
			Volume:       contract.Volume,
			OpenInterest: contract.OpenInterest,
			Expiration:   contract.ExpirationDate.Format("2006-01-02"),
			DaysToExp:    daysToExp,
		})
		if h.cfg.MaxResults > 0 && len(rows) >= h.cfg.MaxResults {
			break
		}
	}

	if h.journal != nil {
		h.journal.Append(runID, "analysis_complete", map[string]interface{}{
			"rows":   len(rows),
			"solved": solved,
		})
	}

	resp := models.ChainAnalysisResponse{
		Success: true,
		RunID:   runID,
		Rows:    rows,
		Meta: models.ResponseMetadata{
			Symbol:          req.Symbol,
			ExpirationDate:  expDate,
			Strategy:        req.Strategy,
			Timestamp:       time.Now().Format(time.RFC3339),
			ProcessingTime:  time.Since(start).Seconds(),
			RateUsed:        rate,
			ContractCount:   len(rows),
			SolvedContracts: solved,
			SolverMethod:    h.cfg.Solver.Method,
		},
	}

	if r.URL.Query().Get("format") == "csv" {
		h.writeChainCSV(w, req.Symbol, expDate, rows)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// solveIV dispatches to the configured root finder. Chain runs use the
// analytic-vega Newton because the derivative comes for free per contract.
func (h *Handlers) solveIV(typ bs.OptionType, params bs.Params, marketPrice float64) (iv.Result, error) {
	if h.cfg.Solver.Method == "bisection" {
		return iv.BisectionWith(typ, params, marketPrice, h.solverSettings())
	}
	return iv.NewtonVegaWith(typ, params, marketPrice, h.solverSettings())
}

// solverSettings maps the configured solver budget onto the root finders
func (h *Handlers) solverSettings() iv.Settings {
	return iv.Settings{
		MaxIterations: h.cfg.Solver.MaxIterations,
		Tolerance:     h.cfg.Solver.Tolerance,
	}
}

// writeChainCSV streams the analyzed rows as a CSV attachment
func (h *Handlers) writeChainCSV(w http.ResponseWriter, symbol, expDate string, rows []models.ChainRow) {
	filename := config.FormatExportFilename(
		h.cfg.CSV.FilenameFormat, symbol, expDate, time.Now().Format("15-04-05"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := gocsv.Marshal(rows, w); err != nil {
		logger.Error.Printf("❌ CSV export failed: %v", err)
	}
}

// strategyOptionType maps the request strategy onto the provider filter
func strategyOptionType(strategy string) (string, error) {
	switch strategy {
	case "calls":
		return "call", nil
	case "puts":
		return "put", nil
	case "", "all":
		return "", nil
	}
	return "", fmt.Errorf("strategy must be calls, puts, or all, got %q", strategy)
}

// Expirations lists the next monthly expiration dates (third Fridays)
func (h *Handlers) Expirations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"next":        utils.CalculateNextOptionsExpiration(),
		"expirations": utils.NextMonthlyExpirations(6),
	})
}

// TestConnection verifies vendor credentials and reports provider stats
func (h *Handlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	provider := h.provider.GetProvider()
	if err := provider.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"success":  false,
			"provider": provider.GetProviderName(),
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"provider": provider.GetProviderName(),
		"stats":    provider.GetPerformanceStats(),
	})
}
