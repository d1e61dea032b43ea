// Package handlers wires the HTTP API to the pricing engines and the market
// data layer.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kmaier/quantlab/internal/audit"
	"github.com/kmaier/quantlab/internal/config"
	"github.com/kmaier/quantlab/internal/history"
	"github.com/kmaier/quantlab/internal/logger"
	"github.com/kmaier/quantlab/internal/models"
	"github.com/kmaier/quantlab/internal/providers"
	"github.com/kmaier/quantlab/internal/quant/bs"
	"github.com/kmaier/quantlab/internal/universe"
)

// RateSource supplies the risk-free rate used when a request does not
// override it
type RateSource interface {
	GetRiskFreeRateWithLastKnown() float64
}

// Handlers carries the dependencies shared by every endpoint
type Handlers struct {
	cfg      *config.Config
	provider *providers.ProviderManager
	rates    RateSource
	universe *universe.Service
	journal  *audit.Journal
	history  history.Fetcher
}

// New builds the handler set
func New(cfg *config.Config, provider *providers.ProviderManager, rates RateSource, uni *universe.Service, journal *audit.Journal, hist history.Fetcher) *Handlers {
	return &Handlers{
		cfg:      cfg,
		provider: provider,
		rates:    rates,
		universe: uni,
		journal:  journal,
		history:  hist,
	}
}

// Register attaches every route to the router
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/price", h.Price).Methods("POST")
	api.HandleFunc("/greeks", h.Greeks).Methods("POST")
	api.HandleFunc("/implied-vol", h.ImpliedVol).Methods("POST")
	api.HandleFunc("/binomial", h.Binomial).Methods("POST")
	api.HandleFunc("/montecarlo", h.MonteCarlo).Methods("POST")
	api.HandleFunc("/gbm-paths", h.GBMPaths).Methods("POST")
	api.HandleFunc("/vasicek", h.Vasicek).Methods("POST")
	api.HandleFunc("/pde", h.PDE).Methods("POST")
	api.HandleFunc("/realized-vol", h.RealizedVol).Methods("POST")
	api.HandleFunc("/chain/analyze", h.AnalyzeChain).Methods("POST")
	api.HandleFunc("/expirations", h.Expirations).Methods("GET")
	api.HandleFunc("/test-connection", h.TestConnection).Methods("GET")
	api.HandleFunc("/health", h.Health).Methods("GET")
}

// writeJSON writes a response body with the standard headers
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError writes the uniform error body
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: code, Message: message})
}

// decode parses a JSON request body, rejecting unknown fields
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// resolveRate picks the request override when present, otherwise the
// Treasury feed, otherwise the configured default
func (h *Handlers) resolveRate(override *float64) float64 {
	if override != nil {
		return *override
	}
	if h.rates != nil {
		return h.rates.GetRiskFreeRateWithLastKnown()
	}
	return h.cfg.DefaultRate
}

// parseOptionType maps the wire value onto the pricing type
func parseOptionType(s string) (bs.OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return bs.Call, nil
	case "put", "p":
		return bs.Put, nil
	}
	return 0, fmt.Errorf("option_type must be call or put, got %q", s)
}

// Health reports process liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
