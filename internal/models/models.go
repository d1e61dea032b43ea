package models

// PriceRequest asks for a closed-form Black-Scholes valuation
type PriceRequest struct {
	OptionType string   `json:"option_type"` // "call" or "put"
	Spot       float64  `json:"spot"`
	Strike     float64  `json:"strike"`
	Rate       *float64 `json:"rate,omitempty"` // nil = use Treasury rate
	Dividend   float64  `json:"dividend"`
	Vol        float64  `json:"volatility"`
	Expiry     float64  `json:"expiry_years"`
}

// PriceResponse carries the valuation plus the Greeks
type PriceResponse struct {
	Price     float64 `json:"price"`
	Delta     float64 `json:"delta"`
	Gamma     float64 `json:"gamma"`
	Theta     float64 `json:"theta"`
	Vega      float64 `json:"vega"`
	Rho       float64 `json:"rho"`
	RateUsed  float64 `json:"rate_used"`
	Timestamp string  `json:"timestamp"`
}

// ImpliedVolRequest asks for the vol that reprices an observed option price
type ImpliedVolRequest struct {
	OptionType  string   `json:"option_type"`
	Spot        float64  `json:"spot"`
	Strike      float64  `json:"strike"`
	Rate        *float64 `json:"rate,omitempty"`
	Dividend    float64  `json:"dividend"`
	Expiry      float64  `json:"expiry_years"`
	MarketPrice float64  `json:"market_price"`
	Method      string   `json:"method,omitempty"` // "newton" or "bisection"; empty = config default
}

// ImpliedVolResponse reports the estimate and solver diagnostics
type ImpliedVolResponse struct {
	ImpliedVol float64 `json:"implied_volatility"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
	Method     string  `json:"method"`
	RateUsed   float64 `json:"rate_used"`
}

// BinomialRequest prices on a CRR lattice
type BinomialRequest struct {
	OptionType string   `json:"option_type"`
	Style      string   `json:"style"` // "european" or "american"
	Spot       float64  `json:"spot"`
	Strike     float64  `json:"strike"`
	Rate       *float64 `json:"rate,omitempty"`
	Dividend   float64  `json:"dividend"`
	Vol        float64  `json:"volatility"`
	Expiry     float64  `json:"expiry_years"`
	Steps      int      `json:"steps"`
}

// BinomialResponse includes the closed-form value for comparison when the
// option is European
type BinomialResponse struct {
	Price           float64  `json:"price"`
	Steps           int      `json:"steps"`
	ClosedFormPrice *float64 `json:"closed_form_price,omitempty"`
	RateUsed        float64  `json:"rate_used"`
}

// MonteCarloRequest prices a European option by simulation
type MonteCarloRequest struct {
	OptionType string   `json:"option_type"`
	Spot       float64  `json:"spot"`
	Strike     float64  `json:"strike"`
	Rate       *float64 `json:"rate,omitempty"`
	Dividend   float64  `json:"dividend"`
	Vol        float64  `json:"volatility"`
	Expiry     float64  `json:"expiry_years"`
	Paths      int      `json:"paths,omitempty"` // 0 = config default
	Seed       uint64   `json:"seed,omitempty"`
}

// MonteCarloResponse reports the estimate with its sampling error
type MonteCarloResponse struct {
	Price           float64 `json:"price"`
	StdError        float64 `json:"std_error"`
	Paths           int     `json:"paths"`
	Seed            uint64  `json:"seed"`
	ClosedFormPrice float64 `json:"closed_form_price"`
	RateUsed        float64 `json:"rate_used"`
}

// GBMPathsRequest simulates price paths for display or downstream analysis
type GBMPathsRequest struct {
	Spot    float64 `json:"spot"`
	Drift   float64 `json:"drift"`
	Vol     float64 `json:"volatility"`
	Horizon float64 `json:"horizon_years"`
	Steps   int     `json:"steps,omitempty"`
	Paths   int     `json:"paths,omitempty"`
	Seed    uint64  `json:"seed,omitempty"`
}

// GBMPathsResponse returns the simulated paths row-major
type GBMPathsResponse struct {
	Paths [][]float64 `json:"paths"`
	Steps int         `json:"steps"`
	Seed  uint64      `json:"seed"`
}

// VasicekRequest simulates the short rate and prices zero-coupon bonds
type VasicekRequest struct {
	Rate0      float64   `json:"initial_rate"`
	Kappa      float64   `json:"kappa"`
	Theta      float64   `json:"theta"`
	Sigma      float64   `json:"sigma"`
	Horizon    float64   `json:"horizon_years"`
	Steps      int       `json:"steps,omitempty"`
	Paths      int       `json:"paths,omitempty"`
	Seed       uint64    `json:"seed,omitempty"`
	Maturities []float64 `json:"maturities,omitempty"` // bond maturities for the yield curve
}

// VasicekResponse returns sample paths plus the closed-form curve
type VasicekResponse struct {
	Paths           [][]float64 `json:"paths"`
	TerminalMean    float64     `json:"terminal_mean"`
	ExpectedMean    float64     `json:"expected_mean"`
	YieldMaturities []float64   `json:"yield_maturities,omitempty"`
	Yields          []float64   `json:"yields,omitempty"`
	Seed            uint64      `json:"seed"`
}

// PDERequest solves the pricing PDE on a finite-difference grid
type PDERequest struct {
	OptionType string   `json:"option_type"`
	Scheme     string   `json:"scheme,omitempty"` // empty = config default
	Spot       float64  `json:"spot"`
	Strike     float64  `json:"strike"`
	Rate       *float64 `json:"rate,omitempty"`
	Dividend   float64  `json:"dividend"`
	Vol        float64  `json:"volatility"`
	Expiry     float64  `json:"expiry_years"`
	SpotSteps  int      `json:"spot_steps,omitempty"`
	TimeSteps  int      `json:"time_steps,omitempty"`
}

// PDEResponse reports the grid value against the closed form
type PDEResponse struct {
	Price           float64 `json:"price"`
	ClosedFormPrice float64 `json:"closed_form_price"`
	AbsError        float64 `json:"abs_error"`
	Scheme          string  `json:"scheme"`
	SpotSteps       int     `json:"spot_steps"`
	TimeSteps       int     `json:"time_steps"`
	RateUsed        float64 `json:"rate_used"`
}

// RealizedVolRequest estimates historical volatility. Either Prices or
// Symbol must be set; a symbol pulls daily closes from the quote provider.
type RealizedVolRequest struct {
	Prices []float64 `json:"prices,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Years  int       `json:"years,omitempty"`  // lookback when fetching by symbol
	Window int       `json:"window,omitempty"` // 0 = single full-sample estimate
}

// RealizedVolResponse reports the annualized estimate
type RealizedVolResponse struct {
	RealizedVol  float64   `json:"realized_vol"`
	Observations int       `json:"observations"`
	Rolling      []float64 `json:"rolling,omitempty"`
	Source       string    `json:"source"` // "request" or "provider"
}

// ChainAnalysisRequest fetches an option chain and reprices every contract
type ChainAnalysisRequest struct {
	Symbol         string   `json:"symbol"`
	ExpirationDate string   `json:"expiration_date"` // YYYY-MM-DD; empty = next third Friday
	Strategy       string   `json:"strategy"`        // "calls" or "puts"
	Rate           *float64 `json:"rate,omitempty"`
}

// ChainRow is one analyzed contract
type ChainRow struct {
	Symbol       string  `json:"symbol" csv:"symbol"`
	Underlying   string  `json:"underlying" csv:"underlying"`
	Company      string  `json:"company" csv:"company"`
	Sector       string  `json:"sector" csv:"sector"`
	OptionType   string  `json:"option_type" csv:"option_type"`
	Strike       float64 `json:"strike" csv:"strike"`
	SpotPrice    float64 `json:"spot_price" csv:"spot_price"`
	MarketPrice  float64 `json:"market_price" csv:"market_price"`
	ModelPrice   float64 `json:"model_price" csv:"model_price"`
	ImpliedVol   float64 `json:"implied_volatility" csv:"implied_volatility"`
	Delta        float64 `json:"delta" csv:"delta"`
	Gamma        float64 `json:"gamma" csv:"gamma"`
	Theta        float64 `json:"theta" csv:"theta"`
	Vega         float64 `json:"vega" csv:"vega"`
	Volume       int64   `json:"volume" csv:"volume"`
	OpenInterest int64   `json:"open_interest" csv:"open_interest"`
	Expiration   string  `json:"expiration" csv:"expiration"`
	DaysToExp    int     `json:"days_to_expiration" csv:"days_to_expiration"`
}

// ChainAnalysisResponse is the full analyzed chain with run metadata
type ChainAnalysisResponse struct {
	Success bool             `json:"success"`
	RunID   string           `json:"run_id"`
	Rows    []ChainRow       `json:"rows"`
	Meta    ResponseMetadata `json:"meta"`
}

// ResponseMetadata carries run statistics common to analysis responses
type ResponseMetadata struct {
	Symbol          string  `json:"symbol"`
	ExpirationDate  string  `json:"expiration_date"`
	Strategy        string  `json:"strategy"`
	Timestamp       string  `json:"timestamp"`
	ProcessingTime  float64 `json:"processing_time"`
	RateUsed        float64 `json:"rate_used"`
	ContractCount   int     `json:"contract_count"`
	SolvedContracts int     `json:"solved_contracts"`
	SolverMethod    string  `json:"solver_method"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
