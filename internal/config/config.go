package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// SolverConfig holds the implied-volatility solver defaults
type SolverConfig struct {
	Method        string  `yaml:"method"` // newton or bisection
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
}

// SimulationConfig holds Monte Carlo and SDE defaults
type SimulationConfig struct {
	DefaultPaths int    `yaml:"default_paths"`
	DefaultSteps int    `yaml:"default_steps"`
	Seed         uint64 `yaml:"seed"` // 0 = derive per request
}

// GridConfig holds finite-difference grid defaults
type GridConfig struct {
	SpotSteps int    `yaml:"spot_steps"`
	TimeSteps int    `yaml:"time_steps"`
	Scheme    string `yaml:"scheme"` // explicit, implicit, crank-nicolson
}

// CSVConfig represents CSV export configuration
type CSVConfig struct {
	FilenameFormat string `yaml:"filename_format"`
}

// MarketDataConfig represents the options-data provider credentials
type MarketDataConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
}

type Config struct {
	// Server settings
	Port string

	// Options-data provider settings
	MarketDataAPIKey    string
	MarketDataSecretKey string

	// Default application settings
	DefaultSymbols  []string
	DefaultRate     float64 // fallback risk-free rate when the Treasury feed is down
	DefaultDividend float64
	MaxResults      int

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
	// Implied-vol solver settings
	Solver SolverConfig `yaml:"solver"`
	// Simulation settings
	Simulation SimulationConfig `yaml:"simulation"`
	// Finite-difference grid settings
	Grid GridConfig `yaml:"grid"`
	// CSV export settings
	CSV CSVConfig `yaml:"csv"`
}

type YAMLConfig struct {
	MarketData MarketDataConfig `yaml:"market_data"`
	Logging    LoggingConfig    `yaml:"logging"`

	Analysis struct {
		DefaultSymbols  []string `yaml:"default_symbols"`
		DefaultRate     float64  `yaml:"default_rate"`
		DefaultDividend float64  `yaml:"default_dividend"`
		MaxResults      int      `yaml:"max_results"`
	} `yaml:"analysis"`

	Solver     SolverConfig     `yaml:"solver"`
	Simulation SimulationConfig `yaml:"simulation"`
	Grid       GridConfig       `yaml:"grid"`
	CSV        CSVConfig        `yaml:"csv"`
}

func Load() *Config {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		MarketDataAPIKey:    getEnv("MARKET_DATA_API_KEY", ""),
		MarketDataSecretKey: getEnv("MARKET_DATA_SECRET_KEY", ""),
		DefaultSymbols:      getEnvStringSlice("DEFAULT_SYMBOLS", []string{}),
		DefaultRate:         getEnvFloat("DEFAULT_RATE", 0.04),
		DefaultDividend:     getEnvFloat("DEFAULT_DIVIDEND", 0.0),
		MaxResults:          getEnvInt("MAX_RESULTS", 25),
		Logging: LoggingConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", "quantlab.log"),
		},
		Solver: SolverConfig{
			Method:        getEnv("SOLVER_METHOD", "newton"),
			MaxIterations: getEnvInt("SOLVER_MAX_ITERATIONS", 100),
			Tolerance:     getEnvFloat("SOLVER_TOLERANCE", 1e-6),
		},
		Simulation: SimulationConfig{
			DefaultPaths: getEnvInt("SIMULATION_DEFAULT_PATHS", 100000),
			DefaultSteps: getEnvInt("SIMULATION_DEFAULT_STEPS", 252),
			Seed:         uint64(getEnvInt("SIMULATION_SEED", 0)),
		},
		Grid: GridConfig{
			SpotSteps: getEnvInt("GRID_SPOT_STEPS", 200),
			TimeSteps: getEnvInt("GRID_TIME_STEPS", 200),
			Scheme:    getEnv("GRID_SCHEME", "crank-nicolson"),
		},
	}

	// Try to load from YAML file and overlay on the env defaults
	if yamlCfg := loadYAMLConfig(); yamlCfg != nil {
		if yamlCfg.MarketData.APIKey != "" && yamlCfg.MarketData.APIKey != "YOUR_API_KEY" {
			if os.Getenv("MARKET_DATA_API_KEY") == "" {
				os.Setenv("MARKET_DATA_API_KEY", yamlCfg.MarketData.APIKey)
			}
			cfg.MarketDataAPIKey = yamlCfg.MarketData.APIKey
		}
		if yamlCfg.MarketData.SecretKey != "" && yamlCfg.MarketData.SecretKey != "YOUR_SECRET_KEY" {
			if os.Getenv("MARKET_DATA_SECRET_KEY") == "" {
				os.Setenv("MARKET_DATA_SECRET_KEY", yamlCfg.MarketData.SecretKey)
			}
			cfg.MarketDataSecretKey = yamlCfg.MarketData.SecretKey
		}

		if len(yamlCfg.Analysis.DefaultSymbols) > 0 {
			cfg.DefaultSymbols = yamlCfg.Analysis.DefaultSymbols
		}
		if yamlCfg.Analysis.DefaultRate > 0 {
			cfg.DefaultRate = yamlCfg.Analysis.DefaultRate
		}
		if yamlCfg.Analysis.DefaultDividend > 0 {
			cfg.DefaultDividend = yamlCfg.Analysis.DefaultDividend
		}
		if yamlCfg.Analysis.MaxResults > 0 {
			cfg.MaxResults = yamlCfg.Analysis.MaxResults
		}

		// Logging configuration from YAML
		if yamlCfg.Logging.LogLevel != "" {
			cfg.Logging.LogLevel = yamlCfg.Logging.LogLevel
		}
		if yamlCfg.Logging.LogFile != "" {
			cfg.Logging.LogFile = yamlCfg.Logging.LogFile
		}

		// Solver configuration from YAML
		if yamlCfg.Solver.Method != "" {
			cfg.Solver = yamlCfg.Solver
		}
		if yamlCfg.Simulation.DefaultPaths > 0 {
			cfg.Simulation = yamlCfg.Simulation
		}
		if yamlCfg.Grid.SpotSteps > 0 {
			cfg.Grid = yamlCfg.Grid
		}

		// CSV configuration from YAML
		cfg.CSV = yamlCfg.CSV
	}

	// Set default filename format if not specified
	if cfg.CSV.FilenameFormat == "" {
		cfg.CSV.FilenameFormat = "{time}_{symbol}_{exp_date}_chain.csv"
	}

	// Validate solver settings
	if cfg.Solver.MaxIterations <= 0 {
		cfg.Solver.MaxIterations = 100
	}
	if cfg.Solver.Tolerance <= 0 {
		cfg.Solver.Tolerance = 1e-6
	}
	if cfg.Solver.Method != "newton" && cfg.Solver.Method != "bisection" {
		cfg.Solver.Method = "newton"
	}

	return cfg
}

func loadYAMLConfig() *YAMLConfig {
	data, err := os.ReadFile("config.yaml")
	if err != nil {
		// Could not read config.yaml - silently return nil
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		// Could not parse config.yaml - silently return nil
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// FormatExportFilename formats chain-export filenames using the configured template
func FormatExportFilename(format, symbol, expDate, timestamp string) string {
	result := format
	result = strings.ReplaceAll(result, "{symbol}", symbol)
	result = strings.ReplaceAll(result, "{exp_date}", expDate)
	result = strings.ReplaceAll(result, "{time}", timestamp)
	return result
}
