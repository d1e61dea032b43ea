package config

import (
	"os"
	"testing"
)

func TestDefaultSolverMethod(t *testing.T) {
	os.Unsetenv("SOLVER_METHOD")

	cfg := Load()

	if cfg.Solver.Method != "newton" {
		t.Errorf("Expected default solver method newton, got %s", cfg.Solver.Method)
	}
	if cfg.Solver.MaxIterations != 100 {
		t.Errorf("Expected default max iterations 100, got %d", cfg.Solver.MaxIterations)
	}
}

func TestSolverMethodEnvOverride(t *testing.T) {
	os.Setenv("SOLVER_METHOD", "bisection")
	defer os.Unsetenv("SOLVER_METHOD")

	cfg := Load()

	if cfg.Solver.Method != "bisection" {
		t.Errorf("Expected solver method bisection from env, got %s", cfg.Solver.Method)
	}
}

func TestInvalidSolverMethodFallsBack(t *testing.T) {
	os.Setenv("SOLVER_METHOD", "secant")
	defer os.Unsetenv("SOLVER_METHOD")

	cfg := Load()

	if cfg.Solver.Method != "newton" {
		t.Errorf("Expected fallback to newton for unknown method, got %s", cfg.Solver.Method)
	}
}

func TestGridDefaults(t *testing.T) {
	os.Unsetenv("GRID_SCHEME")

	cfg := Load()

	if cfg.Grid.Scheme != "crank-nicolson" {
		t.Errorf("Expected default scheme crank-nicolson, got %s", cfg.Grid.Scheme)
	}
	if cfg.Grid.SpotSteps <= 0 || cfg.Grid.TimeSteps <= 0 {
		t.Errorf("Expected positive grid defaults, got %d x %d", cfg.Grid.SpotSteps, cfg.Grid.TimeSteps)
	}
}

func TestDefaultRateEnvOverride(t *testing.T) {
	os.Setenv("DEFAULT_RATE", "0.037")
	defer os.Unsetenv("DEFAULT_RATE")

	cfg := Load()

	if cfg.DefaultRate != 0.037 {
		t.Errorf("Expected default rate 0.037 from env, got %v", cfg.DefaultRate)
	}
}

func TestFormatExportFilename(t *testing.T) {
	got := FormatExportFilename("{time}_{symbol}_{exp_date}_chain.csv", "AAPL", "2026-09-18", "10-30-00")
	want := "10-30-00_AAPL_2026-09-18_chain.csv"
	if got != want {
		t.Errorf("filename mismatch: got %s want %s", got, want)
	}
}
