// Package config loads the engine's runtime configuration from the
// environment, with an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/package-engine/rates"
	"github.com/warp/package-engine/tctc"
)

type Config struct {
	// Database
	DBPath string

	// Rate tables: optional JSON override file. Empty means the built-in
	// statutory defaults.
	RateTablesPath string

	// Composition bands: optional JSON override file.
	BandsPath string

	// Logging
	LogLevel    string
	Environment string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBPath:         getEnv("PACKAGE_DB_PATH", "./data/packages.db"),
		RateTablesPath: getEnv("PACKAGE_RATE_TABLES", ""),
		BandsPath:      getEnv("PACKAGE_BANDS", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration. The rate-table file itself is parsed
// and validated later by Tables(); here we only check reachability.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("cannot create database directory %q: %w", dir, err)
			}
		}
	}
	if c.RateTablesPath != "" {
		if _, err := os.Stat(c.RateTablesPath); err != nil {
			return fmt.Errorf("rate tables file %q: %w", c.RateTablesPath, err)
		}
	}
	if c.BandsPath != "" {
		if _, err := os.Stat(c.BandsPath); err != nil {
			return fmt.Errorf("bands file %q: %w", c.BandsPath, err)
		}
	}
	return nil
}

// Tables returns the rate tables to run with: the configured override file
// when set, the statutory defaults otherwise. A malformed override is an
// error, never a silent fallback.
func (c *Config) Tables() (rates.Tables, error) {
	if c.RateTablesPath == "" {
		return rates.Default(), nil
	}
	return rates.LoadTables(c.RateTablesPath)
}

// bandsJSON mirrors tctc.Bands for file overrides. All values are percent
// of the package limit.
type bandsJSON struct {
	BaseMin  float64 `json:"base_min"`
	BaseMax  float64 `json:"base_max"`
	CarMin   float64 `json:"car_min"`
	BonusMin float64 `json:"bonus_min"`
	BonusMax float64 `json:"bonus_max"`
}

// Bands returns the composition bands: the configured override file when
// set, the policy defaults otherwise.
func (c *Config) Bands() (tctc.Bands, error) {
	if c.BandsPath == "" {
		return tctc.DefaultBands(), nil
	}

	data, err := os.ReadFile(c.BandsPath)
	if err != nil {
		return tctc.Bands{}, fmt.Errorf("read bands: %w", err)
	}
	var doc bandsJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return tctc.Bands{}, fmt.Errorf("parse bands: %w", err)
	}
	if doc.BaseMin < 0 || doc.BaseMax > 100 || doc.BaseMin > doc.BaseMax ||
		doc.BonusMin > doc.BonusMax {
		return tctc.Bands{}, fmt.Errorf("invalid bands in %q", c.BandsPath)
	}

	return tctc.Bands{
		BaseMin:  decimal.NewFromFloat(doc.BaseMin),
		BaseMax:  decimal.NewFromFloat(doc.BaseMax),
		CarMin:   decimal.NewFromFloat(doc.CarMin),
		BonusMin: decimal.NewFromFloat(doc.BonusMin),
		BonusMax: decimal.NewFromFloat(doc.BonusMax),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
