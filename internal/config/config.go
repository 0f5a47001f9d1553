package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Config is the env-derived runtime configuration. Tolerance and the match
// window are explicit here, not ambient constants, so they can be injected
// into the engine (and overridden in tests).
type Config struct {
	DatabaseURL     string
	Port            string
	MatchTolerance  decimal.Decimal
	MatchWindowDays int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	tolerance := decimal.NewFromFloat(0.01)
	if v := os.Getenv("MATCH_TOLERANCE"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MATCH_TOLERANCE %q: %w", v, err)
		}
		tolerance = parsed
	}

	windowDays := 1
	if v := os.Getenv("MATCH_WINDOW_DAYS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MATCH_WINDOW_DAYS %q: %w", v, err)
		}
		windowDays = parsed
	}

	return &Config{
		DatabaseURL:     dbURL,
		Port:            port,
		MatchTolerance:  tolerance,
		MatchWindowDays: windowDays,
	}, nil
}

func InitDB(databaseURL string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return db
}
