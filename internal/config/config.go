package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultDatabaseURL                  = "sqlite://seatledger.db"
	DefaultReferenceFloor         int64 = 100000000000
	DefaultLogLevel                     = "info"
	DefaultLogOutput                    = "seatledger.log"
	DefaultPaymentApprovalPercent       = 80
	DefaultMaxGroups                    = 5
	DefaultMaxRidersPerGroup            = 6
	DefaultEnvFile                      = ".env"
)

var supportedLogLevels = []string{"debug", "info", "warn", "error"}

// Config aggregates runtime settings for the reservation console.
type Config struct {
	DatabaseURL            string
	ReferenceFloor         int64
	LogLevel               string
	LogOutput              string
	PaymentApprovalPercent int
	PaymentSeed            int64
	MaxGroups              int
	MaxRidersPerGroup      int
	PasswordCost           int
}

// Validate applies defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, DefaultDatabaseURL)
	cfg.LogLevel = strings.ToLower(defaultIfEmpty(cfg.LogLevel, DefaultLogLevel))
	cfg.LogOutput = defaultIfEmpty(cfg.LogOutput, DefaultLogOutput)
	if cfg.ReferenceFloor == 0 {
		cfg.ReferenceFloor = DefaultReferenceFloor
	}
	if cfg.MaxGroups == 0 {
		cfg.MaxGroups = DefaultMaxGroups
	}
	if cfg.MaxRidersPerGroup == 0 {
		cfg.MaxRidersPerGroup = DefaultMaxRidersPerGroup
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	if cfg.ReferenceFloor < 0 {
		return fmt.Errorf("reference floor must be positive")
	}
	if !isSupportedLogLevel(cfg.LogLevel) {
		return fmt.Errorf("log level %q must be one of %s", cfg.LogLevel, strings.Join(supportedLogLevels, ", "))
	}
	if cfg.PaymentApprovalPercent < 0 || cfg.PaymentApprovalPercent > 100 {
		return fmt.Errorf("payment approval percent must be between 0 and 100")
	}
	if cfg.MaxGroups < 0 {
		return fmt.Errorf("max groups must be positive")
	}
	if cfg.MaxRidersPerGroup < 0 {
		return fmt.Errorf("max riders per group must be positive")
	}
	if cfg.PasswordCost < bcrypt.MinCost || cfg.PasswordCost > bcrypt.MaxCost {
		return fmt.Errorf("password cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// LoadEnvFile exports variables from a dotenv file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(defaultIfEmpty(path, DefaultEnvFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func isSupportedLogLevel(level string) bool {
	for _, supported := range supportedLogLevels {
		if level == supported {
			return true
		}
	}
	return false
}
