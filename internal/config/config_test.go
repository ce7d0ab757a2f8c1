package config

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidateAppliesDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.DatabaseURL != DefaultDatabaseURL || cfg.LogLevel != DefaultLogLevel || cfg.LogOutput != DefaultLogOutput {
		test.Fatalf("unexpected string defaults: %+v", cfg)
	}
	if cfg.ReferenceFloor != DefaultReferenceFloor || cfg.MaxGroups != DefaultMaxGroups || cfg.MaxRidersPerGroup != DefaultMaxRidersPerGroup {
		test.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
	if cfg.PasswordCost != bcrypt.DefaultCost {
		test.Fatalf("expected default bcrypt cost, got %d", cfg.PasswordCost)
	}
	if cfg.PaymentApprovalPercent != 0 {
		test.Fatalf("expected explicit approval percent to be preserved, got %d", cfg.PaymentApprovalPercent)
	}
}

func TestValidateRejectsInvalidValues(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "negative floor", cfg: Config{ReferenceFloor: -1}},
		{name: "unknown log level", cfg: Config{LogLevel: "verbose"}},
		{name: "approval above 100", cfg: Config{PaymentApprovalPercent: 101}},
		{name: "negative approval", cfg: Config{PaymentApprovalPercent: -5}},
		{name: "negative groups", cfg: Config{MaxGroups: -1}},
		{name: "negative riders", cfg: Config{MaxRidersPerGroup: -2}},
		{name: "password cost too low", cfg: Config{PasswordCost: 1}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if err := testCase.cfg.Validate(); err == nil {
				test.Fatalf("expected validation error for %+v", testCase.cfg)
			}
		})
	}
}

func TestValidateNormalizesLogLevel(test *testing.T) {
	test.Parallel()
	cfg := Config{LogLevel: " WARN "}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.LogLevel != "warn" {
		test.Fatalf("expected normalized level, got %q", cfg.LogLevel)
	}
}

func TestLoadEnvFile(test *testing.T) {
	path := filepath.Join(test.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SEATLEDGER_TEST_LOAD_ENV=loaded\n"), 0o644); err != nil {
		test.Fatalf("write env file: %v", err)
	}
	test.Cleanup(func() { _ = os.Unsetenv("SEATLEDGER_TEST_LOAD_ENV") })
	if err := LoadEnvFile(path); err != nil {
		test.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("SEATLEDGER_TEST_LOAD_ENV"); got != "loaded" {
		test.Fatalf("expected variable from env file, got %q", got)
	}
	if err := LoadEnvFile(filepath.Join(test.TempDir(), "missing.env")); err != nil {
		test.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}
