package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOperationLoggerLevels(test *testing.T) {
	test.Parallel()
	core, observed := observer.New(zapcore.InfoLevel)
	adapter := NewOperationLogger(zap.New(core))
	reference, err := ledger.NewReference(100000000001)
	if err != nil {
		test.Fatalf("reference: %v", err)
	}

	adapter.LogOperation(context.Background(), ledger.OperationLog{Operation: "book", Reference: reference, Seats: 2, Amount: 11000, Outcome: "Confirmed", Status: "ok"})
	adapter.LogOperation(context.Background(), ledger.OperationLog{Operation: "cancel", Status: "error", Error: ledger.ErrBookingNotFound})
	adapter.LogRecovery(context.Background(), ledger.RecoveryLog{Component: "reference_counter", Action: "load", Error: ledger.ErrCorruptPersistedState})

	entries := observed.AllUntimed()
	if len(entries) != 3 {
		test.Fatalf("expected three entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].LoggerName != "ledger" {
		test.Fatalf("unexpected first entry: %+v", entries[0])
	}
	fields := entries[0].ContextMap()
	if fields["reference"] != "100000000001" || fields["amount_cents"] != int64(11000) || fields["outcome"] != "Confirmed" {
		test.Fatalf("unexpected fields: %+v", fields)
	}
	if _, hasDate := fields["date"]; hasDate {
		test.Fatalf("expected zero date to be omitted: %+v", fields)
	}
	if entries[1].Level != zapcore.WarnLevel || !strings.Contains(entries[1].ContextMap()["error"].(string), "booking not found") {
		test.Fatalf("unexpected failure entry: %+v", entries[1])
	}
	if entries[2].Level != zapcore.WarnLevel || entries[2].ContextMap()["component"] != "reference_counter" {
		test.Fatalf("unexpected recovery entry: %+v", entries[2])
	}
}

func TestNewWritesToOutputPath(test *testing.T) {
	test.Parallel()
	path := filepath.Join(test.TempDir(), "seatledger.log")
	logger, err := New("warn", path)
	if err != nil {
		test.Fatalf("new: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()
	contents, err := os.ReadFile(path)
	if err != nil {
		test.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(contents), "dropped") || !strings.Contains(string(contents), "kept") {
		test.Fatalf("unexpected log contents: %s", contents)
	}
}

func TestNewRejectsUnknownLevel(test *testing.T) {
	test.Parallel()
	if _, err := New("chatty"); err == nil {
		test.Fatalf("expected error")
	}
}

func TestNilLoggerIsSafe(test *testing.T) {
	test.Parallel()
	adapter := NewOperationLogger(nil)
	adapter.LogRecovery(context.Background(), ledger.RecoveryLog{Component: "snapshot", Error: errors.New("boom")})
}
