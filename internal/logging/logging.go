// Package logging builds the process zap logger and adapts it to ledger callbacks.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger writing to the given outputs at the given level.
func New(level string, outputPaths ...string) (*zap.Logger, error) {
	parsedLevel, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.Sampling = nil
	if len(outputPaths) > 0 {
		cfg.OutputPaths = outputPaths
		cfg.ErrorOutputPaths = outputPaths
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return logger, nil
}

// OperationLogger forwards ledger operation and recovery callbacks to zap.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger wraps a zap logger. A nil logger discards everything.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger.Named("ledger")}
}

// LogOperation records one coordinator operation.
func (adapter *OperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.Reference.IsZero() {
		fields = append(fields, zap.String("reference", entry.Reference.String()))
	}
	if entry.ServiceID.String() != "" {
		fields = append(fields, zap.String("service_id", entry.ServiceID.String()))
	}
	if !entry.Date.IsZero() {
		fields = append(fields, zap.String("date", entry.Date.String()))
	}
	if entry.Seats > 0 {
		fields = append(fields, zap.Int("seats", entry.Seats))
	}
	if entry.Amount > 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.Amount.Int64()))
	}
	if entry.Outcome != "" {
		fields = append(fields, zap.String("outcome", entry.Outcome))
	}
	if entry.Error != nil {
		adapter.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}

// LogRecovery records a locally recovered persistence or gateway failure.
func (adapter *OperationLogger) LogRecovery(_ context.Context, entry ledger.RecoveryLog) {
	adapter.logger.Warn("ledger recovery",
		zap.String("component", entry.Component),
		zap.String("action", entry.Action),
		zap.Error(entry.Error),
	)
}
