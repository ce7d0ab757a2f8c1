package ledger

import (
	"context"
	"errors"
	"fmt"
)

// DefaultReferenceFloor is the lowest counter value accepted on load.
const DefaultReferenceFloor int64 = 100000000000

// ErrCounterNotFound reports that no counter has been persisted yet.
var ErrCounterNotFound = errors.New("reference counter not found")

// CounterStore persists the reference counter.
type CounterStore interface {
	LoadCounter(ctx context.Context) (int64, error)
	SaveCounter(ctx context.Context, value int64) error
}

// ReferenceGenerator issues strictly increasing booking references.
type ReferenceGenerator struct {
	store   CounterStore
	logger  OperationLogger
	floor   int64
	current int64
}

// NewReferenceGenerator loads the persisted counter. Absent, corrupt or
// below-floor values reset to the floor and are logged, never returned.
func NewReferenceGenerator(ctx context.Context, store CounterStore, floor int64, logger OperationLogger) (*ReferenceGenerator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: counter store is nil", ErrInvalidServiceConfig)
	}
	if floor <= 0 {
		return nil, fmt.Errorf("%w: reference floor must be positive", ErrInvalidServiceConfig)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	generator := &ReferenceGenerator{store: store, logger: logger, floor: floor, current: floor}
	persisted, err := store.LoadCounter(ctx)
	switch {
	case err != nil:
		generator.recover(ctx, "load", err)
	case persisted < floor:
		generator.recover(ctx, "load", fmt.Errorf("%w: counter %d below floor %d", ErrCorruptPersistedState, persisted, floor))
	default:
		generator.current = persisted
	}
	return generator, nil
}

// Next advances the counter, persists it, and returns the new reference.
// A failed write is logged and the in-memory counter still advances.
func (generator *ReferenceGenerator) Next(ctx context.Context) Reference {
	generator.current++
	if err := generator.store.SaveCounter(ctx, generator.current); err != nil {
		generator.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentReferenceCounter,
			Action:    "save",
			Error:     WrapError(operationBook, subjectCounter, codeSave, fmt.Errorf("%w: %v", ErrPersistenceWriteFailure, err)),
		})
	}
	return Reference{value: generator.current}
}

// Observe raises the counter to at least value and persists the raise. It
// reports whether the counter moved.
func (generator *ReferenceGenerator) Observe(ctx context.Context, value int64) bool {
	if value <= generator.current {
		return false
	}
	generator.current = value
	if err := generator.store.SaveCounter(ctx, generator.current); err != nil {
		generator.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentReferenceCounter,
			Action:    "save",
			Error:     WrapError(operationLoad, subjectCounter, codeSave, fmt.Errorf("%w: %v", ErrPersistenceWriteFailure, err)),
		})
	}
	return true
}

// Last returns the most recently issued value (the floor before any issue).
func (generator *ReferenceGenerator) Last() int64 {
	return generator.current
}

// Floor returns the configured floor.
func (generator *ReferenceGenerator) Floor() int64 {
	return generator.floor
}

func (generator *ReferenceGenerator) recover(ctx context.Context, action string, cause error) {
	if !errors.Is(cause, ErrCorruptPersistedState) && !errors.Is(cause, ErrCounterNotFound) {
		cause = fmt.Errorf("%w: %v", ErrCorruptPersistedState, cause)
	}
	generator.logger.LogRecovery(ctx, RecoveryLog{
		Component: componentReferenceCounter,
		Action:    action,
		Error:     WrapError(operationLoad, subjectCounter, codeReset, cause),
	})
}
