package ledger

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
	LogRecovery(ctx context.Context, entry RecoveryLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation string
	Reference Reference
	ServiceID ServiceID
	Date      TravelDate
	Seats     int
	Amount    AmountCents
	Outcome   string
	Status    string
	Error     error
}

// RecoveryLog describes a locally recovered failure: corrupt persisted state
// reset to a default, or a write that failed without rolling back memory.
type RecoveryLog struct {
	Component string
	Action    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithReferenceFloor sets the lowest reference value the generator accepts on load.
func WithReferenceFloor(floor int64) ServiceOption {
	return func(service *Service) {
		service.referenceFloor = floor
	}
}

type noopLogger struct{}

func (noopLogger) LogOperation(context.Context, OperationLog) {}

func (noopLogger) LogRecovery(context.Context, RecoveryLog) {}
