package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PaymentResult is the outcome of a payment attempt.
type PaymentResult int

const (
	PaymentApproved PaymentResult = iota + 1
	PaymentDeclined
)

// PaymentGateway charges fares and issues refunds.
type PaymentGateway interface {
	AttemptPayment(ctx context.Context, amount AmountCents) PaymentResult
	IssueRefund(ctx context.Context, amount AmountCents) error
}

// BookingRequest is one group of riders travelling together.
type BookingRequest struct {
	ServiceID string
	Date      string
	Riders    []Rider
}

// BookingOutcome describes a processed booking request. Reference is set
// whenever one was issued, including for declined payments.
type BookingOutcome struct {
	Reference Reference
	ServiceID ServiceID
	Date      TravelDate
	Seats     int
	Fare      AmountCents
	Status    BookingStatus
	Rank      int64
}

// GroupResult pairs a multi-group request with its independent outcome.
type GroupResult struct {
	Request BookingRequest
	Outcome BookingOutcome
	Err     error
}

// CancellationOutcome describes a completed cancellation.
type CancellationOutcome struct {
	Reference      Reference
	PreviousStatus BookingStatus
	Refund         AmountCents
	Promoted       []Reference
}

// Service is the reservation coordinator. Every public operation runs under
// one lock so that seat checks and the reservations that follow are atomic.
type Service struct {
	mu             sync.Mutex
	store          Store
	payments       PaymentGateway
	nowFn          func() int64
	logger         OperationLogger
	referenceFloor int64
	passwordCost   int
	state          state
	references     *ReferenceGenerator
}

// WithPasswordCost sets the bcrypt cost used for new and re-hashed passwords.
func WithPasswordCost(cost int) ServiceOption {
	return func(service *Service) {
		service.passwordCost = cost
	}
}

// NewService loads persisted state and wires a Service.
func NewService(ctx context.Context, store Store, payments PaymentGateway, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if payments == nil {
		return nil, fmt.Errorf("%w: payment dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:          store,
		payments:       payments,
		nowFn:          now,
		logger:         noopLogger{},
		referenceFloor: DefaultReferenceFloor,
		passwordCost:   bcrypt.DefaultCost,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.logger == nil {
		service.logger = noopLogger{}
	}
	references, err := NewReferenceGenerator(ctx, store, service.referenceFloor, service.logger)
	if err != nil {
		return nil, err
	}
	service.references = references

	snapshot, loadErr := store.LoadSnapshot(ctx)
	if loadErr != nil {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentSnapshot,
			Action:    operationLoad,
			Error:     WrapError(operationLoad, subjectSnapshot, codeReset, corruptCause(loadErr)),
		})
		snapshot = Snapshot{}
	}
	service.state = restoreState(ctx, snapshot, service.passwordCost, service.logger)
	service.observeRestoredReferences(ctx)
	seeded, err := seedDefaults(service.state)
	if err != nil {
		return nil, err
	}
	// An unreadable snapshot stays on disk until a mutation rewrites it.
	if seeded && loadErr == nil {
		service.persist(ctx, operationLoad)
	}
	return service, nil
}

// observeRestoredReferences keeps the counter ahead of every restored booking
// when the persisted counter was lost or lags behind the snapshot.
func (service *Service) observeRestoredReferences(ctx context.Context) {
	var highest int64
	for _, booking := range service.state.bookings.All() {
		if value := booking.Reference().Int64(); value > highest {
			highest = value
		}
	}
	if service.references.Observe(ctx, highest) {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentReferenceCounter,
			Action:    operationLoad,
			Error:     WrapError(operationLoad, subjectCounter, codeRaise, fmt.Errorf("%w: counter behind restored booking %d", ErrCorruptPersistedState, highest)),
		})
	}
}

// Book processes a single booking request.
func (service *Service) Book(ctx context.Context, request BookingRequest) (BookingOutcome, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.bookLocked(ctx, request)
}

// BookGroups evaluates each request independently; one group failing does not
// affect the others.
func (service *Service) BookGroups(ctx context.Context, requests []BookingRequest) []GroupResult {
	service.mu.Lock()
	defer service.mu.Unlock()
	results := make([]GroupResult, 0, len(requests))
	for _, request := range requests {
		outcome, err := service.bookLocked(ctx, request)
		results = append(results, GroupResult{Request: request, Outcome: outcome, Err: err})
	}
	return results
}

// Cancel cancels a booking, refunds it, and promotes waitlisted requests
// into any seats it frees.
func (service *Service) Cancel(ctx context.Context, reference Reference) (CancellationOutcome, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	outcome, err := service.cancel(ctx, reference)
	entry := OperationLog{
		Operation: operationCancel,
		Reference: reference,
		Amount:    outcome.Refund,
		Outcome:   outcome.PreviousStatus.String(),
		Error:     err,
	}
	if booking, ok := service.state.bookings.Find(reference); ok {
		entry.ServiceID = booking.ServiceID()
		entry.Date = booking.Date()
		entry.Seats = booking.Seats()
	}
	service.logOperation(ctx, entry)
	return outcome, err
}

func (service *Service) bookLocked(ctx context.Context, request BookingRequest) (BookingOutcome, error) {
	outcome, err := service.book(ctx, request)
	service.logOperation(ctx, OperationLog{
		Operation: operationBook,
		Reference: outcome.Reference,
		ServiceID: outcome.ServiceID,
		Date:      outcome.Date,
		Seats:     len(request.Riders),
		Amount:    outcome.Fare,
		Outcome:   outcome.Status.String(),
		Error:     err,
	})
	return outcome, err
}

func (service *Service) book(ctx context.Context, request BookingRequest) (BookingOutcome, error) {
	date, err := ParseTravelDate(request.Date)
	if err != nil {
		return BookingOutcome{}, err
	}
	if len(request.Riders) == 0 {
		return BookingOutcome{}, fmt.Errorf("%w: at least one rider is required", ErrInvalidRiders)
	}
	serviceID, err := NewServiceID(request.ServiceID)
	if err != nil {
		return BookingOutcome{}, fmt.Errorf("%w: %w", ErrServiceNotFound, err)
	}
	train, err := service.state.catalog.Get(serviceID)
	if err != nil {
		return BookingOutcome{}, err
	}
	seats := len(request.Riders)
	outcome := BookingOutcome{
		ServiceID: serviceID,
		Date:      date,
		Seats:     seats,
		Fare:      train.BaseFare().Times(seats),
	}
	outcome.Reference = service.references.Next(ctx)
	service.recordEvent(ctx, outcome.Reference, EventBookingAttempt, EventStatusPendingPayment)

	available, err := service.state.inventory.AvailableSeats(serviceID, date)
	if err != nil {
		return outcome, err
	}
	status := BookingStatusWaitlisted
	if available >= seats {
		status = BookingStatusConfirmed
	}
	if service.payments.AttemptPayment(ctx, outcome.Fare) != PaymentApproved {
		service.recordEvent(ctx, outcome.Reference, EventPaymentFailed, EventStatusRolledBack)
		return outcome, fmt.Errorf("%w: reference %s", ErrPaymentDeclined, outcome.Reference)
	}
	reserved := false
	if status == BookingStatusConfirmed {
		reserved, err = service.state.inventory.Reserve(serviceID, date, seats)
		if err != nil {
			service.revertBooking(ctx, outcome, false, err)
			return outcome, err
		}
		if !reserved {
			status = BookingStatusWaitlisted
			service.logger.LogRecovery(ctx, RecoveryLog{
				Component: componentInventory,
				Action:    operationBook,
				Error:     WrapError(operationBook, subjectBooking, codeDesync, fmt.Errorf("%w: %d seats on %s", ErrInsufficientSeats, seats, WaitlistKey{ServiceID: serviceID, Date: date})),
			})
		}
	}
	booking, err := NewBooking(outcome.Reference, serviceID, date, request.Riders, outcome.Fare, status)
	if err == nil {
		err = service.state.bookings.Create(booking)
	}
	if err != nil {
		service.revertBooking(ctx, outcome, reserved, err)
		return outcome, err
	}
	eventStatus := EventStatusCommitted
	if status == BookingStatusWaitlisted {
		eventStatus = EventStatusWaitlisted
	}
	service.recordEvent(ctx, outcome.Reference, EventPaymentSuccess, eventStatus)
	outcome.Status = status
	if status == BookingStatusWaitlisted {
		outcome.Rank = service.state.waitlist.Enqueue(booking.Key(), booking.Reference(), seats)
	}
	service.persist(ctx, operationBook)
	return outcome, nil
}

// revertBooking undoes a charged request that could not be recorded: reserved
// seats go back to the inventory and the full fare is refunded.
func (service *Service) revertBooking(ctx context.Context, outcome BookingOutcome, reserved bool, cause error) {
	if reserved {
		if err := service.state.inventory.Release(outcome.ServiceID, outcome.Date, outcome.Seats); err != nil {
			service.logger.LogRecovery(ctx, RecoveryLog{
				Component: componentInventory,
				Action:    operationBook,
				Error:     WrapError(operationBook, subjectBooking, codeDesync, err),
			})
		}
	}
	service.refund(ctx, operationBook, outcome.Reference, outcome.Fare)
	service.recordEvent(ctx, outcome.Reference, EventPaymentFailed, EventStatusRolledBack)
	service.logger.LogRecovery(ctx, RecoveryLog{
		Component: componentInventory,
		Action:    operationBook,
		Error:     WrapError(operationBook, subjectBooking, codeRevert, cause),
	})
}

func (service *Service) cancel(ctx context.Context, reference Reference) (CancellationOutcome, error) {
	booking, ok := service.state.bookings.Find(reference)
	if !ok {
		return CancellationOutcome{}, fmt.Errorf("%w: %s", ErrBookingNotFound, reference)
	}
	outcome := CancellationOutcome{Reference: reference, PreviousStatus: booking.Status()}
	if booking.Status() == BookingStatusCancelled {
		return outcome, fmt.Errorf("%w: %s", ErrAlreadyCancelled, reference)
	}
	service.recordEvent(ctx, reference, EventCancellationAttempt, EventStatusPendingRefund)

	switch booking.Status() {
	case BookingStatusConfirmed:
		if err := service.state.inventory.Release(booking.ServiceID(), booking.Date(), booking.Seats()); err != nil {
			service.recordEvent(ctx, reference, EventCancellationFailed, EventStatusRolledBack)
			return outcome, err
		}
		available, err := service.state.inventory.AvailableSeats(booking.ServiceID(), booking.Date())
		if err != nil {
			service.recordEvent(ctx, reference, EventCancellationFailed, EventStatusRolledBack)
			return outcome, err
		}
		outcome.Promoted = service.promote(ctx, booking.Key(), available)
		outcome.Refund = booking.Fare().Percent(confirmedRefundPercent)
		service.refund(ctx, operationCancel, reference, outcome.Refund)
		if err := service.state.bookings.SetStatus(reference, BookingStatusCancelled); err != nil {
			return outcome, err
		}
		service.recordEvent(ctx, reference, EventCancellationSuccess, EventStatusCommitted)
	case BookingStatusWaitlisted:
		service.state.waitlist.Remove(booking.Key(), reference)
		outcome.Refund = booking.Fare().Percent(waitlistedRefundPercent)
		service.refund(ctx, operationCancel, reference, outcome.Refund)
		if err := service.state.bookings.SetStatus(reference, BookingStatusCancelled); err != nil {
			return outcome, err
		}
		service.recordEvent(ctx, reference, EventCancellationSuccessWaitlisted, EventStatusCommitted)
	}
	service.persist(ctx, operationCancel)
	return outcome, nil
}

// promote fills freed seats from the waitlist and confirms promoted bookings.
func (service *Service) promote(ctx context.Context, key WaitlistKey, freedSeats int) []Reference {
	candidates, err := service.state.waitlist.Promote(key, freedSeats, service.state.inventory)
	if err != nil {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentInventory,
			Action:    operationPromote,
			Error:     WrapError(operationPromote, subjectBooking, codeDesync, err),
		})
	}
	promoted := make([]Reference, 0, len(candidates))
	for _, reference := range candidates {
		if err := service.state.bookings.SetStatus(reference, BookingStatusConfirmed); err != nil {
			// Seats were reserved for a queue entry with no waitlisted booking behind it.
			if booking, ok := service.state.bookings.Find(reference); ok {
				_ = service.state.inventory.Release(key.ServiceID, key.Date, booking.Seats())
			}
			service.logger.LogRecovery(ctx, RecoveryLog{
				Component: componentInventory,
				Action:    operationPromote,
				Error:     WrapError(operationPromote, subjectBooking, codeDesync, err),
			})
			continue
		}
		service.recordEvent(ctx, reference, EventWaitlistPromotion, EventStatusCommitted)
		promoted = append(promoted, reference)
	}
	return promoted
}

func (service *Service) refund(ctx context.Context, operation string, reference Reference, amount AmountCents) {
	if amount <= 0 {
		return
	}
	if err := service.payments.IssueRefund(ctx, amount); err != nil {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentPayments,
			Action:    operation,
			Error:     WrapError(operation, subjectRefund, codeRefund, fmt.Errorf("reference %s: %w", reference, err)),
		})
	}
}

func (service *Service) recordEvent(ctx context.Context, reference Reference, kind EventKind, status EventStatus) {
	event := TransactionEvent{
		Reference:  reference,
		Kind:       kind,
		Status:     status,
		RecordedAt: time.Unix(service.nowFn(), 0).UTC(),
	}
	if err := service.store.AppendEvent(ctx, event); err != nil {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentTransactionLog,
			Action:    string(kind),
			Error:     WrapError(operationSave, subjectEvent, codeAppend, fmt.Errorf("%w: %v", ErrPersistenceWriteFailure, err)),
		})
	}
}

// persist rewrites the snapshot. Memory is never rolled back on failure.
func (service *Service) persist(ctx context.Context, operation string) {
	if err := service.store.SaveSnapshot(ctx, captureState(service.state)); err != nil {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentSnapshot,
			Action:    operation,
			Error:     WrapError(operationSave, subjectSnapshot, codeSave, fmt.Errorf("%w: %v", ErrPersistenceWriteFailure, err)),
		})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func corruptCause(err error) error {
	if errors.Is(err, ErrCorruptPersistedState) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCorruptPersistedState, err)
}
