package ledger

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const fixedUnixTime int64 = 1735084800

type stubStore struct {
	snapshot        Snapshot
	snapshotLoadErr error
	snapshotSaveErr error
	snapshotSaves   int

	counter        int64
	hasCounter     bool
	counterLoadErr error
	counterSaveErr error

	events         []TransactionEvent
	eventAppendErr error
}

func newStubStore() *stubStore {
	return &stubStore{}
}

func (store *stubStore) LoadSnapshot(context.Context) (Snapshot, error) {
	if store.snapshotLoadErr != nil {
		return Snapshot{}, store.snapshotLoadErr
	}
	return store.snapshot, nil
}

func (store *stubStore) SaveSnapshot(_ context.Context, snapshot Snapshot) error {
	if store.snapshotSaveErr != nil {
		return store.snapshotSaveErr
	}
	store.snapshot = snapshot
	store.snapshotSaves++
	return nil
}

func (store *stubStore) LoadCounter(context.Context) (int64, error) {
	if store.counterLoadErr != nil {
		return 0, store.counterLoadErr
	}
	if !store.hasCounter {
		return 0, ErrCounterNotFound
	}
	return store.counter, nil
}

func (store *stubStore) SaveCounter(_ context.Context, value int64) error {
	if store.counterSaveErr != nil {
		return store.counterSaveErr
	}
	store.counter = value
	store.hasCounter = true
	return nil
}

func (store *stubStore) AppendEvent(_ context.Context, event TransactionEvent) error {
	if store.eventAppendErr != nil {
		return store.eventAppendErr
	}
	store.events = append(store.events, event)
	return nil
}

func (store *stubStore) ListEvents(_ context.Context, reference Reference) ([]TransactionEvent, error) {
	matches := make([]TransactionEvent, 0)
	for _, event := range store.events {
		if event.Reference == reference {
			matches = append(matches, event)
		}
	}
	return matches, nil
}

func (store *stubStore) eventsFor(reference Reference) []TransactionEvent {
	events, _ := store.ListEvents(context.Background(), reference)
	return events
}

// stubPayments approves by default; queued results are consumed first.
type stubPayments struct {
	results   []PaymentResult
	attempts  []AmountCents
	refunds   []AmountCents
	refundErr error
}

func (payments *stubPayments) AttemptPayment(_ context.Context, amount AmountCents) PaymentResult {
	payments.attempts = append(payments.attempts, amount)
	if len(payments.results) == 0 {
		return PaymentApproved
	}
	result := payments.results[0]
	payments.results = payments.results[1:]
	return result
}

func (payments *stubPayments) IssueRefund(_ context.Context, amount AmountCents) error {
	if payments.refundErr != nil {
		return payments.refundErr
	}
	payments.refunds = append(payments.refunds, amount)
	return nil
}

type recorderLogger struct {
	entries    []OperationLog
	recoveries []RecoveryLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) LogRecovery(_ context.Context, entry RecoveryLog) {
	logger.recoveries = append(logger.recoveries, entry)
}

func (logger *recorderLogger) hasRecovery(component string, target error) bool {
	for _, recovery := range logger.recoveries {
		if recovery.Component == component && errors.Is(recovery.Error, target) {
			return true
		}
	}
	return false
}

func mustNewService(test *testing.T, store Store, payments PaymentGateway, options ...ServiceOption) *Service {
	test.Helper()
	allOptions := append([]ServiceOption{WithPasswordCost(bcrypt.MinCost)}, options...)
	service, err := NewService(context.Background(), store, payments, func() int64 { return fixedUnixTime }, allOptions...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustServiceID(test *testing.T, raw string) ServiceID {
	test.Helper()
	id, err := NewServiceID(raw)
	if err != nil {
		test.Fatalf("service id: %v", err)
	}
	return id
}

func mustTravelDate(test *testing.T, raw string) TravelDate {
	test.Helper()
	date, err := ParseTravelDate(raw)
	if err != nil {
		test.Fatalf("travel date: %v", err)
	}
	return date
}

func mustReference(test *testing.T, raw int64) Reference {
	test.Helper()
	reference, err := NewReference(raw)
	if err != nil {
		test.Fatalf("reference: %v", err)
	}
	return reference
}

func mustAmountCents(test *testing.T, raw int64) AmountCents {
	test.Helper()
	amount, err := NewAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return amount
}

func mustRiders(test *testing.T, count int) []Rider {
	test.Helper()
	riders := make([]Rider, 0, count)
	for index := 0; index < count; index++ {
		rider, err := NewRider("Rider", 30+index, "F")
		if err != nil {
			test.Fatalf("rider: %v", err)
		}
		riders = append(riders, rider)
	}
	return riders
}

func mustExpressService(test *testing.T, id string, totalSeats int) TrainService {
	test.Helper()
	route, err := NewRoute("CityA", "CityB")
	if err != nil {
		test.Fatalf("route: %v", err)
	}
	service, err := NewExpressService(mustServiceID(test, id), "Test Express", route, totalSeats, mustAmountCents(test, 5500), ExpressDetails{PantryCar: true})
	if err != nil {
		test.Fatalf("express service: %v", err)
	}
	return service
}

func mustBook(test *testing.T, service *Service, serviceID string, date string, riders int) BookingOutcome {
	test.Helper()
	outcome, err := service.Book(context.Background(), BookingRequest{ServiceID: serviceID, Date: date, Riders: mustRiders(test, riders)})
	if err != nil {
		test.Fatalf("book %d riders on %s %s: %v", riders, serviceID, date, err)
	}
	return outcome
}

func eventKinds(events []TransactionEvent) []string {
	kinds := make([]string, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, string(event.Kind)+"/"+string(event.Status))
	}
	return kinds
}
