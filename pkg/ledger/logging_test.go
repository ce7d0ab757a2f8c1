package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestServiceLogsBookOperation(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	service := mustNewService(test, newStubStore(), &stubPayments{}, WithOperationLogger(logger))
	outcome := mustBook(test, service, expressID, holidayDate, 2)
	if len(logger.entries) != 1 {
		test.Fatalf("expected one log entry, got %d", len(logger.entries))
	}
	entry := logger.entries[0]
	if entry.Operation != operationBook || entry.Reference != outcome.Reference || entry.Seats != 2 || entry.Amount != outcome.Fare {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Error != nil || entry.Status != operationStatusOK || entry.Outcome != "Confirmed" {
		test.Fatalf("expected successful log entry, got %+v", entry)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	service := mustNewService(test, newStubStore(), &stubPayments{}, WithOperationLogger(logger))
	if _, err := service.Cancel(context.Background(), mustReference(test, 77)); err == nil {
		test.Fatalf("expected error")
	}
	if err := service.RemoveService(context.Background(), "XX999"); !errors.Is(err, ErrServiceNotFound) {
		test.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
	if len(logger.entries) != 2 {
		test.Fatalf("expected two log entries, got %d", len(logger.entries))
	}
	for _, entry := range logger.entries {
		if entry.Status != operationStatusError || entry.Error == nil {
			test.Fatalf("expected error log entry, got %+v", entry)
		}
	}
	if logger.entries[0].Operation != operationCancel || logger.entries[1].Operation != operationRemoveService {
		test.Fatalf("unexpected operations: %+v", logger.entries)
	}
}

func TestServiceAddServiceLogsAndRejectsDuplicates(test *testing.T) {
	test.Parallel()
	logger := &recorderLogger{}
	service := mustNewService(test, newStubStore(), &stubPayments{}, WithOperationLogger(logger))
	definition := ServiceDefinition{ID: "NX300", Name: "Night Express", Source: "CityC", Destination: "CityA", TotalSeats: 20, BaseFare: "40.25", PantryCar: true}
	added, err := service.AddService(context.Background(), definition)
	if err != nil {
		test.Fatalf("add service: %v", err)
	}
	if added.BaseFare().Int64() != 4025 || added.Label() != "EXPRESS" {
		test.Fatalf("unexpected service %+v", added)
	}
	if _, err := service.AddService(context.Background(), definition); !errors.Is(err, ErrServiceExists) {
		test.Fatalf("expected ErrServiceExists, got %v", err)
	}
	definition.ID = "NX301"
	definition.BaseFare = "free"
	if _, err := service.AddService(context.Background(), definition); !errors.Is(err, ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents, got %v", err)
	}
	if len(logger.entries) != 3 || logger.entries[0].Status != operationStatusOK || logger.entries[1].Status != operationStatusError {
		test.Fatalf("unexpected log entries: %+v", logger.entries)
	}
	if len(service.Services()) != 3 {
		test.Fatalf("expected three services, got %d", len(service.Services()))
	}
}

func TestServiceHistoryListsEvents(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, &stubPayments{})
	outcome := mustBook(test, service, expressID, holidayDate, 1)
	events, err := service.History(context.Background(), outcome.Reference)
	if err != nil {
		test.Fatalf("history: %v", err)
	}
	if len(events) != 2 || events[0].Kind != EventBookingAttempt || events[0].RecordedAt.Unix() != fixedUnixTime {
		test.Fatalf("unexpected history %+v", events)
	}
}
