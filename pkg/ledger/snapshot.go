package ledger

import (
	"context"
	"fmt"
)

// Snapshot is the full persisted state, rewritten after each mutating operation.
// Fields are kept as primitives so that corrupt records are rejected at load time
// by the same constructors the live code uses.
type Snapshot struct {
	Services []ServiceRecord
	Bookings []BookingRecord
	Users    []UserRecord
}

// ServiceRecord persists a catalog entry and its seat map. Defect, when set,
// names a field the store could not decode and the record is skipped.
type ServiceRecord struct {
	ID            string
	Kind          string
	Name          string
	Source        string
	Destination   string
	TotalSeats    int
	BaseFareCents int64
	PantryCar     bool
	SeatMap       []SeatAllocationRecord
	Defect        string
}

// SeatAllocationRecord persists one date allocation. An allocation with a
// Defect is rebuilt from the confirmed bookings of that date.
type SeatAllocationRecord struct {
	Date      string
	Available int
	Defect    string
}

// BookingRecord persists a booking. Defect, when set, names a field the
// store could not decode and the record is skipped.
type BookingRecord struct {
	Reference string
	ServiceID string
	Date      string
	FareCents int64
	Status    string
	Riders    []RiderRecord
	Defect    string
}

// RiderRecord persists one rider.
type RiderRecord struct {
	Name   string
	Age    int
	Gender string
}

// UserRecord persists a directory entry.
type UserRecord struct {
	Role         string
	Username     string
	PasswordHash string
}

// SnapshotStore loads and rewrites the full snapshot.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// EventLog is the append-only transaction log.
type EventLog interface {
	AppendEvent(ctx context.Context, event TransactionEvent) error
	ListEvents(ctx context.Context, reference Reference) ([]TransactionEvent, error)
}

// Store is the persistence contract used by Service.
type Store interface {
	SnapshotStore
	CounterStore
	EventLog
}

// state groups the in-memory components rebuilt from a snapshot.
type state struct {
	catalog   *Catalog
	inventory *Inventory
	bookings  *BookingLedger
	waitlist  *Waitlist
	users     *Directory
}

func newState(passwordCost int) state {
	catalog := NewCatalog()
	return state{
		catalog:   catalog,
		inventory: NewInventory(catalog),
		bookings:  NewBookingLedger(),
		waitlist:  NewWaitlist(),
		users:     NewDirectory(passwordCost),
	}
}

// restoreState rebuilds components from a snapshot, skipping records that fail
// validation and clamping out-of-range seat counts. Undecodable seat counts are
// recomputed from confirmed bookings. Every recovery is logged.
func restoreState(ctx context.Context, snapshot Snapshot, passwordCost int, logger OperationLogger) state {
	restored := newState(passwordCost)
	var unreadable []WaitlistKey
	for _, record := range snapshot.Services {
		service, err := serviceFromRecord(record)
		if err == nil {
			err = restored.catalog.Add(service)
		}
		if err != nil {
			logSkippedRecord(ctx, logger, subjectService, record.ID, err)
			continue
		}
		for _, allocation := range record.SeatMap {
			date, err := ParseTravelDate(allocation.Date)
			if err != nil {
				logSkippedRecord(ctx, logger, subjectService, record.ID, err)
				continue
			}
			if allocation.Defect != "" {
				unreadable = append(unreadable, WaitlistKey{ServiceID: service.ID(), Date: date})
				logger.LogRecovery(ctx, RecoveryLog{
					Component: componentSnapshot,
					Action:    operationLoad,
					Error: WrapError(operationLoad, subjectService, codeReset,
						fmt.Errorf("%w: %s on %s: %s", ErrCorruptPersistedState, record.ID, allocation.Date, allocation.Defect)),
				})
				continue
			}
			clamped, err := restored.inventory.restore(service.ID(), date, allocation.Available)
			if err != nil {
				logSkippedRecord(ctx, logger, subjectService, record.ID, err)
				continue
			}
			if clamped {
				logger.LogRecovery(ctx, RecoveryLog{
					Component: componentSnapshot,
					Action:    operationLoad,
					Error: WrapError(operationLoad, subjectService, codeClamp,
						fmt.Errorf("%w: %s on %s had %d seats", ErrCorruptPersistedState, record.ID, allocation.Date, allocation.Available)),
				})
			}
		}
	}
	for _, record := range snapshot.Bookings {
		booking, err := bookingFromRecord(record)
		if err == nil {
			err = restored.bookings.Create(booking)
		}
		if err != nil {
			logSkippedRecord(ctx, logger, subjectBooking, record.Reference, err)
			continue
		}
		if booking.Status() == BookingStatusWaitlisted {
			restored.waitlist.Enqueue(booking.Key(), booking.Reference(), booking.Seats())
		}
	}
	for _, key := range unreadable {
		service, err := restored.catalog.Get(key.ServiceID)
		if err != nil {
			continue
		}
		available := service.TotalSeats()
		for _, booking := range restored.bookings.All() {
			if booking.Status() == BookingStatusConfirmed && booking.Key() == key {
				available -= booking.Seats()
			}
		}
		_, _ = restored.inventory.restore(key.ServiceID, key.Date, available)
	}
	for _, record := range snapshot.Users {
		role, err := ParseRole(record.Role)
		if err == nil {
			_, err = restored.users.add(record.Username, record.PasswordHash, role)
		}
		if err != nil {
			logSkippedRecord(ctx, logger, subjectUser, record.Username, err)
		}
	}
	return restored
}

// captureState renders the components as a snapshot.
func captureState(current state) Snapshot {
	snapshot := Snapshot{
		Services: make([]ServiceRecord, 0, current.catalog.Len()),
		Bookings: make([]BookingRecord, 0, current.bookings.Len()),
		Users:    make([]UserRecord, 0, current.users.Len()),
	}
	for _, service := range current.catalog.All() {
		record := ServiceRecord{
			ID:            service.ID().String(),
			Kind:          service.Kind().String(),
			Name:          service.Name(),
			Source:        service.Route().Source(),
			Destination:   service.Route().Destination(),
			TotalSeats:    service.TotalSeats(),
			BaseFareCents: service.BaseFare().Int64(),
		}
		switch service.Kind() {
		case ServiceKindExpress:
			details, _ := service.Express()
			record.PantryCar = details.PantryCar
		}
		for _, allocation := range current.inventory.Allocations(service.ID()) {
			record.SeatMap = append(record.SeatMap, SeatAllocationRecord{Date: allocation.Date.String(), Available: allocation.Available})
		}
		snapshot.Services = append(snapshot.Services, record)
	}
	for _, booking := range current.bookings.All() {
		record := BookingRecord{
			Reference: booking.Reference().String(),
			ServiceID: booking.ServiceID().String(),
			Date:      booking.Date().String(),
			FareCents: booking.Fare().Int64(),
			Status:    booking.Status().String(),
			Riders:    make([]RiderRecord, 0, booking.Seats()),
		}
		for _, rider := range booking.Riders() {
			record.Riders = append(record.Riders, RiderRecord{Name: rider.Name(), Age: rider.Age(), Gender: rider.Gender()})
		}
		snapshot.Bookings = append(snapshot.Bookings, record)
	}
	for _, user := range current.users.All() {
		snapshot.Users = append(snapshot.Users, UserRecord{Role: user.Role().String(), Username: user.Username(), PasswordHash: user.PasswordHash()})
	}
	return snapshot
}

func serviceFromRecord(record ServiceRecord) (TrainService, error) {
	if record.Defect != "" {
		return TrainService{}, fmt.Errorf("%w: %s", ErrCorruptPersistedState, record.Defect)
	}
	kind, err := ParseServiceKind(record.Kind)
	if err != nil {
		return TrainService{}, err
	}
	id, err := NewServiceID(record.ID)
	if err != nil {
		return TrainService{}, err
	}
	route, err := NewRoute(record.Source, record.Destination)
	if err != nil {
		return TrainService{}, err
	}
	fare, err := NewAmountCents(record.BaseFareCents)
	if err != nil {
		return TrainService{}, err
	}
	switch kind {
	case ServiceKindExpress:
		return NewExpressService(id, record.Name, route, record.TotalSeats, fare, ExpressDetails{PantryCar: record.PantryCar})
	default:
		return TrainService{}, fmt.Errorf("%w: %q", ErrInvalidServiceKind, record.Kind)
	}
}

func bookingFromRecord(record BookingRecord) (Booking, error) {
	if record.Defect != "" {
		return Booking{}, fmt.Errorf("%w: %s", ErrCorruptPersistedState, record.Defect)
	}
	reference, err := ParseReference(record.Reference)
	if err != nil {
		return Booking{}, err
	}
	serviceID, err := NewServiceID(record.ServiceID)
	if err != nil {
		return Booking{}, err
	}
	date, err := ParseTravelDate(record.Date)
	if err != nil {
		return Booking{}, err
	}
	fare, err := NewAmountCents(record.FareCents)
	if err != nil {
		return Booking{}, err
	}
	status, err := ParseBookingStatus(record.Status)
	if err != nil {
		return Booking{}, err
	}
	riders := make([]Rider, 0, len(record.Riders))
	for _, riderRecord := range record.Riders {
		rider, err := NewRider(riderRecord.Name, riderRecord.Age, riderRecord.Gender)
		if err != nil {
			return Booking{}, err
		}
		riders = append(riders, rider)
	}
	return NewBooking(reference, serviceID, date, riders, fare, status)
}

func logSkippedRecord(ctx context.Context, logger OperationLogger, subject string, identifier string, cause error) {
	logger.LogRecovery(ctx, RecoveryLog{
		Component: componentSnapshot,
		Action:    operationLoad,
		Error:     WrapError(operationLoad, subject, codeSkip, fmt.Errorf("%w: record %q: %v", ErrCorruptPersistedState, identifier, cause)),
	})
}
