package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ServiceDefinition is the operator input for a new express service.
type ServiceDefinition struct {
	ID          string
	Name        string
	Source      string
	Destination string
	TotalSeats  int
	BaseFare    string
	PantryCar   bool
}

// ServiceAvailability reports the seats left on a service for one date.
type ServiceAvailability struct {
	Service   TrainService
	Date      TravelDate
	Available int
}

// BookingView is a booking plus its waitlist rank (zero unless Waitlisted).
type BookingView struct {
	Booking Booking
	Rank    int64
}

type seedUser struct {
	username string
	password string
	role     Role
}

var defaultServices = []ServiceDefinition{
	{ID: "ET001", Name: "Fast Express", Source: "CityA", Destination: "CityB", TotalSeats: 10, BaseFare: "55.00", PantryCar: true},
	{ID: "SR205", Name: "Slow Runner", Source: "CityB", Destination: "CityC", TotalSeats: 50, BaseFare: "75.50", PantryCar: false},
}

var defaultUsers = []seedUser{
	{username: "admin", password: "123", role: RoleAdmin},
	{username: "user", password: "123", role: RoleCustomer},
}

// Build validates the definition into a catalog entry.
func (definition ServiceDefinition) Build() (TrainService, error) {
	id, err := NewServiceID(definition.ID)
	if err != nil {
		return TrainService{}, err
	}
	route, err := NewRoute(definition.Source, definition.Destination)
	if err != nil {
		return TrainService{}, err
	}
	fare, err := ParseAmountCents(definition.BaseFare)
	if err != nil {
		return TrainService{}, err
	}
	return NewExpressService(id, definition.Name, route, definition.TotalSeats, fare, ExpressDetails{PantryCar: definition.PantryCar})
}

// AddService registers a new service. Duplicate IDs are rejected.
func (service *Service) AddService(ctx context.Context, definition ServiceDefinition) (TrainService, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	train, err := definition.Build()
	if err == nil {
		err = service.state.catalog.Add(train)
	}
	if err == nil {
		service.persist(ctx, operationAddService)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationAddService,
		ServiceID: train.ID(),
		Seats:     train.TotalSeats(),
		Amount:    train.BaseFare(),
		Error:     err,
	})
	if err != nil {
		return TrainService{}, err
	}
	return train, nil
}

// RemoveService deletes a service and its seat map. Existing bookings stay in
// the ledger; confirmed ones can no longer be cancelled.
func (service *Service) RemoveService(ctx context.Context, rawID string) error {
	service.mu.Lock()
	defer service.mu.Unlock()
	id, err := NewServiceID(rawID)
	if err == nil {
		err = service.state.catalog.Remove(id)
	}
	if err == nil {
		service.state.inventory.Forget(id)
		service.persist(ctx, operationRemoveService)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationRemoveService,
		ServiceID: id,
		Error:     err,
	})
	return err
}

// PromoteWaitlist fills currently free seats on a service date from its waitlist.
func (service *Service) PromoteWaitlist(ctx context.Context, rawID string, rawDate string) ([]Reference, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	promoted, key, err := service.promoteWaitlist(ctx, rawID, rawDate)
	service.logOperation(ctx, OperationLog{
		Operation: operationPromote,
		ServiceID: key.ServiceID,
		Date:      key.Date,
		Seats:     len(promoted),
		Error:     err,
	})
	return promoted, err
}

func (service *Service) promoteWaitlist(ctx context.Context, rawID string, rawDate string) ([]Reference, WaitlistKey, error) {
	date, err := ParseTravelDate(rawDate)
	if err != nil {
		return nil, WaitlistKey{}, err
	}
	id, err := NewServiceID(rawID)
	if err != nil {
		return nil, WaitlistKey{}, err
	}
	key := WaitlistKey{ServiceID: id, Date: date}
	available, err := service.state.inventory.AvailableSeats(id, date)
	if err != nil {
		return nil, key, err
	}
	if available <= 0 {
		return nil, key, fmt.Errorf("%w: no free seats on %s", ErrInsufficientSeats, key)
	}
	promoted := service.promote(ctx, key, available)
	if len(promoted) > 0 {
		service.persist(ctx, operationPromote)
	}
	return promoted, key, nil
}

// Services lists the catalog in insertion order.
func (service *Service) Services() []TrainService {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.state.catalog.All()
}

// ServicesOn reports availability of every service on a date.
func (service *Service) ServicesOn(rawDate string) ([]ServiceAvailability, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	date, err := ParseTravelDate(rawDate)
	if err != nil {
		return nil, err
	}
	return service.availability(service.state.catalog.All(), date)
}

// Search reports availability of services running source to destination on a date.
func (service *Service) Search(source string, destination string, rawDate string) ([]ServiceAvailability, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	date, err := ParseTravelDate(rawDate)
	if err != nil {
		return nil, err
	}
	matches := make([]TrainService, 0)
	for _, train := range service.state.catalog.All() {
		if train.Route().Matches(source, destination) {
			matches = append(matches, train)
		}
	}
	return service.availability(matches, date)
}

// Availability returns the seats left on one service date.
func (service *Service) Availability(rawID string, rawDate string) (int, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	date, err := ParseTravelDate(rawDate)
	if err != nil {
		return 0, err
	}
	id, err := NewServiceID(rawID)
	if err != nil {
		return 0, err
	}
	return service.state.inventory.AvailableSeats(id, date)
}

// Bookings lists every booking in insertion order.
func (service *Service) Bookings() []Booking {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.state.bookings.All()
}

// FindBooking returns a booking with its current waitlist rank.
func (service *Service) FindBooking(reference Reference) (BookingView, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	booking, ok := service.state.bookings.Find(reference)
	if !ok {
		return BookingView{}, fmt.Errorf("%w: %s", ErrBookingNotFound, reference)
	}
	view := BookingView{Booking: booking}
	if entry, queued := service.state.waitlist.Find(booking.Key(), reference); queued {
		view.Rank = entry.Rank
	}
	return view, nil
}

// Waitlist returns the queued entries for a service date in rank order.
func (service *Service) Waitlist(rawID string, rawDate string) ([]WaitlistEntry, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	date, err := ParseTravelDate(rawDate)
	if err != nil {
		return nil, err
	}
	id, err := NewServiceID(rawID)
	if err != nil {
		return nil, err
	}
	return service.state.waitlist.Entries(WaitlistKey{ServiceID: id, Date: date}), nil
}

// History returns the transaction log lines recorded for a reference.
func (service *Service) History(ctx context.Context, reference Reference) ([]TransactionEvent, error) {
	events, err := service.store.ListEvents(ctx, reference)
	if err != nil {
		return nil, WrapError(operationLoad, subjectEvent, codeMissing, err)
	}
	return events, nil
}

// Authenticate verifies credentials. A legacy plaintext password is upgraded
// to a bcrypt hash and the snapshot rewritten.
func (service *Service) Authenticate(ctx context.Context, username string, password string) (User, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	user, rehashed, err := service.state.users.Authenticate(username, password)
	if errors.Is(err, ErrPasswordRehash) {
		service.logger.LogRecovery(ctx, RecoveryLog{
			Component: componentDirectory,
			Action:    operationAuthenticate,
			Error:     WrapError(operationAuthenticate, subjectUser, codeRehash, err),
		})
		err = nil
	}
	if err == nil && rehashed {
		service.persist(ctx, operationAuthenticate)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationAuthenticate,
		Outcome:   user.Role().String(),
		Error:     err,
	})
	return user, err
}

// LastReference returns the most recently issued reference counter value.
func (service *Service) LastReference() int64 {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.references.Last()
}

// Flush rewrites the snapshot, returning the write error instead of logging it.
func (service *Service) Flush(ctx context.Context) error {
	service.mu.Lock()
	defer service.mu.Unlock()
	if err := service.store.SaveSnapshot(ctx, captureState(service.state)); err != nil {
		return WrapError(operationSave, subjectSnapshot, codeSave, fmt.Errorf("%w: %v", ErrPersistenceWriteFailure, err))
	}
	return nil
}

func (service *Service) availability(trains []TrainService, date TravelDate) ([]ServiceAvailability, error) {
	report := make([]ServiceAvailability, 0, len(trains))
	for _, train := range trains {
		available, err := service.state.inventory.AvailableSeats(train.ID(), date)
		if err != nil {
			return nil, err
		}
		report = append(report, ServiceAvailability{Service: train, Date: date, Available: available})
	}
	return report, nil
}

// seedDefaults fills an empty catalog or directory with the starter data.
func seedDefaults(current state) (bool, error) {
	seeded := false
	if current.catalog.Len() == 0 {
		for _, definition := range defaultServices {
			train, err := definition.Build()
			if err != nil {
				return false, err
			}
			if err := current.catalog.Add(train); err != nil {
				return false, err
			}
		}
		seeded = true
	}
	if current.users.Len() == 0 {
		for _, user := range defaultUsers {
			if _, err := current.users.Register(user.username, user.password, user.role); err != nil {
				return false, err
			}
		}
		seeded = true
	}
	return seeded, nil
}
