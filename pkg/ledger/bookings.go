package ledger

import "fmt"

// Booking is a reservation record. Cancellation is a status change; records are never deleted.
type Booking struct {
	reference Reference
	serviceID ServiceID
	date      TravelDate
	riders    []Rider
	fare      AmountCents
	status    BookingStatus
}

// NewBooking constructs a booking record.
func NewBooking(reference Reference, serviceID ServiceID, date TravelDate, riders []Rider, fare AmountCents, status BookingStatus) (Booking, error) {
	if reference.IsZero() {
		return Booking{}, fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	if len(riders) == 0 {
		return Booking{}, fmt.Errorf("%w: at least one rider is required", ErrInvalidRiders)
	}
	if _, err := ParseBookingStatus(status.String()); err != nil {
		return Booking{}, err
	}
	return Booking{
		reference: reference,
		serviceID: serviceID,
		date:      date,
		riders:    append([]Rider(nil), riders...),
		fare:      fare,
		status:    status,
	}, nil
}

// Reference returns the booking reference.
func (booking Booking) Reference() Reference { return booking.reference }

// ServiceID returns the booked service.
func (booking Booking) ServiceID() ServiceID { return booking.serviceID }

// Date returns the travel date.
func (booking Booking) Date() TravelDate { return booking.date }

// Riders returns a copy of the rider list.
func (booking Booking) Riders() []Rider { return append([]Rider(nil), booking.riders...) }

// Seats returns the rider count.
func (booking Booking) Seats() int { return len(booking.riders) }

// Fare returns the total fare charged.
func (booking Booking) Fare() AmountCents { return booking.fare }

// Status returns the lifecycle status.
func (booking Booking) Status() BookingStatus { return booking.status }

// Key returns the service/date key of the booking.
func (booking Booking) Key() WaitlistKey {
	return WaitlistKey{ServiceID: booking.serviceID, Date: booking.date}
}

// BookingLedger owns booking records in insertion order.
type BookingLedger struct {
	records []Booking
	index   map[Reference]int
}

// NewBookingLedger returns an empty ledger.
func NewBookingLedger() *BookingLedger {
	return &BookingLedger{index: make(map[Reference]int)}
}

// Create appends a booking.
func (ledger *BookingLedger) Create(booking Booking) error {
	if booking.reference.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidReference)
	}
	if _, exists := ledger.index[booking.reference]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, booking.reference.String())
	}
	ledger.index[booking.reference] = len(ledger.records)
	ledger.records = append(ledger.records, booking)
	return nil
}

// Find returns the booking with the exact reference.
func (ledger *BookingLedger) Find(reference Reference) (Booking, bool) {
	position, ok := ledger.index[reference]
	if !ok {
		return Booking{}, false
	}
	return ledger.records[position], true
}

// SetStatus applies a legal status transition.
func (ledger *BookingLedger) SetStatus(reference Reference, next BookingStatus) error {
	position, ok := ledger.index[reference]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, reference.String())
	}
	current := ledger.records[position].status
	if !isLegalTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	ledger.records[position].status = next
	return nil
}

// All lists bookings in insertion order.
func (ledger *BookingLedger) All() []Booking {
	return append([]Booking(nil), ledger.records...)
}

// Len returns the number of records.
func (ledger *BookingLedger) Len() int {
	return len(ledger.records)
}

func isLegalTransition(from BookingStatus, to BookingStatus) bool {
	switch from {
	case BookingStatusConfirmed:
		return to == BookingStatusCancelled
	case BookingStatusWaitlisted:
		return to == BookingStatusCancelled || to == BookingStatusConfirmed
	default:
		return false
	}
}
