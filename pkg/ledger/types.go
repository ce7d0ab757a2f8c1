package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	travelDateLayout   = "01/02/2006"
	waitlistKeyDivider = "|"
	minimumRiderAge    = 1
	maximumRiderAge    = 119
)

// AmountCents is an integer currency in cents.
type AmountCents int64

// NewAmountCents validates an amount and ensures it is strictly positive.
func NewAmountCents(raw int64) (AmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return AmountCents(raw), nil
}

// ParseAmountCents converts a decimal currency string such as "55.00" into cents.
func ParseAmountCents(raw string) (AmountCents, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmountCents, raw)
	}
	return NewAmountCents(int64(math.Round(value * 100)))
}

// Int64 returns the raw cents value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// Times multiplies the amount by a seat count.
func (amount AmountCents) Times(count int) AmountCents {
	return AmountCents(int64(amount) * int64(count))
}

// Percent returns percent/100 of the amount, truncated to whole cents.
func (amount AmountCents) Percent(percent int64) AmountCents {
	return AmountCents(int64(amount) * percent / 100)
}

// String formats the amount with two decimals.
func (amount AmountCents) String() string {
	sign := ""
	value := int64(amount)
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

// ServiceID identifies a scheduled service (train number).
type ServiceID struct {
	value string
}

// NewServiceID validates and normalizes a service id.
func NewServiceID(raw string) (ServiceID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ServiceID{}, fmt.Errorf("%w: empty value", ErrInvalidServiceID)
	}
	if strings.ContainsAny(trimmed, waitlistKeyDivider+" \t") {
		return ServiceID{}, fmt.Errorf("%w: %q contains whitespace or %q", ErrInvalidServiceID, trimmed, waitlistKeyDivider)
	}
	return ServiceID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ServiceID) String() string {
	return id.value
}

// TravelDate is a calendar date in MM/DD/YYYY form.
type TravelDate struct {
	value string
}

// ParseTravelDate validates a MM/DD/YYYY date string.
func ParseTravelDate(raw string) (TravelDate, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) != len(travelDateLayout) {
		return TravelDate{}, fmt.Errorf("%w: %q is not MM/DD/YYYY", ErrInvalidDate, raw)
	}
	if _, err := time.Parse(travelDateLayout, trimmed); err != nil {
		return TravelDate{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, raw)
	}
	return TravelDate{value: trimmed}, nil
}

// String returns the MM/DD/YYYY form.
func (date TravelDate) String() string {
	return date.value
}

// IsZero reports whether the date was never parsed.
func (date TravelDate) IsZero() bool {
	return date.value == ""
}

// Reference is a booking reference (PNR).
type Reference struct {
	value int64
}

// NewReference validates a numeric booking reference.
func NewReference(raw int64) (Reference, error) {
	if raw <= 0 {
		return Reference{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidReference)
	}
	return Reference{value: raw}, nil
}

// ParseReference parses the decimal form of a booking reference.
func ParseReference(raw string) (Reference, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %q is not numeric", ErrInvalidReference, raw)
	}
	return NewReference(value)
}

// Int64 returns the numeric reference.
func (reference Reference) Int64() int64 {
	return reference.value
}

// String returns the decimal form.
func (reference Reference) String() string {
	return strconv.FormatInt(reference.value, 10)
}

// IsZero reports whether the reference is unset.
func (reference Reference) IsZero() bool {
	return reference.value == 0
}

// Rider is a single traveller on a booking.
type Rider struct {
	name   string
	age    int
	gender string
}

// NewRider validates rider details.
func NewRider(name string, age int, gender string) (Rider, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Rider{}, fmt.Errorf("%w: empty rider name", ErrInvalidRiders)
	}
	if age < minimumRiderAge || age > maximumRiderAge {
		return Rider{}, fmt.Errorf("%w: age %d outside %d-%d", ErrInvalidRiders, age, minimumRiderAge, maximumRiderAge)
	}
	normalizedGender := strings.ToUpper(strings.TrimSpace(gender))
	switch normalizedGender {
	case "M", "F", "O":
	default:
		return Rider{}, fmt.Errorf("%w: gender %q must be M, F or O", ErrInvalidRiders, gender)
	}
	return Rider{name: trimmedName, age: age, gender: normalizedGender}, nil
}

// Name returns the rider name.
func (rider Rider) Name() string { return rider.name }

// Age returns the rider age.
func (rider Rider) Age() int { return rider.age }

// Gender returns M, F or O.
func (rider Rider) Gender() string { return rider.gender }

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	BookingStatusConfirmed  BookingStatus = "Confirmed"
	BookingStatusWaitlisted BookingStatus = "Waitlisted"
	BookingStatusCancelled  BookingStatus = "Cancelled"
)

// ParseBookingStatus validates a stored status. The legacy "Waitlist" spelling is accepted.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch strings.TrimSpace(raw) {
	case string(BookingStatusConfirmed):
		return BookingStatusConfirmed, nil
	case string(BookingStatusWaitlisted), "Waitlist":
		return BookingStatusWaitlisted, nil
	case string(BookingStatusCancelled):
		return BookingStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
	}
}

// String returns the status label.
func (status BookingStatus) String() string {
	return string(status)
}

// WaitlistKey partitions waitlist queues and seat allocations by service and date.
type WaitlistKey struct {
	ServiceID ServiceID
	Date      TravelDate
}

// String renders the compound "service|date" key.
func (key WaitlistKey) String() string {
	return key.ServiceID.String() + waitlistKeyDivider + key.Date.String()
}

// EventKind names a transaction log event.
type EventKind string

const (
	EventBookingAttempt                EventKind = "BOOKING_ATTEMPT"
	EventPaymentSuccess                EventKind = "PAYMENT_SUCCESS"
	EventPaymentFailed                 EventKind = "PAYMENT_FAILED"
	EventCancellationAttempt           EventKind = "CANCELLATION_ATTEMPT"
	EventCancellationSuccess           EventKind = "CANCELLATION_SUCCESS"
	EventCancellationSuccessWaitlisted EventKind = "CANCELLATION_SUCCESS_WAITLISTED"
	EventCancellationFailed            EventKind = "CANCELLATION_FAILED"
	EventWaitlistPromotion             EventKind = "WAITLIST_PROMOTION"
)

// EventStatus annotates an event with the transaction outcome.
type EventStatus string

const (
	EventStatusPendingPayment EventStatus = "PENDING_PAYMENT"
	EventStatusCommitted      EventStatus = "COMMITTED"
	EventStatusRolledBack     EventStatus = "ROLLED_BACK"
	EventStatusWaitlisted     EventStatus = "WAITLISTED"
	EventStatusPendingRefund  EventStatus = "PENDING_REFUND"
)

// TransactionEvent is one line of the append-only transaction log.
type TransactionEvent struct {
	Reference  Reference
	Kind       EventKind
	Status     EventStatus
	RecordedAt time.Time
}
