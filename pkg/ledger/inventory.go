package ledger

import (
	"fmt"
	"sort"
)

// DateAllocation is the seat counter of one service on one date.
type DateAllocation struct {
	Date      TravelDate
	Available int
}

// Inventory owns per-service, per-date seat counts.
type Inventory struct {
	catalog *Catalog
	seats   map[WaitlistKey]int
}

// NewInventory builds an inventory over the catalog's capacities.
func NewInventory(catalog *Catalog) *Inventory {
	return &Inventory{catalog: catalog, seats: make(map[WaitlistKey]int)}
}

// AvailableSeats returns seats left, materializing unseen dates at full capacity.
func (inventory *Inventory) AvailableSeats(serviceID ServiceID, date TravelDate) (int, error) {
	service, err := inventory.catalog.Get(serviceID)
	if err != nil {
		return 0, err
	}
	if date.IsZero() {
		return 0, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}
	return inventory.materialize(service, date), nil
}

// Reserve decrements seats when enough remain; otherwise it leaves the count untouched.
func (inventory *Inventory) Reserve(serviceID ServiceID, date TravelDate, count int) (bool, error) {
	if count <= 0 {
		return false, fmt.Errorf("%w: reserve %d", ErrInvalidSeatCount, count)
	}
	available, err := inventory.AvailableSeats(serviceID, date)
	if err != nil {
		return false, err
	}
	if available < count {
		return false, nil
	}
	inventory.seats[WaitlistKey{ServiceID: serviceID, Date: date}] = available - count
	return true, nil
}

// Release returns seats, clamped to the service capacity.
func (inventory *Inventory) Release(serviceID ServiceID, date TravelDate, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: release %d", ErrInvalidSeatCount, count)
	}
	service, err := inventory.catalog.Get(serviceID)
	if err != nil {
		return err
	}
	if date.IsZero() {
		return fmt.Errorf("%w: empty date", ErrInvalidDate)
	}
	updated := inventory.materialize(service, date) + count
	if updated > service.totalSeats {
		updated = service.totalSeats
	}
	inventory.seats[WaitlistKey{ServiceID: serviceID, Date: date}] = updated
	return nil
}

// Allocations lists the materialized dates of a service, sorted by date string.
func (inventory *Inventory) Allocations(serviceID ServiceID) []DateAllocation {
	allocations := make([]DateAllocation, 0)
	for key, available := range inventory.seats {
		if key.ServiceID == serviceID {
			allocations = append(allocations, DateAllocation{Date: key.Date, Available: available})
		}
	}
	sort.Slice(allocations, func(left, right int) bool {
		return allocations[left].Date.String() < allocations[right].Date.String()
	})
	return allocations
}

// Forget drops every allocation of a removed service.
func (inventory *Inventory) Forget(serviceID ServiceID) {
	for key := range inventory.seats {
		if key.ServiceID == serviceID {
			delete(inventory.seats, key)
		}
	}
}

// restore sets a persisted count, clamping it into [0, capacity]. It reports whether clamping happened.
func (inventory *Inventory) restore(serviceID ServiceID, date TravelDate, available int) (bool, error) {
	service, err := inventory.catalog.Get(serviceID)
	if err != nil {
		return false, err
	}
	clamped := available
	if clamped < 0 {
		clamped = 0
	}
	if clamped > service.totalSeats {
		clamped = service.totalSeats
	}
	inventory.seats[WaitlistKey{ServiceID: serviceID, Date: date}] = clamped
	return clamped != available, nil
}

func (inventory *Inventory) materialize(service TrainService, date TravelDate) int {
	key := WaitlistKey{ServiceID: service.id, Date: date}
	available, ok := inventory.seats[key]
	if !ok {
		available = service.totalSeats
		inventory.seats[key] = available
	}
	return available
}
