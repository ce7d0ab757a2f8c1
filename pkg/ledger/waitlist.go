package ledger

// WaitlistEntry is a pending request awaiting capacity.
type WaitlistEntry struct {
	Reference Reference
	Key       WaitlistKey
	Seats     int
	Rank      int64
}

// SeatReserver is the inventory capability promotion needs.
type SeatReserver interface {
	Reserve(serviceID ServiceID, date TravelDate, count int) (bool, error)
}

// Waitlist holds FIFO queues partitioned by service and date.
type Waitlist struct {
	queues map[WaitlistKey][]WaitlistEntry
}

// NewWaitlist returns an empty waitlist.
func NewWaitlist() *Waitlist {
	return &Waitlist{queues: make(map[WaitlistKey][]WaitlistEntry)}
}

// Enqueue appends a request and returns its rank (last rank + 1, or 1 on an empty queue).
func (waitlist *Waitlist) Enqueue(key WaitlistKey, reference Reference, seats int) int64 {
	queue := waitlist.queues[key]
	rank := int64(1)
	if len(queue) > 0 {
		rank = queue[len(queue)-1].Rank + 1
	}
	waitlist.queues[key] = append(queue, WaitlistEntry{Reference: reference, Key: key, Seats: seats, Rank: rank})
	return rank
}

// Promote scans the queue in rank order and reserves seats for every entry
// that fits in the remaining freed capacity. Entries that do not fit, or whose
// reservation fails, stay queued in their original order.
func (waitlist *Waitlist) Promote(key WaitlistKey, freedSeats int, reserver SeatReserver) ([]Reference, error) {
	queue := waitlist.queues[key]
	if len(queue) == 0 || freedSeats <= 0 {
		return nil, nil
	}
	remaining := freedSeats
	promoted := make([]Reference, 0)
	retained := make([]WaitlistEntry, 0, len(queue))
	var firstErr error
	for _, entry := range queue {
		if entry.Seats > remaining {
			retained = append(retained, entry)
			continue
		}
		reserved, err := reserver.Reserve(key.ServiceID, key.Date, entry.Seats)
		if err != nil || !reserved {
			if err != nil && firstErr == nil {
				firstErr = err
			}
			retained = append(retained, entry)
			continue
		}
		remaining -= entry.Seats
		promoted = append(promoted, entry.Reference)
	}
	waitlist.store(key, retained)
	return promoted, firstErr
}

// Remove drops the entry for a reference, reporting whether it was queued.
func (waitlist *Waitlist) Remove(key WaitlistKey, reference Reference) bool {
	queue := waitlist.queues[key]
	for index, entry := range queue {
		if entry.Reference == reference {
			retained := make([]WaitlistEntry, 0, len(queue)-1)
			retained = append(retained, queue[:index]...)
			retained = append(retained, queue[index+1:]...)
			waitlist.store(key, retained)
			return true
		}
	}
	return false
}

// Entries returns a copy of the queue in rank order.
func (waitlist *Waitlist) Entries(key WaitlistKey) []WaitlistEntry {
	return append([]WaitlistEntry(nil), waitlist.queues[key]...)
}

// Find returns the queued entry for a reference.
func (waitlist *Waitlist) Find(key WaitlistKey, reference Reference) (WaitlistEntry, bool) {
	for _, entry := range waitlist.queues[key] {
		if entry.Reference == reference {
			return entry, true
		}
	}
	return WaitlistEntry{}, false
}

// Len returns the number of queued entries for a key.
func (waitlist *Waitlist) Len(key WaitlistKey) int {
	return len(waitlist.queues[key])
}

func (waitlist *Waitlist) store(key WaitlistKey, queue []WaitlistEntry) {
	if len(queue) == 0 {
		delete(waitlist.queues, key)
		return
	}
	waitlist.queues[key] = queue
}
