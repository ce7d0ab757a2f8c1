package ledger

import (
	"fmt"
	"strings"
)

const midpointStation = "MidPoint"

// Stop is one row of a route timetable.
type Stop struct {
	Station   string
	Arrival   string
	Departure string
}

// Route is the origin/destination pair of a service.
type Route struct {
	source      string
	destination string
}

// NewRoute validates a source and destination station.
func NewRoute(source string, destination string) (Route, error) {
	trimmedSource := strings.TrimSpace(source)
	trimmedDestination := strings.TrimSpace(destination)
	if trimmedSource == "" || trimmedDestination == "" {
		return Route{}, fmt.Errorf("%w: source and destination are required", ErrInvalidRoute)
	}
	return Route{source: trimmedSource, destination: trimmedDestination}, nil
}

// Source returns the origin station.
func (route Route) Source() string { return route.source }

// Destination returns the terminal station.
func (route Route) Destination() string { return route.destination }

// Matches compares stations case-insensitively.
func (route Route) Matches(source string, destination string) bool {
	return strings.EqualFold(route.source, strings.TrimSpace(source)) &&
		strings.EqualFold(route.destination, strings.TrimSpace(destination))
}

// Schedule returns the fixed daily timetable for the route.
func (route Route) Schedule() []Stop {
	return []Stop{
		{Station: route.source, Arrival: "N/A", Departure: "08:00"},
		{Station: midpointStation, Arrival: "12:00", Departure: "12:15"},
		{Station: route.destination, Arrival: "18:00", Departure: "N/A"},
	}
}

// ServiceKind is the closed set of service variants.
type ServiceKind string

const (
	ServiceKindExpress ServiceKind = "express"
)

// ParseServiceKind validates a stored service kind. The legacy "EXPRESS" tag is accepted.
func ParseServiceKind(raw string) (ServiceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ServiceKindExpress):
		return ServiceKindExpress, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceKind, raw)
	}
}

// String returns the kind label.
func (kind ServiceKind) String() string {
	return string(kind)
}

// ExpressDetails carries the fields specific to express services.
type ExpressDetails struct {
	PantryCar bool
}

// TrainService is an immutable catalog entry.
type TrainService struct {
	id         ServiceID
	name       string
	route      Route
	totalSeats int
	baseFare   AmountCents
	kind       ServiceKind
	express    ExpressDetails
}

// NewExpressService validates and builds an express service.
func NewExpressService(id ServiceID, name string, route Route, totalSeats int, baseFare AmountCents, details ExpressDetails) (TrainService, error) {
	if id.String() == "" {
		return TrainService{}, fmt.Errorf("%w: empty value", ErrInvalidServiceID)
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return TrainService{}, fmt.Errorf("%w: empty value", ErrInvalidServiceName)
	}
	if route.source == "" || route.destination == "" {
		return TrainService{}, fmt.Errorf("%w: route is required", ErrInvalidRoute)
	}
	if totalSeats <= 0 {
		return TrainService{}, fmt.Errorf("%w: total seats must be greater than zero", ErrInvalidSeatCount)
	}
	if baseFare <= 0 {
		return TrainService{}, fmt.Errorf("%w: base fare must be greater than zero", ErrInvalidAmountCents)
	}
	return TrainService{
		id:         id,
		name:       trimmedName,
		route:      route,
		totalSeats: totalSeats,
		baseFare:   baseFare,
		kind:       ServiceKindExpress,
		express:    details,
	}, nil
}

// ID returns the service identifier.
func (service TrainService) ID() ServiceID { return service.id }

// Name returns the display name.
func (service TrainService) Name() string { return service.name }

// Route returns the service route.
func (service TrainService) Route() Route { return service.route }

// TotalSeats returns the fixed capacity per date.
func (service TrainService) TotalSeats() int { return service.totalSeats }

// BaseFare returns the per-seat fare.
func (service TrainService) BaseFare() AmountCents { return service.baseFare }

// Kind returns the variant tag.
func (service TrainService) Kind() ServiceKind { return service.kind }

// Express returns the express details; ok is false for other kinds.
func (service TrainService) Express() (ExpressDetails, bool) {
	if service.kind != ServiceKindExpress {
		return ExpressDetails{}, false
	}
	return service.express, true
}

// Label returns the display suffix for the variant.
func (service TrainService) Label() string {
	switch service.kind {
	case ServiceKindExpress:
		return "EXPRESS"
	default:
		return strings.ToUpper(service.kind.String())
	}
}

// Catalog owns services by stable ID, preserving insertion order.
type Catalog struct {
	services map[ServiceID]TrainService
	order    []ServiceID
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{services: make(map[ServiceID]TrainService)}
}

// Add registers a new service.
func (catalog *Catalog) Add(service TrainService) error {
	if _, exists := catalog.services[service.id]; exists {
		return fmt.Errorf("%w: %s", ErrServiceExists, service.id.String())
	}
	catalog.services[service.id] = service
	catalog.order = append(catalog.order, service.id)
	return nil
}

// Get resolves a service by ID.
func (catalog *Catalog) Get(id ServiceID) (TrainService, error) {
	service, ok := catalog.services[id]
	if !ok {
		return TrainService{}, fmt.Errorf("%w: %s", ErrServiceNotFound, id.String())
	}
	return service, nil
}

// Remove deletes a service.
func (catalog *Catalog) Remove(id ServiceID) error {
	if _, ok := catalog.services[id]; !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, id.String())
	}
	delete(catalog.services, id)
	for index, candidate := range catalog.order {
		if candidate == id {
			catalog.order = append(catalog.order[:index], catalog.order[index+1:]...)
			break
		}
	}
	return nil
}

// All lists services in insertion order.
func (catalog *Catalog) All() []TrainService {
	services := make([]TrainService, 0, len(catalog.order))
	for _, id := range catalog.order {
		services = append(services, catalog.services[id])
	}
	return services
}

// Len returns the number of services.
func (catalog *Catalog) Len() int {
	return len(catalog.order)
}
