package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service mirrors the services table. SeatMap holds the per-date allocations as JSON.
type Service struct {
	ServiceID     string         `gorm:"primaryKey"`
	Position      int            `gorm:"not null;index"`
	Kind          string         `gorm:"not null"`
	Name          string         `gorm:"not null"`
	Source        string         `gorm:"not null"`
	Destination   string         `gorm:"not null"`
	TotalSeats    int            `gorm:"not null"`
	BaseFareCents int64          `gorm:"not null"`
	PantryCar     bool           `gorm:"not null"`
	SeatMap       datatypes.JSON `gorm:"not null"`
}

func (Service) TableName() string { return "services" }

// Booking mirrors the bookings table. Riders are stored as a JSON array.
type Booking struct {
	Reference  string         `gorm:"primaryKey"`
	Position   int            `gorm:"not null;index"`
	ServiceID  string         `gorm:"not null;index:idx_bookings_service_date,priority:1"`
	TravelDate string         `gorm:"not null;index:idx_bookings_service_date,priority:2"`
	FareCents  int64          `gorm:"not null"`
	Status     string         `gorm:"not null"`
	Riders     datatypes.JSON `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// User mirrors the users table.
type User struct {
	Username     string `gorm:"primaryKey"`
	Position     int    `gorm:"not null;index"`
	Role         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// Counter stores named monotonic counters.
type Counter struct {
	Name      string    `gorm:"primaryKey"`
	Value     int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Counter) TableName() string { return "counters" }

// TransactionEvent mirrors the append-only transaction_events table.
type TransactionEvent struct {
	Sequence   int64     `gorm:"primaryKey;autoIncrement"`
	EventID    string    `gorm:"not null;uniqueIndex"`
	Reference  string    `gorm:"not null;index:idx_events_reference_recorded,priority:1"`
	Kind       string    `gorm:"not null"`
	Status     string    `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null;index:idx_events_reference_recorded,priority:2"`
}

func (TransactionEvent) TableName() string { return "transaction_events" }

func (event *TransactionEvent) BeforeCreate(tx *gorm.DB) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	return nil
}

type seatAllocation struct {
	Date      string `json:"date"`
	Available int    `json:"available"`
}

type rider struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&Service{}, &Booking{}, &User{}, &Counter{}, &TransactionEvent{}}
}
