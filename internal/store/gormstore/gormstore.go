package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	referenceCounterName  = "booking_reference"
	emptyJSONArray        = "[]"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectSnapshot  = "snapshot"
	errorSubjectService   = "service"
	errorSubjectBooking   = "booking"
	errorSubjectUser      = "user"
	errorSubjectCounter   = "counter"
	errorSubjectEvent     = "event"
	errorCodeDuplicate    = "duplicate"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLookup       = "lookup"
	errorCodeMigrate      = "migrate"
	errorCodeReset        = "reset"
	errorCodeUpsert       = "upsert"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return wrapStoreError(errorSubjectSnapshot, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore *Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// LoadSnapshot reads services, bookings and users in their stored order.
// Rows whose JSON columns do not decode are returned with those fields empty
// so the ledger can reject them individually.
func (store *Store) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	var services []Service
	if err := store.db.WithContext(ctx).Order("position").Find(&services).Error; err != nil {
		return ledger.Snapshot{}, wrapStoreError(errorSubjectService, errorCodeList, err)
	}
	var bookings []Booking
	if err := store.db.WithContext(ctx).Order("position").Find(&bookings).Error; err != nil {
		return ledger.Snapshot{}, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	var users []User
	if err := store.db.WithContext(ctx).Order("position").Find(&users).Error; err != nil {
		return ledger.Snapshot{}, wrapStoreError(errorSubjectUser, errorCodeList, err)
	}

	snapshot := ledger.Snapshot{
		Services: make([]ledger.ServiceRecord, 0, len(services)),
		Bookings: make([]ledger.BookingRecord, 0, len(bookings)),
		Users:    make([]ledger.UserRecord, 0, len(users)),
	}
	for _, row := range services {
		snapshot.Services = append(snapshot.Services, mapServiceRow(row))
	}
	for _, row := range bookings {
		snapshot.Bookings = append(snapshot.Bookings, mapBookingRow(row))
	}
	for _, row := range users {
		snapshot.Users = append(snapshot.Users, ledger.UserRecord{Role: row.Role, Username: row.Username, PasswordHash: row.PasswordHash})
	}
	return snapshot, nil
}

// SaveSnapshot replaces the stored snapshot in one transaction.
func (store *Store) SaveSnapshot(ctx context.Context, snapshot ledger.Snapshot) error {
	services := make([]Service, 0, len(snapshot.Services))
	for index, record := range snapshot.Services {
		row, err := newServiceRow(index, record)
		if err != nil {
			return wrapStoreError(errorSubjectService, errorCodeInvalid, err)
		}
		services = append(services, row)
	}
	bookings := make([]Booking, 0, len(snapshot.Bookings))
	for index, record := range snapshot.Bookings {
		row, err := newBookingRow(index, record)
		if err != nil {
			return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, row)
	}
	users := make([]User, 0, len(snapshot.Users))
	for index, record := range snapshot.Users {
		users = append(users, User{Username: record.Username, Position: index, Role: record.Role, PasswordHash: record.PasswordHash})
	}

	return store.WithTx(ctx, func(ctx context.Context, txStore *Store) error {
		for _, model := range []any{&Service{}, &Booking{}, &User{}} {
			if err := txStore.db.WithContext(ctx).Where("1 = 1").Delete(model).Error; err != nil {
				return wrapStoreError(errorSubjectSnapshot, errorCodeReset, err)
			}
		}
		if len(services) > 0 {
			if err := txStore.db.WithContext(ctx).Create(&services).Error; err != nil {
				return classifyInsertError(errorSubjectService, err, ledger.ErrServiceExists)
			}
		}
		if len(bookings) > 0 {
			if err := txStore.db.WithContext(ctx).Create(&bookings).Error; err != nil {
				return classifyInsertError(errorSubjectBooking, err, ledger.ErrDuplicateReference)
			}
		}
		if len(users) > 0 {
			if err := txStore.db.WithContext(ctx).Create(&users).Error; err != nil {
				return classifyInsertError(errorSubjectUser, err, ledger.ErrInvalidUsername)
			}
		}
		return nil
	})
}

// LoadCounter returns the persisted reference counter.
func (store *Store) LoadCounter(ctx context.Context) (int64, error) {
	var counter Counter
	err := store.db.WithContext(ctx).Where("name = ?", referenceCounterName).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ledger.ErrCounterNotFound
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCounter, errorCodeLookup, err)
	}
	return counter.Value, nil
}

// SaveCounter upserts the reference counter.
func (store *Store) SaveCounter(ctx context.Context, value int64) error {
	counter := Counter{Name: referenceCounterName, Value: value, UpdatedAt: time.Now().UTC()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&counter).Error
	if err != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeUpsert, err)
	}
	return nil
}

// AppendEvent inserts one transaction log line.
func (store *Store) AppendEvent(ctx context.Context, event ledger.TransactionEvent) error {
	recordedAt := event.RecordedAt.UTC()
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	row := TransactionEvent{
		Reference:  event.Reference.String(),
		Kind:       string(event.Kind),
		Status:     string(event.Status),
		RecordedAt: recordedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeInsert, err)
	}
	return nil
}

// ListEvents returns the events of one reference in append order.
func (store *Store) ListEvents(ctx context.Context, reference ledger.Reference) ([]ledger.TransactionEvent, error) {
	var rows []TransactionEvent
	err := store.db.WithContext(ctx).
		Where("reference = ?", reference.String()).
		Order("sequence").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeList, err)
	}
	events := make([]ledger.TransactionEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ledger.TransactionEvent{
			Reference:  reference,
			Kind:       ledger.EventKind(row.Kind),
			Status:     ledger.EventStatus(row.Status),
			RecordedAt: row.RecordedAt.UTC(),
		})
	}
	return events, nil
}

func newServiceRow(position int, record ledger.ServiceRecord) (Service, error) {
	allocations := make([]seatAllocation, 0, len(record.SeatMap))
	for _, allocation := range record.SeatMap {
		allocations = append(allocations, seatAllocation{Date: allocation.Date, Available: allocation.Available})
	}
	seatMap, err := json.Marshal(allocations)
	if err != nil {
		return Service{}, err
	}
	return Service{
		ServiceID:     record.ID,
		Position:      position,
		Kind:          record.Kind,
		Name:          record.Name,
		Source:        record.Source,
		Destination:   record.Destination,
		TotalSeats:    record.TotalSeats,
		BaseFareCents: record.BaseFareCents,
		PantryCar:     record.PantryCar,
		SeatMap:       datatypes.JSON(seatMap),
	}, nil
}

func newBookingRow(position int, record ledger.BookingRecord) (Booking, error) {
	riders := make([]rider, 0, len(record.Riders))
	for _, riderRecord := range record.Riders {
		riders = append(riders, rider{Name: riderRecord.Name, Age: riderRecord.Age, Gender: riderRecord.Gender})
	}
	encoded, err := json.Marshal(riders)
	if err != nil {
		return Booking{}, err
	}
	return Booking{
		Reference:  record.Reference,
		Position:   position,
		ServiceID:  record.ServiceID,
		TravelDate: record.Date,
		FareCents:  record.FareCents,
		Status:     record.Status,
		Riders:     datatypes.JSON(encoded),
	}, nil
}

func mapServiceRow(row Service) ledger.ServiceRecord {
	record := ledger.ServiceRecord{
		ID:            row.ServiceID,
		Kind:          row.Kind,
		Name:          row.Name,
		Source:        row.Source,
		Destination:   row.Destination,
		TotalSeats:    row.TotalSeats,
		BaseFareCents: row.BaseFareCents,
		PantryCar:     row.PantryCar,
	}
	var allocations []seatAllocation
	if err := json.Unmarshal(jsonOrEmpty(row.SeatMap), &allocations); err == nil {
		for _, allocation := range allocations {
			record.SeatMap = append(record.SeatMap, ledger.SeatAllocationRecord{Date: allocation.Date, Available: allocation.Available})
		}
	}
	return record
}

func mapBookingRow(row Booking) ledger.BookingRecord {
	record := ledger.BookingRecord{
		Reference: row.Reference,
		ServiceID: row.ServiceID,
		Date:      row.TravelDate,
		FareCents: row.FareCents,
		Status:    row.Status,
	}
	var riders []rider
	if err := json.Unmarshal(jsonOrEmpty(row.Riders), &riders); err == nil {
		for _, decoded := range riders {
			record.Riders = append(record.Riders, ledger.RiderRecord{Name: decoded.Name, Age: decoded.Age, Gender: decoded.Gender})
		}
	}
	return record
}

func jsonOrEmpty(raw datatypes.JSON) []byte {
	if len(raw) == 0 {
		return []byte(emptyJSONArray)
	}
	return []byte(raw)
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func classifyInsertError(subject string, err error, duplicate error) error {
	if isUniqueViolation(err) {
		return wrapStoreError(subject, errorCodeDuplicate, duplicate)
	}
	return wrapStoreError(subject, errorCodeInsert, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
