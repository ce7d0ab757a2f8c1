// Package filestore persists the ledger as plain files in one directory: a YAML
// snapshot, a text reference counter and an append-only transaction log.
package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"gopkg.in/yaml.v3"
)

const (
	SnapshotFileName   = "snapshot.yaml"
	QuarantineFileName = "snapshot.yaml.corrupt"
	CounterFileName    = "reference.counter"
	EventLogFileName   = "transactions.log"

	eventFieldDivider    = "|"
	eventFieldCount      = 4
	filePermissions      = 0o644
	directoryPermissions = 0o755

	errorOperationStore  = "store"
	errorSubjectSnapshot = "snapshot"
	errorSubjectCounter  = "counter"
	errorSubjectEvent    = "event"
	errorCodeRead        = "read"
	errorCodeWrite       = "write"
	errorCodeDecode      = "decode"
	errorCodeEncode      = "encode"
)

// Store implements ledger.Store over a directory.
type Store struct {
	directory string
	mu        sync.Mutex
}

// New prepares the directory and returns a Store.
func New(directory string) (*Store, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, fmt.Errorf("%w: directory is required", ledger.ErrInvalidServiceConfig)
	}
	if err := os.MkdirAll(directory, directoryPermissions); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{directory: directory}, nil
}

type snapshotDocument struct {
	Services []serviceDocument `yaml:"services"`
	Bookings []bookingDocument `yaml:"bookings"`
	Users    []userDocument    `yaml:"users"`
}

type serviceDocument struct {
	ID            string               `yaml:"id"`
	Kind          string               `yaml:"kind"`
	Name          string               `yaml:"name"`
	Source        string               `yaml:"source"`
	Destination   string               `yaml:"destination"`
	TotalSeats    lenientInt           `yaml:"total_seats"`
	BaseFareCents lenientInt           `yaml:"base_fare_cents"`
	PantryCar     bool                 `yaml:"pantry_car,omitempty"`
	SeatMap       []allocationDocument `yaml:"seat_map,omitempty"`
}

type allocationDocument struct {
	Date      string     `yaml:"date"`
	Available lenientInt `yaml:"available"`
}

type bookingDocument struct {
	Reference string          `yaml:"reference"`
	ServiceID string          `yaml:"service_id"`
	Date      string          `yaml:"date"`
	FareCents lenientInt      `yaml:"fare_cents"`
	Status    string          `yaml:"status"`
	Riders    []riderDocument `yaml:"riders"`
}

type riderDocument struct {
	Name   string     `yaml:"name"`
	Age    lenientInt `yaml:"age"`
	Gender string     `yaml:"gender"`
}

// lenientInt decodes any scalar without failing the document. A value that is
// not an integer is kept as raw text so the record can be recovered on its own.
type lenientInt struct {
	value   int64
	raw     string
	decoded bool
}

func exactInt(value int64) lenientInt {
	return lenientInt{value: value, decoded: true}
}

func (number *lenientInt) UnmarshalYAML(node *yaml.Node) error {
	number.raw = node.Value
	if node.Kind != yaml.ScalarNode {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(node.Value), 10, 64)
	if err != nil {
		return nil
	}
	number.value = value
	number.decoded = true
	return nil
}

func (number lenientInt) MarshalYAML() (interface{}, error) {
	return number.value, nil
}

// defect describes an undecodable field, or returns "" when the value is usable.
func (number lenientInt) defect(field string) string {
	if number.decoded {
		return ""
	}
	return fmt.Sprintf("%s %q is not an integer", field, number.raw)
}

type userDocument struct {
	Role         string `yaml:"role"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// LoadSnapshot reads the YAML snapshot. A missing file is an empty snapshot.
// Malformed numbers are reported per record; a document that is not YAML at all
// is moved aside to QuarantineFileName so that later saves cannot overwrite it.
func (store *Store) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	contents, err := os.ReadFile(store.path(SnapshotFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.Snapshot{}, nil
	}
	if err != nil {
		return ledger.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeRead, err)
	}
	var document snapshotDocument
	if err := yaml.Unmarshal(contents, &document); err != nil {
		cause := fmt.Errorf("%w: %v", ledger.ErrCorruptPersistedState, err)
		if renameErr := os.Rename(store.path(SnapshotFileName), store.path(QuarantineFileName)); renameErr != nil {
			cause = fmt.Errorf("%w (quarantine failed: %v)", cause, renameErr)
		}
		return ledger.Snapshot{}, wrapStoreError(errorSubjectSnapshot, errorCodeDecode, cause)
	}
	return document.toSnapshot(), nil
}

// SaveSnapshot rewrites the YAML snapshot through a temporary file.
func (store *Store) SaveSnapshot(ctx context.Context, snapshot ledger.Snapshot) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	contents, err := yaml.Marshal(newSnapshotDocument(snapshot))
	if err != nil {
		return wrapStoreError(errorSubjectSnapshot, errorCodeEncode, err)
	}
	if err := store.replaceFile(SnapshotFileName, contents); err != nil {
		return wrapStoreError(errorSubjectSnapshot, errorCodeWrite, err)
	}
	return nil
}

// LoadCounter reads the counter file.
func (store *Store) LoadCounter(ctx context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	contents, err := os.ReadFile(store.path(CounterFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ledger.ErrCounterNotFound
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCounter, errorCodeRead, err)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 64)
	if err != nil {
		return 0, wrapStoreError(errorSubjectCounter, errorCodeDecode, fmt.Errorf("%w: %q", ledger.ErrCorruptPersistedState, strings.TrimSpace(string(contents))))
	}
	return value, nil
}

// SaveCounter overwrites the counter file.
func (store *Store) SaveCounter(ctx context.Context, value int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if err := store.replaceFile(CounterFileName, []byte(strconv.FormatInt(value, 10)+"\n")); err != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeWrite, err)
	}
	return nil
}

// AppendEvent appends "timestamp|reference|kind|status" to the transaction log.
func (store *Store) AppendEvent(ctx context.Context, event ledger.TransactionEvent) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	recordedAt := event.RecordedAt.UTC()
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	line := strings.Join([]string{
		recordedAt.Format(time.RFC3339),
		event.Reference.String(),
		string(event.Kind),
		string(event.Status),
	}, eventFieldDivider) + "\n"
	file, err := os.OpenFile(store.path(EventLogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeWrite, err)
	}
	if _, err := file.WriteString(line); err != nil {
		_ = file.Close()
		return wrapStoreError(errorSubjectEvent, errorCodeWrite, err)
	}
	if err := file.Close(); err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeWrite, err)
	}
	return nil
}

// ListEvents scans the log for lines of one reference. Malformed lines are skipped.
func (store *Store) ListEvents(ctx context.Context, reference ledger.Reference) ([]ledger.TransactionEvent, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	events := make([]ledger.TransactionEvent, 0)
	file, err := os.Open(store.path(EventLogFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return events, nil
	}
	if err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeRead, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), eventFieldDivider)
		if len(fields) != eventFieldCount || fields[1] != reference.String() {
			continue
		}
		recordedAt, err := time.Parse(time.RFC3339, fields[0])
		if err != nil {
			continue
		}
		events = append(events, ledger.TransactionEvent{
			Reference:  reference,
			Kind:       ledger.EventKind(fields[2]),
			Status:     ledger.EventStatus(fields[3]),
			RecordedAt: recordedAt,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeRead, err)
	}
	return events, nil
}

func (store *Store) path(name string) string {
	return filepath.Join(store.directory, name)
}

func (store *Store) replaceFile(name string, contents []byte) error {
	temporary, err := os.CreateTemp(store.directory, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := temporary.Write(contents); err != nil {
		_ = temporary.Close()
		_ = os.Remove(temporary.Name())
		return err
	}
	if err := temporary.Close(); err != nil {
		_ = os.Remove(temporary.Name())
		return err
	}
	if err := os.Chmod(temporary.Name(), filePermissions); err != nil {
		_ = os.Remove(temporary.Name())
		return err
	}
	return os.Rename(temporary.Name(), store.path(name))
}

func newSnapshotDocument(snapshot ledger.Snapshot) snapshotDocument {
	document := snapshotDocument{}
	for _, record := range snapshot.Services {
		service := serviceDocument{
			ID:            record.ID,
			Kind:          record.Kind,
			Name:          record.Name,
			Source:        record.Source,
			Destination:   record.Destination,
			TotalSeats:    exactInt(int64(record.TotalSeats)),
			BaseFareCents: exactInt(record.BaseFareCents),
			PantryCar:     record.PantryCar,
		}
		for _, allocation := range record.SeatMap {
			service.SeatMap = append(service.SeatMap, allocationDocument{Date: allocation.Date, Available: exactInt(int64(allocation.Available))})
		}
		document.Services = append(document.Services, service)
	}
	for _, record := range snapshot.Bookings {
		booking := bookingDocument{
			Reference: record.Reference,
			ServiceID: record.ServiceID,
			Date:      record.Date,
			FareCents: exactInt(record.FareCents),
			Status:    record.Status,
		}
		for _, rider := range record.Riders {
			booking.Riders = append(booking.Riders, riderDocument{Name: rider.Name, Age: exactInt(int64(rider.Age)), Gender: rider.Gender})
		}
		document.Bookings = append(document.Bookings, booking)
	}
	for _, record := range snapshot.Users {
		document.Users = append(document.Users, userDocument{Role: record.Role, Username: record.Username, PasswordHash: record.PasswordHash})
	}
	return document
}

func (document snapshotDocument) toSnapshot() ledger.Snapshot {
	snapshot := ledger.Snapshot{}
	for _, service := range document.Services {
		record := ledger.ServiceRecord{
			ID:            service.ID,
			Kind:          service.Kind,
			Name:          service.Name,
			Source:        service.Source,
			Destination:   service.Destination,
			TotalSeats:    int(service.TotalSeats.value),
			BaseFareCents: service.BaseFareCents.value,
			PantryCar:     service.PantryCar,
			Defect:        firstDefect(service.TotalSeats.defect("total_seats"), service.BaseFareCents.defect("base_fare_cents")),
		}
		for _, allocation := range service.SeatMap {
			record.SeatMap = append(record.SeatMap, ledger.SeatAllocationRecord{
				Date:      allocation.Date,
				Available: int(allocation.Available.value),
				Defect:    allocation.Available.defect("available"),
			})
		}
		snapshot.Services = append(snapshot.Services, record)
	}
	for _, booking := range document.Bookings {
		record := ledger.BookingRecord{
			Reference: booking.Reference,
			ServiceID: booking.ServiceID,
			Date:      booking.Date,
			FareCents: booking.FareCents.value,
			Status:    booking.Status,
			Defect:    booking.FareCents.defect("fare_cents"),
		}
		for _, rider := range booking.Riders {
			record.Defect = firstDefect(record.Defect, rider.Age.defect("age"))
			record.Riders = append(record.Riders, ledger.RiderRecord{Name: rider.Name, Age: int(rider.Age.value), Gender: rider.Gender})
		}
		snapshot.Bookings = append(snapshot.Bookings, record)
	}
	for _, user := range document.Users {
		snapshot.Users = append(snapshot.Users, ledger.UserRecord{Role: user.Role, Username: user.Username, PasswordHash: user.PasswordHash})
	}
	return snapshot
}

func firstDefect(defects ...string) string {
	for _, defect := range defects {
		if defect != "" {
			return defect
		}
	}
	return ""
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}
