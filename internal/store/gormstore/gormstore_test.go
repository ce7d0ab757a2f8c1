package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(test *testing.T) (*Store, string) {
	test.Helper()
	path := filepath.Join(test.TempDir(), "seatledger.db")
	return openTestStore(test, path), path
}

func openTestStore(test *testing.T, path string) *Store {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(test, err)
	sqlDB, err := db.DB()
	require.NoError(test, err)
	test.Cleanup(func() { _ = sqlDB.Close() })
	store := New(db)
	require.NoError(test, store.Migrate(context.Background()))
	return store
}

func sampleSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Services: []ledger.ServiceRecord{
			{ID: "ET001", Kind: "express", Name: "Fast Express", Source: "CityA", Destination: "CityB", TotalSeats: 10, BaseFareCents: 5500, PantryCar: true,
				SeatMap: []ledger.SeatAllocationRecord{{Date: "12/25/2025", Available: 7}}},
			{ID: "SR205", Kind: "express", Name: "Slow Runner", Source: "CityB", Destination: "CityC", TotalSeats: 50, BaseFareCents: 7550},
		},
		Bookings: []ledger.BookingRecord{
			{Reference: "100000000001", ServiceID: "ET001", Date: "12/25/2025", FareCents: 16500, Status: "Confirmed",
				Riders: []ledger.RiderRecord{{Name: "Ana", Age: 34, Gender: "F"}, {Name: "Ben", Age: 36, Gender: "M"}, {Name: "Cy", Age: 5, Gender: "O"}}},
			{Reference: "100000000002", ServiceID: "ET001", Date: "12/25/2025", FareCents: 5500, Status: "Waitlisted",
				Riders: []ledger.RiderRecord{{Name: "Dee", Age: 61, Gender: "F"}}},
		},
		Users: []ledger.UserRecord{
			{Role: "Admin", Username: "admin", PasswordHash: "$2a$04$hash"},
			{Role: "Customer", Username: "user", PasswordHash: "123"},
		},
	}
}

func TestSnapshotRoundTrip(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()

	empty, err := store.LoadSnapshot(ctx)
	require.NoError(test, err)
	assert.Empty(test, empty.Services)
	assert.Empty(test, empty.Bookings)

	expected := sampleSnapshot()
	require.NoError(test, store.SaveSnapshot(ctx, expected))
	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(test, err)
	assert.Equal(test, expected, loaded)
}

func TestSaveSnapshotReplacesPreviousState(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()
	require.NoError(test, store.SaveSnapshot(ctx, sampleSnapshot()))

	smaller := sampleSnapshot()
	smaller.Services = smaller.Services[:1]
	smaller.Bookings[1].Status = "Cancelled"
	require.NoError(test, store.SaveSnapshot(ctx, smaller))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(test, err)
	require.Len(test, loaded.Services, 1)
	require.Len(test, loaded.Bookings, 2)
	assert.Equal(test, "Cancelled", loaded.Bookings[1].Status)
}

func TestSaveSnapshotRejectsDuplicateReferenceAtomically(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()
	require.NoError(test, store.SaveSnapshot(ctx, sampleSnapshot()))

	broken := sampleSnapshot()
	broken.Bookings[1].Reference = broken.Bookings[0].Reference
	err := store.SaveSnapshot(ctx, broken)
	require.ErrorIs(test, err, ledger.ErrDuplicateReference)

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(test, err)
	assert.Equal(test, sampleSnapshot(), loaded)
}

func TestLoadSnapshotToleratesCorruptJSON(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()
	require.NoError(test, store.SaveSnapshot(ctx, sampleSnapshot()))
	require.NoError(test, store.db.Model(&Booking{}).Where("reference = ?", "100000000002").Update("riders", "{not json").Error)
	require.NoError(test, store.db.Model(&Service{}).Where("service_id = ?", "ET001").Update("seat_map", "[").Error)

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(test, err)
	assert.Empty(test, loaded.Bookings[1].Riders)
	assert.Empty(test, loaded.Services[0].SeatMap)
	assert.Len(test, loaded.Bookings[0].Riders, 3)
}

func TestCounterLifecycle(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()

	_, err := store.LoadCounter(ctx)
	require.ErrorIs(test, err, ledger.ErrCounterNotFound)

	require.NoError(test, store.SaveCounter(ctx, 100000000001))
	require.NoError(test, store.SaveCounter(ctx, 100000000002))
	value, err := store.LoadCounter(ctx)
	require.NoError(test, err)
	assert.Equal(test, int64(100000000002), value)
}

func TestEventsAppendAndListByReference(test *testing.T) {
	test.Parallel()
	store, _ := newTestStore(test)
	ctx := context.Background()
	first, err := ledger.NewReference(100000000001)
	require.NoError(test, err)
	second, err := ledger.NewReference(100000000002)
	require.NoError(test, err)
	recordedAt := time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)

	events := []ledger.TransactionEvent{
		{Reference: first, Kind: ledger.EventBookingAttempt, Status: ledger.EventStatusPendingPayment, RecordedAt: recordedAt},
		{Reference: second, Kind: ledger.EventBookingAttempt, Status: ledger.EventStatusPendingPayment, RecordedAt: recordedAt},
		{Reference: first, Kind: ledger.EventPaymentSuccess, Status: ledger.EventStatusCommitted, RecordedAt: recordedAt},
	}
	for _, event := range events {
		require.NoError(test, store.AppendEvent(ctx, event))
	}

	listed, err := store.ListEvents(ctx, first)
	require.NoError(test, err)
	require.Len(test, listed, 2)
	assert.Equal(test, ledger.EventBookingAttempt, listed[0].Kind)
	assert.Equal(test, ledger.EventPaymentSuccess, listed[1].Kind)
	assert.True(test, listed[1].RecordedAt.Equal(recordedAt))

	var stored []TransactionEvent
	require.NoError(test, store.db.Find(&stored).Error)
	require.Len(test, stored, 3)
	assert.NotEqual(test, stored[0].EventID, stored[1].EventID)
}

type approvingGateway struct{}

func (approvingGateway) AttemptPayment(context.Context, ledger.AmountCents) ledger.PaymentResult {
	return ledger.PaymentApproved
}

func (approvingGateway) IssueRefund(context.Context, ledger.AmountCents) error { return nil }

func TestServiceSurvivesRestartOnSQLite(test *testing.T) {
	test.Parallel()
	_, path := newTestStore(test)
	ctx := context.Background()
	clock := func() int64 { return 1735084800 }
	rider, err := ledger.NewRider("Ana", 34, "F")
	require.NoError(test, err)

	first, err := ledger.NewService(ctx, openTestStore(test, path), approvingGateway{}, clock, ledger.WithPasswordCost(bcrypt.MinCost))
	require.NoError(test, err)
	outcome, err := first.Book(ctx, ledger.BookingRequest{ServiceID: "ET001", Date: "12/25/2025", Riders: []ledger.Rider{rider}})
	require.NoError(test, err)

	second, err := ledger.NewService(ctx, openTestStore(test, path), approvingGateway{}, clock, ledger.WithPasswordCost(bcrypt.MinCost))
	require.NoError(test, err)
	available, err := second.Availability("ET001", "12/25/2025")
	require.NoError(test, err)
	assert.Equal(test, 9, available)
	assert.Equal(test, outcome.Reference.Int64(), second.LastReference())

	history, err := second.History(ctx, outcome.Reference)
	require.NoError(test, err)
	require.Len(test, history, 2)
	assert.Equal(test, ledger.EventStatusCommitted, history[1].Status)

	_, err = second.Authenticate(ctx, "admin", "123")
	require.NoError(test, err)
}
