package ledger

import (
	"errors"
	"testing"
)

func TestParseTravelDate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "12/25/2025"},
		{name: "trimmed", input: " 01/01/2026 "},
		{name: "month out of range", input: "13/40/2025", wantErr: true},
		{name: "day out of range", input: "02/30/2025", wantErr: true},
		{name: "short year", input: "12/25/25", wantErr: true},
		{name: "unpadded", input: "1/5/2025", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong separators", input: "12-25-2025", wantErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, err := ParseTravelDate(testCase.input)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					test.Fatalf("expected ErrInvalidDate, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewRiderValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		rider   string
		age     int
		gender  string
		wantErr bool
	}{
		{name: "valid", rider: "Ana", age: 34, gender: "f"},
		{name: "oldest", rider: "Ana", age: 119, gender: "O"},
		{name: "empty name", rider: " ", age: 34, gender: "F", wantErr: true},
		{name: "age zero", rider: "Ana", age: 0, gender: "F", wantErr: true},
		{name: "age too high", rider: "Ana", age: 120, gender: "F", wantErr: true},
		{name: "unknown gender", rider: "Ana", age: 34, gender: "X", wantErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			rider, err := NewRider(testCase.rider, testCase.age, testCase.gender)
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidRiders) {
					test.Fatalf("expected ErrInvalidRiders, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if rider.Gender() != "F" && rider.Gender() != "O" {
				test.Fatalf("expected normalized gender, got %q", rider.Gender())
			}
		})
	}
}

func TestAmountCentsArithmetic(test *testing.T) {
	test.Parallel()
	fare, err := ParseAmountCents("55.00")
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	total := fare.Times(3)
	if total.Int64() != 16500 {
		test.Fatalf("expected 16500 cents, got %d", total.Int64())
	}
	if refund := total.Percent(confirmedRefundPercent); refund.String() != "132.00" {
		test.Fatalf("expected 132.00 refund, got %s", refund)
	}
	if odd := AmountCents(7550).Percent(confirmedRefundPercent); odd.Int64() != 6040 {
		test.Fatalf("expected 6040 cents, got %d", odd.Int64())
	}
	if _, err := ParseAmountCents("free"); !errors.Is(err, ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents, got %v", err)
	}
	if _, err := ParseAmountCents("0"); !errors.Is(err, ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents for zero, got %v", err)
	}
}

func TestParseBookingStatusAcceptsLegacySpelling(test *testing.T) {
	test.Parallel()
	status, err := ParseBookingStatus("Waitlist")
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	if status != BookingStatusWaitlisted {
		test.Fatalf("expected Waitlisted, got %s", status)
	}
	if _, err := ParseBookingStatus("Pending"); !errors.Is(err, ErrInvalidBookingStatus) {
		test.Fatalf("expected ErrInvalidBookingStatus, got %v", err)
	}
}

func TestReferenceParsing(test *testing.T) {
	test.Parallel()
	reference, err := ParseReference("100000000001")
	if err != nil {
		test.Fatalf("parse: %v", err)
	}
	if reference.Int64() != 100000000001 || reference.String() != "100000000001" {
		test.Fatalf("unexpected reference %v", reference)
	}
	for _, raw := range []string{"", "abc", "0", "-4"} {
		if _, err := ParseReference(raw); !errors.Is(err, ErrInvalidReference) {
			test.Fatalf("expected ErrInvalidReference for %q, got %v", raw, err)
		}
	}
}

func TestServiceIDRejectsKeyDivider(test *testing.T) {
	test.Parallel()
	if _, err := NewServiceID("ET|001"); !errors.Is(err, ErrInvalidServiceID) {
		test.Fatalf("expected ErrInvalidServiceID, got %v", err)
	}
	key := WaitlistKey{ServiceID: mustServiceID(test, "ET001"), Date: mustTravelDate(test, "12/25/2025")}
	if key.String() != "ET001|12/25/2025" {
		test.Fatalf("unexpected key %q", key.String())
	}
}
