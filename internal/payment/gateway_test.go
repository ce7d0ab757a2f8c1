package payment

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
)

func TestSimulatedGatewayExtremes(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		percent  int
		expected ledger.PaymentResult
	}{
		{name: "always approve", percent: 100, expected: ledger.PaymentApproved},
		{name: "always decline", percent: 0, expected: ledger.PaymentDeclined},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			gateway, err := NewSimulatedGateway(testCase.percent, 7, nil)
			if err != nil {
				test.Fatalf("gateway: %v", err)
			}
			for attempt := 0; attempt < 50; attempt++ {
				if result := gateway.AttemptPayment(context.Background(), 5500); result != testCase.expected {
					test.Fatalf("attempt %d: expected %v, got %v", attempt, testCase.expected, result)
				}
			}
		})
	}
}

func TestSimulatedGatewayIsDeterministicForSeed(test *testing.T) {
	test.Parallel()
	first, err := NewSimulatedGateway(50, 42, nil)
	if err != nil {
		test.Fatalf("gateway: %v", err)
	}
	second, err := NewSimulatedGateway(50, 42, nil)
	if err != nil {
		test.Fatalf("gateway: %v", err)
	}
	approved := 0
	for attempt := 0; attempt < 200; attempt++ {
		left := first.AttemptPayment(context.Background(), 100)
		right := second.AttemptPayment(context.Background(), 100)
		if left != right {
			test.Fatalf("attempt %d: seeded gateways diverged", attempt)
		}
		if left == ledger.PaymentApproved {
			approved++
		}
	}
	if approved == 0 || approved == 200 {
		test.Fatalf("expected a mix of outcomes at 50%%, got %d approvals", approved)
	}
}

func TestSimulatedGatewayValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewSimulatedGateway(101, 1, nil); err == nil {
		test.Fatalf("expected error for percent above 100")
	}
	gateway, err := NewSimulatedGateway(80, 0, nil)
	if err != nil {
		test.Fatalf("gateway: %v", err)
	}
	if err := gateway.IssueRefund(context.Background(), 4400); err != nil {
		test.Fatalf("refund: %v", err)
	}
}
