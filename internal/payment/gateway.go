// Package payment provides the simulated payment gateway used by the console.
package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"go.uber.org/zap"
)

const maximumPercent = 100

// SimulatedGateway approves a configurable share of payments at random.
// Refunds always succeed.
type SimulatedGateway struct {
	mu              sync.Mutex
	approvalPercent int
	random          *rand.Rand
	logger          *zap.Logger
}

// NewSimulatedGateway builds a gateway. A zero seed uses the current time.
func NewSimulatedGateway(approvalPercent int, seed int64, logger *zap.Logger) (*SimulatedGateway, error) {
	if approvalPercent < 0 || approvalPercent > maximumPercent {
		return nil, fmt.Errorf("approval percent %d outside 0-%d", approvalPercent, maximumPercent)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedGateway{
		approvalPercent: approvalPercent,
		random:          rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1))),
		logger:          logger.Named("payment"),
	}, nil
}

// AttemptPayment approves when a draw in [0,100) falls under the approval percent.
func (gateway *SimulatedGateway) AttemptPayment(_ context.Context, amount ledger.AmountCents) ledger.PaymentResult {
	gateway.mu.Lock()
	draw := gateway.random.IntN(maximumPercent)
	gateway.mu.Unlock()
	if draw < gateway.approvalPercent {
		gateway.logger.Debug("payment approved", zap.String("amount", amount.String()))
		return ledger.PaymentApproved
	}
	gateway.logger.Debug("payment declined", zap.String("amount", amount.String()))
	return ledger.PaymentDeclined
}

// IssueRefund records the refund.
func (gateway *SimulatedGateway) IssueRefund(_ context.Context, amount ledger.AmountCents) error {
	gateway.logger.Info("refund issued", zap.String("amount", amount.String()))
	return nil
}
