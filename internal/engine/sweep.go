package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/openslot/openslot/internal/domain"
)

// sweepBatchSize bounds how many rows one sweep tick picks up.
const sweepBatchSize = 100

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	AuctionsClosed    int `json:"auctionsClosed"`
	ContractsBreached int `json:"contractsBreached"`
	Errors            int `json:"errors"`
}

// CloseDueAuctions closes every slot whose auction window has ended. Losing
// a close race to another instance is expected and not counted as an error.
func (e *Engine) CloseDueAuctions(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	due, err := e.store.Slots().ListDueOpen(ctx, e.now(), sweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("list due auctions: %w", err)
	}

	for _, slot := range due {
		if _, err := e.CloseAuction(ctx, slot.ID); err != nil {
			if errors.Is(err, domain.ErrNotClosable) {
				continue
			}
			report.Errors++
			e.log.Error("close auction", "slot_id", slot.ID, "error", err)
			continue
		}
		report.AuctionsClosed++
	}
	return report, nil
}

// BreachOverdueContracts breaches every active contract past its deadline.
func (e *Engine) BreachOverdueContracts(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	overdue, err := e.store.Contracts().ListOverdueActive(ctx, e.now(), sweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("list overdue contracts: %w", err)
	}

	for _, contract := range overdue {
		acted, err := e.AutoBreach(ctx, contract.ID)
		if err != nil {
			report.Errors++
			e.log.Error("breach contract", "contract_id", contract.ID, "error", err)
			continue
		}
		if acted {
			report.ContractsBreached++
		}
	}
	return report, nil
}

// Sweep runs both sweeps and merges their reports.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	closed, err := e.CloseDueAuctions(ctx)
	if err != nil {
		return closed, err
	}
	breached, err := e.BreachOverdueContracts(ctx)
	if err != nil {
		return closed, err
	}
	return SweepReport{
		AuctionsClosed:    closed.AuctionsClosed,
		ContractsBreached: breached.ContractsBreached,
		Errors:            closed.Errors + breached.Errors,
	}, nil
}
