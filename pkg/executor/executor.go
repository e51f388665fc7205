// File: pkg/executor/executor.go
package executor

import (
	"context"
	"fmt"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/broker"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// ExecutionError wraps a broker failure while placing an exit order. Callers
// use it to distinguish "order could not be placed" from evaluation errors.
type ExecutionError struct {
	Pair   string
	Reason position.SellReason
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sell on %s (%s) failed: %v", e.Pair, e.Reason, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SellResult describes the outcome of an Execute call.
type SellResult struct {
	Submitted bool
	DryRun    bool
	TxID      string
}

// OrderExecutor places exit orders for the reconciliation engine. In dry-run
// mode it logs the intent and reports the order as submitted without touching
// the broker, so the rest of the pipeline (closing records, notifications)
// behaves exactly as it would live.
type OrderExecutor struct {
	broker broker.Broker
	logger *utilities.Logger
	dryRun bool
}

func NewOrderExecutor(b broker.Broker, dryRun bool, logger *utilities.Logger) *OrderExecutor {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	return &OrderExecutor{broker: b, logger: logger, dryRun: dryRun}
}

func (e *OrderExecutor) DryRun() bool { return e.dryRun }

// Execute submits a reduce-only market sell for the full position size.
// It does not retry: the engine keeps the record ACTIVE on failure and the
// next cycle re-evaluates from fresh data.
func (e *OrderExecutor) Execute(ctx context.Context, rec position.Record, reason position.SellReason) (SellResult, error) {
	if rec.PositionSize <= 0 {
		return SellResult{}, &ExecutionError{
			Pair:   rec.Pair,
			Reason: reason,
			Err:    fmt.Errorf("position size %f is not sellable", rec.PositionSize),
		}
	}

	if e.dryRun {
		e.logger.LogWarn("DRY RUN: would sell %s %.8f %s at %.8f (%s, unrealized %.2f%%)",
			rec.Pair, rec.PositionSize, rec.Asset, rec.CurrentPrice, reason, rec.UnrealizedPct)
		return SellResult{Submitted: true, DryRun: true}, nil
	}

	txid, err := e.broker.PlaceMarketSell(ctx, rec.Pair, rec.PositionSize, true)
	if err != nil {
		return SellResult{}, &ExecutionError{Pair: rec.Pair, Reason: reason, Err: err}
	}
	e.logger.LogInfo("Executor: SELL submitted for %s (%s), volume=%.8f, txid=%s",
		rec.Pair, reason, rec.PositionSize, txid)
	return SellResult{Submitted: true, TxID: txid}, nil
}
