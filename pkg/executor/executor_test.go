// File: pkg/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/broker"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

type fakeBroker struct {
	sells      []sellCall
	sellTxID   string
	sellErr    error
	reduceOnly bool
}

type sellCall struct {
	pair   string
	volume float64
}

func (f *fakeBroker) RefreshAssetInfo(ctx context.Context) error { return nil }

func (f *fakeBroker) GetAllBalances(ctx context.Context) ([]broker.Balance, error) {
	return nil, nil
}

func (f *fakeBroker) GetCommonAssetName(ctx context.Context, assetCode string) (string, error) {
	return assetCode, nil
}

func (f *fakeBroker) GetTicker(ctx context.Context, pair string) (broker.TickerData, error) {
	return broker.TickerData{}, nil
}

func (f *fakeBroker) PlaceMarketSell(ctx context.Context, pair string, volume float64, reduceOnly bool) (string, error) {
	f.sells = append(f.sells, sellCall{pair: pair, volume: volume})
	f.reduceOnly = reduceOnly
	if f.sellErr != nil {
		return "", f.sellErr
	}
	return f.sellTxID, nil
}

func quietLogger() *utilities.Logger {
	return utilities.NewLogger(utilities.Fatal)
}

func testRecord() position.Record {
	return position.Record{
		Asset:        "SOL",
		AssetCode:    "SOL",
		Pair:         "SOLUSD",
		PositionSize: 2.5,
		CostBasis:    100,
		CurrentPrice: 96,
		Status:       position.StatusActive,
	}
}

func TestExecuteSubmitsReduceOnlyMarketSell(t *testing.T) {
	fb := &fakeBroker{sellTxID: "OABC-123"}
	ex := NewOrderExecutor(fb, false, quietLogger())

	res, err := ex.Execute(context.Background(), testRecord(), position.ReasonStopLoss)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.False(t, res.DryRun)
	assert.Equal(t, "OABC-123", res.TxID)
	require.Len(t, fb.sells, 1)
	assert.Equal(t, "SOLUSD", fb.sells[0].pair)
	assert.InDelta(t, 2.5, fb.sells[0].volume, 1e-12)
	assert.True(t, fb.reduceOnly)
}

func TestExecuteDryRunSkipsBroker(t *testing.T) {
	fb := &fakeBroker{sellTxID: "SHOULD-NOT-HAPPEN"}
	ex := NewOrderExecutor(fb, true, quietLogger())

	res, err := ex.Execute(context.Background(), testRecord(), position.ReasonTrailingTakeProfit)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.True(t, res.DryRun)
	assert.Empty(t, res.TxID)
	assert.Empty(t, fb.sells)
}

func TestExecuteWrapsBrokerFailure(t *testing.T) {
	brokerErr := errors.New("EGeneral:Invalid arguments")
	fb := &fakeBroker{sellErr: brokerErr}
	ex := NewOrderExecutor(fb, false, quietLogger())

	res, err := ex.Execute(context.Background(), testRecord(), position.ReasonStopLoss)
	require.Error(t, err)
	assert.False(t, res.Submitted)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "SOLUSD", execErr.Pair)
	assert.Equal(t, position.ReasonStopLoss, execErr.Reason)
	assert.ErrorIs(t, err, brokerErr)
	// One attempt only; retry belongs to the next reconciliation cycle.
	require.Len(t, fb.sells, 1)
}

func TestExecuteRejectsEmptyPosition(t *testing.T) {
	fb := &fakeBroker{}
	ex := NewOrderExecutor(fb, false, quietLogger())

	rec := testRecord()
	rec.PositionSize = 0
	_, err := ex.Execute(context.Background(), rec, position.ReasonStopLoss)
	require.Error(t, err)
	assert.Empty(t, fb.sells)
}
