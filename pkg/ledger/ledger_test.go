package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

func newTestStore(t *testing.T) (*CSVStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracking.csv")
	store, err := NewCSVStore(utilities.LedgerConfig{Path: path}, utilities.NewLogger(utilities.Error))
	require.NoError(t, err)
	return store, path
}

func sampleRecord(asset string) position.Record {
	rec := position.NewRecord(asset, "X"+asset, asset+"USD", 2.5, 100.0,
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	rec.CurrentPrice = 104.0
	rec.UnrealizedPct = 4.0
	rec.ATHUnrealizedPct = 4.0
	return rec
}

func TestNewStoreCreatesHeader(t *testing.T) {
	_, path := newTestStore(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, strings.Join(Headers, ","), firstLine)
}

func TestNewStoreKeepsDivergentHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.csv")
	require.NoError(t, os.WriteFile(path, []byte("Foo,Bar\n"), 0o644))

	// A divergent header is a warning, never a failure.
	store, err := NewCSVStore(utilities.LedgerConfig{Path: path}, utilities.NewLogger(utilities.Fatal))
	require.NoError(t, err)
	require.NotNil(t, store)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Foo,Bar"), "existing header must not be rewritten")
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("XBT")
	rec.Armed = true
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "XBT")
	require.NoError(t, err)
	assert.Equal(t, rec.Asset, got.Asset)
	assert.Equal(t, rec.AssetCode, got.AssetCode)
	assert.Equal(t, rec.Pair, got.Pair)
	assert.InDelta(t, rec.PositionSize, got.PositionSize, 1e-12)
	assert.InDelta(t, rec.CostBasis, got.CostBasis, 1e-12)
	assert.InDelta(t, rec.UnrealizedPct, got.UnrealizedPct, 1e-12)
	assert.InDelta(t, rec.ATHUnrealizedPct, got.ATHUnrealizedPct, 1e-12)
	assert.True(t, got.Armed)
	assert.Equal(t, position.StatusActive, got.Status)
	assert.Nil(t, got.RealizedPct)
	assert.True(t, rec.LastUpdated.Equal(got.LastUpdated))
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("ETH")
	require.NoError(t, store.Upsert(ctx, rec))

	rec.CurrentPrice = 120.0
	rec.UnrealizedPct = 20.0
	require.NoError(t, store.Upsert(ctx, rec))

	records, err := store.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1, "upsert must replace, not append")
	assert.InDelta(t, 120.0, records[0].CurrentPrice, 1e-12)
}

func TestGetMissingRecord(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "DOGE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScanMultipleAndClosedFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	open := sampleRecord("SOL")
	closed := sampleRecord("ADA")
	closed.UnrealizedPct = 6.0
	closed.Close(time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC))

	require.NoError(t, store.Upsert(ctx, open))
	require.NoError(t, store.Upsert(ctx, closed))

	records, err := store.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byAsset := map[string]position.Record{}
	for _, r := range records {
		byAsset[r.Asset] = r
	}

	assert.Equal(t, position.StatusActive, byAsset["SOL"].Status)
	got := byAsset["ADA"]
	assert.Equal(t, position.StatusClosed, got.Status)
	require.NotNil(t, got.RealizedPct)
	assert.InDelta(t, 6.0, *got.RealizedPct, 1e-12)
	assert.Zero(t, got.PositionSize)
	assert.Zero(t, got.UnrealizedPct)
}

func TestScanSkipsMalformedRows(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, sampleRecord("XBT")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("BADROW,only,three\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := store.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "XBT", records[0].Asset)
}
