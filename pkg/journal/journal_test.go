// File: pkg/journal/journal_test.go
package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(utilities.JournalConfig{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestObservationRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordObservation(Observation{
		Asset: "SOL", Pair: "SOLUSD", Price: 105.5,
		UnrealizedPct: 5.5, ATHPct: 6.0, Armed: true, Timestamp: now,
	}))
	require.NoError(t, j.RecordObservation(Observation{
		Asset: "SOL", Pair: "SOLUSD", Price: 103.0,
		UnrealizedPct: 3.0, ATHPct: 6.0, Armed: true, Timestamp: now.Add(time.Minute),
	}))

	got, err := j.GetObservations("SOL", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 105.5, got[0].Price, 1e-9)
	assert.True(t, got[0].Armed)
	assert.Equal(t, now, got[0].Timestamp)
	assert.InDelta(t, 3.0, got[1].UnrealizedPct, 1e-9)
}

func TestCloseEventRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordClose(CloseEvent{
		Asset: "SOL", Pair: "SOLUSD",
		Status: position.StatusClosed, Reason: "TRAILING_TAKE_PROFIT",
		RealizedPct: 6.0, TxID: "OABC-123", Timestamp: now,
	}))

	got, err := j.GetCloseEvents("SOL")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, position.StatusClosed, got[0].Status)
	assert.Equal(t, "TRAILING_TAKE_PROFIT", got[0].Reason)
	assert.Equal(t, "OABC-123", got[0].TxID)
	assert.InDelta(t, 6.0, got[0].RealizedPct, 1e-9)
}

func TestCleanupDropsOnlyOldObservations(t *testing.T) {
	j := newTestJournal(t)
	now := time.Now().UTC().Truncate(time.Second)
	old := now.AddDate(0, 0, -60)

	require.NoError(t, j.RecordObservation(Observation{
		Asset: "ETH", Pair: "ETHUSD", Price: 2000, Timestamp: old,
	}))
	require.NoError(t, j.RecordObservation(Observation{
		Asset: "ETH", Pair: "ETHUSD", Price: 2100, Timestamp: now,
	}))
	require.NoError(t, j.RecordClose(CloseEvent{
		Asset: "ETH", Pair: "ETHUSD", Status: position.StatusClosedExternal, Timestamp: old,
	}))

	require.NoError(t, j.CleanupOldObservations(now.AddDate(0, 0, -30)))

	obs, err := j.GetObservations("ETH", old.AddDate(0, 0, -1), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.InDelta(t, 2100, obs[0].Price, 1e-9)

	// Close events survive cleanup.
	events, err := j.GetCloseEvents("ETH")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
