// File: pkg/journal/journal.go
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// SQLiteJournal keeps an append-only history alongside the tracking ledger:
// every price observation per cycle, and every position close with its reason.
// The ledger holds only the latest row per asset; the journal is where you go
// to answer "what happened last Tuesday".
type SQLiteJournal struct {
	db *sql.DB
}

type Observation struct {
	Asset         string
	Pair          string
	Price         float64
	UnrealizedPct float64
	ATHPct        float64
	Armed         bool
	Timestamp     time.Time
}

type CloseEvent struct {
	Asset       string
	Pair        string
	Status      position.Status
	Reason      string
	RealizedPct float64
	TxID        string
	Timestamp   time.Time
}

func NewSQLiteJournal(cfg utilities.JournalConfig) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset TEXT NOT NULL,
		pair TEXT NOT NULL,
		price REAL NOT NULL,
		unrealized_pct REAL NOT NULL,
		ath_pct REAL NOT NULL,
		armed INTEGER NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_obs_asset_timestamp ON observations (asset, timestamp);

	CREATE TABLE IF NOT EXISTS close_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset TEXT NOT NULL,
		pair TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL,
		realized_pct REAL NOT NULL,
		txid TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_close_asset_timestamp ON close_events (asset, timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordObservation(obs Observation) error {
	armed := 0
	if obs.Armed {
		armed = 1
	}
	_, err := j.db.Exec(`INSERT INTO observations (asset, pair, price, unrealized_pct, ath_pct, armed, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.Asset, obs.Pair, obs.Price, obs.UnrealizedPct, obs.ATHPct, armed, obs.Timestamp.Unix())
	return err
}

func (j *SQLiteJournal) RecordClose(ev CloseEvent) error {
	_, err := j.db.Exec(`INSERT INTO close_events (asset, pair, status, reason, realized_pct, txid, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Asset, ev.Pair, string(ev.Status), ev.Reason, ev.RealizedPct, ev.TxID, ev.Timestamp.Unix())
	return err
}

// GetObservations returns observations for an asset within [start, end],
// oldest first.
func (j *SQLiteJournal) GetObservations(asset string, start, end time.Time) ([]Observation, error) {
	rows, err := j.db.Query(`SELECT asset, pair, price, unrealized_pct, ath_pct, armed, timestamp FROM observations WHERE asset=? AND timestamp BETWEEN ? AND ? ORDER BY timestamp ASC`,
		asset, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var obs Observation
		var armed int
		var ts int64
		if err := rows.Scan(&obs.Asset, &obs.Pair, &obs.Price, &obs.UnrealizedPct, &obs.ATHPct, &armed, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		obs.Armed = armed != 0
		obs.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, obs)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) GetCloseEvents(asset string) ([]CloseEvent, error) {
	rows, err := j.db.Query(`SELECT asset, pair, status, reason, realized_pct, txid, timestamp FROM close_events WHERE asset=? ORDER BY timestamp ASC`, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to query close events: %w", err)
	}
	defer rows.Close()

	var out []CloseEvent
	for rows.Next() {
		var ev CloseEvent
		var status string
		var ts int64
		if err := rows.Scan(&ev.Asset, &ev.Pair, &status, &ev.Reason, &ev.RealizedPct, &ev.TxID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan close event row: %w", err)
		}
		ev.Status = position.Status(status)
		ev.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CleanupOldObservations drops observation rows older than the cutoff.
// Close events are kept forever.
func (j *SQLiteJournal) CleanupOldObservations(olderThan time.Time) error {
	_, err := j.db.Exec(`DELETE FROM observations WHERE timestamp < ?`, olderThan.Unix())
	return err
}

func (j *SQLiteJournal) StartScheduledCleanup(interval time.Duration, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	go func() {
		for {
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			if err := j.CleanupOldObservations(cutoff); err != nil {
				log.Printf("Journal cleanup error: %v", err)
			}
			time.Sleep(interval)
		}
	}()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
