// Package ledger persists one tracking record per asset display name in a
// flat CSV table: a single header row, then one row per asset in a fixed
// column order. The file is the durable source of truth across restarts; the
// reconciliation engine is its only writer.
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// Headers is the required column order of the tracking table.
var Headers = []string{
	"Asset",
	"AssetCode",
	"Pair",
	"PositionSize",
	"CostBasis",
	"CurrentPrice",
	"UnrealizedPct",
	"ATHUnrealizedPct",
	"Armed",
	"Status",
	"RealizedPct",
	"LastUpdated",
}

// ErrNotFound is returned by Get when no record exists for an asset.
var ErrNotFound = errors.New("ledger: record not found")

// Store is the tracking-table contract the engine depends on.
type Store interface {
	// Get returns the record keyed by asset display name, or ErrNotFound.
	Get(ctx context.Context, asset string) (position.Record, error)

	// Upsert inserts or replaces the record keyed by its Asset field.
	Upsert(ctx context.Context, rec position.Record) error

	// Scan returns every stored record.
	Scan(ctx context.Context) ([]position.Record, error)
}

// CSVStore implements Store on a local CSV file. Every write rewrites the
// whole table through a temp file and rename, so readers never observe a
// half-written row.
type CSVStore struct {
	path   string
	logger *utilities.Logger
}

// NewCSVStore opens (or creates) the tracking table at path. A missing file is
// created with the expected header. An existing file whose header diverges is
// left untouched and used as-is: the mismatch is logged as a warning and
// processing continues, per the original table contract.
func NewCSVStore(cfg utilities.LedgerConfig, logger *utilities.Logger) (*CSVStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("ledger: path not configured")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}

	s := &CSVStore{path: cfg.Path, logger: logger}

	if err := s.ensureTable(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) ensureTable() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("ledger: create directory for %s: %w", s.path, err)
			}
		}
		s.logger.LogInfo("Ledger: tracking table %s not found, creating with header.", s.path)
		return s.writeAll(nil)
	}
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		s.logger.LogInfo("Ledger: tracking table %s is empty, writing header.", s.path)
		return s.writeAll(nil)
	}
	if err != nil {
		return fmt.Errorf("ledger: read header of %s: %w", s.path, err)
	}

	if !headerMatches(header) {
		s.logger.LogWarn("Ledger: existing header row in %s differs from expected columns %v. Continuing anyway.", s.path, Headers)
	}
	return nil
}

func headerMatches(header []string) bool {
	if len(header) != len(Headers) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(h) != Headers[i] {
			return false
		}
	}
	return true
}

// Get implements Store.
func (s *CSVStore) Get(ctx context.Context, asset string) (position.Record, error) {
	records, err := s.Scan(ctx)
	if err != nil {
		return position.Record{}, err
	}
	for _, rec := range records {
		if rec.Asset == asset {
			return rec, nil
		}
	}
	return position.Record{}, ErrNotFound
}

// Upsert implements Store. The record replaces any existing row with the same
// asset display name, preserving the invariant of one record per asset.
func (s *CSVStore) Upsert(ctx context.Context, rec position.Record) error {
	if rec.Asset == "" {
		return errors.New("ledger: record has empty asset name")
	}

	records, err := s.Scan(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].Asset == rec.Asset {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return s.writeAll(records)
}

// Scan implements Store. Rows that fail to parse are skipped with a warning
// rather than poisoning the whole table.
func (s *CSVStore) Scan(ctx context.Context) ([]position.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	var records []position.Record
	for i, row := range rows[1:] {
		rec, err := decodeRow(row)
		if err != nil {
			s.logger.LogWarn("Ledger: skipping unparseable row %d in %s: %v", i+2, s.path, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) writeAll(records []position.Record) error {
	sort.Slice(records, func(i, j int) bool { return records[i].Asset < records[j].Asset })

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("ledger: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(Headers); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ledger: write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(encodeRow(rec)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("ledger: write row for %s: %w", rec.Asset, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ledger: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: replace %s: %w", s.path, err)
	}
	return nil
}

func encodeRow(rec position.Record) []string {
	realized := ""
	if rec.RealizedPct != nil {
		realized = formatFloat(*rec.RealizedPct)
	}
	return []string{
		rec.Asset,
		rec.AssetCode,
		rec.Pair,
		formatFloat(rec.PositionSize),
		formatFloat(rec.CostBasis),
		formatFloat(rec.CurrentPrice),
		formatFloat(rec.UnrealizedPct),
		formatFloat(rec.ATHUnrealizedPct),
		formatBool(rec.Armed),
		string(rec.Status),
		realized,
		rec.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRow(row []string) (position.Record, error) {
	if len(row) < len(Headers) {
		return position.Record{}, fmt.Errorf("expected %d columns, got %d", len(Headers), len(row))
	}

	size, err := parseFloatOrZero(row[3])
	if err != nil {
		return position.Record{}, fmt.Errorf("PositionSize: %w", err)
	}
	basis, err := parseFloatOrZero(row[4])
	if err != nil {
		return position.Record{}, fmt.Errorf("CostBasis: %w", err)
	}
	price, err := parseFloatOrZero(row[5])
	if err != nil {
		return position.Record{}, fmt.Errorf("CurrentPrice: %w", err)
	}
	unreal, err := parseFloatOrZero(row[6])
	if err != nil {
		return position.Record{}, fmt.Errorf("UnrealizedPct: %w", err)
	}
	ath, err := parseFloatOrZero(row[7])
	if err != nil {
		return position.Record{}, fmt.Errorf("ATHUnrealizedPct: %w", err)
	}

	rec := position.Record{
		Asset:            strings.TrimSpace(row[0]),
		AssetCode:        strings.TrimSpace(row[1]),
		Pair:             strings.TrimSpace(row[2]),
		PositionSize:     size,
		CostBasis:        basis,
		CurrentPrice:     price,
		UnrealizedPct:    unreal,
		ATHUnrealizedPct: ath,
		Armed:            utilities.ParseTruthy(row[8]),
		Status:           position.Status(strings.ToUpper(strings.TrimSpace(row[9]))),
	}
	if rec.Asset == "" {
		return position.Record{}, errors.New("empty asset name")
	}
	if rec.Status == "" {
		rec.Status = position.StatusActive
	}

	if strings.TrimSpace(row[10]) != "" {
		realized, err := strconv.ParseFloat(strings.TrimSpace(row[10]), 64)
		if err != nil {
			return position.Record{}, fmt.Errorf("RealizedPct: %w", err)
		}
		rec.RealizedPct = &realized
	}

	if strings.TrimSpace(row[11]) != "" {
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[11]))
		if err != nil {
			return position.Record{}, fmt.Errorf("LastUpdated: %w", err)
		}
		rec.LastUpdated = ts
	}
	return rec, nil
}

func parseFloatOrZero(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
