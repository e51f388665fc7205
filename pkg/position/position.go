package position

import "time"

// Status is the lifecycle state of a tracking record. CLOSED and
// CLOSED_EXTERNAL are terminal: a record that reaches either is never
// mutated again, only superseded by a fresh record if the asset reappears.
type Status string

const (
	StatusActive         Status = "ACTIVE"
	StatusClosed         Status = "CLOSED"
	StatusClosedExternal Status = "CLOSED_EXTERNAL"
)

// SellReason explains why the rule set decided to exit a position.
type SellReason string

const (
	ReasonStopLoss           SellReason = "STOP_LOSS"
	ReasonTrailingTakeProfit SellReason = "TRAILING_TAKE_PROFIT"
)

// Record is the tracked state of one asset position, keyed by display name.
// There is at most one record per display name at any time.
type Record struct {
	Asset     string // display name (Kraken altname, e.g. XBT)
	AssetCode string // Kraken internal code (e.g. XXBT)
	Pair      string // trading pair used for price lookups (e.g. XBTUSD)

	PositionSize float64 // current size in asset units
	CostBasis    float64 // entry price used for % calculations

	CurrentPrice     float64
	UnrealizedPct    float64 // signed % gain/loss, meaningful only while ACTIVE
	ATHUnrealizedPct float64 // high-water mark of UnrealizedPct while tracked

	Armed  bool // sticky: once armed, never disarmed for the life of the record
	Status Status

	RealizedPct *float64 // set only at close; nil while open
	LastUpdated time.Time
}

// NewRecord starts tracking an asset first observed with a nonzero balance.
// The cost basis is the first observed price; there is no import mechanism
// for an externally established basis.
func NewRecord(asset, assetCode, pair string, size, price float64, now time.Time) Record {
	return Record{
		Asset:        asset,
		AssetCode:    assetCode,
		Pair:         pair,
		PositionSize: size,
		CostBasis:    price,
		CurrentPrice: price,
		Status:       StatusActive,
		LastUpdated:  now.UTC(),
	}
}

// IsOpen reports whether the record is still being tracked.
func (r *Record) IsOpen() bool {
	return r.Status == StatusActive
}

// Close marks a record sold at its current unrealized percentage. Position
// size and unrealized percentage are zeroed; the realized percentage and the
// cost basis remain as the historical result of the campaign.
func (r *Record) Close(now time.Time) {
	realized := r.UnrealizedPct
	r.RealizedPct = &realized
	r.Status = StatusClosed
	r.PositionSize = 0
	r.UnrealizedPct = 0
	r.LastUpdated = now.UTC()
}

// CloseExternal marks a record whose asset vanished from the exchange without
// a sell from this process. The realized percentage is unknown; cost basis and
// the ATH high-water mark are kept as history.
func (r *Record) CloseExternal(now time.Time) {
	r.Status = StatusClosedExternal
	r.PositionSize = 0
	r.UnrealizedPct = 0
	r.LastUpdated = now.UTC()
}
