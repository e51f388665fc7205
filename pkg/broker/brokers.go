// File: pkg/broker/brokers.go
package broker

import (
	"context"
	"time"
)

// Broker defines the interface for the exchange operations the reconciliation
// engine consumes. Implementations own authentication, signing, and rate
// limiting; callers see only the abstract contract.
type Broker interface {
	// RefreshAssetInfo ensures the implementation has the latest asset
	// directory (internal code to display-name mapping).
	RefreshAssetInfo(ctx context.Context) error

	// GetAllBalances retrieves every account balance, keyed by the venue's
	// internal asset code.
	GetAllBalances(ctx context.Context) ([]Balance, error)

	// GetCommonAssetName translates a venue-internal asset code (e.g. XXBT)
	// to its display name (altname, e.g. XBT).
	GetCommonAssetName(ctx context.Context, assetCode string) (string, error)

	// GetTicker retrieves ticker data for a trading pair (e.g. "XBTUSD").
	GetTicker(ctx context.Context, pair string) (TickerData, error)

	// PlaceMarketSell submits a market sell for the given volume. reduceOnly
	// guarantees the order can only decrease exposure. Returns the venue's
	// order ID.
	PlaceMarketSell(ctx context.Context, pair string, volume float64, reduceOnly bool) (string, error)
}

// Balance represents the balance of a single asset.
type Balance struct {
	Code  string  `json:"code"`  // venue-internal asset code, e.g. "XXBT"
	Total float64 `json:"total"` // total amount held
}

// TickerData contains current market ticker information for a trading pair.
type TickerData struct {
	Pair      string    `json:"pair"`       // trading pair as requested
	Bid       float64   `json:"bid"`        // current highest bid price
	Ask       float64   `json:"ask"`        // current lowest ask price
	LastPrice float64   `json:"last_price"` // price of the last trade
	Timestamp time.Time `json:"timestamp"`  // when the ticker data was fetched
}
