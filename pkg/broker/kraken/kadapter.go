// File: pkg/broker/kraken/kadapter.go
package kraken

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/broker"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// Adapter implements broker.Broker on top of the Kraken REST client.
type Adapter struct {
	client *Client
	logger *utilities.Logger
}

func NewAdapter(appCfg *utilities.KrakenConfig, httpClient *http.Client, logger *utilities.Logger) (*Adapter, error) {
	if appCfg == nil {
		return nil, fmt.Errorf("KrakenConfig cannot be nil for Adapter")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("Kraken Adapter: Logger fallback used.")
	}
	client := NewClient(appCfg, httpClient, logger)
	return &Adapter{client: client, logger: logger}, nil
}

func (a *Adapter) RefreshAssetInfo(ctx context.Context) error {
	return a.client.RefreshAssets(ctx)
}

// GetAllBalances returns every balance entry Kraken reports, including zero
// balances and earn variants (code suffixed with ".F"). Filtering is the
// caller's concern.
func (a *Adapter) GetAllBalances(ctx context.Context) ([]broker.Balance, error) {
	raw, err := a.client.GetBalancesAPI(ctx)
	if err != nil {
		return nil, fmt.Errorf("kraken: fetch balances: %w", err)
	}
	balances := make([]broker.Balance, 0, len(raw))
	for code, amountStr := range raw {
		amount, parseErr := strconv.ParseFloat(amountStr, 64)
		if parseErr != nil {
			a.logger.LogWarn("Kraken Adapter: could not parse balance %q for asset %s: %v. Skipping.", amountStr, code, parseErr)
			continue
		}
		balances = append(balances, broker.Balance{Code: code, Total: amount})
	}
	return balances, nil
}

// GetCommonAssetName maps a Kraken balance code to its display altname.
// Earn-program balances come back as "XXBT.F"; the suffix is stripped before
// the directory lookup so both spot and earn holdings resolve the same way.
func (a *Adapter) GetCommonAssetName(ctx context.Context, assetCode string) (string, error) {
	base := strings.TrimSuffix(assetCode, ".F")
	return a.client.GetCommonAssetName(ctx, base)
}

func (a *Adapter) GetTicker(ctx context.Context, pair string) (broker.TickerData, error) {
	info, err := a.client.GetTickerAPI(ctx, pair)
	if err != nil {
		return broker.TickerData{}, fmt.Errorf("kraken: fetch ticker for %s: %w", pair, err)
	}

	parseFirst := func(values []string, field string) (float64, error) {
		if len(values) == 0 {
			return 0, fmt.Errorf("kraken: ticker for %s missing %s", pair, field)
		}
		v, parseErr := strconv.ParseFloat(values[0], 64)
		if parseErr != nil {
			return 0, fmt.Errorf("kraken: ticker for %s has bad %s %q: %w", pair, field, values[0], parseErr)
		}
		return v, nil
	}

	last, err := parseFirst(info.LastTradeClosed, "last trade price")
	if err != nil {
		return broker.TickerData{}, err
	}
	bid, err := parseFirst(info.Bid, "bid")
	if err != nil {
		return broker.TickerData{}, err
	}
	ask, err := parseFirst(info.Ask, "ask")
	if err != nil {
		return broker.TickerData{}, err
	}

	return broker.TickerData{
		Pair:      pair,
		Bid:       bid,
		Ask:       ask,
		LastPrice: last,
		Timestamp: time.Now().UTC(),
	}, nil
}

// PlaceMarketSell submits a market sell for the given volume. With reduceOnly
// set the order carries the reduce_only flag so it can only shrink a position.
func (a *Adapter) PlaceMarketSell(ctx context.Context, pair string, volume float64, reduceOnly bool) (string, error) {
	if volume <= 0 {
		return "", fmt.Errorf("kraken: sell volume must be positive, got %f", volume)
	}
	params := url.Values{}
	params.Set("pair", pair)
	params.Set("type", "sell")
	params.Set("ordertype", "market")
	params.Set("volume", strconv.FormatFloat(volume, 'f', -1, 64))
	if reduceOnly {
		params.Set("reduce_only", "true")
	}

	txid, err := a.client.AddOrderAPI(ctx, params)
	if err != nil {
		return "", fmt.Errorf("kraken: place market sell on %s: %w", pair, err)
	}
	a.logger.LogInfo("Kraken Adapter: market sell placed on %s, volume=%.8f, txid=%s", pair, volume, txid)
	return txid, nil
}
