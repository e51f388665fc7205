// File: pkg/broker/kraken/kclient.go
package kraken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// Client is a thin REST client for the Kraken endpoints this bot consumes:
// Assets, Balance, Ticker, and AddOrder.
type Client struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	HTTPClient     *http.Client
	limiter        *rate.Limiter
	logger         *utilities.Logger
	nonceGenerator *utilities.KrakenNonceGenerator
	cfg            *utilities.KrakenConfig
	dataMu         sync.RWMutex
	assetInfoMap   map[string]AssetInfo
}

func NewClient(appCfg *utilities.KrakenConfig, HTTPClient *http.Client, logger *utilities.Logger) *Client {
	if appCfg == nil {
		panic("Kraken Client requires non-nil KrakenConfig")
	}

	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("Kraken.NewClient: Logger fallback used.")
	}

	if HTTPClient == nil {
		HTTPClient = &http.Client{
			Timeout: time.Duration(appCfg.RequestTimeoutSec) * time.Second,
		}
	}

	burst := appCfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limit := appCfg.RateLimitPerSec
	if limit <= 0 {
		limit = 1
	}

	return &Client{
		BaseURL:        appCfg.BaseURL,
		APIKey:         appCfg.APIKey,
		APISecret:      appCfg.APISecret,
		HTTPClient:     HTTPClient,
		limiter:        rate.NewLimiter(limit, burst),
		logger:         logger,
		nonceGenerator: utilities.NewNonceCounter(),
		cfg:            appCfg,
		assetInfoMap:   make(map[string]AssetInfo),
	}
}

// RefreshAssets fetches the Assets directory so internal codes (XXBT) can be
// translated to display names (XBT).
func (c *Client) RefreshAssets(ctx context.Context) error {
	c.logger.LogInfo("Kraken Client: Refreshing assets info...")
	var resp struct {
		Error  []string             `json:"error"`
		Result map[string]AssetInfo `json:"result"`
	}
	err := c.callPublic(ctx, "/0/public/Assets", nil, &resp)
	if err != nil {
		if len(resp.Error) > 0 {
			return fmt.Errorf("kraken: Assets API error: %s (underlying: %w)", strings.Join(resp.Error, ", "), err)
		}
		return fmt.Errorf("kraken: RefreshAssets API call failed: %w", err)
	}
	if len(resp.Error) > 0 {
		return fmt.Errorf("kraken: Assets API error: %s", strings.Join(resp.Error, ", "))
	}

	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	c.assetInfoMap = make(map[string]AssetInfo)
	for krakenName, info := range resp.Result {
		c.assetInfoMap[krakenName] = info
	}
	c.logger.LogInfo("Kraken Client: Refreshed %d assets.", len(c.assetInfoMap))
	return nil
}

// GetCommonAssetName resolves a Kraken asset code to its altname, refreshing
// the directory once on a cache miss.
func (c *Client) GetCommonAssetName(ctx context.Context, krakenAssetName string) (string, error) {
	c.dataMu.RLock()
	assetInfo, ok := c.assetInfoMap[krakenAssetName]
	c.dataMu.RUnlock()

	if ok && assetInfo.Altname != "" {
		return assetInfo.Altname, nil
	}
	if err := c.RefreshAssets(ctx); err != nil {
		return "", fmt.Errorf("failed to refresh assets while getting common name for %s: %w", krakenAssetName, err)
	}
	c.dataMu.RLock()
	assetInfo, ok = c.assetInfoMap[krakenAssetName]
	c.dataMu.RUnlock()
	if !ok || assetInfo.Altname == "" {
		return "", fmt.Errorf("common asset name for Kraken asset %s not found after refresh", krakenAssetName)
	}
	return assetInfo.Altname, nil
}

// GetBalancesAPI returns the raw account balances keyed by Kraken asset code.
func (c *Client) GetBalancesAPI(ctx context.Context) (map[string]string, error) {
	var resp struct {
		Error  []string          `json:"error"`
		Result map[string]string `json:"result"`
	}
	if err := c.callPrivate(ctx, "/0/private/Balance", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, errors.New(strings.Join(resp.Error, ", "))
	}
	return resp.Result, nil
}

// GetTickerAPI fetches ticker data for a pair. Kraken may key the response
// under a variant of the requested name (XBTUSD vs XXBTZUSD), so when the
// exact key is absent the single returned entry is used.
func (c *Client) GetTickerAPI(ctx context.Context, pair string) (TickerInfo, error) {
	var resp struct {
		Error  []string              `json:"error"`
		Result map[string]TickerInfo `json:"result"`
	}
	params := url.Values{"pair": {pair}}
	if err := c.callPublic(ctx, "/0/public/Ticker", params, &resp); err != nil {
		return TickerInfo{}, err
	}
	if len(resp.Error) > 0 {
		return TickerInfo{}, errors.New(strings.Join(resp.Error, ", "))
	}
	if ticker, ok := resp.Result[pair]; ok {
		return ticker, nil
	}
	for _, ticker := range resp.Result {
		return ticker, nil
	}
	return TickerInfo{}, fmt.Errorf("kraken: ticker response for %s contained no data", pair)
}

// AddOrderAPI submits an order and returns the first transaction ID.
func (c *Client) AddOrderAPI(ctx context.Context, params url.Values) (string, error) {
	var resp struct {
		Error  []string `json:"error"`
		Result struct {
			Txid []string `json:"txid"`
		} `json:"result"`
	}
	if err := c.callPrivate(ctx, "/0/private/AddOrder", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Error) > 0 {
		return "", errors.New(strings.Join(resp.Error, ", "))
	}
	if len(resp.Result.Txid) == 0 {
		return "", errors.New("Kraken AddOrder returned no transaction ID")
	}
	return resp.Result.Txid[0], nil
}

func (c *Client) callPrivate(ctx context.Context, apiPath string, data url.Values, target interface{}) error {
	if c.APIKey == "" || c.APISecret == "" {
		return errors.New("kraken: API key or secret not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("kraken: rate limiter wait for %s: %w", apiPath, err)
	}

	nonce := c.nonceGenerator.Nonce()
	nonceStr := strconv.FormatUint(nonce, 10)
	if data == nil {
		data = url.Values{}
	}
	data.Set("nonce", nonceStr)

	authHeaders, err := utilities.GenerateKrakenAuthHeaders(c.APIKey, c.APISecret, apiPath, nonceStr, data)
	if err != nil {
		return fmt.Errorf("kraken: generate auth headers for %s: %w", apiPath, err)
	}

	fullURL := c.BaseURL + apiPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("kraken: create private request for %s: %w", apiPath, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "KrakenSellerBot/1.0")
	for key, val := range authHeaders {
		req.Header.Set(key, val)
	}
	c.logger.LogDebug("Kraken callPrivate: URL=%s, Nonce=%s", fullURL, nonceStr)

	return utilities.DoJSONRequest(c.HTTPClient, req, c.maxRetries(), c.retryDelay(), target)
}

func (c *Client) callPublic(ctx context.Context, path string, params url.Values, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("kraken: rate limiter wait for %s: %w", path, err)
	}

	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	c.logger.LogDebug("Kraken callPublic: URL=%s", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("kraken: create public request for %s: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", "KrakenSellerBot/1.0")

	return utilities.DoJSONRequest(c.HTTPClient, req, c.maxRetries(), c.retryDelay(), target)
}

func (c *Client) maxRetries() int {
	if c.cfg.MaxRetries > 0 {
		return c.cfg.MaxRetries
	}
	return 2
}

func (c *Client) retryDelay() time.Duration {
	if c.cfg.RetryDelaySec > 0 {
		return time.Duration(c.cfg.RetryDelaySec) * time.Second
	}
	return 2 * time.Second
}
