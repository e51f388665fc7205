// File: pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/JSPierceColorado/Kraken-Seller/notification/discord"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/broker"
	krakenBroker "github.com/JSPierceColorado/Kraken-Seller/pkg/broker/kraken"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/executor"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/journal"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/ledger"
	"github.com/JSPierceColorado/Kraken-Seller/pkg/position"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// cashCodes are Kraken balance entries that are money, not positions.
var cashCodes = map[string]bool{
	"USD":  true,
	"ZUSD": true,
	"EUR":  true,
	"ZEUR": true,
}

// holding is one asset's aggregated spot balance for a cycle. Kraken reports
// earn-program balances under suffixed codes (XXBT.F), so the same display
// name can be backed by more than one balance entry.
type holding struct {
	code  string
	total float64
}

// Engine runs the reconciliation cycle: fetch balances, evaluate each held
// asset against the exit rules, place sells, persist, and sweep records whose
// assets vanished from the account.
type Engine struct {
	broker  broker.Broker
	store   ledger.Store
	exec    *executor.OrderExecutor
	journal *journal.SQLiteJournal
	discord *discord.Client
	rules   position.Rules
	cfg     utilities.TradingConfig
	logger  *utilities.Logger
	now     func() time.Time
}

func NewEngine(b broker.Broker, store ledger.Store, exec *executor.OrderExecutor, j *journal.SQLiteJournal, d *discord.Client, cfg utilities.TradingConfig, logger *utilities.Logger) *Engine {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	return &Engine{
		broker:  b,
		store:   store,
		exec:    exec,
		journal: j,
		discord: d,
		rules:   position.RulesFromConfig(cfg),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// RunCycle performs one full reconciliation pass. A balance fetch failure
// aborts the whole cycle with the store untouched; any other failure is
// isolated to the asset that caused it.
func (e *Engine) RunCycle(ctx context.Context) error {
	now := e.now().UTC()

	balances, err := e.broker.GetAllBalances(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: fetch balances: %w", err)
	}

	holdings := e.collectHoldings(ctx, balances)

	names := make([]string, 0, len(holdings))
	for name := range holdings {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		// Present assets are never swept, even if this cycle's evaluation
		// of them fails.
		seen[name] = true
		if err := e.reconcileAsset(ctx, name, holdings[name], now); err != nil {
			e.logger.LogError("Reconcile: asset %s failed this cycle: %v", name, err)
		}
	}

	return e.sweepVanished(ctx, seen, now)
}

// collectHoldings turns raw balance entries into one aggregated holding per
// display name, dropping zero balances, the fee token, and cash.
func (e *Engine) collectHoldings(ctx context.Context, balances []broker.Balance) map[string]holding {
	holdings := make(map[string]holding)
	for _, bal := range balances {
		if bal.Total <= 0 {
			continue
		}
		code := strings.TrimSuffix(bal.Code, ".F")
		if code == "KFEE" || cashCodes[code] || code == e.cfg.BaseCurrency {
			continue
		}
		name, err := e.broker.GetCommonAssetName(ctx, bal.Code)
		if err != nil {
			e.logger.LogWarn("Reconcile: could not resolve asset code %s: %v. Skipping this cycle.", bal.Code, err)
			continue
		}
		if cashCodes[strings.ToUpper(name)] || strings.EqualFold(name, e.cfg.BaseCurrency) {
			continue
		}
		h := holdings[name]
		h.code = code
		h.total += bal.Total
		holdings[name] = h
	}
	return holdings
}

func (e *Engine) reconcileAsset(ctx context.Context, name string, h holding, now time.Time) error {
	pair := name + e.cfg.BaseCurrency

	rec, err := e.store.Get(ctx, name)
	fresh := false
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		fresh = true
	case err != nil:
		return fmt.Errorf("load record: %w", err)
	case !rec.IsOpen():
		// Asset came back after a terminal close. The old row is history;
		// a new campaign starts at today's price.
		e.logger.LogInfo("Reconcile: %s reappeared after %s. Opening a fresh record.", name, rec.Status)
		fresh = true
	}

	ticker, err := e.broker.GetTicker(ctx, pair)
	if err != nil {
		return fmt.Errorf("fetch ticker for %s: %w", pair, err)
	}
	price := ticker.LastPrice
	if price <= 0 {
		return fmt.Errorf("ticker for %s returned non-positive price %f", pair, price)
	}

	if fresh {
		rec = position.NewRecord(name, h.code, pair, h.total, price, now)
		e.logger.LogInfo("Reconcile: tracking %s, size=%.8f, cost basis=%.8f", name, h.total, price)
	} else {
		rec.PositionSize = h.total
	}

	rec, decision := e.rules.Evaluate(rec, price, now)
	e.journalObservation(rec)

	if decision.Action != position.ActionSell {
		if err := e.store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("persist record: %w", err)
		}
		return nil
	}

	e.logger.LogWarn("Reconcile: SELL signal for %s (%s): unrealized=%.2f%%, ath=%.2f%%",
		name, decision.Reason, rec.UnrealizedPct, rec.ATHUnrealizedPct)

	res, execErr := e.exec.Execute(ctx, rec, decision.Reason)
	if execErr != nil {
		// The order did not go through. Keep the record ACTIVE but persist
		// the armed flag and high-water mark so the next cycle starts from
		// the same state.
		if upErr := e.store.Upsert(ctx, rec); upErr != nil {
			e.logger.LogError("Reconcile: persist after failed sell for %s also failed: %v", name, upErr)
		}
		return execErr
	}

	exited := rec
	rec.Close(now)
	if err := e.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist closed record: %w", err)
	}
	e.journalClose(rec, string(decision.Reason), res.TxID)
	if e.discord != nil {
		if nErr := e.discord.NotifySell(exited, decision.Reason, res.TxID, res.DryRun); nErr != nil {
			e.logger.LogWarn("Reconcile: discord notification for %s failed: %v", name, nErr)
		}
	}
	return nil
}

// sweepVanished closes out any open record whose asset no longer appears in
// the account. The realized result is unknown, so the record keeps its cost
// basis and high-water mark but carries no realized percentage.
func (e *Engine) sweepVanished(ctx context.Context, seen map[string]bool, now time.Time) error {
	records, err := e.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: scan for vanished assets: %w", err)
	}
	for _, rec := range records {
		if !rec.IsOpen() || seen[rec.Asset] {
			continue
		}
		e.logger.LogWarn("Reconcile: %s vanished from account. Marking CLOSED_EXTERNAL.", rec.Asset)
		rec.CloseExternal(now)
		if err := e.store.Upsert(ctx, rec); err != nil {
			e.logger.LogError("Reconcile: persist CLOSED_EXTERNAL for %s failed: %v", rec.Asset, err)
			continue
		}
		e.journalClose(rec, "EXTERNAL", "")
		if e.discord != nil {
			if nErr := e.discord.NotifyExternalClose(rec); nErr != nil {
				e.logger.LogWarn("Reconcile: discord notification for %s failed: %v", rec.Asset, nErr)
			}
		}
	}
	return nil
}

// Journal writes are best-effort; a broken journal never blocks the cycle.
func (e *Engine) journalObservation(rec position.Record) {
	if e.journal == nil {
		return
	}
	err := e.journal.RecordObservation(journal.Observation{
		Asset:         rec.Asset,
		Pair:          rec.Pair,
		Price:         rec.CurrentPrice,
		UnrealizedPct: rec.UnrealizedPct,
		ATHPct:        rec.ATHUnrealizedPct,
		Armed:         rec.Armed,
		Timestamp:     rec.LastUpdated,
	})
	if err != nil {
		e.logger.LogWarn("Journal: observation write for %s failed: %v", rec.Asset, err)
	}
}

func (e *Engine) journalClose(rec position.Record, reason, txid string) {
	if e.journal == nil {
		return
	}
	realized := 0.0
	if rec.RealizedPct != nil {
		realized = *rec.RealizedPct
	}
	err := e.journal.RecordClose(journal.CloseEvent{
		Asset:       rec.Asset,
		Pair:        rec.Pair,
		Status:      rec.Status,
		Reason:      reason,
		RealizedPct: realized,
		TxID:        txid,
		Timestamp:   rec.LastUpdated,
	})
	if err != nil {
		e.logger.LogWarn("Journal: close write for %s failed: %v", rec.Asset, err)
	}
}

// Run wires the whole application together and blocks until ctx is cancelled:
// preflight checks, then one reconciliation cycle per poll interval.
func Run(ctx context.Context, cfg *utilities.AppConfig, logger *utilities.Logger) error {
	if cfg.Kraken.APIKey == "" || cfg.Kraken.APISecret == "" {
		return errors.New("pre-flight check failed: Kraken API key and secret must be configured")
	}
	cfg.Trading.ApplyDefaults()

	dryRun := utilities.ParseTruthy(cfg.Trading.DryRun)

	discordClient := discord.NewClient(cfg.Discord.WebhookURL, logger)
	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}
	_ = discordClient.SendMessage(fmt.Sprintf("✅ **Kraken-Seller v%s starting up (%s)**", cfg.Version, mode))
	defer discordClient.SendMessage("🛑 **Kraken-Seller shutting down**")

	logger.LogInfo("AppRun: Starting pre-flight checks (mode=%s)...", mode)

	store, err := ledger.NewCSVStore(cfg.Ledger, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: ledger init failed: %w", err)
	}

	cycleJournal, err := journal.NewSQLiteJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: journal init failed: %w", err)
	}
	defer cycleJournal.Close()

	cleanupInterval := time.Duration(cfg.Journal.CleanupIntervalHr) * time.Hour
	if cleanupInterval <= 0 {
		cleanupInterval = 24 * time.Hour
	}
	cycleJournal.StartScheduledCleanup(cleanupInterval, cfg.Journal.RetentionDays)

	sharedHTTPClient := &http.Client{Timeout: 15 * time.Second}

	logger.LogInfo("Pre-Flight: Initializing and verifying broker (Kraken)...")
	krakenAdapter, krakenErr := krakenBroker.NewAdapter(&cfg.Kraken, sharedHTTPClient, logger)
	if krakenErr != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize Kraken adapter: %w", krakenErr)
	}
	if err := krakenAdapter.RefreshAssetInfo(ctx); err != nil {
		return fmt.Errorf("pre-flight check failed: could not refresh broker asset info: %w", err)
	}
	balances, balErr := krakenAdapter.GetAllBalances(ctx)
	if balErr != nil {
		return fmt.Errorf("pre-flight check failed: could not fetch balances. Check API keys and permissions: %w", balErr)
	}
	logger.LogInfo("Pre-Flight: Broker verification passed. %d balance entries visible.", len(balances))

	exec := executor.NewOrderExecutor(krakenAdapter, dryRun, logger)
	engine := NewEngine(krakenAdapter, store, exec, cycleJournal, discordClient, cfg.Trading, logger)

	interval := time.Duration(cfg.Trading.PollIntervalSeconds) * time.Second
	logger.LogInfo("AppRun: Entering reconciliation loop, interval=%s, base currency=%s.", interval, cfg.Trading.BaseCurrency)

	if err := engine.RunCycle(ctx); err != nil {
		logger.LogError("AppRun: reconciliation cycle failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.LogInfo("AppRun: Context cancelled. Stopping reconciliation loop.")
			return nil
		case <-ticker.C:
			if err := engine.RunCycle(ctx); err != nil {
				logger.LogError("AppRun: reconciliation cycle failed: %v", err)
			}
		}
	}
}
