package position

import (
	"time"

	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

// Action is the decision produced by one evaluation of a record.
type Action int

const (
	ActionNone Action = iota
	ActionSell
)

// Decision pairs an Action with its reason. Reason is empty for ActionNone.
type Decision struct {
	Action Action
	Reason SellReason
}

// Rules holds the exit thresholds. Comparisons are inclusive on every
// boundary: -3.0 trips the stop, +5.0 arms, a 3.0 retracement from ATH sells.
type Rules struct {
	StopLossPct     float64 // sell if unarmed and UnrealizedPct <= this (negative)
	ArmThresholdPct float64 // arm once UnrealizedPct >= this
	TrailingDropPct float64 // sell if armed and ATH - UnrealizedPct >= this
}

// DefaultRules returns the standard -3% stop / +5% arm / 3% trail rule set.
func DefaultRules() Rules {
	return Rules{
		StopLossPct:     utilities.DefaultStopLossPct,
		ArmThresholdPct: utilities.DefaultArmThresholdPct,
		TrailingDropPct: utilities.DefaultTrailingDropPct,
	}
}

// RulesFromConfig builds a rule set from the trading config section.
func RulesFromConfig(cfg utilities.TradingConfig) Rules {
	return Rules{
		StopLossPct:     cfg.StopLossPct,
		ArmThresholdPct: cfg.ArmThresholdPct,
		TrailingDropPct: cfg.TrailingDropPct,
	}
}

// Evaluate applies one price observation to a record and decides whether to
// exit. The record is taken and returned by value; the caller persists it only
// after the full decision is made, so a partial update can never hit the store.
//
// The step order is load-bearing:
//  1. recompute the unrealized percentage,
//  2. ratchet the ATH high-water mark,
//  3. unarmed stop-loss check (short-circuits the rest of the evaluation),
//  4. arm at the profit threshold,
//  5. trailing retracement check against the just-updated ATH.
//
// Stop-loss and trailing take-profit are therefore mutually exclusive within
// a single call, and a position that arms on this observation can still close
// on the same cycle if the retracement condition independently holds.
func (ru Rules) Evaluate(rec Record, observedPrice float64, now time.Time) (Record, Decision) {
	rec.CurrentPrice = observedPrice
	rec.LastUpdated = now.UTC()

	if rec.CostBasis == 0 {
		rec.UnrealizedPct = 0
	} else {
		rec.UnrealizedPct = (observedPrice - rec.CostBasis) / rec.CostBasis * 100.0
	}

	if rec.UnrealizedPct > rec.ATHUnrealizedPct {
		rec.ATHUnrealizedPct = rec.UnrealizedPct
	}

	if !rec.Armed && rec.UnrealizedPct <= ru.StopLossPct {
		return rec, Decision{Action: ActionSell, Reason: ReasonStopLoss}
	}

	if rec.UnrealizedPct >= ru.ArmThresholdPct {
		rec.Armed = true
	}

	if rec.Armed && (rec.ATHUnrealizedPct-rec.UnrealizedPct) >= ru.TrailingDropPct {
		return rec, Decision{Action: ActionSell, Reason: ReasonTrailingTakeProfit}
	}

	return rec, Decision{Action: ActionNone}
}
