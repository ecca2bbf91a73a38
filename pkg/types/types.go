// Package types defines the shared vocabulary of the risk engine — order
// identity, lifecycle state, the tracked-order record, instrument reference
// data, and the pre-trade decision shape. It has no dependencies on other
// internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Order identity and side
// ————————————————————————————————————————————————————————————————————————

// OrderKey is the client order id. Equality and hashing are on the full
// string value — it carries no internal structure the engine relies on.
type OrderKey string

// Side is the direction of an order.
type Side string

const (
	Bid Side = "BID"
	Ask Side = "ASK"
)

// ————————————————————————————————————————————————————————————————————————
// Order lifecycle
// ————————————————————————————————————————————————————————————————————————

// OrderState is a position in the order lifecycle state machine.
type OrderState string

const (
	PendingNew     OrderState = "PENDING_NEW"
	Open           OrderState = "OPEN"
	PendingReplace OrderState = "PENDING_REPLACE"
	PendingCancel  OrderState = "PENDING_CANCEL"
	Filled         OrderState = "FILLED"
	Canceled       OrderState = "CANCELED"
	Rejected       OrderState = "REJECTED"
)

// IsActive reports whether the state counts as "in flight" — neither filled,
// canceled nor rejected.
func (s OrderState) IsActive() bool {
	switch s {
	case PendingNew, Open, PendingReplace, PendingCancel:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is a final resting state.
func (s OrderState) IsTerminal() bool {
	return !s.IsActive()
}

// ————————————————————————————————————————————————————————————————————————
// Instrument reference data (external collaborator; §6)
// ————————————————————————————————————————————————————————————————————————

// SecurityType enumerates the kinds of instrument the directory can record.
type SecurityType string

const (
	Equity SecurityType = "EQUITY"
	Option SecurityType = "OPTION"
	Future SecurityType = "FUTURE"
)

// InstrumentRecord is the immutable reference-data entry for a symbol.
// Delta and Vega are populated only for instruments that carry greeks
// (options); a vanilla linear product leaves them at zero and Multiplier
// at one — the same fallback the engine applies when lookup misses.
type InstrumentRecord struct {
	Symbol     string
	Kind       SecurityType
	Underlyer  string
	Multiplier decimal.Decimal
	Delta      decimal.Decimal
	Vega       decimal.Decimal
}

// VanillaInstrument is the fallback record used when the instrument
// directory has no entry for a symbol: a linear product with multiplier 1
// and no greeks.
func VanillaInstrument(symbol string) InstrumentRecord {
	return InstrumentRecord{
		Symbol:     symbol,
		Kind:       Equity,
		Multiplier: decimal.NewFromInt(1),
	}
}

// ————————————————————————————————————————————————————————————————————————
// Pending-replace bookkeeping
// ————————————————————————————————————————————————————————————————————————

// PendingReplace holds the triple staged by start_replace until the
// replace is completed or rejected. All fields are present iff the owning
// order's state is PENDING_REPLACE.
type PendingReplace struct {
	NewKey      OrderKey
	NewPrice    decimal.Decimal
	NewQuantity decimal.Decimal
}

// ————————————————————————————————————————————————————————————————————————
// TrackedOrder
// ————————————————————————————————————————————————————————————————————————

// TrackedOrder is the authoritative, book-owned record of one live order.
//
// Invariants (see spec §3): CumQty + LeavesQty == Quantity while active;
// LeavesQty >= 0; Pending is non-nil iff State == PendingReplace;
// State == Filled implies LeavesQty == 0.
type TrackedOrder struct {
	Key         OrderKey
	Symbol      string
	Underlyer   string
	StrategyID  string
	PortfolioID string
	Side        Side

	Price    decimal.Decimal // working price
	Quantity decimal.Decimal // current working size
	LeavesQty decimal.Decimal // unfilled remainder
	CumQty    decimal.Decimal // filled total (audit only after a replace)
	Delta     decimal.Decimal // per-contract delta
	Vega      decimal.Decimal // per-contract vega

	State   OrderState
	Pending *PendingReplace

	// CreatedAt/UpdatedAt are ambient bookkeeping, not part of the core
	// invariants — useful for the telemetry surface and for tests that
	// want a deterministic ordering tie-break.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notional returns Price * LeavesQty.
func (o *TrackedOrder) Notional() decimal.Decimal {
	return o.Price.Mul(o.LeavesQty)
}

// DeltaExposure returns Delta * LeavesQty.
func (o *TrackedOrder) DeltaExposure() decimal.Decimal {
	return o.Delta.Mul(o.LeavesQty)
}

// SignedDeltaExposure returns DeltaExposure signed by side: positive for a
// BID (long delta), negative for an ASK (short delta). The net-delta value
// extractor (aggregation.SignedDeltaValue) is built on this.
func (o *TrackedOrder) SignedDeltaExposure() decimal.Decimal {
	exp := o.DeltaExposure()
	if o.Side == Ask {
		return exp.Neg()
	}
	return exp
}

// VegaExposure returns Vega * LeavesQty, the unsigned vega-exposure
// contribution spec.md §1 names alongside delta exposure.
func (o *TrackedOrder) VegaExposure() decimal.Decimal {
	return o.Vega.Mul(o.LeavesQty)
}

// SignedVegaExposure returns VegaExposure signed by side, the vega
// counterpart of SignedDeltaExposure: positive for a BID (long vega),
// negative for an ASK (short vega).
func (o *TrackedOrder) SignedVegaExposure() decimal.Decimal {
	exp := o.VegaExposure()
	if o.Side == Ask {
		return exp.Neg()
	}
	return exp
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// book's lock (Pending is copied by value, not shared).
func (o *TrackedOrder) Clone() TrackedOrder {
	cp := *o
	if o.Pending != nil {
		p := *o.Pending
		cp.Pending = &p
	}
	return cp
}

// ————————————————————————————————————————————————————————————————————————
// Pre-trade decision
// ————————————————————————————————————————————————————————————————————————

// Decision is the outcome of evaluating a candidate mutating event against
// the Metric Limit Store.
type Decision struct {
	Accepted bool
	Breach   *LimitBreach // non-nil iff !Accepted
}

// Accept is the "no limit breached" decision. The zero Decision is not an
// Accept: its Accepted field is false.
var Accept = Decision{Accepted: true}

// Reject constructs a rejecting Decision carrying the offending bucket.
func Reject(breach LimitBreach) Decision {
	return Decision{Accepted: false, Breach: &breach}
}

// LimitBreach names the metric/bucket/cap/projected tuple that failed a
// pre-trade check — spec §7's required fields for a LimitBreach error.
type LimitBreach struct {
	MetricName string
	BucketKey  string
	Projected  decimal.Decimal
	Cap        decimal.Decimal
}
