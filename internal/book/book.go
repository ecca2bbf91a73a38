// Package book is the authoritative order book (spec §3, §4.1): a single
// source of truth for every in-flight order, its lifecycle state, and its
// pending-replace/pending-cancel bookkeeping. It is concurrency-safe
// (RWMutex protected) the way the teacher's market.Book mirrors a CLOB
// order book — except this book tracks order *lifecycle*, not price
// levels.
package book

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/riskerr"
	"pretrade-risk-engine/pkg/types"
)

// NewOrderSingle is the minimal input to add a new order.
type NewOrderSingle struct {
	Key         types.OrderKey
	Symbol      string
	Underlyer   string
	StrategyID  string
	PortfolioID string
	Side        types.Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Delta       decimal.Decimal
	Vega        decimal.Decimal
}

// ReplaceDelta carries the before-values of a completed replace — the
// engine needs these to emit a compensating aggregation delta (spec §4.1).
type ReplaceDelta struct {
	OldPrice         decimal.Decimal
	OldLeavesQty     decimal.Decimal
	OldNotional      decimal.Decimal
	OldDeltaExposure decimal.Decimal
}

// FillDelta is returned by ApplyFill with everything the engine needs to
// update aggregation state and to detect a protocol violation.
type FillDelta struct {
	FilledQty            decimal.Decimal
	FilledNotional       decimal.Decimal
	FilledDeltaExposure  decimal.Decimal
	IsComplete           bool // true iff the order transitioned to FILLED
	Overfill             decimal.Decimal // > 0 iff the fill was clamped
}

// Book owns every tracked order, keyed by client order id. Two secondary
// maps — pendingReplace and pendingCancel — resolve an execution report
// that arrives against a not-yet-acknowledged replace or cancel id back to
// the original order (spec §9 open question (b): a dedicated map per kind
// rather than one shared map, to avoid ambiguous resolution when a key
// could plausibly appear in both roles).
type Book struct {
	mu             sync.RWMutex
	orders         map[types.OrderKey]*types.TrackedOrder
	pendingReplace map[types.OrderKey]types.OrderKey // new key -> orig key
	pendingCancel  map[types.OrderKey]types.OrderKey // cancel key -> orig key
}

// New creates an empty order book.
func New() *Book {
	return &Book{
		orders:         make(map[types.OrderKey]*types.TrackedOrder),
		pendingReplace: make(map[types.OrderKey]types.OrderKey),
		pendingCancel:  make(map[types.OrderKey]types.OrderKey),
	}
}

// Add inserts a new order in PENDING_NEW. Fails with DuplicateKey if the
// key is already tracked.
func (b *Book) Add(nos NewOrderSingle) (*types.TrackedOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[nos.Key]; exists {
		return nil, riskerr.DuplicateKey(string(nos.Key))
	}

	now := time.Now()
	o := &types.TrackedOrder{
		Key:         nos.Key,
		Symbol:      nos.Symbol,
		Underlyer:   nos.Underlyer,
		StrategyID:  nos.StrategyID,
		PortfolioID: nos.PortfolioID,
		Side:        nos.Side,
		Price:       nos.Price,
		Quantity:    nos.Quantity,
		LeavesQty:   nos.Quantity,
		CumQty:      decimal.Zero,
		Delta:       nos.Delta,
		Vega:        nos.Vega,
		State:       types.PendingNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.orders[nos.Key] = o
	return o, nil
}

// Acknowledge transitions PENDING_NEW -> OPEN. A no-op, non-error, in any
// other state (spec §8 idempotence: ack on an already-OPEN order is a
// no-op).
func (b *Book) Acknowledge(key types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[key]
	if !ok {
		return riskerr.UnknownKey(string(key))
	}
	if o.State == types.PendingNew {
		o.State = types.Open
		o.UpdatedAt = time.Now()
	}
	return nil
}

// Reject transitions any active order to REJECTED.
func (b *Book) Reject(key types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[key]
	if !ok {
		return riskerr.UnknownKey(string(key))
	}
	if !o.State.IsActive() {
		return riskerr.InvalidTransition(string(key), "reject on a non-active order")
	}
	o.State = types.Rejected
	o.UpdatedAt = time.Now()
	return nil
}

// StartReplace transitions OPEN|PENDING_NEW -> PENDING_REPLACE, stages the
// pending triple, and registers newKey in the pendingReplace map.
func (b *Book) StartReplace(origKey, newKey types.OrderKey, newPrice, newQty decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[origKey]
	if !ok {
		return riskerr.UnknownKey(string(origKey))
	}
	if o.State != types.Open && o.State != types.PendingNew {
		return riskerr.InvalidTransition(string(origKey), "start_replace requires OPEN or PENDING_NEW")
	}

	o.State = types.PendingReplace
	o.Pending = &types.PendingReplace{NewKey: newKey, NewPrice: newPrice, NewQuantity: newQty}
	o.UpdatedAt = time.Now()
	b.pendingReplace[newKey] = origKey
	return nil
}

// CompleteReplace applies the staged pending triple. new_qty becomes the
// new working quantity; cum_qty is retained for audit but does not reduce
// leaves_qty (spec §9 open question (a)). If the new key differs from the
// original, the order is rekeyed in the primary map and the secondary
// entry is dropped. Returns the before-snapshot the engine needs to emit a
// compensating aggregation delta, or (zero, false) if the order isn't in
// PENDING_REPLACE with a complete pending triple.
func (b *Book) CompleteReplace(origKey types.OrderKey) (ReplaceDelta, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[origKey]
	if !ok || o.State != types.PendingReplace || o.Pending == nil {
		return ReplaceDelta{}, false
	}

	before := ReplaceDelta{
		OldPrice:         o.Price,
		OldLeavesQty:     o.LeavesQty,
		OldNotional:      o.Notional(),
		OldDeltaExposure: o.DeltaExposure(),
	}

	pending := o.Pending
	o.Price = pending.NewPrice
	o.Quantity = pending.NewQuantity
	o.LeavesQty = pending.NewQuantity
	o.State = types.Open
	o.Pending = nil
	o.UpdatedAt = time.Now()

	if pending.NewKey != origKey {
		delete(b.orders, origKey)
		o.Key = pending.NewKey
		b.orders[pending.NewKey] = o
	}
	delete(b.pendingReplace, pending.NewKey)

	return before, true
}

// RejectReplace discards the pending triple and returns the order to OPEN.
// start_replace;reject_replace is an involution (spec §8 invariant 5).
func (b *Book) RejectReplace(origKey types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[origKey]
	if !ok {
		return riskerr.UnknownKey(string(origKey))
	}
	if o.State != types.PendingReplace {
		return riskerr.InvalidTransition(string(origKey), "reject_replace requires PENDING_REPLACE")
	}
	if o.Pending != nil {
		delete(b.pendingReplace, o.Pending.NewKey)
	}
	o.Pending = nil
	o.State = types.Open
	o.UpdatedAt = time.Now()
	return nil
}

// StartCancel transitions an active, non-pending-cancel order to
// PENDING_CANCEL and registers cancelKey in the pendingCancel map.
func (b *Book) StartCancel(origKey, cancelKey types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[origKey]
	if !ok {
		return riskerr.UnknownKey(string(origKey))
	}
	if !o.State.IsActive() || o.State == types.PendingCancel {
		return riskerr.InvalidTransition(string(origKey), "start_cancel requires an active, non-pending-cancel order")
	}
	o.State = types.PendingCancel
	o.UpdatedAt = time.Now()
	b.pendingCancel[cancelKey] = origKey
	return nil
}

// CompleteCancel resolves key through the pendingCancel map (or accepts it
// directly as a primary key) and sets the order CANCELED.
func (b *Book) CompleteCancel(key types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	origKey := key
	if orig, ok := b.pendingCancel[key]; ok {
		origKey = orig
	}
	o, ok := b.orders[origKey]
	if !ok {
		return riskerr.UnknownKey(string(key))
	}
	if o.State != types.PendingCancel {
		return riskerr.InvalidTransition(string(key), "complete_cancel requires PENDING_CANCEL")
	}
	o.State = types.Canceled
	o.UpdatedAt = time.Now()
	delete(b.pendingCancel, key)
	return nil
}

// RejectCancel transitions PENDING_CANCEL -> OPEN.
func (b *Book) RejectCancel(origKey types.OrderKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[origKey]
	if !ok {
		return riskerr.UnknownKey(string(origKey))
	}
	if o.State != types.PendingCancel {
		return riskerr.InvalidTransition(string(origKey), "reject_cancel requires PENDING_CANCEL")
	}
	o.State = types.Open
	o.UpdatedAt = time.Now()
	// Drop any cancelKey -> origKey entries left over from start_cancel.
	for k, v := range b.pendingCancel {
		if v == origKey {
			delete(b.pendingCancel, k)
		}
	}
	return nil
}

// ApplyFill resolves key through the pendingReplace/pendingCancel maps (a
// fill can arrive against a replacement or cancel id before the venue's
// ack), subtracts lastQty from leaves_qty, and adds it to cum_qty. The
// order transitions to FILLED iff leaves_qty <= 0 after clamping. Notional
// is computed from the order's recorded price, not the execution price —
// spec §4.1's deliberate isolation from market-price variance.
//
// A fill arriving during PENDING_REPLACE uses the pre-replace price and
// quantity; the pending triple is left untouched so a subsequent
// CompleteReplace still succeeds, basing its before-snapshot on this
// post-fill state.
func (b *Book) ApplyFill(key types.OrderKey, lastQty decimal.Decimal) (*types.TrackedOrder, FillDelta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.resolveLocked(key)
	if !ok {
		return nil, FillDelta{}, riskerr.UnknownKey(string(key))
	}

	overfill := decimal.Zero
	newLeaves := o.LeavesQty.Sub(lastQty)
	appliedQty := lastQty
	if newLeaves.IsNegative() {
		overfill = newLeaves.Neg()
		appliedQty = lastQty.Sub(overfill)
		newLeaves = decimal.Zero
	}

	delta := FillDelta{
		FilledQty:           appliedQty,
		FilledNotional:      o.Price.Mul(appliedQty),
		FilledDeltaExposure: o.Delta.Mul(appliedQty),
		Overfill:            overfill,
	}

	o.LeavesQty = newLeaves
	o.CumQty = o.CumQty.Add(appliedQty)
	o.UpdatedAt = time.Now()

	if o.LeavesQty.IsZero() {
		o.State = types.Filled
		delta.IsComplete = true
	}

	var err error
	if overfill.IsPositive() {
		err = riskerr.ProtocolViolation(string(key), "fill exceeds leaves_qty, clamped to zero")
	}
	return o, delta, err
}

// Resolve returns the TrackedOrder for either a primary key or a
// pendingReplace/pendingCancel secondary key.
func (b *Book) Resolve(key types.OrderKey) (*types.TrackedOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolveLocked(key)
}

func (b *Book) resolveLocked(key types.OrderKey) (*types.TrackedOrder, bool) {
	if o, ok := b.orders[key]; ok {
		return o, true
	}
	if orig, ok := b.pendingReplace[key]; ok {
		o, ok := b.orders[orig]
		return o, ok
	}
	if orig, ok := b.pendingCancel[key]; ok {
		o, ok := b.orders[orig]
		return o, ok
	}
	return nil, false
}

// Get returns a defensive copy of the tracked order for key, for callers
// that must not hold a reference into the book past its lock.
func (b *Book) Get(key types.OrderKey) (types.TrackedOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[key]
	if !ok {
		return types.TrackedOrder{}, false
	}
	return o.Clone(), true
}

// CleanupTerminal removes every order in a terminal state (FILLED,
// CANCELED, REJECTED). Safe to call at any time; idempotent.
func (b *Book) CleanupTerminal() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, o := range b.orders {
		if o.State.IsTerminal() {
			delete(b.orders, key)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of every tracked order, for reconciliation and
// telemetry. Order is unspecified.
func (b *Book) Snapshot() []types.TrackedOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.TrackedOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o.Clone())
	}
	return out
}

// Len returns the number of tracked orders (active and terminal-but-not-
// yet-swept).
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
