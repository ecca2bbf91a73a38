// Package riskengine is the orchestrator (spec §4.4): it owns one Order
// Book, one multi-grouping aggregator, and one Metric Limit Store, drives
// lifecycle events into book transitions and aggregation deltas, and
// exposes the pre-trade check entry point. Wiring follows the teacher's
// engine.Engine — one constructor, one logger scoped with
// `.With("component", ...)`, plain methods per event kind instead of a
// running goroutine, since this core is single-threaded and synchronous
// (spec §5).
package riskengine

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/aggregation"
	"pretrade-risk-engine/internal/book"
	"pretrade-risk-engine/internal/instrument"
	"pretrade-risk-engine/internal/limits"
	"pretrade-risk-engine/internal/riskerr"
	"pretrade-risk-engine/pkg/types"
)

// NewClOrdID mints a fresh order key for a caller that needs to originate a
// replace or cancel request before one has come in off the wire (the order
// router, not the venue, assigns ClOrdIDs for outbound requests).
func NewClOrdID() types.OrderKey {
	return types.OrderKey(uuid.NewString())
}

// Engine glues the Order Book, the Aggregation Framework, and the Metric
// Limit Store into the event handlers the venue/order-router integration
// drives. One Engine instance is exclusively owned by its caller — the
// concurrency model (spec §5) partitions order-key space across
// independent Engine instances rather than sharing one behind a lock.
type Engine struct {
	book        *book.Book
	aggregator  *aggregation.MultiGroupingAggregator
	limitStore  *limits.Store
	instruments *instrument.Directory
	logger      *slog.Logger

	// snapshots is the side-table spec §9 requires: the exact
	// (group_key, value) pair under which each order currently
	// contributes to each metric, keyed by order id then metric id. It
	// is refreshed on every transition and is the only place that
	// "remembers" a bucket assignment — the engine never recomputes a
	// removal from current order state, because a replace may have
	// already changed the key.
	snapshots map[types.OrderKey]map[string]aggregation.Snapshot

	sink EventSink
}

// EventSink receives live notifications as the engine processes events —
// the telemetry dashboard's feed. Defined on the consumer side the same
// way telemetry.SnapshotProvider is, so Engine never imports
// internal/telemetry; *telemetry.Hub satisfies this interface.
type EventSink interface {
	BucketUpdate(metricID string, bucketKey string, value decimal.Decimal)
	LimitBreach(breach *types.LimitBreach)
}

// New builds an Engine over the given aggregator and limit store. metrics
// and limits should already be registered/configured by the caller
// (typically internal/config) before the engine starts receiving events.
func New(aggregator *aggregation.MultiGroupingAggregator, limitStore *limits.Store, instruments *instrument.Directory, logger *slog.Logger) *Engine {
	return &Engine{
		book:        book.New(),
		aggregator:  aggregator,
		limitStore:  limitStore,
		instruments: instruments,
		logger:      logger.With("component", "riskengine"),
		snapshots:   make(map[types.OrderKey]map[string]aggregation.Snapshot),
	}
}

// SetSink wires sink to receive bucket-update and limit-breach
// notifications from this point on. Passing nil detaches it. Optional —
// an Engine with no sink runs exactly as before.
func (e *Engine) SetSink(sink EventSink) {
	e.sink = sink
}

// SubmitRequest is the decoded NewOrderSingle payload plus the session
// context (portfolio/strategy) the wire protocol itself does not carry
// (spec §6 lists only ClOrdID/Symbol/Side/OrderQty/Price as required wire
// fields — portfolio and strategy are order-router session attributes).
type SubmitRequest struct {
	Key         types.OrderKey
	Symbol      string
	Side        types.Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	PortfolioID string
	StrategyID  string
}

func (e *Engine) candidateFromSubmit(req SubmitRequest, state types.OrderState) *types.TrackedOrder {
	rec := e.instruments.LookupOrVanilla(req.Symbol)
	return &types.TrackedOrder{
		Key:         req.Key,
		Symbol:      req.Symbol,
		Underlyer:   rec.Underlyer,
		StrategyID:  req.StrategyID,
		PortfolioID: req.PortfolioID,
		Side:        req.Side,
		Price:       req.Price,
		Quantity:    req.Quantity,
		LeavesQty:   req.Quantity,
		Delta:       rec.Delta,
		Vega:        rec.Vega,
		State:       state,
	}
}

// Check runs the pre-trade what-if evaluation for req without mutating
// any state — repeated calls against the same store return the same
// Decision (spec §8 invariant 6).
func (e *Engine) Check(req SubmitRequest) types.Decision {
	candidate := e.candidateFromSubmit(req, types.PendingNew)
	projections := e.aggregator.Project(candidate)
	return e.limitStore.EvaluateAll(projections)
}

// Submit runs the pre-trade check; on Accept it books the order in
// PENDING_NEW and applies the induced aggregation delta. On Reject the
// book is left untouched (spec §4.4).
func (e *Engine) Submit(req SubmitRequest) (types.Decision, error) {
	decision := e.Check(req)
	if !decision.Accepted {
		e.logger.Info("pre-trade reject",
			"key", req.Key, "metric", decision.Breach.MetricName, "bucket", decision.Breach.BucketKey)
		if e.sink != nil {
			e.sink.LimitBreach(decision.Breach)
		}
		return decision, nil
	}

	rec := e.instruments.LookupOrVanilla(req.Symbol)
	order, err := e.book.Add(book.NewOrderSingle{
		Key:         req.Key,
		Symbol:      req.Symbol,
		Underlyer:   rec.Underlyer,
		StrategyID:  req.StrategyID,
		PortfolioID: req.PortfolioID,
		Side:        req.Side,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Delta:       rec.Delta,
		Vega:        rec.Vega,
	})
	if err != nil {
		return types.Decision{}, err
	}
	e.applyTransition(order)
	return types.Accept, nil
}

// Acknowledge applies a venue ack (PENDING_NEW -> OPEN).
func (e *Engine) Acknowledge(key types.OrderKey) error {
	if err := e.book.Acknowledge(key); err != nil {
		return err
	}
	return e.refresh(key)
}

// Reject applies a venue reject of an active order.
func (e *Engine) Reject(key types.OrderKey) error {
	if err := e.book.Reject(key); err != nil {
		return err
	}
	return e.refresh(key)
}

// StartReplace stages a pending replace (OPEN|PENDING_NEW -> PENDING_REPLACE).
func (e *Engine) StartReplace(origKey, newKey types.OrderKey, newPrice, newQty decimal.Decimal) error {
	if err := e.book.StartReplace(origKey, newKey, newPrice, newQty); err != nil {
		return err
	}
	return e.refresh(origKey)
}

// StartReplaceAuto mints a fresh replace ClOrdID via NewClOrdID and stages
// the replace under it, for callers originating the request themselves
// rather than relaying one already assigned by the venue.
func (e *Engine) StartReplaceAuto(origKey types.OrderKey, newPrice, newQty decimal.Decimal) (types.OrderKey, error) {
	newKey := NewClOrdID()
	return newKey, e.StartReplace(origKey, newKey, newPrice, newQty)
}

// CompleteReplace applies a staged replace, rekeying the snapshot
// side-table alongside the book whenever new_key != orig_key.
func (e *Engine) CompleteReplace(origKey types.OrderKey) error {
	staged, ok := e.book.Get(origKey)
	if !ok || staged.Pending == nil {
		return riskerr.InvalidTransition(string(origKey), "complete_replace requires a staged pending triple")
	}
	newKey := staged.Pending.NewKey

	if _, ok := e.book.CompleteReplace(origKey); !ok {
		return riskerr.InvalidTransition(string(origKey), "complete_replace requires PENDING_REPLACE")
	}

	if newKey != origKey {
		if snap, exists := e.snapshots[origKey]; exists {
			e.snapshots[newKey] = snap
			delete(e.snapshots, origKey)
		}
	}
	return e.refresh(newKey)
}

// RejectReplace discards the staged triple and returns the order to OPEN.
func (e *Engine) RejectReplace(origKey types.OrderKey) error {
	if err := e.book.RejectReplace(origKey); err != nil {
		return err
	}
	return e.refresh(origKey)
}

// StartCancel stages a pending cancel (active, non-pending-cancel -> PENDING_CANCEL).
func (e *Engine) StartCancel(origKey, cancelKey types.OrderKey) error {
	if err := e.book.StartCancel(origKey, cancelKey); err != nil {
		return err
	}
	return e.refresh(origKey)
}

// StartCancelAuto mints a fresh cancel ClOrdID via NewClOrdID and stages the
// cancel under it, for callers originating the request themselves rather
// than relaying one already assigned by the venue.
func (e *Engine) StartCancelAuto(origKey types.OrderKey) (types.OrderKey, error) {
	cancelKey := NewClOrdID()
	return cancelKey, e.StartCancel(origKey, cancelKey)
}

// CompleteCancel resolves key (primary or the pending-cancel secondary key)
// and sets the order CANCELED.
func (e *Engine) CompleteCancel(key types.OrderKey) error {
	order, ok := e.book.Resolve(key)
	if !ok {
		return riskerr.UnknownKey(string(key))
	}
	primaryKey := order.Key

	if err := e.book.CompleteCancel(key); err != nil {
		return err
	}
	return e.refresh(primaryKey)
}

// RejectCancel returns a PENDING_CANCEL order to OPEN.
func (e *Engine) RejectCancel(origKey types.OrderKey) error {
	if err := e.book.RejectCancel(origKey); err != nil {
		return err
	}
	return e.refresh(origKey)
}

// Fill applies an execution against key (resolved through the book's
// pending-replace/pending-cancel maps) and updates aggregation state. A
// non-nil error is a *riskerr.Error of KindProtocolViolation on overfill;
// the book remains in a valid, clamped state and the transition is still
// applied (spec §4.1).
func (e *Engine) Fill(key types.OrderKey, lastQty decimal.Decimal) (book.FillDelta, error) {
	order, delta, err := e.book.ApplyFill(key, lastQty)
	if order == nil {
		return book.FillDelta{}, err
	}
	if refreshErr := e.refresh(order.Key); refreshErr != nil {
		return delta, refreshErr
	}
	return delta, err
}

// CleanupTerminal removes terminal orders from the book and prunes any
// side-table entries left dangling by it.
func (e *Engine) CleanupTerminal() int {
	removed := e.book.CleanupTerminal()
	for key := range e.snapshots {
		if _, ok := e.book.Get(key); !ok {
			delete(e.snapshots, key)
		}
	}
	return removed
}

// Reconcile runs a full-rebuild reconciliation of every registered metric
// against the book's current contents — the zero-drift check spec §8
// invariant 2 requires.
func (e *Engine) Reconcile() map[string]map[aggregation.GroupKey]decimal.Decimal {
	return e.aggregator.Reconcile(e.book.Snapshot())
}

// Snapshot returns a copy of every tracked order, for telemetry.
func (e *Engine) Snapshot() []types.TrackedOrder {
	return e.book.Snapshot()
}

// MetricBuckets returns every registered metric's live buckets as plain
// strings, keyed by metric id then bucket key — the read surface the
// telemetry dashboard polls for its REST snapshot and initial websocket
// push. Strings rather than decimal.Decimal so internal/telemetry can
// depend on primitives instead of the aggregation package's types.
func (e *Engine) MetricBuckets() map[string]map[string]string {
	ids := e.aggregator.MetricIDs()
	out := make(map[string]map[string]string, len(ids))
	for _, id := range ids {
		m, ok := e.aggregator.Metric(id)
		if !ok {
			continue
		}
		buckets := m.Buckets()
		converted := make(map[string]string, len(buckets))
		for k, v := range buckets {
			converted[string(k)] = v.String()
		}
		out[id] = converted
	}
	return out
}

// refresh re-reads key's current order state from the book and applies
// the induced aggregation delta against the side-table's prior snapshot.
func (e *Engine) refresh(key types.OrderKey) error {
	order, ok := e.book.Get(key)
	if !ok {
		return riskerr.UnknownKey(string(key))
	}
	e.applyTransition(&order)
	return nil
}

// applyTransition computes, for every registered metric, whether order's
// current state crosses that metric's contribution boundary relative to
// the stored snapshot, and dispatches add/remove/replace accordingly
// (spec §4.4). aggregation.MultiGroupingAggregator.Replace already
// performs exactly this comparison: a metric id present in the prior
// snapshot set is removed-then-re-added (re-added under the order's current
// key and value if the state still contributes, an effective removal if it
// no longer does); a metric
// id absent from it is added outright (a no-op if the new state still
// does not contribute).
func (e *Engine) applyTransition(order *types.TrackedOrder) {
	prev := e.snapshots[order.Key]
	next := e.aggregator.Replace(prev, order)
	e.broadcastTouched(prev, next)
	if len(next) == 0 {
		delete(e.snapshots, order.Key)
		return
	}
	e.snapshots[order.Key] = next
}

// broadcastTouched notifies the configured sink, if any, of every metric
// bucket this transition may have changed: every metric id present in
// either the prior or the refreshed snapshot set.
func (e *Engine) broadcastTouched(prev, next map[string]aggregation.Snapshot) {
	if e.sink == nil {
		return
	}
	touched := make(map[string]aggregation.GroupKey, len(prev)+len(next))
	for id, snap := range prev {
		touched[id] = snap.Key
	}
	for id, snap := range next {
		touched[id] = snap.Key
	}
	for id, key := range touched {
		m, ok := e.aggregator.Metric(id)
		if !ok {
			continue
		}
		e.sink.BucketUpdate(id, string(key), m.BucketValue(key))
	}
}
