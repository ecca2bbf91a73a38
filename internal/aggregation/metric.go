// Package aggregation is the generic bucketed accumulator framework (spec
// §4.2): metrics are built from an orthogonal key extractor, stage
// selector, value extractor, and operator, and maintained incrementally in
// O(1) per event via add/remove/replace plus a non-mutating project for
// pre-trade what-if evaluation.
//
// The metric set is closed and small (sum-family and set-cardinality), so
// per spec §9's design note this is modeled as two concrete
// implementations behind a common Metric interface rather than a
// compile-time-generic accumulator.
package aggregation

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

// GroupKey is the flattened form of a key extractor's output tuple. Parts
// are joined with a unit separator so no field value can forge a
// collision with the delimiter.
type GroupKey string

const groupKeySep = "\x1f"

// NewGroupKey joins parts into a single GroupKey. An empty parts slice
// yields the single bucket every order collapses to for an empty grouping
// tuple (spec §8 boundary case).
func NewGroupKey(parts ...string) GroupKey {
	return GroupKey(strings.Join(parts, groupKeySep))
}

// KeyExtractor maps a tracked order to its group-key tuple.
type KeyExtractor func(*types.TrackedOrder) GroupKey

// ValueExtractor maps a tracked order to the operator's scalar input.
type ValueExtractor func(*types.TrackedOrder) decimal.Decimal

// DiscriminatorExtractor maps a tracked order to the discriminator value a
// set-cardinality metric counts distinct occurrences of.
type DiscriminatorExtractor func(*types.TrackedOrder) string

// StageSelector decides whether an order's current state contributes to a
// metric.
type StageSelector func(types.OrderState) bool

// Active is the stage selector for PENDING_NEW|OPEN|PENDING_REPLACE|PENDING_CANCEL.
func Active(s types.OrderState) bool { return s.IsActive() }

// Working is the stage selector for OPEN|PENDING_REPLACE — orders with a
// live, acknowledged working quantity.
func Working(s types.OrderState) bool {
	return s == types.Open || s == types.PendingReplace
}

// FilledStage is the stage selector for FILLED only.
func FilledStage(s types.OrderState) bool { return s == types.Filled }

// Snapshot is the (group_key, value) pair a metric returns from Add/Replace
// and requires back on Remove for exact symmetric subtraction (spec §9).
// Contributed is false when the order's state did not cross the metric's
// stage boundary — callers must not call Remove on an uncontributed
// snapshot.
type Snapshot struct {
	Contributed bool
	Key         GroupKey
	Value       decimal.Decimal // scalar metrics
	Discriminator string        // set-cardinality metrics
}

// Metric is the common surface every concrete metric kind implements.
type Metric interface {
	ID() string
	Contributes(state types.OrderState) bool
	Add(o *types.TrackedOrder) Snapshot
	Remove(snap Snapshot)
	Replace(prev Snapshot, o *types.TrackedOrder) Snapshot
	// Project returns the group key a candidate order would occupy and
	// the bucket's value as it would read immediately after the
	// candidate contributed, without mutating any state.
	Project(o *types.TrackedOrder) (GroupKey, decimal.Decimal)
	BucketValue(key GroupKey) decimal.Decimal
	// Buckets returns a defensive copy of every live bucket, for
	// reconciliation and telemetry.
	Buckets() map[GroupKey]decimal.Decimal
}

// SumMetric accumulates a scalar value per bucket under addition. It
// implements sum, signed_sum, and count alike — the distinction is
// entirely in the ValueExtractor supplied at construction (count uses a
// constant 1).
type SumMetric struct {
	id    string
	stage StageSelector
	key   KeyExtractor
	value ValueExtractor

	mu      sync.RWMutex
	buckets map[GroupKey]decimal.Decimal
}

// NewSumMetric builds a sum-family metric.
func NewSumMetric(id string, stage StageSelector, key KeyExtractor, value ValueExtractor) *SumMetric {
	return &SumMetric{
		id:      id,
		stage:   stage,
		key:     key,
		value:   value,
		buckets: make(map[GroupKey]decimal.Decimal),
	}
}

// CountValue is the ValueExtractor for a plain count metric (∑1).
func CountValue(*types.TrackedOrder) decimal.Decimal { return decimal.NewFromInt(1) }

func (m *SumMetric) ID() string                               { return m.id }
func (m *SumMetric) Contributes(state types.OrderState) bool { return m.stage(state) }

func (m *SumMetric) Add(o *types.TrackedOrder) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(o)
}

func (m *SumMetric) addLocked(o *types.TrackedOrder) Snapshot {
	if !m.stage(o.State) {
		return Snapshot{Contributed: false}
	}
	k := m.key(o)
	v := m.value(o)
	m.buckets[k] = m.buckets[k].Add(v)
	return Snapshot{Contributed: true, Key: k, Value: v}
}

func (m *SumMetric) Remove(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(snap)
}

func (m *SumMetric) removeLocked(snap Snapshot) {
	if !snap.Contributed {
		return
	}
	cur, ok := m.buckets[snap.Key]
	if !ok {
		return
	}
	next := cur.Sub(snap.Value)
	if next.IsZero() {
		delete(m.buckets, snap.Key)
		return
	}
	m.buckets[snap.Key] = next
}

func (m *SumMetric) Replace(prev Snapshot, o *types.TrackedOrder) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(prev)
	return m.addLocked(o)
}

func (m *SumMetric) Project(o *types.TrackedOrder) (GroupKey, decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := m.key(o)
	return k, m.buckets[k].Add(m.value(o))
}

func (m *SumMetric) BucketValue(key GroupKey) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buckets[key]
}

func (m *SumMetric) Buckets() map[GroupKey]decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[GroupKey]decimal.Decimal, len(m.buckets))
	for k, v := range m.buckets {
		out[k] = v
	}
	return out
}

// SetCardinalityMetric tracks, per bucket, the number of distinct
// discriminators currently contributing. The accumulator is a
// discriminator -> refcount map so a concurrent remove of a duplicate
// discriminator does not prematurely shrink the exposed cardinality
// (spec §9: "implement as a discriminator -> refcount map").
type SetCardinalityMetric struct {
	id    string
	stage StageSelector
	key   KeyExtractor
	disc  DiscriminatorExtractor

	mu      sync.RWMutex
	buckets map[GroupKey]map[string]int
}

// NewSetCardinalityMetric builds a set-cardinality metric.
func NewSetCardinalityMetric(id string, stage StageSelector, key KeyExtractor, disc DiscriminatorExtractor) *SetCardinalityMetric {
	return &SetCardinalityMetric{
		id:      id,
		stage:   stage,
		key:     key,
		disc:    disc,
		buckets: make(map[GroupKey]map[string]int),
	}
}

func (m *SetCardinalityMetric) ID() string                               { return m.id }
func (m *SetCardinalityMetric) Contributes(state types.OrderState) bool { return m.stage(state) }

func (m *SetCardinalityMetric) Add(o *types.TrackedOrder) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(o)
}

func (m *SetCardinalityMetric) addLocked(o *types.TrackedOrder) Snapshot {
	if !m.stage(o.State) {
		return Snapshot{Contributed: false}
	}
	k := m.key(o)
	d := m.disc(o)
	bucket, ok := m.buckets[k]
	if !ok {
		bucket = make(map[string]int)
		m.buckets[k] = bucket
	}
	bucket[d]++
	return Snapshot{Contributed: true, Key: k, Discriminator: d}
}

func (m *SetCardinalityMetric) Remove(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(snap)
}

func (m *SetCardinalityMetric) removeLocked(snap Snapshot) {
	if !snap.Contributed {
		return
	}
	bucket, ok := m.buckets[snap.Key]
	if !ok {
		return
	}
	bucket[snap.Discriminator]--
	if bucket[snap.Discriminator] <= 0 {
		delete(bucket, snap.Discriminator)
	}
	if len(bucket) == 0 {
		delete(m.buckets, snap.Key)
	}
}

func (m *SetCardinalityMetric) Replace(prev Snapshot, o *types.TrackedOrder) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(prev)
	return m.addLocked(o)
}

func (m *SetCardinalityMetric) Project(o *types.TrackedOrder) (GroupKey, decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := m.key(o)
	d := m.disc(o)
	bucket := m.buckets[k]
	card := len(bucket)
	if _, present := bucket[d]; !present {
		card++
	}
	return k, decimal.NewFromInt(int64(card))
}

func (m *SetCardinalityMetric) BucketValue(key GroupKey) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return decimal.NewFromInt(int64(len(m.buckets[key])))
}

func (m *SetCardinalityMetric) Buckets() map[GroupKey]decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[GroupKey]decimal.Decimal, len(m.buckets))
	for k, bucket := range m.buckets {
		out[k] = decimal.NewFromInt(int64(len(bucket)))
	}
	return out
}
