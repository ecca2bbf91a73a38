package aggregation

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/riskerr"
	"pretrade-risk-engine/pkg/types"
)

// Projection is one metric's projected bucket for a candidate order —
// what the Metric Limit Store evaluates a pre-trade check against.
type Projection struct {
	MetricID string
	Key      GroupKey
	Value    decimal.Decimal
}

// MultiGroupingAggregator fans a single add/remove/replace/project call
// out to every registered (grouping, metric) pair, the convenience
// composite spec §4.2 asks for so the engine has one surface regardless
// of how many metrics are configured.
type MultiGroupingAggregator struct {
	mu      sync.RWMutex
	order   []string // registration order, for deterministic Project output
	metrics map[string]Metric
}

// NewMultiGroupingAggregator builds an empty aggregator.
func NewMultiGroupingAggregator() *MultiGroupingAggregator {
	return &MultiGroupingAggregator{metrics: make(map[string]Metric)}
}

// Register adds a metric. Fails with a KindConfig error if the id is
// already registered.
func (a *MultiGroupingAggregator) Register(m Metric) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.metrics[m.ID()]; exists {
		return riskerr.Config("metric already registered: " + m.ID())
	}
	a.metrics[m.ID()] = m
	a.order = append(a.order, m.ID())
	return nil
}

// Metric looks up a registered metric by id.
func (a *MultiGroupingAggregator) Metric(id string) (Metric, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.metrics[id]
	return m, ok
}

// MetricIDs returns every registered metric id, sorted — the deterministic
// iteration order spec §4.3 requires of the limit store built on top of
// this aggregator.
func (a *MultiGroupingAggregator) MetricIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, len(a.order))
	copy(ids, a.order)
	sort.Strings(ids)
	return ids
}

// Add fans the order out to every registered metric and returns the
// per-metric snapshots the caller (the Risk Engine) must retain in its
// (order_key, metric_id) side-table for exact later removal. Metrics whose
// stage selector does not contribute are omitted from the result.
func (a *MultiGroupingAggregator) Add(o *types.TrackedOrder) map[string]Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Snapshot)
	for id, m := range a.metrics {
		snap := m.Add(o)
		if snap.Contributed {
			out[id] = snap
		}
	}
	return out
}

// Remove fans the saved snapshots back out to their owning metrics.
func (a *MultiGroupingAggregator) Remove(snapshots map[string]Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for id, snap := range snapshots {
		if m, ok := a.metrics[id]; ok {
			m.Remove(snap)
		}
	}
}

// Replace applies a symmetric remove+add per metric: metrics the order
// previously contributed to but no longer does are removed; metrics it
// newly contributes to are added; metrics it contributes to throughout
// have their bucket atomically replaced. Returns the refreshed snapshot
// set for every metric the order contributes to post-replace.
func (a *MultiGroupingAggregator) Replace(prev map[string]Snapshot, o *types.TrackedOrder) map[string]Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Snapshot)
	seen := make(map[string]bool, len(prev))
	for id, before := range prev {
		seen[id] = true
		m, ok := a.metrics[id]
		if !ok {
			continue
		}
		after := m.Replace(before, o)
		if after.Contributed {
			out[id] = after
		}
	}
	for id, m := range a.metrics {
		if seen[id] {
			continue
		}
		snap := m.Add(o)
		if snap.Contributed {
			out[id] = snap
		}
	}
	return out
}

// Project computes, for every registered metric, the group key and
// post-candidate bucket value a hypothetical order would produce. It does
// not mutate any metric's state. Results are sorted by metric id so
// downstream evaluation (the Metric Limit Store) is deterministic.
func (a *MultiGroupingAggregator) Project(o *types.TrackedOrder) []Projection {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Projection, 0, len(a.metrics))
	for id, m := range a.metrics {
		key, val := m.Project(o)
		out = append(out, Projection{MetricID: id, Key: key, Value: val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricID < out[j].MetricID })
	return out
}

// Reconcile rebuilds every metric's buckets from scratch over the given
// order set and reports, per metric, any bucket whose value differs from
// the live accumulator — the zero-drift check spec §8 invariant 2
// requires. An empty result means no drift.
func (a *MultiGroupingAggregator) Reconcile(orders []types.TrackedOrder) map[string]map[GroupKey]decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	drift := make(map[string]map[GroupKey]decimal.Decimal)
	for id, m := range a.metrics {
		rebuilt := rebuildMetric(m, orders)
		live := m.Buckets()
		d := diffBuckets(live, rebuilt)
		if len(d) > 0 {
			drift[id] = d
		}
	}
	return drift
}

func rebuildMetric(m Metric, orders []types.TrackedOrder) map[GroupKey]decimal.Decimal {
	switch typed := m.(type) {
	case *SumMetric:
		rebuilt := make(map[GroupKey]decimal.Decimal)
		for i := range orders {
			o := &orders[i]
			if !typed.Contributes(o.State) {
				continue
			}
			k := typed.key(o)
			rebuilt[k] = rebuilt[k].Add(typed.value(o))
		}
		return rebuilt
	case *SetCardinalityMetric:
		sets := make(map[GroupKey]map[string]struct{})
		for i := range orders {
			o := &orders[i]
			if !typed.Contributes(o.State) {
				continue
			}
			k := typed.key(o)
			s, ok := sets[k]
			if !ok {
				s = make(map[string]struct{})
				sets[k] = s
			}
			s[typed.disc(o)] = struct{}{}
		}
		rebuilt := make(map[GroupKey]decimal.Decimal, len(sets))
		for k, s := range sets {
			rebuilt[k] = decimal.NewFromInt(int64(len(s)))
		}
		return rebuilt
	default:
		return nil
	}
}

func diffBuckets(live, rebuilt map[GroupKey]decimal.Decimal) map[GroupKey]decimal.Decimal {
	diff := make(map[GroupKey]decimal.Decimal)
	for k, v := range rebuilt {
		if !live[k].Equal(v) {
			diff[k] = v.Sub(live[k])
		}
	}
	for k, v := range live {
		if _, ok := rebuilt[k]; !ok && !v.IsZero() {
			diff[k] = v.Neg()
		}
	}
	return diff
}
