// Package limits is the Metric Limit Store (spec §4.3): a registry of
// (metric_id, bucket_key) -> cap, evaluated against the Aggregation
// Framework's projected values during a pre-trade check.
package limits

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/aggregation"
	"pretrade-risk-engine/pkg/types"
)

// limitKey addresses a single configured cap.
type limitKey struct {
	metricID  string
	bucketKey aggregation.GroupKey
}

// Store holds every configured cap and evaluates candidate projections
// against them. Iteration during EvaluateAll is sorted by metric id then
// bucket key, so a failing check is reproducible (spec §4.3).
type Store struct {
	mu     sync.RWMutex
	limits map[limitKey]decimal.Decimal
}

// New builds an empty limit store.
func New() *Store {
	return &Store{limits: make(map[limitKey]decimal.Decimal)}
}

// SetLimit configures a cap for (metricID, bucketKey), overwriting any
// existing cap.
func (s *Store) SetLimit(metricID string, bucketKey aggregation.GroupKey, cap decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[limitKey{metricID, bucketKey}] = cap
}

// ClearLimit removes a configured cap, if any.
func (s *Store) ClearLimit(metricID string, bucketKey aggregation.GroupKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.limits, limitKey{metricID, bucketKey})
}

// Evaluate checks a single projected value against its configured cap.
// Accept if no cap is configured for the bucket.
func (s *Store) Evaluate(metricID string, bucketKey aggregation.GroupKey, projected decimal.Decimal) types.Decision {
	s.mu.RLock()
	cap, ok := s.limits[limitKey{metricID, bucketKey}]
	s.mu.RUnlock()

	if !ok {
		return types.Accept
	}
	if projected.GreaterThan(cap) || projected.LessThan(cap.Neg()) {
		return types.Reject(types.LimitBreach{
			MetricName: metricID,
			BucketKey:  string(bucketKey),
			Projected:  projected,
			Cap:        cap,
		})
	}
	return types.Accept
}

// EvaluateAll iterates every projection a candidate touches, in
// deterministic (metric id, bucket key) order, and returns the first
// Reject encountered or Accept if every configured cap tolerates the
// projection.
func (s *Store) EvaluateAll(projections []aggregation.Projection) types.Decision {
	sorted := make([]aggregation.Projection, len(projections))
	copy(sorted, projections)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MetricID != sorted[j].MetricID {
			return sorted[i].MetricID < sorted[j].MetricID
		}
		return sorted[i].Key < sorted[j].Key
	})

	for _, p := range sorted {
		if d := s.Evaluate(p.MetricID, p.Key, p.Value); !d.Accepted {
			return d
		}
	}
	return types.Accept
}
