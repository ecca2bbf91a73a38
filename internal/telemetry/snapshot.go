package telemetry

import "pretrade-risk-engine/pkg/types"

// SnapshotProvider is the read surface a riskengine.Engine exposes to the
// dashboard. Kept as an interface, the way the teacher's
// MarketSnapshotProvider decouples api.Server from a concrete engine.
type SnapshotProvider interface {
	Snapshot() []types.TrackedOrder
	MetricBuckets() map[string]map[string]string // metric id -> bucket key -> value
}

// Snapshot is the full dashboard state served by GET /api/snapshot and
// pushed to a viewer immediately after it connects.
type Snapshot struct {
	Orders  []OrderLifecycleEvent        `json:"orders"`
	Metrics map[string]map[string]string `json:"metrics"`
}

// BuildSnapshot reads the current state from provider.
func BuildSnapshot(provider SnapshotProvider) Snapshot {
	orders := provider.Snapshot()
	out := Snapshot{
		Orders:  make([]OrderLifecycleEvent, 0, len(orders)),
		Metrics: provider.MetricBuckets(),
	}
	for _, o := range orders {
		out.Orders = append(out.Orders, NewOrderLifecycleEvent(o))
	}
	return out
}
