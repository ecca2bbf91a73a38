package telemetry

import (
	"testing"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

type fakeProvider struct {
	orders  []types.TrackedOrder
	buckets map[string]map[string]string
}

func (f fakeProvider) Snapshot() []types.TrackedOrder            { return f.orders }
func (f fakeProvider) MetricBuckets() map[string]map[string]string { return f.buckets }

func TestBuildSnapshotProjectsOrdersAndMetrics(t *testing.T) {
	t.Parallel()

	provider := fakeProvider{
		orders: []types.TrackedOrder{
			{
				Key:       "o1",
				Symbol:    "XYZ",
				State:     types.Open,
				LeavesQty: decimal.NewFromInt(10),
				CumQty:    decimal.Zero,
			},
		},
		buckets: map[string]map[string]string{
			"gross_notional": {"P1": "500000"},
		},
	}

	snap := BuildSnapshot(provider)

	if len(snap.Orders) != 1 {
		t.Fatalf("len(Orders) = %d, want 1", len(snap.Orders))
	}
	if snap.Orders[0].Key != "o1" || snap.Orders[0].State != string(types.Open) {
		t.Fatalf("Orders[0] = %+v, unexpected", snap.Orders[0])
	}
	if snap.Metrics["gross_notional"]["P1"] != "500000" {
		t.Fatalf("Metrics[gross_notional][P1] = %q, want 500000", snap.Metrics["gross_notional"]["P1"])
	}
}
