package aggregation

import (
	"testing"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

func TestMultiGroupingAggregatorAddRemove(t *testing.T) {
	t.Parallel()

	a := NewMultiGroupingAggregator()
	countKey := FieldKeyExtractor([]Dimension{DimUnderlyer}, nil)
	notionalKey := FieldKeyExtractor([]Dimension{DimPortfolio}, nil)

	if err := a.Register(NewSumMetric("count", Active, countKey, CountValue)); err != nil {
		t.Fatalf("Register(count) error = %v", err)
	}
	if err := a.Register(NewSumMetric("gross_notional", Active, notionalKey, NotionalValue)); err != nil {
		t.Fatalf("Register(gross_notional) error = %v", err)
	}

	ord := order("ord1", "UND1", types.Bid, types.Open, 100, 5000, 0)
	ord.PortfolioID = "P1"

	snaps := a.Add(&ord)
	if len(snaps) != 2 {
		t.Fatalf("Add() snapshots = %d, want 2", len(snaps))
	}

	countMetric, _ := a.Metric("count")
	if v := countMetric.BucketValue(NewGroupKey("UND1")); !v.Equal(decimal.NewFromInt(1)) {
		t.Errorf("count bucket = %s, want 1", v)
	}

	a.Remove(snaps)
	if v := countMetric.BucketValue(NewGroupKey("UND1")); !v.IsZero() {
		t.Errorf("count bucket after remove = %s, want 0", v)
	}
}

func TestMultiGroupingAggregatorRegisterDuplicateIDFails(t *testing.T) {
	t.Parallel()

	a := NewMultiGroupingAggregator()
	key := FieldKeyExtractor([]Dimension{DimSymbol}, nil)
	if err := a.Register(NewSumMetric("count", Active, key, CountValue)); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := a.Register(NewSumMetric("count", Active, key, CountValue)); err == nil {
		t.Fatal("expected an error registering a duplicate metric id")
	}
}

func TestMultiGroupingAggregatorProjectIsSortedAndPure(t *testing.T) {
	t.Parallel()

	a := NewMultiGroupingAggregator()
	key := FieldKeyExtractor([]Dimension{DimPortfolio}, nil)
	if err := a.Register(NewSumMetric("z_metric", Active, key, CountValue)); err != nil {
		t.Fatal(err)
	}
	if err := a.Register(NewSumMetric("a_metric", Active, key, CountValue)); err != nil {
		t.Fatal(err)
	}

	candidate := order("cand", "X", types.Bid, types.Open, 1, 1, 0)
	candidate.PortfolioID = "P1"

	projections := a.Project(&candidate)
	if len(projections) != 2 {
		t.Fatalf("Project() len = %d, want 2", len(projections))
	}
	if projections[0].MetricID != "a_metric" || projections[1].MetricID != "z_metric" {
		t.Errorf("Project() not sorted by metric id: %+v", projections)
	}
}

func TestReconcileReportsNoDriftAfterAddThenDetectsDrift(t *testing.T) {
	t.Parallel()

	a := NewMultiGroupingAggregator()
	key := FieldKeyExtractor([]Dimension{DimUnderlyer}, nil)
	if err := a.Register(NewSumMetric("count", Active, key, CountValue)); err != nil {
		t.Fatal(err)
	}

	orders := []types.TrackedOrder{
		order("o1", "UND1", types.Bid, types.Open, 1, 1, 0),
		order("o2", "UND1", types.Bid, types.Open, 1, 1, 0),
		order("o3", "UND2", types.Bid, types.Open, 1, 1, 0),
	}
	for i := range orders {
		a.Add(&orders[i])
	}

	if drift := a.Reconcile(orders); len(drift) != 0 {
		t.Fatalf("Reconcile() drift = %+v, want none", drift)
	}

	// Introduce real drift by removing an order from the live set without
	// telling the aggregator, then reconciling against the shrunk slice.
	shrunk := orders[:2]
	if drift := a.Reconcile(shrunk); len(drift) == 0 {
		t.Fatal("expected Reconcile() to detect drift against a shrunk order set")
	}
}
