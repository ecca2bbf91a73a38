// Package telemetry is the read-only live-view dashboard: a websocket Hub
// streams bucket updates and pre-trade limit breaches to any number of
// connected viewers, and order states reach a viewer only through the
// snapshot (individual lifecycle transitions are not streamed), adapted from the
// teacher's internal/api Hub/Client/DashboardEvent pattern (dashboard
// events there carried fills and positions; here they carry risk-engine
// state instead). The dashboard never accepts input from a client —
// read-only in both implementations.
package telemetry

import (
	"time"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

// Event is the wrapper for everything pushed to a connected viewer.
type Event struct {
	Type      string      `json:"type"` // "snapshot", "bucket_update", "limit_breach"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// BucketUpdateEvent reports a metric bucket's value immediately after an
// event was applied.
type BucketUpdateEvent struct {
	MetricID  string `json:"metric_id"`
	BucketKey string `json:"bucket_key"`
	Value     string `json:"value"`
}

// LimitBreachEvent mirrors a rejected pre-trade Decision.
type LimitBreachEvent struct {
	MetricID  string `json:"metric_id"`
	BucketKey string `json:"bucket_key"`
	Projected string `json:"projected"`
	Cap       string `json:"cap"`
}

// OrderLifecycleEvent reports a tracked order's state immediately after a
// transition.
type OrderLifecycleEvent struct {
	Key       string `json:"key"`
	Symbol    string `json:"symbol"`
	State     string `json:"state"`
	LeavesQty string `json:"leaves_qty"`
	CumQty    string `json:"cum_qty"`
}

// NewBucketUpdateEvent builds a BucketUpdateEvent from a raw bucket read.
func NewBucketUpdateEvent(metricID, bucketKey string, value decimal.Decimal) BucketUpdateEvent {
	return BucketUpdateEvent{MetricID: metricID, BucketKey: bucketKey, Value: value.String()}
}

// NewLimitBreachEvent builds a LimitBreachEvent from a rejected Decision's breach.
func NewLimitBreachEvent(b types.LimitBreach) LimitBreachEvent {
	return LimitBreachEvent{
		MetricID:  b.MetricName,
		BucketKey: b.BucketKey,
		Projected: b.Projected.String(),
		Cap:       b.Cap.String(),
	}
}

// NewOrderLifecycleEvent builds an OrderLifecycleEvent from a tracked order.
func NewOrderLifecycleEvent(o types.TrackedOrder) OrderLifecycleEvent {
	return OrderLifecycleEvent{
		Key:       string(o.Key),
		Symbol:    o.Symbol,
		State:     string(o.State),
		LeavesQty: o.LeavesQty.String(),
		CumQty:    o.CumQty.String(),
	}
}
