package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStateIsActive(t *testing.T) {
	t.Parallel()

	active := []OrderState{PendingNew, Open, PendingReplace, PendingCancel}
	terminal := []OrderState{Filled, Canceled, Rejected}

	for _, s := range active {
		if !s.IsActive() {
			t.Errorf("%s: IsActive() = false, want true", s)
		}
		if s.IsTerminal() {
			t.Errorf("%s: IsTerminal() = true, want false", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() {
			t.Errorf("%s: IsActive() = true, want false", s)
		}
		if !s.IsTerminal() {
			t.Errorf("%s: IsTerminal() = false, want true", s)
		}
	}
}

func TestTrackedOrderNotionalAndDeltaExposure(t *testing.T) {
	t.Parallel()

	o := &TrackedOrder{
		Side:      Bid,
		Price:     decimal.NewFromFloat(100),
		LeavesQty: decimal.NewFromInt(5000),
		Delta:     decimal.NewFromFloat(0.5),
	}

	wantNotional := decimal.NewFromFloat(500000)
	if got := o.Notional(); !got.Equal(wantNotional) {
		t.Errorf("Notional() = %s, want %s", got, wantNotional)
	}

	wantDelta := decimal.NewFromFloat(2500)
	if got := o.DeltaExposure(); !got.Equal(wantDelta) {
		t.Errorf("DeltaExposure() = %s, want %s", got, wantDelta)
	}

	if got := o.SignedDeltaExposure(); !got.Equal(wantDelta) {
		t.Errorf("SignedDeltaExposure() BID = %s, want %s", got, wantDelta)
	}

	o.Side = Ask
	if got := o.SignedDeltaExposure(); !got.Equal(wantDelta.Neg()) {
		t.Errorf("SignedDeltaExposure() ASK = %s, want %s", got, wantDelta.Neg())
	}
}

func TestTrackedOrderVegaExposure(t *testing.T) {
	t.Parallel()

	o := &TrackedOrder{
		Side:      Bid,
		LeavesQty: decimal.NewFromInt(5000),
		Vega:      decimal.NewFromFloat(0.2),
	}

	wantVega := decimal.NewFromFloat(1000)
	if got := o.VegaExposure(); !got.Equal(wantVega) {
		t.Errorf("VegaExposure() = %s, want %s", got, wantVega)
	}

	if got := o.SignedVegaExposure(); !got.Equal(wantVega) {
		t.Errorf("SignedVegaExposure() BID = %s, want %s", got, wantVega)
	}

	o.Side = Ask
	if got := o.SignedVegaExposure(); !got.Equal(wantVega.Neg()) {
		t.Errorf("SignedVegaExposure() ASK = %s, want %s", got, wantVega.Neg())
	}
}

func TestTrackedOrderCloneIsIndependent(t *testing.T) {
	t.Parallel()

	o := &TrackedOrder{
		Key:     "ord1",
		State:   PendingReplace,
		Pending: &PendingReplace{NewKey: "ord1R", NewPrice: decimal.NewFromInt(12), NewQuantity: decimal.NewFromInt(150)},
	}

	cp := o.Clone()
	cp.Pending.NewPrice = decimal.NewFromInt(99)

	if o.Pending.NewPrice.Equal(decimal.NewFromInt(99)) {
		t.Fatal("Clone() shared the Pending pointer with the original")
	}
}

func TestVanillaInstrumentFallback(t *testing.T) {
	t.Parallel()

	inst := VanillaInstrument("XYZ")
	if inst.Symbol != "XYZ" {
		t.Errorf("Symbol = %q, want XYZ", inst.Symbol)
	}
	if !inst.Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Multiplier = %s, want 1", inst.Multiplier)
	}
	if !inst.Delta.IsZero() || !inst.Vega.IsZero() {
		t.Error("VanillaInstrument should carry no greeks")
	}
}
