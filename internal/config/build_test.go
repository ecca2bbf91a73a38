package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

func writeInstruments(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.json")
	body := `[{"symbol": "XYZ", "kind": "EQUITY", "underlyer": "XYZ", "multiplier": "1"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBuildRegistersMetricsAndLimits(t *testing.T) {
	t.Parallel()

	c := &Config{
		Instruments: InstrumentsConfig{Path: writeInstruments(t)},
		Metrics: []MetricConfig{
			{ID: "gross_notional", Operator: "sum", Stage: "active", Grouping: []string{"portfolio_id"}, Value: "notional"},
		},
		Limits: []LimitConfig{
			{MetricID: "gross_notional", BucketKey: []string{"P1"}, Cap: "1000000"},
		},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	built, err := Build(c)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	m, ok := built.Aggregator.Metric("gross_notional")
	if !ok {
		t.Fatal("expected gross_notional to be registered")
	}

	ord := &types.TrackedOrder{
		PortfolioID: "P1",
		Symbol:      "XYZ",
		Price:       decimal.NewFromInt(100),
		LeavesQty:   decimal.NewFromInt(5000),
		State:       types.Open,
	}
	m.Add(ord)

	decision := built.Limits.Evaluate("gross_notional", "P1", decimal.NewFromInt(500_000))
	if !decision.Accepted {
		t.Fatalf("Evaluate() = %+v, want Accept below the cap", decision)
	}
}

func writeOptionInstruments(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.json")
	body := `[{"symbol": "OPT1", "kind": "OPTION", "underlyer": "UND1", "multiplier": "100", "delta": "0.5", "vega": "0.2"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBuildWiresVegaExposureFromInstrumentDirectory(t *testing.T) {
	t.Parallel()

	c := &Config{
		Instruments: InstrumentsConfig{Path: writeOptionInstruments(t)},
		Metrics: []MetricConfig{
			{ID: "gross_vega", Operator: "sum", Stage: "active", Grouping: []string{"underlyer"}, Value: "vega_exposure"},
		},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	built, err := Build(c)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	rec, ok := built.Instruments.Lookup("OPT1")
	if !ok {
		t.Fatal("expected OPT1 to load from the instrument directory")
	}

	m, ok := built.Aggregator.Metric("gross_vega")
	if !ok {
		t.Fatal("expected gross_vega to be registered")
	}

	ord := &types.TrackedOrder{
		Underlyer: "UND1",
		Symbol:    "OPT1",
		Vega:      rec.Vega,
		LeavesQty: decimal.NewFromInt(1000),
		State:     types.Open,
	}
	m.Add(ord)

	if v := m.BucketValue("UND1"); !v.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("gross_vega(UND1) = %s, want 200 (0.2 * 1000)", v)
	}
}
