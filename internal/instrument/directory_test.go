package instrument

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

func TestLookupKnownSymbol(t *testing.T) {
	t.Parallel()

	d := New([]types.InstrumentRecord{
		{Symbol: "ABC", Kind: types.Option, Underlyer: "UND1", Multiplier: decimal.NewFromInt(100), Delta: decimal.NewFromFloat(0.5)},
	})

	rec, ok := d.Lookup("ABC")
	if !ok {
		t.Fatal("Lookup(ABC) = false, want true")
	}
	if rec.Underlyer != "UND1" || !rec.Delta.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("rec = %+v", rec)
	}
}

func TestLookupOrVanillaFallsBackOnMiss(t *testing.T) {
	t.Parallel()

	d := New(nil)
	rec := d.LookupOrVanilla("UNKNOWN")
	if rec.Kind != types.Equity {
		t.Errorf("Kind = %s, want %s", rec.Kind, types.Equity)
	}
	if !rec.Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Multiplier = %s, want 1", rec.Multiplier)
	}
	if !rec.Delta.IsZero() {
		t.Errorf("Delta = %s, want 0", rec.Delta)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.json")
	body := `[
		{"symbol": "OPT1", "kind": "OPTION", "underlyer": "UND1", "multiplier": "100", "delta": "0.45", "vega": "0.12"},
		{"symbol": "EQ1", "kind": "EQUITY", "underlyer": "EQ1", "multiplier": "1"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	opt, ok := d.Lookup("OPT1")
	if !ok {
		t.Fatal("expected OPT1 to be present")
	}
	if !opt.Delta.Equal(decimal.NewFromFloat(0.45)) {
		t.Errorf("Delta = %s, want 0.45", opt.Delta)
	}
	if !opt.Vega.Equal(decimal.NewFromFloat(0.12)) {
		t.Errorf("Vega = %s, want 0.12", opt.Vega)
	}

	eq, ok := d.Lookup("EQ1")
	if !ok || !eq.Multiplier.Equal(decimal.NewFromInt(1)) {
		t.Errorf("eq = %+v, ok = %v", eq, ok)
	}
}

func TestLoadFileBadMultiplier(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "instruments.json")
	if err := os.WriteFile(path, []byte(`[{"symbol": "BAD", "multiplier": "not-a-number"}]`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for a malformed multiplier")
	}
}
