// Package instrument is the immutable reference-data lookup described in
// spec §6: symbol → {kind, underlyer, multiplier, greeks}. It has no
// mutation path after Load — the read side is a plain map, safe for
// concurrent readers without a lock.
package instrument

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

// Directory is a read-only symbol → InstrumentRecord map.
type Directory struct {
	records map[string]types.InstrumentRecord
}

// New builds a Directory from a pre-populated record set — the in-memory
// construction path used by tests and by LoadFile.
func New(records []types.InstrumentRecord) *Directory {
	d := &Directory{records: make(map[string]types.InstrumentRecord, len(records))}
	for _, r := range records {
		d.records[r.Symbol] = r
	}
	return d
}

// Lookup returns the record for symbol and true, or the zero record and
// false if the symbol is unknown. Callers that want the spec's "tolerate
// None" fallback should use LookupOrVanilla instead.
func (d *Directory) Lookup(symbol string) (types.InstrumentRecord, bool) {
	r, ok := d.records[symbol]
	return r, ok
}

// LookupOrVanilla returns the directory entry for symbol, or a vanilla
// linear-product fallback (multiplier 1, no greeks) on a miss — the
// contract spec §6 requires of every caller that treats the instrument
// directory as optional.
func (d *Directory) LookupOrVanilla(symbol string) types.InstrumentRecord {
	if r, ok := d.Lookup(symbol); ok {
		return r
	}
	return types.VanillaInstrument(symbol)
}

// SecurityTypeOf resolves symbol to its instrument kind, falling back to
// the vanilla-equity contract on a miss. Satisfies
// aggregation.SecurityTyper so a Directory can back a security_type
// grouping dimension directly.
func (d *Directory) SecurityTypeOf(symbol string) types.SecurityType {
	return d.LookupOrVanilla(symbol).Kind
}

// record is the on-disk JSON shape; decimal fields are strings to avoid
// float round-tripping through encoding/json.
type record struct {
	Symbol     string `json:"symbol"`
	Kind       string `json:"kind"`
	Underlyer  string `json:"underlyer"`
	Multiplier string `json:"multiplier"`
	Delta      string `json:"delta,omitempty"`
	Vega       string `json:"vega,omitempty"`
}

// LoadFile reads a JSON array of instrument records from path and builds a
// Directory. This is the one place the directory is ever mutated — after
// LoadFile returns, the Directory is immutable for the life of the process.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instrument file: %w", err)
	}

	var raw []record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal instrument file: %w", err)
	}

	records := make([]types.InstrumentRecord, 0, len(raw))
	for _, r := range raw {
		mult := decimal.NewFromInt(1)
		var err error
		if r.Multiplier != "" {
			mult, err = decimal.NewFromString(r.Multiplier)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: bad multiplier %q: %w", r.Symbol, r.Multiplier, err)
			}
		}
		var delta, vega decimal.Decimal
		if r.Delta != "" {
			if delta, err = decimal.NewFromString(r.Delta); err != nil {
				return nil, fmt.Errorf("instrument %s: bad delta %q: %w", r.Symbol, r.Delta, err)
			}
		}
		if r.Vega != "" {
			if vega, err = decimal.NewFromString(r.Vega); err != nil {
				return nil, fmt.Errorf("instrument %s: bad vega %q: %w", r.Symbol, r.Vega, err)
			}
		}
		records = append(records, types.InstrumentRecord{
			Symbol:     r.Symbol,
			Kind:       types.SecurityType(r.Kind),
			Underlyer:  r.Underlyer,
			Multiplier: mult,
			Delta:      delta,
			Vega:       vega,
		})
	}
	return New(records), nil
}
