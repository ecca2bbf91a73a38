package aggregation

import (
	"github.com/shopspring/decimal"

	"pretrade-risk-engine/pkg/types"
)

// Dimension is one of the closed set of grouping attributes spec §6's
// configuration surface allows (portfolio_id, strategy_id, symbol,
// underlyer, side, security_type).
type Dimension string

const (
	DimPortfolio    Dimension = "portfolio_id"
	DimStrategy     Dimension = "strategy_id"
	DimSymbol       Dimension = "symbol"
	DimUnderlyer    Dimension = "underlyer"
	DimSide         Dimension = "side"
	DimSecurityType Dimension = "security_type"
)

// SecurityTyper resolves an order's symbol to its instrument kind —
// satisfied by internal/instrument.Directory. Grouping by security_type is
// the one dimension the order itself doesn't carry; it must be resolved
// through the instrument directory.
type SecurityTyper interface {
	SecurityTypeOf(symbol string) types.SecurityType
}

func fieldOf(o *types.TrackedOrder, dim Dimension, st SecurityTyper) string {
	switch dim {
	case DimPortfolio:
		return o.PortfolioID
	case DimStrategy:
		return o.StrategyID
	case DimSymbol:
		return o.Symbol
	case DimUnderlyer:
		return o.Underlyer
	case DimSide:
		return string(o.Side)
	case DimSecurityType:
		if st == nil {
			return ""
		}
		return string(st.SecurityTypeOf(o.Symbol))
	default:
		return ""
	}
}

// FieldKeyExtractor builds a KeyExtractor over a fixed, ordered list of
// dimensions. An empty dims slice produces the single-bucket key every
// order collapses to (spec §8 boundary case). st may be nil if dims
// excludes security_type.
func FieldKeyExtractor(dims []Dimension, st SecurityTyper) KeyExtractor {
	fixed := make([]Dimension, len(dims))
	copy(fixed, dims)
	return func(o *types.TrackedOrder) GroupKey {
		parts := make([]string, len(fixed))
		for i, dim := range fixed {
			parts[i] = fieldOf(o, dim, st)
		}
		return NewGroupKey(parts...)
	}
}

// NotionalValue is the ValueExtractor for a gross-notional metric.
func NotionalValue(o *types.TrackedOrder) decimal.Decimal { return o.Notional() }

// SignedDeltaValue is the ValueExtractor for a net-delta metric: long
// exposure on the bid, short on the ask (spec §8 S5).
func SignedDeltaValue(o *types.TrackedOrder) decimal.Decimal { return o.SignedDeltaExposure() }

// DeltaExposureValue is the ValueExtractor for an unsigned gross-delta metric.
func DeltaExposureValue(o *types.TrackedOrder) decimal.Decimal { return o.DeltaExposure() }

// VegaExposureValue is the ValueExtractor for an unsigned gross-vega metric,
// the vega-exposure counterpart of DeltaExposureValue spec.md §1 names
// alongside delta exposure.
func VegaExposureValue(o *types.TrackedOrder) decimal.Decimal { return o.VegaExposure() }

// SignedVegaValue is the ValueExtractor for a net-vega metric: long exposure
// on the bid, short on the ask, the vega counterpart of SignedDeltaValue.
func SignedVegaValue(o *types.TrackedOrder) decimal.Decimal { return o.SignedVegaExposure() }

// UnderlyerDiscriminator is the DiscriminatorExtractor for a
// distinct-underlyer-count metric (spec §8 S4).
func UnderlyerDiscriminator(o *types.TrackedOrder) string { return o.Underlyer }

// DiscriminatorFor builds a DiscriminatorExtractor over a single dimension
// — the general case of UnderlyerDiscriminator for any configured
// discriminator field.
func DiscriminatorFor(dim Dimension, st SecurityTyper) DiscriminatorExtractor {
	return func(o *types.TrackedOrder) string { return fieldOf(o, dim, st) }
}
