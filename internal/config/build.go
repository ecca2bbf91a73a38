package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/aggregation"
	"pretrade-risk-engine/internal/instrument"
	"pretrade-risk-engine/internal/limits"
)

// Built is everything a riskengine.Engine needs, materialized from Config.
type Built struct {
	Instruments *instrument.Directory
	Aggregator  *aggregation.MultiGroupingAggregator
	Limits      *limits.Store
}

// Build loads the instrument directory, registers every configured
// metric, and applies every configured limit. Assumes c.Validate() has
// already been called.
func Build(c *Config) (*Built, error) {
	dir, err := instrument.LoadFile(c.Instruments.Path)
	if err != nil {
		return nil, fmt.Errorf("load instrument directory: %w", err)
	}

	agg := aggregation.NewMultiGroupingAggregator()
	for _, mc := range c.Metrics {
		m, err := buildMetric(mc, dir)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", mc.ID, err)
		}
		if err := agg.Register(m); err != nil {
			return nil, err
		}
	}

	limitStore := limits.New()
	for _, lc := range c.Limits {
		cap, err := decimal.NewFromString(lc.Cap)
		if err != nil {
			return nil, fmt.Errorf("limit %s: bad cap %q: %w", lc.MetricID, lc.Cap, err)
		}
		limitStore.SetLimit(lc.MetricID, aggregation.NewGroupKey(lc.BucketKey...), cap)
	}

	return &Built{Instruments: dir, Aggregator: agg, Limits: limitStore}, nil
}

func buildMetric(mc MetricConfig, dir *instrument.Directory) (aggregation.Metric, error) {
	dims := make([]aggregation.Dimension, len(mc.Grouping))
	for i, d := range mc.Grouping {
		dims[i] = aggregation.Dimension(d)
	}
	key := aggregation.FieldKeyExtractor(dims, dir)
	stage := stageSelector(mc.Stage)

	if mc.Operator == "set_cardinality" {
		disc := aggregation.DiscriminatorFor(aggregation.Dimension(mc.Discriminator), dir)
		return aggregation.NewSetCardinalityMetric(mc.ID, stage, key, disc), nil
	}
	if mc.Operator == "count" {
		return aggregation.NewSumMetric(mc.ID, stage, key, aggregation.CountValue), nil
	}

	value, err := valueExtractor(mc.Value)
	if err != nil {
		return nil, err
	}
	return aggregation.NewSumMetric(mc.ID, stage, key, value), nil
}

func stageSelector(stage string) aggregation.StageSelector {
	switch stage {
	case "working":
		return aggregation.Working
	case "filled":
		return aggregation.FilledStage
	default:
		return aggregation.Active
	}
}

func valueExtractor(name string) (aggregation.ValueExtractor, error) {
	switch name {
	case "notional":
		return aggregation.NotionalValue, nil
	case "delta_exposure":
		return aggregation.DeltaExposureValue, nil
	case "signed_delta_exposure":
		return aggregation.SignedDeltaValue, nil
	case "vega_exposure":
		return aggregation.VegaExposureValue, nil
	case "signed_vega_exposure":
		return aggregation.SignedVegaValue, nil
	case "":
		return aggregation.CountValue, nil
	default:
		return nil, fmt.Errorf("unrecognized value extractor %q", name)
	}
}
