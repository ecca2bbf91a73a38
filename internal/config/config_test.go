package config

import "testing"

func validConfig() *Config {
	return &Config{
		Instruments: InstrumentsConfig{Path: "/tmp/instruments.json"},
		Metrics: []MetricConfig{
			{ID: "gross_notional", Operator: "sum", Stage: "active", Grouping: []string{"portfolio_id"}, Value: "notional"},
			{ID: "distinct_underlyers", Operator: "set_cardinality", Stage: "active", Grouping: []string{"portfolio_id"}, Discriminator: "underlyer"},
		},
		Limits: []LimitConfig{
			{MetricID: "gross_notional", BucketKey: []string{"P1"}, Cap: "1000000"},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsUnknownOperator(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Metrics[0].Operator = "average"
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized operator")
	}
}

func TestValidateRejectsSumWithoutValue(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Metrics[0].Value = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a sum metric missing its value extractor")
	}
}

func TestValidateAcceptsVegaExposureValue(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Metrics = append(c.Metrics, MetricConfig{
		ID: "net_vega", Operator: "signed_sum", Stage: "active",
		Grouping: []string{"underlyer"}, Value: "signed_vega_exposure",
	})
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want vega_exposure/signed_vega_exposure accepted", err)
	}
}

func TestValidateRejectsUnknownGroupingDimension(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Metrics[0].Grouping = []string{"not_a_dimension"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for an unrecognized grouping dimension")
	}
}

func TestValidateRejectsLimitForUnregisteredMetric(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Limits = append(c.Limits, LimitConfig{MetricID: "nope", BucketKey: []string{"P1"}, Cap: "1"})
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a limit referencing an unregistered metric")
	}
}

func TestValidateRejectsDuplicateMetricID(t *testing.T) {
	t.Parallel()
	c := validConfig()
	c.Metrics = append(c.Metrics, c.Metrics[0])
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a duplicate metric id")
	}
}
