package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

func TestPipelineMetrics_Observe(t *testing.T) {
	reg := domain.DefaultRegistry()
	m := NewPipelineMetrics(prometheus.NewRegistry(), reg)

	store := pipeline.NewStore(reg)
	store.Subscribe(m.Observe)

	add := func(value float64, stage domain.StageID) domain.Deal {
		d, err := store.Add(domain.NewDealFields{
			Title: "d", Value: domain.Amount(value), Probability: 10, Stage: stage, Priority: domain.PriorityLow,
		})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		return d
	}

	a := add(100, domain.StageQualified)
	add(250.5, domain.StageQualified)

	if got := testutil.ToFloat64(m.StageDeals.WithLabelValues("qualified")); got != 2 {
		t.Errorf("qualified deals got = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StageValue.WithLabelValues("qualified")); got != 350.5 {
		t.Errorf("qualified value got = %v, want 350.5", got)
	}

	if _, err := store.Move(a.ID, domain.StageClosedWon); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if got := testutil.ToFloat64(m.StageDeals.WithLabelValues("qualified")); got != 1 {
		t.Errorf("qualified deals after move got = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StageDeals.WithLabelValues("closedWon")); got != 1 {
		t.Errorf("closedWon deals got = %v, want 1", got)
	}
	// empty stages are exported as zero rather than left missing
	if got := testutil.ToFloat64(m.StageDeals.WithLabelValues("negotiation")); got != 0 {
		t.Errorf("negotiation deals got = %v, want 0", got)
	}
}

func TestPipelineMetrics_RecordMutation(t *testing.T) {
	m := NewPipelineMetrics(prometheus.NewRegistry(), domain.DefaultRegistry())

	m.RecordMutation("create", "ok")
	m.RecordMutation("create", "ok")
	m.RecordMutation("create", "invalid")

	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("create", "ok")); got != 2 {
		t.Errorf("create/ok got = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Mutations.WithLabelValues("create", "invalid")); got != 1 {
		t.Errorf("create/invalid got = %v, want 1", got)
	}
}
