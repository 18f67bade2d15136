package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.WriteFailed("insert_note")
	p.WriteFailed("insert_note")
	p.FeedEvent("action_items", "insert")
	p.StaleWriteDropped("start_check_in")
	p.StepCompleted("welcome")

	if got := testutil.ToFloat64(p.writeFailures.WithLabelValues("insert_note")); got != 2 {
		t.Fatalf("expected 2 write failures, got %v", got)
	}
	if got := testutil.ToFloat64(p.feedEvents.WithLabelValues("action_items", "insert")); got != 1 {
		t.Fatalf("expected 1 feed event, got %v", got)
	}
	if got := testutil.ToFloat64(p.staleDropped.WithLabelValues("start_check_in")); got != 1 {
		t.Fatalf("expected 1 stale drop, got %v", got)
	}
	if got := testutil.ToFloat64(p.stepsCompleted.WithLabelValues("welcome")); got != 1 {
		t.Fatalf("expected 1 completed step, got %v", got)
	}
}
