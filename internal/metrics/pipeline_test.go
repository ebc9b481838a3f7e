package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJobOutcome(t *testing.T) {
	before := testutil.ToFloat64(jobOutcomeTotal.WithLabelValues("failed", "decode"))
	RecordJobOutcome("failed", "decode")
	if got := testutil.ToFloat64(jobOutcomeTotal.WithLabelValues("failed", "decode")); got != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, got)
	}
}

func TestRecordSweptIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(sweptJobsTotal)
	RecordSwept(0)
	RecordSwept(3)
	if got := testutil.ToFloat64(sweptJobsTotal); got != before+3 {
		t.Fatalf("expected +3, got %v -> %v", before, got)
	}
}

func TestObserveStage(t *testing.T) {
	ObserveStage("decode", 20*time.Millisecond)
	if n := testutil.CollectAndCount(stageDuration); n == 0 {
		t.Fatal("expected stage histogram to have series")
	}
}

func TestRecordSourceDeleteFailure(t *testing.T) {
	before := testutil.ToFloat64(sourceDeleteFailuresTotal)
	RecordSourceDeleteFailure()
	if got := testutil.ToFloat64(sourceDeleteFailuresTotal); got != before+1 {
		t.Fatalf("expected +1, got %v -> %v", before, got)
	}
}
