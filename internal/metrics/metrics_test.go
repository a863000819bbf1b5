package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := harvestPagesTotal
	Init()

	if harvestPagesTotal == nil || harvestRecordsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
	if first != harvestPagesTotal {
		t.Fatal("Init() replaced collectors on second call")
	}
}

func TestObserveCounters(t *testing.T) {
	ObservePage("metrics-test", "fetched")
	ObservePage("metrics-test", "fetched")
	ObserveRecord("metrics-test")
	ObserveRetry("metrics-test")
	ObserveSiteRun("metrics-test", "succeeded")
	ObserveArtifact("metrics-test")
	ObserveRateLimitDelay("metrics-test.local", 250*time.Millisecond)

	if val := testutil.ToFloat64(harvestPagesTotal.WithLabelValues("metrics-test", "fetched")); val != 2 {
		t.Errorf("expected 2 fetched pages, got %f", val)
	}
	if val := testutil.ToFloat64(harvestRecordsTotal.WithLabelValues("metrics-test")); val != 1 {
		t.Errorf("expected 1 record, got %f", val)
	}
	if val := testutil.ToFloat64(harvestRetriesTotal.WithLabelValues("metrics-test")); val != 1 {
		t.Errorf("expected 1 retry, got %f", val)
	}
	if val := testutil.ToFloat64(harvestSiteRunsTotal.WithLabelValues("metrics-test", "succeeded")); val != 1 {
		t.Errorf("expected 1 site run, got %f", val)
	}
	if val := testutil.ToFloat64(harvestArtifactsTotal.WithLabelValues("metrics-test")); val != 1 {
		t.Errorf("expected 1 artifact, got %f", val)
	}
	if val := testutil.CollectAndCount(rateLimitDelaySeconds); val < 1 {
		t.Errorf("expected a rate limit delay series, got %d", val)
	}
}
