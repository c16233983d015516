package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewManager_RegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry), WithNamespace("test"))

	m.billsScraped.Inc()
	m.recordsUpserted.WithLabelValues("bill").Add(2)
	m.httpRequests.WithLabelValues("/api/bills", "GET", "200").Inc()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"test_bills_scraped_total",
		"test_records_upserted_total",
		"test_http_requests_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestPackageLevelRecorders(t *testing.T) {
	before := testutil.ToFloat64(globalManager.billsScraped)
	RecordBillScraped()
	RecordBillScraped()
	if got := testutil.ToFloat64(globalManager.billsScraped); got != before+2 {
		t.Errorf("bills scraped = %v, want %v", got, before+2)
	}

	beforeErr := testutil.ToFloat64(globalManager.ingestErrors.WithLabelValues("detail"))
	RecordIngestError("detail")
	if got := testutil.ToFloat64(globalManager.ingestErrors.WithLabelValues("detail")); got != beforeErr+1 {
		t.Errorf("ingest errors = %v, want %v", got, beforeErr+1)
	}
}

func TestClassificationAndEmbeddingRecorders(t *testing.T) {
	before := testutil.ToFloat64(globalManager.classifications)
	RecordClassification()
	if got := testutil.ToFloat64(globalManager.classifications); got != before+1 {
		t.Errorf("classifications = %v, want %v", got, before+1)
	}

	beforeErr := testutil.ToFloat64(globalManager.classificationErrors)
	RecordClassificationError()
	if got := testutil.ToFloat64(globalManager.classificationErrors); got != beforeErr+1 {
		t.Errorf("classification errors = %v, want %v", got, beforeErr+1)
	}

	beforeIdx := testutil.ToFloat64(globalManager.embeddingsIndexed)
	RecordEmbeddingIndexed()
	if got := testutil.ToFloat64(globalManager.embeddingsIndexed); got != beforeIdx+1 {
		t.Errorf("embeddings indexed = %v, want %v", got, beforeIdx+1)
	}
}

func TestEmbeddingDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry), WithNamespace("test"))

	m.embeddingDuration.Observe(0.25)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "test_embedding_batch_duration_seconds" {
			continue
		}
		if count := f.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
			t.Errorf("sample count = %d, want 1", count)
		}
		return
	}
	t.Error("embedding duration histogram not registered")
}

func TestRegistryExcludesGoCollectors(t *testing.T) {
	families, err := Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if name := f.GetName(); len(name) >= 3 && name[:3] == "go_" {
			t.Errorf("registry should not expose runtime metric %s", name)
		}
	}
}
