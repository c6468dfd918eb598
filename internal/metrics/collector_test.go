package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/warnain/backend/internal/printing"
	"github.com/warnain/backend/internal/settings"
)

func TestCollectorCountsObservations(t *testing.T) {
	collector := NewCollector()

	collector.CategoryAccessed(1)
	collector.CategoryAccessed(2)
	collector.JobSubmitted("Office")
	collector.JobFinished(printing.StatusCompleted, 250*time.Millisecond)
	collector.JobFinished(printing.StatusFailed, time.Second)
	collector.SyncCompleted(settings.SyncKindPrinters, true)
	collector.SyncCompleted(settings.SyncKindInterfaces, false)

	if got := testutil.ToFloat64(collector.categoryAccesses); got != 2 {
		t.Fatalf("expected 2 accesses, got %v", got)
	}
	if got := testutil.ToFloat64(collector.jobsSubmitted.WithLabelValues("Office")); got != 1 {
		t.Fatalf("expected 1 submitted job, got %v", got)
	}
	if got := testutil.ToFloat64(collector.jobsFinished.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed job, got %v", got)
	}
	if got := testutil.ToFloat64(collector.syncRuns.WithLabelValues("interfaces", "false")); got != 1 {
		t.Fatalf("expected 1 failed interface sync, got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	collector := NewCollector()
	registry, err := NewRegistry(collector)
	if err != nil {
		t.Fatalf("registry failed: %v", err)
	}
	collector.CategoryAccessed(7)

	recorder := httptest.NewRecorder()
	Handler(registry).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "warnain_category_accesses_total 1") {
		t.Fatalf("expected access counter in output")
	}
}
