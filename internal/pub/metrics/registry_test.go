package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPublish(t *testing.T) {
	r := NewRegistry()

	r.RecordPublish("hub1", "plain", "success", 128, 10*time.Millisecond)
	r.RecordPublish("hub1", "plain", "success", 256, 10*time.Millisecond)
	r.RecordPublish("hub1", "partition_key", "invalid", 0, time.Millisecond)

	if got := testutil.ToFloat64(r.publishTotal.WithLabelValues("hub1", "plain", "success")); got != 2 {
		t.Errorf("plain success = %v; want 2", got)
	}
	if got := testutil.ToFloat64(r.publishTotal.WithLabelValues("hub1", "partition_key", "invalid")); got != 1 {
		t.Errorf("partition_key invalid = %v; want 1", got)
	}
	if got := testutil.CollectAndCount(r.payloadBytes); got != 1 {
		t.Errorf("payload series = %d; want 1", got)
	}
}

func TestInFlightAndJournal(t *testing.T) {
	r := NewRegistry()

	r.AddInFlight("hub1", 3)
	r.AddInFlight("hub1", -1)
	if got := testutil.ToFloat64(r.asyncInFlight.WithLabelValues("hub1")); got != 2 {
		t.Errorf("in flight = %v; want 2", got)
	}

	r.RecordJournal("hub1", nil)
	r.RecordJournal("hub1", errors.New("boom"))
	if got := testutil.ToFloat64(r.journalTotal.WithLabelValues("hub1", "error")); got != 1 {
		t.Errorf("journal errors = %v; want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.SetSystemInfo("test", "eventhubs")
	r.RecordPublish("hub1", "plain", "success", 1, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"hubpub_producer_publish_total", "hubpub_system_info", "hubpub_start_time_seconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
