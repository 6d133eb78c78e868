package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := New(registry)

	m.SessionsStarted.Inc()
	m.SessionActive.Set(1)
	m.FramesSent.Add(3)

	if got := testutil.ToFloat64(m.SessionsStarted); got != 1 {
		t.Fatalf("sessions started = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionActive); got != 1 {
		t.Fatalf("session active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FramesSent); got != 3 {
		t.Fatalf("frames sent = %v, want 3", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := New(registry)
	m.TurnsCompleted.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "lingua_turns_completed_total 1") {
		t.Fatalf("expected turn counter in output:\n%s", body)
	}
}
