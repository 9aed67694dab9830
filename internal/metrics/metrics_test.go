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

func TestRecordRemoteCallOutcomes(t *testing.T) {
	m := New()
	m.RecordRemoteCall("login", nil, 10*time.Millisecond)
	m.RecordRemoteCall("login", errors.New("bad credentials"), 10*time.Millisecond)
	m.RecordRemoteCall("login", errors.New("bad credentials"), 10*time.Millisecond)

	if got := testutil.ToFloat64(m.remoteCalls.WithLabelValues("login", "success")); got != 1 {
		t.Fatalf("success calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.remoteCalls.WithLabelValues("login", "error")); got != 2 {
		t.Fatalf("error calls = %v, want 2", got)
	}
}

func TestProbeGauge(t *testing.T) {
	m := New()
	m.SetBackendUp(true)
	if got := testutil.ToFloat64(m.probeUp); got != 1 {
		t.Fatalf("probe up = %v, want 1", got)
	}
	m.SetBackendUp(false)
	if got := testutil.ToFloat64(m.probeUp); got != 0 {
		t.Fatalf("probe up = %v, want 0", got)
	}
}

func TestHandlerExposesTransitions(t *testing.T) {
	m := New()
	m.RecordTransition("initializing", "authenticated")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `foodapp_session_transitions_total{from="initializing",to="authenticated"} 1`) {
		t.Fatalf("transition metric missing from output")
	}
}
