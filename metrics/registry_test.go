package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerServesRegisteredGauges(t *testing.T) {
	reg := NewRegistry(Counters{
		SessionCount:  func() float64 { return 3 },
		ScriptCount:   func() float64 { return 7 },
		GroundedCount: func() float64 { return 2 },
	})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, req)

	body := rr.Body.String()
	for _, want := range []string{
		"rez_sessions_active 3",
		"rez_scripts_loaded 7",
		"rez_avatars_grounded 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics body missing %q; body=\n%s", want, body)
		}
	}
}

func TestNewRegistryDefaultsNilCountersToZero(t *testing.T) {
	reg := NewRegistry(Counters{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), "rez_sessions_active 0") {
		t.Errorf("expected rez_sessions_active 0 with no counter supplied, got:\n%s", rr.Body.String())
	}
}

func TestObservePhysicsTickRecordsHistogram(t *testing.T) {
	reg := NewRegistry(Counters{})
	reg.ObservePhysicsTick(2 * time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), "rez_physics_tick_seconds") {
		t.Errorf("expected rez_physics_tick_seconds histogram in output, got:\n%s", rr.Body.String())
	}
}
