package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/momentics/hioload-tcp/api"
)

type fakeSource struct {
	running bool
	accept  bool
}

func (f fakeSource) Stats() api.ServerStats {
	st := api.ServerStats{Clients: 2, Port: 9000}
	if f.running {
		st.State = api.StateRunning
	}
	return st
}

func (f fakeSource) DebugState() map[string]any { return map[string]any{"server.clients": 2} }
func (f fakeSource) IsRunning() bool { return f.running }
func (f fakeSource) IsAcceptConnecting() bool { return f.accept }
func (f *fakeSource) SetAcceptConnection(on bool) { f.accept = on }

func TestHealthz(t *testing.T) {
	for _, running := range []bool{true, false} {
		rr := httptest.NewRecorder()
		adminRouter(&fakeSource{running: running}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		want := http.StatusOK
		if !running {
			want = http.StatusServiceUnavailable
		}
		if rr.Code != want {
			t.Errorf("running=%v: status %d, want %d", running, rr.Code, want)
		}
	}
}

func TestDebugState(t *testing.T) {
	rr := httptest.NewRecorder()
	adminRouter(&fakeSource{running: true}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var resp stateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "running" || resp.Stats.Clients != 2 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Probes["server.clients"] != float64(2) {
		t.Errorf("probes = %v", resp.Probes)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	adminRouter(&fakeSource{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestAcceptToggle(t *testing.T) {
	src := &fakeSource{running: true, accept: true}
	router := adminRouter(src)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/accept/false", nil))
	if rr.Code != http.StatusOK || src.accept {
		t.Fatalf("status %d, accept=%v", rr.Code, src.accept)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/accept/maybe", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad value: status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accept/", nil))
	var body map[string]bool
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["accept"] {
		t.Errorf("accept = %v", body)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Errorf("debug: %v", err)
	}
	if _, err := newLogger("verbose"); err == nil {
		t.Error("unknown level should fail")
	}
}
