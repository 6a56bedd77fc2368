package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue returns the value of the counter name whose labels include
// every pair in want, and whether it was found.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) (float64, bool) {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), want) {
				return m.GetCounter().GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range pairs {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestMetrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakePipeline{})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ragchat_http_in_flight_requests") {
		t.Errorf("expected server metrics in exposition, got:\n%s", body)
	}
}

func TestMetrics_RequestCounterIncremented(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakePipeline{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: want 200, got %d", w.Code)
	}

	v, ok := counterValue(t, reg, "ragchat_http_requests_total", map[string]string{
		"method": "GET", labelHandler: "health", "code": "200",
	})
	if !ok {
		t.Fatal(`ragchat_http_requests_total{handler="health",code="200"} not found`)
	}
	if v != 1 {
		t.Errorf("want counter=1, got %v", v)
	}
}

func TestMetrics_ErrorCodeCounted(t *testing.T) {
	t.Parallel()
	s, reg := newTestServer(t, &fakePipeline{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("{not json")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", w.Code)
	}

	v, ok := counterValue(t, reg, "ragchat_http_errors_total", map[string]string{"code": "validation_error"})
	if !ok || v != 1 {
		t.Errorf("want validation_error counter=1, got %v (found=%v)", v, ok)
	}
}
