package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatusClass(t *testing.T) {
	cases := map[int]string{0: "transport", 200: "2xx", 401: "4xx", 404: "4xx", 503: "5xx"}
	for code, want := range cases {
		if got := StatusClass(code); got != want {
			t.Fatalf("StatusClass(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	UpdatesApplied.WithLabelValues("vehicles").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `smartfleet_updates_applied_total{collection="vehicles"}`) {
		t.Fatalf("counter missing from exposition")
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", err, resp)
	}
	resp.Body.Close()
}
