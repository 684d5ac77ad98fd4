package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	mux := NewMux(&mockService{body: `{"response":"ok"}`})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/generate", http.MethodPost, "200"))
	postGenerate(mux, `{"model":"small","prompt":"x"}`, "application/json")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/generate", http.MethodPost, "200"))
	if after != before+1 {
		t.Fatalf("requests_total{path=/generate}: before=%v after=%v", before, after)
	}
}

func TestMetricsMiddleware_UnmatchedPathsShareOneLabel(t *testing.T) {
	mux := NewMux(&mockService{})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "404"))
	for _, p := range []string{"/nope", "/models/extra/segments", "/generate/x"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "404"))
	if after != before+3 {
		t.Fatalf("unmatched requests: before=%v after=%v", before, after)
	}
}

func TestMetricsEndpoint_ExposesGatewayFamilies(t *testing.T) {
	mux := NewMux(&mockService{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr = httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	body := rr.Body.Bytes()
	for _, fam := range []string{"modelgate_http_requests_total", "modelgate_http_request_duration_seconds"} {
		if !bytes.Contains(body, []byte(fam)) {
			t.Fatalf("missing %s in /metrics", fam)
		}
	}
	if strings.Contains(rr.Body.String(), `path="/healthz?`) {
		t.Fatal("query string leaked into path label")
	}
}
