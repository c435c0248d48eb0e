package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

type stubPDFRenderer struct {
	called bool
	html   string
	err    error
}

func (s *stubPDFRenderer) Render(_ context.Context, html string) ([]byte, error) {
	s.called = true
	s.html = html
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

func setupServer(t *testing.T, gen *fakeGenerator, opts ...ServerOption) (*httptest.Server, *Service) {
	t.Helper()
	svc, _ := newTestService(t, gen, ServiceOptions{Assess: true, MaxConcurrent: 2})
	metrics := telemetry.NewMetrics()
	meter, err := telemetry.NewMeter(metrics, "formulation-studio-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	opts = append([]ServerOption{WithMetrics(metrics, meter), WithLogger(logger.NewTestLogger(t))}, opts...)
	srv := httptest.NewServer(NewServer(svc, opts...))
	t.Cleanup(srv.Close)
	return srv, svc
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func submitAndWait(t *testing.T, srv *httptest.Server, body any) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/formulations", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	out := decodeJSON(t, resp)
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", out["status"])

	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/api/formulations/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var sub store.Submission
		if json.NewDecoder(resp.Body).Decode(&sub) != nil {
			return false
		}
		return sub.Status == store.StatusCompleted
	}, 3*time.Second, 20*time.Millisecond)
	return id
}

func TestHealthz(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeJSON(t, resp)["status"])
}

func TestSubmitJSONEndToEnd(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})
	id := submitAndWait(t, srv, map[string]any{"prompt": "a brightening vitamin C serum", "category": "skincare", "city": "Mumbai"})

	resp, err := http.Get(srv.URL + "/api/formulations/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	var sub store.Submission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sub))
	require.NotNil(t, sub.Insights)
	assert.Equal(t, "Mumbai", sub.Insights.City)
	assert.Equal(t, "skincare", sub.Insights.Category)
	require.NotNil(t, sub.Assessment)

	list, err := http.Get(srv.URL + "/api/formulations?limit=10")
	require.NoError(t, err)
	subs, ok := decodeJSON(t, list)["submissions"].([]any)
	require.True(t, ok)
	assert.Len(t, subs, 1)
}

func TestSubmitForm(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	form := url.Values{"prompt": {"sandalwood incense"}, "category": {"household"}}
	resp, err := http.PostForm(srv.URL+"/api/formulations", form)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "turmeric face pack"))
	require.NoError(t, mw.WriteField("location", "Jaipur"))
	require.NoError(t, mw.Close())
	resp, err = http.Post(srv.URL+"/api/formulations", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp := postJSON(t, srv.URL+"/api/formulations", map[string]any{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeJSON(t, resp)["error"], "prompt is required")

	resp, err := http.Post(srv.URL+"/api/formulations", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/formulations", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/formulations?limit=-3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetUnknownSubmission(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	for _, path := range []string{"/api/formulations/nope", "/api/formulations/nope/report", "/api/formulations/nope/report.pdf"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		if strings.HasSuffix(path, ".pdf") {
			// No renderer configured.
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		} else {
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		}
		resp.Body.Close()
	}
}

func TestReportNotReady(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	defer close(gen.release)
	srv, _ := setupServer(t, gen)

	resp := postJSON(t, srv.URL+"/api/formulations", map[string]any{"prompt": "rose water toner"})
	id, _ := decodeJSON(t, resp)["id"].(string)

	resp, err := http.Get(srv.URL + "/api/formulations/" + id + "/report")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "report not ready", decodeJSON(t, resp)["error"])
}

func TestReportFormats(t *testing.T) {
	pdf := &stubPDFRenderer{}
	srv, _ := setupServer(t, &fakeGenerator{}, WithPDFRenderer(pdf))
	id := submitAndWait(t, srv, map[string]any{"prompt": "a brightening vitamin C serum", "category": "cosmetics"})

	resp, err := http.Get(srv.URL + "/api/formulations/" + id + "/report")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
	assert.Contains(t, string(body), "# Monsoon Glow Serum")
	assert.Contains(t, string(body), "Priority Scorecard")

	resp, err = http.Get(srv.URL + "/api/formulations/" + id + "/report?format=html")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<table>")

	resp, err = http.Get(srv.URL + "/api/formulations/" + id + "/report.pdf")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Monsoon-Glow-Serum.pdf")
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	assert.True(t, pdf.called)
	assert.Contains(t, pdf.html, "Monsoon Glow Serum")
}

func TestReportPDFUnavailable(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{}, WithPDFRenderer(&stubPDFRenderer{err: report.ErrPDFUnavailable}))
	id := submitAndWait(t, srv, map[string]any{"prompt": "lemongrass floor cleaner"})

	resp, err := http.Get(srv.URL + "/api/formulations/" + id + "/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestCategories(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp, err := http.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	out := decodeJSON(t, resp)
	cats, ok := out["categories"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, cats)
	first := cats[0].(map[string]any)
	assert.Equal(t, "beverages", first["category"], "sorted by name")
	assert.Contains(t, first, "theme")
	assert.Contains(t, out["cities"], "mumbai")
}

func TestPrioritiesEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp := postJSON(t, srv.URL+"/api/insights/priorities", map[string]any{
		"ingredients": []map[string]any{
			{"name": "Retinol", "percentage": 1, "costPer100ml": 30, "whyChosen": "clinically proven efficacy"},
			{"name": "Organic aloe", "percentage": 40},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON(t, resp)
	scores, ok := out["priorities"].([]any)
	require.True(t, ok)
	assert.Len(t, scores, 5)
	radar, ok := out["radar"].([]any)
	require.True(t, ok)
	assert.Len(t, radar, 5)

	resp, err := http.Post(srv.URL+"/api/insights/priorities", "application/json", strings.NewReader("[1,2]"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/insights/priorities")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestPrioritiesEmptyBody(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp, err := http.Post(srv.URL+"/api/insights/priorities", "application/json", nil)
	require.NoError(t, err)
	out := decodeJSON(t, resp)
	scores := out["priorities"].([]any)
	require.Len(t, scores, 5)
	for _, s := range scores {
		assert.EqualValues(t, 0, s.(map[string]any)["score"])
	}
}

func TestMarketSizeEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp := postJSON(t, srv.URL+"/api/insights/market-size", map[string]any{})
	out := decodeJSON(t, resp)
	assert.Equal(t, true, out["illustrative"])
	size := out["marketSize"].(map[string]any)
	assert.InDelta(t, 8500, size["tam"].(map[string]any)["marketSize"], 1e-9)

	resp = postJSON(t, srv.URL+"/api/insights/market-size", map[string]any{
		"city":        "Pune",
		"category":    "skincare",
		"observation": map[string]any{"location": "Pune", "marketSize": 25000000},
	})
	out = decodeJSON(t, resp)
	assert.Equal(t, false, out["illustrative"])
	som := out["marketSize"].(map[string]any)["som"].(map[string]any)["marketSize"].(float64)
	assert.GreaterOrEqual(t, som, 37.5, "SOM never falls below 1.5x the local market")
	assert.Contains(t, out, "projection")
	assert.Equal(t, "skincare", out["theme"].(map[string]any)["category"])
}

func TestSegmentsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp := postJSON(t, srv.URL+"/api/insights/segments", map[string]any{"observation": nil})
	out := decodeJSON(t, resp)
	assert.Equal(t, true, out["illustrative"])
	assert.InDelta(t, 10000, out["totalPurchasers"], 1e-6)

	resp = postJSON(t, srv.URL+"/api/insights/segments", map[string]any{
		"observation": map[string]any{"totalPurchasers": 20000, "averageOrderValue": 1000},
	})
	out = decodeJSON(t, resp)
	assert.Equal(t, false, out["illustrative"])
	assert.InDelta(t, 20000, out["totalPurchasers"], 1e-6)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &fakeGenerator{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_server_requests")
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/healthz", routeLabel("/healthz"))
	assert.Equal(t, "/api/formulations/{id}", routeLabel("/api/formulations/abc"))
	assert.Equal(t, "/api/formulations/{id}/report.pdf", routeLabel("/api/formulations/abc/report.pdf"))
}
