package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/dispatcher"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

type fakeHarvester struct {
	mu      sync.Mutex
	sites   []string
	records []harvest.Record
	err     error
	panics  bool
	blocks  bool
	calls   []harvestCall
}

type harvestCall struct {
	site   string
	cutoff harvest.Date
	filter string
}

func (f *fakeHarvester) Sites() []string {
	return f.sites
}

func (f *fakeHarvester) Run(ctx context.Context, siteID string, cutoff harvest.Date, filter string) ([]harvest.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, harvestCall{site: siteID, cutoff: cutoff, filter: filter})
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.records, f.err
}

func sampleRecords() []harvest.Record {
	return []harvest.Record{
		{
			Date:        harvest.NewDate(2025, time.October, 9),
			Title:       "Prefeitura de Natal - Edital de Convocação",
			PDFURL:      "https://agorarn.com.br/files/edital.pdf",
			Site:        "agorarn.com.br",
			OriginalURL: "https://agorarn.com.br/publicacoescertificadas/page/1/",
		},
		{
			Date:        harvest.NewDate(2025, time.October, 8),
			Title:       "Balanço Patrimonial",
			PDFURL:      "https://agorarn.com.br/files/balanco.pdf",
			Site:        "agorarn.com.br",
			OriginalURL: "https://agorarn.com.br/publicacoescertificadas/page/1/",
		},
	}
}

func newTestServer(h *fakeHarvester, opts Options) *Server {
	if h.sites == nil {
		h.sites = []string{"agorarn", "diariocomercial", "diariodocomercio"}
	}
	return NewServer(h, opts, zap.NewNop())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Index(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body indexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"agorarn", "diariocomercial", "diariodocomercio"}, body.Sites)
	assert.Contains(t, body.Endpoints["run"], "date=dd/mm/yyyy")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	require.Equal(t, http.StatusOK, serve(server, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	require.Equal(t, http.StatusOK, serve(server, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	empty := NewServer(&fakeHarvester{sites: []string{}}, Options{}, nil)
	require.Equal(t, http.StatusServiceUnavailable, serve(empty, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	serve(server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RunJSON(t *testing.T) {
	t.Parallel()

	h := &fakeHarvester{records: sampleRecords()}
	server := newTestServer(h, Options{})
	req := httptest.NewRequest(http.MethodGet, "/AgoraRN?date=09/10/2025&filter=balanco", nil)
	rec := serve(server, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "agorarn", body.Site)
	assert.Equal(t, "09/10/2025", body.CutoffDate)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "09/10/2025", body.Results[0].Date.String())
	assert.Contains(t, rec.Body.String(), "Balanço", "non-ASCII titles are not escaped")

	require.Len(t, h.calls, 1)
	assert.Equal(t, "agorarn", h.calls[0].site)
	assert.True(t, h.calls[0].cutoff.Equal(harvest.NewDate(2025, time.October, 9)))
	assert.Equal(t, "balanco", h.calls[0].filter)
}

func TestServer_RunJSONEmpty(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestServer_RunCSV(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{records: sampleRecords()}, Options{})
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025&format=CSV", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=agorarn_data.csv", rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,title,pdf_url,site,original_url", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "09/10/2025,"))
}

func TestServer_RunCSVEmpty(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025&format=csv", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServer_RunRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "unknown site", path: "/jornal?date=09/10/2025", want: "not recognized"},
		{name: "missing date", path: "/agorarn", want: "'date'"},
		{name: "bad format", path: "/agorarn?date=09/10/2025&format=xml", want: "invalid format"},
		{name: "malformed date", path: "/agorarn?date=2025-10-09", want: "use dd/mm/yyyy"},
		{name: "impossible date", path: "/agorarn?date=31/02/2025", want: "use dd/mm/yyyy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := &fakeHarvester{}
			server := newTestServer(h, Options{})
			rec := serve(server, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Empty(t, h.calls, "invalid input must not reach the orchestrator")
		})
	}
}

func TestServer_RunCoreErrors(t *testing.T) {
	t.Parallel()

	failing := newTestServer(&fakeHarvester{err: errors.New("http error 503 Service Unavailable")}, Options{})
	rec := serve(failing, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "503")

	unknown := newTestServer(&fakeHarvester{err: dispatcher.ErrUnknownSite}, Options{})
	rec = serve(unknown, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	panicking := newTestServer(&fakeHarvester{panics: true}, Options{})
	rec = serve(panicking, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_RequestTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{blocks: true}, Options{RequestTimeout: 20 * time.Millisecond})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "request timed out")
	require.Equal(t, http.StatusOK, serve(server, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestServer_RequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeHarvester{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := serve(server, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}
