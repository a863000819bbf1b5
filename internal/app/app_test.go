// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/app"
	"github.com/JakeFAU/legal-notice-harvester/internal/config"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/sites"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage/local"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage/memory"
)

const agoraPage = `<html><body>
<div id="certificadas" class="row"><a href="/files/a.pdf">
  <div class="col-md-3 strong">Companhia Potiguar</div>
  <div class="col-md-2 text-center">10/10/2025</div></a></div>
<div id="certificadas" class="row"><a href="/files/b.pdf">
  <div class="col-md-3 strong">Cooperativa Norte</div>
  <div class="col-md-2 text-center">09/10/2025</div></a></div>
</body></html>`

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

// stubFetcher serves the first agorarn index page and fails everything else.
type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	switch {
	case strings.HasSuffix(rawURL, "/publicacoescertificadas/page/1/"):
		return agoraPage, nil
	case strings.Contains(rawURL, "/publicacoescertificadas/"):
		return "<html><body></body></html>", nil
	default:
		return "", &harvest.FetchError{Kind: harvest.KindHTTPStatus, URL: rawURL, Code: 503, Reason: "Service Unavailable"}
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Output.Dir = t.TempDir()
	cfg.Crawl.EntryDelay = 0
	cfg.Crawl.PageDelay = 0
	cfg.Retry.Backoff = 0
	cfg.Fetch.RequestsPerSecond = 0
	return cfg
}

func TestNewApp_Defaults(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, sites.IDs(), a.Orchestrator().Sites())
	assert.IsType(t, &local.BlobStore{}, a.Store())
	assert.NotNil(t, a.Clock())
	assert.Equal(t, cfg.Server.Port, a.Config().Server.Port)
	assert.NotNil(t, a.Logger())

	sched, err := a.NewScheduler()
	require.NoError(t, err)
	assert.False(t, sched.Next().IsZero())
}

func TestNewApp_RejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Timezone = "Mars/Olympus"

	_, err := app.NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timezone")
}

func TestNewApp_SiteOverridesReachStrategies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sites = map[string]config.SiteConfig{
		sites.DiarioDoComercioID: {BaseURL: "http://mirror.local", MaxPages: 3},
	}

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	site, ok := a.Orchestrator().Site(sites.DiarioDoComercioID)
	require.True(t, ok)
	assert.Equal(t, "http://mirror.local", site.BaseURL)
	assert.Equal(t, 3, site.MaxPages)
}

func TestApp_SchedulerRunWritesSuccessfulSites(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracing.Enabled = true
	store := memory.NewBlobStore()

	a, err := app.NewApp(context.Background(), cfg, zap.NewNop(),
		app.WithFetcher(stubFetcher{}),
		app.WithPauser(noPause{}),
		app.WithStore(store),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	sched, err := a.NewScheduler()
	require.NoError(t, err)
	snapshots := sched.RunOnce(context.Background())

	require.Len(t, snapshots, 1)
	assert.Equal(t, sites.AgoraRNID, snapshots[0].Site)
	assert.Equal(t, 2, snapshots[0].Records)

	body, ok := store.Get(snapshots[0].Name)
	require.True(t, ok)
	assert.Contains(t, string(body), "Companhia Potiguar")
	assert.Contains(t, string(body), "https://agorarn.com.br/files/b.pdf")
}

func TestApp_APIServerRunsOneSite(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.NewApp(context.Background(), cfg, nil,
		app.WithFetcher(stubFetcher{}),
		app.WithPauser(noPause{}),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	handler := a.NewAPIServer().Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agorarn?date=09/10/2025", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	// agorarn lists newest first, so the 10/10 entry ends the crawl
	assert.Contains(t, rec.Body.String(), `"total":0`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diariocomercial?date=09/10/2025", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "503")
}
