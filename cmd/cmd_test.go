package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/app"
	"github.com/JakeFAU/legal-notice-harvester/internal/config"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

const cardPage = `<html><body>
<div class="publicidade_box_infos">
  <span class="publicidade_data">9 de outubro de 2025</span>
  <h2>Edital de Citação</h2>
  <a href="https://diariocomercial.com.br/wp-content/uploads/citacao.pdf">PDF</a>
</div>
<div class="publicidade_box_infos">
  <span class="publicidade_data">8 de outubro de 2025</span>
  <h2>Ata da Assembleia Geral</h2>
  <a href="https://diariocomercial.com.br/wp-content/uploads/ata.pdf">PDF</a>
</div>
</body></html>`

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

type pageFetcher struct{}

func (pageFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	if strings.HasSuffix(rawURL, "/publicidade-legal/pagina/1/") {
		return cardPage, nil
	}
	return "<html></html>", nil
}

// useTestApp swaps the factory for one backed by canned pages.
func useTestApp(t *testing.T) {
	t.Helper()
	original := newApp
	outDir := t.TempDir()
	newApp = func(ctx context.Context, _ string) (App, error) {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.Output.Dir = outDir
		cfg.Crawl.EntryDelay = 0
		cfg.Crawl.PageDelay = 0
		cfg.Fetch.RequestsPerSecond = 0
		return app.NewApp(ctx, cfg, zap.NewNop(), app.WithFetcher(pageFetcher{}), app.WithPauser(noPause{}))
	}
	t.Cleanup(func() { newApp = original })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunWritesJSONExport(t *testing.T) {
	useTestApp(t)
	dir := t.TempDir()

	out, err := execute(t, "run", "DiarioComercial", "31/12/2025", "--filter", "assembleia", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 publications saved")

	files, err := filepath.Glob(filepath.Join(dir, "publicacoes_coletadas_diariocomercial_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ata da Assembleia Geral")
	assert.NotContains(t, string(body), "Edital de Citação")
}

func TestRunWritesCSVWithFilter(t *testing.T) {
	useTestApp(t)
	dir := t.TempDir()

	_, err := execute(t, "run", "diariocomercial", "31/12/2025", "--format", "csv", "--filter", "citacao", "--out", dir)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	body, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,title,pdf_url,site,original_url", lines[0])
	assert.Contains(t, lines[1], "Edital de Citação")
}

func TestRunWritesNothingWhenEmpty(t *testing.T) {
	useTestApp(t)
	dir := t.TempDir()

	out, err := execute(t, "run", "diariocomercial", "01/01/2020", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no publications found")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRejectsBadInput(t *testing.T) {
	useTestApp(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown site", args: []string{"run", "jornal"}, want: "unknown site"},
		{name: "bad cutoff", args: []string{"run", "agorarn", "2025-10-09"}, want: "invalid cutoff"},
		{name: "bad format", args: []string{"run", "agorarn", "--format", "xml"}, want: "invalid format"},
		{name: "missing site", args: []string{"run"}, want: "arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSitesListsRegistry(t *testing.T) {
	useTestApp(t)

	out, err := execute(t, "sites")
	require.NoError(t, err)
	for _, want := range []string{"agorarn", "diariocomercial", "diariodocomercio", "200"} {
		assert.Contains(t, out, want)
	}
}

func TestResolveAppWithoutServices(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestDefaultCutoffIsToday(t *testing.T) {
	useTestApp(t)
	appInstance, err := newApp(context.Background(), "")
	require.NoError(t, err)
	defer appInstance.Close()

	today := harvest.DateOf(appInstance.Clock().Now())
	assert.False(t, today.IsZero())
}
