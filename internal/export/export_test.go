package export_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/legal-notice-harvester/internal/export"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

func sampleRecords() []harvest.Record {
	return []harvest.Record{
		{
			Date:        harvest.NewDate(2025, time.October, 9),
			Title:       "Balanço & Demonstrações",
			PDFURL:      "https://agorarn.com.br/a.pdf",
			Site:        "agorarn.com.br",
			OriginalURL: "https://agorarn.com.br/publicacoescertificadas/page/1/",
		},
		{
			Date:        harvest.NewDate(2025, time.October, 8),
			Title:       "Edital, com vírgula",
			PDFURL:      "https://agorarn.com.br/b.pdf",
			Site:        "agorarn.com.br",
			OriginalURL: "https://agorarn.com.br/publicacoescertificadas/page/1/",
		},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    export.Format
		wantErr bool
	}{
		{raw: "", want: export.FormatJSON},
		{raw: "json", want: export.FormatJSON},
		{raw: " CSV ", want: export.FormatCSV},
		{raw: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := export.ParseFormat(tt.raw)
		if tt.wantErr {
			require.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	data, err := export.Encode(export.FormatJSON, sampleRecords()[:1])
	require.NoError(t, err)
	want := `[
    {
        "date": "09/10/2025",
        "title": "Balanço & Demonstrações",
        "pdf_url": "https://agorarn.com.br/a.pdf",
        "site": "agorarn.com.br",
        "original_url": "https://agorarn.com.br/publicacoescertificadas/page/1/"
    }
]
`
	assert.Equal(t, want, string(data))
}

func TestWriteJSONEmpty(t *testing.T) {
	t.Parallel()

	data, err := export.Encode(export.FormatJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	data, err := export.Encode(export.FormatCSV, sampleRecords())
	require.NoError(t, err)
	want := "date,title,pdf_url,site,original_url\n" +
		"09/10/2025,Balanço & Demonstrações,https://agorarn.com.br/a.pdf,agorarn.com.br,https://agorarn.com.br/publicacoescertificadas/page/1/\n" +
		"08/10/2025,\"Edital, com vírgula\",https://agorarn.com.br/b.pdf,agorarn.com.br,https://agorarn.com.br/publicacoescertificadas/page/1/\n"
	assert.Equal(t, want, string(data))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.October, 9, 6, 0, 3, 0, time.UTC)
	assert.Equal(t, "publicacoes_agorarn_20251009_060003.json", export.Filename("publicacoes", "agorarn", at, export.FormatJSON))
	assert.Equal(t, "text/csv; charset=utf-8", export.FormatCSV.ContentType())
}
