package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testData() ReportData {
	return ReportData{
		ID:               "rec-1",
		Category:         "PROCESS",
		ProblemShort:     "Clip cassé au montage",
		ProblemDetail:    "Le clip se fissure pendant l'assemblage.",
		LlcType:          "INTERNAL",
		Customer:         "VALEO",
		ProductLineLabel: "Brush Holders",
		Editor:           "editor@avocarbon.com",
		Plant:            "POITIERS",
		Conclusions:      "Procédure de montage mise à jour.",
		DistributionTo:   []string{"KUNSHAN", "AMIENS"},
		CreatedAt:        "2026-02-10",
		RootCauses: []ReportRootCause{
			{
				Index:                    1,
				RootCause:                "Outillage usé",
				DetailedCauseDescription: "Le poinçon dépasse sa durée de vie.",
				SolutionDescription:      "Remplacement préventif.",
				Conclusion:               "Efficace",
				Process:                  "Assemblage",
				Origin:                   "Maintenance",
				EvidenceName:             "photo_poincon.jpg",
			},
			{
				Index:     2,
				RootCause: "Formation incomplète",
			},
		},
	}
}

func TestReportRendererRendersFields(t *testing.T) {
	r, err := NewReportRenderer()
	require.NoError(t, err)

	out, err := r.Render(context.Background(), testData())
	require.NoError(t, err)

	body := string(out)
	require.Contains(t, body, "Lesson Learned Card rec-1")
	require.Contains(t, body, "VALEO")
	require.Contains(t, body, "Clip cassé au montage")
	require.Contains(t, body, "1. Outillage usé")
	require.Contains(t, body, "photo_poincon.jpg")
	require.Contains(t, body, "2. Formation incomplète")
	require.Contains(t, body, "KUNSHAN - AMIENS")
}

func TestReportRendererEscapesHTML(t *testing.T) {
	r, err := NewReportRenderer()
	require.NoError(t, err)

	data := testData()
	data.ProblemDetail = `<script>alert("x")</script>`
	out, err := r.Render(context.Background(), data)
	require.NoError(t, err)

	require.NotContains(t, string(out), "<script>")
	require.Contains(t, string(out), "&lt;script&gt;")
}

func TestReportRendererOmitsEmptySections(t *testing.T) {
	r, err := NewReportRenderer()
	require.NoError(t, err)

	data := testData()
	data.DistributionTo = nil
	out, err := r.Render(context.Background(), data)
	require.NoError(t, err)

	require.NotContains(t, string(out), "<h2>Distribution</h2>")
}

func TestDiskStoreSavesAndSanitizes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	path, err := store.Save("LLC_rec-1_1700000000_VALEO.html", []byte("doc"))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "doc", string(got))

	// Separators and shell metacharacters collapse to underscores; the file
	// always lands inside the store directory.
	path, err = store.Save("../outside /name?.html", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))
	require.NotContains(t, filepath.Base(path), "?")
	require.FileExists(t, path)
}

func TestNewDiskStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "docs")
	_, err := NewDiskStore(dir)
	require.NoError(t, err)
	require.DirExists(t, dir)
}
