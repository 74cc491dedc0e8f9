package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReports() models.Reports {
	a := models.CampaignMetrics{
		CampaignID:  "A",
		Accumulator: models.Accumulator{Impressions: 200, Clicks: 15, Spend: 10.0, Conversions: 1},
		CTR:         0.075,
		CPA:         models.Some(10.0),
	}
	b := models.CampaignMetrics{CampaignID: "B"}
	return models.Reports{
		TopCTR: []models.CampaignMetrics{a, b},
		TopCPA: []models.CampaignMetrics{a},
	}
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0000"},
		{0.075, "0.0750"},
		{60.0 / 3653.0, "0.0164"},
		{1394.62 / 42, "33.2052"},
		{10, "10.0000"},
		{0.00004, "0.0000"},
		{-0.00001, "0.0000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDecimal(tt.in), "%v", tt.in)
	}
}

func TestRowAbsentCPAIsEmpty(t *testing.T) {
	r := sampleReports()
	assert.Equal(t, []string{"A", "200", "15", "10.0000", "1", "0.0750", "10.0000"}, Row(r.TopCTR[0]))
	assert.Equal(t, []string{"B", "0", "0", "0.0000", "0", "0.0000", ""}, Row(r.TopCTR[1]))
	assert.Len(t, Rows(r.TopCTR), 2)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReports().TopCTR))

	want := "campaign_id,impressions,clicks,spend,conversions,ctr,cpa\n" +
		"A,200,15,10.0000,1,0.0750,10.0000\n" +
		"B,0,0,0.0000,0,0.0000,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVEmptyIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "campaign_id,impressions,clicks,spend,conversions,ctr,cpa\n", buf.String())
}

func TestFileWriterWritesBothReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	fw := NewFileWriter()

	paths, err := fw.Write(dir, sampleReports())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "top10_ctr.csv"),
		filepath.Join(dir, "top10_cpa.csv"),
	}, paths)

	cpa, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "campaign_id,impressions,clicks,spend,conversions,ctr,cpa\nA,200,15,10.0000,1,0.0750,10.0000\n", string(cpa))

	// No temporary files linger.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileWriterReportsFailingReport(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriter()
	// A directory in the way of the CPA report makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, fw.CPAFile), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fw.CPAFile, "keep"), []byte("x"), 0o644))

	paths, err := fw.Write(dir, sampleReports())
	require.Error(t, err)
	assert.Equal(t, []string{filepath.Join(dir, fw.CTRFile)}, paths)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, NameTopCPA, werr.Report)
	assert.Contains(t, err.Error(), "top_cpa")
}

func TestFileWriterXLSX(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriter()
	fw.CSV = false
	fw.XLSX = true

	paths, err := fw.Write(dir, sampleReports())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "top10.xlsx")}, paths)

	f, err := excelize.OpenFile(paths[0])
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTopCTR, SheetTopCPA}, f.GetSheetList())

	rows, err := f.GetRows(SheetTopCTR)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "A", rows[1][0])
	assert.Equal(t, "0.075", rows[1][5])

	rows, err = f.GetRows(SheetTopCPA)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
