package report

import (
	"fmt"
	"io"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names used in the workbook.
const (
	SheetTopCTR = "top_ctr"
	SheetTopCPA = "top_cpa"
)

// WriteXLSX writes both rankings to a single workbook, one sheet each.
// Numeric columns are stored as numbers rounded like the CSV output.
func WriteXLSX(w io.Writer, reports models.Reports) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTopCTR); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTopCPA); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := fillSheet(f, SheetTopCTR, reports.TopCTR); err != nil {
		return err
	}
	if err := fillSheet(f, SheetTopCPA, reports.TopCPA); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, sheet string, records []models.CampaignMetrics) error {
	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for i, m := range records {
		var cpa interface{} = ""
		if v, ok := m.CPA.Get(); ok {
			cpa = Round(v)
		}
		row := []interface{}{
			m.CampaignID,
			m.Impressions,
			m.Clicks,
			Round(m.Spend),
			m.Conversions,
			Round(m.CTR),
			cpa,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
