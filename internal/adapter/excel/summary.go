// Package excel exports a forest's feature summary as an .xlsx workbook.
package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/form"
)

// SheetName is the worksheet holding one row per feature.
const SheetName = "Features"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"Feature", "Kind", "Control", "Min", "Max", "Mean", "Default"}

// WriteFeatureSummary writes one row per feature: its kind, the historical
// range and mean, and the control the prediction form shows for it.
func WriteFeatureSummary(w io.Writer, features []domain.FeatureDescriptor, f *form.Form) error {
	xf := excelize.NewFile()
	defer xf.Close()

	if err := xf.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := xf.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := xf.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := xf.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	controls := make(map[string]form.Control, len(f.Controls))
	for _, c := range f.Controls {
		controls[c.Name] = c
	}

	for i, d := range features {
		c := controls[d.Name]
		row := []any{d.Name, string(d.Kind), string(c.Widget), d.Min, d.Max, d.Mean, defaultValue(c)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := xf.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write %s: %w", d.Name, err)
		}
	}

	if err := xf.SetColWidth(SheetName, "A", "A", 24); err != nil {
		return err
	}
	if err := xf.SetColWidth(SheetName, "B", "G", 14); err != nil {
		return err
	}
	if err := xf.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if err := xf.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func defaultValue(c form.Control) any {
	if c.DefaultDate != "" {
		return c.DefaultDate
	}
	return c.Default
}
