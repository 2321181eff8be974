// Package export writes a period to an Excel workbook.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/conciliador/internal/model"
	"github.com/xuri/excelize/v2"
)

const currencyFormat = `"R$" #,##0.00`

// FileName returns the default workbook name for a period.
func FileName(period model.PeriodID) string {
	return fmt.Sprintf("fechamento-%s.xlsx", period)
}

type styles struct {
	header   int
	currency int
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles{}, fmt.Errorf("header style: %w", err)
	}

	numFmt := currencyFormat
	currency, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return styles{}, fmt.Errorf("currency style: %w", err)
	}
	return styles{header: header, currency: currency}, nil
}

// Workbook renders the period. The caller owns the returned file and must
// close it.
func Workbook(report *model.MonthlyReport, snapshot *model.ConsolidatedSummary) (*excelize.File, error) {
	f := excelize.NewFile()

	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	for i, sheet := range Layout(report, snapshot) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				_ = f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			_ = f.Close()
			return nil, err
		}

		if err := writeSheet(f, sheet, st); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet Sheet, st styles) error {
	width := 0
	for r, row := range sheet.Rows {
		width = max(width, len(row))
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet.Name, cell, v); err != nil {
				return err
			}
		}
	}
	if width == 0 {
		return nil
	}

	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet.Name, "A1", last+"1", st.header); err != nil {
		return err
	}

	if len(sheet.Rows) > 1 {
		for _, c := range sheet.CurrencyColumns {
			col, err := excelize.ColumnNumberToName(c + 1)
			if err != nil {
				return err
			}
			top := fmt.Sprintf("%s2", col)
			bottom := fmt.Sprintf("%s%d", col, len(sheet.Rows))
			if err := f.SetCellStyle(sheet.Name, top, bottom, st.currency); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet.Name, "A", last, 16); err != nil {
		return err
	}
	return f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteFile renders the period into path, creating parent directories.
func WriteFile(report *model.MonthlyReport, snapshot *model.ConsolidatedSummary, path string) error {
	f, err := Workbook(report, snapshot)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	slog.Info("Exported period", "period", report.Period, "path", path)
	return nil
}
