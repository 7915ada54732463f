// =============================================================================
// CFDI XML to XLSX - Sheet Writer
// =============================================================================
//
// This module renders a report.Report into a single-sheet XLSX workbook using
// excelize's stream writer, so memory stays flat for large exports.
//
// SHEET LAYOUT:
//   Row 1            : header (fill #43525A, white bold font, size 14)
//   Rows 2..N+1      : data, banded #F9F9F9 / #FFFFFF
//   Rows N+3..       : one row per total currency (report.TotalRow.SheetRow)
//
//   Every styled cell has a thin #CECECE border. Currency cells use the
//   number format "$ #,##0.00####". The header row is frozen.
//
// WIDTH CLASSES:
//   s = 6, m = 17, l = 44, $ = 16
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/German-GM/cfdi-xmls-to-xlsx/internal/report"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the name of the only sheet.
const DefaultSheetName = "Hoja 1"

// CurrencyFormat is the number format of currency cells.
const CurrencyFormat = "$ #,##0.00####"

// FontSize applies to every styled cell.
const FontSize = 14

const (
	headerFill  = "43525A"
	headerFont  = "FFFFFF"
	evenFill    = "F9F9F9"
	oddFill     = "FFFFFF"
	borderColor = "CECECE"
)

// Widths maps a width class to a column width.
var Widths = map[report.Width]float64{
	report.WidthSmall:    6,
	report.WidthMedium:   17,
	report.WidthLarge:    44,
	report.WidthCurrency: 16,
}

// Writer renders reports to XLSX.
type Writer struct {
	log       zerolog.Logger
	sheetName string
}

// New creates a Writer. An empty sheetName means DefaultSheetName.
func New(log zerolog.Logger, sheetName string) *Writer {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Writer{log: log, sheetName: sheetName}
}

// Write renders rep and saves it to path, creating parent directories.
func (w *Writer) Write(rep *report.Report, path string) error {
	start := time.Now()

	f, err := w.Render(rep)
	if err != nil {
		return err
	}
	defer f.Close()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}

	w.log.Info().
		Str("path", path).
		Int("rows", len(rep.Rows)).
		Int("columns", len(rep.Columns)).
		Dur("elapsed", time.Since(start)).
		Msg("workbook written")
	return nil
}

// Render builds the workbook in memory. The caller must Close it.
func (w *Writer) Render(rep *report.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", w.sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newStyleSet(f)
	if err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(w.sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream writer: %w", err)
	}

	// Widths and panes must precede the first row.
	for i, col := range rep.Columns {
		width, known := Widths[col.Width]
		if !known {
			width = Widths[report.WidthMedium]
		}
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return nil, fmt.Errorf("failed to set width of column %d: %w", i+1, err)
		}
	}
	if len(rep.Columns) > 0 {
		if err := sw.SetPanes(&excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("failed to freeze header: %w", err)
		}
	}

	if len(rep.Header) > 0 {
		if err := writeRow(sw, 1, rep.Header, styles, 0); err != nil {
			return nil, err
		}
	}
	for i, row := range rep.Rows {
		if err := writeRow(sw, i+2, row, styles, i%2); err != nil {
			return nil, err
		}
	}
	for _, tr := range rep.Totals {
		if !tr.Present {
			continue
		}
		if err := writeRow(sw, tr.SheetRow, tr.Cells, styles, 0); err != nil {
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	ok = true
	return f, nil
}

func writeRow(sw *excelize.StreamWriter, rowNum int, cells []report.Cell, styles *styleSet, band int) error {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		if c.Style == report.StyleNone && c.Value == nil {
			continue
		}
		values[i] = excelize.Cell{StyleID: styles.id(c.Style, band), Value: c.Value}
	}

	ref, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", rowNum, err)
	}
	if err := sw.SetRow(ref, values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}
