// Package report renders tabular data into a printable XLSX workbook.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// ErrNoHeader is returned for a table without columns.
var ErrNoHeader = errors.New("report table has no header")

// Table is the payload for one report: a title, optional subtitle lines, a header
// row and the body rows. Rows shorter than the header are padded with blanks.
type Table struct {
	Sheet     string
	Title     string
	Subtitles []string
	Header    []string
	Rows      [][]string
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "999999", Style: 1},
	{Type: "right", Color: "999999", Style: 1},
	{Type: "top", Color: "999999", Style: 1},
	{Type: "bottom", Color: "999999", Style: 1},
}

// Write renders t as an XLSX workbook to w.
func Write(w io.Writer, t Table) error {
	if len(t.Header) == 0 {
		return ErrNoHeader
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := defaultSheet
	if t.Sheet != "" && t.Sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, t.Sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
		sheet = t.Sheet
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.Header))
	if err != nil {
		return err
	}

	row := 1
	if t.Title != "" {
		if err := f.SetCellValue(sheet, "A1", t.Title); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", "A1", styles.title); err != nil {
			return err
		}
		row++
	}
	for _, sub := range t.Subtitles {
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetCellValue(sheet, cell, sub); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, cell, fmt.Sprintf("%s%d", lastCol, row)); err != nil {
			return err
		}
		row++
	}
	if row > 1 {
		row++ // blank line before the table
	}

	headerRow := row
	if err := setRow(f, sheet, row, t.Header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), styles.header); err != nil {
		return err
	}
	row++

	for _, r := range t.Rows {
		cells := make([]string, len(t.Header))
		copy(cells, r)
		if err := setRow(f, sheet, row, cells); err != nil {
			return err
		}
		row++
	}
	if len(t.Rows) > 0 {
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", headerRow+1), fmt.Sprintf("%s%d", lastCol, row-1), styles.body); err != nil {
			return err
		}
	}

	for i, h := range t.Header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, columnWidth(h, t.Rows, i)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	title, header, body int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 18},
	})
	if err != nil {
		return s, fmt.Errorf("title style: %w", err)
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"0D9488"}, Pattern: 1},
		Border:    thinBorder,
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	s.body, err = f.NewStyle(&excelize.Style{Border: thinBorder})
	if err != nil {
		return s, fmt.Errorf("body style: %w", err)
	}
	return s, nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells)
}

func columnWidth(header string, rows [][]string, col int) float64 {
	width := len([]rune(header))
	for _, r := range rows {
		if col < len(r) {
			if n := len([]rune(r[col])); n > width {
				width = n
			}
		}
	}
	if width > 60 {
		width = 60
	}
	return float64(width + 2)
}
