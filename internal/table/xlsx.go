package table

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	tableDisplayName = "Table1"
	tableStyle       = "TableStyleMedium9"
)

// XLSX is a Backend over a local workbook. It always works on the active sheet.
type XLSX struct {
	path string
}

func NewXLSX(path string) *XLSX {
	return &XLSX{path: path}
}

func (x *XLSX) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(x.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat workbook: %w", err)
}

func (x *XLSX) Create(ctx context.Context, header []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
		if err != nil {
			return err
		}
		showRowStripes := true
		if err := f.AddTable(sheet, &excelize.Table{
			Range:             "A1:" + last,
			Name:              tableDisplayName,
			StyleName:         tableStyle,
			ShowRowStripes:    &showRowStripes,
			ShowColumnStripes: true,
		}); err != nil {
			return fmt.Errorf("failed to style table: %w", err)
		}
	}

	if err := f.SaveAs(x.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Debug().Str("path", x.path).Int("rows", len(rows)).Msg("Workbook created")
	return nil
}

func (x *XLSX) ReadValues(ctx context.Context, mode ReadMode) ([][]string, error) {
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if mode != ReadRecalculated || len(rows) == 0 {
		return rows, nil
	}

	width := len(rows[0])
	for r := 1; r < len(rows); r++ {
		for c := 0; c < width; c++ {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read formula %s: %w", cell, err)
			}
			if formula == "" {
				continue
			}
			value, err := f.CalcCellValue(sheet, cell, excelize.Options{RawCellValue: true})
			if err != nil {
				return nil, fmt.Errorf("failed to calculate %s: %w", cell, err)
			}
			for len(rows[r]) <= c {
				rows[r] = append(rows[r], "")
			}
			rows[r][c] = value
		}
	}
	return rows, nil
}

// SetFormulas clears each target cell before writing its formula, so the cell
// carries no cached value until a spreadsheet engine recalculates it.
func (x *XLSX) SetFormulas(ctx context.Context, formulas map[string]string) error {
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	cells := make([]string, 0, len(formulas))
	for cell := range formulas {
		cells = append(cells, cell)
	}
	sort.Strings(cells)

	for _, cell := range cells {
		if err := f.SetCellValue(sheet, cell, nil); err != nil {
			return fmt.Errorf("failed to clear %s: %w", cell, err)
		}
		if err := f.SetCellFormula(sheet, cell, strings.TrimPrefix(formulas[cell], "=")); err != nil {
			return fmt.Errorf("failed to set formula %s: %w", cell, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
