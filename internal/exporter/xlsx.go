package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pipelinereview/internal/datastore"
)

// DefaultSheetName is used when WriteXLSX is given no sheet name.
const DefaultSheetName = "Companies"

// WriteXLSX writes the table as a single-sheet workbook. Valid numbers become
// numeric cells; invalid numbers and null text are left blank.
func WriteXLSX(w io.Writer, t *datastore.Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	columns := t.Columns()
	header := make([]interface{}, len(columns))
	for c, name := range columns {
		header[c] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < t.Len(); i++ {
		row := make([]interface{}, len(columns))
		for c, name := range columns {
			row[c] = cellValue(t.Cell(i, name), t.IsNumeric(name))
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellValue(cell datastore.Cell, numeric bool) interface{} {
	switch {
	case numeric && cell.Num.Valid:
		return cell.Num.Value
	case numeric, cell.Null:
		return nil
	default:
		return cell.Text
	}
}
