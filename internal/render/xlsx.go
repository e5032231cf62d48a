package render

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sheet1"

// ErrSheetBounds is returned when rows do not fit in one worksheet.
var ErrSheetBounds = errors.New("rows exceed worksheet limits")

// XLSX writes rows to a single worksheet starting at A1, in input order.
// Cell values are stored as excelize sees them; nothing is coerced.
func XLSX(rows [][]any) ([]byte, error) {
	if len(rows) > excelize.TotalRows {
		return nil, fmt.Errorf("%w: %d rows, max %d", ErrSheetBounds, len(rows), excelize.TotalRows)
	}
	for i, row := range rows {
		if len(row) > excelize.MaxColumns {
			return nil, fmt.Errorf("%w: row %d has %d cells, max %d", ErrSheetBounds, i+1, len(row), excelize.MaxColumns)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		values := row
		if err := f.SetSheetRow(xlsxSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
