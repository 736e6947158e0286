package engine

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// readExcel decodes a workbook and reads the first sheet as a RowSet.
// Only the xlsx container is supported; legacy binary .xls content fails
// here with a DecodeError.
func readExcel(data []byte) (*RowSet, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: FormatExcel, Detail: err.Error()}
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Format: FormatExcel, Detail: "workbook has no sheets"}
	}

	// GetRows trims trailing empty cells per row; rowSetFromRecords pads
	// short rows back out with Null.
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, &DecodeError{Format: FormatExcel, Detail: err.Error()}
	}
	return rowSetFromRecords(records, FormatExcel)
}
