package engine

import (
	"bytes"
	"encoding/csv"
)

// WriteCSV serializes a RowSet to CSV bytes: one header line from the
// column order, one line per row, Null cells rendered empty.
func WriteCSV(rs *RowSet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(rs.Columns); err != nil {
		return nil, err
	}
	rec := make([]string, len(rs.Columns))
	for _, row := range rs.Rows {
		for i, col := range rs.Columns {
			rec[i] = row[col].String()
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// recordFields converts a row into the self-describing field map a
// RecordStore receives: column name to nil, float64, or string.
func recordFields(row Row, columns []string) map[string]any {
	fields := make(map[string]any, len(columns))
	for _, col := range columns {
		fields[col] = row[col].Any()
	}
	return fields
}
