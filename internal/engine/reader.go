package engine

// reader.go decodes uploaded tabular files into RowSets.
//
// The reader handles the messy reality of user-provided files:
//   - UTF-8 BOM from Windows exports
//   - Invalid UTF-8 sequences (replaced, never rejected)
//   - Ragged CSV rows (short rows pad with Null, long rows are an error)
//
// The first record is always the header. Cells are typed on ingest by
// valueFromCell, so downstream stages only ever see Values.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format identifies a supported input encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// allowedExtensions lists the accepted input file extensions.
func allowedExtensions() []string {
	return []string{".csv", ".xlsx", ".xls"}
}

// FormatFromExtension resolves the input format from a file name. Unknown
// extensions return an UnsupportedFormatError; callers reject those before
// creating a run record.
func FormatFromExtension(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatExcel, nil
	default:
		return "", &UnsupportedFormatError{Ext: ext}
	}
}

// Read decodes data in the given format into a RowSet.
func Read(data []byte, format Format) (*RowSet, error) {
	switch format {
	case FormatCSV:
		return readCSV(data)
	case FormatExcel:
		return readExcel(data)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func readCSV(data []byte) (*RowSet, error) {
	data = stripBOM(sanitizeUTF8(data))

	records, err := parseCSV(data)
	if err != nil {
		return nil, &DecodeError{Format: FormatCSV, Detail: err.Error()}
	}
	return rowSetFromRecords(records, FormatCSV)
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// rowSetFromRecords builds a RowSet from raw records, first record as
// header. Shared by the CSV and Excel readers.
func rowSetFromRecords(records [][]string, format Format) (*RowSet, error) {
	if len(records) == 0 {
		return nil, &DecodeError{Format: format, Detail: "no columns to parse"}
	}

	header := records[0]
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if _, dup := seen[name]; dup {
			return nil, &DecodeError{Format: format, Detail: fmt.Sprintf("duplicate column in header: '%s'", name)}
		}
		seen[name] = struct{}{}
	}

	rs := NewRowSet(append([]string(nil), header...))
	for i, rec := range records[1:] {
		if len(rec) > len(header) {
			return nil, &DecodeError{
				Format: format,
				Detail: fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(rec), len(header)),
			}
		}
		row := make(Row, len(header))
		for j, col := range rs.Columns {
			if j < len(rec) {
				row[col] = valueFromCell(rec[j])
			} else {
				row[col] = Null()
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF).
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement rune.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
