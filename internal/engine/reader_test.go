package engine

import (
	"errors"
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// Format Resolution Tests
// ----------------------------------------------------------------------------

func TestFormatFromExtension(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    Format
		wantErr string
	}{
		{name: "csv", file: "data.csv", want: FormatCSV},
		{name: "uppercase csv", file: "DATA.CSV", want: FormatCSV},
		{name: "xlsx", file: "report.xlsx", want: FormatExcel},
		{name: "legacy xls", file: "old.xls", want: FormatExcel},
		{name: "nested path", file: "uploads/2024/batch.csv", want: FormatCSV},
		{
			name:    "text file",
			file:    "notes.txt",
			wantErr: "File type '.txt' is not supported. Allowed: ['.csv', '.xls', '.xlsx']",
		},
		{
			name:    "no extension",
			file:    "README",
			wantErr: "File type '' is not supported. Allowed: ['.csv', '.xls', '.xlsx']",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromExtension(tt.file)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("FormatFromExtension(%q) = nil error, want %q", tt.file, tt.wantErr)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
				}
				var ufe *UnsupportedFormatError
				if !errors.As(err, &ufe) {
					t.Errorf("error type = %T, want *UnsupportedFormatError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("FormatFromExtension(%q) error: %v", tt.file, err)
			}
			if got != tt.want {
				t.Errorf("FormatFromExtension(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CSV Decoding Tests
// ----------------------------------------------------------------------------

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"name,amount,joined",
		"alice,150,2023-01-05",
		"bob,,2022-11-30",
		"carol,87.5,",
	}, "\n")

	rs, err := Read([]byte(input), FormatCSV)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	wantCols := []string{"name", "amount", "joined"}
	if !columnsEqual(rs.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", rs.Columns, wantCols)
	}
	if len(rs.Rows) != 3 {
		t.Fatalf("len(Rows) = %d, want 3", len(rs.Rows))
	}

	// Typing: numbers become Number, blanks become Null, rest stays Text.
	if got := rs.Rows[0]["amount"]; !got.Equal(Number(150)) {
		t.Errorf("amount[0] = %v (%v), want Number 150", got.String(), got.Kind())
	}
	if got := rs.Rows[1]["amount"]; !got.IsNull() {
		t.Errorf("amount[1] = %v, want Null", got.String())
	}
	if got := rs.Rows[0]["joined"]; !got.Equal(Text("2023-01-05")) {
		t.Errorf("joined[0] = %v (%v), want Text", got.String(), got.Kind())
	}
	if got := rs.Rows[2]["joined"]; !got.IsNull() {
		t.Errorf("joined[2] = %v, want Null", got.String())
	}
}

func TestReadCSVEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  string
		wantRows int
	}{
		{
			name:    "empty input",
			input:   "",
			wantErr: "cannot read csv input: no columns to parse",
		},
		{
			name:     "header only",
			input:    "a,b,c\n",
			wantRows: 0,
		},
		{
			name:    "duplicate header",
			input:   "a,b,a\n1,2,3\n",
			wantErr: "cannot read csv input: duplicate column in header: 'a'",
		},
		{
			name:     "short row pads with null",
			input:    "a,b,c\n1,2\n",
			wantRows: 1,
		},
		{
			name:    "long row rejected",
			input:   "a,b\n1,2,3\n",
			wantErr: "cannot read csv input: row 1 has 3 fields, header has 2",
		},
		{
			name:     "quoted field with comma",
			input:    "a,b\n\"x, y\",2\n",
			wantRows: 1,
		},
		{
			name:     "blank lines skipped",
			input:    "a,b\n\n1,2\n\n",
			wantRows: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Read([]byte(tt.input), FormatCSV)

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Read() = nil error, want %q", tt.wantErr)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("Read() error = %q, want %q", err.Error(), tt.wantErr)
				}
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Errorf("error type = %T, want *DecodeError", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Read() error: %v", err)
			}
			if len(rs.Rows) != tt.wantRows {
				t.Errorf("len(Rows) = %d, want %d", len(rs.Rows), tt.wantRows)
			}
		})
	}
}

func TestReadCSVShortRowPadsNull(t *testing.T) {
	rs, err := Read([]byte("a,b,c\n1,2\n"), FormatCSV)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got := rs.Rows[0]["c"]; !got.IsNull() {
		t.Errorf("padded cell = %v, want Null", got.String())
	}
	if got := rs.Rows[0]["b"]; !got.Equal(Number(2)) {
		t.Errorf("cell b = %v, want 2", got.String())
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,age\nalice,30\n")...)

	rs, err := Read(input, FormatCSV)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if rs.Columns[0] != "name" {
		t.Errorf("Columns[0] = %q, want %q", rs.Columns[0], "name")
	}
}

func TestReadCSVSanitizesInvalidUTF8(t *testing.T) {
	input := []byte("name\nal\xffice\n")

	rs, err := Read(input, FormatCSV)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	got := rs.Rows[0]["name"].String()
	if !strings.Contains(got, "�") {
		t.Errorf("cell = %q, want replacement rune in place of invalid byte", got)
	}
}

// ----------------------------------------------------------------------------
// CSV Round Trip Tests
// ----------------------------------------------------------------------------

// Writing a RowSet and reading it back preserves column order and every
// value whose text is not itself numeric-looking or blank.
func TestCSVRoundTrip(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"product", "amount", "note"},
		Rows: []Row{
			{"product": Text("widget"), "amount": Number(150), "note": Text("fragile")},
			{"product": Text("gadget"), "amount": Number(0.5), "note": Null()},
			{"product": Text("gizmo"), "amount": Null(), "note": Text("bulk order")},
		},
	}

	data, err := WriteCSV(rs)
	if err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	back, err := Read(data, FormatCSV)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if !columnsEqual(back.Columns, rs.Columns) {
		t.Fatalf("Columns = %v, want %v", back.Columns, rs.Columns)
	}
	if len(back.Rows) != len(rs.Rows) {
		t.Fatalf("len(Rows) = %d, want %d", len(back.Rows), len(rs.Rows))
	}
	for i, row := range rs.Rows {
		for _, col := range rs.Columns {
			if !back.Rows[i][col].Equal(row[col]) {
				t.Errorf("row %d column %q = %v (%v), want %v (%v)",
					i, col,
					back.Rows[i][col].String(), back.Rows[i][col].Kind(),
					row[col].String(), row[col].Kind())
			}
		}
	}
}

func TestWriteCSVRendersNullEmpty(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"a", "b"},
		Rows:    []Row{{"a": Null(), "b": Number(1)}},
	}

	data, err := WriteCSV(rs)
	if err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	want := "a,b\n,1\n"
	if string(data) != want {
		t.Errorf("WriteCSV() = %q, want %q", data, want)
	}
}
