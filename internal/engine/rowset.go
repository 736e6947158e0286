package engine

// Row is a single record keyed by column name. Within a RowSet every row
// carries exactly the RowSet's column set; absent source cells are stored
// as explicit Null values, never as missing keys.
type Row map[string]Value

// RowSet is an ordered table: column names in presentation order plus the
// rows. Transform stages treat a RowSet as immutable and return new ones.
type RowSet struct {
	Columns []string
	Rows    []Row
}

// NewRowSet returns an empty RowSet with the given column order.
func NewRowSet(columns []string) *RowSet {
	return &RowSet{Columns: columns, Rows: []Row{}}
}

// HasColumn reports whether name is one of the RowSet's columns.
func (rs *RowSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// columnSet returns the columns as a set for membership tests.
func (rs *RowSet) columnSet() map[string]struct{} {
	set := make(map[string]struct{}, len(rs.Columns))
	for _, c := range rs.Columns {
		set[c] = struct{}{}
	}
	return set
}

// Clone returns a deep copy: fresh column slice and fresh row maps.
func (rs *RowSet) Clone() *RowSet {
	out := &RowSet{
		Columns: append([]string(nil), rs.Columns...),
		Rows:    make([]Row, len(rs.Rows)),
	}
	for i, row := range rs.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}
