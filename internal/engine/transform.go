package engine

// transform.go applies the five configuration stages to a RowSet in their
// fixed order: rename, select, filter, compute, drop. Every stage returns
// a new RowSet; inputs are never mutated. The first failing stage aborts
// the run.

import (
	"strings"
)

// Apply runs every configured stage against rs. A nil config, like a
// config with no stages, is the identity transform.
func Apply(rs *RowSet, cfg *PipelineConfig) (*RowSet, error) {
	if cfg == nil {
		return rs, nil
	}

	var err error
	if len(cfg.ColumnMapping) > 0 {
		if rs, err = applyRename(rs, cfg.ColumnMapping); err != nil {
			return nil, err
		}
	}
	if len(cfg.ColumnSelection) > 0 {
		if rs, err = applySelect(rs, cfg.ColumnSelection); err != nil {
			return nil, err
		}
	}
	if len(cfg.Filters) > 0 {
		if rs, err = applyFilters(rs, cfg.Filters); err != nil {
			return nil, err
		}
	}
	if len(cfg.ComputedFields) > 0 {
		if rs, err = applyComputed(rs, cfg.ComputedFields); err != nil {
			return nil, err
		}
	}
	if len(cfg.DropColumns) > 0 {
		rs = applyDrop(rs, cfg.DropColumns)
	}
	return rs, nil
}

// applyRename renames columns per mapping {old: new}. Every old name must
// exist, and the renamed header must stay free of duplicates.
func applyRename(rs *RowSet, mapping map[string]string) (*RowSet, error) {
	have := rs.columnSet()
	var missing []string
	for old := range mapping {
		if _, ok := have[old]; !ok {
			missing = append(missing, old)
		}
	}
	if len(missing) > 0 {
		return nil, transformErrorf(StageRename,
			"column_mapping references columns not in data: %s", quoteList(missing))
	}

	out := NewRowSet(make([]string, len(rs.Columns)))
	seen := make(map[string]struct{}, len(rs.Columns))
	for i, col := range rs.Columns {
		name := col
		if renamed, ok := mapping[col]; ok {
			name = renamed
		}
		if _, dup := seen[name]; dup {
			return nil, transformErrorf(StageRename,
				"column_mapping produces duplicate column: '%s'", name)
		}
		seen[name] = struct{}{}
		out.Columns[i] = name
	}

	out.Rows = make([]Row, len(rs.Rows))
	for i, row := range rs.Rows {
		renamed := make(Row, len(row))
		for j, col := range rs.Columns {
			renamed[out.Columns[j]] = row[col]
		}
		out.Rows[i] = renamed
	}
	return out, nil
}

// applySelect keeps only the listed columns, in the order given.
func applySelect(rs *RowSet, selection []string) (*RowSet, error) {
	have := rs.columnSet()
	var missing []string
	dup := ""
	seen := make(map[string]struct{}, len(selection))
	for _, col := range selection {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
			continue
		}
		if _, again := seen[col]; again && dup == "" {
			dup = col
		}
		seen[col] = struct{}{}
	}
	if len(missing) > 0 {
		return nil, transformErrorf(StageSelect,
			"column_selection references missing columns: %s", quoteList(missing))
	}
	if dup != "" {
		return nil, transformErrorf(StageSelect,
			"column_selection lists duplicate column: '%s'", dup)
	}

	out := NewRowSet(append([]string(nil), selection...))
	out.Rows = make([]Row, len(rs.Rows))
	for i, row := range rs.Rows {
		kept := make(Row, len(selection))
		for _, col := range selection {
			kept[col] = row[col]
		}
		out.Rows[i] = kept
	}
	return out, nil
}

// applyFilters applies each filter in declared order; a row survives only
// if every predicate keeps it. Filter order cannot change the surviving
// set, only the error reported when something is wrong.
func applyFilters(rs *RowSet, filters []Filter) (*RowSet, error) {
	for _, f := range filters {
		if !rs.HasColumn(f.Column) {
			return nil, transformErrorf(StageFilter,
				"Filter references missing column: '%s'", f.Column)
		}

		keep, err := predicateFor(f)
		if err != nil {
			return nil, err
		}

		out := NewRowSet(rs.Columns)
		for _, row := range rs.Rows {
			if keep(row[f.Column]) {
				out.Rows = append(out.Rows, row)
			}
		}
		rs = out
	}
	return rs, nil
}

// predicateFor compiles a filter into a cell predicate.
//
// eq uses structural Value equality. gt and lt compare numerically and
// silently exclude rows whose cell is Null or non-numeric; a configured
// comparison value that is itself non-numeric is an error. contains is a
// substring test on textual forms, and Null cells never match.
func predicateFor(f Filter) (func(Value) bool, error) {
	switch f.Operator {
	case OpEq:
		want := f.Value
		return func(cell Value) bool { return cell.Equal(want) }, nil
	case OpGt, OpLt:
		want, ok := f.Value.AsNumber()
		if !ok {
			return nil, transformErrorf(StageFilter,
				"filters: value for '%s' must be numeric", f.Column)
		}
		if f.Operator == OpGt {
			return func(cell Value) bool {
				got, ok := cell.AsNumber()
				return ok && got > want
			}, nil
		}
		return func(cell Value) bool {
			got, ok := cell.AsNumber()
			return ok && got < want
		}, nil
	case OpContains:
		want := f.Value.String()
		return func(cell Value) bool {
			return !cell.IsNull() && strings.Contains(cell.String(), want)
		}, nil
	default:
		return nil, transformErrorf(StageFilter,
			"Unsupported filter operator: '%s'", f.Operator)
	}
}

// applyComputed evaluates each computed field over every row. Fields are
// processed in order, so later fields can reference the columns earlier
// ones produced. A field whose name matches an existing column overwrites
// it in place; new names append to the column order.
func applyComputed(rs *RowSet, fields []ComputedField) (*RowSet, error) {
	out := rs.Clone()
	for _, f := range fields {
		for _, arg := range f.Expr.Args {
			if !arg.Literal && !out.HasColumn(arg.Column) {
				return nil, transformErrorf(StageCompute,
					"Computed field '%s' references missing column: '%s'", f.Name, arg.Column)
			}
		}

		vals := make([]Value, len(out.Rows))
		for i, row := range out.Rows {
			v, err := f.Expr.Evaluate(row)
			if err != nil {
				return nil, transformErrorf(StageCompute,
					"Computed field '%s' failed at row %d: %s", f.Name, i+1, err)
			}
			vals[i] = v
		}

		if !out.HasColumn(f.Name) {
			out.Columns = append(out.Columns, f.Name)
		}
		for i := range out.Rows {
			out.Rows[i][f.Name] = vals[i]
		}
	}
	return out, nil
}

// applyDrop removes the listed columns, silently skipping absent names.
func applyDrop(rs *RowSet, drop []string) *RowSet {
	doomed := make(map[string]struct{}, len(drop))
	for _, col := range drop {
		doomed[col] = struct{}{}
	}

	kept := make([]string, 0, len(rs.Columns))
	for _, col := range rs.Columns {
		if _, gone := doomed[col]; !gone {
			kept = append(kept, col)
		}
	}
	if len(kept) == len(rs.Columns) {
		return rs
	}

	out := NewRowSet(kept)
	out.Rows = make([]Row, len(rs.Rows))
	for i, row := range rs.Rows {
		trimmed := make(Row, len(kept))
		for _, col := range kept {
			trimmed[col] = row[col]
		}
		out.Rows[i] = trimmed
	}
	return out
}
