package engine

import (
	"testing"
)

// mustConfig parses a configuration or fails the test.
func mustConfig(t *testing.T, raw string) *PipelineConfig {
	t.Helper()
	cfg, errs := ParseConfig([]byte(raw))
	if len(errs) > 0 {
		t.Fatalf("ParseConfig() errors: %v", errs)
	}
	return cfg
}

// salesRows is the fixture most transform tests run against.
func salesRows() *RowSet {
	return &RowSet{
		Columns: []string{"product", "amount", "region"},
		Rows: []Row{
			{"product": Text("widget"), "amount": Number(150), "region": Text("east")},
			{"product": Text("gadget"), "amount": Number(80), "region": Text("west")},
			{"product": Text("doohickey"), "amount": Number(220), "region": Text("east")},
			{"product": Text("gizmo"), "amount": Null(), "region": Text("north")},
		},
	}
}

func columnsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ----------------------------------------------------------------------------
// Rename Stage Tests
// ----------------------------------------------------------------------------

func TestApplyRename(t *testing.T) {
	cfg := mustConfig(t, `{"column_mapping": {"product": "item", "amount": "total"}}`)

	out, err := Apply(salesRows(), cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	wantCols := []string{"item", "total", "region"}
	if !columnsEqual(out.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", out.Columns, wantCols)
	}
	if got := out.Rows[0]["item"]; !got.Equal(Text("widget")) {
		t.Errorf("Rows[0][item] = %v, want widget", got.String())
	}
	if _, stale := out.Rows[0]["product"]; stale {
		t.Error("renamed row still carries old key 'product'")
	}
}

func TestApplyRenameMissingColumns(t *testing.T) {
	cfg := mustConfig(t, `{"column_mapping": {"zzz": "a", "afield": "b"}}`)

	_, err := Apply(salesRows(), cfg)
	if err == nil {
		t.Fatal("Apply() = nil error, want missing-column failure")
	}

	want := "column_mapping references columns not in data: ['afield', 'zzz']"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestApplyRenameDuplicateTarget(t *testing.T) {
	cfg := mustConfig(t, `{"column_mapping": {"product": "region"}}`)

	_, err := Apply(salesRows(), cfg)
	if err == nil {
		t.Fatal("Apply() = nil error, want duplicate-column failure")
	}

	want := "column_mapping produces duplicate column: 'region'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

// ----------------------------------------------------------------------------
// Select and Drop Stage Tests
// ----------------------------------------------------------------------------

func TestApplySelect(t *testing.T) {
	cfg := mustConfig(t, `{"column_selection": ["region", "product"]}`)

	out, err := Apply(salesRows(), cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	wantCols := []string{"region", "product"}
	if !columnsEqual(out.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", out.Columns, wantCols)
	}
	if len(out.Rows) != 4 {
		t.Fatalf("len(Rows) = %d, want 4", len(out.Rows))
	}
	if _, kept := out.Rows[0]["amount"]; kept {
		t.Error("selected row still carries dropped key 'amount'")
	}
}

// Selection is strict about unknown names; drop is tolerant. The pair is
// covered together because mixing them up silently changes output shape.
func TestSelectStrictDropTolerant(t *testing.T) {
	strict := mustConfig(t, `{"column_selection": ["product", "missing_col"]}`)
	if _, err := Apply(salesRows(), strict); err == nil {
		t.Error("selection of unknown column succeeded, want error")
	} else if want := "column_selection references missing columns: ['missing_col']"; err.Error() != want {
		t.Errorf("selection error = %q, want %q", err.Error(), want)
	}

	tolerant := mustConfig(t, `{"drop_columns": ["missing_col", "region"]}`)
	out, err := Apply(salesRows(), tolerant)
	if err != nil {
		t.Fatalf("drop of unknown column failed: %v", err)
	}
	wantCols := []string{"product", "amount"}
	if !columnsEqual(out.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", out.Columns, wantCols)
	}
}

func TestApplyDropAllColumns(t *testing.T) {
	cfg := mustConfig(t, `{"drop_columns": ["product", "amount", "region"]}`)

	out, err := Apply(salesRows(), cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(out.Columns) != 0 {
		t.Errorf("Columns = %v, want none", out.Columns)
	}
	if len(out.Rows) != 4 {
		t.Errorf("len(Rows) = %d, want 4", len(out.Rows))
	}
}

// ----------------------------------------------------------------------------
// Filter Stage Tests
// ----------------------------------------------------------------------------

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name         string
		config       string
		wantProducts []string
		wantErr      string
	}{
		{
			name:         "gt keeps rows above threshold",
			config:       `{"filters": [{"column": "amount", "operator": "gt", "value": 100}]}`,
			wantProducts: []string{"widget", "doohickey"},
		},
		{
			name:         "lt keeps rows below threshold",
			config:       `{"filters": [{"column": "amount", "operator": "lt", "value": 100}]}`,
			wantProducts: []string{"gadget"},
		},
		{
			name:         "gt excludes null cells silently",
			config:       `{"filters": [{"column": "amount", "operator": "gt", "value": -1}]}`,
			wantProducts: []string{"widget", "gadget", "doohickey"},
		},
		{
			name:         "gt coerces numeric text value",
			config:       `{"filters": [{"column": "amount", "operator": "gt", "value": "100"}]}`,
			wantProducts: []string{"widget", "doohickey"},
		},
		{
			name:         "eq matches structurally",
			config:       `{"filters": [{"column": "region", "operator": "eq", "value": "east"}]}`,
			wantProducts: []string{"widget", "doohickey"},
		},
		{
			name:         "eq null matches null cells",
			config:       `{"filters": [{"column": "amount", "operator": "eq", "value": null}]}`,
			wantProducts: []string{"gizmo"},
		},
		{
			name:         "contains substring",
			config:       `{"filters": [{"column": "product", "operator": "contains", "value": "hick"}]}`,
			wantProducts: []string{"doohickey"},
		},
		{
			name:         "contains never matches null cells",
			config:       `{"filters": [{"column": "amount", "operator": "contains", "value": ""}]}`,
			wantProducts: []string{"widget", "gadget", "doohickey"},
		},
		{
			name:         "filters are conjunctive",
			config:       `{"filters": [{"column": "amount", "operator": "gt", "value": 100}, {"column": "region", "operator": "eq", "value": "east"}]}`,
			wantProducts: []string{"widget", "doohickey"},
		},
		{
			name:    "missing column",
			config:  `{"filters": [{"column": "ghost", "operator": "eq", "value": 1}]}`,
			wantErr: "Filter references missing column: 'ghost'",
		},
		{
			name:    "non numeric comparison value",
			config:  `{"filters": [{"column": "amount", "operator": "gt", "value": "lots"}]}`,
			wantErr: "filters: value for 'amount' must be numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(salesRows(), mustConfig(t, tt.config))

			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Apply() = nil error, want %q", tt.wantErr)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("Apply() error = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Apply() error: %v", err)
			}
			var got []string
			for _, row := range out.Rows {
				got = append(got, row["product"].String())
			}
			if len(got) != len(tt.wantProducts) {
				t.Fatalf("surviving products = %v, want %v", got, tt.wantProducts)
			}
			for i := range got {
				if got[i] != tt.wantProducts[i] {
					t.Fatalf("surviving products = %v, want %v", got, tt.wantProducts)
				}
			}
		})
	}
}

// Filter order must not change the surviving set.
func TestFilterOrderIdentity(t *testing.T) {
	forward := mustConfig(t, `{"filters": [
		{"column": "amount", "operator": "gt", "value": 50},
		{"column": "region", "operator": "eq", "value": "east"}
	]}`)
	reversed := mustConfig(t, `{"filters": [
		{"column": "region", "operator": "eq", "value": "east"},
		{"column": "amount", "operator": "gt", "value": 50}
	]}`)

	a, err := Apply(salesRows(), forward)
	if err != nil {
		t.Fatalf("Apply(forward) error: %v", err)
	}
	b, err := Apply(salesRows(), reversed)
	if err != nil {
		t.Fatalf("Apply(reversed) error: %v", err)
	}

	if len(a.Rows) != len(b.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		for _, col := range a.Columns {
			if !a.Rows[i][col].Equal(b.Rows[i][col]) {
				t.Errorf("row %d column %q differs between filter orders", i, col)
			}
		}
	}
}

// ----------------------------------------------------------------------------
// Computed Field Stage Tests
// ----------------------------------------------------------------------------

func TestApplyComputed(t *testing.T) {
	rs := &RowSet{
		Columns: []string{"first_name", "last_name", "price", "qty"},
		Rows: []Row{
			{"first_name": Text("Ada"), "last_name": Text("Lovelace"), "price": Number(10), "qty": Number(3)},
			{"first_name": Text("Alan"), "last_name": Text("Turing"), "price": Number(4), "qty": Number(2)},
		},
	}
	cfg := mustConfig(t, `{"computed_fields": [
		{"name": "full_name", "expression": "concat(first_name, ' ', last_name)"},
		{"name": "total", "expression": "add(price, qty)"}
	]}`)

	out, err := Apply(rs, cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	wantCols := []string{"first_name", "last_name", "price", "qty", "full_name", "total"}
	if !columnsEqual(out.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", out.Columns, wantCols)
	}
	if got := out.Rows[0]["full_name"]; !got.Equal(Text("Ada Lovelace")) {
		t.Errorf("full_name = %q, want %q", got.String(), "Ada Lovelace")
	}
	if got := out.Rows[1]["total"]; !got.Equal(Number(6)) {
		t.Errorf("total = %v, want 6", got.String())
	}
}

func TestApplyComputedChaining(t *testing.T) {
	cfg := mustConfig(t, `{"computed_fields": [
		{"name": "double", "expression": "add(amount, amount)"},
		{"name": "quadruple", "expression": "add(double, double)"}
	]}`)

	rs := &RowSet{
		Columns: []string{"amount"},
		Rows:    []Row{{"amount": Number(5)}},
	}
	out, err := Apply(rs, cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := out.Rows[0]["quadruple"]; !got.Equal(Number(20)) {
		t.Errorf("quadruple = %v, want 20", got.String())
	}
}

func TestApplyComputedOverwriteKeepsPosition(t *testing.T) {
	cfg := mustConfig(t, `{"computed_fields": [
		{"name": "amount", "expression": "add(amount, amount)"}
	]}`)

	out, err := Apply(salesRows(), cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	wantCols := []string{"product", "amount", "region"}
	if !columnsEqual(out.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", out.Columns, wantCols)
	}
	if got := out.Rows[0]["amount"]; !got.Equal(Number(300)) {
		t.Errorf("amount = %v, want 300", got.String())
	}
}

func TestApplyComputedErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing column reference",
			config:  `{"computed_fields": [{"name": "x", "expression": "concat(nonexistent_column)"}]}`,
			wantErr: "Computed field 'x' references missing column: 'nonexistent_column'",
		},
		{
			name:    "row failure reports ordinal",
			config:  `{"computed_fields": [{"name": "total", "expression": "add(amount, amount)"}]}`,
			wantErr: "Computed field 'total' failed at row 4: argument 'amount' of add is not numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(salesRows(), mustConfig(t, tt.config))
			if err == nil {
				t.Fatalf("Apply() = nil error, want %q", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Apply() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyComputedOnZeroRows(t *testing.T) {
	cfg := mustConfig(t, `{
		"filters": [{"column": "amount", "operator": "gt", "value": 100000}],
		"computed_fields": [{"name": "total", "expression": "add(amount, amount)"}]
	}`)

	out, err := Apply(salesRows(), cfg)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(out.Rows) != 0 {
		t.Fatalf("len(Rows) = %d, want 0", len(out.Rows))
	}
	if !out.HasColumn("total") {
		t.Error("computed column missing on empty result")
	}
}

// ----------------------------------------------------------------------------
// Stage Order and Purity Tests
// ----------------------------------------------------------------------------

// Stages run rename, select, filter, compute, drop regardless of the JSON
// key order, so a selection must reference post-rename names.
func TestStageOrderFixed(t *testing.T) {
	old := mustConfig(t, `{
		"column_selection": ["product"],
		"column_mapping": {"product": "item"}
	}`)
	if _, err := Apply(salesRows(), old); err == nil {
		t.Error("selection of pre-rename name succeeded, want error")
	}

	renamed := mustConfig(t, `{
		"column_selection": ["item"],
		"column_mapping": {"product": "item"}
	}`)
	out, err := Apply(salesRows(), renamed)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !columnsEqual(out.Columns, []string{"item"}) {
		t.Errorf("Columns = %v, want [item]", out.Columns)
	}
}

// Apply must never mutate its input, whatever the configuration does.
func TestApplyLeavesInputIntact(t *testing.T) {
	rs := salesRows()
	cfg := mustConfig(t, `{
		"column_mapping": {"product": "item"},
		"column_selection": ["item", "amount"],
		"filters": [{"column": "amount", "operator": "gt", "value": 100}],
		"computed_fields": [{"name": "double", "expression": "add(amount, amount)"}],
		"drop_columns": ["amount"]
	}`)

	if _, err := Apply(rs, cfg); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	want := salesRows()
	if !columnsEqual(rs.Columns, want.Columns) {
		t.Fatalf("input columns mutated: %v", rs.Columns)
	}
	if len(rs.Rows) != len(want.Rows) {
		t.Fatalf("input row count mutated: %d", len(rs.Rows))
	}
	for i := range rs.Rows {
		if len(rs.Rows[i]) != len(want.Rows[i]) {
			t.Fatalf("input row %d keys mutated", i)
		}
		for col, v := range want.Rows[i] {
			if !rs.Rows[i][col].Equal(v) {
				t.Errorf("input row %d column %q mutated", i, col)
			}
		}
	}
}

func TestApplyNilConfigIsIdentity(t *testing.T) {
	rs := salesRows()
	out, err := Apply(rs, nil)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if out != rs {
		t.Error("nil config should return the input unchanged")
	}

	out, err = Apply(rs, mustConfig(t, `{}`))
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if out != rs {
		t.Error("empty config should return the input unchanged")
	}
}
