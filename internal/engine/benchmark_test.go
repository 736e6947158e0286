package engine

import (
	"fmt"
	"strings"
	"testing"
)

// generateCSV builds a synthetic input with the given number of data rows.
func generateCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("product,amount,region,code\n")
	regions := []string{"east", "west", "north", "south"}
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "item-%d,%d.%02d,%s,X%d\n", i, i%500, i%100, regions[i%4], i)
	}
	return []byte(b.String())
}

// ============================================================================
// Reader Benchmarks
// ============================================================================

// BenchmarkReadCSV benchmarks decoding and cell typing together, the first
// hot path of every run.
func BenchmarkReadCSV(b *testing.B) {
	data := generateCSV(1000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Read(data, FormatCSV); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkValueFromCell benchmarks cell typing for the three kinds.
func BenchmarkValueFromCell(b *testing.B) {
	cells := []string{"12345", "12.5", "widget", "", "2024-01-15"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			valueFromCell(c)
		}
	}
}

// ============================================================================
// Transform Benchmarks
// ============================================================================

// BenchmarkApply benchmarks a full five-stage pipeline over a mid-size
// RowSet.
func BenchmarkApply(b *testing.B) {
	rs, err := Read(generateCSV(1000), FormatCSV)
	if err != nil {
		b.Fatal(err)
	}
	cfg, errs := ParseConfig([]byte(`{
		"column_mapping": {"product": "item"},
		"column_selection": ["item", "amount", "region"],
		"filters": [{"column": "amount", "operator": "gt", "value": 100}],
		"computed_fields": [{"name": "summary", "expression": "concat(item, ' / ', region)"}],
		"drop_columns": ["region"]
	}`))
	if len(errs) > 0 {
		b.Fatalf("config errors: %v", errs)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Apply(rs, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEvaluate benchmarks per-row expression evaluation, the inner
// loop of the compute stage.
func BenchmarkEvaluate(b *testing.B) {
	expr, err := ParseExpression("concat(first, ' ', last)")
	if err != nil {
		b.Fatal(err)
	}
	row := Row{"first": Text("Ada"), "last": Text("Lovelace")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := expr.Evaluate(row); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Sink Benchmarks
// ============================================================================

// BenchmarkWriteCSV benchmarks CSV serialization of a mid-size RowSet.
func BenchmarkWriteCSV(b *testing.B) {
	rs, err := Read(generateCSV(1000), FormatCSV)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := WriteCSV(rs); err != nil {
			b.Fatal(err)
		}
	}
}
