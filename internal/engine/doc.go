// Package engine implements the record-transformation core.
//
// This package is the heart of the pipeline service, containing all domain
// logic independent of any HTTP or storage layer. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Data Model
//
// Tabular data is held in a [RowSet]: an ordered list of column names plus
// rows keyed by column. Every cell is a [Value], a closed union of Null,
// Number, and Text. Readers type cells on the way in (empty cells become
// Null, numeric-looking cells become Number), so transforms never deal with
// raw strings.
//
// # Pipeline Configuration
//
// A pipeline is described by a JSON document with up to five optional
// transformation stages, applied in a fixed order regardless of key order:
//
//  1. column_mapping    — rename columns {old: new}
//  2. column_selection  — keep only the listed columns, in order
//  3. filters           — row predicates, ANDed together
//  4. computed_fields   — derive new columns from expressions
//  5. drop_columns      — remove columns (tolerant of absent names)
//
// Configurations are validated structurally by [ValidateConfig] at
// definition time and decoded by [ParseConfig]. Validation never looks at
// data; column existence is checked when a run executes.
//
// # Expressions
//
// Computed fields use a tiny call grammar, name(arg, ...), where each
// argument is a bare column reference or a single-quoted literal:
//
//	concat(first_name, ' ', last_name)
//	add(price, tax)
//
// Expressions are parsed once per declaration ([ParseExpression]) and
// evaluated per row. concat joins the textual form of any number of
// arguments; add requires exactly two numeric arguments.
//
// # Runs
//
// [Execute] drives a complete run: decode the input, apply the stages,
// write to the requested destination. It never returns an error; every
// failure is captured in the returned [Outcome] so callers can record it
// on the run. Destinations are abstracted behind [FileStore] (named byte
// artifacts) and [RecordStore] (per-row structured records).
package engine
