package engine

// value.go defines the cell value model shared by readers, transforms, and
// sinks.
//
// A Value is a closed union of three kinds: Null, Number, and Text. Readers
// assign kinds on ingest (empty cell -> Null, numeric-looking cell ->
// Number, anything else -> Text), which keeps typing decisions out of the
// transform stages. The zero Value is Null.

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a valid numeric format.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Kind identifies which member of the Value union a cell holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single cell: Null, a float64 Number, or a Text string.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Null returns the null Value. It is also the zero Value.
func Null() Value { return Value{} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a textual Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Kind reports which member of the union the Value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsNumber returns the numeric reading of the Value. Numbers convert
// directly; Text converts when it looks numeric. Null never converts.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		s := strings.TrimSpace(v.text)
		if numericRegex.MatchString(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// String returns the canonical textual form: "" for Null, the shortest
// round-tripping decimal for Number, and the text verbatim for Text.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal reports structural equality: same kind and same payload.
// Null equals Null.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// Any returns the Value as a plain Go value suitable for JSON encoding:
// nil, float64, or string.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	default:
		return nil
	}
}

// MarshalJSON encodes Null as null, Number as a JSON number, and Text as a
// JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// valueFromCell types a raw cell string from a reader: blank -> Null,
// numeric-looking -> Number, anything else -> Text (verbatim, untrimmed).
func valueFromCell(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Null()
	}
	if numericRegex.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Number(f)
		}
	}
	return Text(s)
}

// valueFromJSON types a decoded JSON scalar from a pipeline configuration.
// Booleans have no Value kind of their own and become their lowercase
// textual form.
func valueFromJSON(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case float64:
		return Number(t)
	case string:
		return Text(t)
	case bool:
		return Text(strconv.FormatBool(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	default:
		return Null()
	}
}
