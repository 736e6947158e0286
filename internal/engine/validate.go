package engine

// validate.go checks the structural shape of a pipeline configuration at
// definition time. Validation is purely structural: column existence is a
// data question and is only answerable when a run executes.
//
// Field paths and messages are part of the API contract, e.g.
//
//	{"field": "configuration.filters[0].operator",
//	 "message": "Unsupported. Allowed: ['contains', 'eq', 'gt', 'lt']."}
//
// Unknown top-level keys are ignored, and a key set to null counts as
// absent.

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FieldError is a single validation failure tied to a configuration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator messages. The list forms render via quoteList.
const (
	msgObject       = "Must be an object."
	msgJSONObject   = "Must be a JSON object."
	msgList         = "Must be a list."
	msgNonEmptyList = "Must be a non-empty list."
	msgString       = "Must be a string."
	msgScalar       = "Must be a scalar."
	msgRequired     = "Required."
)

// buildConfig decodes and validates in one pass. It returns either a fully
// decoded config or the complete list of field errors, never both.
func buildConfig(raw []byte) (*PipelineConfig, []FieldError) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, []FieldError{{Field: "configuration", Message: msgJSONObject}}
	}
	obj, ok := top.(map[string]any)
	if !ok {
		return nil, []FieldError{{Field: "configuration", Message: msgJSONObject}}
	}

	var errs []FieldError
	cfg := &PipelineConfig{}

	if v, present := lookup(obj, "column_mapping"); present {
		cfg.ColumnMapping = decodeMapping(v, &errs)
	}
	if v, present := lookup(obj, "column_selection"); present {
		cfg.ColumnSelection = decodeNameList(v, "configuration.column_selection", true, &errs)
	}
	if v, present := lookup(obj, "filters"); present {
		cfg.Filters = decodeFilters(v, &errs)
	}
	if v, present := lookup(obj, "computed_fields"); present {
		cfg.ComputedFields = decodeComputed(v, &errs)
	}
	if v, present := lookup(obj, "drop_columns"); present {
		cfg.DropColumns = decodeNameList(v, "configuration.drop_columns", false, &errs)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// lookup treats an explicit null the same as an absent key.
func lookup(obj map[string]any, key string) (any, bool) {
	v, present := obj[key]
	return v, present && v != nil
}

func decodeMapping(v any, errs *[]FieldError) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		*errs = append(*errs, FieldError{Field: "configuration.column_mapping", Message: msgObject})
		return nil
	}
	mapping := make(map[string]string, len(m))
	for old, nv := range m {
		s, ok := nv.(string)
		if !ok {
			*errs = append(*errs, FieldError{
				Field:   fmt.Sprintf("configuration.column_mapping.%s", old),
				Message: msgString,
			})
			continue
		}
		mapping[old] = s
	}
	return mapping
}

func decodeNameList(v any, field string, requireNonEmpty bool, errs *[]FieldError) []string {
	arr, ok := v.([]any)
	if !ok || (requireNonEmpty && len(arr) == 0) {
		msg := msgList
		if requireNonEmpty {
			msg = msgNonEmptyList
		}
		*errs = append(*errs, FieldError{Field: field, Message: msg})
		return nil
	}
	names := make([]string, 0, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			*errs = append(*errs, FieldError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: msgString,
			})
			continue
		}
		names = append(names, s)
	}
	return names
}

func decodeFilters(v any, errs *[]FieldError) []Filter {
	arr, ok := v.([]any)
	if !ok {
		*errs = append(*errs, FieldError{Field: "configuration.filters", Message: msgList})
		return nil
	}
	filters := make([]Filter, 0, len(arr))
	for i, item := range arr {
		prefix := fmt.Sprintf("configuration.filters[%d]", i)
		fobj, ok := item.(map[string]any)
		if !ok {
			*errs = append(*errs, FieldError{Field: prefix, Message: msgObject})
			continue
		}

		for _, key := range []string{"column", "operator", "value"} {
			if _, has := fobj[key]; !has {
				*errs = append(*errs, FieldError{Field: prefix + "." + key, Message: msgRequired})
			}
		}

		f := Filter{}
		if col, has := fobj["column"]; has {
			s, ok := col.(string)
			if !ok {
				*errs = append(*errs, FieldError{Field: prefix + ".column", Message: msgString})
			} else {
				f.Column = s
			}
		}
		if op, has := fobj["operator"]; has {
			s, ok := op.(string)
			if !ok || !operatorSupported(s) {
				*errs = append(*errs, FieldError{
					Field:   prefix + ".operator",
					Message: fmt.Sprintf("Unsupported. Allowed: %s.", quoteList(supportedOperators)),
				})
			} else {
				f.Operator = s
			}
		}
		if val, has := fobj["value"]; has {
			if !isScalar(val) {
				*errs = append(*errs, FieldError{Field: prefix + ".value", Message: msgScalar})
			} else {
				f.Value = valueFromJSON(val)
			}
		}
		filters = append(filters, f)
	}
	return filters
}

func decodeComputed(v any, errs *[]FieldError) []ComputedField {
	arr, ok := v.([]any)
	if !ok {
		*errs = append(*errs, FieldError{Field: "configuration.computed_fields", Message: msgList})
		return nil
	}
	fields := make([]ComputedField, 0, len(arr))
	for i, item := range arr {
		prefix := fmt.Sprintf("configuration.computed_fields[%d]", i)
		cobj, ok := item.(map[string]any)
		if !ok {
			*errs = append(*errs, FieldError{Field: prefix, Message: msgObject})
			continue
		}

		cf := ComputedField{}
		name, has := cobj["name"]
		if !has {
			*errs = append(*errs, FieldError{Field: prefix + ".name", Message: msgRequired})
		} else if s, ok := name.(string); !ok {
			*errs = append(*errs, FieldError{Field: prefix + ".name", Message: msgString})
		} else {
			cf.Name = s
		}

		exprRaw, has := cobj["expression"]
		if !has {
			*errs = append(*errs, FieldError{Field: prefix + ".expression", Message: msgRequired})
		} else if s, ok := exprRaw.(string); !ok {
			*errs = append(*errs, FieldError{Field: prefix + ".expression", Message: msgString})
		} else if expr, err := ParseExpression(s); err != nil {
			*errs = append(*errs, FieldError{
				Field:   prefix + ".expression",
				Message: expressionFieldMessage(err, s),
			})
		} else {
			cf.Expr = expr
		}

		fields = append(fields, cf)
	}
	return fields
}

// expressionFieldMessage renders a parse failure in the validator's voice.
func expressionFieldMessage(err error, raw string) string {
	var exprErr *ExpressionError
	if !errors.As(err, &exprErr) {
		return fmt.Sprintf("Cannot parse: '%s'.", raw)
	}
	switch exprErr.Reason {
	case ExprUnknownFunction:
		return fmt.Sprintf("Unsupported function: '%s'.", exprErr.Func)
	case ExprBadArity:
		if exprErr.Func == FuncAdd {
			return "Function 'add' expects exactly 2 arguments."
		}
		return "Function 'concat' expects at least 1 argument."
	default:
		return fmt.Sprintf("Cannot parse: '%s'.", raw)
	}
}

func operatorSupported(op string) bool {
	for _, s := range supportedOperators {
		if op == s {
			return true
		}
	}
	return false
}

// isScalar reports whether a decoded JSON value is null, bool, number, or
// string. Filter values must be scalars.
func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, float64, string, json.Number:
		return true
	default:
		return false
	}
}
