package engine

// errors.go defines the typed failures the engine can produce. Error text
// is part of the contract: messages are stored on failed runs and asserted
// by clients, so they are kept stable and self-contained.

import (
	"fmt"
	"sort"
	"strings"
)

// Stage names as they appear in configuration keys and error messages.
const (
	StageRename  = "column_mapping"
	StageSelect  = "column_selection"
	StageFilter  = "filters"
	StageCompute = "computed_fields"
	StageDrop    = "drop_columns"
)

// UnsupportedFormatError reports an input file extension outside the
// supported set. It is raised before a run record exists.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("File type '%s' is not supported. Allowed: %s", e.Ext, quoteList(allowedExtensions()))
}

// DecodeError reports input bytes that could not be decoded as the declared
// format. The run record exists and is marked failed.
type DecodeError struct {
	Format Format
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot read %s input: %s", e.Format, e.Detail)
}

// TransformError reports a stage failure. Detail carries the complete
// message; Stage tags which configuration key produced it.
type TransformError struct {
	Stage  string
	Detail string
}

func (e *TransformError) Error() string { return e.Detail }

// transformErrorf builds a TransformError with a formatted detail message.
func transformErrorf(stage, format string, args ...any) *TransformError {
	return &TransformError{Stage: stage, Detail: fmt.Sprintf(format, args...)}
}

// Expression parse failure reasons.
const (
	ExprBadSyntax = iota
	ExprUnknownFunction
	ExprBadArity
)

// ExpressionError reports an expression that failed to parse. Reason lets
// callers re-render the failure in their own voice (the config validator
// phrases these differently than run errors).
type ExpressionError struct {
	Expr   string // the raw expression text
	Func   string // function name, for function-specific failures
	Reason int
	Got    int // argument count seen, for arity failures
}

func (e *ExpressionError) Error() string {
	switch e.Reason {
	case ExprUnknownFunction:
		return fmt.Sprintf("Unsupported function: '%s'", e.Func)
	case ExprBadArity:
		if e.Func == FuncAdd {
			return fmt.Sprintf("Function 'add' expects exactly 2 arguments, got %d", e.Got)
		}
		return "Function 'concat' expects at least 1 argument"
	default:
		return fmt.Sprintf("Cannot parse expression: '%s'", e.Expr)
	}
}

// quoteList renders names sorted and single-quoted: ['a', 'b'].
func quoteList(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, s := range sorted {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
