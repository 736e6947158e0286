package engine

// expr.go implements the computed-field expression grammar:
//
//	name '(' arg (',' arg)* ')'
//
// where name is one of the supported functions and each arg is a bare
// column identifier or a single-quoted string literal. Nesting is not
// supported. Expressions are parsed once per declaration and evaluated
// per row.

import (
	"fmt"
	"regexp"
	"strings"
)

// Supported expression functions.
const (
	FuncConcat = "concat"
	FuncAdd    = "add"
)

var (
	exprRegex    = regexp.MustCompile(`(?s)^(\w+)\((.+)\)$`)
	literalRegex = regexp.MustCompile(`^'(.*)'$`)
	identRegex   = regexp.MustCompile(`^\w+$`)
)

// Arg is a single expression argument: a column reference or a literal.
type Arg struct {
	Column  string // column name when Literal is false
	Value   string // literal text when Literal is true
	Literal bool
}

// source returns the argument as written, for error messages.
func (a Arg) source() string {
	if a.Literal {
		return a.Value
	}
	return a.Column
}

// Expression is a parsed computed-field expression, ready for repeated
// evaluation.
type Expression struct {
	Text string // the raw expression as configured
	Func string
	Args []Arg
}

// ParseExpression parses text against the expression grammar. Failures are
// returned as *ExpressionError so callers can distinguish syntax, unknown
// function, and arity problems.
func ParseExpression(text string) (*Expression, error) {
	m := exprRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, &ExpressionError{Expr: text, Reason: ExprBadSyntax}
	}

	name := m[1]
	if name != FuncConcat && name != FuncAdd {
		return nil, &ExpressionError{Expr: text, Func: name, Reason: ExprUnknownFunction}
	}

	rawArgs := splitArgs(m[2])
	args := make([]Arg, 0, len(rawArgs))
	for _, raw := range rawArgs {
		if lm := literalRegex.FindStringSubmatch(raw); lm != nil {
			args = append(args, Arg{Value: lm[1], Literal: true})
			continue
		}
		if !identRegex.MatchString(raw) {
			return nil, &ExpressionError{Expr: text, Reason: ExprBadSyntax}
		}
		args = append(args, Arg{Column: raw})
	}

	switch {
	case name == FuncAdd && len(args) != 2:
		return nil, &ExpressionError{Expr: text, Func: name, Reason: ExprBadArity, Got: len(args)}
	case name == FuncConcat && len(args) == 0:
		return nil, &ExpressionError{Expr: text, Func: name, Reason: ExprBadArity}
	}

	return &Expression{Text: text, Func: name, Args: args}, nil
}

// splitArgs splits a comma-separated argument list, respecting single
// quotes so literals may contain commas.
func splitArgs(raw string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	for _, ch := range raw {
		switch {
		case ch == '\'':
			inQuote = !inQuote
			current.WriteRune(ch)
		case ch == ',' && !inQuote:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

// Evaluate computes the expression against a single row.
//
// concat joins the textual form of every argument (Null contributes "").
// add requires both arguments to resolve numerically; Null and non-numeric
// text fail with an error naming the offending argument.
func (e *Expression) Evaluate(row Row) (Value, error) {
	vals := make([]Value, len(e.Args))
	for i, a := range e.Args {
		if a.Literal {
			vals[i] = Text(a.Value)
			continue
		}
		v, ok := row[a.Column]
		if !ok {
			return Null(), fmt.Errorf("references missing column: '%s'", a.Column)
		}
		vals[i] = v
	}

	switch e.Func {
	case FuncConcat:
		var b strings.Builder
		for _, v := range vals {
			b.WriteString(v.String())
		}
		return Text(b.String()), nil
	case FuncAdd:
		x, ok := vals[0].AsNumber()
		if !ok {
			return Null(), fmt.Errorf("argument '%s' of add is not numeric", e.Args[0].source())
		}
		y, ok := vals[1].AsNumber()
		if !ok {
			return Null(), fmt.Errorf("argument '%s' of add is not numeric", e.Args[1].source())
		}
		return Number(x + y), nil
	default:
		return Null(), fmt.Errorf("unsupported function: '%s'", e.Func)
	}
}
