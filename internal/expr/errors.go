package expr

import "errors"

// Evaluation and parse errors.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, expr.ErrSyntax) {
//	    // reject the expression text
//	}
var (
	// ErrSyntax is returned when the expression text cannot be parsed.
	ErrSyntax = errors.New("expr: syntax error")

	// ErrUnknownName is returned for a name or attribute the sandbox does
	// not bind, including pin/log outside trigger scope.
	ErrUnknownName = errors.New("expr: unknown name")

	// ErrType is returned when an operand or argument has the wrong type.
	ErrType = errors.New("expr: type error")

	// ErrArity is returned when a call has the wrong number of arguments.
	ErrArity = errors.New("expr: wrong number of arguments")

	// ErrDivisionByZero is returned for division or modulo by zero.
	ErrDivisionByZero = errors.New("expr: division by zero")
)
