// Package nexuserr defines the error codes the query engine surfaces to its
// callers (spec §7), following the same wrap-with-context convention the
// teacher uses throughout db/ and semantic/error_helpers.go.
package nexuserr

import "fmt"

// Code enumerates the error kinds a query can fail with.
type Code string

const (
	CodeParse               Code = "PARSE_ERROR"
	CodeSemantic            Code = "SEMANTIC_ERROR"
	CodeType                Code = "TYPE_ERROR"
	CodeArithmetic          Code = "ARITHMETIC_ERROR"
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Position locates an error within query text.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Error is the typed error every layer of the engine returns. It implements
// the standard error interface and supports errors.Is/As via Unwrap.
type Error struct {
	Code     Code
	Message  string
	Position *Position
	cause    error
}

func (e *Error) Error() string {
	if e.Position != nil {
		return fmt.Sprintf("%s: %s (line %d, col %d)", e.Code, e.Message, e.Position.Line, e.Position.Col)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no position information.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewAt builds an Error anchored to a source position (used by the lexer and
// parser, which can report exactly where a query went wrong).
func NewAt(code Code, pos Position, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Position: &pos}
}

// Wrap attaches code/message context to an underlying error, preserving it
// for errors.Is/As the way the teacher wraps with fmt.Errorf("...: %w", err).
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Is reports whether err is a *Error carrying the given code.
func Is(err error, code Code) bool {
	ne, ok := err.(*Error)
	return ok && ne.Code == code
}

// CodeOf extracts the code from err, or CodeInternal if err is not a *Error.
func CodeOf(err error) Code {
	if ne, ok := err.(*Error); ok {
		return ne.Code
	}
	return CodeInternal
}
