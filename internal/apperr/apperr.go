// Package apperr classifies the failures a reduction or fetch run can hit so
// that callers decide whether to abort, skip or retry.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class.
type Kind int

const (
	// IO covers read/write faults other than a missing input (permissions,
	// disk space, corrupt or unsupported files).
	IO Kind = iota
	// InputNotFound means the source artifact does not exist.
	InputNotFound
	// VariableNotFound means an opened artifact lacks the requested variable.
	VariableNotFound
	// Auth means the data service rejected the supplied credentials.
	Auth
)

func (k Kind) String() string {
	switch k {
	case InputNotFound:
		return "input not found"
	case VariableNotFound:
		return "variable not found"
	case Auth:
		return "authentication failed"
	default:
		return "i/o failure"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrIO               = errors.New(IO.String())
	ErrInputNotFound    = errors.New(InputNotFound.String())
	ErrVariableNotFound = errors.New(VariableNotFound.String())
	ErrAuth             = errors.New(Auth.String())
)

// Error is a classified failure naming the offending path and variable.
type Error struct {
	Kind     Kind
	Path     string
	Variable string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Variable != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Variable)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case InputNotFound:
		return ErrInputNotFound
	case VariableNotFound:
		return ErrVariableNotFound
	case Auth:
		return ErrAuth
	default:
		return ErrIO
	}
}

// NewIO wraps err as an I/O failure on path.
func NewIO(path string, err error) error {
	return &Error{Kind: IO, Path: path, Err: err}
}

// NewInputNotFound reports a missing source artifact.
func NewInputNotFound(path string, err error) error {
	return &Error{Kind: InputNotFound, Path: path, Err: err}
}

// NewVariableNotFound reports that variable is absent from path.
func NewVariableNotFound(path, variable string, err error) error {
	return &Error{Kind: VariableNotFound, Path: path, Variable: variable, Err: err}
}

// NewAuth reports rejected credentials.
func NewAuth(err error) error {
	return &Error{Kind: Auth, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain. Unclassified
// errors are treated as I/O failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IO
}
