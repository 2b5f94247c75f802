package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a CLI failure by the subsystem that produced it.
type Kind int

const (
	KindInternal Kind = iota
	KindUsage
	KindParse
	KindRecovery
	KindResolution
	KindCapacity
	KindSubmission
	KindAbort
)

// Error is a typed CLI error carrying the failure kind and a stage message.
// The rendered chain reads "stage message: cause".
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Abort is the distinguished "stop the whole program" result returned when
// the user declines an interactive confirmation. It is not a recoverable
// error: the top level prints the message bare and exits non-zero without
// the ERROR prefix.
func Abort(message string) *Error {
	return &Error{Kind: KindAbort, Message: message}
}

// IsAbort reports whether err is (or wraps) an explicit user abort.
func IsAbort(err error) bool {
	if cliErr, ok := As(err); ok {
		return cliErr.Kind == KindAbort
	}
	return false
}

// ExitCode maps any error to the process exit status: 0 on success, 1 on
// every reported failure, including the abort path.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
