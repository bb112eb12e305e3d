package types

import "fmt"

// RefactorError represents errors in refactoring operations
type RefactorError struct {
	Type    ErrorType
	Message string
	File    string
	Line    int
	Column  int
	Cause   error
}

func (e *RefactorError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return e.Message
}

func (e *RefactorError) Unwrap() error {
	return e.Cause
}

type ErrorType int

const (
	ParseError ErrorType = iota
	SymbolNotFound
	InvalidOperation
	ValidationFailure
	FileSystemError
	DescriptorError
	ConfigError
)

// String returns the string representation of ErrorType
func (t ErrorType) String() string {
	switch t {
	case ParseError:
		return "ParseError"
	case SymbolNotFound:
		return "SymbolNotFound"
	case InvalidOperation:
		return "InvalidOperation"
	case ValidationFailure:
		return "ValidationFailure"
	case FileSystemError:
		return "FileSystemError"
	case DescriptorError:
		return "DescriptorError"
	case ConfigError:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// ValidationError is returned when a plan is refused because its status
// carries errors.
type ValidationError struct {
	Status *Status
}

func (e *ValidationError) Error() string {
	if e.Status == nil {
		return "validation failed"
	}
	n := 0
	for _, entry := range e.Status.Entries() {
		if entry.Severity >= SeverityError {
			n++
		}
	}
	if msg := e.Status.FirstMessage(SeverityError); msg != "" {
		return fmt.Sprintf("validation failed with %d issues: %s", n, msg)
	}
	return fmt.Sprintf("validation failed with %d issues", n)
}
