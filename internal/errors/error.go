package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTransport Category = "transport"
	CategoryCLI       Category = "cli"
)

// Location points at the configuration source an error came from.
type Location struct {
	// File is the configuration file path.
	File string `json:"file,omitempty"`

	// Field is the JSON path of the offending value (e.g. "servers[0].server.port").
	Field string `json:"field,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	switch {
	case l.File != "" && l.Field != "":
		return fmt.Sprintf("%s: %s", l.File, l.Field)
	case l.File != "":
		return l.File
	default:
		return l.Field
	}
}

// WTError is a structured error with a stable code, a hint and documentation.
type WTError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, transport, cli).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where in the configuration the error was found.
	Location *Location

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Example is a configuration snippet showing the correct form.
	Example string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *WTError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Location != nil {
		msg = fmt.Sprintf("%s (%s)", msg, e.Location)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *WTError) Unwrap() error {
	return e.Wrapped
}

// WithLocation records the file and field the error refers to.
func (e *WTError) WithLocation(file, field string) *WTError {
	e.Location = &Location{File: file, Field: field}
	return e
}

// WithField records the field the error refers to, keeping any known file.
func (e *WTError) WithField(field string) *WTError {
	if e.Location == nil {
		e.Location = &Location{}
	}
	e.Location.Field = field
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *WTError) WithSuggestion(s string) *WTError {
	e.Suggestion = s
	return e
}

// WithExample adds a configuration example to the error.
func (e *WTError) WithExample(ex string) *WTError {
	e.Example = ex
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *WTError) WithDetail(d string) *WTError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *WTError) Wrap(err error) *WTError {
	e.Wrapped = err
	return e
}

// New creates a WTError from a registered error code.
func New(code string) *WTError {
	template, ok := registry[code]
	if !ok {
		return &WTError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &WTError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
		DocURL:     template.DocURL,
	}
}

// Newf creates a new WTError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *WTError {
	return &WTError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a WTError.
// An error that already carries a WTError in its chain is returned unchanged.
func FromError(err error, code string) *WTError {
	if err == nil {
		return nil
	}
	var we *WTError
	if errors.As(err, &we) {
		return we
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first WTError in err's chain, or "".
func Code(err error) string {
	var we *WTError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}
