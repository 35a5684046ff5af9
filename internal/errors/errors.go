package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseError indicates undecodable input text (hunk headers, risk overrides, team files)
	ParseError ErrorCode = "PARSE_ERROR"
	// InvalidLineNumber indicates an Add or Change targeting a line number below 1
	InvalidLineNumber ErrorCode = "INVALID_LINE_NUMBER"
	// LedgerInvariantViolation indicates a NaN or negative knowledge amount
	LedgerInvariantViolation ErrorCode = "LEDGER_INVARIANT_VIOLATION"
	// ConfigInvalid indicates an invalid configuration value or flag
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// GitUnavailable indicates git could not be run or failed
	GitUnavailable ErrorCode = "GIT_UNAVAILABLE"
	// Timeout indicates an operation timed out
	Timeout ErrorCode = "TIMEOUT"
	// NoInterestingFiles indicates file discovery matched nothing
	NoInterestingFiles ErrorCode = "NO_INTERESTING_FILES"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditFile suggests editing an input file
	EditFile FixActionType = "edit-file"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// BusriskError represents an error with code, message, and suggestions
type BusriskError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewBusriskError creates a new BusriskError
func NewBusriskError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *BusriskError {
	return &BusriskError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// New creates a BusriskError with the default fixes for its code
func New(code ErrorCode, message string, cause error) *BusriskError {
	return NewBusriskError(code, message, cause, GetSuggestedFixes(code))
}

// Newf creates a BusriskError without a cause using a format string
func Newf(code ErrorCode, format string, args ...interface{}) *BusriskError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *BusriskError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BusriskError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *BusriskError) WithDetails(details interface{}) *BusriskError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first BusriskError in err's chain,
// or the empty code if there is none.
func CodeOf(err error) ErrorCode {
	var be *BusriskError
	if stderrors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Is reports whether err's chain contains a BusriskError with the given code
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	GitUnavailable: {
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify the project root is inside a git repository",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "busrisk analyze --git-timeout-ms=120000 <project-root>",
			Safe:        true,
			Description: "Retry with a longer git timeout",
		},
	},
	NoInterestingFiles: {
		{
			Type:        RunCommand,
			Command:     "busrisk analyze -I '\\.go$' <project-root>",
			Safe:        true,
			Description: "Pass an interesting-file pattern matching your sources",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditFile,
			Path:        ".busrisk/config.json",
			Description: "Fix the offending configuration value",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
