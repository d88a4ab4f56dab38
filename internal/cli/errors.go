// Package cli provides shared configuration and utilities for the rowguard CLI.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pthm/rowguard"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitParse       = 3
	ExitDBConnect   = 4
	ExitRule        = 5
	ExitUnsupported = 6
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitWithError prints the error and exits with the appropriate code.
func ExitWithError(err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitGeneral)
}

// ConfigError creates an ExitError with ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// ParseError creates an ExitError with ExitParse code.
func ParseError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitParse, Message: msg, Err: err}
}

// DBConnectError creates an ExitError with ExitDBConnect code.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// RuleError creates an ExitError with ExitRule code.
func RuleError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitRule, Message: msg, Err: err}
}

// UnsupportedError creates an ExitError with ExitUnsupported code.
func UnsupportedError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitUnsupported, Message: msg, Err: err}
}

// GeneralError creates an ExitError with ExitGeneral code.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}

// RewriteError maps an error from rowguard.Rewriter to an ExitError.
func RewriteError(err error) *ExitError {
	switch {
	case rowguard.IsParseErr(err):
		return ParseError("parsing SQL", err)
	case rowguard.IsRuleEvaluationErr(err), rowguard.IsRuleProviderErr(err):
		return RuleError("evaluating rules", err)
	case rowguard.IsUnsupportedConstructErr(err):
		return UnsupportedError("unsupported construct", err)
	default:
		return GeneralError("rewriting SQL", err)
	}
}
