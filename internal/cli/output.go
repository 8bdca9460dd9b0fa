package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/roach88/amti/internal/batch"
	"github.com/roach88/amti/internal/review"
	"github.com/roach88/amti/internal/validation"
	"github.com/roach88/amti/internal/workers"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation or remote failure
	ExitCommandError = 2 // Command error (bad paths, unmet preconditions)
)

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // Configuration could not be loaded
	ErrCodeLedger       = "E003" // Ledger unavailable
	ErrCodeUsage        = "E004" // Bad flags or arguments
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeExists       = "E006" // Path already exists
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeInput        = "E008" // Standard input ended mid-dialogue
	ErrCodeValidation   = "E101" // Property file failed schema validation
	ErrCodeDataLine     = "E102" // Data line is not a JSON object
	ErrCodePrecondition = "E201" // Batch is in the wrong state
	ErrCodeNotReady     = "E202" // HIT or assignment not finished
	ErrCodeRemote       = "E301" // Mechanical Turk call failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// commandError marks a failure of the command's own setup: configuration,
// ledger, flags.
type commandError struct {
	code string
	err  error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

// Classify maps an operation error onto an exit code and error code.
// Anything unrecognized came from the remote side.
func Classify(err error) (int, string) {
	var (
		verr    *validation.Error
		lineErr *validation.LineError
		exitErr *ExitError
		cmdErr  *commandError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code, ErrCodeGeneric
	case errors.As(err, &cmdErr):
		return ExitCommandError, cmdErr.code
	case errors.As(err, &verr):
		return ExitFailure, ErrCodeValidation
	case errors.As(err, &lineErr):
		return ExitFailure, ErrCodeDataLine
	case errors.Is(err, batch.ErrNotReady):
		return ExitFailure, ErrCodeNotReady
	case errors.Is(err, batch.ErrNoIncompleteMarker),
		errors.Is(err, batch.ErrAlreadyUploaded),
		errors.Is(err, batch.ErrAlreadySaved):
		return ExitCommandError, ErrCodePrecondition
	case errors.Is(err, review.ErrInputClosed):
		return ExitCommandError, ErrCodeInput
	case errors.Is(err, workers.ErrNoWorkers):
		return ExitCommandError, ErrCodeUsage
	case errors.Is(err, workers.ErrQualificationNotFound):
		return ExitCommandError, ErrCodeNotFound
	case errors.Is(err, fs.ErrNotExist):
		return ExitCommandError, ErrCodeNotFound
	case errors.Is(err, fs.ErrExist):
		return ExitCommandError, ErrCodeExists
	default:
		return ExitFailure, ErrCodeRemote
	}
}

// errorDetails returns structured context for errors that carry it.
func errorDetails(err error) any {
	var (
		verr     *validation.Error
		lineErr  *validation.LineError
		notReady *batch.NotReadyError
	)
	switch {
	case errors.As(err, &verr):
		return verr
	case errors.As(err, &lineErr):
		return map[string]any{"path": lineErr.Path, "line": lineErr.Line}
	case errors.As(err, &notReady):
		return map[string]any{"kind": notReady.Kind, "id": notReady.ID, "status": notReady.Status}
	}
	return nil
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data as the JSON payload, or text in text mode.
func (f *OutputFormatter) Result(data any, text string) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.GetErrWriter(), "%s %s\n", errorStyle.Render("Error ["+code+"]:"), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should exit with.
func (f *OutputFormatter) Fail(err error) error {
	code, errCode := Classify(err)
	_ = f.Error(errCode, err.Error(), errorDetails(err))
	return WrapExitError(code, errCode, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
