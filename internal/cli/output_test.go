package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/amti/internal/batch"
	"github.com/roach88/amti/internal/review"
	"github.com/roach88/amti/internal/validation"
	"github.com/roach88/amti/internal/workers"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"batch_id": "B1"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "upload failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "upload failed", resp.Error.Message)
}

func TestOutputFormatter_ResultText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Result(map[string]int{"hits": 2}, "2 HITs"))
	assert.Equal(t, "2 HITs\n", buf.String())
}

func TestOutputFormatter_ResultJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Result(map[string]int{"hits": 2}, "2 HITs"))
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data["hits"])
}

func TestOutputFormatter_TextError(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
	}

	err := formatter.Error("E001", "upload failed", nil)
	require.NoError(t, err)
	assert.Empty(t, out.String(), "text errors go to the error writer")
	assert.Contains(t, errOut.String(), "Error [E001]")
	assert.Contains(t, errOut.String(), "upload failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "hitproperties.json"}
	err := formatter.Error("E101", "validation failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E101]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "data.jsonl")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing data.jsonl")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{"validation", &validation.Error{Document: "hitproperties.json"}, ExitFailure, ErrCodeValidation},
		{"data line", fmt.Errorf("upload: %w", &validation.LineError{Path: "data.jsonl", Line: 3, Err: errors.New("bad")}), ExitFailure, ErrCodeDataLine},
		{"not ready", &batch.NotReadyError{Kind: "HIT", ID: "H1", Status: "Assignable"}, ExitFailure, ErrCodeNotReady},
		{"no marker", fmt.Errorf("dir: %w", batch.ErrNoIncompleteMarker), ExitCommandError, ErrCodePrecondition},
		{"already uploaded", batch.ErrAlreadyUploaded, ExitCommandError, ErrCodePrecondition},
		{"review input closed", fmt.Errorf("review: %w", review.ErrInputClosed), ExitCommandError, ErrCodeInput},
		{"no workers", workers.ErrNoWorkers, ExitCommandError, ErrCodeUsage},
		{"unknown qualification", workers.ErrQualificationNotFound, ExitCommandError, ErrCodeNotFound},
		{"missing path", fmt.Errorf("read: %w", fs.ErrNotExist), ExitCommandError, ErrCodeNotFound},
		{"existing path", fs.ErrExist, ExitCommandError, ErrCodeExists},
		{"command", &commandError{ErrCodeLedger, errors.New("locked")}, ExitCommandError, ErrCodeLedger},
		{"remote", errors.New("ServiceFault"), ExitFailure, ErrCodeRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit, code := Classify(tt.err)
			assert.Equal(t, tt.wantExit, exit)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestFailReturnsExitError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(&batch.NotReadyError{Kind: "Assignment", ID: "A1", Status: "Submitted"})
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, batch.ErrNotReady)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotReady, resp.Error.Code)
	assert.Equal(t, map[string]any{"kind": "Assignment", "id": "A1", "status": "Submitted"}, resp.Error.Details)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitCommandError, "x", errors.New("y")))))
}
