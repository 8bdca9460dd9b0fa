package validation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// LineError reports the first line of a JSON Lines file that is not a JSON
// object. Line is 1-based.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("Line %d of %s did not validate as JSON. Please make sure file is in JSON Lines format: %v",
		e.Line, e.Path, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

var errNotObject = errors.New("line is not a JSON object")

// ReadLines calls fn for every line of r with its 1-based number. The line
// passed to fn has its trailing newline removed. A final line without a
// newline is still delivered; the empty tail after a final newline is not.
func ReadLines(r io.Reader, fn func(n int, line []byte) error) error {
	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if fnErr := fn(n, bytes.TrimRight(line, "\r\n")); fnErr != nil {
				return fnErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// IsBlank reports whether a data line carries no record.
func IsBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// ValidateJSONLines checks that every non-blank line of r is a JSON object
// and returns the number of records found.
func ValidateJSONLines(path string, r io.Reader) (int, error) {
	records := 0
	err := ReadLines(r, func(n int, line []byte) error {
		if IsBlank(line) {
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				err = errNotObject
			}
			return &LineError{Path: path, Line: n, Err: err}
		}
		if obj == nil {
			return &LineError{Path: path, Line: n, Err: errNotObject}
		}
		records++
		return nil
	})
	return records, err
}

// ValidateJSONLinesFile opens path and validates it with ValidateJSONLines.
func ValidateJSONLinesFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ValidateJSONLines(path, f)
}
