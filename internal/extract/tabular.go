// Package extract turns a saved batch's results/ directory into tables or
// per-assignment XML files.
package extract

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/amti/internal/answers"
	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/layout"
)

// Format is a tabular output format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// Formats lists the supported tabular formats.
var Formats = []Format{FormatCSV, FormatJSON, FormatJSONL}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("format must be one of csv, json, jsonl, got %q", s)
}

// Stdout is the output path meaning standard output.
const Stdout = "-"

// HITColumns are copied from each HIT record.
var HITColumns = []string{
	"HITId",
	"AssignmentDurationInSeconds",
	"AutoApprovalDelayInSeconds",
	"Expiration",
	"CreationTime",
}

// AssignmentColumns are copied from each assignment record.
var AssignmentColumns = []string{
	"AssignmentId",
	"WorkerId",
	"AssignmentStatus",
	"AutoApprovalTime",
	"AcceptTime",
	"SubmitTime",
	"ApprovalTime",
}

// Row is one assignment. Values keep the JSON types they were saved with.
type Row map[string]any

// Table is every assignment of a batch. Columns holds the fixed columns
// followed by each answer field in the order it was first seen.
type Table struct {
	Columns []string
	Rows    []Row
}

// Extractor reads saved batches.
type Extractor struct {
	layout layout.Layout
	logger *slog.Logger
	stdout io.Writer
}

// New returns an Extractor. Output path "-" writes to stdout.
func New(l layout.Layout, logger *slog.Logger, stdout io.Writer) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Extractor{layout: l, logger: logger, stdout: stdout}
}

// TabularReport summarizes a tabular extraction.
type TabularReport struct {
	BatchID string   `json:"batch_id"`
	Output  string   `json:"output"`
	Format  Format   `json:"format"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Tabular writes one row per saved assignment to output.
func (e *Extractor) Tabular(batchDir, output string, format Format) (TabularReport, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return TabularReport{}, err
	}
	batchID, err := e.readBatchID(batchDir)
	if err != nil {
		return TabularReport{}, err
	}
	e.logger.Info("extracting batch to tabular format", "batch_id", batchID, "format", format)

	table, err := e.ReadTable(batchDir)
	if err != nil {
		return TabularReport{}, err
	}

	var buf bytes.Buffer
	if err := table.Write(&buf, format); err != nil {
		return TabularReport{}, err
	}
	if output == Stdout {
		if _, err := e.stdout.Write(buf.Bytes()); err != nil {
			return TabularReport{}, fmt.Errorf("write table: %w", err)
		}
	} else if err := fsutil.WriteFileAtomic(output, buf.Bytes(), 0o644); err != nil {
		return TabularReport{}, fmt.Errorf("write table: %w", err)
	}

	e.logger.Info("extracted batch to tabular format", "batch_id", batchID, "rows", len(table.Rows))
	return TabularReport{
		BatchID: batchID,
		Output:  output,
		Format:  format,
		Rows:    len(table.Rows),
		Columns: table.Columns,
	}, nil
}

// ReadTable loads every assignment under results/ into a Table.
func (e *Extractor) ReadTable(batchDir string) (*Table, error) {
	table := &Table{Columns: append(append([]string{}, HITColumns...), AssignmentColumns...)}
	seen := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		seen[c] = true
	}

	err := e.eachHIT(batchDir, func(hitDir string, hit map[string]any, assignments []map[string]any) error {
		for _, a := range assignments {
			row := Row{}
			for _, c := range HITColumns {
				row[c] = hit[c]
			}
			for _, c := range AssignmentColumns {
				row[c] = a[c]
			}

			xml, _ := a["Answer"].(string)
			parsed, err := answers.Parse(xml)
			if err != nil {
				return fmt.Errorf("assignment %v in %s: %w", a["AssignmentId"], hitDir, err)
			}
			for _, ans := range parsed {
				if ans.Identifier == answers.DoNotRedirect {
					e.logger.Warn("dropping doNotRedirect field", "dir", hitDir, "assignment_id", a["AssignmentId"])
					continue
				}
				row[ans.Identifier] = ans.Value
				if !seen[ans.Identifier] {
					seen[ans.Identifier] = true
					table.Columns = append(table.Columns, ans.Identifier)
				}
			}
			table.Rows = append(table.Rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// eachHIT calls fn for every results/hit-* directory holding both a HIT
// and its assignments, in directory name order.
func (e *Extractor) eachHIT(batchDir string, fn func(hitDir string, hit map[string]any, assignments []map[string]any) error) error {
	resultsDir := e.layout.Batch(batchDir).Results()
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			e.logger.Warn("unexpected file in results", "path", filepath.Join(resultsDir, entry.Name()))
			continue
		}
		hitDir := filepath.Join(resultsDir, entry.Name())
		hit, assignments, err := e.readHITDir(hitDir)
		if err != nil {
			return err
		}
		switch {
		case hit == nil && assignments == nil:
			continue
		case hit == nil:
			e.logger.Warn("found assignments but no HIT", "dir", hitDir)
			continue
		case assignments == nil:
			e.logger.Warn("found HIT but no assignments", "dir", hitDir)
			continue
		}
		if err := fn(hitDir, hit, assignments); err != nil {
			return err
		}
	}
	return nil
}

// readHITDir returns the HIT object and assignment objects of a directory.
// A missing file yields nil for that part.
func (e *Extractor) readHITDir(dir string) (map[string]any, []map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var hit map[string]any
	var assignments []map[string]any
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch entry.Name() {
		case e.layout.HITFile:
			records, err := readRecords(path)
			if err != nil {
				return nil, nil, err
			}
			if len(records) == 0 {
				return nil, nil, fmt.Errorf("%s is empty", path)
			}
			inner, ok := records[0]["HIT"].(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("%s has no HIT object", path)
			}
			hit = inner
		case e.layout.AssignmentsFile:
			records, err := readRecords(path)
			if err != nil {
				return nil, nil, err
			}
			assignments = append([]map[string]any{}, records...)
		default:
			e.logger.Warn("unexpected file in results", "path", path)
		}
	}
	return hit, assignments, nil
}

// readRecords decodes every non-blank line of a JSON Lines file. Numbers
// stay json.Number so they are written back exactly as saved.
func readRecords(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var record map[string]any
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, n, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func (e *Extractor) readBatchID(batchDir string) (string, error) {
	path := e.layout.Batch(batchDir).BatchID()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read batch id: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", errors.New("read batch id: " + path + " is empty")
	}
	return id, nil
}

// Write encodes the table in the given format.
func (t *Table) Write(w io.Writer, format Format) error {
	switch format {
	case FormatCSV:
		return t.writeCSV(w)
	case FormatJSON:
		return t.writeJSON(w)
	case FormatJSONL:
		return t.writeJSONL(w)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func (t *Table) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			s, err := cell(row[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			record[i] = s
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// cell renders a value for CSV. Null is an empty cell.
func cell(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		b, err := marshal(v)
		return string(b), err
	}
}

func (t *Table) writeJSON(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := t.encodeRow(&buf, row); err != nil {
			return err
		}
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func (t *Table) writeJSONL(w io.Writer) error {
	var buf bytes.Buffer
	for _, row := range t.Rows {
		if err := t.encodeRow(&buf, row); err != nil {
			return err
		}
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// encodeRow writes row as a JSON object with keys in column order. Answer
// fields the row does not have are left out.
func (t *Table) encodeRow(buf *bytes.Buffer, row Row) error {
	buf.WriteByte('{')
	first := true
	for _, c := range t.Columns {
		v, ok := row[c]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := marshal(c)
		if err != nil {
			return err
		}
		val, err := marshal(v)
		if err != nil {
			return fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

// marshal encodes v without HTML escaping, so answers keep their <, > and &.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
