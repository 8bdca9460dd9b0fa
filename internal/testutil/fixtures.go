package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/amti/internal/layout"
	"github.com/roach88/amti/internal/mturk"
)

// Default definition documents used by WriteDefinition.
const (
	HITTypePropertiesJSON = `{
  "AutoApprovalDelayInSeconds": 3600,
  "AssignmentDurationInSeconds": 600,
  "Reward": "0.50",
  "Title": "Label images",
  "Keywords": "image, label",
  "Description": "Label the image."
}
`
	HITPropertiesJSON = `{
  "MaxAssignments": 2,
  "LifetimeInSeconds": 86400
}
`
	QuestionTemplate = `<HTMLQuestion xmlns="http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2011-11-11/HTMLQuestion.xsd"><HTMLContent><![CDATA[<p>{{ text }}</p>]]></HTMLContent><FrameHeight>600</FrameHeight></HTMLQuestion>`
	Notes            = "Test batch.\n"

	QualTypePropertiesJSON = `{
  "Name": "Test qualification",
  "Keywords": "test",
  "Description": "A test qualification.",
  "QualificationTypeStatus": "Active",
  "RetryDelayInSeconds": 60,
  "TestDurationInSeconds": 300
}
`
)

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteDefinition creates a valid batch definition directory under root.
// overrides replaces individual files by name.
func WriteDefinition(t *testing.T, root string, overrides map[string]string) string {
	t.Helper()
	l := layout.Default()
	dir := filepath.Join(root, "definition")
	files := map[string]string{
		l.Notes:            Notes,
		l.QuestionTemplate: QuestionTemplate,
		l.HITTypeProps:     HITTypePropertiesJSON,
		l.HITProps:         HITPropertiesJSON,
	}
	for name, content := range overrides {
		files[name] = content
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// WriteData writes one JSON object per line to root/data.jsonl.
func WriteData(t *testing.T, root string, lines ...string) string {
	t.Helper()
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return WriteFile(t, root, "data.jsonl", content)
}

// WriteQualTypeDefinition creates a qualification type definition directory.
func WriteQualTypeDefinition(t *testing.T, root string, overrides map[string]string) string {
	t.Helper()
	l := layout.Default()
	dir := filepath.Join(root, "qual-definition")
	files := map[string]string{l.QualTypeProps: QualTypePropertiesJSON}
	for name, content := range overrides {
		files[name] = content
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	return dir
}

// SavedHIT is one HIT and its assignments in a saved batch.
type SavedHIT struct {
	HIT         mturk.HIT
	Assignments []mturk.Assignment
}

// WriteSavedBatch lays out a saved batch directory with results/.
func WriteSavedBatch(t *testing.T, root, batchID string, hits ...SavedHIT) string {
	t.Helper()
	l := layout.Default()
	dir := filepath.Join(root, l.BatchDirName(batchID))
	bp := l.Batch(dir)

	WriteFile(t, dir, l.BatchID, batchID)
	for _, h := range hits {
		hitLine, err := json.Marshal(mturk.HITRecord{HIT: h.HIT})
		require.NoError(t, err)
		require.NoError(t, os.MkdirAll(bp.HITDir(h.HIT.HITId), 0o755))
		require.NoError(t, os.WriteFile(bp.HITFile(h.HIT.HITId), append(hitLine, '\n'), 0o644))

		var sb strings.Builder
		for _, a := range h.Assignments {
			line, err := json.Marshal(a)
			require.NoError(t, err)
			sb.Write(line)
			sb.WriteByte('\n')
		}
		require.NoError(t, os.WriteFile(bp.AssignmentsFile(h.HIT.HITId), []byte(sb.String()), 0o644))
	}
	return dir
}

// Time returns Epoch plus the given offset, as a pointer for API structs.
func Time(offset time.Duration) *time.Time {
	t := Epoch.Add(offset)
	return &t
}

// AnswerXML builds a QuestionFormAnswers document of FreeText answers.
// pairs alternates identifier and value.
func AnswerXML(pairs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="ASCII"?><QuestionFormAnswers xmlns="http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2005-10-01/QuestionFormAnswers.xsd">`)
	for i := 0; i+1 < len(pairs); i += 2 {
		sb.WriteString("<Answer><QuestionIdentifier>")
		sb.WriteString(pairs[i])
		sb.WriteString("</QuestionIdentifier><FreeText>")
		sb.WriteString(pairs[i+1])
		sb.WriteString("</FreeText></Answer>")
	}
	sb.WriteString("</QuestionFormAnswers>")
	return sb.String()
}
