package extract

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/amti/internal/layout"
	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/testutil"
)

const selectionAnswer = `<QuestionFormAnswers>` +
	`<Answer><QuestionIdentifier>text</QuestionIdentifier><FreeText>hi, there</FreeText></Answer>` +
	`<Answer><QuestionIdentifier>color</QuestionIdentifier>` +
	`<SelectionIdentifier>red</SelectionIdentifier><SelectionIdentifier>blue</SelectionIdentifier></Answer>` +
	`</QuestionFormAnswers>`

func savedHIT(id string, assignments ...mturk.Assignment) testutil.SavedHIT {
	for i := range assignments {
		assignments[i].HITId = id
		assignments[i].AutoApprovalTime = testutil.Time(2 * time.Hour)
		assignments[i].AcceptTime = testutil.Time(10 * time.Minute)
		assignments[i].SubmitTime = testutil.Time(20 * time.Minute)
	}
	return testutil.SavedHIT{
		HIT: mturk.HIT{
			HITId:                       id,
			HITStatus:                   mturk.HITStatusReviewable,
			AssignmentDurationInSeconds: 600,
			AutoApprovalDelayInSeconds:  3600,
			CreationTime:                testutil.Time(0),
			Expiration:                  testutil.Time(24 * time.Hour),
		},
		Assignments: assignments,
	}
}

func writeBatch(t *testing.T) string {
	t.Helper()
	return testutil.WriteSavedBatch(t, t.TempDir(), "B1",
		savedHIT("HIT1",
			mturk.Assignment{
				AssignmentId:     "A1",
				WorkerId:         "W1",
				AssignmentStatus: mturk.AssignmentApproved,
				ApprovalTime:     testutil.Time(30 * time.Minute),
				Answer:           testutil.AnswerXML("text", "hello"),
			},
			mturk.Assignment{
				AssignmentId:     "A2",
				WorkerId:         "W2",
				AssignmentStatus: mturk.AssignmentRejected,
				RejectionTime:    testutil.Time(30 * time.Minute),
				Answer:           testutil.AnswerXML("text", "bye &lt;b&gt; &amp; co", "doNotRedirect", "x"),
			},
		),
		savedHIT("HIT2",
			mturk.Assignment{
				AssignmentId:     "A3",
				WorkerId:         "W1",
				AssignmentStatus: mturk.AssignmentApproved,
				ApprovalTime:     testutil.Time(30 * time.Minute),
				Answer:           selectionAnswer,
			},
		),
	)
}

func TestTabularGolden(t *testing.T) {
	batchDir := writeBatch(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			var stdout bytes.Buffer
			report, err := New(layout.Default(), nil, &stdout).Tabular(batchDir, Stdout, format)
			require.NoError(t, err)
			assert.Equal(t, "B1", report.BatchID)
			assert.Equal(t, 3, report.Rows)
			g.Assert(t, "table."+string(format), stdout.Bytes())
		})
	}
}

func TestTabularColumns(t *testing.T) {
	table, err := New(layout.Default(), nil, nil).ReadTable(writeBatch(t))
	require.NoError(t, err)

	want := append(append([]string{}, HITColumns...), AssignmentColumns...)
	want = append(want, "text", "color")
	assert.Equal(t, want, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.NotContains(t, table.Rows[1], "doNotRedirect")
	assert.Equal(t, "red|blue", table.Rows[2]["color"])
}

func TestTabularDropsDoNotRedirectWithWarning(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	_, err := New(layout.Default(), logger, nil).ReadTable(writeBatch(t))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "dropping doNotRedirect field")
}

func TestTabularWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "table.csv")
	report, err := New(layout.Default(), nil, nil).Tabular(writeBatch(t), out, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, out, report.Output)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "HITId,AssignmentDurationInSeconds,"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 4)
}

func TestTabularRejectsUnknownFormat(t *testing.T) {
	_, err := New(layout.Default(), nil, nil).Tabular(writeBatch(t), Stdout, Format("xlsx"))
	assert.Error(t, err)
}

func TestTabularWarnsOnHalfWrittenHITDir(t *testing.T) {
	batchDir := writeBatch(t)
	bp := layout.Default().Batch(batchDir)
	require.NoError(t, os.Remove(bp.AssignmentsFile("HIT2")))

	var logs bytes.Buffer
	table, err := New(layout.Default(), slog.New(slog.NewTextHandler(&logs, nil)), nil).ReadTable(batchDir)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Contains(t, logs.String(), "found HIT but no assignments")
}

func TestTabularEmptyResults(t *testing.T) {
	batchDir := testutil.WriteSavedBatch(t, t.TempDir(), "B2")
	require.NoError(t, os.MkdirAll(layout.Default().Batch(batchDir).Results(), 0o755))

	var stdout bytes.Buffer
	_, err := New(layout.Default(), nil, &stdout).Tabular(batchDir, Stdout, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout.String())
}

func TestXML(t *testing.T) {
	batchDir := writeBatch(t)
	outDir := t.TempDir()

	report, err := New(layout.Default(), nil, nil).XML(batchDir, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "batch-B1-xml"), report.Path)
	assert.Equal(t, 2, report.HITs)
	assert.Equal(t, 3, report.Assignments)

	data, err := os.ReadFile(filepath.Join(report.Path, "hit-HIT2", "assignment-A3.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  <Answer>\n    <QuestionIdentifier>text</QuestionIdentifier>")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directory must not be left behind")

	_, err = New(layout.Default(), nil, nil).XML(batchDir, outDir)
	assert.Error(t, err, "an existing extraction is never overwritten")
}

func TestXMLBadAnswerLeavesNothing(t *testing.T) {
	batchDir := testutil.WriteSavedBatch(t, t.TempDir(), "B3",
		savedHIT("HIT1", mturk.Assignment{AssignmentId: "A1", Answer: "<QuestionFormAnswers><<"}))
	outDir := t.TempDir()

	_, err := New(layout.Default(), nil, nil).XML(batchDir, outDir)
	require.Error(t, err)
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
