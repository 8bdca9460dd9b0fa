package review

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decide(t *testing.T, input string) (Outcome, string, error) {
	t.Helper()
	var out bytes.Buffer
	s := NewSession(strings.NewReader(input), &out)
	res, err := s.Decide("A1")
	return res, out.String(), err
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decision Decision
		feedback string
		mark     *Mark
	}{
		{name: "accept", input: "a\n", decision: Accept},
		{name: "accept upper case", input: " A \n", decision: Accept},
		{name: "skip", input: "s\n", decision: Skip},
		{name: "reject confirmed", input: "r\ny\nbad work\n", decision: Reject, feedback: "bad work"},
		{name: "reject cancelled then accept", input: "r\nn\na\n", decision: Accept},
		{name: "invalid then skip", input: "x\n\ns\n", decision: Skip},
		{name: "confirm repeats on junk", input: "r\nmaybe\ny\nno\n", decision: Reject, feedback: "no"},
		{
			name:     "mark then accept",
			input:    "m\na\nlooks odd\n",
			decision: Accept,
			mark:     &Mark{AssignmentID: "A1", Decision: Accept, Reason: "looks odd"},
		},
		{
			name:     "mark then reject",
			input:    "m\nq\nr\n\ny\nspam\n",
			decision: Reject,
			feedback: "spam",
			mark:     &Mark{AssignmentID: "A1", Decision: Reject},
		},
		{name: "final line without newline", input: "a", decision: Accept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := decide(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.decision, res.Decision)
			assert.Equal(t, tt.feedback, res.Feedback)
			assert.Equal(t, tt.mark, res.Mark)
		})
	}
}

func TestDecidePrompts(t *testing.T) {
	_, out, err := decide(t, "x\nm\ns\n\n")
	require.NoError(t, err)
	assert.Contains(t, out, PromptInvalid)
	assert.Contains(t, out, PromptMarked)
	assert.Contains(t, out, PromptReason)
}

func TestDecideInputClosed(t *testing.T) {
	for _, input := range []string{"", "x\n", "r\n", "r\ny\n", "m\n"} {
		_, _, err := decide(t, input)
		assert.ErrorIs(t, err, ErrInputClosed, "input %q", input)
	}
}

func TestReviewShowsAssignment(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(strings.NewReader("s\n"), &out)
	_, err := s.Review("H1", "A1", "<Answer/>")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "HIT ID: H1\nAssignment ID: A1")
	assert.Contains(t, out.String(), "<Answer/>")
}

func TestWriteMarks(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMarks(&buf, []Mark{
		{AssignmentID: "A1", Decision: Accept, Reason: "odd"},
		{AssignmentID: "A2", Decision: Skip},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[["A1","a","odd"],["A2","s",""]]`, buf.String())
}

func TestWriteMarksEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarks(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "accept", Accept.String())
	assert.Equal(t, "reject", Reject.String())
	assert.Equal(t, "skip", Skip.String())
}
