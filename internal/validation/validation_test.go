package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validHITType = `{
	"AutoApprovalDelayInSeconds": 3600,
	"AssignmentDurationInSeconds": 600,
	"Reward": "0.25",
	"Title": "Label some sentences",
	"Keywords": "nlp, labeling",
	"Description": "Read sentences and label them."
}`

func TestCheckValidDocuments(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		doc    string
	}{
		{"hit type", HITTypeProperties, validHITType},
		{"hit", HITProperties, `{"MaxAssignments": 3, "LifetimeInSeconds": 86400}`},
		{"qualification type", QualificationTypeProperties, `{
			"Name": "Q", "Keywords": "k", "Description": "d",
			"QualificationTypeStatus": "Active",
			"RetryDelayInSeconds": 60, "TestDurationInSeconds": 300
		}`},
		{"optional request parameters", HITProperties, `{
			"MaxAssignments": 1, "LifetimeInSeconds": 1,
			"UniqueRequestToken": "tok",
			"AssignmentReviewPolicy": {"PolicyName": "ScoreMyKnownAnswers/2011-09-01",
				"Parameters": [{"Key": "AnswerKey", "MapEntries": [{"Key": "q1", "Values": ["a"]}]}]}
		}`},
		{"qualification requirements", HITTypeProperties, strings.Replace(validHITType, `"Reward"`,
			`"QualificationRequirements": [{"QualificationTypeId": "Q1", "Comparator": "Exists"}], "Reward"`, 1)},
		{"qualification type stays open", QualificationTypeProperties, `{
			"Name": "Q", "Keywords": "k", "Description": "d",
			"QualificationTypeStatus": "Active",
			"RetryDelayInSeconds": 60, "TestDurationInSeconds": 300, "Other": 1
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems, err := Check(tt.schema, "doc.json", []byte(tt.doc))
			require.NoError(t, err)
			assert.Empty(t, problems)
		})
	}
}

func TestCheckMissingKeys(t *testing.T) {
	problems, err := Check(HITTypeProperties, "doc.json", []byte(`{"Reward": "0.10"}`))
	require.NoError(t, err)

	// one problem per missing key, in schema order
	require.Len(t, problems, 5)
	assert.Equal(t, "Key (AutoApprovalDelayInSeconds) was not found.", problems[0].Message)
	assert.Equal(t, "Key (AssignmentDurationInSeconds) was not found.", problems[1].Message)
	assert.Equal(t, "Key (Title) was not found.", problems[2].Message)
	assert.Equal(t, "Key (Keywords) was not found.", problems[3].Message)
	assert.Equal(t, "Key (Description) was not found.", problems[4].Message)
	for _, p := range problems {
		assert.Equal(t, ErrKeyMissing, p.Code)
	}
}

func TestCheckWrongTypes(t *testing.T) {
	problems, err := Check(HITProperties, "doc.json", []byte(`{"MaxAssignments": "3", "LifetimeInSeconds": 1.5}`))
	require.NoError(t, err)

	require.Len(t, problems, 2)
	assert.Equal(t, "MaxAssignments", problems[0].Field)
	assert.Equal(t, "Key (MaxAssignments) is not of type int", problems[0].Message)
	assert.Equal(t, ErrKeyWrongType, problems[0].Code)
	assert.Equal(t, "LifetimeInSeconds", problems[1].Field)
}

func TestCheckUnknownKeys(t *testing.T) {
	doc := `{"MaxAssignments": 1, "Other": [1, 2], "LifetimeInSeconds": 1, "RequesterAnnotation": "x"}`
	problems, err := Check(HITProperties, "doc.json", []byte(doc))
	require.NoError(t, err)

	require.Len(t, problems, 2)
	assert.Equal(t, "Key (Other) is not supported.", problems[0].Message)
	assert.Equal(t, "RequesterAnnotation", problems[1].Field)
	for _, p := range problems {
		assert.Equal(t, ErrKeyUnknown, p.Code)
	}
}

func TestCheckOptionalKeyWrongType(t *testing.T) {
	problems, err := Check(HITProperties, "doc.json", []byte(`{"MaxAssignments": 1, "LifetimeInSeconds": 1, "UniqueRequestToken": 7}`))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "Key (UniqueRequestToken) is not of type string", problems[0].Message)
}

func TestCheckNullIsWrongType(t *testing.T) {
	problems, err := Check(HITProperties, "doc.json", []byte(`{"MaxAssignments": null, "LifetimeInSeconds": 10}`))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, ErrKeyWrongType, problems[0].Code)
}

func TestCheckStringWhereIntExpected(t *testing.T) {
	doc := strings.Replace(validHITType, `"Reward": "0.25"`, `"Reward": 0.25`, 1)
	problems, err := Check(HITTypeProperties, "doc.json", []byte(doc))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "Key (Reward) is not of type string", problems[0].Message)
}

func TestCheckNotAnObject(t *testing.T) {
	problems, err := Check(HITProperties, "doc.json", []byte(`[1, 2, 3]`))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, ErrNotObject, problems[0].Code)
}

func TestCheckInvalidJSON(t *testing.T) {
	problems, err := Check(HITProperties, "doc.json", []byte(`{"MaxAssignments": `))
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, ErrInvalidJSON, problems[0].Code)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"MaxAssignments": 1, "LifetimeInSeconds": 60}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{}`), 0o644))

	data, err := ValidateFile(HITProperties, good)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MaxAssignments")

	_, err = ValidateFile(HITProperties, bad)
	var vErr *Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, bad, vErr.Document)
	assert.Equal(t, []string{
		"Key (MaxAssignments) was not found.",
		"Key (LifetimeInSeconds) was not found.",
	}, vErr.Messages())
	assert.Contains(t, err.Error(), "had the following validation errors")

	_, err = ValidateFile(HITProperties, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &vErr))
}
