package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultNames(t *testing.T) {
	l := Default()

	assert.Equal(t, "batch-abc", l.BatchDirName("abc"))
	assert.Equal(t, "hit-3XYZ", l.HITDirName("3XYZ"))
	assert.Equal(t, "batch-abc-xml", l.XMLDirName("abc"))
	assert.Equal(t, "assignment-A1.xml", l.XMLFileName("A1"))
	assert.Equal(t, "qualification-type-Q1", l.QualTypeDirName("Q1"))
	assert.Equal(t, "qualificationtype-Q1.jsonl", l.QualTypeFileName("Q1"))
}

func TestDefinitionFiles(t *testing.T) {
	files := Default().DefinitionFiles()
	assert.Equal(t, []string{"NOTES", "question.xml.j2", "hittypeproperties.json", "hitproperties.json"}, files)
}

func TestBatchPaths(t *testing.T) {
	p := Default().Batch("/tmp/batch-1")

	assert.Equal(t, filepath.Join("/tmp/batch-1", "README"), p.Readme())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "COMMIT"), p.Commit())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "BATCHID"), p.BatchID())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "data.jsonl"), p.Data())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "_INCOMPLETE"), p.Incomplete())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "definition", "question.xml.j2"), p.QuestionTemplate())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "definition", "hittypeproperties.json"), p.HITTypeProps())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "definition", "hitproperties.json"), p.HITProps())
	assert.Equal(t, filepath.Join("/tmp/batch-1", "results", "hit-H1", "hit.jsonl"), p.HITFile("H1"))
	assert.Equal(t, filepath.Join("/tmp/batch-1", "results", "hit-H1", "assignments.jsonl"), p.AssignmentsFile("H1"))
}

func TestDefinitionPaths(t *testing.T) {
	p := Default().Definition("def")

	assert.Equal(t, filepath.Join("def", "question.xml.j2"), p.QuestionTemplate())
	assert.Equal(t, filepath.Join("def", "qualificationtypeproperties.json"), p.QualTypeProps())
	assert.Equal(t, filepath.Join("def", "test.xml"), p.QualTypeTest())
	assert.Equal(t, filepath.Join("def", "answerkey.xml"), p.QualTypeAnswerKey())
}
