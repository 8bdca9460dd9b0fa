// Package layout names every file and directory amti reads or writes.
//
// A batch directory has the following structure:
//
//	batch-<batch_id>/            root directory for the batch
//	|- README                    text file for developers about the batch
//	|- COMMIT                    commit SHA of the code that generated the batch
//	|- BATCHID                   random UUID for the batch
//	|- definition/               files defining the HIT and HIT type
//	|  |- NOTES                  notes for developers
//	|  |- question.xml.j2        Jinja2 template for the HITs' question
//	|  |- hittypeproperties.json properties for the HIT type
//	|  |- hitproperties.json     properties for each HIT
//	|- data.jsonl                one JSON object per HIT
//	|- _INCOMPLETE               open HIT type and HIT ids, only while uploaded
//	|- results/                  only once saved
//	|  |- hit-<hit_id>/
//	|  |  |- hit.jsonl           the HIT as returned by MTurk
//	|  |  |- assignments.jsonl   one assignment per line
//
// The names are shared with batches written by earlier versions of the
// tool, so they are fixed rather than configurable. A Layout is built once
// and passed explicitly to every operation.
package layout

import (
	"fmt"
	"path/filepath"
)

// BatchReadme is written to the README file of every batch.
const BatchReadme = `
This directory is a batch made by A Mechanical Turk Interface.

The files in this directory represent the definition for and potentially
the results of a batch of HITs on Amazon Mechanical Turk.

Every non-blank line of data.jsonl became one HIT. Blank lines are
skipped: they create no HIT and are left out of the cost estimate.

See the A Mechanical Turk Interface documentation for details.
`

// Layout holds the file and directory names of batch and qualification
// type directories.
type Layout struct {
	BatchDirTemplate string // fmt template taking the batch id
	Readme           string
	Commit           string
	BatchID          string
	DefinitionDir    string
	Notes            string
	QuestionTemplate string
	HITTypeProps     string
	HITProps         string
	Data             string
	Incomplete       string
	Marked           string
	ResultsDir       string
	HITDirTemplate   string // fmt template taking the HIT id
	HITFile          string
	AssignmentsFile  string

	XMLDirTemplate  string // fmt template taking the batch id
	XMLFileTemplate string // fmt template taking the assignment id

	QualTypeDirTemplate  string // fmt template taking the qualification type id
	QualTypeProps        string
	QualTypeTest         string
	QualTypeAnswerKey    string
	QualTypeFileTemplate string // fmt template taking the qualification type id
}

// Default returns the layout used by every released version of amti.
func Default() Layout {
	return Layout{
		BatchDirTemplate: "batch-%s",
		Readme:           "README",
		Commit:           "COMMIT",
		BatchID:          "BATCHID",
		DefinitionDir:    "definition",
		Notes:            "NOTES",
		QuestionTemplate: "question.xml.j2",
		HITTypeProps:     "hittypeproperties.json",
		HITProps:         "hitproperties.json",
		Data:             "data.jsonl",
		Incomplete:       "_INCOMPLETE",
		Marked:           "marked_assignments.json",
		ResultsDir:       "results",
		HITDirTemplate:   "hit-%s",
		HITFile:          "hit.jsonl",
		AssignmentsFile:  "assignments.jsonl",

		XMLDirTemplate:  "batch-%s-xml",
		XMLFileTemplate: "assignment-%s.xml",

		QualTypeDirTemplate:  "qualification-type-%s",
		QualTypeProps:        "qualificationtypeproperties.json",
		QualTypeTest:         "test.xml",
		QualTypeAnswerKey:    "answerkey.xml",
		QualTypeFileTemplate: "qualificationtype-%s.jsonl",
	}
}

// DefinitionFiles lists the files every definition directory must contain.
func (l Layout) DefinitionFiles() []string {
	return []string{l.Notes, l.QuestionTemplate, l.HITTypeProps, l.HITProps}
}

// BatchDirName returns the directory name for a batch id.
func (l Layout) BatchDirName(batchID string) string {
	return fmt.Sprintf(l.BatchDirTemplate, batchID)
}

// HITDirName returns the results sub-directory name for a HIT id.
func (l Layout) HITDirName(hitID string) string {
	return fmt.Sprintf(l.HITDirTemplate, hitID)
}

// XMLDirName returns the xml extraction directory name for a batch id.
func (l Layout) XMLDirName(batchID string) string {
	return fmt.Sprintf(l.XMLDirTemplate, batchID)
}

// XMLFileName returns the xml extraction file name for an assignment id.
func (l Layout) XMLFileName(assignmentID string) string {
	return fmt.Sprintf(l.XMLFileTemplate, assignmentID)
}

// QualTypeDirName returns the directory name for a qualification type id.
func (l Layout) QualTypeDirName(id string) string {
	return fmt.Sprintf(l.QualTypeDirTemplate, id)
}

// QualTypeFileName returns the response file name for a qualification type id.
func (l Layout) QualTypeFileName(id string) string {
	return fmt.Sprintf(l.QualTypeFileTemplate, id)
}

// Batch binds the layout to a batch directory on disk.
func (l Layout) Batch(dir string) BatchPaths {
	return BatchPaths{Dir: dir, l: l}
}

// BatchPaths resolves layout names against one batch directory.
type BatchPaths struct {
	Dir string
	l   Layout
}

func (p BatchPaths) Readme() string     { return filepath.Join(p.Dir, p.l.Readme) }
func (p BatchPaths) Commit() string     { return filepath.Join(p.Dir, p.l.Commit) }
func (p BatchPaths) BatchID() string    { return filepath.Join(p.Dir, p.l.BatchID) }
func (p BatchPaths) Definition() string { return filepath.Join(p.Dir, p.l.DefinitionDir) }
func (p BatchPaths) Data() string       { return filepath.Join(p.Dir, p.l.Data) }
func (p BatchPaths) Incomplete() string { return filepath.Join(p.Dir, p.l.Incomplete) }
func (p BatchPaths) Marked() string     { return filepath.Join(p.Dir, p.l.Marked) }
func (p BatchPaths) Results() string    { return filepath.Join(p.Dir, p.l.ResultsDir) }

func (p BatchPaths) Notes() string {
	return filepath.Join(p.Definition(), p.l.Notes)
}

func (p BatchPaths) QuestionTemplate() string {
	return filepath.Join(p.Definition(), p.l.QuestionTemplate)
}

func (p BatchPaths) HITTypeProps() string {
	return filepath.Join(p.Definition(), p.l.HITTypeProps)
}

func (p BatchPaths) HITProps() string {
	return filepath.Join(p.Definition(), p.l.HITProps)
}

// HITDir returns results/hit-<id> for the batch.
func (p BatchPaths) HITDir(hitID string) string {
	return filepath.Join(p.Results(), p.l.HITDirName(hitID))
}

// HITFile returns results/hit-<id>/hit.jsonl for the batch.
func (p BatchPaths) HITFile(hitID string) string {
	return filepath.Join(p.HITDir(hitID), p.l.HITFile)
}

// AssignmentsFile returns results/hit-<id>/assignments.jsonl for the batch.
func (p BatchPaths) AssignmentsFile(hitID string) string {
	return filepath.Join(p.HITDir(hitID), p.l.AssignmentsFile)
}

// Definition binds the layout to a definition directory that has not been
// copied into a batch yet.
func (l Layout) Definition(dir string) DefinitionPaths {
	return DefinitionPaths{Dir: dir, l: l}
}

// DefinitionPaths resolves layout names against a definition directory.
type DefinitionPaths struct {
	Dir string
	l   Layout
}

func (p DefinitionPaths) QuestionTemplate() string {
	return filepath.Join(p.Dir, p.l.QuestionTemplate)
}

func (p DefinitionPaths) HITTypeProps() string {
	return filepath.Join(p.Dir, p.l.HITTypeProps)
}

func (p DefinitionPaths) HITProps() string {
	return filepath.Join(p.Dir, p.l.HITProps)
}

func (p DefinitionPaths) QualTypeProps() string {
	return filepath.Join(p.Dir, p.l.QualTypeProps)
}

func (p DefinitionPaths) QualTypeTest() string {
	return filepath.Join(p.Dir, p.l.QualTypeTest)
}

func (p DefinitionPaths) QualTypeAnswerKey() string {
	return filepath.Join(p.Dir, p.l.QualTypeAnswerKey)
}
