package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/amti/internal/answers"
	"github.com/roach88/amti/internal/fsutil"
)

// XMLReport summarizes an XML extraction.
type XMLReport struct {
	BatchID     string `json:"batch_id"`
	Path        string `json:"path"`
	HITs        int    `json:"hits"`
	Assignments int    `json:"assignments"`
}

// XML writes each assignment's answer document, pretty-printed, to
// batch-<id>-xml/hit-<id>/assignment-<id>.xml under outputDir. Nothing is
// left behind unless every file was written.
func (e *Extractor) XML(batchDir, outputDir string) (XMLReport, error) {
	batchID, err := e.readBatchID(batchDir)
	if err != nil {
		return XMLReport{}, err
	}
	target := filepath.Join(outputDir, e.layout.XMLDirName(batchID))
	if ok, err := fsutil.Exists(target); err != nil {
		return XMLReport{}, err
	} else if ok {
		return XMLReport{}, fmt.Errorf("%s already exists", target)
	}
	e.logger.Info("extracting batch to xml", "batch_id", batchID)

	staging, err := fsutil.Stage(outputDir, ".amti-xml-*")
	if err != nil {
		return XMLReport{}, err
	}
	defer fsutil.Discard(staging)

	report := XMLReport{BatchID: batchID, Path: target}
	err = e.eachHIT(batchDir, func(hitDir string, _ map[string]any, assignments []map[string]any) error {
		outDir := filepath.Join(staging, filepath.Base(hitDir))
		if err := os.Mkdir(outDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", outDir, err)
		}
		for _, a := range assignments {
			id, _ := a["AssignmentId"].(string)
			if id == "" {
				return fmt.Errorf("assignment without AssignmentId in %s", hitDir)
			}
			xml, _ := a["Answer"].(string)
			pretty, err := answers.Pretty(xml)
			if err != nil {
				return fmt.Errorf("assignment %s: %w", id, err)
			}
			path := filepath.Join(outDir, e.layout.XMLFileName(id))
			if err := os.WriteFile(path, []byte(pretty), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			report.Assignments++
		}
		report.HITs++
		return nil
	})
	if err != nil {
		return XMLReport{}, err
	}

	if err := fsutil.Publish(staging, target); err != nil {
		return XMLReport{}, err
	}
	e.logger.Info("extracted batch to xml", "batch_id", batchID, "assignments", report.Assignments)
	return report, nil
}
