package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
)

// SaveReport summarizes a saved batch.
type SaveReport struct {
	BatchID     string `json:"batch_id"`
	HITs        int    `json:"hits"`
	Assignments int    `json:"assignments"`
}

type savedHIT struct {
	hit         *mturk.HIT
	assignments []mturk.Assignment
}

// Save downloads every HIT and assignment of an open batch into results/
// and removes _INCOMPLETE.
//
// Everything is fetched before anything is written. If any HIT is not
// Reviewable or any assignment is not Approved or Rejected, Save returns a
// *NotReadyError and the batch directory is unchanged.
func (m *Manager) Save(ctx context.Context, batchDir string) (SaveReport, error) {
	if err := m.requireClient(); err != nil {
		return SaveReport{}, err
	}
	bp := m.layout.Batch(batchDir)
	batchID, marker, err := m.open(batchDir)
	if err != nil {
		return SaveReport{}, err
	}
	if ok, err := fsutil.Exists(bp.Results()); err != nil {
		return SaveReport{}, err
	} else if ok {
		return SaveReport{}, fmt.Errorf("%s: %w", batchDir, ErrAlreadySaved)
	}

	m.logger.Info("retrieving HIT data", "batch_id", batchID)
	fetched := make([]savedHIT, 0, len(marker.HITIDs))
	report := SaveReport{BatchID: batchID}
	for _, id := range marker.HITIDs {
		m.logger.Debug("fetching HIT", "hit_id", id)
		hit, err := m.client.GetHIT(ctx, id)
		if err != nil {
			return SaveReport{}, fmt.Errorf("get HIT %s: %w", id, err)
		}
		if hit.HITStatus != mturk.HITStatusReviewable {
			return SaveReport{}, &NotReadyError{Kind: "HIT", ID: id, Status: hit.HITStatus}
		}

		m.logger.Debug("fetching assignments", "hit_id", id)
		assignments, err := m.client.ListAssignments(ctx, id)
		if err != nil {
			return SaveReport{}, fmt.Errorf("list assignments for HIT %s: %w", id, err)
		}
		for _, a := range assignments {
			if !a.Terminal() {
				return SaveReport{}, &NotReadyError{Kind: "Assignment", ID: a.AssignmentId, Status: a.AssignmentStatus}
			}
		}
		fetched = append(fetched, savedHIT{hit: hit, assignments: assignments})
		report.HITs++
		report.Assignments += len(assignments)
	}

	staging, err := fsutil.Stage(batchDir, ".amti-results-*")
	if err != nil {
		return SaveReport{}, err
	}
	defer fsutil.Discard(staging)

	for _, s := range fetched {
		if err := m.writeHIT(staging, s); err != nil {
			return SaveReport{}, err
		}
		m.logger.Info("finished saving HIT", "hit_id", s.hit.HITId)
	}

	if err := fsutil.Publish(staging, bp.Results()); err != nil {
		return SaveReport{}, err
	}
	if err := os.Remove(bp.Incomplete()); err != nil {
		return SaveReport{}, fmt.Errorf("remove marker: %w", err)
	}

	m.record(ctx, batchID, ledger.KindSaved, map[string]any{
		"hits":        report.HITs,
		"assignments": report.Assignments,
	})
	m.logger.Info("saving batch complete", "batch_id", batchID)
	return report, nil
}

// writeHIT writes hit-<id>/hit.jsonl and assignments.jsonl under resultsDir.
func (m *Manager) writeHIT(resultsDir string, s savedHIT) error {
	dir := filepath.Join(resultsDir, m.layout.HITDirName(s.hit.HITId))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("create HIT directory: %w", err)
	}

	hitLine, err := json.Marshal(mturk.HITRecord{HIT: *s.hit})
	if err != nil {
		return fmt.Errorf("encode HIT %s: %w", s.hit.HITId, err)
	}
	if err := os.WriteFile(filepath.Join(dir, m.layout.HITFile), append(hitLine, '\n'), 0o644); err != nil {
		return fmt.Errorf("write HIT %s: %w", s.hit.HITId, err)
	}

	var buf bytes.Buffer
	for _, a := range s.assignments {
		line, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode assignment %s: %w", a.AssignmentId, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, m.layout.AssignmentsFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write assignments for HIT %s: %w", s.hit.HITId, err)
	}
	return nil
}
