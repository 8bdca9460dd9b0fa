package batch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/amti/internal/answers"
	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/review"
)

// Reviewer decides what happens to one submitted assignment.
// *review.Session is the interactive implementation.
type Reviewer interface {
	Review(hitID, assignmentID, answersXML string) (review.Outcome, error)
}

// ReviewOptions controls Review.
type ReviewOptions struct {
	// ApproveAll approves every submitted assignment without asking.
	ApproveAll bool
	// Reviewer is consulted for each submitted assignment unless ApproveAll.
	Reviewer Reviewer
	// MarkFile is where marks are written: "" for marked_assignments.json
	// in the batch directory, "-" for standard output.
	MarkFile string
}

// ReviewReport summarizes a review pass.
type ReviewReport struct {
	BatchID  string        `json:"batch_id"`
	Approved int           `json:"approved"`
	Rejected int           `json:"rejected"`
	Skipped  int           `json:"skipped"`
	Marks    []review.Mark `json:"marks"`
	MarkFile string        `json:"mark_file,omitempty"`
}

// Review walks the HITs of an open batch in stored order. HITs that are not
// Reviewable are skipped; each Submitted assignment is approved outright or
// passed to the Reviewer.
func (m *Manager) Review(ctx context.Context, batchDir string, opts ReviewOptions) (ReviewReport, error) {
	if err := m.requireClient(); err != nil {
		return ReviewReport{}, err
	}
	if !opts.ApproveAll && opts.Reviewer == nil {
		return ReviewReport{}, fmt.Errorf("review: no reviewer configured")
	}
	batchID, marker, err := m.open(batchDir)
	if err != nil {
		return ReviewReport{}, err
	}

	m.logger.Info("reviewing batch", "batch_id", batchID)
	report := ReviewReport{BatchID: batchID}
	for _, id := range marker.HITIDs {
		if err := m.reviewHIT(ctx, id, opts, &report); err != nil {
			// Keep marks gathered so far.
			if werr := m.writeMarks(batchDir, opts.MarkFile, &report); werr != nil {
				m.logger.Warn("could not write marks", "error", werr)
			}
			return report, err
		}
	}

	if err := m.writeMarks(batchDir, opts.MarkFile, &report); err != nil {
		return report, err
	}

	m.record(ctx, batchID, ledger.KindReviewed, map[string]any{
		"approved": report.Approved,
		"rejected": report.Rejected,
		"skipped":  report.Skipped,
		"marked":   len(report.Marks),
	})
	m.logger.Info("review of batch is complete", "batch_id", batchID,
		"approved", report.Approved, "rejected", report.Rejected, "skipped", report.Skipped)
	return report, nil
}

func (m *Manager) reviewHIT(ctx context.Context, hitID string, opts ReviewOptions, report *ReviewReport) error {
	m.logger.Debug("fetching HIT", "hit_id", hitID)
	hit, err := m.client.GetHIT(ctx, hitID)
	if err != nil {
		return fmt.Errorf("get HIT %s: %w", hitID, err)
	}
	if hit.HITStatus != mturk.HITStatusReviewable {
		m.logger.Info("HIT is not Reviewable, skipping", "hit_id", hitID, "status", hit.HITStatus)
		return nil
	}

	assignments, err := m.client.ListAssignments(ctx, hitID)
	if err != nil {
		return fmt.Errorf("list assignments for HIT %s: %w", hitID, err)
	}
	for _, a := range assignments {
		m.logger.Info("assignment status", "assignment_id", a.AssignmentId, "status", a.AssignmentStatus)
		if a.AssignmentStatus != mturk.AssignmentSubmitted {
			continue
		}

		if opts.ApproveAll {
			if err := m.approve(ctx, a.AssignmentId); err != nil {
				return err
			}
			report.Approved++
			continue
		}

		pretty, err := answers.Pretty(a.Answer)
		if err != nil {
			m.logger.Warn("answer XML did not parse, showing it raw", "assignment_id", a.AssignmentId, "error", err)
			pretty = a.Answer
		}
		outcome, err := opts.Reviewer.Review(hitID, a.AssignmentId, pretty)
		if err != nil {
			return fmt.Errorf("review assignment %s: %w", a.AssignmentId, err)
		}
		if outcome.Mark != nil {
			report.Marks = append(report.Marks, *outcome.Mark)
		}

		switch outcome.Decision {
		case review.Accept:
			if err := m.approve(ctx, a.AssignmentId); err != nil {
				return err
			}
			report.Approved++
		case review.Reject:
			m.logger.Info("rejecting assignment", "assignment_id", a.AssignmentId)
			if err := m.client.RejectAssignment(ctx, a.AssignmentId, outcome.Feedback); err != nil {
				return fmt.Errorf("reject assignment %s: %w", a.AssignmentId, err)
			}
			report.Rejected++
		default:
			m.logger.Info("skipping assignment", "assignment_id", a.AssignmentId)
			report.Skipped++
		}
	}
	return nil
}

func (m *Manager) approve(ctx context.Context, assignmentID string) error {
	m.logger.Info("approving assignment", "assignment_id", assignmentID)
	if err := m.client.ApproveAssignment(ctx, assignmentID, false); err != nil {
		return fmt.Errorf("approve assignment %s: %w", assignmentID, err)
	}
	return nil
}

// writeMarks saves marks when there are any.
func (m *Manager) writeMarks(batchDir, markFile string, report *ReviewReport) error {
	if len(report.Marks) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := review.WriteMarks(&buf, report.Marks); err != nil {
		return err
	}
	if markFile == "-" {
		_, err := m.stdout.Write(buf.Bytes())
		report.MarkFile = "-"
		return err
	}
	path := markFile
	if path == "" {
		path = m.layout.Batch(batchDir).Marked()
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write marks: %w", err)
	}
	report.MarkFile = path
	m.logger.Info("marked assignments written", "path", path, "count", len(report.Marks))
	return nil
}
