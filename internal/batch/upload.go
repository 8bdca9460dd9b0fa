package batch

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/render"
	"github.com/roach88/amti/internal/validation"
)

// Upload creates the HIT type and one HIT per data line of an initialized
// batch, then writes _INCOMPLETE. Blank data lines are skipped.
//
// Each created HIT is recorded in the ledger as soon as it exists. If a
// create call fails part way, the marker is not written and the error
// lists the HITs already created.
func (m *Manager) Upload(ctx context.Context, batchDir string) (Marker, error) {
	marker, _, err := m.upload(ctx, batchDir)
	return marker, err
}

func (m *Manager) upload(ctx context.Context, batchDir string) (Marker, string, error) {
	if err := m.requireClient(); err != nil {
		return Marker{}, "", err
	}
	bp := m.layout.Batch(batchDir)
	batchID, err := m.ReadBatchID(batchDir)
	if err != nil {
		return Marker{}, "", err
	}

	if ok, err := fsutil.Exists(bp.Incomplete()); err != nil {
		return Marker{}, "", err
	} else if ok {
		return Marker{}, "", fmt.Errorf("%s: %w", batchDir, ErrAlreadyUploaded)
	}
	if ok, err := fsutil.Exists(bp.Results()); err != nil {
		return Marker{}, "", err
	} else if ok {
		return Marker{}, "", fmt.Errorf("%s: %w", batchDir, ErrAlreadySaved)
	}

	def, err := loadDefinition(m.layout.Definition(bp.Definition()))
	if err != nil {
		return Marker{}, "", err
	}
	// Every line is rendered before anything is created remotely, so bad
	// data or a failing template leaves no orphaned HITs.
	questions, err := m.renderQuestions(bp.QuestionTemplate(), bp.Data())
	if err != nil {
		return Marker{}, "", err
	}

	m.logger.Debug("creating HIT type", "title", def.hitType.Title, "reward", def.hitType.Reward)
	hitTypeID, err := m.client.CreateHITType(ctx, def.hitType)
	if err != nil {
		return Marker{}, "", fmt.Errorf("create HIT type: %w", err)
	}
	m.logger.Debug("HIT type created", "hittype_id", hitTypeID)
	m.record(ctx, batchID, ledger.KindHITTypeCreated, map[string]any{"hittype_id": hitTypeID})

	marker := Marker{HITTypeID: hitTypeID, HITIDs: []string{}}
	groupID := ""
	annotation := "batch=" + batchID

	for _, q := range questions {
		m.logger.Debug("creating HIT", "line", q.line)
		hit, err := m.client.CreateHIT(ctx, mturk.CreateHITInput{
			HITTypeID:           hitTypeID,
			Question:            q.text,
			RequesterAnnotation: annotation,
			Properties:          def.hit,
		})
		if err != nil {
			err = fmt.Errorf("create HIT for line %d: %w", q.line, err)
			if len(marker.HITIDs) > 0 {
				return Marker{}, "", fmt.Errorf("upload stopped after creating %d HITs %v: %w", len(marker.HITIDs), marker.HITIDs, err)
			}
			return Marker{}, "", err
		}
		m.logger.Debug("HIT created", "hit_id", hit.HITId, "line", q.line)
		m.record(ctx, batchID, ledger.KindHITCreated, map[string]any{"hit_id": hit.HITId, "line": q.line})

		marker.HITIDs = append(marker.HITIDs, hit.HITId)
		if groupID == "" {
			groupID = hit.HITGroupId
		}
	}

	if err := m.writeMarker(batchDir, marker); err != nil {
		return Marker{}, "", err
	}
	m.record(ctx, batchID, ledger.KindUploaded, map[string]any{
		"hittype_id": hitTypeID,
		"hit_ids":    marker.HITIDs,
	})
	m.logger.Info("HITs created", "batch_id", batchID, "count", len(marker.HITIDs))

	return marker, groupID, nil
}

// CreateResult describes a batch that was initialized and uploaded.
type CreateResult struct {
	Directory
	Marker
	Estimate   Estimate `json:"estimate"`
	HITGroupID string   `json:"hit_group_id"`
}

// question is the rendered question of one data line.
type question struct {
	line int
	text string
}

// renderQuestions renders the template once per non-blank data line.
func (m *Manager) renderQuestions(templatePath, dataPath string) ([]question, error) {
	tpl, err := render.CompileFile(templatePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	var questions []question
	err = validation.ReadLines(f, func(n int, line []byte) error {
		if validation.IsBlank(line) {
			m.logger.Warn("data line is empty, skipping", "line", n, "path", dataPath)
			return nil
		}
		vars, err := render.DecodeLine(line)
		if err != nil {
			return &validation.LineError{Path: dataPath, Line: n, Err: err}
		}
		text, err := tpl.Execute(vars)
		if err != nil {
			return fmt.Errorf("render line %d: %w", n, err)
		}
		questions = append(questions, question{line: n, text: text})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// Create initializes a batch directory and uploads it. The cost estimate
// is informational: a Reward that does not parse as a number only skips it.
func (m *Manager) Create(ctx context.Context, definitionDir, dataPath, saveDir string) (CreateResult, error) {
	m.logger.Info("writing batch")
	dir, err := m.Initialize(ctx, definitionDir, dataPath, saveDir)
	if err != nil {
		return CreateResult{}, err
	}

	estimate, err := m.EstimateCost(definitionDir, dataPath)
	if err != nil {
		m.logger.Warn("could not estimate batch cost", "error", err)
	} else {
		m.logger.Info("estimated batch cost", "usd", fmt.Sprintf("%.2f", estimate.Cost), "hits", estimate.HITs)
	}

	m.logger.Info("uploading batch to Mechanical Turk", "batch_id", dir.ID)
	marker, groupID, err := m.upload(ctx, dir.Path)
	if err != nil {
		return CreateResult{Directory: dir, Estimate: estimate}, err
	}
	m.logger.Info("HIT creation complete", "batch_id", dir.ID)

	return CreateResult{Directory: dir, Marker: marker, Estimate: estimate, HITGroupID: groupID}, nil
}
