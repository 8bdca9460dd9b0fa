package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/layout"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/validation"
)

// NoCommit is written to COMMIT when no revision is available.
const NoCommit = "<none>"

// Directory identifies a batch directory on disk.
type Directory struct {
	Path string `json:"path"`
	ID   string `json:"batch_id"`
}

// definition holds the parsed property documents of a definition directory.
type definition struct {
	hitType mturk.HITTypeProperties
	hit     mturk.HITProperties
}

// loadDefinition validates and parses both property documents. Problems in
// either document are reported together.
func loadDefinition(paths layout.DefinitionPaths) (definition, error) {
	var def definition

	hitTypeData, hitTypeErr := validation.ValidateFile(validation.HITTypeProperties, paths.HITTypeProps())
	hitData, hitErr := validation.ValidateFile(validation.HITProperties, paths.HITProps())
	if err := errors.Join(hitTypeErr, hitErr); err != nil {
		return def, err
	}

	if err := json.Unmarshal(hitTypeData, &def.hitType); err != nil {
		return def, fmt.Errorf("parse %s: %w", paths.HITTypeProps(), err)
	}
	if err := json.Unmarshal(hitData, &def.hit); err != nil {
		return def, fmt.Errorf("parse %s: %w", paths.HITProps(), err)
	}
	return def, nil
}

// Initialize writes a new batch directory under saveDir from a definition
// directory and a data file. Nothing is written unless both property
// documents and every data line validate. The directory is assembled in a
// staging directory and published with a single rename, so an existing
// directory is never overwritten.
func (m *Manager) Initialize(ctx context.Context, definitionDir, dataPath, saveDir string) (Directory, error) {
	defPaths := m.layout.Definition(definitionDir)
	if _, err := loadDefinition(defPaths); err != nil {
		return Directory{}, err
	}
	for _, name := range m.layout.DefinitionFiles() {
		if _, err := os.Stat(filepath.Join(definitionDir, name)); err != nil {
			return Directory{}, fmt.Errorf("definition directory: %w", err)
		}
	}

	records, err := validation.ValidateJSONLinesFile(dataPath)
	if err != nil {
		return Directory{}, err
	}

	info, err := os.Stat(saveDir)
	if err != nil {
		return Directory{}, fmt.Errorf("save directory: %w", err)
	}
	if !info.IsDir() {
		return Directory{}, fmt.Errorf("save directory: %s is not a directory", saveDir)
	}

	batchID := m.ids.Generate()
	target := filepath.Join(saveDir, m.layout.BatchDirName(batchID))

	staging, err := fsutil.Stage(saveDir, ".amti-batch-*")
	if err != nil {
		return Directory{}, err
	}
	defer fsutil.Discard(staging)

	commit := m.commit(ctx)
	if commit == "" {
		commit = NoCommit
	}

	sp := m.layout.Batch(staging)
	files := []struct {
		path    string
		content string
	}{
		{sp.Readme(), layout.BatchReadme},
		{sp.Commit(), commit},
		{sp.BatchID(), batchID},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return Directory{}, fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}

	if err := os.Mkdir(sp.Definition(), 0o755); err != nil {
		return Directory{}, fmt.Errorf("create definition directory: %w", err)
	}
	for _, name := range m.layout.DefinitionFiles() {
		if err := fsutil.CopyFile(filepath.Join(definitionDir, name), filepath.Join(sp.Definition(), name)); err != nil {
			return Directory{}, fmt.Errorf("copy definition: %w", err)
		}
	}
	if err := fsutil.CopyFile(dataPath, sp.Data()); err != nil {
		return Directory{}, fmt.Errorf("copy data: %w", err)
	}

	if err := fsutil.Publish(staging, target); err != nil {
		return Directory{}, err
	}

	m.logger.Info("batch directory written", "batch_id", batchID, "path", target, "records", records)
	m.record(ctx, batchID, ledger.KindInitialized, map[string]any{
		"path":    target,
		"records": records,
		"commit":  commit,
	})

	return Directory{Path: target, ID: batchID}, nil
}

// Estimate is the projected cost of a batch.
type Estimate struct {
	Reward         float64 `json:"reward"`
	MaxAssignments int32   `json:"max_assignments"`
	HITs           int     `json:"hits"`
	OverheadFactor float64 `json:"overhead_factor"`
	Cost           float64 `json:"cost"`
}

// EstimateCost computes reward x MaxAssignments x non-blank data lines x
// overhead factor, in USD. It works on a definition directory either before
// or after a batch is created from it.
func (m *Manager) EstimateCost(definitionDir, dataPath string) (Estimate, error) {
	def, err := loadDefinition(m.layout.Definition(definitionDir))
	if err != nil {
		return Estimate{}, err
	}
	reward, err := strconv.ParseFloat(def.hitType.Reward, 64)
	if err != nil {
		return Estimate{}, fmt.Errorf("parse Reward %q: %w", def.hitType.Reward, err)
	}

	hits, err := validation.ValidateJSONLinesFile(dataPath)
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		Reward:         reward,
		MaxAssignments: def.hit.MaxAssignments,
		HITs:           hits,
		OverheadFactor: m.overheadFactor,
		Cost:           reward * float64(def.hit.MaxAssignments) * float64(hits) * m.overheadFactor,
	}, nil
}
