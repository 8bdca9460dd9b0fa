// Package qualtype creates qualification types from a definition directory
// and records each one in its own qualification-type-<id> directory.
package qualtype

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/layout"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/validation"
)

// Directory describes a written qualification type directory.
type Directory struct {
	Path              string                  `json:"path"`
	QualificationType mturk.QualificationType `json:"qualification_type"`
}

// Creator creates qualification types.
type Creator struct {
	layout layout.Layout
	client mturk.Client
	ledger ledger.Recorder
	logger *slog.Logger
}

// NewCreator returns a Creator. A nil recorder or logger disables that
// concern.
func NewCreator(l layout.Layout, client mturk.Client, rec ledger.Recorder, logger *slog.Logger) *Creator {
	if rec == nil {
		rec = ledger.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Creator{layout: l, client: client, ledger: rec, logger: logger}
}

// Create validates the properties in definitionDir, attaches the optional
// test and answer key, creates the qualification type, and writes
// qualification-type-<id>/ under saveDir.
func (c *Creator) Create(ctx context.Context, definitionDir, saveDir string) (Directory, error) {
	dp := c.layout.Definition(definitionDir)

	data, err := validation.ValidateFile(validation.QualificationTypeProperties, dp.QualTypeProps())
	if err != nil {
		return Directory{}, err
	}
	var props mturk.QualificationTypeProperties
	if err := json.Unmarshal(data, &props); err != nil {
		return Directory{}, fmt.Errorf("parse %s: %w", dp.QualTypeProps(), err)
	}

	copies := []string{c.layout.QualTypeProps}
	optional := []struct {
		name string
		dst  *string
	}{
		{c.layout.QualTypeTest, &props.Test},
		{c.layout.QualTypeAnswerKey, &props.AnswerKey},
	}
	for _, o := range optional {
		path := filepath.Join(definitionDir, o.name)
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Directory{}, fmt.Errorf("read %s: %w", path, err)
		}
		*o.dst = string(content)
		copies = append(copies, o.name)
	}

	staging, err := fsutil.Stage(saveDir, ".amti-qualtype-*")
	if err != nil {
		return Directory{}, err
	}
	defer fsutil.Discard(staging)

	stagedDef := filepath.Join(staging, c.layout.DefinitionDir)
	if err := os.Mkdir(stagedDef, 0o755); err != nil {
		return Directory{}, fmt.Errorf("create definition directory: %w", err)
	}
	for _, name := range copies {
		if err := fsutil.CopyFile(filepath.Join(definitionDir, name), filepath.Join(stagedDef, name)); err != nil {
			return Directory{}, fmt.Errorf("copy definition: %w", err)
		}
	}

	c.logger.Info("creating qualification type", "name", props.Name)
	qt, err := c.client.CreateQualificationType(ctx, props)
	if err != nil {
		return Directory{}, fmt.Errorf("create qualification type: %w", err)
	}
	if err := c.ledger.Record(ctx, qt.QualificationTypeId, ledger.KindQualTypeCreated, map[string]any{"name": qt.Name}); err != nil {
		c.logger.Warn("ledger write failed", "qualification_type_id", qt.QualificationTypeId, "error", err)
	}

	record, err := json.Marshal(mturk.QualificationTypeRecord{QualificationType: *qt})
	if err != nil {
		return Directory{}, fmt.Errorf("encode qualification type: %w", err)
	}
	recordPath := filepath.Join(staging, c.layout.QualTypeFileName(qt.QualificationTypeId))
	if err := os.WriteFile(recordPath, append(record, '\n'), 0o644); err != nil {
		return Directory{}, fmt.Errorf("write qualification type: %w", err)
	}

	target := filepath.Join(saveDir, c.layout.QualTypeDirName(qt.QualificationTypeId))
	if err := fsutil.Publish(staging, target); err != nil {
		return Directory{}, fmt.Errorf("qualification type %s was created but not saved: %w", qt.QualificationTypeId, err)
	}

	c.logger.Info("created qualification type", "qualification_type_id", qt.QualificationTypeId)
	return Directory{Path: target, QualificationType: *qt}, nil
}
