package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
)

// StatusReport summarizes the remote state of an open batch.
type StatusReport struct {
	BatchID         string         `json:"batch_id"`
	HITCount        int            `json:"hit_count"`
	HITStatusCounts map[string]int `json:"hit_status_counts"`
}

// Status fetches every HIT of an open batch and counts them by status.
func (m *Manager) Status(ctx context.Context, batchDir string) (StatusReport, error) {
	if err := m.requireClient(); err != nil {
		return StatusReport{}, err
	}
	batchID, marker, err := m.open(batchDir)
	if err != nil {
		return StatusReport{}, err
	}

	m.logger.Info("retrieving batch status", "batch_id", batchID)
	report := StatusReport{BatchID: batchID, HITStatusCounts: map[string]int{}}
	for _, id := range marker.HITIDs {
		hit, err := m.client.GetHIT(ctx, id)
		if err != nil {
			return StatusReport{}, fmt.Errorf("get HIT %s: %w", id, err)
		}
		report.HITCount++
		report.HITStatusCounts[hit.HITStatus]++
	}
	m.logger.Info("retrieving batch status complete", "batch_id", batchID)
	return report, nil
}

// Expire sets the expiration of every HIT in an open batch to now, so no
// further workers can accept them.
func (m *Manager) Expire(ctx context.Context, batchDir string) ([]string, error) {
	if err := m.requireClient(); err != nil {
		return nil, err
	}
	batchID, marker, err := m.open(batchDir)
	if err != nil {
		return nil, err
	}

	m.logger.Info("expiring HITs", "batch_id", batchID)
	now := m.now()
	for _, id := range marker.HITIDs {
		m.logger.Debug("expiring HIT", "hit_id", id)
		if err := m.client.UpdateExpiration(ctx, id, now); err != nil {
			return nil, fmt.Errorf("expire HIT %s: %w", id, err)
		}
	}
	m.record(ctx, batchID, ledger.KindExpired, map[string]any{"hit_ids": marker.HITIDs})
	m.logger.Info("all HITs in batch are now expired", "batch_id", batchID)
	return marker.HITIDs, nil
}

// Delete removes every HIT of a batch from Mechanical Turk, one call per
// HIT. Ids come from _INCOMPLETE in stored order; for a saved batch they
// come from results/. Local files are left in place.
func (m *Manager) Delete(ctx context.Context, batchDir string) ([]string, error) {
	if err := m.requireClient(); err != nil {
		return nil, err
	}
	batchID, err := m.ReadBatchID(batchDir)
	if err != nil {
		return nil, err
	}

	ids, err := m.hitIDs(batchDir)
	if err != nil {
		return nil, err
	}

	m.logger.Info("deleting batch", "batch_id", batchID, "hits", len(ids))
	for _, id := range ids {
		m.logger.Debug("deleting HIT", "hit_id", id)
		if err := m.client.DeleteHIT(ctx, id); err != nil {
			return nil, fmt.Errorf("delete HIT %s: %w", id, err)
		}
	}
	m.record(ctx, batchID, ledger.KindDeleted, map[string]any{"hit_ids": ids})
	m.logger.Info("batch deleted", "batch_id", batchID)
	return ids, nil
}

// hitIDs lists a batch's HIT ids from the marker, or from saved results
// when the marker is gone.
func (m *Manager) hitIDs(batchDir string) ([]string, error) {
	marker, err := m.ReadMarker(batchDir)
	if err == nil {
		return marker.HITIDs, nil
	}
	if !errors.Is(err, ErrNoIncompleteMarker) {
		return nil, err
	}

	ids, resultsErr := m.SavedHITIDs(batchDir)
	if errors.Is(resultsErr, os.ErrNotExist) {
		return nil, err
	}
	return ids, resultsErr
}

// SavedHITIDs reads the HIT ids from results/hit-*/hit.jsonl, sorted by
// directory name.
func (m *Manager) SavedHITIDs(batchDir string) ([]string, error) {
	bp := m.layout.Batch(batchDir)
	entries, err := os.ReadDir(bp.Results())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), strings.TrimSuffix(m.layout.HITDirTemplate, "%s")) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(bp.Results(), name, m.layout.HITFile)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var rec mturk.HITRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		ids = append(ids, rec.HIT.HITId)
	}
	return ids, nil
}
