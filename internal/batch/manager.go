// Package batch manages batch directories on disk and drives their HITs
// through Mechanical Turk.
//
// A batch moves through three on-disk states:
//
//	initialized  definition/ and data.jsonl written, nothing uploaded
//	open         _INCOMPLETE lists the HIT type and HIT ids
//	saved        results/ holds every HIT and assignment; _INCOMPLETE removed
//
// Every operation is sequential and issues one remote call per HIT. Writes
// to the batch directory go through a staging directory or temporary file
// and a rename, so an interrupted command never leaves a half-written
// results/ or marker behind.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roach88/amti/internal/fsutil"
	"github.com/roach88/amti/internal/layout"
	"github.com/roach88/amti/internal/ledger"
	"github.com/roach88/amti/internal/mturk"
)

// Precondition errors.
var (
	ErrNoIncompleteMarker = errors.New("no _INCOMPLETE file was found; the batch has no HITs waiting for review")
	ErrAlreadyUploaded    = errors.New("batch has already been uploaded")
	ErrAlreadySaved       = errors.New("batch has already been saved")
	ErrNotReady           = errors.New("batch is not ready to be saved")
)

// NotReadyError names the HIT or assignment that blocks a save.
type NotReadyError struct {
	Kind   string // "HIT" or "Assignment"
	ID     string
	Status string
}

func (e *NotReadyError) Error() string {
	if e.Kind == "HIT" {
		return fmt.Sprintf("HIT (ID: %s) has status %q. In order to save a batch all HITs must have \"Reviewable\" status.", e.ID, e.Status)
	}
	return fmt.Sprintf("Assignment (ID: %s) has status %q. In order to save a batch all assignments must have \"Approved\" or \"Rejected\" status.", e.ID, e.Status)
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// Marker is the content of _INCOMPLETE.
type Marker struct {
	HITTypeID string   `json:"hittype_id"`
	HITIDs    []string `json:"hit_ids"`
}

// Manager runs batch operations against one Mechanical Turk client.
type Manager struct {
	layout         layout.Layout
	client         mturk.Client
	ledger         ledger.Recorder
	logger         *slog.Logger
	ids            IDGenerator
	now            func() time.Time
	commit         func(ctx context.Context) string
	overheadFactor float64
	stdout         io.Writer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLedger records lifecycle events to r.
func WithLedger(r ledger.Recorder) Option {
	return func(m *Manager) { m.ledger = r }
}

// WithLogger sets the logger for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithIDGenerator sets the batch id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCommit sets the function that reports the source-control revision
// recorded in COMMIT. An empty result is written as "<none>".
func WithCommit(fn func(ctx context.Context) string) Option {
	return func(m *Manager) { m.commit = fn }
}

// WithOverheadFactor sets the multiplier applied by EstimateCost.
func WithOverheadFactor(f float64) Option {
	return func(m *Manager) { m.overheadFactor = f }
}

// WithStdout sets where review marks go when the mark file is "-".
func WithStdout(w io.Writer) Option {
	return func(m *Manager) { m.stdout = w }
}

// DefaultOverheadFactor is Mechanical Turk's fee on top of rewards.
const DefaultOverheadFactor = 1.2

// New creates a Manager. client may be nil for operations that never reach
// Mechanical Turk (Initialize, EstimateCost).
func New(l layout.Layout, client mturk.Client, opts ...Option) *Manager {
	m := &Manager{
		layout:         l,
		client:         client,
		ledger:         ledger.Nop{},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:            UUIDGenerator{},
		now:            time.Now,
		commit:         GitCommit,
		overheadFactor: DefaultOverheadFactor,
		stdout:         os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) requireClient() error {
	if m.client == nil {
		return errors.New("no Mechanical Turk client configured")
	}
	return nil
}

// record writes a ledger event. Ledger failures are logged, never fatal:
// the remote side effect has already happened.
func (m *Manager) record(ctx context.Context, batchID string, kind ledger.Kind, payload map[string]any) {
	if err := m.ledger.Record(ctx, batchID, kind, payload); err != nil {
		m.logger.Warn("ledger write failed", "batch_id", batchID, "kind", kind, "error", err)
	}
}

// ReadBatchID returns the id stored in a batch directory's BATCHID file.
func (m *Manager) ReadBatchID(batchDir string) (string, error) {
	data, err := os.ReadFile(m.layout.Batch(batchDir).BatchID())
	if err != nil {
		return "", fmt.Errorf("read batch id: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("read batch id: %s is empty", m.layout.Batch(batchDir).BatchID())
	}
	return id, nil
}

// ReadMarker returns the content of _INCOMPLETE, or ErrNoIncompleteMarker.
func (m *Manager) ReadMarker(batchDir string) (Marker, error) {
	data, err := os.ReadFile(m.layout.Batch(batchDir).Incomplete())
	if errors.Is(err, os.ErrNotExist) {
		return Marker{}, fmt.Errorf("%s: %w", batchDir, ErrNoIncompleteMarker)
	}
	if err != nil {
		return Marker{}, fmt.Errorf("read marker: %w", err)
	}
	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return Marker{}, fmt.Errorf("parse %s: %w", m.layout.Batch(batchDir).Incomplete(), err)
	}
	return marker, nil
}

// open reads the batch id and marker an open batch must have.
func (m *Manager) open(batchDir string) (string, Marker, error) {
	batchID, err := m.ReadBatchID(batchDir)
	if err != nil {
		return "", Marker{}, err
	}
	marker, err := m.ReadMarker(batchDir)
	if err != nil {
		return "", Marker{}, err
	}
	return batchID, marker, nil
}

func (m *Manager) writeMarker(batchDir string, marker Marker) error {
	if marker.HITIDs == nil {
		marker.HITIDs = []string{}
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	if err := fsutil.WriteFileAtomic(m.layout.Batch(batchDir).Incomplete(), data, 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}
