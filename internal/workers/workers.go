// Package workers manages worker blocks, notifications and qualification
// grants. Every per-worker loop walks the ids one chunk at a time and logs
// one progress line per chunk.
package workers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/amti/internal/mturk"
)

// DefaultChunkSize is the largest id list NotifyWorkers accepts, and the
// unit of progress for every other worker loop.
const DefaultChunkSize = 100

// Default reasons, matching what requesters have historically used.
const (
	DefaultBlockReason   = "Worker has produced low quality work, or is suspected of producing spam."
	DefaultUnblockReason = "Worker was blocked by mistake."
)

// HeaderCell marks a first CSV row as a header.
const HeaderCell = "WorkerId"

// ErrQualificationNotFound is returned when a name lookup finds nothing.
var ErrQualificationNotFound = errors.New("qualification type not found")

// ErrNoWorkers is returned when a command is given no worker ids.
var ErrNoWorkers = errors.New("no worker ids given")

// ReadWorkerIDs reads every cell of a CSV file as a worker id. A first row
// containing a WorkerId cell is a header and is skipped. Empty cells are
// ignored.
func ReadWorkerIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open worker file: %w", err)
	}
	defer f.Close()
	return ParseWorkerIDs(f)
}

// ParseWorkerIDs is ReadWorkerIDs over a reader.
func ParseWorkerIDs(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var ids []string
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read worker ids: %w", err)
		}
		if row == 0 && isHeader(record) {
			continue
		}
		for _, cell := range record {
			if id := strings.TrimSpace(cell); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func isHeader(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) == HeaderCell {
			return true
		}
	}
	return false
}

// Chunk splits ids into consecutive slices of at most size elements. Sizes
// outside 1..DefaultChunkSize mean DefaultChunkSize.
func Chunk(ids []string, size int) [][]string {
	if size < 1 || size > DefaultChunkSize {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Message is a worker notification. Message files use the same field names.
type Message struct {
	Subject     string `json:"Subject"`
	MessageText string `json:"MessageText"`
}

// ReadMessage loads a message file.
func ReadMessage(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, fmt.Errorf("read message file: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse message file %s: %w", path, err)
	}
	return msg, nil
}

// Validate checks that both parts of the message are present.
func (m Message) Validate() error {
	if m.Subject == "" || m.MessageText == "" {
		return errors.New("missing Message or Subject value")
	}
	return nil
}

// Manager runs worker operations against one client.
type Manager struct {
	client    mturk.Client
	logger    *slog.Logger
	chunkSize int
}

// New returns a Manager. A chunkSize outside 1..DefaultChunkSize means
// DefaultChunkSize.
func New(client mturk.Client, logger *slog.Logger, chunkSize int) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if chunkSize < 1 || chunkSize > DefaultChunkSize {
		chunkSize = DefaultChunkSize
	}
	return &Manager{client: client, logger: logger, chunkSize: chunkSize}
}

// eachChunk calls fn for every chunk of ids, logging progress.
func (m *Manager) eachChunk(action string, ids []string, fn func(chunk []string) error) error {
	if len(ids) == 0 {
		return ErrNoWorkers
	}
	chunks := Chunk(ids, m.chunkSize)
	for i, chunk := range chunks {
		m.logger.Info(action, "chunk", i+1, "of", len(chunks), "workers", len(chunk))
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Block blocks every worker.
func (m *Manager) Block(ctx context.Context, ids []string, reason string) error {
	if reason == "" {
		reason = DefaultBlockReason
	}
	return m.eachChunk("blocking workers", ids, func(chunk []string) error {
		for _, id := range chunk {
			m.logger.Debug("blocking worker", "worker_id", id)
			if err := m.client.CreateWorkerBlock(ctx, id, reason); err != nil {
				return fmt.Errorf("block worker %s: %w", id, err)
			}
		}
		return nil
	})
}

// Unblock lifts the block on every worker.
func (m *Manager) Unblock(ctx context.Context, ids []string, reason string) error {
	if reason == "" {
		reason = DefaultUnblockReason
	}
	return m.eachChunk("unblocking workers", ids, func(chunk []string) error {
		for _, id := range chunk {
			m.logger.Debug("unblocking worker", "worker_id", id)
			if err := m.client.DeleteWorkerBlock(ctx, id, reason); err != nil {
				return fmt.Errorf("unblock worker %s: %w", id, err)
			}
		}
		return nil
	})
}

// Blocked lists every blocked worker.
func (m *Manager) Blocked(ctx context.Context) ([]mturk.WorkerBlock, error) {
	blocks, err := m.client.ListWorkerBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list worker blocks: %w", err)
	}
	return blocks, nil
}

// Notify sends msg to every worker, one call per chunk. Workers the
// message could not reach are logged and returned.
func (m *Manager) Notify(ctx context.Context, ids []string, msg Message) ([]mturk.NotifyFailure, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	var failures []mturk.NotifyFailure
	err := m.eachChunk("sending notification", ids, func(chunk []string) error {
		fs, err := m.client.NotifyWorkers(ctx, msg.Subject, msg.MessageText, chunk)
		if err != nil {
			return fmt.Errorf("notify workers: %w", err)
		}
		for _, f := range fs {
			m.logger.Warn("notification failed", "worker_id", f.WorkerId, "code", f.Code, "message", f.Message)
		}
		failures = append(failures, fs...)
		return nil
	})
	return failures, err
}

// ResolveQualification returns qual itself, or the id of the qualification
// type named qual when byName is set.
func (m *Manager) ResolveQualification(ctx context.Context, qual string, byName bool) (string, error) {
	if qual == "" {
		return "", errors.New("no qualification given")
	}
	if !byName {
		return qual, nil
	}
	id, ok, err := m.client.FindQualificationType(ctx, qual)
	if err != nil {
		return "", fmt.Errorf("find qualification type %q: %w", qual, err)
	}
	if !ok {
		return "", fmt.Errorf("no qualification type named %q: %w", qual, ErrQualificationNotFound)
	}
	return id, nil
}

// AssociateOptions controls Associate.
type AssociateOptions struct {
	Qualification string
	ByName        bool
	Value         *int32
	Notify        bool
}

// Associate grants a qualification to every worker and returns the
// qualification type id used.
func (m *Manager) Associate(ctx context.Context, ids []string, opts AssociateOptions) (string, error) {
	qualID, err := m.ResolveQualification(ctx, opts.Qualification, opts.ByName)
	if err != nil {
		return "", err
	}
	err = m.eachChunk("associating qualification", ids, func(chunk []string) error {
		for _, id := range chunk {
			m.logger.Debug("associating qualification", "qualification_type_id", qualID, "worker_id", id)
			err := m.client.AssociateQualification(ctx, mturk.AssociateInput{
				QualificationTypeID: qualID,
				WorkerID:            id,
				IntegerValue:        opts.Value,
				SendNotification:    opts.Notify,
			})
			if err != nil {
				return fmt.Errorf("associate qualification with worker %s: %w", id, err)
			}
		}
		return nil
	})
	return qualID, err
}

// Disassociate revokes a qualification from every worker. The reason, if
// any, is shown to the worker.
func (m *Manager) Disassociate(ctx context.Context, ids []string, qual string, byName bool, reason string) (string, error) {
	qualID, err := m.ResolveQualification(ctx, qual, byName)
	if err != nil {
		return "", err
	}
	err = m.eachChunk("disassociating qualification", ids, func(chunk []string) error {
		for _, id := range chunk {
			m.logger.Debug("disassociating qualification", "qualification_type_id", qualID, "worker_id", id)
			if err := m.client.DisassociateQualification(ctx, qualID, id, reason); err != nil {
				return fmt.Errorf("disassociate qualification from worker %s: %w", id, err)
			}
		}
		return nil
	})
	return qualID, err
}

// Associated lists workers holding a qualification, optionally filtered by
// Granted or Revoked status.
func (m *Manager) Associated(ctx context.Context, qual string, byName bool, status string) ([]mturk.Qualification, error) {
	switch status {
	case "", mturk.QualificationGranted, mturk.QualificationRevoked:
	default:
		return nil, fmt.Errorf("status must be %s or %s, got %q", mturk.QualificationGranted, mturk.QualificationRevoked, status)
	}
	qualID, err := m.ResolveQualification(ctx, qual, byName)
	if err != nil {
		return nil, err
	}
	quals, err := m.client.ListWorkersWithQualification(ctx, qualID, status)
	if err != nil {
		return nil, fmt.Errorf("list workers with qualification %s: %w", qualID, err)
	}
	return quals, nil
}
