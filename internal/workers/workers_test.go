package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/amti/internal/mturk"
	"github.com/roach88/amti/internal/mturk/mturktest"
	"github.com/roach88/amti/internal/testutil"
)

func TestParseWorkerIDs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"header row skipped", "WorkerId\nW1\nW2\n", []string{"W1", "W2"}},
		{"header among other columns", "Name,WorkerId\nann,W1\n", []string{"ann", "W1"}},
		{"no header", "W1\nW2\n", []string{"W1", "W2"}},
		{"every cell counts", "W1,W2\nW3\n", []string{"W1", "W2", "W3"}},
		{"blank cells ignored", "W1,,W2\n\n", []string{"W1", "W2"}},
		{"header only checked on first row", "W1\nWorkerId\n", []string{"W1", "WorkerId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWorkerIDs(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadWorkerIDs(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "workers.csv", "WorkerId\nW1\n")
	got, err := ReadWorkerIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"W1"}, got)

	_, err = ReadWorkerIDs(path + ".missing")
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("W%d", i)
	}
	chunks := Chunk(ids, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, "W200", chunks[2][0])

	assert.Empty(t, Chunk(nil, 100))
	assert.Len(t, Chunk(ids, 0), 3, "non-positive size falls back to the default")
	assert.Len(t, Chunk(ids, 500), 3, "oversized chunks are capped at the default")
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("W%03d", i)
	}
	return out
}

func TestBlockAndUnblock(t *testing.T) {
	fake := mturktest.New()
	var logs bytes.Buffer
	m := New(fake, slog.New(slog.NewTextHandler(&logs, nil)), 2)
	ctx := context.Background()

	require.NoError(t, m.Block(ctx, ids(3), ""))
	calls := fake.CallsTo("CreateWorkerBlock")
	require.Len(t, calls, 3)
	assert.Equal(t, DefaultBlockReason, calls[0].Detail)
	assert.Equal(t, 2, strings.Count(logs.String(), "blocking workers"), "one progress line per chunk")

	blocked, err := m.Blocked(ctx)
	require.NoError(t, err)
	assert.Len(t, blocked, 3)

	require.NoError(t, m.Unblock(ctx, []string{"W000"}, "sorry"))
	assert.Equal(t, "sorry", fake.CallsTo("DeleteWorkerBlock")[0].Detail)

	blocked, err = m.Blocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []mturk.WorkerBlock{
		{WorkerId: "W001", Reason: DefaultBlockReason},
		{WorkerId: "W002", Reason: DefaultBlockReason},
	}, blocked)
}

func TestBlockRequiresWorkers(t *testing.T) {
	m := New(mturktest.New(), nil, 0)
	assert.ErrorIs(t, m.Block(context.Background(), nil, ""), ErrNoWorkers)
}

func TestBlockStopsOnError(t *testing.T) {
	fake := mturktest.New()
	fake.Errors["CreateWorkerBlock"] = errors.New("throttled")
	m := New(fake, nil, 0)
	err := m.Block(context.Background(), ids(3), "")
	require.Error(t, err)
	assert.Len(t, fake.CallsTo("CreateWorkerBlock"), 1)
}

func TestNotifyChunksAndReportsFailures(t *testing.T) {
	fake := mturktest.New()
	fake.NotifyFailures["W150"] = true
	m := New(fake, nil, DefaultChunkSize)

	failures, err := m.Notify(context.Background(), ids(250), Message{Subject: "Hi", MessageText: "Thanks"})
	require.NoError(t, err)

	require.Len(t, fake.Notified, 3)
	assert.Len(t, fake.Notified[0], 100)
	assert.Len(t, fake.Notified[2], 50)
	require.Len(t, failures, 1)
	assert.Equal(t, "W150", failures[0].WorkerId)
}

func TestNotifyCapsOversizedChunks(t *testing.T) {
	fake := mturktest.New()
	m := New(fake, nil, 250)

	_, err := m.Notify(context.Background(), ids(250), Message{Subject: "Hi", MessageText: "Thanks"})
	require.NoError(t, err)

	require.Len(t, fake.Notified, 3)
	for _, chunk := range fake.Notified {
		assert.LessOrEqual(t, len(chunk), DefaultChunkSize)
	}
}

func TestNotifyRequiresMessage(t *testing.T) {
	fake := mturktest.New()
	m := New(fake, nil, 0)
	_, err := m.Notify(context.Background(), ids(1), Message{Subject: "only subject"})
	require.Error(t, err)
	assert.Empty(t, fake.Calls)
}

func TestReadMessage(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "msg.json", `{"Subject": "S", "MessageText": "T"}`)
	msg, err := ReadMessage(path)
	require.NoError(t, err)
	assert.Equal(t, Message{Subject: "S", MessageText: "T"}, msg)

	bad := testutil.WriteFile(t, t.TempDir(), "msg.json", `{"Subject": `)
	_, err = ReadMessage(bad)
	assert.Error(t, err)
}

func TestAssociateByName(t *testing.T) {
	fake := mturktest.New()
	fake.QualTypes["Q9"] = mturk.QualificationType{QualificationTypeId: "Q9", Name: "Trusted"}
	m := New(fake, nil, 0)
	value := int32(5)

	qualID, err := m.Associate(context.Background(), []string{"W1", "W2"}, AssociateOptions{
		Qualification: "Trusted",
		ByName:        true,
		Value:         &value,
		Notify:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Q9", qualID)
	assert.Equal(t, []string{"W1", "W2"}, fake.IDsFor("AssociateQualification"))
	assert.Equal(t, int32(5), *fake.Quals["Q9"]["W1"].IntegerValue)

	granted, err := m.Associated(context.Background(), "Q9", false, mturk.QualificationGranted)
	require.NoError(t, err)
	assert.Len(t, granted, 2)
}

func TestAssociateUnknownName(t *testing.T) {
	m := New(mturktest.New(), nil, 0)
	_, err := m.Associate(context.Background(), []string{"W1"}, AssociateOptions{Qualification: "nope", ByName: true})
	assert.ErrorIs(t, err, ErrQualificationNotFound)
}

func TestDisassociate(t *testing.T) {
	fake := mturktest.New()
	m := New(fake, nil, 0)
	ctx := context.Background()

	_, err := m.Associate(ctx, []string{"W1", "W2"}, AssociateOptions{Qualification: "Q1"})
	require.NoError(t, err)
	_, err = m.Disassociate(ctx, []string{"W1"}, "Q1", false, "expired")
	require.NoError(t, err)
	assert.Equal(t, "Q1", fake.CallsTo("DisassociateQualification")[0].Detail)

	revoked, err := m.Associated(ctx, "Q1", false, mturk.QualificationRevoked)
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, "W1", revoked[0].WorkerId)

	all, err := m.Associated(ctx, "Q1", false, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAssociatedRejectsUnknownStatus(t *testing.T) {
	m := New(mturktest.New(), nil, 0)
	_, err := m.Associated(context.Background(), "Q1", false, "Pending")
	assert.Error(t, err)
}
