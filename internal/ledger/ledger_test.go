package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path, WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 3; i++ {
		l, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		l.Close()
	}

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	var version int
	require.NoError(t, l.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, l.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRecordAndHistory(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "b1", KindHITTypeCreated, map[string]any{"hittype_id": "T1"}))
	require.NoError(t, l.Record(ctx, "b2", KindInitialized, nil))
	require.NoError(t, l.Record(ctx, "b1", KindHITCreated, map[string]any{"hit_id": "H1", "index": 0}))
	require.NoError(t, l.Record(ctx, "b1", KindUploaded, map[string]any{"hit_ids": []string{"H1"}}))

	events, err := l.History(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, []Kind{KindHITTypeCreated, KindHITCreated, KindUploaded},
		[]Kind{events[0].Kind, events[1].Kind, events[2].Kind})
	assert.Equal(t, `{"hit_id":"H1","index":0}`, string(events[1].Payload))
	assert.Equal(t, `{"hit_ids":["H1"]}`, string(events[2].Payload))
	assert.True(t, events[0].Seq < events[1].Seq)
	assert.True(t, fixedTime.Equal(events[0].RecordedAt))

	for _, e := range events {
		assert.NoError(t, e.Verify())
	}

	other, err := l.History(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "{}", string(other[0].Payload))
}

func TestRecordRejectsFloats(t *testing.T) {
	l := openTestLedger(t)
	err := l.Record(context.Background(), "b1", KindSaved, map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestHistoryEmpty(t *testing.T) {
	l := openTestLedger(t)
	events, err := l.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestVerifyDetectsTampering(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, "b1", KindDeleted, map[string]any{"hit_ids": []string{"H1"}}))

	_, err := l.db.Exec(`UPDATE events SET payload = '{"hit_ids":["H2"]}'`)
	require.NoError(t, err)

	events, err := l.History(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Error(t, events[0].Verify())
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	assert.NoError(t, r.Record(context.Background(), "b", KindSaved, nil))
}
