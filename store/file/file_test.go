package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// recordingLogger captures Warn messages so tests can assert that a
// swallowed malformed record is logged, not just treated as absent.
type recordingLogger struct {
	warns []string
}

func (l *recordingLogger) Debug(context.Context, string, ...any) {}
func (l *recordingLogger) Info(context.Context, string, ...any)  {}
func (l *recordingLogger) Error(context.Context, string, ...any) {}

func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.warns = append(l.warns, msg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir(), "run-1", nil)

	found, err := s.Exists(ctx)
	require.NoError(t, err)
	require.False(t, found)

	rec := workflow.Record{
		RunID:        "run-1",
		CurrentState: workflow.StateAnalyzing,
		UpdatedAt:    time.Now().UTC().Truncate(time.Second),
		Attempt:      1,
		Context:      map[string]any{"foo": "bar"},
		History:      []workflow.State{workflow.StateIdle},
	}
	require.NoError(t, s.Save(ctx, rec))

	loaded, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.RunID, loaded.RunID)
	require.Equal(t, rec.CurrentState, loaded.CurrentState)
	require.Equal(t, rec.Attempt, loaded.Attempt)
	require.Equal(t, "bar", loaded.Context["foo"])

	found, err = s.Exists(ctx)
	require.NoError(t, err)
	require.True(t, found)
}

func TestLoadAbsentIsNotError(t *testing.T) {
	s := New(t.TempDir(), "missing", nil)
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadMalformedIsTreatedAsAbsentAndLogged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-x", "state.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	logger := &recordingLogger{}
	s := NewAtPath(path, logger)
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, logger.warns, 1)
	require.Contains(t, logger.warns[0], "malformed run record")
}

func TestSaveOverwritesAtomically(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir(), "run-2", nil)

	require.NoError(t, s.Save(ctx, workflow.Record{RunID: "run-2", CurrentState: workflow.StateIdle, Attempt: 1}))
	require.NoError(t, s.Save(ctx, workflow.Record{RunID: "run-2", CurrentState: workflow.StateDone, Attempt: 3}))

	loaded, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, workflow.StateDone, loaded.CurrentState)
	require.Equal(t, 3, loaded.Attempt)
}
