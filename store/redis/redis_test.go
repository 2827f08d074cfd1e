package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// dialTestClient connects to a Redis instance addressed by OSC_AGENT_REDIS_ADDR
// (defaulting to localhost:6379) and skips the test if one isn't reachable.
func dialTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("OSC_AGENT_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s, skipping: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSaveLoadRoundTrip(t *testing.T) {
	client := dialTestClient(t)
	ctx := context.Background()

	s, err := New(Options{Client: client, RunID: "it-run-1", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { client.Del(ctx, "oscagent:run:it-run-1") })

	found, err := s.Exists(ctx)
	require.NoError(t, err)
	require.False(t, found)

	rec := workflow.Record{RunID: "it-run-1", CurrentState: workflow.StateSearching, Attempt: 2}
	require.NoError(t, s.Save(ctx, rec))

	loaded, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.CurrentState, loaded.CurrentState)
	require.Equal(t, rec.Attempt, loaded.Attempt)

	found, err = s.Exists(ctx)
	require.NoError(t, err)
	require.True(t, found)
}

func TestLoadAbsentIsNotError(t *testing.T) {
	client := dialTestClient(t)
	s, err := New(Options{Client: client, RunID: "it-missing"})
	require.NoError(t, err)

	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

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

func TestLoadMalformedIsTreatedAsAbsentAndLogged(t *testing.T) {
	client := dialTestClient(t)
	ctx := context.Background()

	logger := &recordingLogger{}
	s, err := New(Options{Client: client, RunID: "it-malformed", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { client.Del(ctx, "oscagent:run:it-malformed") })

	require.NoError(t, client.Set(ctx, "oscagent:run:it-malformed", "not json", 0).Err())

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, logger.warns, 1)
	require.Contains(t, logger.warns[0], "malformed run record")
}

func TestNewRequiresClientAndRunID(t *testing.T) {
	_, err := New(Options{RunID: "x"})
	require.Error(t, err)

	_, err = New(Options{Client: &goredis.Client{}})
	require.Error(t, err)
}
