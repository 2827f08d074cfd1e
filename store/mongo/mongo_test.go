package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// fakeCollection is an in-memory stand-in for collection, letting the Save
// /Load/Exists contract be exercised without a live Mongo instance.
type fakeCollection struct {
	docs map[string]recordDocument
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]recordDocument)}
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) singleResult {
	runID, _ := filter.(bson.M)["run_id"].(string)
	doc, ok := f.docs[runID]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	return fakeSingleResult{doc: doc}
}

func (f *fakeCollection) UpdateOne(_ context.Context, filter any, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	runID, _ := filter.(bson.M)["run_id"].(string)
	set, _ := update.(bson.M)["$set"].(recordDocument)
	f.docs[runID] = set
	return &mongodriver.UpdateResult{}, nil
}

func (f *fakeCollection) CountDocuments(_ context.Context, filter any, _ ...options.Lister[options.CountOptions]) (int64, error) {
	runID, _ := filter.(bson.M)["run_id"].(string)
	if _, ok := f.docs[runID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeCollection) Indexes() indexView {
	return fakeIndexView{}
}

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(context.Context, mongodriver.IndexModel, ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return "run_id_1", nil
}

type fakeSingleResult struct {
	doc recordDocument
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	target, ok := val.(*recordDocument)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*target = r.doc
	return nil
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

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	coll := newFakeCollection()
	s := newStoreWithCollection(nil, coll, "run-1", time.Second, nil)

	found, err := s.Exists(ctx)
	require.NoError(t, err)
	require.False(t, found)

	rec := workflow.Record{RunID: "run-1", CurrentState: workflow.StatePlanning, Attempt: 1}
	require.NoError(t, s.Save(ctx, rec))

	loaded, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.CurrentState, loaded.CurrentState)

	found, err = s.Exists(ctx)
	require.NoError(t, err)
	require.True(t, found)
}

func TestLoadAbsentIsNotError(t *testing.T) {
	s := newStoreWithCollection(nil, newFakeCollection(), "missing", time.Second, nil)
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadMalformedPayloadIsAbsentAndLogged(t *testing.T) {
	coll := newFakeCollection()
	coll.docs["run-bad"] = recordDocument{RunID: "run-bad", Payload: []byte("not json")}

	logger := &recordingLogger{}
	s := newStoreWithCollection(nil, coll, "run-bad", time.Second, logger)

	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, logger.warns, 1)
	require.Contains(t, logger.warns[0], "malformed run record")
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Database: "d"}, "run-1")
	require.Error(t, err)

	_, err = New(Options{Client: &mongodriver.Client{}}, "run-1")
	require.Error(t, err)

	_, err = New(Options{Client: &mongodriver.Client{}, Database: "d"}, "")
	require.Error(t, err)
}
