// Package mongo implements store.Store on top of a MongoDB collection:
// one document per run, upserted by run id, with a unique index on run_id
// and a health.Pinger so the backend can participate in a clue/health
// liveness surface alongside other external clients.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/DaniyalFaraz2003/OSC-Agent/store"
	"github.com/DaniyalFaraz2003/OSC-Agent/telemetry"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

const (
	defaultCollection = "workflow_runs"
	defaultOpTimeout  = 5 * time.Second
	clientName        = "workflow-mongo"
)

// Options configures a Store.
type Options struct {
	// Client is a connected Mongo client. Required.
	Client *mongodriver.Client
	// Database is the database name. Required.
	Database string
	// Collection defaults to "workflow_runs".
	Collection string
	// Timeout bounds every operation issued against Mongo; defaults to 5s.
	Timeout time.Duration
	// Logger receives the malformed-record warning Load emits. Defaults to
	// a no-op logger.
	Logger telemetry.Logger
}

var _ health.Pinger = (*Store)(nil)

// Store persists one workflow.Record per run as a document keyed by run_id,
// satisfying store.Store.
type Store struct {
	mongo   *mongodriver.Client
	coll    collection
	runID   string
	timeout time.Duration
	logger  telemetry.Logger
}

// New returns a Store for the given run, creating the unique run_id index
// on the target collection if it doesn't already exist.
func New(opts Options, runID string) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("store/mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("store/mongo: database is required")
	}
	if runID == "" {
		return nil, errors.New("store/mongo: run id is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, wrapErr("new", err)
	}
	return newStoreWithCollection(opts.Client, wrapper, runID, timeout, opts.Logger), nil
}

// newStoreWithCollection builds a Store against an arbitrary collection
// implementation, letting tests substitute a fake in place of a live Mongo
// connection.
func newStoreWithCollection(mongoClient *mongodriver.Client, coll collection, runID string, timeout time.Duration, logger telemetry.Logger) *Store {
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{mongo: mongoClient, coll: coll, runID: runID, timeout: timeout, logger: logger}
}

// Name satisfies health.Pinger.
func (s *Store) Name() string { return clientName }

// Ping satisfies health.Pinger, letting this backend participate in the
// same liveness surface as the rest of the domain stack.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

// Save upserts the record's document by run_id.
func (s *Store) Save(ctx context.Context, record workflow.Record) error {
	doc, err := toDocument(record)
	if err != nil {
		return wrapErr("save", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"run_id": s.runID}
	update := bson.M{"$set": doc}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return wrapErr("save", err)
	}
	return nil
}

// Load fetches the document for this run. A missing document is reported
// as found=false, not an error; a document whose payload fails to decode
// is treated the same way, with the corruption logged as a warning.
func (s *Store) Load(ctx context.Context) (workflow.Record, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc recordDocument
	filter := bson.M{"run_id": s.runID}
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return workflow.Record{}, false, nil
		}
		return workflow.Record{}, false, wrapErr("load", err)
	}
	record, err := doc.toRecord()
	if err != nil {
		s.logger.Warn(ctx, "malformed run record treated as absent", "runId", s.runID, "error", err.Error())
		return workflow.Record{}, false, nil
	}
	return record, true, nil
}

// Exists reports whether a document for this run is present.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.coll.CountDocuments(ctx, bson.M{"run_id": s.runID})
	if err != nil {
		return false, wrapErr("exists", err)
	}
	return n > 0, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Op: "mongo." + op, Err: err}
}

// recordDocument is the on-wire shape of a workflow.Record in Mongo. The
// record's JSON encoding is stored as bytes in the payload field so that
// unknown/extra fields round-trip the same way they do through
// workflow.Record's own MarshalJSON/UnmarshalJSON.
type recordDocument struct {
	RunID   string `bson:"run_id"`
	Payload []byte `bson:"payload"`
}

func toDocument(record workflow.Record) (recordDocument, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return recordDocument{}, err
	}
	return recordDocument{RunID: record.RunID, Payload: payload}, nil
}

func (doc recordDocument) toRecord() (workflow.Record, error) {
	var record workflow.Record
	if err := json.Unmarshal(doc.Payload, &record); err != nil {
		return workflow.Record{}, err
	}
	return record, nil
}

// collection narrows *mongodriver.Collection to what this package
// exercises, keeping Mongo calls testable behind a fake.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error) {
	return c.coll.CountDocuments(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
