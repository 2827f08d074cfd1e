// Package redis implements store.Store on top of a single Redis key per
// run: one SET/GET per logical record, optional TTL. Redis's SET is
// already atomic, so this backend needs no temp-key dance — a single
// command either lands or it doesn't.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/DaniyalFaraz2003/OSC-Agent/store"
	"github.com/DaniyalFaraz2003/OSC-Agent/telemetry"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Options configures a Store.
type Options struct {
	// Client is the Redis connection. Required.
	Client *goredis.Client
	// RunID the record is keyed under. Required.
	RunID string
	// KeyPrefix namespaces the Redis key; defaults to "oscagent:run:".
	KeyPrefix string
	// TTL, if non-zero, is applied to the key on every Save so abandoned
	// runs eventually age out of a shared Redis instance.
	TTL time.Duration
	// Logger receives the malformed-record warning Load emits. Defaults to
	// a no-op logger.
	Logger telemetry.Logger
}

// Store persists a run record at <KeyPrefix><RunID> in Redis.
type Store struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
	logger telemetry.Logger
}

// New returns a Store backed by opts.Client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("store/redis: client is required")
	}
	if opts.RunID == "" {
		return nil, errors.New("store/redis: run id is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "oscagent:run:"
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{client: opts.Client, key: prefix + opts.RunID, ttl: opts.TTL, logger: logger}, nil
}

// Save marshals record and SETs it at the store's key, refreshing the TTL
// if one is configured.
func (s *Store) Save(ctx context.Context, record workflow.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return wrapErr("save", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return wrapErr("save", err)
	}
	return nil
}

// Load GETs the record at the store's key. A missing key is reported as
// found=false, not an error; a value that fails to unmarshal is treated
// the same way, with the corruption logged as a warning.
func (s *Store) Load(ctx context.Context) (workflow.Record, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return workflow.Record{}, false, nil
		}
		return workflow.Record{}, false, wrapErr("load", err)
	}
	var record workflow.Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn(ctx, "malformed run record treated as absent", "key", s.key, "error", err.Error())
		return workflow.Record{}, false, nil
	}
	return record, true, nil
}

// Exists reports whether the store's key is present.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return false, wrapErr("exists", err)
	}
	return n > 0, nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Op: "redis." + op, Err: err}
}
