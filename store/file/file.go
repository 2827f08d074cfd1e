// Package file implements store.Store as a single JSON document on local
// disk, written atomically via a temp-file-then-rename.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/DaniyalFaraz2003/OSC-Agent/store"
	"github.com/DaniyalFaraz2003/OSC-Agent/telemetry"
	"github.com/DaniyalFaraz2003/OSC-Agent/workflow"
)

// Store persists a single run record as one state.json per run directory.
type Store struct {
	path   string
	logger telemetry.Logger
}

// New returns a Store that persists to <root>/<runID>/state.json, creating
// the directory on first Save. A nil logger discards the malformed-record
// warning Load emits.
func New(root, runID string, logger telemetry.Logger) *Store {
	return NewAtPath(filepath.Join(root, runID, "state.json"), logger)
}

// NewAtPath returns a Store persisting directly to path, bypassing the
// <root>/<runID>/ convention. Useful for tests and for callers that already
// own the directory layout.
func NewAtPath(path string, logger telemetry.Logger) *Store {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{path: path, logger: logger}
}

// Save writes record atomically: marshal, write to a sibling temp file,
// fsync, then rename over the target. A crash between the write and the
// rename leaves the previous state.json untouched; a crash after the
// rename leaves the new one — there is no window where a reader can
// observe a partially written file.
func (s *Store) Save(_ context.Context, record workflow.Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return wrapErr("save", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapErr("save", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return wrapErr("save", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrapErr("save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return wrapErr("save", err)
	}
	if err := tmp.Close(); err != nil {
		return wrapErr("save", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return wrapErr("save", err)
	}
	return nil
}

// Load reads state.json. A missing file or one that fails to unmarshal is
// treated as absent (found=false) rather than an error, so a run against a
// corrupt record starts over instead of wedging; the corruption is logged
// as a warning rather than silently dropped.
func (s *Store) Load(ctx context.Context) (workflow.Record, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return workflow.Record{}, false, nil
		}
		return workflow.Record{}, false, wrapErr("load", err)
	}
	var record workflow.Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn(ctx, "malformed run record treated as absent", "path", s.path, "error", err.Error())
		return workflow.Record{}, false, nil
	}
	return record, true, nil
}

// Exists reports whether state.json is present.
func (s *Store) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, wrapErr("exists", err)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.Error{Op: "file." + op, Err: err}
}
