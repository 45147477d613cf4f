// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package persistence is the policy-override store: a key-value
// grouping of arbitration policy overrides (per-class allowed/shared mask
// and public/sharing flag adjustments, internal/resourceclass.Override)
// that survives process restarts.
//
// A thin wrapper over BadgerDB: same
// embedded-BadgerDB-as-durable-KV idiom, same Open/Close/Stats shape,
// repurposed from "durable event queue awaiting NATS publish" to "durable
// policy overrides awaiting the next startup's restore pass". Every write
// is paired with a blake2b-256 content digest (domain-stack table: "hashing
// the persisted policy-override file's integrity check"), checked on
// Restore so a torn write from a crash mid-fsync is detected and skipped
// rather than silently applied.
package persistence

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"

	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/resourceclass"
)

// record is the on-disk envelope for one class's override, pairing the
// payload with a digest computed over it.
type record struct {
	Override resourceclass.Override `json:"override"`
	Digest   [32]byte               `json:"digest"`
}

func (r *record) computeDigest() [32]byte {
	buf, _ := json.Marshal(r.Override)
	return blake2b.Sum256(buf)
}

// Config configures the policy-override store (config.PersistenceConfig).
type Config struct {
	// Dir is the BadgerDB directory. Created with 0755 (rwxr-xr-x) if
	// missing.
	Dir string
	// SyncWrites forces an fsync on every write; off by default for
	// throughput.
	SyncWrites bool
}

// Store is the durable, crash-safe home for operator policy overrides.
// Open creates the directory (mode 0755) and the BadgerDB files when
// they are missing.
type Store struct {
	mu sync.Mutex
	db *badger.DB
}

// Open creates or reopens the policy-override store at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("persistence: Config.Dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create directory: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: open BadgerDB: %w", err)
	}

	logging.Info().Str("dir", cfg.Dir).Bool("sync_writes", cfg.SyncWrites).Msg("policy-override store opened")
	return &Store{db: db}, nil
}

// SetOverride persists className's override, replacing any prior value.
// The daemon itself has no caller for it; what it stores is read back by
// Restore at the next startup.
func (s *Store) SetOverride(className string, o resourceclass.Override) error {
	rec := record{Override: o}
	rec.Digest = rec.computeDigest()
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("persistence: marshal override for %q: %w", className, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(className), buf)
	})
}

// DeleteOverride removes a class's persisted override, reverting it to
// the compiled-in default on the next restore.
func (s *Store) DeleteOverride(className string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(className))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Restore reads every persisted override, verifying each entry's digest.
// A digest mismatch (a torn or corrupted write) is logged and the entry
// is dropped rather than applied — never propagated as a fatal error,
// since a missing override just means that class keeps its compiled-in
// default.
//
// cmd/server calls it once at startup, before it builds the class
// directory.
func (s *Store) Restore(ctx context.Context) (map[string]resourceclass.Override, error) {
	out := make(map[string]resourceclass.Override)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			className := string(item.KeyCopy(nil))
			var rec record
			copyErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if copyErr != nil {
				logging.Warn().Err(copyErr).Str("class", className).Msg("persistence: failed to decode override, skipping")
				continue
			}
			if rec.computeDigest() != rec.Digest {
				logging.Error().Str("class", className).Msg("persistence: override digest mismatch, discarding entry")
				continue
			}
			out[className] = rec.Override
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persistence: restore: %w", err)
	}
	return out, nil
}

// RunGC triggers one BadgerDB value-log garbage-collection pass. Badger's
// own advice is to call this periodically; cmd/server wraps this in a
// ticking store-layer suture.Service (PersistenceConfig.GCInterval).
func (s *Store) RunGC(ctx context.Context) error {
	err := s.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("persistence: value log GC: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying BadgerDB.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
