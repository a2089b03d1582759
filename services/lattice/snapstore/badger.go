// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianLattice/services/lattice/storage/badger"
	dgbadger "github.com/dgraph-io/badger/v4"
)

// snapPrefix namespaces snapshot blobs inside the BadgerDB keyspace.
const snapPrefix = "snap/"

// BadgerStore is a durable Store backed by BadgerDB.
//
// Blobs live under the "snap/" key prefix, leaving the rest of the
// keyspace free for other run artifacts sharing the same database.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions provide isolation.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-open managed database.
//
// The caller retains ownership of db until Close is called on the
// returned store, which closes db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens a durable store at the given directory.
//
// Description:
//
//	Opens BadgerDB with archive defaults (sync writes, periodic value
//	log GC) at path, creating the directory if needed.
//
// Inputs:
//
//	path - Directory for database files. Must be non-empty.
//
// Outputs:
//
//	*BadgerStore - Ready-to-use store. Caller must Close.
//	error - Non-nil if the database cannot be opened.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	cfg := badger.DefaultConfig()
	cfg.Path = path
	db, err := badger.OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenBadgerStoreInMemory opens an ephemeral store for testing.
func OpenBadgerStoreInMemory() (*BadgerStore, error) {
	db, err := badger.OpenDB(badger.InMemoryConfig())
	if err != nil {
		return nil, fmt.Errorf("open in-memory snapshot store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func dbKey(key Key) []byte {
	return []byte(snapPrefix + string(key))
}

// Put stores a blob under its content key.
//
// An existing entry under the same key short-circuits without a write,
// so persisting an unchanged lattice is read-only after the first time.
func (s *BadgerStore) Put(ctx context.Context, blob []byte) (Key, error) {
	key := KeyFor(blob)

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		_, err := txn.Get(dbKey(key))
		if err == nil {
			return nil // already stored
		}
		if !errors.Is(err, dgbadger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(dbKey(key), blob)
	})
	if errors.Is(err, dgbadger.ErrConflict) {
		// A concurrent Put raced us to the same content key. The only
		// writer that can conflict here wrote identical bytes, so the
		// blob is stored either way.
		return key, nil
	}
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", key.Short(), err)
	}
	return key, nil
}

// Get returns the blob stored under key.
func (s *BadgerStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	var blob []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			if errors.Is(err, dgbadger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, key.Short())
			}
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Has reports whether a blob exists under key.
func (s *BadgerStore) Has(ctx context.Context, key Key) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	found := false
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		_, err := txn.Get(dbKey(key))
		if err == nil {
			found = true
			return nil
		}
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return found, err
}

// Keys returns all stored keys in lexicographic order.
//
// BadgerDB iterates keys in byte order and keys are fixed-width hex,
// so no explicit sort is needed.
func (s *BadgerStore) Keys(ctx context.Context) ([]Key, error) {
	var keys []Key
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(snapPrefix)); it.Next() {
			k := it.Item().Key()
			keys = append(keys, Key(k[len(snapPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

// Len returns the number of stored blobs.
func (s *BadgerStore) Len(ctx context.Context) (int, error) {
	count := 0
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(snapPrefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
