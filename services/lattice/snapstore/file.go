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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore is a Store keeping one file per snapshot.
//
// Layout is <dir>/<key[0:2]>/<key>, fanning blobs out over 256 shard
// directories. Files appear atomically via tmp+rename, so an external
// watcher (fsnotify on the store directory) never observes a partial
// blob under a final key name.
//
// # Thread Safety
//
// Safe for concurrent use. Writes are atomic at the filesystem level
// and content addressing makes concurrent Puts of the same blob
// converge on identical bytes.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
//
// Description:
//
//	Creates dir if it does not exist. Existing blobs in the directory
//	are picked up as-is, so reopening a store at the same path resumes
//	its contents.
//
// Inputs:
//
//	dir - Root directory for snapshot files. Must be non-empty.
//
// Outputs:
//
//	*FileStore - Ready-to-use store.
//	error - Non-nil if the directory cannot be created.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
//
// External watchers observe this directory for new snapshot files.
func (f *FileStore) Dir() string {
	return f.dir
}

// blobPath returns the final path for a key. The key must be Valid.
func (f *FileStore) blobPath(key Key) string {
	return filepath.Join(f.dir, string(key[:2]), string(key))
}

// Put writes a blob to its content-addressed path.
//
// The blob is written to a temporary file in the target shard directory
// and renamed into place, so readers and watchers only ever see complete
// files. An existing file under the same key short-circuits the write.
func (f *FileStore) Put(ctx context.Context, blob []byte) (Key, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	key := KeyFor(blob)
	path := f.blobPath(key)

	if _, err := os.Stat(path); err == nil {
		return key, nil
	}

	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0750); err != nil {
		return "", fmt.Errorf("create shard directory: %w", err)
	}

	// Temp file lives in the shard so the rename never crosses devices.
	tmp, err := os.CreateTemp(shard, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write snapshot %s: %w", key.Short(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("sync snapshot %s: %w", key.Short(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("finalize snapshot %s: %w", key.Short(), err)
	}
	return key, nil
}

// Get returns the blob stored under key.
func (f *FileStore) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	blob, err := os.ReadFile(f.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Short())
		}
		return nil, fmt.Errorf("read snapshot %s: %w", key.Short(), err)
	}
	return blob, nil
}

// Has reports whether a blob exists under key.
func (f *FileStore) Has(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	_, err := os.Stat(f.blobPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat snapshot %s: %w", key.Short(), err)
}

// Keys returns all stored keys in lexicographic order.
//
// Temp files and foreign entries in the store directory are skipped.
func (f *FileStore) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	shards, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var keys []Key
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(f.dir, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", shard.Name(), err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			key := Key(entry.Name())
			if key.Valid() && strings.HasPrefix(entry.Name(), shard.Name()) {
				keys = append(keys, key)
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Len returns the number of stored blobs.
func (f *FileStore) Len(ctx context.Context) (int, error) {
	keys, err := f.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close is a no-op for the file store.
func (f *FileStore) Close() error {
	return nil
}
