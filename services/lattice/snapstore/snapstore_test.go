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
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// backends returns a constructor per Store implementation so contract
// tests run against all of them.
func backends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"badger": func(t *testing.T) Store {
			s, err := OpenBadgerStoreInMemory()
			require.NoError(t, err)
			return s
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

// TestStore_PutGet verifies round-trip storage across backends.
func TestStore_PutGet(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			blob := []byte("snapshot payload")
			key, err := store.Put(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, KeyFor(blob), key)

			got, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, blob, got)
		})
	}
}

// TestStore_PutIdempotent verifies content addressing deduplicates.
func TestStore_PutIdempotent(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			blob := []byte("same bytes")
			k1, err := store.Put(ctx, blob)
			require.NoError(t, err)
			k2, err := store.Put(ctx, blob)
			require.NoError(t, err)
			assert.Equal(t, k1, k2)

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

// TestStore_GetNotFound verifies missing keys return ErrNotFound.
func TestStore_GetNotFound(t *testing.T) {
	missing := KeyFor([]byte("never stored"))

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			_, err := store.Get(ctx, missing)
			assert.ErrorIs(t, err, ErrNotFound)

			found, err := store.Has(ctx, missing)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

// TestStore_BadKey verifies malformed keys are rejected before backend access.
func TestStore_BadKey(t *testing.T) {
	bad := []Key{
		"",
		"zz",
		Key(strings.Repeat("g", KeyLen)),                  // non-hex
		Key(strings.ToUpper(string(KeyFor([]byte("x"))))), // uppercase
		"../../etc/passwd",
	}

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			for _, key := range bad {
				_, err := store.Get(ctx, key)
				assert.ErrorIs(t, err, ErrBadKey, "Get(%q)", key)

				_, err = store.Has(ctx, key)
				assert.ErrorIs(t, err, ErrBadKey, "Has(%q)", key)
			}
		})
	}
}

// TestStore_KeysSorted verifies listing returns all keys in order.
func TestStore_KeysSorted(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			want := make(map[Key]bool)
			for i := 0; i < 5; i++ {
				key, err := store.Put(ctx, []byte(fmt.Sprintf("blob-%d", i)))
				require.NoError(t, err)
				want[key] = true
			}

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			require.Len(t, keys, 5)
			for i := 1; i < len(keys); i++ {
				assert.Less(t, string(keys[i-1]), string(keys[i]))
			}
			for _, key := range keys {
				assert.True(t, want[key])
			}

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
		})
	}
}

// TestStore_EmptyBlob verifies the empty blob is storable.
func TestStore_EmptyBlob(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			key, err := store.Put(ctx, nil)
			require.NoError(t, err)
			// SHA-256 of the empty input.
			assert.Equal(t, Key("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"), key)

			got, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

// TestStore_ConcurrentPut verifies parallel writers converge.
func TestStore_ConcurrentPut(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			var wg sync.WaitGroup
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					blob := []byte(fmt.Sprintf("shared-%d", i%3))
					_, err := store.Put(ctx, blob)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

// TestStore_CancelledContext verifies context errors propagate.
func TestStore_CancelledContext(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := store.Put(ctx, []byte("blob"))
			assert.Error(t, err)
		})
	}
}

// TestStore_CorruptBlobSurfacesOnDecode verifies a store hands back
// whatever bytes it holds and leaves integrity checking to the decoder.
func TestStore_CorruptBlobSurfacesOnDecode(t *testing.T) {
	garbage := []byte("not an encoded snapshot")

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			key, err := store.Put(ctx, garbage)
			require.NoError(t, err)

			blob, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, garbage, blob)

			_, err = grid.DecodeSnapshot(blob)
			assert.Error(t, err)
		})
	}
}

// TestStore_SnapshotRoundTrip stores a real encoded snapshot and
// decodes it back.
func TestStore_SnapshotRoundTrip(t *testing.T) {
	st, err := grid.NewStore(2)
	require.NoError(t, err)
	word, err := codec.Encode(codec.Layers{Reality: 10, Information: 20, Activation: 40, Potential: 20})
	require.NoError(t, err)
	require.NoError(t, st.Set(grid.Coord(1, -2), word))
	blob := grid.EncodeSnapshot(st.Snapshot())

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()
			ctx := context.Background()

			key, err := store.Put(ctx, blob)
			require.NoError(t, err)

			got, err := store.Get(ctx, key)
			require.NoError(t, err)

			snap, err := grid.DecodeSnapshot(got)
			require.NoError(t, err)
			assert.Equal(t, 2, snap.Dims())
			assert.Equal(t, 1, snap.Len())
			assert.Equal(t, word, snap.Get(grid.Coord(1, -2)))
		})
	}
}

// TestKeyFor verifies the digest against known vectors.
func TestKeyFor(t *testing.T) {
	assert.Equal(t,
		Key("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"),
		KeyFor([]byte("hello")))
	assert.Equal(t,
		Key("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		KeyFor(nil))
}

// TestKey_Valid verifies key validation.
func TestKey_Valid(t *testing.T) {
	assert.True(t, KeyFor([]byte("x")).Valid())
	assert.False(t, Key("").Valid())
	assert.False(t, Key("abc").Valid())
	assert.False(t, Key(strings.Repeat("g", KeyLen)).Valid())
	assert.False(t, Key(strings.ToUpper(string(KeyFor([]byte("x"))))).Valid())
}

// TestKey_Short verifies display truncation.
func TestKey_Short(t *testing.T) {
	key := KeyFor([]byte("hello"))
	assert.Equal(t, "2cf24dba5fb0", key.Short())
	assert.Equal(t, "abc", Key("abc").Short())
}

// TestFileStore_Layout verifies the on-disk shard layout and that no
// temp files survive a Put.
func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	blob := []byte("layout check")
	key, err := store.Put(ctx, blob)
	require.NoError(t, err)

	path := filepath.Join(dir, string(key[:2]), string(key))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, blob, data)

	entries, err := os.ReadDir(filepath.Join(dir, string(key[:2])))
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".tmp-"), "leftover temp file %s", entry.Name())
	}

	assert.Equal(t, dir, store.Dir())
}

// TestFileStore_Reopen verifies a second store at the same path sees
// existing blobs.
func TestFileStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	require.NoError(t, err)
	key, err := first.Put(ctx, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)

	n, err := second.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestBadgerStore_Reopen verifies blobs survive a close and reopen.
func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	key, err := first.Put(ctx, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}

// TestMemory_CopiesBlobs verifies callers cannot alias stored bytes.
func TestMemory_CopiesBlobs(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	blob := []byte("original")
	key, err := store.Put(ctx, blob)
	require.NoError(t, err)

	blob[0] = 'X' // mutate the caller's slice after Put

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y' // mutate the returned slice
	again, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
