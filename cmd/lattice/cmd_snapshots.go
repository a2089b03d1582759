// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
	"github.com/spf13/cobra"
)

// runSnapshotList is the CLI handler for "lattice snapshots list".
//
// # Exit Codes
//
//   - 0: Keys listed
//   - 2: Store could not be opened or read
func runSnapshotList(cmd *cobra.Command, args []string) {
	doc, _, err := loadDocument()
	if err != nil {
		OutputError(snapshotListJSON, "Failed to load run document", err)
		os.Exit(CLIExitError)
	}

	store, err := openSnapStore(doc.Store)
	if err != nil {
		OutputError(snapshotListJSON, "Failed to open snapshot store", err)
		os.Exit(CLIExitError)
	}
	defer store.Close()

	keys, err := store.Keys(context.Background())
	if err != nil {
		OutputError(snapshotListJSON, "Failed to list snapshots", err)
		os.Exit(CLIExitError)
	}

	if snapshotListJSON {
		list := make([]string, 0, len(keys))
		for _, k := range keys {
			list = append(list, k.String())
		}
		result := SnapshotListResult{Backend: doc.Store.Backend, Keys: list, Count: len(list)}
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Printf("%d snapshots in %s store\n", len(keys), doc.Store.Backend)
	for _, k := range keys {
		fmt.Println(k)
	}
	if len(keys) == 0 && doc.Store.Backend == config.BackendMemory {
		fmt.Println("Note: the memory backend does not persist across processes.")
	}
}

// runSnapshotShow is the CLI handler for "lattice snapshots show".
//
// # Exit Codes
//
//   - 0: Snapshot decoded and displayed
//   - 2: Key not found, ambiguous, or blob corrupt
func runSnapshotShow(cmd *cobra.Command, args []string) {
	doc, _, err := loadDocument()
	if err != nil {
		OutputError(snapshotShowJSON, "Failed to load run document", err)
		os.Exit(CLIExitError)
	}

	store, err := openSnapStore(doc.Store)
	if err != nil {
		OutputError(snapshotShowJSON, "Failed to open snapshot store", err)
		os.Exit(CLIExitError)
	}
	defer store.Close()

	ctx := context.Background()
	key, err := resolveKey(ctx, store, args[0])
	if err != nil {
		OutputError(snapshotShowJSON, "Failed to resolve key", err)
		os.Exit(CLIExitError)
	}

	blob, err := store.Get(ctx, key)
	if err != nil {
		OutputError(snapshotShowJSON, "Failed to read snapshot", err)
		os.Exit(CLIExitError)
	}
	snap, err := grid.DecodeSnapshot(blob)
	if err != nil {
		OutputError(snapshotShowJSON, "Failed to decode snapshot", err)
		os.Exit(CLIExitError)
	}

	result := SnapshotShowResult{
		Key:      key.String(),
		Dims:     snap.Dims(),
		Step:     snap.Step(),
		Cells:    snap.Len(),
		ByteSize: len(blob),
	}
	if snapshotShowCells {
		result.CellList = make([]SnapshotCell, 0, snap.Len())
		snap.Range(func(c grid.Coordinate, w codec.Word) bool {
			l := codec.Decode(w)
			result.CellList = append(result.CellList, SnapshotCell{
				Axes:        append([]int32(nil), c[:snap.Dims()]...),
				Reality:     l.Reality,
				Information: l.Information,
				Activation:  l.Activation,
				Potential:   l.Potential,
			})
			return true
		})
	}

	if snapshotShowJSON {
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Println("--- Snapshot ---")
	fmt.Printf("Key:   %s\n", result.Key)
	fmt.Printf("Dims:  %d\n", result.Dims)
	fmt.Printf("Step:  %d\n", result.Step)
	fmt.Printf("Cells: %d\n", result.Cells)
	fmt.Printf("Bytes: %d\n", result.ByteSize)
	if snapshotShowCells {
		fmt.Println("Cell contents:")
		for _, cell := range result.CellList {
			fmt.Printf("  %v  r=%d i=%d a=%d p=%d\n",
				cell.Axes, cell.Reality, cell.Information, cell.Activation, cell.Potential)
		}
	}
	fmt.Println("----------------")
}

// resolveKey turns a CLI key argument into a full store key. Full keys
// pass through; shorter arguments resolve as unique prefixes the way
// abbreviated revisions do.
func resolveKey(ctx context.Context, store snapstore.Store, arg string) (snapstore.Key, error) {
	key := snapstore.Key(arg)
	if key.Valid() {
		return key, nil
	}
	if len(arg) < 4 || len(arg) >= snapstore.KeyLen {
		return "", fmt.Errorf("key %q must be a full key or a prefix of 4..%d hex characters", arg, snapstore.KeyLen-1)
	}
	for _, c := range []byte(arg) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return "", fmt.Errorf("key prefix %q contains non-hex character %q", arg, c)
		}
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		return "", err
	}
	var matches []snapstore.Key
	for _, k := range keys {
		if strings.HasPrefix(k.String(), arg) {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no snapshot matches prefix %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// runSnapshotWatch is the CLI handler for "lattice snapshots watch".
//
// It follows the store directory of a file-backed store and prints
// snapshots as another process persists them. Runs until interrupted.
//
// # Exit Codes
//
//   - 0: Watch ended on interrupt
//   - 2: Store is not file-backed or could not be watched
func runSnapshotWatch(cmd *cobra.Command, args []string) {
	doc, _, err := loadDocument()
	if err != nil {
		OutputError(false, "Failed to load run document", err)
		os.Exit(CLIExitError)
	}
	if doc.Store.Backend != config.BackendFile {
		OutputError(false, "Cannot watch store",
			fmt.Errorf("backend %q does not expose a directory; watch requires the file backend", doc.Store.Backend))
		os.Exit(CLIExitError)
	}

	fileStore, err := snapstore.NewFileStore(doc.Store.Path)
	if err != nil {
		OutputError(false, "Failed to open snapshot store", err)
		os.Exit(CLIExitError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := snapstore.NewWatcher(fileStore.Dir(), func(changes []snapstore.Change) {
		for _, change := range changes {
			printChange(ctx, fileStore, change)
		}
	}, &snapstore.WatcherOptions{DebounceWindow: watchDebounce})
	if err != nil {
		OutputError(false, "Failed to create watcher", err)
		os.Exit(CLIExitError)
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		OutputError(false, "Failed to start watcher", err)
		os.Exit(CLIExitError)
	}

	fmt.Printf("Watching %s (debounce %s). Ctrl+C to stop.\n", fileStore.Dir(), watchDebounce)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("\nStopped.")
}

// printChange prints one store change, decoding stored blobs for their
// step and cell count.
func printChange(ctx context.Context, store *snapstore.FileStore, change snapstore.Change) {
	stamp := change.Time.Format("15:04:05.000")
	if change.Op != snapstore.ChangeStored {
		fmt.Printf("%s  %-7s %s\n", stamp, change.Op, change.Key.Short())
		return
	}

	blob, err := store.Get(ctx, change.Key)
	if err != nil {
		fmt.Printf("%s  %-7s %s (unreadable: %v)\n", stamp, change.Op, change.Key.Short(), err)
		return
	}
	snap, err := grid.DecodeSnapshot(blob)
	if err != nil {
		fmt.Printf("%s  %-7s %s (corrupt: %v)\n", stamp, change.Op, change.Key.Short(), err)
		return
	}
	fmt.Printf("%s  %-7s %s  step %d, %d cells, %d bytes\n",
		stamp, change.Op, change.Key.Short(), snap.Step(), snap.Len(), len(blob))
}
