package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"platesim/internal/persistence/archive"
	"platesim/internal/persistence/indexdb"
	"platesim/internal/persistence/snapshot"
)

// snapshotWriter persists snapshots off the session goroutine. Snapshots go
// under the model id in their header, so a loaded model keeps its own tree.
type snapshotWriter struct {
	dataDir    string
	epochSteps int
	idx        *indexdb.SQLiteIndex
	log        *log.Logger
}

func (w *snapshotWriter) run(ctx context.Context, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			if _, err := w.write(snap); err != nil {
				w.log.Printf("snapshot write: %v", err)
			}
		}
	}
}

func (w *snapshotWriter) write(snap snapshot.SnapshotV1) (string, error) {
	modelDir := filepath.Join(w.dataDir, "models", snap.Header.ModelID)
	path := filepath.Join(modelDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Step))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}
	w.log.Printf("snapshot step=%d fields=%d size=%s", snap.Header.Step, snap.FieldCount(), humanize.Bytes(uint64(size)))

	if w.idx != nil {
		w.idx.RecordSnapshot(path, size, snap)
		w.idx.RecordPlates(snap)
	}
	epoch, archivedPath, ok, err := archive.ArchiveEpochSnapshot(modelDir, path, snap, w.epochSteps)
	if err != nil {
		return path, fmt.Errorf("archive epoch: %w", err)
	}
	if ok {
		w.log.Printf("closed epoch %d at step %d", epoch, snap.Header.Step)
		if w.idx != nil {
			w.idx.RecordArchive(epoch, snap.Header.Step, snap.Header.ModelID, archivedPath)
		}
	}
	return path, nil
}

// latestSnapshot returns the highest-step snapshot under modelDir, or "".
func latestSnapshot(modelDir string) string {
	dir := filepath.Join(modelDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestStep uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		step, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || step > bestStep {
			bestStep = step
			best = filepath.Join(dir, name)
		}
	}
	return best
}
