package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"platesim/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, modelDir, name string) string {
	t.Helper()
	src := filepath.Join(modelDir, "snapshots", name)
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir snapshots: %v", err)
	}
	if err := os.WriteFile(src, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	return src
}

func TestArchiveEpochSnapshot_CopiesEpochEnd(t *testing.T) {
	modelDir := filepath.Join(t.TempDir(), "models", "m1")
	src := writeDummy(t, modelDir, "1000.snap.zst")
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, ModelID: "m1", Step: 1000},
		Config: snapshot.ConfigV1{Seed: 42, Timestep: 0.2},
	}

	epoch, archivedPath, ok, err := ArchiveEpochSnapshot(modelDir, src, snap, 500)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || epoch != 2 {
		t.Fatalf("archived=%v epoch=%d, want true 2", ok, epoch)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != "dummy" {
		t.Fatalf("archived content = %q (%v)", got, err)
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta.json: %v", err)
	}
	var meta EpochArchiveMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("meta decode: %v", err)
	}
	if meta.Seed != 42 || meta.EndStep != 1000 || meta.ModelID != "m1" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestArchiveEpochSnapshot_SkipsMidEpoch(t *testing.T) {
	modelDir := t.TempDir()
	src := writeDummy(t, modelDir, "750.snap.zst")
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Step: 750}}
	if _, _, ok, err := ArchiveEpochSnapshot(modelDir, src, snap, 500); ok || err != nil {
		t.Fatalf("mid-epoch snapshot archived: ok=%v err=%v", ok, err)
	}
	if _, _, ok, _ := ArchiveEpochSnapshot(modelDir, src, snap, 0); ok {
		t.Fatalf("archiving disabled but snapshot archived")
	}
}
