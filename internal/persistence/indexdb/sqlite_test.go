package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqStep, step: tectonics.StepLogEntry{Step: 1}}

	_ = s.WriteStep(tectonics.StepLogEntry{Step: 2})
	_ = s.WriteAudit(log.AuditEntry{Step: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", 10, snapshot.SnapshotV1{})
	s.RecordPlates(snapshot.SnapshotV1{})
	s.RecordArchive(1, 2, "m", "/tmp/2.snap.zst")

	st := s.Stats()
	if st.DropStepTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 ||
		st.DropPlatesTotal != 1 || st.DropArchiveTotal != 1 {
		t.Fatalf("drop stats = %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	_ = idx.WriteStep(tectonics.StepLogEntry{Step: 7, Digest: "abc", Plates: 2, Fields: 642, Subducting: 5})
	_ = idx.WriteAudit(log.AuditEntry{Step: 7, Actor: "admin", Action: "PAUSE"})
	_ = idx.WriteAudit(log.AuditEntry{Step: 7, Actor: "admin", Action: "RESUME"})

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, ModelID: "m1", Step: 7},
		Plates: []snapshot.PlateV1{
			{ID: 0, Density: 1, Hue: 10, AngularVelocity: [3]float64{0, 3, 4}, Fields: []snapshot.FieldV1{
				{ID: 1, Type: uint8(tectonics.Continent)}, {ID: 2, Type: uint8(tectonics.Ocean)},
			}},
			{ID: 1, Density: 2, Hue: 20, Fields: []snapshot.FieldV1{{ID: 3}}},
		},
	}
	idx.RecordSnapshot("/abs/7.snap.zst", 1234, snap)
	idx.RecordPlates(snap)
	idx.RecordArchive(1, 7, "m1", "/abs/archives/epoch_001/7.snap.zst")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var digest string
	var subducting int
	if err := db.QueryRow(`SELECT digest,subducting FROM steps WHERE step=7`).Scan(&digest, &subducting); err != nil {
		t.Fatalf("steps: %v", err)
	}
	if digest != "abc" || subducting != 5 {
		t.Fatalf("step row = %q %d", digest, subducting)
	}
	var audits int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audits WHERE step=7`).Scan(&audits); err != nil || audits != 2 {
		t.Fatalf("audits = %d (%v)", audits, err)
	}
	var fields int
	var bytes int64
	if err := db.QueryRow(`SELECT fields,bytes FROM snapshots WHERE step=7`).Scan(&fields, &bytes); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if fields != 3 || bytes != 1234 {
		t.Fatalf("snapshot row = %d %d", fields, bytes)
	}
	var continental int
	var speed float64
	if err := db.QueryRow(`SELECT continental,angular_speed FROM snapshot_plates WHERE step=7 AND plate_id=0`).Scan(&continental, &speed); err != nil {
		t.Fatalf("snapshot_plates: %v", err)
	}
	if continental != 1 || speed != 5 {
		t.Fatalf("plate row = %d %v", continental, speed)
	}
	var end int64
	if err := db.QueryRow(`SELECT end_step FROM archives WHERE epoch=1`).Scan(&end); err != nil || end != 7 {
		t.Fatalf("archive end = %d (%v)", end, err)
	}
	var tuneDigest string
	if err := db.QueryRow(`SELECT digest FROM configs WHERE name='tuning'`).Scan(&tuneDigest); err != nil || tuneDigest == "" {
		t.Fatalf("tuning row missing: %v", err)
	}
}
