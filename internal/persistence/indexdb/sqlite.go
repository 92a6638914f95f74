package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable index of the step log and of the
// snapshots written to disk. Writes are queued and applied by one goroutine;
// when the queue is full they are dropped and counted, so the simulation
// never waits on the index.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStep     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
	dropPlates   atomic.Uint64
	dropArchive  atomic.Uint64
}

type reqKind int

const (
	reqStep reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqPlates
	reqArchive
)

type req struct {
	kind reqKind

	step     tectonics.StepLogEntry
	audit    log.AuditEntry
	snapshot snapshotRow
	plates   []plateRow
	archive  archiveRow
}

type snapshotRow struct {
	Step    uint64
	Path    string
	ModelID string
	Plates  int
	Fields  int
	Bytes   int64
}

type plateRow struct {
	Step         uint64
	PlateID      int
	Density      float64
	Hue          int
	Fields       int
	Continental  int
	Subplate     int
	AngularSpeed float64
	HotSpot      bool
}

type archiveRow struct {
	Epoch      int
	EndStep    uint64
	ModelID    string
	Path       string
	RecordedAt string
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropStepTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
	DropPlatesTotal   uint64
	DropArchiveTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL sync is enough for an index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			step INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			plates INTEGER NOT NULL,
			fields INTEGER NOT NULL,
			subducting INTEGER NOT NULL,
			orogeny INTEGER NOT NULL,
			eruptions INTEGER NOT NULL,
			earthquakes INTEGER NOT NULL,
			collisions INTEGER NOT NULL,
			new_fields INTEGER NOT NULL,
			step_ms REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			step INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT,
			at TEXT NOT NULL,
			PRIMARY KEY (step, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_step ON audits(action, step);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			step INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			model_id TEXT NOT NULL,
			plates INTEGER NOT NULL,
			fields INTEGER NOT NULL,
			bytes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_plates (
			step INTEGER NOT NULL,
			plate_id INTEGER NOT NULL,
			density REAL NOT NULL,
			hue INTEGER NOT NULL,
			fields INTEGER NOT NULL,
			continental INTEGER NOT NULL,
			subplate INTEGER NOT NULL,
			angular_speed REAL NOT NULL,
			hot_spot INTEGER NOT NULL,
			PRIMARY KEY (step, plate_id)
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			epoch INTEGER PRIMARY KEY,
			end_step INTEGER NOT NULL,
			model_id TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_archives_end_step ON archives(end_step);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropStepTotal:     s.dropStep.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		DropPlatesTotal:   s.dropPlates.Load(),
		DropArchiveTotal:  s.dropArchive.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The JSONL step log remains the source of truth.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteStep(entry tectonics.StepLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqStep, step: entry}, &s.dropStep)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry log.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

// RecordSnapshot indexes a snapshot file. size is the file size in bytes.
func (s *SQLiteIndex) RecordSnapshot(path string, size int64, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Step:    snap.Header.Step,
		Path:    path,
		ModelID: snap.Header.ModelID,
		Plates:  len(snap.Plates),
		Fields:  snap.FieldCount(),
		Bytes:   size,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// RecordPlates stores a per-plate summary of snap for trend queries.
func (s *SQLiteIndex) RecordPlates(snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	rows := make([]plateRow, 0, len(snap.Plates))
	for _, p := range snap.Plates {
		continental := 0
		for _, f := range p.Fields {
			if tectonics.FieldType(f.Type).ContinentalCrust() {
				continental++
			}
		}
		w := p.AngularVelocity
		rows = append(rows, plateRow{
			Step:         snap.Header.Step,
			PlateID:      p.ID,
			Density:      p.Density,
			Hue:          p.Hue,
			Fields:       len(p.Fields),
			Continental:  continental,
			Subplate:     len(p.Subplate),
			AngularSpeed: math.Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2]),
			HotSpot:      p.HotSpot != nil,
		})
	}
	s.enqueue(req{kind: reqPlates, plates: rows}, &s.dropPlates)
}

func (s *SQLiteIndex) RecordArchive(epoch int, endStep uint64, modelID, archivedSnapshotPath string) {
	if s == nil || epoch <= 0 || archivedSnapshotPath == "" {
		return
	}
	r := archiveRow{
		Epoch:      epoch,
		EndStep:    endStep,
		ModelID:    modelID,
		Path:       archivedSnapshotPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqArchive, archive: r}, &s.dropArchive)
}

// UpsertTuning stores the tuning actually applied, keyed by its digest.
// It runs synchronously; call it once at startup.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(step,digest,plates,fields,subducting,orogeny,eruptions,earthquakes,collisions,new_fields,step_ms) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(step,seq,actor,action,detail,at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(step,path,model_id,plates,fields,bytes) VALUES(?,?,?,?,?,?)`)
	insertPlate, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshot_plates(step,plate_id,density,hue,fields,continental,subplate,angular_speed,hot_spot) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO archives(epoch,end_step,model_id,snapshot_path,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStep, insertAudit, insertSnapshot, insertPlate, insertArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditStep uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStep:
			e := r.step
			exec(insertStep, int64(e.Step), e.Digest, e.Plates, e.Fields, e.Subducting, e.Orogeny,
				e.Eruptions, e.Earthquakes, e.Collisions, e.NewFields, e.StepMS)

		case reqAudit:
			a := r.audit
			if a.Step != lastAuditStep {
				lastAuditStep = a.Step
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			exec(insertAudit, int64(a.Step), seq, a.Actor, a.Action, a.Detail, a.At)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Step), sn.Path, sn.ModelID, sn.Plates, sn.Fields, sn.Bytes)

		case reqPlates:
			for _, p := range r.plates {
				hot := 0
				if p.HotSpot {
					hot = 1
				}
				if !exec(insertPlate, int64(p.Step), p.PlateID, p.Density, p.Hue, p.Fields,
					p.Continental, p.Subplate, p.AngularSpeed, hot) {
					break
				}
			}

		case reqArchive:
			a := r.archive
			exec(insertArchive, a.Epoch, int64(a.EndStep), a.ModelID, a.Path, a.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
