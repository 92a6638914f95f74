package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"platesim/internal/persistence/indexdb"
	persistlog "platesim/internal/persistence/log"
	"platesim/internal/persistence/snapshot"
	"platesim/internal/persistence/store"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/session"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/tuning"
	"platesim/internal/sim/worldgen"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		modelID    = flag.String("model", "", "model id (default: random uuid, or the snapshot's id on resume)")
		seed       = flag.Int64("seed", 0, "model seed override (used only when starting a fresh model)")
		preset     = flag.String("preset", "", "worldgen preset override: noise | two-plates")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (step/audit rows + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest && *modelID != "" {
		snapshotToLoad = latestSnapshot(filepath.Join(*dataDir, "models", *modelID))
	}

	// Tuning is required for a fresh model; a resume carries its own config.
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Model.Seed = *seed
	}
	if *preset != "" {
		tune.WorldGen.Preset = *preset
	}

	var m *tectonics.Model
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if *modelID != "" && snap.Header.ModelID != "" && snap.Header.ModelID != *modelID {
			logger.Fatalf("snapshot model id mismatch: flag=%s snap=%s", *modelID, snap.Header.ModelID)
		}
		if *modelID == "" {
			*modelID = snap.Header.ModelID
		}
		g, err := grid.New(tectonics.GridOptions(snap))
		if err != nil {
			logger.Fatalf("grid: %v", err)
		}
		m, err = tectonics.DeserializeModel(g, snap)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s step=%d", filepath.Base(snapshotToLoad), m.StepIdx())
	} else {
		start := time.Now()
		g, err := grid.New(grid.Options{
			Divisions:        tune.Grid.Divisions,
			Optimized:        tune.Grid.OptimizedCollisions,
			ApproxResolution: tune.Grid.ApproxResolution,
		})
		if err != nil {
			logger.Fatalf("grid: %v", err)
		}
		m, err = worldgen.Generate(g, tectonics.ConfigFromTuning(tune.Model), worldgen.OptionsFromTuning(tune.WorldGen, tune.Model.Seed))
		if err != nil {
			logger.Fatalf("worldgen: %v", err)
		}
		logger.Printf("generated %s model: %d fields, %d plates in %s",
			tune.WorldGen.Preset, g.Size(), len(m.Plates()), time.Since(start).Round(time.Millisecond))
	}
	if *modelID == "" {
		*modelID = uuid.NewString()
	}

	modelDir := filepath.Join(*dataDir, "models", *modelID)
	_ = os.MkdirAll(modelDir, 0o755)

	// Optional: read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(modelDir, "index", "model.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	models, err := store.Open(filepath.Join(*dataDir, "models.sqlite"))
	if err != nil {
		logger.Fatalf("open model store: %v", err)
	}
	defer models.Close()

	sess := session.New(session.ConfigFromTuning(*modelID, tune), m, logger)

	stepLog := persistlog.NewStepLogger(modelDir, tune.Session.ArchiveEverySteps)
	auditLog := persistlog.NewAuditLogger(modelDir, tune.Session.ArchiveEverySteps)
	defer stepLog.Close()
	defer auditLog.Close()
	if idx != nil {
		sess.SetStepLoggers(stepLog, idx)
		sess.SetAuditLogger(multiAuditLogger{auditLog, idx})
	} else {
		sess.SetStepLoggers(stepLog)
		sess.SetAuditLogger(auditLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	sess.SetSnapshotSink(snapCh)
	w := &snapshotWriter{
		dataDir:    *dataDir,
		epochSteps: tune.Session.ArchiveEverySteps,
		idx:        idx,
		log:        logger,
	}
	go w.run(ctx, snapCh)

	go func() {
		if err := sess.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("session stopped: %v", err)
		}
	}()

	a := &app{sess: sess, store: models, idx: idx, log: logger}
	mux := http.NewServeMux()
	a.routes(mux, envBool("PS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), envBool("PS_ENABLE_PPROF_HTTP", false))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("model %s listening on %s", *modelID, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

type multiAuditLogger []session.AuditLogger

func (m multiAuditLogger) WriteAudit(entry persistlog.AuditEntry) error {
	for _, l := range m {
		_ = l.WriteAudit(entry)
	}
	return nil
}
