package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"platesim/internal/persistence/indexdb"
	"platesim/internal/persistence/store"
	"platesim/internal/sim/session"
	"platesim/internal/sim/tectonics"
	"platesim/internal/transport/observer"
)

type app struct {
	sess  *session.Session
	store *store.Store
	idx   *indexdb.SQLiteIndex
	log   *log.Logger
}

func (a *app) routes(mux *http.ServeMux, enableAdmin, enablePprof bool) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if a.sess.Metrics().LastError != "" {
			http.Error(rw, "model stopped", http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)

	obsSrv := observer.NewServer(a.sess, a.log)
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("GET /admin/v1/state", a.local(a.handleState))
		mux.HandleFunc("POST /admin/v1/snapshot", a.local(a.handleSnapshot))
		mux.HandleFunc("POST /admin/v1/pause", a.local(a.handlePause(true)))
		mux.HandleFunc("POST /admin/v1/resume", a.local(a.handlePause(false)))
		mux.HandleFunc("POST /admin/v1/fields", a.local(a.handleEditFields))
		mux.HandleFunc("GET /admin/v1/models", a.local(a.handleListModels))
		mux.HandleFunc("POST /admin/v1/models", a.local(a.handleSaveModel))
		mux.HandleFunc("POST /admin/v1/models/{id}/load", a.local(a.handleLoadModel))
		mux.HandleFunc("DELETE /admin/v1/models/{id}", a.local(a.handleDeleteModel))
	} else {
		a.log.Printf("admin endpoints disabled (PS_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		a.log.Printf("pprof endpoints disabled (PS_ENABLE_PPROF_HTTP=false)")
	}
}

func (a *app) local(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := a.sess.Metrics()
	id := m.ModelID

	// Minimal Prometheus exposition format.
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{model=%q} %v\n", name, id, v)
	}
	gauge("platesim_model_step", "Current model step.", m.Step)
	gauge("platesim_model_plates", "Current number of plates.", m.Plates)
	gauge("platesim_model_fields", "Fields owned by plates.", m.Fields)
	gauge("platesim_model_step_ms", "Last step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))
	gauge("platesim_observers", "Connected observers.", m.Observers)
	paused := 0
	if m.Paused {
		paused = 1
	}
	gauge("platesim_model_paused", "1 while stepping is paused.", paused)
	stopped := 0
	if m.LastError != "" {
		stopped = 1
	}
	gauge("platesim_model_stopped", "1 after a fatal step error.", stopped)

	fmt.Fprintf(rw, "# HELP platesim_fields_by_state Fields in a geological state.\n")
	fmt.Fprintf(rw, "# TYPE platesim_fields_by_state gauge\n")
	for _, s := range []struct {
		name string
		n    int
	}{
		{"subducting", m.Subducting},
		{"orogeny", m.Orogeny},
		{"subplate", m.Subplate},
		{"trench", m.Trenches},
		{"eruption", m.Eruptions},
		{"earthquake", m.Earthquakes},
	} {
		fmt.Fprintf(rw, "platesim_fields_by_state{model=%q,state=%q} %d\n", id, s.name, s.n)
	}

	fmt.Fprintf(rw, "# HELP platesim_steps_total Steps run by this process.\n")
	fmt.Fprintf(rw, "# TYPE platesim_steps_total counter\n")
	fmt.Fprintf(rw, "platesim_steps_total{model=%q} %d\n", id, m.StepsTotal)
	fmt.Fprintf(rw, "# HELP platesim_snapshot_drops_total Snapshots dropped because the writer was busy.\n")
	fmt.Fprintf(rw, "# TYPE platesim_snapshot_drops_total counter\n")
	fmt.Fprintf(rw, "platesim_snapshot_drops_total{model=%q} %d\n", id, m.SnapshotDrops)

	if a.idx != nil {
		s := a.idx.Stats()
		fmt.Fprintf(rw, "# HELP platesim_index_queue_depth Index writer queue depth.\n")
		fmt.Fprintf(rw, "# TYPE platesim_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "platesim_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP platesim_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE platesim_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "platesim_index_queue_capacity %d\n", s.QueueCapacity)
		fmt.Fprintf(rw, "# HELP platesim_index_drops_total Index rows dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE platesim_index_drops_total counter\n")
		fmt.Fprintf(rw, "platesim_index_drops_total{kind=%q} %d\n", "step", s.DropStepTotal)
		fmt.Fprintf(rw, "platesim_index_drops_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "platesim_index_drops_total{kind=%q} %d\n", "snapshot", s.DropSnapshotTotal)
		fmt.Fprintf(rw, "platesim_index_drops_total{kind=%q} %d\n", "plates", s.DropPlatesTotal)
		fmt.Fprintf(rw, "platesim_index_drops_total{kind=%q} %d\n", "archive", s.DropArchiveTotal)
	}
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, struct {
		Info    session.Info    `json:"info"`
		Metrics session.Metrics `json:"metrics"`
	}{a.sess.Info(), a.sess.Metrics()})
}

func (a *app) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	step, err := a.sess.RequestSnapshot(ctx, actor(r))
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "step": step, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "step": step})
}

func (a *app) handlePause(paused bool) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := a.sess.SetPaused(ctx, actor(r), paused); err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "paused": paused})
	}
}

type editFieldsRequest struct {
	PlateID int    `json:"plate_id"`
	FieldID int    `json:"field_id"`
	Radius  int    `json:"radius"`
	Type    string `json:"type"`
}

func (a *app) handleEditFields(rw http.ResponseWriter, r *http.Request) {
	var req editFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json: " + err.Error()})
		return
	}
	typ, err := tectonics.ParseFieldType(req.Type)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	err = a.sess.EditFields(ctx, actor(r), session.FieldEdit{
		PlateID: tectonics.PlateID(req.PlateID),
		FieldID: req.FieldID,
		Radius:  req.Radius,
		Type:    typ,
	})
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (a *app) handleListModels(rw http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.store.List(r.Context(), limit)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	type row struct {
		store.Entry
		Size string `json:"size"`
	}
	rows := make([]row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, row{Entry: e, Size: e.Size()})
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "models": rows})
}

// handleSaveModel stores the running model under a fresh id.
func (a *app) handleSaveModel(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	snap, err := a.sess.ExportSnapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	id, err := a.store.Put(ctx, snap)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "id": id, "step": snap.Header.Step})
}

func (a *app) handleLoadModel(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	snap, err := a.store.Get(ctx, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	step, err := a.sess.LoadSnapshot(ctx, actor(r), snap)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "model_id": snap.Header.ModelID, "step": step})
}

func (a *app) handleDeleteModel(rw http.ResponseWriter, r *http.Request) {
	err := a.store.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// actor names the caller in audit entries.
func actor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Actor")); v != "" {
		return v
	}
	return "http:" + r.RemoteAddr
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
