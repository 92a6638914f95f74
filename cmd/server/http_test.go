package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"platesim/internal/persistence/snapshot"
	"platesim/internal/persistence/store"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/session"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/worldgen"
)

func newTestApp(t *testing.T) (*httptest.Server, *session.Session) {
	t.Helper()
	g, err := grid.New(grid.Options{Divisions: 6})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	m, err := worldgen.Generate(g, tectonics.DefaultConfig(), worldgen.Options{
		Preset: worldgen.PresetTwoPlates, MaxAngularSpeed: 0.05,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sess := session.New(session.Config{ModelID: "test_model", StepRateHz: 20}, m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sess.Run(ctx) }()

	st, err := store.Open(filepath.Join(t.TempDir(), "models.sqlite"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a := &app{sess: sess, store: st, log: log.New(io.Discard, "", 0)}
	mux := http.NewServeMux()
	a.routes(mux, true, false)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, sess
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := newTestApp(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		`platesim_model_step{model="test_model"}`,
		`platesim_model_plates{model="test_model"} 2`,
		`platesim_fields_by_state{model="test_model",state="subducting"}`,
	} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("metrics missing %q:\n%s", want, b)
		}
	}
}

func TestSnapshotWithoutSink(t *testing.T) {
	ts, _ := newTestApp(t)
	code, out := doJSON(t, http.MethodPost, ts.URL+"/admin/v1/snapshot", "")
	if code != http.StatusServiceUnavailable || out["ok"] != false {
		t.Fatalf("snapshot = %d %v", code, out)
	}
}

func TestEditFieldsValidation(t *testing.T) {
	ts, _ := newTestApp(t)
	code, _ := doJSON(t, http.MethodPost, ts.URL+"/admin/v1/fields", `{"plate_id":0,"field_id":0,"type":"lava"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown type = %d", code)
	}
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/admin/v1/fields", `{"plate_id":7,"field_id":0,"type":"ocean"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("missing plate = %d", code)
	}
}

func TestModelStoreRoundTrip(t *testing.T) {
	ts, sess := newTestApp(t)
	code, out := doJSON(t, http.MethodPost, ts.URL+"/admin/v1/pause", "")
	if code != 200 {
		t.Fatalf("pause = %d %v", code, out)
	}

	code, out = doJSON(t, http.MethodPost, ts.URL+"/admin/v1/models", "")
	if code != 200 {
		t.Fatalf("save = %d %v", code, out)
	}
	id, _ := out["id"].(string)
	if id == "" {
		t.Fatalf("save returned no id: %v", out)
	}

	code, out = doJSON(t, http.MethodGet, ts.URL+"/admin/v1/models", "")
	if code != 200 {
		t.Fatalf("list = %d %v", code, out)
	}
	if models, _ := out["models"].([]any); len(models) != 1 {
		t.Fatalf("list = %v", out)
	}

	code, out = doJSON(t, http.MethodPost, ts.URL+"/admin/v1/models/"+id+"/load", "")
	if code != 200 || out["model_id"] != id {
		t.Fatalf("load = %d %v", code, out)
	}
	if sess.Info().ModelID != id {
		t.Fatalf("session model id = %q, want %q", sess.Info().ModelID, id)
	}

	code, _ = doJSON(t, http.MethodDelete, ts.URL+"/admin/v1/models/"+id, "")
	if code != 200 {
		t.Fatalf("delete = %d", code)
	}
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/admin/v1/models/"+id+"/load", "")
	if code != http.StatusNotFound {
		t.Fatalf("load after delete = %d", code)
	}
}

func TestSnapshotWriterArchivesEpochs(t *testing.T) {
	dir := t.TempDir()
	w := &snapshotWriter{dataDir: dir, epochSteps: 10, log: log.New(io.Discard, "", 0)}
	for _, step := range []uint64{5, 10} {
		if _, err := w.write(snapshot.SnapshotV1{Header: snapshot.Header{Version: snapshot.Version, ModelID: "m", Step: step}}); err != nil {
			t.Fatalf("write %d: %v", step, err)
		}
	}
	modelDir := filepath.Join(dir, "models", "m")
	if got := latestSnapshot(modelDir); filepath.Base(got) != "10.snap.zst" {
		t.Fatalf("latest = %q", got)
	}
	if _, err := snapshot.ReadSnapshot(filepath.Join(modelDir, "archives", "epoch_001", "10.snap.zst")); err != nil {
		t.Fatalf("archived snapshot: %v", err)
	}
}
