package main

import (
	"strings"
	"testing"

	persistlog "platesim/internal/persistence/log"
	"platesim/internal/sim/grid"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/worldgen"
)

func TestVerifyLog(t *testing.T) {
	g, err := grid.New(grid.Options{Divisions: 6})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	m, err := worldgen.Generate(g, tectonics.DefaultConfig(), worldgen.Options{
		Preset: worldgen.PresetTwoPlates, MaxAngularSpeed: 0.05, HotSpotStrength: 1,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	start := m.Serialize("m")

	dir := t.TempDir()
	logger := persistlog.NewStepLogger(dir, 4)
	for i := 0; i < 6; i++ {
		if err := m.Step(m.Config().Timestep); err != nil {
			t.Fatalf("step: %v", err)
		}
		if err := logger.WriteStep(m.LogEntry(0)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := tectonics.DeserializeModel(g, start)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	checked, err := verifyLog(r, dir+"/steps", 4)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if checked != 4 {
		t.Fatalf("checked = %d, want 4", checked)
	}

	// A model that drifted from the log is reported.
	r, _ = tectonics.DeserializeModel(g, start)
	r.Plate(0).AngularVelocity = r.Plate(0).AngularVelocity.Mul(2)
	if _, err := verifyLog(r, dir+"/steps", 0); err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("err = %v, want digest mismatch", err)
	}
}
