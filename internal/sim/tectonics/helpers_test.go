package tectonics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"platesim/internal/sim/grid"
)

func testGrid(t *testing.T, divisions int) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.Options{Divisions: divisions})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

// testConfig keeps angular velocities constant and the plate set fixed.
func testConfig() Config {
	c := DefaultConfig()
	c.Dynamics = false
	c.NewOceanicCrust = false
	return c
}

// twoPlates splits the sphere at x = 0: an ocean plate (x < 0, density
// oceanDensity) and a continent plate (x >= 0, density continentDensity).
// The ocean plate spins about -z, so for y > 0 it moves into the continent.
func twoPlates(t *testing.T, g *grid.Grid, cfg Config, spin float64) (*Model, *Plate, *Plate) {
	t.Helper()
	m := NewModel(g, cfg)
	ocean, err := m.AddPlate(PlateOptions{ID: 0, Density: 1, Hue: 200, AngularVelocity: mgl64.Vec3{0, 0, -spin}})
	if err != nil {
		t.Fatalf("add ocean plate: %v", err)
	}
	cont, err := m.AddPlate(PlateOptions{ID: 1, Density: 2, Hue: 30})
	if err != nil {
		t.Fatalf("add continent plate: %v", err)
	}
	for id := 0; id < g.Size(); id++ {
		if g.Position(id)[0] < 0 {
			_, err = ocean.AddField(FieldOptions{ID: id, Type: Ocean, Age: cfg.MaxAge()})
		} else {
			_, err = cont.AddField(FieldOptions{ID: id, Type: Continent})
		}
		if err != nil {
			t.Fatalf("add field %d: %v", id, err)
		}
	}
	return m, ocean, cont
}

func mustStep(t *testing.T, m *Model, dt float64) {
	t.Helper()
	if err := m.Step(dt); err != nil {
		t.Fatalf("step %d: %v", m.StepIdx(), err)
	}
}

func floatPtr(v float64) *float64 { return &v }
