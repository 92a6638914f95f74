package tectonics

import (
	"math"
	"testing"
)

func singleOceanField(t *testing.T) (*Model, *Plate, *Field) {
	t.Helper()
	m := NewModel(testGrid(t, 4), testConfig())
	p, err := m.AddPlate(PlateOptions{ID: 0, Density: 1})
	if err != nil {
		t.Fatalf("plate: %v", err)
	}
	f, err := p.AddField(FieldOptions{ID: 10, Type: Ocean})
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	return m, p, f
}

func TestFieldDefaults(t *testing.T) {
	_, p, f := singleOceanField(t)
	if f.BaseElevation != 0 || f.BaseCrustThickness != 0.2 {
		t.Fatalf("ocean defaults = %v/%v", f.BaseElevation, f.BaseCrustThickness)
	}
	c, err := p.AddField(FieldOptions{ID: 11, Type: Continent})
	if err != nil {
		t.Fatalf("continent: %v", err)
	}
	if c.BaseElevation != 0.55 || c.BaseCrustThickness != 0.55 {
		t.Fatalf("continent defaults = %v/%v", c.BaseElevation, c.BaseCrustThickness)
	}
	e, err := p.AddField(FieldOptions{ID: 12, Type: Island, Elevation: floatPtr(0.7), CrustThickness: floatPtr(0.9)})
	if err != nil {
		t.Fatalf("island: %v", err)
	}
	if e.BaseElevation != 0.7 || e.BaseCrustThickness != 0.9 || !e.ContinentalCrust() {
		t.Fatalf("island overrides not applied: %+v", e)
	}
	if _, err := p.AddField(FieldOptions{ID: 11, Type: Ocean}); err == nil {
		t.Fatalf("expected duplicate field error")
	}
}

// Scenario 2: an ocean field aged exactly maxAge sits at its base elevation.
func TestOceanAtMaxAgeHasBaseElevation(t *testing.T) {
	m, _, f := singleOceanField(t)
	f.BaseElevation = 0.13
	f.Age = m.Config().MaxAge()
	if got := f.Elevation(); got != f.BaseElevation {
		t.Fatalf("elevation = %v, want exactly %v", got, f.BaseElevation)
	}
	f.Age = 10 * m.Config().MaxAge()
	if got := f.Elevation(); got != f.BaseElevation {
		t.Fatalf("old crust elevation = %v", got)
	}
}

func TestYoungOceanSitsAtRidgeElevation(t *testing.T) {
	m, _, f := singleOceanField(t)
	if got, want := f.Elevation(), m.Config().OceanicRidgeElevation; math.Abs(got-want) > 1e-12 {
		t.Fatalf("age 0 elevation = %v, want %v", got, want)
	}
	f.Age = m.Config().MaxAge() / 2
	if got := f.Elevation(); got <= 0 || got >= m.Config().OceanicRidgeElevation {
		t.Fatalf("half-aged elevation %v not between base and ridge", got)
	}
	if got := f.CrustThickness(); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("crust thickness = %v, want 0.1", got)
	}
}

func TestElevationNeverExceedsOne(t *testing.T) {
	_, p, _ := singleOceanField(t)
	c, _ := p.AddField(FieldOptions{ID: 20, Type: Continent, Elevation: floatPtr(0.95)})
	c.Orogeny = newOrogeny(c)
	c.Orogeny.MaxFoldingStress = 1
	c.VolcanicAct = newVolcanicActivity(c)
	c.VolcanicAct.Value = 1
	if got := c.Elevation(); got != 1 {
		t.Fatalf("elevation = %v, want clamped 1", got)
	}
	if got := c.CrustThickness(); math.Abs(got-(c.BaseCrustThickness+0.8)) > 1e-12 {
		t.Fatalf("mountain roots missing: %v", got)
	}
}

func TestTrenchAndSubductionElevation(t *testing.T) {
	m, _, f := singleOceanField(t)
	f.Age = m.Config().MaxAge()
	f.Subduction = newSubduction(f)
	f.Subduction.Dist = m.Config().MaxSubductionDist()
	if got, want := f.Elevation(), m.Config().SubductionMinElevation; got != want {
		t.Fatalf("fully subducted elevation = %v, want %v", got, want)
	}
	f.Subduction = nil
	f.Trench = true
	if got := f.Elevation(); got != -1.5 {
		t.Fatalf("trench elevation = %v", got)
	}
	if f.CrustThickness() != 0.1 || f.LithosphereThickness() != 0.1 {
		t.Fatalf("trench crust/lithosphere = %v/%v", f.CrustThickness(), f.LithosphereThickness())
	}
}

func TestMassUsesCrustDensity(t *testing.T) {
	m, p, f := singleOceanField(t)
	c, _ := p.AddField(FieldOptions{ID: 30, Type: Continent})
	cfg := m.Config()
	if got, want := f.Mass(), cfg.MassModifier*f.Area()*cfg.OceanDensity; math.Abs(got-want) > 1e-12 {
		t.Fatalf("ocean mass = %v, want %v", got, want)
	}
	if c.Mass() >= f.Mass() {
		t.Fatalf("continental crust should be lighter: %v >= %v", c.Mass(), f.Mass())
	}
}

func TestSetDefaultPropsDropsOverlays(t *testing.T) {
	_, p, f := singleOceanField(t)
	f.Orogeny = newOrogeny(f)
	f.Subduction = newSubduction(f)
	if err := p.SetFieldType(f.ID, Continent); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if f.Orogeny != nil || f.Subduction != nil || f.BaseElevation != 0.55 {
		t.Fatalf("defaults not applied: %+v", f)
	}
	if err := p.SetFieldType(999, Ocean); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestForEachFieldWithinIsBounded(t *testing.T) {
	g := testGrid(t, 8)
	m := NewModel(g, testConfig())
	p, _ := m.AddPlate(PlateOptions{ID: 0, Density: 1})
	for id := 0; id < g.Size(); id++ {
		p.AddField(FieldOptions{ID: id})
	}
	seen := map[int]int{}
	p.ForEachFieldWithin(0, 2, func(f *Field, d int) { seen[f.ID] = d })
	if seen[0] != 0 {
		t.Fatalf("start not visited at distance 0")
	}
	for _, n := range g.Neighbors(0) {
		if seen[n] != 1 {
			t.Fatalf("neighbour %d at distance %d", n, seen[n])
		}
	}
	for id, d := range seen {
		if d > 2 {
			t.Fatalf("field %d visited at distance %d", id, d)
		}
	}
	// Cell 0 is an icosahedron corner: 1 + 5 + 10 cells.
	if len(seen) != 16 {
		t.Fatalf("visited %d fields", len(seen))
	}
}
