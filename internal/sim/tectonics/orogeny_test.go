package tectonics

import (
	"math"
	"testing"
)

func continentalPlate(t *testing.T, divisions int) (*Model, *Plate) {
	t.Helper()
	g := testGrid(t, divisions)
	m := NewModel(g, testConfig())
	p, err := m.AddPlate(PlateOptions{ID: 0, Density: 2})
	if err != nil {
		t.Fatalf("plate: %v", err)
	}
	for id := 0; id < g.Size(); id++ {
		typ := Continent
		if g.Position(id)[1] < -0.5 {
			typ = Ocean
		}
		if _, err := p.AddField(FieldOptions{ID: id, Type: typ}); err != nil {
			t.Fatalf("field: %v", err)
		}
	}
	return m, p
}

func TestFoldingStressNeverDecreases(t *testing.T) {
	_, p := continentalPlate(t, 8)
	o := ensureOrogeny(p.Fields()[0])
	o.setFoldingStress(0.5)
	o.setFoldingStress(0.3)
	if o.MaxFoldingStress != 0.5 {
		t.Fatalf("stress = %v, want 0.5", o.MaxFoldingStress)
	}
	o.setFoldingStress(-1)
	if o.MaxFoldingStress != 0.5 {
		t.Fatalf("negative stress applied")
	}
}

func TestFoldingStressSpreadsWithDecay(t *testing.T) {
	m, p := continentalPlate(t, 16)
	fd := m.env.fieldDiameter
	var src *Field
	for _, f := range p.Fields() {
		if m.Grid().Position(f.ID)[1] > 0.5 {
			src = f
			break
		}
	}
	ensureOrogeny(src).setFoldingStress(1)

	want := 1 - fd*m.Config().StressSpreadingFactor
	for _, id := range m.Grid().Neighbors(src.ID) {
		n := p.Field(id)
		if n.IsOcean() {
			continue
		}
		if n.Orogeny == nil {
			t.Fatalf("neighbour %d did not receive stress", id)
		}
		if math.Abs(n.Orogeny.MaxFoldingStress-want) > 1e-12 {
			t.Fatalf("neighbour stress = %v, want %v", n.Orogeny.MaxFoldingStress, want)
		}
	}
	for _, f := range p.Fields() {
		if f.Orogeny == nil {
			continue
		}
		if f.IsOcean() {
			t.Fatalf("ocean field %d folded", f.ID)
		}
		if s := f.Orogeny.MaxFoldingStress; s < 0 || s > 1 {
			t.Fatalf("field %d stress %v out of range", f.ID, s)
		}
		if f != src && f.Orogeny.MaxFoldingStress >= src.Orogeny.MaxFoldingStress {
			t.Fatalf("field %d got as much stress as the source", f.ID)
		}
		// Each folded field got its stress from a neighbour with strictly more.
		if f != src && !f.AnyNeighbour(func(n *Field) bool {
			return n.Orogeny != nil && n.Orogeny.MaxFoldingStress > f.Orogeny.MaxFoldingStress
		}) {
			t.Fatalf("field %d has no stronger neighbour", f.ID)
		}
	}
}

func TestClassifyCollision(t *testing.T) {
	g := testGrid(t, 4)
	m := NewModel(g, testConfig())
	light, _ := m.AddPlate(PlateOptions{ID: 0, Density: 1})
	heavy, _ := m.AddPlate(PlateOptions{ID: 1, Density: 2})
	twin, _ := m.AddPlate(PlateOptions{ID: 2, Density: 1})
	lo, _ := light.AddField(FieldOptions{ID: 1, Type: Ocean})
	lc, _ := light.AddField(FieldOptions{ID: 2, Type: Continent})
	ho, _ := heavy.AddField(FieldOptions{ID: 1, Type: Ocean})
	hc, _ := heavy.AddField(FieldOptions{ID: 2, Type: Island})
	to, _ := twin.AddField(FieldOptions{ID: 1, Type: Ocean})

	if k, _, _ := ClassifyCollision(lc, hc); k != OrogenyCollision {
		t.Fatalf("continent/island = %v", k)
	}
	// Crust type wins over plate density.
	if k, bottom, top := ClassifyCollision(hc, lo); k != SubductionCollision || bottom != lo || top != hc {
		t.Fatalf("ocean under continent = %v %v %v", k, bottom, top)
	}
	if k, bottom, top := ClassifyCollision(lo, ho); k != SubductionCollision || bottom != ho || top != lo {
		t.Fatalf("ocean/ocean: denser plate must subduct, got %v bottom=%v", k, bottom)
	}
	if k, _, _ := ClassifyCollision(lo, to); k != OrogenyCollision {
		t.Fatalf("equal density = %v", k)
	}
	lo.Subduction = newSubduction(lo)
	lo.Subduction.Dist = 0.01
	if k, _, _ := ClassifyCollision(lo, ho); k != OrogenyCollision {
		t.Fatalf("blocked subduction = %v", k)
	}
}

func TestEqualDensityOceanContactDoesNotFold(t *testing.T) {
	m := NewModel(testGrid(t, 8), testConfig())
	pa, _ := m.AddPlate(PlateOptions{ID: 0, Density: 1})
	pb, _ := m.AddPlate(PlateOptions{ID: 1, Density: 1})
	a, err := pa.AddField(FieldOptions{ID: 40, Type: Ocean})
	if err != nil {
		t.Fatalf("field a: %v", err)
	}
	b, err := pb.AddField(FieldOptions{ID: 40, Type: Ocean})
	if err != nil {
		t.Fatalf("field b: %v", err)
	}
	if kind := fieldsCollision(a, b); kind != OrogenyCollision {
		t.Fatalf("kind = %v, want orogeny", kind)
	}
	if a.Orogeny != nil || b.Orogeny != nil {
		t.Fatalf("ocean fields got orogeny: a=%v b=%v", a.Orogeny != nil, b.Orogeny != nil)
	}
	if a.DraggingPlate() != pb.ID || b.DraggingPlate() != pa.ID {
		t.Fatalf("contact should still drag: a=%v b=%v", a.DraggingPlate(), b.DraggingPlate())
	}

	// Continental crust in the same kind of contact does fold.
	ca, _ := pa.AddField(FieldOptions{ID: 41, Type: Continent})
	cb, _ := pb.AddField(FieldOptions{ID: 41, Type: Continent})
	fieldsCollision(ca, cb)
	if ca.Orogeny == nil || cb.Orogeny == nil || !ca.Orogeny.Folding() {
		t.Fatalf("continental contact did not fold")
	}
}
