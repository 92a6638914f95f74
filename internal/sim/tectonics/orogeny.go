package tectonics

import (
	"math"

	"platesim/internal/persistence/snapshot"
)

// Orogeny accumulates folding stress on a field. The stress never decreases.
type Orogeny struct {
	field            *Field
	MaxFoldingStress float64

	// folding is set while the field is in continent–continent contact this step.
	folding bool
}

func newOrogeny(f *Field) *Orogeny { return &Orogeny{field: f} }

func (o *Orogeny) Field() *Field { return o.field }

// Folding reports an active continental collision in the current step.
func (o *Orogeny) Folding() bool { return o.folding }

func (o *Orogeny) Serialize() snapshot.OrogenyV1 {
	return snapshot.OrogenyV1{MaxFoldingStress: o.MaxFoldingStress}
}

func DeserializeOrogeny(v snapshot.OrogenyV1, f *Field) *Orogeny {
	return &Orogeny{field: f, MaxFoldingStress: v.MaxFoldingStress}
}

func (o *Orogeny) resetCollision() { o.folding = false }

// setCollision registers a continental collision with other.
func (o *Orogeny) setCollision(other *Field) {
	o.folding = true
	o.calcFoldingStress(1)
	// Lets stress spread to the denser side of the boundary too.
	if other.Density() > o.field.Density() && other.Orogeny != nil {
		other.Orogeny.setFoldingStress(o.MaxFoldingStress)
	}
}

func (o *Orogeny) calcFoldingStress(scale float64) {
	cfg := &o.field.env.cfg
	force := o.field.Force().Len()
	stress := math.Min(1, force*cfg.FoldingStressFactor*scale/o.field.Area())
	o.setFoldingStress(stress)
}

func (o *Orogeny) setFoldingStress(stress float64) {
	if o.MaxFoldingStress < stress {
		o.MaxFoldingStress = stress
		o.spread()
	}
}

// spread pushes decayed stress to continental neighbours. Each hop loses
// fieldDiameter·StressSpreadingFactor and spreading stops below MinSpreadStress.
func (o *Orogeny) spread() {
	e := o.field.env
	adj := o.MaxFoldingStress - e.fieldDiameter*e.cfg.StressSpreadingFactor
	if adj < e.cfg.MinSpreadStress {
		return
	}
	o.field.ForEachNeighbour(func(n *Field) {
		if n.IsOcean() || !n.Alive {
			return
		}
		if n.Orogeny == nil {
			n.Orogeny = newOrogeny(n)
		}
		n.Orogeny.setFoldingStress(adj)
	})
}
