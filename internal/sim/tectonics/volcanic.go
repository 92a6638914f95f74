package tectonics

import (
	"math"

	"platesim/internal/persistence/snapshot"
)

// fieldRef is a non-owning reference to a field of some plate.
type fieldRef struct {
	plate PlateID
	id    int
}

func (r fieldRef) resolve(e *env) *Field {
	p := e.plate(r.plate)
	if p == nil {
		return nil
	}
	return p.fields[r.id]
}

// VolcanicActivity builds up magma above a subducting slab.
type VolcanicActivity struct {
	field *Field
	Value float64

	colliding    fieldRef
	hasColliding bool
}

func newVolcanicActivity(f *Field) *VolcanicActivity { return &VolcanicActivity{field: f} }

func (v *VolcanicActivity) Field() *Field { return v.field }

func (v *VolcanicActivity) Serialize() snapshot.VolcanicActivityV1 {
	return snapshot.VolcanicActivityV1{Value: v.Value}
}

func DeserializeVolcanicActivity(s snapshot.VolcanicActivityV1, f *Field) *VolcanicActivity {
	return &VolcanicActivity{field: f, Value: s.Value}
}

// CollidingField is the subducting field registered this step, or nil.
func (v *VolcanicActivity) CollidingField() *Field {
	if !v.hasColliding {
		return nil
	}
	return v.colliding.resolve(v.field.env)
}

func (v *VolcanicActivity) Active() bool { return v.hasColliding || v.Value > 0 }

func (v *VolcanicActivity) RisingMagma() bool {
	cf := v.CollidingField()
	return cf != nil && cf.Subduction != nil && v.Value >= v.field.env.cfg.RisingMagmaThreshold
}

func (v *VolcanicActivity) setCollision(bottom *Field) {
	v.colliding = fieldRef{plate: bottom.PlateID, id: bottom.ID}
	v.hasColliding = true
}

func (v *VolcanicActivity) resetCollision() { v.hasColliding = false }

func (v *VolcanicActivity) update(dt float64) {
	cfg := &v.field.env.cfg
	if cf := v.CollidingField(); cf != nil && cf.Subduction != nil {
		v.Value = math.Min(1, v.Value+cf.Subduction.Progress()*cfg.VolcanicActivityRise*dt)
		return
	}
	v.Value = math.Max(0, v.Value-cfg.VolcanicActivityDecay*dt)
}

// VolcanicEruption is a visible eruption with a finite lifespan.
type VolcanicEruption struct {
	field    *Field
	Lifespan float64
}

func newVolcanicEruption(f *Field) *VolcanicEruption {
	return &VolcanicEruption{field: f, Lifespan: f.env.cfg.VolcanicEruptionLifespan}
}

func (v *VolcanicEruption) Field() *Field { return v.field }

func (v *VolcanicEruption) Serialize() snapshot.VolcanicEruptionV1 {
	return snapshot.VolcanicEruptionV1{Lifespan: v.Lifespan}
}

func DeserializeVolcanicEruption(s snapshot.VolcanicEruptionV1, f *Field) *VolcanicEruption {
	return &VolcanicEruption{field: f, Lifespan: s.Lifespan}
}

func (v *VolcanicEruption) Active() bool { return v.Lifespan > 0 }

func (v *VolcanicEruption) update(dt float64) { v.Lifespan -= dt }

// shouldCreateVolcanicEruption: above rising magma, or rarely on a young
// oceanic ridge.
func shouldCreateVolcanicEruption(f *Field) bool {
	e := f.env
	if f.RisingMagma() {
		return e.rng.Float64() < e.cfg.VolcanicEruptionProbability
	}
	if f.IsOcean() && f.Boundary && f.Subduction == nil && f.DivergentBoundaryVolcanicZone() {
		return e.rng.Float64() < e.cfg.RidgeEruptionProbability
	}
	return false
}
