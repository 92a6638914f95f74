package tectonics

import "sort"

type CollisionKind uint8

const (
	NoCollision CollisionKind = iota
	OrogenyCollision
	SubductionCollision
)

func (k CollisionKind) String() string {
	switch k {
	case OrogenyCollision:
		return "orogeny"
	case SubductionCollision:
		return "subduction"
	default:
		return "none"
	}
}

// Collision records one classified field pair.
type Collision struct {
	Field      int
	OtherPlate PlateID
	Other      int
	Kind       CollisionKind
}

// ClassifyCollision decides what happens when a meets b. For subduction it
// returns the sinking (bottom) and the overriding (top) field.
func ClassifyCollision(a, b *Field) (kind CollisionKind, bottom, top *Field) {
	ac, bc := a.ContinentalCrust(), b.ContinentalCrust()
	switch {
	case ac && bc:
		return OrogenyCollision, nil, nil
	case !ac && bc:
		bottom, top = a, b
	case ac && !bc:
		bottom, top = b, a
	default:
		da, db := a.Density(), b.Density()
		if da == db {
			return OrogenyCollision, nil, nil
		}
		if da > db {
			bottom, top = a, b
		} else {
			bottom, top = b, a
		}
	}
	// The overriding field is itself sinking under the other plate: the
	// subduction is blocked and the crust folds instead.
	if top.Subduction != nil && top.Subduction.Dist > 0 {
		return OrogenyCollision, nil, nil
	}
	return SubductionCollision, bottom, top
}

// collisionCandidates are boundary fields plus fields already subducting,
// which may lie deep under the other plate. Sorted by id.
func (p *Plate) collisionCandidates() []*Field {
	out := make([]*Field, 0, len(p.boundary))
	seen := make(map[int]bool, len(p.boundary))
	for _, id := range p.boundary {
		out = append(out, p.fields[id])
		seen[id] = true
	}
	for _, id := range p.FieldIDs() {
		if f := p.fields[id]; f.Subduction != nil && !seen[id] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Field) ignoresCollisions() bool {
	return f.NoCollisionDist > 0 && f.Age < f.NoCollisionDist
}

// DetectCollisionWith classifies and applies every contact between this
// plate's candidate fields and other. Fields without a partner are skipped.
func (p *Plate) DetectCollisionWith(other *Plate) []Collision {
	var out []Collision
	for _, f := range p.collisionCandidates() {
		if !f.Alive || f.ignoresCollisions() {
			continue
		}
		o := other.FieldAtAbsolutePos(f.absPos)
		if o == nil || !o.Alive || o.ignoresCollisions() {
			continue
		}
		kind := fieldsCollision(f, o)
		out = append(out, Collision{Field: f.ID, OtherPlate: other.ID, Other: o.ID, Kind: kind})
	}
	return out
}

func fieldsCollision(a, b *Field) CollisionKind {
	a.colliding = true
	b.colliding = true
	kind, bottom, top := ClassifyCollision(a, b)
	switch kind {
	case OrogenyCollision:
		a.draggingPlate = b.PlateID
		b.draggingPlate = a.PlateID
		lower, higher := a, b
		if b.Density() < a.Density() {
			lower, higher = b, a
		}
		// Oceanic crust does not fold; the contact still drags both plates.
		if !lower.IsOcean() {
			ensureOrogeny(lower).setCollision(higher)
		}
		if a.Density() == b.Density() && !higher.IsOcean() {
			ensureOrogeny(higher).setCollision(lower)
		}
	case SubductionCollision:
		if bottom.Subduction == nil {
			bottom.Subduction = newSubduction(bottom)
		}
		bottom.Subduction.setCollision(top)
		if top.VolcanicAct == nil {
			top.VolcanicAct = newVolcanicActivity(top)
		}
		top.VolcanicAct.setCollision(bottom)
		if top.ContinentalCrust() {
			// Andean margin: the continent is dragged and folds, without
			// blocking the trench.
			top.draggingPlate = bottom.PlateID
			ensureOrogeny(top).calcFoldingStress(top.env.cfg.AndeanFoldingFactor)
		}
	}
	return kind
}

func ensureOrogeny(f *Field) *Orogeny {
	if f.Orogeny == nil {
		f.Orogeny = newOrogeny(f)
	}
	return f.Orogeny
}
