package tectonics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"platesim/internal/persistence/snapshot"
)

// minSlabNeighbours is the number of subducting neighbours needed for a
// reliable slab gradient.
const minSlabNeighbours = 5

// Subduction tracks how far an oceanic field has travelled under the
// overriding plate. Only Dist is persisted; the collision partner and
// relative velocity are set anew each step.
type Subduction struct {
	field *Field
	Dist  float64

	topPlate         PlateID
	relativeVelocity mgl64.Vec3
	colliding        bool
}

func newSubduction(f *Field) *Subduction {
	return &Subduction{field: f, topPlate: NoPlate}
}

func (s *Subduction) Field() *Field { return s.field }

func (s *Subduction) Serialize() snapshot.SubductionV1 {
	return snapshot.SubductionV1{Dist: s.Dist}
}

func DeserializeSubduction(v snapshot.SubductionV1, f *Field) *Subduction {
	s := newSubduction(f)
	s.Dist = v.Dist
	return s
}

// TopPlate is the overriding plate of the current step, or NoPlate.
func (s *Subduction) TopPlate() PlateID { return s.topPlate }

// RelativeVelocity returns the velocity relative to the overriding plate and
// whether a collision was registered this step.
func (s *Subduction) RelativeVelocity() (mgl64.Vec3, bool) {
	return s.relativeVelocity, s.colliding
}

// Progress is (Dist/max)², clamped to 1.
func (s *Subduction) Progress() float64 {
	r := s.Dist / s.field.env.cfg.MaxSubductionDist()
	return math.Min(1, r*r)
}

func (s *Subduction) Active() bool { return s.Dist >= 0 }

func (s *Subduction) setCollision(top *Field) {
	s.topPlate = top.PlateID
	s.relativeVelocity = s.field.LinearVelocity().Sub(top.LinearVelocity())
	s.colliding = true
}

func (s *Subduction) resetCollision() {
	s.topPlate = NoPlate
	s.relativeVelocity = mgl64.Vec3{}
	s.colliding = false
}

func (s *Subduction) forEachSubductingNeighbour(fn func(*Field)) {
	s.field.ForEachNeighbour(func(n *Field) {
		if n.Subduction != nil {
			fn(n)
		}
	})
}

func (s *Subduction) avgProgress() float64 {
	var sum float64
	var count int
	s.forEachSubductingNeighbour(func(n *Field) {
		sum += n.Subduction.Progress()
		count++
	})
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// slabGradient estimates the direction in which the slab deepens. ok is
// false when fewer than minSlabNeighbours neighbours subduct.
func (s *Subduction) slabGradient() (g mgl64.Vec3, ok bool) {
	own := s.avgProgress()
	count := 0
	s.forEachSubductingNeighbour(func(n *Field) {
		diff := n.Subduction.avgProgress() - own
		g = g.Add(n.absPos.Sub(s.field.absPos).Mul(diff))
		count++
	})
	if count < minSlabNeighbours || g.Len() == 0 {
		return mgl64.Vec3{}, false
	}
	return g.Normalize(), true
}

// minNeighbouringDist treats non-subducting neighbours as 0.
func (s *Subduction) minNeighbouringDist() float64 {
	min := math.Inf(1)
	s.field.ForEachNeighbour(func(n *Field) {
		d := 0.0
		if n.Subduction != nil {
			d = n.Subduction.Dist
		}
		if d < min {
			min = d
		}
	})
	return min
}

func (s *Subduction) update(dt float64) {
	f := s.field
	e := f.env
	max := e.cfg.MaxSubductionDist()
	if s.Dist > max {
		f.Alive = false
		return
	}
	diff := e.cfg.RevertSubductionVel
	if s.colliding {
		diff = s.relativeVelocity.Len() * dt
	}
	// Neighbouring slab fields may not drift too far apart; this happens
	// next to transform-like boundaries.
	s.Dist = math.Min(s.minNeighbouringDist()+e.fieldDiameter, s.Dist+diff)
	if s.Dist > max {
		f.Alive = false
		return
	}
	s.tryToDetach()
}

func (s *Subduction) tryToDetach() {
	cfg := &s.field.env.cfg
	if !s.colliding || s.topPlate == NoPlate || s.Progress() < cfg.MinProgressToDetach {
		return
	}
	if s.relativeVelocity.Len() <= cfg.MinSpeedToDetach {
		return
	}
	g, ok := s.slabGradient()
	if !ok {
		return
	}
	if angle(g, s.relativeVelocity) <= cfg.MinAngleToDetach*math.Pi {
		return
	}
	var slab []*Field
	s.forEachSubductingNeighbour(func(n *Field) {
		if n.Alive {
			slab = append(slab, n)
		}
	})
	s.moveToTopPlate()
	for _, n := range slab {
		n.Subduction.topPlate = s.topPlate
		n.Subduction.moveToTopPlate()
	}
}

func (s *Subduction) moveToTopPlate() {
	if top := s.field.env.plate(s.topPlate); top != nil {
		top.addToSubplate(s.field)
	}
}

func angle(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return 0
	}
	return math.Acos(mgl64.Clamp(a.Dot(b)/(la*lb), -1, 1))
}
