package tectonics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Field is the geological state of one grid cell owned by a plate. It is
// addressed by its grid id in the plate's local frame.
type Field struct {
	ID      int
	PlateID PlateID

	Type               FieldType
	Age                float64 // distance travelled since creation
	BaseElevation      float64
	BaseCrustThickness float64
	Boundary           bool
	Trench             bool
	// Marked is a view marker that travels with the field.
	Marked bool
	// OriginalHue tags fields that moved from another plate.
	OriginalHue *int
	// NoCollisionDist: the field ignores collisions until Age exceeds it (0 = none).
	NoCollisionDist float64

	Orogeny          *Orogeny
	Subduction       *Subduction
	VolcanicAct      *VolcanicActivity
	VolcanicEruption *VolcanicEruption
	Earthquake       *Earthquake

	// Alive is false once the field has been consumed; it is removed at the end of the step.
	Alive bool

	env        *env
	inSubplate bool
	localPos   mgl64.Vec3
	absPos     mgl64.Vec3

	// Per-step transient state.
	colliding     bool
	draggingPlate PlateID
}

type FieldOptions struct {
	ID   int
	Type FieldType
	Age  float64
	// Elevation and CrustThickness default to the type's values when nil.
	Elevation      *float64
	CrustThickness *float64
}

func newField(opts FieldOptions) *Field {
	f := &Field{
		ID:            opts.ID,
		PlateID:       NoPlate,
		Type:          opts.Type,
		Age:           opts.Age,
		Alive:         true,
		draggingPlate: NoPlate,
	}
	f.BaseElevation = opts.Type.DefaultElevation()
	if opts.Elevation != nil {
		f.BaseElevation = *opts.Elevation
	}
	f.BaseCrustThickness = opts.Type.DefaultCrustThickness(f.BaseElevation)
	if opts.CrustThickness != nil {
		f.BaseCrustThickness = *opts.CrustThickness
	}
	return f
}

func (f *Field) Plate() *Plate { return f.env.plate(f.PlateID) }

func (f *Field) InSubplate() bool { return f.inSubplate }

// LocalPosition is the cell centroid in the plate frame.
func (f *Field) LocalPosition() mgl64.Vec3 { return f.localPos }

func (f *Field) AbsolutePosition() mgl64.Vec3 { return f.absPos }

func (f *Field) Colliding() bool { return f.colliding }

// DraggingPlate is the plate this field was dragged by during the last collision phase.
func (f *Field) DraggingPlate() PlateID { return f.draggingPlate }

func (f *Field) IsOcean() bool          { return f.Type == Ocean }
func (f *Field) ContinentalCrust() bool { return f.Type.ContinentalCrust() }

// Area in km².
func (f *Field) Area() float64 { return f.env.fieldArea }

func (f *Field) Density() float64 {
	if p := f.Plate(); p != nil {
		return p.Density
	}
	return 0
}

func (f *Field) Mass() float64 {
	d := f.env.cfg.OceanDensity
	if f.ContinentalCrust() {
		d = f.env.cfg.ContinentDensity
	}
	return f.env.cfg.MassModifier * f.Area() * d
}

func (f *Field) NormalizedAge() float64 {
	return math.Min(1, f.Age/f.env.cfg.MaxAge())
}

// DivergentBoundaryZone is where ridge earthquakes happen.
func (f *Field) DivergentBoundaryZone() bool { return f.NormalizedAge() < 0.5 }

func (f *Field) DivergentBoundaryVolcanicZone() bool { return f.NormalizedAge() < 0.2 }

func (f *Field) LinearVelocity() mgl64.Vec3 {
	p := f.Plate()
	if p == nil {
		return mgl64.Vec3{}
	}
	return p.LinearVelocityAt(f.absPos)
}

func (f *Field) Displacement(dt float64) mgl64.Vec3 { return f.LinearVelocity().Mul(dt) }

// Elevation ranges from SubductionMinElevation to 1; 0.5 is sea level.
func (f *Field) Elevation() float64 {
	cfg := &f.env.cfg
	var modifier float64
	if f.IsOcean() {
		if f.Subduction != nil {
			modifier = cfg.SubductionMinElevation * f.Subduction.Progress()
		} else if na := f.NormalizedAge(); na < 1 {
			modifier = (cfg.OceanicRidgeElevation - f.BaseElevation) * (1 - na)
		}
	} else {
		modifier = f.MountainElevation()
	}
	if f.Trench {
		modifier = cfg.TrenchElevation
	}
	return math.Min(1, f.BaseElevation+modifier)
}

func (f *Field) MountainElevation() float64 {
	if !f.ContinentalCrust() {
		return 0
	}
	var volcanic, folding float64
	if f.VolcanicAct != nil {
		volcanic = f.VolcanicAct.Value
	}
	if f.Orogeny != nil {
		folding = f.Orogeny.MaxFoldingStress
	}
	return 0.4 * math.Max(volcanic, folding)
}

func (f *Field) CrustThickness() float64 {
	switch {
	case f.Trench:
		return 0.1
	case f.IsOcean():
		return f.BaseCrustThickness * f.NormalizedAge()
	default:
		// mountain roots
		return f.BaseCrustThickness + f.MountainElevation()*2
	}
}

func (f *Field) CrustCanBeStretched() bool {
	return f.Type == Continent && f.CrustThickness() > MinContinentalCrustThickness
}

func (f *Field) LithosphereThickness() float64 {
	switch {
	case f.Trench:
		return 0.1
	case f.IsOcean():
		return 0.7 * f.NormalizedAge()
	default:
		return 0.7
	}
}

func (f *Field) RisingMagma() bool {
	return f.VolcanicAct != nil && f.VolcanicAct.RisingMagma()
}

// SubductingFieldUnderneath returns the subducting field this field overrides
// in the current step, or nil.
func (f *Field) SubductingFieldUnderneath() *Field {
	if f.VolcanicAct == nil {
		return nil
	}
	if cf := f.VolcanicAct.CollidingField(); cf != nil && cf.Subduction != nil {
		return cf
	}
	return nil
}

func (f *Field) activelyFolding() bool {
	return f.Orogeny != nil && f.Orogeny.folding
}

// SetDefaultProps resets elevation and crust to the type defaults and drops
// the process overlays.
func (f *Field) SetDefaultProps() {
	f.BaseElevation = f.Type.DefaultElevation()
	f.BaseCrustThickness = f.Type.DefaultCrustThickness(f.BaseElevation)
	f.Orogeny = nil
	f.VolcanicAct = nil
	f.Subduction = nil
}

func (f *Field) resetCollisions() {
	f.colliding = false
	f.draggingPlate = NoPlate
	if f.Orogeny != nil {
		f.Orogeny.resetCollision()
	}
	if f.Subduction != nil {
		f.Subduction.resetCollision()
	}
	if f.VolcanicAct != nil {
		f.VolcanicAct.resetCollision()
	}
}

func (f *Field) performGeologicalProcesses(dt float64) {
	if !f.Alive {
		return
	}
	if f.Subduction != nil {
		f.Subduction.update(dt)
		if f.Subduction != nil && !f.Subduction.Active() {
			f.Subduction = nil
		}
	}
	if !f.Alive {
		return
	}
	if f.VolcanicAct != nil {
		f.VolcanicAct.update(dt)
		if !f.VolcanicAct.Active() {
			f.VolcanicAct = nil
		}
	}

	f.Trench = f.Boundary && f.SubductingFieldUnderneath() != nil && !f.activelyFolding()

	if f.Earthquake != nil {
		f.Earthquake.update(dt)
		if !f.Earthquake.Active() {
			f.Earthquake = nil
		}
	} else if shouldCreateEarthquake(f) {
		f.Earthquake = newEarthquake(f)
	}

	if f.VolcanicEruption != nil {
		f.VolcanicEruption.update(dt)
		if !f.VolcanicEruption.Active() {
			f.VolcanicEruption = nil
		}
	} else if shouldCreateVolcanicEruption(f) {
		f.VolcanicEruption = newVolcanicEruption(f)
	}

	f.Age += f.Displacement(dt).Len()
	if f.NoCollisionDist > 0 && f.Age >= f.NoCollisionDist {
		f.NoCollisionDist = 0
	}
}

func (f *Field) container() map[int]*Field {
	p := f.Plate()
	if p == nil {
		return nil
	}
	if f.inSubplate {
		return p.subplate
	}
	return p.fields
}

// ForEachNeighbour visits adjacent fields that belong to the same plate.
func (f *Field) ForEachNeighbour(fn func(*Field)) {
	c := f.container()
	for _, id := range f.env.grid.Neighbors(f.ID) {
		if n, ok := c[id]; ok {
			fn(n)
		}
	}
}

func (f *Field) AnyNeighbour(cond func(*Field) bool) bool {
	c := f.container()
	for _, id := range f.env.grid.Neighbors(f.ID) {
		if n, ok := c[id]; ok && cond(n) {
			return true
		}
	}
	return false
}

// AvgNeighbour averages value over the plate's neighbours; NaN without any.
func (f *Field) AvgNeighbour(value func(*Field) float64) float64 {
	var sum float64
	var count int
	f.ForEachNeighbour(func(n *Field) {
		sum += value(n)
		count++
	})
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func (f *Field) NeighboursCount() int {
	count := 0
	f.ForEachNeighbour(func(*Field) { count++ })
	return count
}

// NeighbourAlongVector returns the plate field one field diameter away
// along direction, or nil.
func (f *Field) NeighbourAlongVector(direction mgl64.Vec3) *Field {
	if direction.Len() == 0 {
		return nil
	}
	pos := f.absPos.Add(direction.Normalize().Mul(f.env.fieldDiameter))
	return f.Plate().FieldAtAbsolutePos(pos)
}

// isBoundary: some grid neighbour is not owned by this plate.
func (f *Field) isBoundary() bool {
	c := f.container()
	for _, id := range f.env.grid.Neighbors(f.ID) {
		if _, ok := c[id]; !ok {
			return true
		}
	}
	return false
}
