package tectonics

import "github.com/go-gl/mathgl/mgl64"

// BasicDrag opposes the field's own motion.
func (f *Field) BasicDrag() mgl64.Vec3 {
	return f.LinearVelocity().Mul(-f.env.cfg.BasicDrag * f.Area())
}

// OrogenicDrag opposes motion relative to the plate dragging this field, or
// is zero when nothing drags it.
func (f *Field) OrogenicDrag() mgl64.Vec3 {
	other := f.env.plate(f.draggingPlate)
	if other == nil {
		return mgl64.Vec3{}
	}
	rel := f.LinearVelocity().Sub(other.LinearVelocityAt(f.absPos))
	return rel.Mul(-f.env.cfg.OrogenicDrag * f.Area())
}

func (f *Field) Force() mgl64.Vec3 {
	return f.BasicDrag().Add(f.OrogenicDrag())
}

func (f *Field) Torque() mgl64.Vec3 {
	return f.absPos.Cross(f.Force())
}
