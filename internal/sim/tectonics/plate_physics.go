package tectonics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// updateInertia rebuilds mass and the inverse inertia tensor
// I = Σ m·(|r|²·E − r⊗r) from the current field positions.
func (p *Plate) updateInertia() {
	var inertia mgl64.Mat3
	var mass float64
	for _, id := range p.FieldIDs() {
		f := p.fields[id]
		m := f.Mass()
		r := f.absPos
		term := mgl64.Ident3().Mul(r.Dot(r)).Sub(r.OuterProd3(r)).Mul(m)
		inertia = inertia.Add(term)
		mass += m
	}
	p.mass = mass
	if math.Abs(inertia.Det()) < 1e-12 {
		p.hasInertia = false
		return
	}
	p.invInertia = inertia.Inv()
	p.hasInertia = true
}

// HotSpotTorque is zero for plates without a hot spot.
func (p *Plate) HotSpotTorque() mgl64.Vec3 {
	if p.HotSpot == nil {
		return mgl64.Vec3{}
	}
	pos := p.Quaternion.Rotate(p.HotSpot.Position)
	force := p.Quaternion.Rotate(p.HotSpot.Force)
	return pos.Cross(force)
}

func (p *Plate) Torque() mgl64.Vec3 {
	t := p.HotSpotTorque()
	for _, id := range p.FieldIDs() {
		t = t.Add(p.fields[id].Torque())
	}
	return t
}

// AngularAcceleration is I⁻¹·τ, zero when the inertia tensor is singular.
func (p *Plate) AngularAcceleration() mgl64.Vec3 {
	if !p.hasInertia {
		return mgl64.Vec3{}
	}
	return p.invInertia.Mul3x1(p.Torque())
}

func (p *Plate) integrate(dt float64) {
	p.updateInertia()
	p.AngularVelocity = p.AngularVelocity.Add(p.AngularAcceleration().Mul(dt))
}

// CenterOfMass is the normalized mass-weighted mean position, or zero for
// an empty plate.
func (p *Plate) CenterOfMass() mgl64.Vec3 {
	var c mgl64.Vec3
	for _, id := range p.FieldIDs() {
		f := p.fields[id]
		c = c.Add(f.absPos.Mul(f.Mass()))
	}
	if c.Len() == 0 {
		return c
	}
	return c.Normalize()
}
