package tectonics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"platesim/internal/observerproto"
	"platesim/internal/sim/grid"
)

// CrossSection samples every plate along the great-circle path from p1 to
// p2, twice per field diameter. Overlapping plates (a slab under its
// overriding plate) produce overlapping segments.
func (m *Model) CrossSection(p1, p2 mgl64.Vec3) []observerproto.CrossSectionSegment {
	length := grid.ArcLength(p1, p2)
	spacing := m.env.fieldDiameter / 2
	n := int(math.Ceil(length / spacing))
	if n < 1 {
		n = 1
	}
	var segs []observerproto.CrossSectionSegment
	open := make(map[PlateID]int)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		pos := grid.Slerp(p1, p2, t)
		for _, p := range m.plates {
			f := p.FieldAtAbsolutePos(pos)
			if f == nil {
				delete(open, p.ID)
				continue
			}
			idx, ok := open[p.ID]
			if !ok {
				segs = append(segs, observerproto.CrossSectionSegment{PlateID: int(p.ID)})
				idx = len(segs) - 1
				open[p.ID] = idx
			}
			segs[idx].Points = append(segs[idx].Points, crossSectionPoint(f, length*t))
		}
	}
	return segs
}

func crossSectionPoint(f *Field, dist float64) observerproto.CrossSectionPoint {
	pt := observerproto.CrossSectionPoint{
		Dist:                 float32(dist),
		FieldID:              uint32(f.ID),
		Elevation:            float32(f.Elevation()),
		CrustThickness:       float32(f.CrustThickness()),
		LithosphereThickness: float32(f.LithosphereThickness()),
	}
	if f.Subduction != nil {
		pt.Subduction = float32(f.Subduction.Progress())
	}
	return pt
}

// CrossSectionOutput builds the cross-section message for req, honouring
// the swap flag and, for the 3D view, the four walls. ok is false when the
// channel is throttled or req is incomplete.
func (m *Model) CrossSectionOutput(req *observerproto.CrossSectionReq, cadence OutputCadence, forced bool) (msg observerproto.CrossSectionMsg, ok bool) {
	if req == nil || req.P1 == nil || req.P2 == nil {
		return msg, false
	}
	if !forced && !cadence.CrossSection(m.stepIdx) {
		return msg, false
	}
	pt := func(ll *[2]float64) mgl64.Vec3 { return grid.ToCartesian(ll[0], ll[1]) }
	p1, p2 := pt(req.P1), pt(req.P2)
	msg = observerproto.CrossSectionMsg{
		Type:            observerproto.TypeCrossSection,
		ProtocolVersion: observerproto.Version,
		Step:            m.stepIdx,
	}
	swap := req.Swapped
	pick := func(a, b mgl64.Vec3) mgl64.Vec3 {
		if swap {
			return b
		}
		return a
	}
	msg.Front = m.CrossSection(pick(p1, p2), pick(p2, p1))
	if req.ThreeD && req.P3 != nil && req.P4 != nil {
		p3, p4 := pt(req.P3), pt(req.P4)
		msg.Right = m.CrossSection(pick(p2, p1), pick(p3, p4))
		msg.Back = m.CrossSection(pick(p3, p4), pick(p4, p3))
		msg.Left = m.CrossSection(pick(p4, p3), pick(p1, p2))
	}
	return msg, true
}
