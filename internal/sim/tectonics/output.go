package tectonics

import (
	"platesim/internal/observerproto"
	"platesim/internal/sim/tuning"
)

// OutputCadence throttles the expensive output channels: a channel is sent
// when (step + offset) % interval == 0.
type OutputCadence struct {
	FieldsInterval       int
	FieldsOffset         int
	CrossSectionInterval int
	CrossSectionOffset   int
}

func CadenceFromTuning(o tuning.Output) OutputCadence {
	return OutputCadence{
		FieldsInterval:       o.FieldsInterval,
		FieldsOffset:         o.FieldsOffset,
		CrossSectionInterval: o.CrossSectionInterval,
		CrossSectionOffset:   o.CrossSectionOffset,
	}
}

func (c OutputCadence) Fields(step uint64) bool {
	return shouldUpdate(c.FieldsInterval, c.FieldsOffset, step)
}

func (c OutputCadence) CrossSection(step uint64) bool {
	return shouldUpdate(c.CrossSectionInterval, c.CrossSectionOffset, step)
}

func shouldUpdate(interval, offset int, step uint64) bool {
	if interval <= 1 {
		return true
	}
	return (step+uint64(offset))%uint64(interval) == 0
}

// Output builds the per-step renderer message. Field columns are attached
// when the cadence allows it or forced is set.
func (m *Model) Output(opts observerproto.RenderOptions, cadence OutputCadence, forced bool) observerproto.StepMsg {
	msg := observerproto.StepMsg{
		Type:            observerproto.TypeStep,
		ProtocolVersion: observerproto.Version,
		Step:            m.stepIdx,
		Plates:          make([]observerproto.PlateState, 0, len(m.plates)),
	}
	withFields := forced || cadence.Fields(m.stepIdx)
	for _, p := range m.plates {
		ps := observerproto.PlateState{
			ID:              int(p.ID),
			Quaternion:      [4]float64{p.Quaternion.W, p.Quaternion.V[0], p.Quaternion.V[1], p.Quaternion.V[2]},
			AngularVelocity: p.AngularVelocity,
			Density:         p.Density,
			Hue:             p.Hue,
		}
		if opts.HotSpots && p.HotSpot != nil {
			ps.HotSpot = &observerproto.HotSpotState{Position: p.HotSpot.Position, Force: p.HotSpot.Force}
		}
		if withFields {
			ps.Fields = fieldArrays(p.Fields(), opts)
			if len(p.subplate) > 0 {
				ps.Subplate = fieldArrays(p.SubplateFields(), opts)
			}
		}
		msg.Plates = append(msg.Plates, ps)
	}
	return msg
}

func fieldArrays(fields []*Field, opts observerproto.RenderOptions) *observerproto.FieldArrays {
	n := len(fields)
	a := &observerproto.FieldArrays{
		ID:        make([]uint32, n),
		Elevation: make([]float32, n),
	}
	if opts.Boundaries {
		a.Boundary = make([]int8, n)
	}
	if opts.Forces {
		a.ForceX = make([]float32, n)
		a.ForceY = make([]float32, n)
		a.ForceZ = make([]float32, n)
	}
	hues := opts.Colormap == observerproto.ColormapPlate
	if hues {
		a.OriginalHue = make([]int16, n)
	}
	for i, f := range fields {
		a.ID[i] = uint32(f.ID)
		a.Elevation[i] = float32(f.Elevation())
		if opts.Boundaries && f.Boundary {
			a.Boundary[i] = 1
		}
		if opts.Forces {
			force := f.Force()
			a.ForceX[i] = float32(force[0])
			a.ForceY[i] = float32(force[1])
			a.ForceZ[i] = float32(force[2])
		}
		if hues {
			a.OriginalHue[i] = observerproto.NoHue
			if f.OriginalHue != nil {
				a.OriginalHue[i] = int16(*f.OriginalHue)
			}
		}
	}
	return a
}
