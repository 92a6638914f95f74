package tectonics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"platesim/internal/persistence/snapshot"
	"platesim/internal/sim/grid"
)

// Serialize stores the persisted attributes only; positions, collision
// state and dragging plate are recomputed after loading.
func (f *Field) Serialize() snapshot.FieldV1 {
	v := snapshot.FieldV1{
		ID:                 f.ID,
		Type:               uint8(f.Type),
		Age:                f.Age,
		BaseElevation:      f.BaseElevation,
		BaseCrustThickness: f.BaseCrustThickness,
		Boundary:           f.Boundary,
		Trench:             f.Trench,
		Marked:             f.Marked,
		NoCollisionDist:    f.NoCollisionDist,
	}
	if f.OriginalHue != nil {
		v.OriginalHue = &snapshot.HueV1{Hue: *f.OriginalHue}
	}
	if f.Orogeny != nil {
		o := f.Orogeny.Serialize()
		v.Orogeny = &o
	}
	if f.Subduction != nil {
		s := f.Subduction.Serialize()
		v.Subduction = &s
	}
	if f.VolcanicAct != nil {
		a := f.VolcanicAct.Serialize()
		v.VolcanicAct = &a
	}
	if f.VolcanicEruption != nil {
		e := f.VolcanicEruption.Serialize()
		v.VolcanicEruption = &e
	}
	if f.Earthquake != nil {
		q := f.Earthquake.Serialize()
		v.Earthquake = &q
	}
	return v
}

// DeserializeField rebuilds a detached field with its overlays linked to
// it. The field is usable once a plate attaches it.
func DeserializeField(v snapshot.FieldV1) *Field {
	f := newField(FieldOptions{ID: v.ID, Type: FieldType(v.Type), Age: v.Age})
	f.BaseElevation = v.BaseElevation
	f.BaseCrustThickness = v.BaseCrustThickness
	f.Boundary = v.Boundary
	f.Trench = v.Trench
	f.Marked = v.Marked
	f.NoCollisionDist = v.NoCollisionDist
	if v.OriginalHue != nil {
		hue := v.OriginalHue.Hue
		f.OriginalHue = &hue
	}
	if v.Orogeny != nil {
		f.Orogeny = DeserializeOrogeny(*v.Orogeny, f)
	}
	if v.Subduction != nil {
		f.Subduction = DeserializeSubduction(*v.Subduction, f)
	}
	if v.VolcanicAct != nil {
		f.VolcanicAct = DeserializeVolcanicActivity(*v.VolcanicAct, f)
	}
	if v.VolcanicEruption != nil {
		f.VolcanicEruption = DeserializeVolcanicEruption(*v.VolcanicEruption, f)
	}
	if v.Earthquake != nil {
		f.Earthquake = DeserializeEarthquake(*v.Earthquake, f)
	}
	return f
}

// relink points every overlay back at f.
func relink(f *Field) {
	if f.Orogeny != nil {
		f.Orogeny.field = f
	}
	if f.Subduction != nil {
		f.Subduction.field = f
	}
	if f.VolcanicAct != nil {
		f.VolcanicAct.field = f
	}
	if f.VolcanicEruption != nil {
		f.VolcanicEruption.field = f
	}
	if f.Earthquake != nil {
		f.Earthquake.field = f
	}
}

func (p *Plate) Serialize() snapshot.PlateV1 {
	v := snapshot.PlateV1{
		ID:              int(p.ID),
		Quaternion:      [4]float64{p.Quaternion.W, p.Quaternion.V[0], p.Quaternion.V[1], p.Quaternion.V[2]},
		AngularVelocity: p.AngularVelocity,
		Density:         p.Density,
		Hue:             p.Hue,
	}
	if p.HotSpot != nil {
		v.HotSpot = &snapshot.HotSpotV1{Position: p.HotSpot.Position, Force: p.HotSpot.Force}
	}
	v.Fields = make([]snapshot.FieldV1, 0, len(p.fields))
	for _, f := range p.Fields() {
		v.Fields = append(v.Fields, f.Serialize())
	}
	for _, f := range p.SubplateFields() {
		v.Subplate = append(v.Subplate, f.Serialize())
	}
	return v
}

// DeserializePlate adds a plate rebuilt from v to the model.
func (m *Model) DeserializePlate(v snapshot.PlateV1) (*Plate, error) {
	opts := PlateOptions{
		ID:              PlateID(v.ID),
		Density:         v.Density,
		Hue:             v.Hue,
		Quaternion:      mgl64.Quat{W: v.Quaternion[0], V: mgl64.Vec3{v.Quaternion[1], v.Quaternion[2], v.Quaternion[3]}},
		AngularVelocity: v.AngularVelocity,
	}
	if v.HotSpot != nil {
		opts.HotSpot = &HotSpot{Position: v.HotSpot.Position, Force: v.HotSpot.Force}
	}
	p, err := m.AddPlate(opts)
	if err != nil {
		return nil, err
	}
	for _, fv := range v.Fields {
		if !m.env.grid.Valid(fv.ID) {
			return nil, fmt.Errorf("plate %d: field id %d out of range", v.ID, fv.ID)
		}
		if _, dup := p.fields[fv.ID]; dup {
			return nil, fmt.Errorf("plate %d: duplicate field %d", v.ID, fv.ID)
		}
		p.insertField(DeserializeField(fv))
	}
	for _, fv := range v.Subplate {
		if !m.env.grid.Valid(fv.ID) {
			return nil, fmt.Errorf("plate %d: subplate field id %d out of range", v.ID, fv.ID)
		}
		f := DeserializeField(fv)
		p.attach(f, true)
		p.subplate[f.ID] = f
	}
	p.subIDs = nil
	return p, nil
}

func ConfigToV1(c Config) snapshot.ConfigV1 {
	return snapshot.ConfigV1(c)
}

func ConfigFromV1(v snapshot.ConfigV1) Config {
	return Config(v)
}

// Serialize exports the whole model. modelID only labels the header.
func (m *Model) Serialize(modelID string) snapshot.SnapshotV1 {
	o := m.env.grid.Options()
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, ModelID: modelID, Step: m.stepIdx},
		Grid:   snapshot.GridV1{Divisions: o.Divisions, Optimized: o.Optimized, ApproxResolution: o.ApproxResolution},
		Config: ConfigToV1(m.env.cfg),
	}
	s.Plates = make([]snapshot.PlateV1, 0, len(m.plates))
	for _, p := range m.plates {
		s.Plates = append(s.Plates, p.Serialize())
	}
	return s
}

// DeserializeModel rebuilds a model on g, which must match the snapshot's grid.
func DeserializeModel(g *grid.Grid, s snapshot.SnapshotV1) (*Model, error) {
	if s.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("%w: %d", snapshot.ErrVersion, s.Header.Version)
	}
	if s.Grid.Divisions != g.Divisions() {
		return nil, fmt.Errorf("%w: snapshot divisions %d, grid %d", ErrGridMismatch, s.Grid.Divisions, g.Divisions())
	}
	m := NewModel(g, ConfigFromV1(s.Config))
	m.stepIdx = s.Header.Step
	for _, pv := range s.Plates {
		if _, err := m.DeserializePlate(pv); err != nil {
			return nil, err
		}
	}
	for _, p := range m.plates {
		p.updateInertia()
	}
	if err := m.CheckInvariants(); err != nil {
		return nil, err
	}
	return m, nil
}

// GridOptions returns the grid parameters a snapshot was taken on.
func GridOptions(s snapshot.SnapshotV1) grid.Options {
	return grid.Options{Divisions: s.Grid.Divisions, Optimized: s.Grid.Optimized, ApproxResolution: s.Grid.ApproxResolution}
}
