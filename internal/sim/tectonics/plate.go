package tectonics

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// HotSpot is a point force fixed in the plate frame that keeps the plate moving.
type HotSpot struct {
	Position mgl64.Vec3
	Force    mgl64.Vec3
}

// Plate is a rigid body owning a set of fields keyed by local grid id.
type Plate struct {
	ID              PlateID
	Quaternion      mgl64.Quat
	AngularVelocity mgl64.Vec3
	Density         float64
	Hue             int
	HotSpot         *HotSpot

	env      *env
	fields   map[int]*Field
	subplate map[int]*Field

	// Sorted id caches, nil when stale.
	ids      []int
	subIDs   []int
	boundary []int

	mass       float64
	invInertia mgl64.Mat3
	hasInertia bool
}

type PlateOptions struct {
	ID              PlateID
	Density         float64
	Hue             int
	Quaternion      mgl64.Quat // zero value means identity
	AngularVelocity mgl64.Vec3
	HotSpot         *HotSpot
}

func newPlate(e *env, opts PlateOptions) *Plate {
	q := opts.Quaternion
	if q.W == 0 && q.V.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	return &Plate{
		ID:              opts.ID,
		Quaternion:      q.Normalize(),
		AngularVelocity: opts.AngularVelocity,
		Density:         opts.Density,
		Hue:             opts.Hue,
		HotSpot:         opts.HotSpot,
		env:             e,
		fields:          make(map[int]*Field),
		subplate:        make(map[int]*Field),
	}
}

func (p *Plate) Size() int { return len(p.fields) }

func (p *Plate) Field(id int) *Field { return p.fields[id] }

// FieldIDs returns the owned ids in ascending order. The slice must not be modified.
func (p *Plate) FieldIDs() []int {
	if p.ids == nil {
		p.ids = sortedKeys(p.fields)
	}
	return p.ids
}

// Fields returns the owned fields in id order.
func (p *Plate) Fields() []*Field {
	ids := p.FieldIDs()
	out := make([]*Field, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.fields[id])
	}
	return out
}

func (p *Plate) SubplateFields() []*Field {
	if p.subIDs == nil {
		p.subIDs = sortedKeys(p.subplate)
	}
	out := make([]*Field, 0, len(p.subIDs))
	for _, id := range p.subIDs {
		out = append(out, p.subplate[id])
	}
	return out
}

// BoundaryIDs are the boundary fields found by the last collision phase.
func (p *Plate) BoundaryIDs() []int { return p.boundary }

func (p *Plate) Mass() float64 { return p.mass }

func (p *Plate) AddField(opts FieldOptions) (*Field, error) {
	if !p.env.grid.Valid(opts.ID) {
		return nil, fmt.Errorf("field id %d out of range", opts.ID)
	}
	if !opts.Type.Valid() {
		return nil, fmt.Errorf("field %d: invalid type %d", opts.ID, opts.Type)
	}
	if _, ok := p.fields[opts.ID]; ok {
		return nil, fmt.Errorf("field %d already owned by plate %d", opts.ID, p.ID)
	}
	f := newField(opts)
	p.insertField(f)
	return f, nil
}

func (p *Plate) insertField(f *Field) {
	p.attach(f, false)
	p.fields[f.ID] = f
	p.ids = nil
}

func (p *Plate) attach(f *Field, subplate bool) {
	f.env = p.env
	f.PlateID = p.ID
	f.inSubplate = subplate
	f.draggingPlate = NoPlate
	f.localPos = p.env.grid.Position(f.ID)
	f.absPos = p.Quaternion.Rotate(f.localPos)
	relink(f)
}

func (p *Plate) removeField(id int) {
	delete(p.fields, id)
	p.ids = nil
}

// LocalPosition converts an absolute position into the plate frame.
func (p *Plate) LocalPosition(abs mgl64.Vec3) mgl64.Vec3 {
	return p.Quaternion.Conjugate().Rotate(abs)
}

func (p *Plate) AbsolutePosition(local mgl64.Vec3) mgl64.Vec3 {
	return p.Quaternion.Rotate(local)
}

func (p *Plate) LinearVelocityAt(abs mgl64.Vec3) mgl64.Vec3 {
	return p.AngularVelocity.Cross(abs)
}

// FieldAtAbsolutePos returns the field covering abs, or nil.
func (p *Plate) FieldAtAbsolutePos(abs mgl64.Vec3) *Field {
	id := p.env.grid.NearestFieldID(p.LocalPosition(abs))
	return p.fields[id]
}

// rotate integrates the orientation over dt and moves every field with it.
func (p *Plate) rotate(dt float64) {
	w := p.AngularVelocity.Len()
	if w == 0 {
		return
	}
	dq := mgl64.QuatRotate(w*dt, p.AngularVelocity.Mul(1/w))
	p.Quaternion = dq.Mul(p.Quaternion).Normalize()
	for _, f := range p.fields {
		f.absPos = p.Quaternion.Rotate(f.localPos)
	}
	for _, f := range p.subplate {
		f.absPos = p.Quaternion.Rotate(f.localPos)
	}
}

// updateFields recomputes boundary flags and clears per-step collision state.
func (p *Plate) updateFields() {
	p.boundary = p.boundary[:0]
	for _, id := range p.FieldIDs() {
		f := p.fields[id]
		f.Boundary = f.isBoundary()
		f.resetCollisions()
		if f.Boundary {
			p.boundary = append(p.boundary, id)
		}
	}
}

func (p *Plate) performGeologicalProcesses(dt float64) {
	for _, id := range p.FieldIDs() {
		p.fields[id].performGeologicalProcesses(dt)
	}
	p.processSubplate(dt)
}

func (p *Plate) removeDeadFields() {
	for _, id := range p.FieldIDs() {
		if !p.fields[id].Alive {
			delete(p.fields, id)
		}
	}
	p.ids = nil
}

// SetFieldType changes the crust type of a field and resets its geology.
func (p *Plate) SetFieldType(id int, t FieldType) error {
	f := p.fields[id]
	if f == nil {
		return fmt.Errorf("plate %d does not own field %d", p.ID, id)
	}
	if !t.Valid() {
		return fmt.Errorf("invalid field type %d", t)
	}
	f.Type = t
	f.SetDefaultProps()
	return nil
}

// ForEachFieldWithin walks the plate's fields breadth-first from id, at most
// maxSteps adjacency hops away. fn receives the hop distance.
func (p *Plate) ForEachFieldWithin(id, maxSteps int, fn func(f *Field, dist int)) {
	start := p.fields[id]
	if start == nil {
		return
	}
	seen := map[int]bool{id: true}
	queue := []*Field{start}
	dist := map[int]int{id: 0}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		d := dist[f.ID]
		fn(f, d)
		if d == maxSteps {
			continue
		}
		for _, nid := range p.env.grid.Neighbors(f.ID) {
			n := p.fields[nid]
			if n == nil || seen[nid] {
				continue
			}
			seen[nid] = true
			dist[nid] = d + 1
			queue = append(queue, n)
		}
	}
}

func sortedKeys(m map[int]*Field) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
