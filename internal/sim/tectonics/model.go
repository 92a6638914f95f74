// Package tectonics is the plate simulation engine: fields with their
// geological overlays, rigid plates and the step protocol that moves,
// collides and ages them on a shared geodesic grid.
package tectonics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"platesim/internal/sim/grid"
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseIntegrated
	phaseRotated
	phaseCollided
	phaseProcessed
)

func (p phase) String() string {
	return [...]string{"idle", "integrated", "rotated", "collided", "processed"}[p]
}

// Model owns the plates and advances them one step at a time. It is not safe
// for concurrent use.
type Model struct {
	env     *env
	plates  []*Plate
	stepIdx uint64
	phase   phase
	err     error

	lastCollisions int
	lastNewFields  int
}

func NewModel(g *grid.Grid, cfg Config) *Model {
	return &Model{env: newEnv(g, cfg)}
}

func (m *Model) Grid() *grid.Grid { return m.env.grid }
func (m *Model) Config() Config   { return m.env.cfg }
func (m *Model) StepIdx() uint64  { return m.stepIdx }

// Err is the fatal error that stopped the model, if any.
func (m *Model) Err() error { return m.err }

// Plates returns the plates in step order.
func (m *Model) Plates() []*Plate {
	return append([]*Plate(nil), m.plates...)
}

func (m *Model) Plate(id PlateID) *Plate { return m.env.plate(id) }

func (m *Model) AddPlate(opts PlateOptions) (*Plate, error) {
	if opts.ID < 0 {
		return nil, fmt.Errorf("invalid plate id %d", opts.ID)
	}
	if _, ok := m.env.plates[opts.ID]; ok {
		return nil, fmt.Errorf("plate %d already exists", opts.ID)
	}
	p := newPlate(m.env, opts)
	m.plates = append(m.plates, p)
	m.env.plates[p.ID] = p
	return p, nil
}

// FieldAt returns the field covering abs on the first plate in step order,
// or nil when no plate covers it.
func (m *Model) FieldAt(abs mgl64.Vec3) *Field {
	for _, p := range m.plates {
		if f := p.FieldAtAbsolutePos(abs); f != nil {
			return f
		}
	}
	return nil
}

type Stats struct {
	Plates      int
	Fields      int
	Boundary    int
	Subducting  int
	Orogeny     int
	Volcanic    int
	Eruptions   int
	Earthquakes int
	Trenches    int
	Subplate    int
	Collisions  int
	NewFields   int
}

func (m *Model) Stats() Stats {
	s := Stats{Plates: len(m.plates), Collisions: m.lastCollisions, NewFields: m.lastNewFields}
	for _, p := range m.plates {
		s.Fields += len(p.fields)
		s.Subplate += len(p.subplate)
		for _, f := range p.fields {
			if f.Boundary {
				s.Boundary++
			}
			if f.Subduction != nil {
				s.Subducting++
			}
			if f.Orogeny != nil {
				s.Orogeny++
			}
			if f.VolcanicAct != nil {
				s.Volcanic++
			}
			if f.VolcanicEruption != nil {
				s.Eruptions++
			}
			if f.Earthquake != nil {
				s.Earthquakes++
			}
			if f.Trench {
				s.Trenches++
			}
		}
	}
	return s
}
