package tectonics

import (
	"fmt"
	"math"
)

// Step runs one full step: Integrate, RotatePlates, HandleCollisions,
// PerformGeologicalProcesses and Finalize. A fatal error stops the model;
// every later call returns it.
func (m *Model) Step(dt float64) error {
	if err := m.Integrate(dt); err != nil {
		return err
	}
	if err := m.RotatePlates(dt); err != nil {
		return err
	}
	if err := m.HandleCollisions(); err != nil {
		return err
	}
	if err := m.PerformGeologicalProcesses(dt); err != nil {
		return err
	}
	return m.Finalize()
}

func (m *Model) enter(from, to phase) error {
	if m.err != nil {
		return m.err
	}
	if m.phase != from {
		return fmt.Errorf("%w: %s after %s", ErrPhaseOrder, to, m.phase)
	}
	m.phase = to
	return nil
}

func checkTimestep(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("invalid timestep %v", dt)
	}
	return nil
}

// Integrate applies torques to angular velocities when dynamics is enabled.
func (m *Model) Integrate(dt float64) error {
	if err := checkTimestep(dt); err != nil {
		return err
	}
	if err := m.enter(phaseIdle, phaseIntegrated); err != nil {
		return err
	}
	m.env.reseed(m.stepIdx)
	if m.env.cfg.Dynamics {
		for _, p := range m.plates {
			p.integrate(dt)
		}
	}
	return nil
}

// RotatePlates must complete for every plate before any collision runs.
func (m *Model) RotatePlates(dt float64) error {
	if err := checkTimestep(dt); err != nil {
		return err
	}
	if err := m.enter(phaseIntegrated, phaseRotated); err != nil {
		return err
	}
	for _, p := range m.plates {
		p.rotate(dt)
	}
	return nil
}

// HandleCollisions refreshes boundaries, then collides every ordered pair of
// distinct plates.
func (m *Model) HandleCollisions() error {
	if err := m.enter(phaseRotated, phaseCollided); err != nil {
		return err
	}
	for _, p := range m.plates {
		p.updateFields()
	}
	m.lastCollisions = 0
	for _, p := range m.plates {
		for _, q := range m.plates {
			if p != q {
				m.lastCollisions += len(p.DetectCollisionWith(q))
			}
		}
	}
	return nil
}

func (m *Model) PerformGeologicalProcesses(dt float64) error {
	if err := checkTimestep(dt); err != nil {
		return err
	}
	if err := m.enter(phaseCollided, phaseProcessed); err != nil {
		return err
	}
	for _, p := range m.plates {
		p.performGeologicalProcesses(dt)
	}
	return nil
}

// Finalize drops consumed fields, fills gaps with new oceanic crust and
// validates the resulting state.
func (m *Model) Finalize() error {
	if err := m.enter(phaseProcessed, phaseIdle); err != nil {
		return err
	}
	for _, p := range m.plates {
		p.removeDeadFields()
	}
	m.lastNewFields = 0
	if m.env.cfg.NewOceanicCrust {
		m.lastNewFields = m.generateNewFields()
	}
	m.stepIdx++
	if err := m.checkOrientation(); err != nil {
		m.err = err
		return err
	}
	if err := m.CheckInvariants(); err != nil {
		m.err = err
		return err
	}
	return nil
}

func (m *Model) checkOrientation() error {
	for _, p := range m.plates {
		q := p.Quaternion
		vals := [...]float64{q.W, q.V[0], q.V[1], q.V[2], p.AngularVelocity[0], p.AngularVelocity[1], p.AngularVelocity[2]}
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: plate %d at step %d", ErrDegenerateStep, p.ID, m.stepIdx)
			}
		}
	}
	return nil
}
