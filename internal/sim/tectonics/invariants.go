package tectonics

import "fmt"

// CheckInvariants reports the first broken invariant: a field owned twice,
// an owner mismatch, a dead field still owned, an overlay not linked to its
// field, or a negative age, subduction distance or folding stress.
func (m *Model) CheckInvariants() error {
	owners := make(map[*Field]PlateID)
	for _, p := range m.plates {
		check := func(id int, f *Field, sub bool) error {
			if prev, dup := owners[f]; dup {
				return fmt.Errorf("%w: field %d owned by plates %d and %d", ErrInvariant, id, prev, p.ID)
			}
			owners[f] = p.ID
			if f.ID != id || f.PlateID != p.ID || f.inSubplate != sub {
				return fmt.Errorf("%w: field %d registered as %d on plate %d (owner %d)", ErrInvariant, f.ID, id, p.ID, f.PlateID)
			}
			if !f.Alive {
				return fmt.Errorf("%w: dead field %d still owned by plate %d", ErrInvariant, id, p.ID)
			}
			if f.Age < 0 {
				return fmt.Errorf("%w: field %d has negative age %v", ErrInvariant, id, f.Age)
			}
			if s := f.Subduction; s != nil && (s.field != f || s.Dist < 0) {
				return fmt.Errorf("%w: field %d subduction unlinked or negative (%v)", ErrInvariant, id, s.Dist)
			}
			if o := f.Orogeny; o != nil && (o.field != f || o.MaxFoldingStress < 0) {
				return fmt.Errorf("%w: field %d orogeny unlinked or negative", ErrInvariant, id)
			}
			if v := f.VolcanicAct; v != nil && v.field != f {
				return fmt.Errorf("%w: field %d volcanic activity unlinked", ErrInvariant, id)
			}
			if v := f.VolcanicEruption; v != nil && v.field != f {
				return fmt.Errorf("%w: field %d eruption unlinked", ErrInvariant, id)
			}
			if q := f.Earthquake; q != nil && q.field != f {
				return fmt.Errorf("%w: field %d earthquake unlinked", ErrInvariant, id)
			}
			return nil
		}
		for _, id := range p.FieldIDs() {
			if err := check(id, p.fields[id], false); err != nil {
				return err
			}
		}
		for _, f := range p.SubplateFields() {
			if err := check(f.ID, f, true); err != nil {
				return err
			}
		}
	}
	return nil
}
