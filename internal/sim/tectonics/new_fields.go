package tectonics

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// generateNewFields fills uncovered cells next to a plate with young oceanic
// crust, the way a divergent boundary does. The first plate in step order
// claims a gap.
func (m *Model) generateNewFields() int {
	g := m.env.grid
	added := 0
	for _, p := range m.plates {
		seen := make(map[int]bool)
		var candidates []int
		for _, id := range p.FieldIDs() {
			for _, nid := range g.Neighbors(id) {
				if _, own := p.fields[nid]; own || seen[nid] {
					continue
				}
				seen[nid] = true
				candidates = append(candidates, nid)
			}
		}
		sort.Ints(candidates)
		for _, nid := range candidates {
			if m.covered(p.AbsolutePosition(g.Position(nid))) {
				continue
			}
			f, err := p.AddField(FieldOptions{ID: nid, Type: Ocean})
			if err != nil {
				continue
			}
			f.NoCollisionDist = 2 * m.env.fieldDiameter
			added++
		}
	}
	return added
}

func (m *Model) covered(abs mgl64.Vec3) bool {
	for _, q := range m.plates {
		if q.FieldAtAbsolutePos(abs) != nil {
			return true
		}
	}
	return false
}
