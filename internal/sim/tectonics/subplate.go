package tectonics

// addToSubplate moves a detached slab field under this plate. The source
// field is killed; its copy is keyed by the local cell it now lies under.
// When that cell already holds a slab field the source stays where it is
// and keeps subducting on its own plate.
func (p *Plate) addToSubplate(f *Field) bool {
	if !f.Alive {
		return false
	}
	id := p.env.grid.NearestFieldID(p.LocalPosition(f.absPos))
	if !p.env.grid.Valid(id) {
		return false
	}
	if _, taken := p.subplate[id]; taken {
		return false
	}
	f.Alive = false
	c := DeserializeField(f.Serialize())
	c.ID = id
	if c.OriginalHue == nil {
		if src := f.Plate(); src != nil {
			hue := src.Hue
			c.OriginalHue = &hue
		}
	}
	c.Boundary = false
	c.Trench = false
	if c.Subduction == nil {
		c.Subduction = newSubduction(c)
	}
	p.attach(c, true)
	p.subplate[id] = c
	p.subIDs = nil
	return true
}

// processSubplate sinks the slab further. Fields past the max subduction
// width or no longer covered by the plate disappear.
func (p *Plate) processSubplate(dt float64) {
	if len(p.subplate) == 0 {
		return
	}
	cfg := &p.env.cfg
	max := cfg.MaxSubductionDist()
	for _, f := range p.SubplateFields() {
		if _, covered := p.fields[f.ID]; !covered {
			delete(p.subplate, f.ID)
			continue
		}
		f.Subduction.Dist += cfg.SubplateSinkRate * dt
		if f.Subduction.Dist > max {
			delete(p.subplate, f.ID)
		}
	}
	p.subIDs = nil
}
