package tectonics

// StepLogEntry is the per-step machine-readable record.
type StepLogEntry struct {
	Step        uint64  `json:"step"`
	Digest      string  `json:"digest"`
	Plates      int     `json:"plates"`
	Fields      int     `json:"fields"`
	Subducting  int     `json:"subducting"`
	Orogeny     int     `json:"orogeny"`
	Eruptions   int     `json:"eruptions"`
	Earthquakes int     `json:"earthquakes"`
	Subplate    int     `json:"subplate"`
	Collisions  int     `json:"collisions"`
	NewFields   int     `json:"new_fields"`
	StepMS      float64 `json:"step_ms"`
}

// LogEntry summarizes the last completed step.
func (m *Model) LogEntry(stepMS float64) StepLogEntry {
	s := m.Stats()
	return StepLogEntry{
		Step:        m.stepIdx,
		Digest:      m.StateDigest(),
		Plates:      s.Plates,
		Fields:      s.Fields,
		Subducting:  s.Subducting,
		Orogeny:     s.Orogeny,
		Eruptions:   s.Eruptions,
		Earthquakes: s.Earthquakes,
		Subplate:    s.Subplate,
		Collisions:  s.Collisions,
		NewFields:   s.NewFields,
		StepMS:      stepMS,
	}
}
