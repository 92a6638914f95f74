package session

// Metrics is a thread-safe read-only view of the session. It is updated on
// the session goroutine and read from HTTP handlers and tests.
type Metrics struct {
	ModelID       string  `json:"model_id"`
	Step          uint64  `json:"step"`
	StepsTotal    uint64  `json:"steps_total"`
	Plates        int     `json:"plates"`
	Fields        int     `json:"fields"`
	Subducting    int     `json:"subducting"`
	Orogeny       int     `json:"orogeny"`
	Subplate      int     `json:"subplate"`
	Trenches      int     `json:"trenches"`
	Eruptions     int     `json:"eruptions"`
	Earthquakes   int     `json:"earthquakes"`
	StepMS        float64 `json:"step_ms"`
	Observers     int     `json:"observers"`
	Paused        bool    `json:"paused"`
	SnapshotDrops uint64  `json:"snapshot_drops"`
	LastError     string  `json:"last_error,omitempty"`
}

// Info describes the model's static parameters; it changes only on load.
type Info struct {
	ModelID       string  `json:"model_id"`
	Divisions     int     `json:"divisions"`
	FieldCount    int     `json:"field_count"`
	FieldDiameter float64 `json:"field_diameter"`
	Optimized     bool    `json:"optimized"`
	Timestep      float64 `json:"timestep"`
	Seed          int64   `json:"seed"`
	StepRateHz    int     `json:"step_rate_hz"`
}

func (s *Session) Metrics() Metrics {
	if s == nil {
		return Metrics{}
	}
	m, _ := s.metrics.Load().(Metrics)
	return m
}

func (s *Session) Info() Info {
	if s == nil {
		return Info{}
	}
	i, _ := s.info.Load().(Info)
	return i
}

func (s *Session) publishMetrics() {
	st := s.model.Stats()
	m := Metrics{
		ModelID:       s.cfg.ModelID,
		Step:          s.model.StepIdx(),
		StepsTotal:    s.stepsTotal.Load(),
		Plates:        st.Plates,
		Fields:        st.Fields,
		Subducting:    st.Subducting,
		Orogeny:       st.Orogeny,
		Subplate:      st.Subplate,
		Trenches:      st.Trenches,
		Eruptions:     st.Eruptions,
		Earthquakes:   st.Earthquakes,
		StepMS:        s.stepMS,
		Observers:     len(s.observers),
		Paused:        s.paused,
		SnapshotDrops: s.snapshotDrops.Load(),
	}
	if s.fatal != nil {
		m.LastError = s.fatal.Error()
	}
	s.metrics.Store(m)
}

func (s *Session) publishInfo() {
	g := s.model.Grid()
	cfg := s.model.Config()
	s.info.Store(Info{
		ModelID:       s.cfg.ModelID,
		Divisions:     g.Divisions(),
		FieldCount:    g.Size(),
		FieldDiameter: g.FieldDiameter(),
		Optimized:     g.Optimized(),
		Timestep:      cfg.Timestep,
		Seed:          cfg.Seed,
		StepRateHz:    s.cfg.StepRateHz,
	})
}
