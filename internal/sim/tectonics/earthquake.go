package tectonics

import "platesim/internal/persistence/snapshot"

type Earthquake struct {
	field     *Field
	Lifespan  float64
	Depth     float64 // 0 (surface) .. 1 (bottom of the lithosphere)
	Magnitude float64
}

func newEarthquake(f *Field) *Earthquake {
	e := f.env
	q := &Earthquake{field: f, Lifespan: e.cfg.EarthquakeLifespan}
	if f.Subduction != nil {
		// Deeper the further the slab has gone.
		q.Depth = 0.1 + 0.9*f.Subduction.Progress()*e.rng.Float64()
	} else {
		q.Depth = 0.1 * e.rng.Float64()
	}
	q.Magnitude = 3 + 6*e.rng.Float64()
	return q
}

func (q *Earthquake) Field() *Field { return q.field }

func (q *Earthquake) Serialize() snapshot.EarthquakeV1 {
	return snapshot.EarthquakeV1{Lifespan: q.Lifespan, Depth: q.Depth, Magnitude: q.Magnitude}
}

func DeserializeEarthquake(v snapshot.EarthquakeV1, f *Field) *Earthquake {
	return &Earthquake{field: f, Lifespan: v.Lifespan, Depth: v.Depth, Magnitude: v.Magnitude}
}

func (q *Earthquake) Active() bool { return q.Lifespan > 0 }

func (q *Earthquake) update(dt float64) { q.Lifespan -= dt }

func shouldCreateEarthquake(f *Field) bool {
	e := f.env
	if f.Subduction != nil {
		return e.rng.Float64() < e.cfg.EarthquakeSubductionProbability*f.Subduction.Progress()
	}
	if f.Boundary && f.IsOcean() && f.DivergentBoundaryZone() {
		return e.rng.Float64() < e.cfg.EarthquakeDivergentProbability
	}
	if f.activelyFolding() {
		return e.rng.Float64() < e.cfg.EarthquakeDivergentProbability
	}
	return false
}
