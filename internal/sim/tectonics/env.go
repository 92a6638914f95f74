package tectonics

import (
	"math/rand"

	"platesim/internal/sim/grid"
)

// PlateID is a non-owning reference to a plate of the same model.
type PlateID int

const NoPlate PlateID = -1

// env is the context shared by a model, its plates and their fields.
type env struct {
	grid   *grid.Grid
	cfg    Config
	plates map[PlateID]*Plate
	rng    *rand.Rand

	// fieldArea is the area of one field in km².
	fieldArea     float64
	fieldDiameter float64
}

func newEnv(g *grid.Grid, cfg Config) *env {
	e := &env{
		grid:          g,
		cfg:           cfg,
		plates:        make(map[PlateID]*Plate),
		fieldArea:     cfg.EarthArea() / float64(g.Size()),
		fieldDiameter: g.FieldDiameter(),
	}
	e.reseed(0)
	return e
}

// reseed derives the RNG from the model seed and the step index so that a
// model restored from a snapshot draws the same numbers as the original run.
func (e *env) reseed(step uint64) {
	e.rng = rand.New(rand.NewSource(e.cfg.Seed*1_000_003 + int64(step)))
}

func (e *env) plate(id PlateID) *Plate {
	if id == NoPlate {
		return nil
	}
	return e.plates[id]
}
