// Package worldgen builds initial plate layouts: Voronoi plates over the
// grid, continents from simplex noise, and hot spots that keep each plate
// moving against drag.
package worldgen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	opensimplex "github.com/ojrac/opensimplex-go"

	"platesim/internal/sim/grid"
	"platesim/internal/sim/tectonics"
	"platesim/internal/sim/tuning"
)

const (
	PresetNoise     = "noise"
	PresetTwoPlates = "two-plates"
)

// Shelf elevation for ocean cells touching a coast.
const shelfElevation = 0.4

type Options struct {
	Preset            string
	Seed              int64
	Plates            int
	MaxContinentRatio float64
	NoiseScale        float64
	ContinentLevel    float64
	MaxAngularSpeed   float64
	// HotSpotStrength scales each hot spot's torque relative to the plate's
	// initial drag torque. 0 disables hot spots.
	HotSpotStrength float64
}

func OptionsFromTuning(w tuning.WorldGen, seed int64) Options {
	return Options{
		Preset:            w.Preset,
		Seed:              seed,
		Plates:            w.Plates,
		MaxContinentRatio: w.MaxContinentRatio,
		NoiseScale:        w.NoiseScale,
		ContinentLevel:    w.ContinentLevel,
		MaxAngularSpeed:   w.MaxAngularSpeed,
		HotSpotStrength:   w.HotSpotStrength,
	}
}

// Generate builds a fresh model on g. The result depends only on opts and
// the grid.
func Generate(g *grid.Grid, cfg tectonics.Config, opts Options) (*tectonics.Model, error) {
	var m *tectonics.Model
	var err error
	switch opts.Preset {
	case PresetNoise, "":
		m, err = generateNoise(g, cfg, opts)
	case PresetTwoPlates:
		m, err = generateTwoPlates(g, cfg, opts)
	default:
		return nil, fmt.Errorf("unknown worldgen preset %q", opts.Preset)
	}
	if err != nil {
		return nil, err
	}
	if err := m.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}
	return m, nil
}

func generateNoise(g *grid.Grid, cfg tectonics.Config, opts Options) (*tectonics.Model, error) {
	n := opts.Plates
	if n < 1 || n > g.Size() {
		return nil, fmt.Errorf("plate count %d out of range 1..%d", n, g.Size())
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	noise := opensimplex.NewNormalized(opts.Seed)

	seeds := pickSeeds(rng, g, n)
	regions := voronoi(g, seeds)

	// Denser plates subduct under lighter ones, so densities must differ.
	order := rng.Perm(n)
	hueOffset := rng.Intn(360)

	m := tectonics.NewModel(g, cfg)
	for i := 0; i < n; i++ {
		p, err := m.AddPlate(tectonics.PlateOptions{
			ID:              tectonics.PlateID(i),
			Density:         float64(1 + order[i]),
			Hue:             (hueOffset + i*360/n) % 360,
			AngularVelocity: randomAngularVelocity(rng, opts.MaxAngularSpeed),
		})
		if err != nil {
			return nil, err
		}
		continents := continentCells(g, noise, regions[i], opts)
		for _, id := range regions[i] {
			fo := tectonics.FieldOptions{ID: id, Type: tectonics.Ocean, Age: cfg.MaxAge()}
			if continents[id] {
				fo.Type = tectonics.Continent
				fo.Age = 0
			} else if coastal(g, id, continents) {
				e := shelfElevation
				fo.Elevation = &e
			}
			if _, err := p.AddField(fo); err != nil {
				return nil, err
			}
		}
		addHotSpot(p, opts.HotSpotStrength)
	}
	return m, nil
}

// generateTwoPlates splits the sphere at x = 0: an ocean plate (x < 0)
// rotating about -z into a continental plate (x >= 0).
func generateTwoPlates(g *grid.Grid, cfg tectonics.Config, opts Options) (*tectonics.Model, error) {
	m := tectonics.NewModel(g, cfg)
	speed := opts.MaxAngularSpeed
	ocean, err := m.AddPlate(tectonics.PlateOptions{ID: 0, Density: 2, Hue: 210, AngularVelocity: mgl64.Vec3{0, 0, -speed}})
	if err != nil {
		return nil, err
	}
	cont, err := m.AddPlate(tectonics.PlateOptions{ID: 1, Density: 1, Hue: 40})
	if err != nil {
		return nil, err
	}
	for id := 0; id < g.Size(); id++ {
		if g.Position(id)[0] < 0 {
			_, err = ocean.AddField(tectonics.FieldOptions{ID: id, Type: tectonics.Ocean, Age: cfg.MaxAge()})
		} else {
			_, err = cont.AddField(tectonics.FieldOptions{ID: id, Type: tectonics.Continent})
		}
		if err != nil {
			return nil, err
		}
	}
	addHotSpot(ocean, opts.HotSpotStrength)
	return m, nil
}

// pickSeeds draws n distinct cells.
func pickSeeds(rng *rand.Rand, g *grid.Grid, n int) []int {
	seen := make(map[int]bool, n)
	seeds := make([]int, 0, n)
	for len(seeds) < n {
		id := rng.Intn(g.Size())
		if seen[id] {
			continue
		}
		seen[id] = true
		seeds = append(seeds, id)
	}
	return seeds
}

// voronoi assigns every cell to the seed with the smallest angular
// distance. Ties go to the lower plate index.
func voronoi(g *grid.Grid, seeds []int) [][]int {
	regions := make([][]int, len(seeds))
	for id := 0; id < g.Size(); id++ {
		pos := g.Position(id)
		best, bestDot := 0, math.Inf(-1)
		for i, s := range seeds {
			if d := pos.Dot(g.Position(s)); d > bestDot {
				best, bestDot = i, d
			}
		}
		regions[best] = append(regions[best], id)
	}
	return regions
}

func noiseAt(noise opensimplex.Noise, p mgl64.Vec3, scale float64) float64 {
	var v, amp, norm float64 = 0, 1, 0
	freq := scale
	for o := 0; o < 4; o++ {
		v += amp * noise.Eval3(p[0]*freq, p[1]*freq, p[2]*freq)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return v / norm
}

// continentCells thresholds the noise over one plate and keeps at most
// MaxContinentRatio of the plate continental, highest noise first.
func continentCells(g *grid.Grid, noise opensimplex.Noise, region []int, opts Options) map[int]bool {
	type cell struct {
		id int
		v  float64
	}
	var above []cell
	for _, id := range region {
		v := noiseAt(noise, g.Position(id), opts.NoiseScale)
		if v > opts.ContinentLevel {
			above = append(above, cell{id, v})
		}
	}
	limit := int(opts.MaxContinentRatio * float64(len(region)))
	if len(above) > limit {
		sort.Slice(above, func(i, j int) bool {
			if above[i].v != above[j].v {
				return above[i].v > above[j].v
			}
			return above[i].id < above[j].id
		})
		above = above[:limit]
	}
	out := make(map[int]bool, len(above))
	for _, c := range above {
		out[c.id] = true
	}
	return out
}

func coastal(g *grid.Grid, id int, continents map[int]bool) bool {
	for _, n := range g.Neighbors(id) {
		if continents[n] {
			return true
		}
	}
	return false
}

// randomAngularVelocity has a uniformly distributed axis and a speed in
// [max/3, max].
func randomAngularVelocity(rng *rand.Rand, max float64) mgl64.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(1 - z*z)
	axis := mgl64.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
	speed := max * (1 + 2*rng.Float64()) / 3
	return axis.Mul(speed)
}

// addHotSpot places a hot spot at the plate's center of mass, pushing along
// the plate's motion there with a torque of strength times the drag torque.
func addHotSpot(p *tectonics.Plate, strength float64) {
	if strength <= 0 || p.Size() == 0 {
		return
	}
	c := p.CenterOfMass()
	dir := p.AngularVelocity.Cross(c)
	drag := p.Torque().Len()
	if c.Len() == 0 || dir.Len() == 0 || drag == 0 {
		return
	}
	p.HotSpot = &tectonics.HotSpot{
		Position: c,
		Force:    dir.Normalize().Mul(strength * drag),
	}
}
