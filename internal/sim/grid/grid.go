// Package grid builds the geodesic sphere shared by every plate: cell
// positions, fixed adjacency and two nearest-cell indexes.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxDivisions bounds the subdivision level (10·n²+2 cells).
const MaxDivisions = 256

var ErrInvalidDivisions = errors.New("grid: invalid subdivision level")

type Options struct {
	// Divisions is the number of segments each icosahedron edge is split into.
	Divisions int
	// Optimized switches NearestFieldID to the O(1) cube-map lookup.
	Optimized bool
	// ApproxResolution is the cube-map texel count per face edge
	// (default: max(32, 6·Divisions)).
	ApproxResolution int
}

// Grid is immutable after New and safe for concurrent readers.
type Grid struct {
	opts          Options
	positions     []mgl64.Vec3
	neighbors     [][]int
	tree          *cellIndex
	approx        *cubeMap
	fieldDiameter float64
}

func New(opts Options) (*Grid, error) {
	if opts.Divisions < 1 || opts.Divisions > MaxDivisions {
		return nil, fmt.Errorf("%w: divisions=%d", ErrInvalidDivisions, opts.Divisions)
	}
	if opts.ApproxResolution <= 0 {
		opts.ApproxResolution = 6 * opts.Divisions
		if opts.ApproxResolution < 32 {
			opts.ApproxResolution = 32
		}
	}

	g := &Grid{opts: opts}
	g.positions, g.neighbors = subdivide(opts.Divisions)
	g.tree = newCellIndex(g.positions)
	g.approx = newCubeMap(opts.ApproxResolution, g.tree.nearest)
	g.fieldDiameter = g.calcFieldDiameter()
	return g, nil
}

// Options returns the options the grid was built with, defaults filled in.
func (g *Grid) Options() Options { return g.opts }

func (g *Grid) Divisions() int  { return g.opts.Divisions }
func (g *Grid) Optimized() bool { return g.opts.Optimized }
func (g *Grid) Size() int       { return len(g.positions) }

// Position returns the unit-sphere centroid of a cell.
func (g *Grid) Position(id int) mgl64.Vec3 { return g.positions[id] }

// Neighbors returns the adjacent cell ids, ordered counter-clockwise.
// The returned slice must not be modified.
func (g *Grid) Neighbors(id int) []int { return g.neighbors[id] }

func (g *Grid) Valid(id int) bool { return id >= 0 && id < len(g.positions) }

// FieldDiameter is the average distance between adjacent cell centroids.
func (g *Grid) FieldDiameter() float64 { return g.fieldDiameter }

// CellArea is the area of one cell on the unit sphere.
func (g *Grid) CellArea() float64 { return 4 * math.Pi / float64(len(g.positions)) }

// NearestFieldID returns the cell closest to p, using the exact kd-tree or
// the approximate cube map depending on Options.Optimized.
func (g *Grid) NearestFieldID(p mgl64.Vec3) int {
	if g.opts.Optimized {
		return g.approx.lookup(p)
	}
	return g.tree.nearest(p)
}

// NearestFieldIDExact always uses the kd-tree.
func (g *Grid) NearestFieldIDExact(p mgl64.Vec3) int { return g.tree.nearest(p) }

// NearestFieldIDs returns the k closest cells ordered by distance.
func (g *Grid) NearestFieldIDs(p mgl64.Vec3, k int) []int { return g.tree.nearestK(p, k) }

func (g *Grid) calcFieldDiameter() float64 {
	// Cell 3 is never one of the 12 pentagons for divisions > 1; any cell works.
	ref := 3
	if ref >= len(g.positions) {
		ref = 0
	}
	nbs := g.neighbors[ref]
	if len(nbs) == 0 {
		return 0
	}
	var sum float64
	for _, id := range nbs {
		sum += g.positions[ref].Sub(g.positions[id]).Len()
	}
	return sum / float64(len(nbs))
}
