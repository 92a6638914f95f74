package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// cell is a centroid as stored in the kd-tree. Distances are squared
// Euclidean, which orders points on the unit sphere the same way as arcs.
type cell struct {
	id  int
	pos mgl64.Vec3
}

func (c cell) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	return c.pos[d] - o.(cell).pos[d]
}

func (c cell) Dims() int { return 3 }

func (c cell) Distance(o kdtree.Comparable) float64 { return sqDist(c.pos, o.(cell).pos) }

type cells []cell

func (c cells) Index(i int) kdtree.Comparable         { return c[i] }
func (c cells) Len() int                              { return len(c) }
func (c cells) Pivot(d kdtree.Dim) int                { return cellPlane{Dim: d, cells: c}.Pivot() }
func (c cells) Slice(start, end int) kdtree.Interface { return c[start:end] }

// cellPlane sorts cells along one axis while the tree is built.
type cellPlane struct {
	kdtree.Dim
	cells
}

func (p cellPlane) Less(i, j int) bool {
	a, b := p.cells[i].pos[p.Dim], p.cells[j].pos[p.Dim]
	if a == b {
		return p.cells[i].id < p.cells[j].id
	}
	return a < b
}

// MedianOfMedians keeps the layout independent of any random source.
func (p cellPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p cellPlane) Slice(start, end int) kdtree.SortSlicer {
	p.cells = p.cells[start:end]
	return p
}

func (p cellPlane) Swap(i, j int) { p.cells[i], p.cells[j] = p.cells[j], p.cells[i] }

// cellIndex is the exact nearest-cell index over all centroids.
type cellIndex struct {
	tree *kdtree.Tree
}

func newCellIndex(positions []mgl64.Vec3) *cellIndex {
	cs := make(cells, len(positions))
	for i, p := range positions {
		cs[i] = cell{id: i, pos: p}
	}
	return &cellIndex{tree: kdtree.New(cs, false)}
}

// nearest returns the id of the centroid closest to p. A query with a NaN
// coordinate matches nothing and yields -1.
func (x *cellIndex) nearest(p mgl64.Vec3) int {
	if hasNaN(p) {
		return -1
	}
	c, _ := x.tree.Nearest(cell{id: -1, pos: p})
	if c == nil {
		return -1
	}
	return c.(cell).id
}

// nearestK returns up to k ids ordered by distance, ties by lower id.
func (x *cellIndex) nearestK(p mgl64.Vec3, k int) []int {
	if k <= 0 || hasNaN(p) {
		return nil
	}
	keep := kdtree.NewNKeeper(k)
	x.tree.NearestSet(keep, cell{id: -1, pos: p})
	hits := make([]kdtree.ComparableDist, 0, len(keep.Heap))
	for _, h := range keep.Heap {
		// The keeper is seeded with an empty sentinel.
		if h.Comparable != nil {
			hits = append(hits, h)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist == hits[j].Dist {
			return hits[i].Comparable.(cell).id < hits[j].Comparable.(cell).id
		}
		return hits[i].Dist < hits[j].Dist
	})
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Comparable.(cell).id
	}
	return out
}

func hasNaN(p mgl64.Vec3) bool {
	return math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsNaN(p[2])
}

func sqDist(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}
