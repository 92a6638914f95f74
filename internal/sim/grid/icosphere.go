package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

var icoCorners = func() []mgl64.Vec3 {
	t := (1 + math.Sqrt(5)) / 2
	raw := []mgl64.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range raw {
		raw[i] = raw[i].Normalize()
	}
	return raw
}()

var icoFaces = [20][3]int{
	{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
	{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
	{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
	{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
}

// vertexKey identifies a subdivision vertex by its integer barycentric weights
// over icosahedron corners. Vertices on shared edges get the same key from
// both faces, so deduplication is exact.
type vertexKey [3][2]int

func makeKey(corners [3]int, weights [3]int) vertexKey {
	type cw struct{ c, w int }
	parts := make([]cw, 0, 3)
	for i := 0; i < 3; i++ {
		if weights[i] > 0 {
			parts = append(parts, cw{corners[i], weights[i]})
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].c < parts[j].c })
	var k vertexKey
	for i := range k {
		k[i] = [2]int{-1, 0}
	}
	for i, p := range parts {
		k[i] = [2]int{p.c, p.w}
	}
	return k
}

func keyPosition(k vertexKey) mgl64.Vec3 {
	var p mgl64.Vec3
	for _, cw := range k {
		if cw[0] < 0 {
			continue
		}
		p = p.Add(icoCorners[cw[0]].Mul(float64(cw[1])))
	}
	return p.Normalize()
}

// subdivide builds the geodesic mesh: cell positions and undirected adjacency.
func subdivide(n int) ([]mgl64.Vec3, [][]int) {
	index := make(map[vertexKey]int, 10*n*n+2)
	var positions []mgl64.Vec3
	adj := make([]map[int]struct{}, 0, 10*n*n+2)

	vertex := func(face [3]int, i, j int) int {
		k := makeKey(face, [3]int{n - i - j, i, j})
		if id, ok := index[k]; ok {
			return id
		}
		id := len(positions)
		index[k] = id
		positions = append(positions, keyPosition(k))
		adj = append(adj, map[int]struct{}{})
		return id
	}
	link := func(a, b int) {
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}

	for _, face := range icoFaces {
		for i := 0; i <= n; i++ {
			for j := 0; j <= n-i; j++ {
				vertex(face, i, j)
			}
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n-i; j++ {
				a := vertex(face, i, j)
				b := vertex(face, i+1, j)
				c := vertex(face, i, j+1)
				link(a, b)
				link(b, c)
				link(c, a)
				if i+j < n-1 {
					d := vertex(face, i+1, j+1)
					link(b, d)
					link(d, c)
				}
			}
		}
	}

	neighbors := make([][]int, len(positions))
	for id, set := range adj {
		ids := make([]int, 0, len(set))
		for nb := range set {
			ids = append(ids, nb)
		}
		sort.Ints(ids)
		neighbors[id] = orderAround(positions, id, ids)
	}
	return positions, neighbors
}

// orderAround sorts neighbour ids counter-clockwise around the cell normal.
func orderAround(positions []mgl64.Vec3, id int, ids []int) []int {
	if len(ids) == 0 {
		return ids
	}
	p := positions[id]
	tangent := func(v mgl64.Vec3) mgl64.Vec3 {
		d := v.Sub(p)
		return d.Sub(p.Mul(d.Dot(p)))
	}
	e1 := tangent(positions[ids[0]]).Normalize()
	e2 := p.Cross(e1)
	angle := make(map[int]float64, len(ids))
	for _, nb := range ids {
		d := tangent(positions[nb])
		a := math.Atan2(d.Dot(e2), d.Dot(e1))
		if a < 0 {
			a += 2 * math.Pi
		}
		angle[nb] = a
	}
	sort.SliceStable(ids, func(i, j int) bool { return angle[ids[i]] < angle[ids[j]] })
	return ids
}
