package grid

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func mustGrid(t *testing.T, opts Options) *Grid {
	t.Helper()
	g, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNew_InvalidDivisions(t *testing.T) {
	for _, n := range []int{0, -3, MaxDivisions + 1} {
		if _, err := New(Options{Divisions: n}); !errors.Is(err, ErrInvalidDivisions) {
			t.Fatalf("divisions=%d: expected ErrInvalidDivisions, got %v", n, err)
		}
	}
}

func TestGrid_CellCountAndPentagons(t *testing.T) {
	for _, n := range []int{1, 2, 5, 8} {
		g := mustGrid(t, Options{Divisions: n})
		if got, want := g.Size(), 10*n*n+2; got != want {
			t.Fatalf("n=%d: size=%d want %d", n, got, want)
		}
		pent := 0
		for id := 0; id < g.Size(); id++ {
			switch len(g.Neighbors(id)) {
			case 5:
				pent++
			case 6:
			default:
				t.Fatalf("n=%d: cell %d has %d neighbours", n, id, len(g.Neighbors(id)))
			}
		}
		if pent != 12 {
			t.Fatalf("n=%d: pentagons=%d want 12", n, pent)
		}
	}
}

func TestGrid_AdjacencySymmetric(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 6})
	for id := 0; id < g.Size(); id++ {
		for _, nb := range g.Neighbors(id) {
			found := false
			for _, back := range g.Neighbors(nb) {
				if back == id {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("cell %d lists %d but not vice versa", id, nb)
			}
		}
	}
}

func TestGrid_PositionsOnUnitSphere(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 4})
	for id := 0; id < g.Size(); id++ {
		if l := g.Position(id).Len(); math.Abs(l-1) > 1e-12 {
			t.Fatalf("cell %d len=%v", id, l)
		}
	}
	if d := g.FieldDiameter(); d <= 0 || d > 1 {
		t.Fatalf("field diameter out of range: %v", d)
	}
}

func TestGrid_Deterministic(t *testing.T) {
	a := mustGrid(t, Options{Divisions: 5})
	b := mustGrid(t, Options{Divisions: 5})
	for id := 0; id < a.Size(); id++ {
		if a.Position(id) != b.Position(id) {
			t.Fatalf("position mismatch at %d", id)
		}
		na, nb := a.Neighbors(id), b.Neighbors(id)
		if len(na) != len(nb) {
			t.Fatalf("neighbour count mismatch at %d", id)
		}
		for i := range na {
			if na[i] != nb[i] {
				t.Fatalf("neighbour order mismatch at %d", id)
			}
		}
	}
}

func TestNearestFieldID_ExactMatchesBruteForce(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 6})
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		p := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		got := g.NearestFieldID(p)
		best, bestD := -1, math.Inf(1)
		for id := 0; id < g.Size(); id++ {
			if d := sqDist(g.Position(id), p); d < bestD {
				best, bestD = id, d
			}
		}
		if sqDist(g.Position(got), p) > bestD+1e-15 {
			t.Fatalf("kd-tree returned %d, brute force %d", got, best)
		}
	}
}

func TestNearestFieldID_CellCentresMapToThemselves(t *testing.T) {
	exact := mustGrid(t, Options{Divisions: 6})
	approx := mustGrid(t, Options{Divisions: 6, Optimized: true})
	mismatches := 0
	for id := 0; id < exact.Size(); id++ {
		if got := exact.NearestFieldID(exact.Position(id)); got != id {
			t.Fatalf("exact: centre of %d resolved to %d", id, got)
		}
		if approx.NearestFieldID(approx.Position(id)) != id {
			mismatches++
		}
	}
	// The cube map trades resolution for O(1) lookups; centres must still
	// resolve correctly almost everywhere.
	if ratio := float64(mismatches) / float64(exact.Size()); ratio > 0.02 {
		t.Fatalf("approximate index mismatch ratio too high: %.3f", ratio)
	}
}

func TestNearestFieldID_ApproxIsAdjacentWhenWrong(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 6, Optimized: true})
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		p := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		a := g.NearestFieldID(p)
		e := g.NearestFieldIDExact(p)
		if a == e {
			continue
		}
		adjacent := false
		for _, nb := range g.Neighbors(e) {
			if nb == a {
				adjacent = true
			}
		}
		if !adjacent {
			t.Fatalf("approximate id %d is not adjacent to exact id %d", a, e)
		}
	}
}

func TestNearestFieldIDs_Ordered(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 4})
	p := g.Position(10)
	ids := g.NearestFieldIDs(p, 7)
	if len(ids) != 7 || ids[0] != 10 {
		t.Fatalf("unexpected k-nearest: %v", ids)
	}
	for i := 1; i < len(ids); i++ {
		if sqDist(g.Position(ids[i-1]), p) > sqDist(g.Position(ids[i]), p) {
			t.Fatalf("not ordered by distance: %v", ids)
		}
	}
}

func TestGeo_RoundTrip(t *testing.T) {
	lat, lon := ToLatLon(ToCartesian(35, -120))
	if math.Abs(lat-35) > 1e-9 || math.Abs(lon+120) > 1e-9 {
		t.Fatalf("round trip: %v %v", lat, lon)
	}
	a, b := ToCartesian(0, 0), ToCartesian(0, 90)
	if d := ArcLength(a, b); math.Abs(d-math.Pi/2) > 1e-12 {
		t.Fatalf("arc length: %v", d)
	}
	mid := Slerp(a, b, 0.5)
	if math.Abs(ArcLength(a, mid)-math.Pi/4) > 1e-9 {
		t.Fatalf("slerp midpoint off")
	}
}

func TestNearestFieldIDs_MatchesBruteForce(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 5})
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		p := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		got := g.NearestFieldIDs(p, 6)
		all := make([]int, g.Size())
		for id := range all {
			all[id] = id
		}
		sort.Slice(all, func(a, b int) bool {
			return sqDist(g.Position(all[a]), p) < sqDist(g.Position(all[b]), p)
		})
		if len(got) != 6 {
			t.Fatalf("got %d ids, want 6", len(got))
		}
		for j, id := range got {
			if math.Abs(sqDist(g.Position(id), p)-sqDist(g.Position(all[j]), p)) > 1e-15 {
				t.Fatalf("rank %d: kd-tree %d, brute force %d", j, id, all[j])
			}
		}
	}
}

func TestNearestFieldIDs_MoreThanSize(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 1})
	ids := g.NearestFieldIDs(g.Position(0), 100)
	if len(ids) != g.Size() {
		t.Fatalf("got %d ids, want all %d cells", len(ids), g.Size())
	}
	seen := map[int]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d in %v", id, ids)
		}
		seen[id] = true
	}
}

func TestNearestFieldID_NaNQuery(t *testing.T) {
	g := mustGrid(t, Options{Divisions: 3})
	p := mgl64.Vec3{math.NaN(), 0, 1}
	if id := g.NearestFieldIDExact(p); id != -1 {
		t.Fatalf("NaN query resolved to %d", id)
	}
	if ids := g.NearestFieldIDs(p, 3); len(ids) != 0 {
		t.Fatalf("NaN query resolved to %v", ids)
	}
}
