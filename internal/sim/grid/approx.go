package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// cubeMap caches the nearest cell id for every texel of a cube map projected
// onto the sphere. Lookups are O(1); accuracy is bounded by the texel size.
type cubeMap struct {
	res int
	ids []int32
}

func newCubeMap(res int, exact func(mgl64.Vec3) int) *cubeMap {
	m := &cubeMap{res: res, ids: make([]int32, 6*res*res)}
	for face := 0; face < 6; face++ {
		for i := 0; i < res; i++ {
			for j := 0; j < res; j++ {
				u := (float64(i)+0.5)/float64(res)*2 - 1
				v := (float64(j)+0.5)/float64(res)*2 - 1
				m.ids[m.index(face, i, j)] = int32(exact(faceDirection(face, u, v)))
			}
		}
	}
	return m
}

func (m *cubeMap) index(face, i, j int) int {
	return (face*m.res+i)*m.res + j
}

func (m *cubeMap) lookup(p mgl64.Vec3) int {
	face, u, v := project(p)
	i := texel(u, m.res)
	j := texel(v, m.res)
	return int(m.ids[m.index(face, i, j)])
}

func texel(u float64, res int) int {
	if math.IsNaN(u) {
		return 0
	}
	i := int(math.Floor((u + 1) / 2 * float64(res)))
	if i < 0 {
		return 0
	}
	if i >= res {
		return res - 1
	}
	return i
}

// Faces: 0 +X, 1 -X, 2 +Y, 3 -Y, 4 +Z, 5 -Z.
func faceDirection(face int, u, v float64) mgl64.Vec3 {
	var d mgl64.Vec3
	switch face {
	case 0:
		d = mgl64.Vec3{1, u, v}
	case 1:
		d = mgl64.Vec3{-1, u, v}
	case 2:
		d = mgl64.Vec3{u, 1, v}
	case 3:
		d = mgl64.Vec3{u, -1, v}
	case 4:
		d = mgl64.Vec3{u, v, 1}
	default:
		d = mgl64.Vec3{u, v, -1}
	}
	return d.Normalize()
}

func project(p mgl64.Vec3) (face int, u, v float64) {
	ax, ay, az := math.Abs(p[0]), math.Abs(p[1]), math.Abs(p[2])
	switch {
	case ax == 0 && ay == 0 && az == 0:
		return 0, 0, 0
	case ax >= ay && ax >= az:
		if p[0] >= 0 {
			face = 0
		} else {
			face = 1
		}
		return face, p[1] / ax, p[2] / ax
	case ay >= az:
		if p[1] >= 0 {
			face = 2
		} else {
			face = 3
		}
		return face, p[0] / ay, p[2] / ay
	default:
		if p[2] >= 0 {
			face = 4
		} else {
			face = 5
		}
		return face, p[0] / az, p[1] / az
	}
}
