package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ToCartesian converts latitude/longitude in degrees to a unit vector (y up).
func ToCartesian(lat, lon float64) mgl64.Vec3 {
	la := mgl64.DegToRad(lat)
	lo := mgl64.DegToRad(lon)
	return mgl64.Vec3{
		math.Cos(la) * math.Sin(lo),
		math.Sin(la),
		math.Cos(la) * math.Cos(lo),
	}
}

// ToLatLon is the inverse of ToCartesian for any non-zero vector.
func ToLatLon(p mgl64.Vec3) (lat, lon float64) {
	p = p.Normalize()
	lat = mgl64.RadToDeg(math.Asin(mgl64.Clamp(p[1], -1, 1)))
	lon = mgl64.RadToDeg(math.Atan2(p[0], p[2]))
	return lat, lon
}

// Slerp walks the great-circle arc from a to b; t in [0, 1].
func Slerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	a, b = a.Normalize(), b.Normalize()
	dot := mgl64.Clamp(a.Dot(b), -1, 1)
	omega := math.Acos(dot)
	if omega < 1e-9 {
		return a
	}
	s := math.Sin(omega)
	return a.Mul(math.Sin((1-t)*omega) / s).Add(b.Mul(math.Sin(t*omega) / s)).Normalize()
}

// ArcLength is the great-circle distance between two unit vectors.
func ArcLength(a, b mgl64.Vec3) float64 {
	return math.Acos(mgl64.Clamp(a.Normalize().Dot(b.Normalize()), -1, 1))
}
