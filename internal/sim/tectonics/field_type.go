package tectonics

import "fmt"

type FieldType uint8

const (
	Ocean FieldType = iota
	Continent
	Island
)

// MinContinentalCrustThickness is the thickness below which stretched
// continental crust gives way to new oceanic crust.
const MinContinentalCrustThickness = 0.45

func (t FieldType) String() string {
	switch t {
	case Ocean:
		return "ocean"
	case Continent:
		return "continent"
	case Island:
		return "island"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "ocean":
		return Ocean, nil
	case "continent":
		return Continent, nil
	case "island":
		return Island, nil
	}
	return Ocean, fmt.Errorf("unknown field type %q", s)
}

func (t FieldType) Valid() bool { return t <= Island }

func (t FieldType) ContinentalCrust() bool { return t == Continent || t == Island }

// DefaultElevation: 0 is the deepest ocean floor, 0.5 is sea level.
func (t FieldType) DefaultElevation() float64 {
	if t == Ocean {
		return 0
	}
	return 0.55
}

func (t FieldType) DefaultCrustThickness(baseElevation float64) float64 {
	if t == Ocean {
		return 0.2
	}
	return baseElevation
}
