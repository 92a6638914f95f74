package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe    = "SUBSCRIBE"
	TypeStep         = "STEP"
	TypeCrossSection = "CROSS_SECTION"
	TypeError        = "ERROR"
)

// Colormaps understood by renderers. Only "plate" changes the payload: it
// adds the original hue column.
const (
	ColormapTopo  = "topo"
	ColormapPlate = "plate"
	ColormapAge   = "age"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type             string           `json:"type"`
	ProtocolVersion  string           `json:"protocol_version"`
	RenderBoundaries bool             `json:"render_boundaries,omitempty"`
	RenderForces     bool             `json:"render_forces,omitempty"`
	RenderHotSpots   bool             `json:"render_hot_spots,omitempty"`
	Colormap         string           `json:"colormap,omitempty"`
	CrossSection     *CrossSectionReq `json:"cross_section,omitempty"`
}

// CrossSectionReq holds the path corners as [lat, lon] in degrees. P3 and P4
// are required only for the 3D (four wall) view.
type CrossSectionReq struct {
	P1      *[2]float64 `json:"p1"`
	P2      *[2]float64 `json:"p2"`
	P3      *[2]float64 `json:"p3,omitempty"`
	P4      *[2]float64 `json:"p4,omitempty"`
	Swapped bool        `json:"swapped,omitempty"`
	ThreeD  bool        `json:"three_d,omitempty"`
}

// RenderOptions is the per-observer view of a subscription.
type RenderOptions struct {
	Boundaries   bool
	Forces       bool
	HotSpots     bool
	Colormap     string
	CrossSection *CrossSectionReq
}

func (m SubscribeMsg) Options() RenderOptions {
	return RenderOptions{
		Boundaries:   m.RenderBoundaries,
		Forces:       m.RenderForces,
		HotSpots:     m.RenderHotSpots,
		Colormap:     m.Colormap,
		CrossSection: m.CrossSection,
	}
}

// HTTP response for GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	ModelID         string      `json:"model_id"`
	Step            uint64      `json:"step"`
	GridParams      GridParams  `json:"grid_params"`
	ModelParams     ModelParams `json:"model_params"`
}

type GridParams struct {
	Divisions     int     `json:"divisions"`
	FieldCount    int     `json:"field_count"`
	FieldDiameter float64 `json:"field_diameter"`
	Optimized     bool    `json:"optimized"`
}

type ModelParams struct {
	Timestep   float64 `json:"timestep"`
	StepRateHz int     `json:"step_rate_hz"`
	Seed       int64   `json:"seed"`
	Plates     int     `json:"plates"`
}

// Server -> Client, msgpack encoded. Sent every step; Fields is only
// present on the throttled fields channel.
type StepMsg struct {
	Type            string       `msgpack:"type" json:"type"`
	ProtocolVersion string       `msgpack:"protocol_version" json:"protocol_version"`
	Step            uint64       `msgpack:"step" json:"step"`
	Plates          []PlateState `msgpack:"plates" json:"plates"`
}

type PlateState struct {
	ID              int           `msgpack:"id" json:"id"`
	Quaternion      [4]float64    `msgpack:"quaternion" json:"quaternion"` // w, x, y, z
	AngularVelocity [3]float64    `msgpack:"angular_velocity" json:"angular_velocity"`
	Density         float64       `msgpack:"density" json:"density"`
	Hue             int           `msgpack:"hue" json:"hue"`
	HotSpot         *HotSpotState `msgpack:"hot_spot,omitempty" json:"hot_spot,omitempty"`
	Fields          *FieldArrays  `msgpack:"fields,omitempty" json:"fields,omitempty"`
	Subplate        *FieldArrays  `msgpack:"subplate,omitempty" json:"subplate,omitempty"`
}

type HotSpotState struct {
	Position [3]float64 `msgpack:"position" json:"position"`
	Force    [3]float64 `msgpack:"force" json:"force"`
}

// FieldArrays is the columnar per-field bundle. Optional columns are nil
// unless requested. OriginalHue uses -1 for fields without one.
type FieldArrays struct {
	ID          []uint32  `msgpack:"id" json:"id"`
	Elevation   []float32 `msgpack:"elevation" json:"elevation"`
	Boundary    []int8    `msgpack:"boundary,omitempty" json:"boundary,omitempty"`
	ForceX      []float32 `msgpack:"force_x,omitempty" json:"force_x,omitempty"`
	ForceY      []float32 `msgpack:"force_y,omitempty" json:"force_y,omitempty"`
	ForceZ      []float32 `msgpack:"force_z,omitempty" json:"force_z,omitempty"`
	OriginalHue []int16   `msgpack:"original_hue,omitempty" json:"original_hue,omitempty"`
}

// NoHue marks an absent original hue.
const NoHue int16 = -1

func (a *FieldArrays) Len() int { return len(a.ID) }

// Server -> Client, msgpack encoded, on the throttled cross-section channel.
type CrossSectionMsg struct {
	Type            string                `msgpack:"type" json:"type"`
	ProtocolVersion string                `msgpack:"protocol_version" json:"protocol_version"`
	Step            uint64                `msgpack:"step" json:"step"`
	Front           []CrossSectionSegment `msgpack:"front" json:"front"`
	Right           []CrossSectionSegment `msgpack:"right,omitempty" json:"right,omitempty"`
	Back            []CrossSectionSegment `msgpack:"back,omitempty" json:"back,omitempty"`
	Left            []CrossSectionSegment `msgpack:"left,omitempty" json:"left,omitempty"`
}

// CrossSectionSegment is a run of consecutive samples on one plate.
type CrossSectionSegment struct {
	PlateID int                 `msgpack:"plate_id" json:"plate_id"`
	Points  []CrossSectionPoint `msgpack:"points" json:"points"`
}

type CrossSectionPoint struct {
	Dist                 float32 `msgpack:"dist" json:"dist"` // along the path, unit sphere
	FieldID              uint32  `msgpack:"field_id" json:"field_id"`
	Elevation            float32 `msgpack:"elevation" json:"elevation"`
	CrustThickness       float32 `msgpack:"crust_thickness" json:"crust_thickness"`
	LithosphereThickness float32 `msgpack:"lithosphere_thickness" json:"lithosphere_thickness"`
	Subduction           float32 `msgpack:"subduction,omitempty" json:"subduction,omitempty"`
}

// Server -> Client, JSON.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Message         string `json:"message"`
	Fatal           bool   `json:"fatal,omitempty"`
}
