package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("snapshot: unsupported version")

type Header struct {
	Version int    `json:"version"`
	ModelID string `json:"model_id"`
	Step    uint64 `json:"step"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Grid   GridV1   `json:"grid"`
	Config ConfigV1 `json:"config"`

	Plates []PlateV1 `json:"plates"`
}

type GridV1 struct {
	Divisions        int  `json:"divisions"`
	Optimized        bool `json:"optimized,omitempty"`
	ApproxResolution int  `json:"approx_resolution,omitempty"`
}

// ConfigV1 captures every engine constant so a restored model steps
// identically regardless of the tuning file in use at load time.
type ConfigV1 struct {
	Timestep float64 `json:"timestep"`
	Seed     int64   `json:"seed"`

	EarthRadius       float64 `json:"earth_radius_km"`
	OceanicRidgeWidth float64 `json:"oceanic_ridge_width_km"`
	SubductionWidth   float64 `json:"subduction_width_km"`

	ContinentDensity float64 `json:"continent_density"`
	OceanDensity     float64 `json:"ocean_density"`
	MassModifier     float64 `json:"mass_modifier"`

	BasicDrag    float64 `json:"basic_drag"`
	OrogenicDrag float64 `json:"orogenic_drag"`
	Dynamics     bool    `json:"dynamics,omitempty"`

	OceanicRidgeElevation  float64 `json:"oceanic_ridge_elevation"`
	SubductionMinElevation float64 `json:"subduction_min_elevation"`
	TrenchElevation        float64 `json:"trench_elevation"`

	FoldingStressFactor   float64 `json:"folding_stress_factor"`
	StressSpreadingFactor float64 `json:"stress_spreading_factor"`
	MinSpreadStress       float64 `json:"min_spread_stress"`
	AndeanFoldingFactor   float64 `json:"andean_folding_factor"`

	RevertSubductionVel float64 `json:"revert_subduction_vel"`
	MinProgressToDetach float64 `json:"min_progress_to_detach"`
	MinSpeedToDetach    float64 `json:"min_speed_to_detach"`
	MinAngleToDetach    float64 `json:"min_angle_to_detach"`
	SubplateSinkRate    float64 `json:"subplate_sink_rate"`

	VolcanicActivityRise  float64 `json:"volcanic_activity_rise"`
	VolcanicActivityDecay float64 `json:"volcanic_activity_decay"`
	RisingMagmaThreshold  float64 `json:"rising_magma_threshold"`

	VolcanicEruptionLifespan    float64 `json:"volcanic_eruption_lifespan"`
	VolcanicEruptionProbability float64 `json:"volcanic_eruption_probability"`
	RidgeEruptionProbability    float64 `json:"ridge_eruption_probability"`

	EarthquakeLifespan              float64 `json:"earthquake_lifespan"`
	EarthquakeSubductionProbability float64 `json:"earthquake_subduction_probability"`
	EarthquakeDivergentProbability  float64 `json:"earthquake_divergent_probability"`

	NewOceanicCrust bool `json:"new_oceanic_crust,omitempty"`
}

type PlateV1 struct {
	ID              int        `json:"id"`
	Quaternion      [4]float64 `json:"quaternion"` // w, x, y, z
	AngularVelocity [3]float64 `json:"angular_velocity"`
	Density         float64    `json:"density"`
	Hue             int        `json:"hue"`
	HotSpot         *HotSpotV1 `json:"hot_spot,omitempty"`

	Fields   []FieldV1 `json:"fields"`
	Subplate []FieldV1 `json:"subplate,omitempty"`
}

type HotSpotV1 struct {
	Position [3]float64 `json:"position"`
	Force    [3]float64 `json:"force"`
}

// FieldV1 is the allow-list of persisted field attributes. Transient
// per-step state (colliding, dragging plate, positions) is never stored.
type FieldV1 struct {
	ID                 int     `json:"id"`
	Type               uint8   `json:"type"`
	Age                float64 `json:"age,omitempty"`
	BaseElevation      float64 `json:"base_elevation"`
	BaseCrustThickness float64 `json:"base_crust_thickness"`
	Boundary           bool    `json:"boundary,omitempty"`
	Trench             bool    `json:"trench,omitempty"`
	Marked             bool    `json:"marked,omitempty"`
	OriginalHue        *HueV1  `json:"original_hue,omitempty"`
	NoCollisionDist    float64 `json:"no_collision_dist,omitempty"`

	Orogeny          *OrogenyV1          `json:"orogeny,omitempty"`
	Subduction       *SubductionV1       `json:"subduction,omitempty"`
	VolcanicAct      *VolcanicActivityV1 `json:"volcanic_act,omitempty"`
	VolcanicEruption *VolcanicEruptionV1 `json:"volcanic_eruption,omitempty"`
	Earthquake       *EarthquakeV1       `json:"earthquake,omitempty"`
}

// HueV1 wraps the hue because gob drops pointers to zero scalars; hue 0
// must survive a round trip.
type HueV1 struct {
	Hue int `json:"hue"`
}

type OrogenyV1 struct {
	MaxFoldingStress float64 `json:"max_folding_stress"`
}

type SubductionV1 struct {
	Dist float64 `json:"dist"`
}

type VolcanicActivityV1 struct {
	Value float64 `json:"value"`
}

type VolcanicEruptionV1 struct {
	Lifespan float64 `json:"lifespan"`
}

type EarthquakeV1 struct {
	Lifespan  float64 `json:"lifespan"`
	Depth     float64 `json:"depth"`
	Magnitude float64 `json:"magnitude"`
}

// FieldCount counts plate fields, not subplate members.
func (s *SnapshotV1) FieldCount() int {
	n := 0
	for i := range s.Plates {
		n += len(s.Plates[i].Fields)
	}
	return n
}

// Encode writes zstd(header JSON line + gob body).
func Encode(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func Decode(r io.Reader) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("parse header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the header line, for cheap listings.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

func Marshal(snap SnapshotV1) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte) (SnapshotV1, error) {
	return Decode(bytes.NewReader(b))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	defer f.Close()
	return Decode(f)
}
