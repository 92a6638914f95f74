package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Grid     Grid     `yaml:"grid"`
	Model    Model    `yaml:"model"`
	Output   Output   `yaml:"output"`
	Session  Session  `yaml:"session"`
	WorldGen WorldGen `yaml:"worldgen"`
}

type Grid struct {
	Divisions           int  `yaml:"divisions"`
	OptimizedCollisions bool `yaml:"optimized_collisions"`
	ApproxResolution    int  `yaml:"approx_resolution"`
}

type Model struct {
	Timestep float64 `yaml:"timestep"`
	Seed     int64   `yaml:"seed"`

	// Geometry, in km. Converted to unit-sphere distances by the engine.
	EarthRadius       float64 `yaml:"earth_radius_km"`
	OceanicRidgeWidth float64 `yaml:"oceanic_ridge_width_km"`
	SubductionWidth   float64 `yaml:"subduction_width_km"`

	ContinentDensity float64 `yaml:"continent_density"`
	OceanDensity     float64 `yaml:"ocean_density"`
	MassModifier     float64 `yaml:"mass_modifier"`

	BasicDrag    float64 `yaml:"basic_drag"`
	OrogenicDrag float64 `yaml:"orogenic_drag"`
	Dynamics     *bool   `yaml:"dynamics"`

	OceanicRidgeElevation  float64 `yaml:"oceanic_ridge_elevation"`
	SubductionMinElevation float64 `yaml:"subduction_min_elevation"`
	TrenchElevation        float64 `yaml:"trench_elevation"`

	FoldingStressFactor   float64 `yaml:"folding_stress_factor"`
	StressSpreadingFactor float64 `yaml:"stress_spreading_factor"`
	MinSpreadStress       float64 `yaml:"min_spread_stress"`
	AndeanFoldingFactor   float64 `yaml:"andean_folding_factor"`

	RevertSubductionVel float64 `yaml:"revert_subduction_vel"`
	MinProgressToDetach float64 `yaml:"min_progress_to_detach"`
	MinSpeedToDetach    float64 `yaml:"min_speed_to_detach"`
	MinAngleToDetach    float64 `yaml:"min_angle_to_detach"`
	SubplateSinkRate    float64 `yaml:"subplate_sink_rate"`

	VolcanicActivityRise  float64 `yaml:"volcanic_activity_rise"`
	VolcanicActivityDecay float64 `yaml:"volcanic_activity_decay"`
	RisingMagmaThreshold  float64 `yaml:"rising_magma_threshold"`

	VolcanicEruptionLifespan    float64 `yaml:"volcanic_eruption_lifespan"`
	VolcanicEruptionProbability float64 `yaml:"volcanic_eruption_probability"`
	RidgeEruptionProbability    float64 `yaml:"ridge_eruption_probability"`

	EarthquakeLifespan              float64 `yaml:"earthquake_lifespan"`
	EarthquakeSubductionProbability float64 `yaml:"earthquake_subduction_probability"`
	EarthquakeDivergentProbability  float64 `yaml:"earthquake_divergent_probability"`

	NewOceanicCrust *bool `yaml:"new_oceanic_crust"`
}

// Output controls the throttled renderer channels.
type Output struct {
	FieldsInterval       int `yaml:"fields_interval"`
	FieldsOffset         int `yaml:"fields_offset"`
	CrossSectionInterval int `yaml:"cross_section_interval"`
	CrossSectionOffset   int `yaml:"cross_section_offset"`
}

type Session struct {
	StepRateHz         int `yaml:"step_rate_hz"`
	SnapshotEverySteps int `yaml:"snapshot_every_steps"`
	// ArchiveEverySteps closes an epoch; 0 disables epoch archives.
	ArchiveEverySteps int `yaml:"archive_every_steps"`
}

type WorldGen struct {
	Preset            string  `yaml:"preset"`
	Plates            int     `yaml:"plates"`
	MaxContinentRatio float64 `yaml:"max_continent_ratio"`
	NoiseScale        float64 `yaml:"noise_scale"`
	ContinentLevel    float64 `yaml:"continent_level"`
	MaxAngularSpeed   float64 `yaml:"max_angular_speed"`
	HotSpotStrength   float64 `yaml:"hot_spot_strength"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.applyDefaults(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	_ = t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() error {
	if t.Grid.Divisions < 0 {
		return fmt.Errorf("grid.divisions must be positive, got %d", t.Grid.Divisions)
	}
	if t.Grid.Divisions == 0 {
		t.Grid.Divisions = 32
	}

	m := &t.Model
	setF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setF(&m.Timestep, 0.2)
	if m.Seed == 0 {
		m.Seed = 123
	}
	setF(&m.EarthRadius, 6371)
	setF(&m.OceanicRidgeWidth, 700)
	setF(&m.SubductionWidth, 800)
	setF(&m.ContinentDensity, 2.8)
	setF(&m.OceanDensity, 3.2)
	setF(&m.MassModifier, 0.000005)
	setF(&m.BasicDrag, 0.00002)
	setF(&m.OrogenicDrag, 0.0001)
	if m.Dynamics == nil {
		m.Dynamics = boolPtr(true)
	}
	setF(&m.OceanicRidgeElevation, 0.45)
	if m.SubductionMinElevation == 0 {
		m.SubductionMinElevation = -3
	}
	if m.TrenchElevation == 0 {
		m.TrenchElevation = -1.5
	}
	setF(&m.FoldingStressFactor, 500000)
	setF(&m.StressSpreadingFactor, 6)
	setF(&m.MinSpreadStress, 0.1)
	setF(&m.AndeanFoldingFactor, 0.5)
	if m.RevertSubductionVel == 0 {
		m.RevertSubductionVel = -10
	}
	setF(&m.MinProgressToDetach, 0.3)
	setF(&m.MinSpeedToDetach, 0.0005)
	setF(&m.MinAngleToDetach, 0.55)
	setF(&m.SubplateSinkRate, 0.05)
	setF(&m.VolcanicActivityRise, 2)
	setF(&m.VolcanicActivityDecay, 0.5)
	setF(&m.RisingMagmaThreshold, 0.7)
	setF(&m.VolcanicEruptionLifespan, 2)
	setF(&m.VolcanicEruptionProbability, 0.1)
	setF(&m.RidgeEruptionProbability, 0.002)
	setF(&m.EarthquakeLifespan, 1)
	setF(&m.EarthquakeSubductionProbability, 0.02)
	setF(&m.EarthquakeDivergentProbability, 0.005)
	if m.NewOceanicCrust == nil {
		m.NewOceanicCrust = boolPtr(true)
	}

	o := &t.Output
	if o.FieldsInterval <= 0 {
		o.FieldsInterval = 10
	}
	if o.CrossSectionInterval <= 0 {
		o.CrossSectionInterval = 10
	}
	if o.CrossSectionOffset == 0 {
		o.CrossSectionOffset = 5
	}

	if t.Session.SnapshotEverySteps <= 0 {
		t.Session.SnapshotEverySteps = 500
	}

	g := &t.WorldGen
	if g.Preset == "" {
		g.Preset = "noise"
	}
	if g.Plates <= 0 {
		g.Plates = 8
	}
	setF(&g.MaxContinentRatio, 0.5)
	setF(&g.NoiseScale, 1.6)
	setF(&g.ContinentLevel, 0.58)
	setF(&g.MaxAngularSpeed, 0.06)
	setF(&g.HotSpotStrength, 1)
	return nil
}

func boolPtr(b bool) *bool { return &b }
