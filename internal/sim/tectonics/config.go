package tectonics

import (
	"math"

	"platesim/internal/sim/tuning"
)

// Config holds the engine constants. Distances given in km are converted to
// unit-sphere distances through EarthRadius.
type Config struct {
	Timestep float64
	Seed     int64

	EarthRadius       float64
	OceanicRidgeWidth float64
	SubductionWidth   float64

	ContinentDensity float64
	OceanDensity     float64
	MassModifier     float64

	BasicDrag    float64
	OrogenicDrag float64
	Dynamics     bool

	OceanicRidgeElevation  float64
	SubductionMinElevation float64
	TrenchElevation        float64

	FoldingStressFactor   float64
	StressSpreadingFactor float64
	MinSpreadStress       float64
	AndeanFoldingFactor   float64

	RevertSubductionVel float64
	MinProgressToDetach float64
	MinSpeedToDetach    float64
	// MinAngleToDetach is a fraction of π.
	MinAngleToDetach float64
	SubplateSinkRate float64

	VolcanicActivityRise  float64
	VolcanicActivityDecay float64
	RisingMagmaThreshold  float64

	VolcanicEruptionLifespan    float64
	VolcanicEruptionProbability float64
	RidgeEruptionProbability    float64

	EarthquakeLifespan              float64
	EarthquakeSubductionProbability float64
	EarthquakeDivergentProbability  float64

	NewOceanicCrust bool
}

func DefaultConfig() Config {
	return ConfigFromTuning(tuning.Defaults().Model)
}

func ConfigFromTuning(m tuning.Model) Config {
	c := Config{
		Timestep:                        m.Timestep,
		Seed:                            m.Seed,
		EarthRadius:                     m.EarthRadius,
		OceanicRidgeWidth:               m.OceanicRidgeWidth,
		SubductionWidth:                 m.SubductionWidth,
		ContinentDensity:                m.ContinentDensity,
		OceanDensity:                    m.OceanDensity,
		MassModifier:                    m.MassModifier,
		BasicDrag:                       m.BasicDrag,
		OrogenicDrag:                    m.OrogenicDrag,
		OceanicRidgeElevation:           m.OceanicRidgeElevation,
		SubductionMinElevation:          m.SubductionMinElevation,
		TrenchElevation:                 m.TrenchElevation,
		FoldingStressFactor:             m.FoldingStressFactor,
		StressSpreadingFactor:           m.StressSpreadingFactor,
		MinSpreadStress:                 m.MinSpreadStress,
		AndeanFoldingFactor:             m.AndeanFoldingFactor,
		RevertSubductionVel:             m.RevertSubductionVel,
		MinProgressToDetach:             m.MinProgressToDetach,
		MinSpeedToDetach:                m.MinSpeedToDetach,
		MinAngleToDetach:                m.MinAngleToDetach,
		SubplateSinkRate:                m.SubplateSinkRate,
		VolcanicActivityRise:            m.VolcanicActivityRise,
		VolcanicActivityDecay:           m.VolcanicActivityDecay,
		RisingMagmaThreshold:            m.RisingMagmaThreshold,
		VolcanicEruptionLifespan:        m.VolcanicEruptionLifespan,
		VolcanicEruptionProbability:     m.VolcanicEruptionProbability,
		RidgeEruptionProbability:        m.RidgeEruptionProbability,
		EarthquakeLifespan:              m.EarthquakeLifespan,
		EarthquakeSubductionProbability: m.EarthquakeSubductionProbability,
		EarthquakeDivergentProbability:  m.EarthquakeDivergentProbability,
	}
	if m.Dynamics != nil {
		c.Dynamics = *m.Dynamics
	}
	if m.NewOceanicCrust != nil {
		c.NewOceanicCrust = *m.NewOceanicCrust
	}
	return c
}

// MaxAge is the travelled distance after which new oceanic crust has fully
// cooled from ridge elevation to its base elevation.
func (c Config) MaxAge() float64 { return c.OceanicRidgeWidth / c.EarthRadius }

// MaxSubductionDist is the subducted distance after which a field is removed.
func (c Config) MaxSubductionDist() float64 { return c.SubductionWidth / c.EarthRadius }

// EarthArea in km².
func (c Config) EarthArea() float64 { return 4 * math.Pi * c.EarthRadius * c.EarthRadius }
