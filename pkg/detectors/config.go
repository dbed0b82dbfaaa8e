package detectors

import (
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds the constants shared by the detectors.
type Config struct {
	// ZThreshold is the absolute z-score above which a record is flagged.
	ZThreshold float64 `yaml:"z_threshold" validate:"gt=0"`

	// Contamination is the expected proportion of outliers in the data.
	Contamination float64 `yaml:"contamination" validate:"gt=0,lte=0.5"`
	// Estimators is the number of isolation trees.
	Estimators int `yaml:"estimators" validate:"gte=1"`
	// SampleSize is the subsample size for each tree.
	SampleSize int `yaml:"sample_size" validate:"gte=2"`
	// Seed for reproducibility.
	Seed int64 `yaml:"seed"`

	// ResidualSigmas is the multiple of the residual standard deviation
	// above which a record is flagged.
	ResidualSigmas float64 `yaml:"residual_sigmas" validate:"gt=0"`

	SensorCandidates    []string `yaml:"sensor_candidates" validate:"min=1,dive,required"`
	PredictorCandidates []string `yaml:"predictor_candidates" validate:"min=1,dive,required"`
	Target              string   `yaml:"target" validate:"required"`
	MinPredictors       int      `yaml:"min_predictors" validate:"gte=1"`
}

// DefaultConfig returns the detector settings for gas-turbine data.
func DefaultConfig() Config {
	return Config{
		ZThreshold:          3.0,
		Contamination:       0.02,
		Estimators:          200,
		SampleSize:          256,
		Seed:                42,
		ResidualSigmas:      3.0,
		SensorCandidates:    []string{"TIT", "TAT", "TEY", "CDP", "CO", "NOx"},
		PredictorCandidates: []string{"AT", "AP", "RH", "CDP"},
		Target:              "TEY",
		MinPredictors:       2,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.SensorCandidates = slices.Clone(c.SensorCandidates)
	c.PredictorCandidates = slices.Clone(c.PredictorCandidates)
	return c
}
