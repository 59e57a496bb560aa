package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateRange is returned when a normalization range has min == max.
var ErrDegenerateRange = errors.New("degenerate normalization range")

const (
	// sqftPerBedCeiling is the square footage per bedroom worth 100 points.
	sqftPerBedCeiling = 500.0
	// bathRatioCeiling is the bath-to-bed ratio worth 100 points.
	bathRatioCeiling = 1.5
	// yearsPerPoint: one point lost per two years of age.
	yearsPerPoint = 2.0
)

// Range maps a raw measurement onto the 0–100 scale.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate fails when the range cannot be used as a divisor.
func (r Range) Validate(name string) error {
	if !isFinite(r.Min) || !isFinite(r.Max) {
		return fmt.Errorf("%s: bounds must be finite, got [%v, %v]", name, r.Min, r.Max)
	}
	if r.Min == r.Max {
		return fmt.Errorf("%w: %s min == max (%v)", ErrDegenerateRange, name, r.Min)
	}
	return nil
}

// FeatureWeights are the internal sub-weights of the features composite.
type FeatureWeights struct {
	SqftPerBed float64 `json:"sqft_per_bed" yaml:"sqft_per_bed"`
	BathRatio  float64 `json:"bath_ratio" yaml:"bath_ratio"`
	YearBuilt  float64 `json:"year_built" yaml:"year_built"`
}

// NormalizationConfig holds the ranges and sub-weights used to rescale raw
// property values.
type NormalizationConfig struct {
	PriceRange     Range          `json:"price_range" yaml:"price_range"`
	CommuteRange   Range          `json:"commute_range" yaml:"commute_range"`
	FeatureWeights FeatureWeights `json:"feature_weights" yaml:"feature_weights"`
}

// DefaultNormalization returns the stock normalization config.
func DefaultNormalization() NormalizationConfig {
	return NormalizationConfig{
		PriceRange:   Range{Min: 100000, Max: 2000000},
		CommuteRange: Range{Min: 5, Max: 120},
		FeatureWeights: FeatureWeights{
			SqftPerBed: 0.4,
			BathRatio:  0.3,
			YearBuilt:  0.3,
		},
	}
}

// Validate is meant to run once at startup. A failure here is a fatal
// misconfiguration, never a per-request error.
func (c NormalizationConfig) Validate() error {
	if err := c.PriceRange.Validate("price_range"); err != nil {
		return err
	}
	if err := c.CommuteRange.Validate("commute_range"); err != nil {
		return err
	}
	fw := c.FeatureWeights
	for name, v := range map[string]float64{
		"sqft_per_bed": fw.SqftPerBed,
		"bath_ratio":   fw.BathRatio,
		"year_built":   fw.YearBuilt,
	} {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("%w: feature_weights.%s=%v", ErrInvalidWeight, name, v)
		}
	}
	return nil
}

// InvertedLinear scores a lower-is-better value: raw <= min yields 100,
// raw >= max yields 0.
func InvertedLinear(raw float64, r Range) float64 {
	normalized := (raw - r.Min) / (r.Max - r.Min)
	return clamp(1-normalized, 0, 1) * 100
}

// SqftPerBedScore saturates at 100 once a property reaches 500 sqft per bedroom.
func SqftPerBedScore(sqft float64, beds int) float64 {
	if beds <= 0 {
		return 0
	}
	perBed := sqft / float64(beds)
	return clamp(perBed/sqftPerBedCeiling*100, 0, 100)
}

// BathRatioScore saturates at 100 once baths per bedroom reaches 1.5.
func BathRatioScore(baths float64, beds int) float64 {
	if beds <= 0 {
		return 0
	}
	ratio := baths / float64(beds)
	return clamp(ratio/bathRatioCeiling*100, 0, 100)
}

// YearScore loses one point per two years of age, floored at 0.
func YearScore(yearBuilt, evalYear int) float64 {
	age := float64(evalYear - yearBuilt)
	return math.Max(0, 100-age/yearsPerPoint)
}

// FeaturesScore is the weighted composite of the three layout and age
// sub-scores.
func FeaturesScore(p PropertyAttributes, fw FeatureWeights, evalYear int) float64 {
	score := SqftPerBedScore(p.Sqft, p.Beds)*fw.SqftPerBed +
		BathRatioScore(p.Baths, p.Beds)*fw.BathRatio +
		YearScore(p.YearBuilt, evalYear)*fw.YearBuilt
	return clamp(score, 0, 100)
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
