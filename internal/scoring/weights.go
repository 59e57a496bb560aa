package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidWeight is returned for negative or non-finite weights.
var ErrInvalidWeight = errors.New("invalid weight")

// WeightProfile defines the relative importance of each ideality dimension.
// Weights are not re-normalized: callers should supply profiles summing to
// 1.0 or the final score scale drifts.
type WeightProfile struct {
	Price    float64 `json:"price" yaml:"price"`
	Features float64 `json:"features" yaml:"features"`
	Location float64 `json:"location" yaml:"location"`
	Safety   float64 `json:"safety" yaml:"safety"`
	Schools  float64 `json:"schools" yaml:"schools"`
	Commute  float64 `json:"commute" yaml:"commute"`
}

// WeightOverrides is a partial WeightProfile. Nil fields keep the base value.
type WeightOverrides struct {
	Price    *float64 `json:"price,omitempty"`
	Features *float64 `json:"features,omitempty"`
	Location *float64 `json:"location,omitempty"`
	Safety   *float64 `json:"safety,omitempty"`
	Schools  *float64 `json:"schools,omitempty"`
	Commute  *float64 `json:"commute,omitempty"`
}

// Preset names.
const (
	PresetDefault = "default"
	PresetBudget  = "budget"
	PresetLuxury  = "luxury"
	PresetFamily  = "family"
	PresetUrban   = "urban"
)

var presets = map[string]WeightProfile{
	PresetDefault: {Price: 0.25, Features: 0.20, Location: 0.20, Safety: 0.15, Schools: 0.10, Commute: 0.10},
	PresetBudget:  {Price: 0.40, Features: 0.15, Location: 0.15, Safety: 0.15, Schools: 0.10, Commute: 0.05},
	PresetLuxury:  {Price: 0.10, Features: 0.30, Location: 0.25, Safety: 0.20, Schools: 0.10, Commute: 0.05},
	PresetFamily:  {Price: 0.20, Features: 0.25, Location: 0.15, Safety: 0.20, Schools: 0.15, Commute: 0.05},
	PresetUrban:   {Price: 0.25, Features: 0.15, Location: 0.25, Safety: 0.10, Schools: 0.10, Commute: 0.15},
}

// DefaultWeights returns the default weight distribution.
func DefaultWeights() WeightProfile {
	return presets[PresetDefault]
}

// PresetWeights returns the named preset. Unknown or empty names fall back
// to the default profile.
func PresetWeights(name string) WeightProfile {
	if w, ok := presets[name]; ok {
		return w
	}
	return presets[PresetDefault]
}

// IsPreset reports whether name is a known preset.
func IsPreset(name string) bool {
	_, ok := presets[name]
	return ok
}

// PresetNames returns all preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveWeights merges overrides onto the default profile.
func ResolveWeights(o WeightOverrides) WeightProfile {
	return DefaultWeights().Merge(o)
}

// Merge returns w with every non-nil override applied. It is a shallow,
// key-by-key merge.
func (w WeightProfile) Merge(o WeightOverrides) WeightProfile {
	if o.Price != nil {
		w.Price = *o.Price
	}
	if o.Features != nil {
		w.Features = *o.Features
	}
	if o.Location != nil {
		w.Location = *o.Location
	}
	if o.Safety != nil {
		w.Safety = *o.Safety
	}
	if o.Schools != nil {
		w.Schools = *o.Schools
	}
	if o.Commute != nil {
		w.Commute = *o.Commute
	}
	return w
}

// IsZero reports whether no override is set.
func (o WeightOverrides) IsZero() bool {
	return o.Price == nil && o.Features == nil && o.Location == nil &&
		o.Safety == nil && o.Schools == nil && o.Commute == nil
}

// Sum returns the total of all weights.
func (w WeightProfile) Sum() float64 {
	return w.Price + w.Features + w.Location + w.Safety + w.Schools + w.Commute
}

// SumsToOne reports whether the weights sum to 1.0 (±0.001).
func (w WeightProfile) SumsToOne() bool {
	return math.Abs(w.Sum()-1.0) <= 0.001
}

// Validate rejects negative or non-finite weights. It does not require the
// weights to sum to 1.0.
func (w WeightProfile) Validate() error {
	for i, v := range w.asList() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeight, dimensionNames[i], v)
		}
	}
	return nil
}

func (w WeightProfile) asList() []float64 {
	return []float64{w.Price, w.Features, w.Location, w.Safety, w.Schools, w.Commute}
}

// dimensionNames is the canonical dimension order shared by weights,
// breakdowns and factor results.
var dimensionNames = []string{"price", "features", "location", "safety", "schools", "commute"}

// Dimensions returns the canonical dimension names.
func Dimensions() []string {
	out := make([]string, len(dimensionNames))
	copy(out, dimensionNames)
	return out
}
