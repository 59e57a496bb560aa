package scoring

// PropertyAttributes is the immutable snapshot of a listing the engine scores.
// LocationScore, SafetyScore and SchoolScore are externally computed 0–100
// values and are only clamped, never rescaled.
type PropertyAttributes struct {
	Price          float64 `json:"price"`
	Sqft           float64 `json:"sqft"`
	YearBuilt      int     `json:"year_built"`
	Beds           int     `json:"beds"`
	Baths          float64 `json:"baths"`
	LocationScore  float64 `json:"location_score"`
	SafetyScore    float64 `json:"safety_score"`
	SchoolScore    float64 `json:"school_score"`
	CommuteMinutes float64 `json:"commute_minutes"`
}

// Breakdown holds the six rounded per-dimension sub-scores.
type Breakdown struct {
	Price    int `json:"price"`
	Features int `json:"features"`
	Location int `json:"location"`
	Safety   int `json:"safety"`
	Schools  int `json:"schools"`
	Commute  int `json:"commute"`
}

// Values returns the breakdown in canonical dimension order.
func (b Breakdown) Values() []int {
	return []int{b.Price, b.Features, b.Location, b.Safety, b.Schools, b.Commute}
}

// Result is the engine output.
type Result struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// FactorResult captures one dimension's contribution to the total score.
type FactorResult struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// subScores are the unrounded, clamped per-dimension scores.
type subScores struct {
	price, features, location, safety, schools, commute float64
}

func (s subScores) asList() []float64 {
	return []float64{s.price, s.features, s.location, s.safety, s.schools, s.commute}
}

func computeSubScores(p PropertyAttributes, cfg NormalizationConfig, evalYear int) subScores {
	return subScores{
		price:    InvertedLinear(p.Price, cfg.PriceRange),
		features: FeaturesScore(p, cfg.FeatureWeights, evalYear),
		location: clamp(p.LocationScore, 0, 100),
		safety:   clamp(p.SafetyScore, 0, 100),
		schools:  clamp(p.SchoolScore, 0, 100),
		commute:  InvertedLinear(p.CommuteMinutes, cfg.CommuteRange),
	}
}

// Compute scores p against the default weights merged with overrides.
// evalYear is the calendar year age is measured from. cfg must have passed
// Validate.
//
// The final score is clamped after weighting and rounded once; each breakdown
// field is rounded on its own, so the breakdown need not recombine exactly to
// the score.
func Compute(p PropertyAttributes, overrides WeightOverrides, cfg NormalizationConfig, evalYear int) Result {
	return computeWith(p, ResolveWeights(overrides), cfg, evalYear)
}

func computeWith(p PropertyAttributes, w WeightProfile, cfg NormalizationConfig, evalYear int) Result {
	s := computeSubScores(p, cfg, evalYear)

	var total float64
	weights := w.asList()
	for i, v := range s.asList() {
		total += v * weights[i]
	}

	return Result{
		Score: roundHalfUp(clamp(total, 0, 100)),
		Breakdown: Breakdown{
			Price:    roundHalfUp(s.price),
			Features: roundHalfUp(s.features),
			Location: roundHalfUp(s.location),
			Safety:   roundHalfUp(s.safety),
			Schools:  roundHalfUp(s.schools),
			Commute:  roundHalfUp(s.commute),
		},
	}
}

// Factors returns the unrounded per-dimension explain view.
func Factors(p PropertyAttributes, w WeightProfile, cfg NormalizationConfig, evalYear int) []FactorResult {
	s := computeSubScores(p, cfg, evalYear).asList()
	weights := w.asList()
	out := make([]FactorResult, len(dimensionNames))
	for i, name := range dimensionNames {
		out[i] = FactorResult{
			Name:     name,
			Score:    s[i],
			Weight:   weights[i],
			Weighted: s[i] * weights[i],
		}
	}
	return out
}
