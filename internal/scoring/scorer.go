package scoring

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Scorer binds a validated normalization config to an evaluation clock.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	cfg    NormalizationConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewScorer validates cfg and returns a Scorer reading the year from now.
// A nil now uses the system clock.
func NewScorer(cfg NormalizationConfig, now func() time.Time, logger *slog.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("normalization config: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, now: now, logger: logger}, nil
}

// FixedYear returns a clock pinned to January 1st of year, for reproducible
// historical scores.
func FixedYear(year int) func() time.Time {
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

// Config returns the scorer's normalization config.
func (s *Scorer) Config() NormalizationConfig {
	return s.cfg
}

// EvaluationYear returns the calendar year property age is measured from.
func (s *Scorer) EvaluationYear() int {
	return s.now().UTC().Year()
}

// Score computes the ideality result for p with default weights merged with
// overrides.
func (s *Scorer) Score(p PropertyAttributes, overrides WeightOverrides) Result {
	return Compute(p, overrides, s.cfg, s.EvaluationYear())
}

// ScoreWith computes the ideality result for p under a fully resolved profile.
func (s *Scorer) ScoreWith(p PropertyAttributes, w WeightProfile) Result {
	if !w.SumsToOne() {
		s.logger.Debug("weight profile does not sum to 1.0", "sum", w.Sum())
	}
	return computeWith(p, w, s.cfg, s.EvaluationYear())
}

// Factors returns the per-dimension explain view for p under w.
func (s *Scorer) Factors(p PropertyAttributes, w WeightProfile) []FactorResult {
	return Factors(p, w, s.cfg, s.EvaluationYear())
}

// Candidate is a listing to rank.
type Candidate struct {
	ID         string
	Attributes PropertyAttributes
}

// Ranked is a scored candidate.
type Ranked struct {
	ID     string `json:"id"`
	Result Result `json:"result"`
}

// Rank scores every candidate under w and sorts by score descending, ties
// broken by ID ascending.
func (s *Scorer) Rank(candidates []Candidate, w WeightProfile) []Ranked {
	year := s.EvaluationYear()
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{ID: c.ID, Result: computeWith(c.Attributes, w, s.cfg, year)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Result.Score != out[j].Result.Score {
			return out[i].Result.Score > out[j].Result.Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
