// Package report assembles the property report: ideality score, breakdown
// chart series and neighborhood statistics. Turning a Report into a PDF is
// the renderer's job.
package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

// DefaultRadiusDegrees is roughly a 5km window at mid latitudes.
const DefaultRadiusDegrees = 0.05

// Box returns the bounding box of radius degrees around lat/lng.
func Box(lat, lng, radius float64) store.BoundingBox {
	return store.BoundingBox{
		MinLat: lat - radius,
		MaxLat: lat + radius,
		MinLng: lng - radius,
		MaxLng: lng + radius,
	}
}

type Neighborhood struct {
	AveragePrice    int64          `json:"average_price"`
	AverageSqft     int            `json:"average_sqft"`
	TotalProperties int            `json:"total_properties"`
	PropertyTypes   map[string]int `json:"property_types"`
}

// ComputeNeighborhood aggregates the neighbors of subject. With no neighbors
// the averages fall back to the subject's own values. TotalProperties counts
// the subject too.
func ComputeNeighborhood(subject *store.Property, neighbors []*store.Property) Neighborhood {
	n := Neighborhood{
		AveragePrice:    int64(roundHalfUp(subject.Price)),
		AverageSqft:     subject.Sqft,
		TotalProperties: len(neighbors) + 1,
		PropertyTypes: lo.CountValuesBy(neighbors, func(p *store.Property) string {
			return p.Type
		}),
	}
	if len(neighbors) == 0 {
		return n
	}

	count := float64(len(neighbors))
	n.AveragePrice = int64(roundHalfUp(lo.SumBy(neighbors, func(p *store.Property) float64 { return p.Price }) / count))
	n.AverageSqft = int(roundHalfUp(float64(lo.SumBy(neighbors, func(p *store.Property) int { return p.Sqft })) / count))
	return n
}

type Report struct {
	Property       *store.Property   `json:"property"`
	IdealityScore  int               `json:"ideality_score"`
	Breakdown      scoring.Breakdown `json:"score_breakdown"`
	Neighborhood   Neighborhood      `json:"neighborhood"`
	Bars           []Bar             `json:"bar_chart"`
	Pie            []Slice           `json:"pie_chart"`
	EvaluationYear int               `json:"evaluation_year"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Builder loads everything a report needs.
type Builder struct {
	store  store.Store
	scorer *scoring.Scorer
	radius float64
	now    func() time.Time
}

func NewBuilder(s store.Store, sc *scoring.Scorer) *Builder {
	return &Builder{store: s, scorer: sc, radius: DefaultRadiusDegrees, now: time.Now}
}

// Build returns (nil, nil) when the property does not exist.
func (b *Builder) Build(ctx context.Context, id uuid.UUID) (*Report, error) {
	p, err := b.store.GetProperty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if p == nil {
		return nil, nil
	}

	neighbors, err := b.store.ListNeighbors(ctx, Box(p.Lat, p.Lng, b.radius), p.ID)
	if err != nil {
		return nil, fmt.Errorf("list neighbors: %w", err)
	}

	result := b.scorer.Score(p.Attributes(), scoring.WeightOverrides{})
	return &Report{
		Property:       p,
		IdealityScore:  result.Score,
		Breakdown:      result.Breakdown,
		Neighborhood:   ComputeNeighborhood(p, neighbors),
		Bars:           BarChart(result.Breakdown),
		Pie:            PieChart(result.Breakdown),
		EvaluationYear: b.scorer.EvaluationYear(),
		GeneratedAt:    b.now().UTC(),
	}, nil
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
