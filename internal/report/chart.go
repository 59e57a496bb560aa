package report

import (
	"math"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
)

// ChartHeight is the drawable height bar heights are scaled to.
const ChartHeight = 200.0

type series struct {
	label string
	color string
}

// Canonical order and colors of the six breakdown dimensions.
var breakdownSeries = []series{
	{"Price", "#ef4444"},
	{"Features", "#f59e0b"},
	{"Location", "#10b981"},
	{"Safety", "#3b82f6"},
	{"Schools", "#8b5cf6"},
	{"Commute", "#ec4899"},
}

type Bar struct {
	Label  string  `json:"label"`
	Value  int     `json:"value"`
	Color  string  `json:"color"`
	Height float64 `json:"height"`
}

type Slice struct {
	Label      string  `json:"label"`
	Value      int     `json:"value"`
	Color      string  `json:"color"`
	Percent    int     `json:"percent"`
	StartAngle float64 `json:"start_angle"`
	SweepAngle float64 `json:"sweep_angle"`
}

// BarChart scales each breakdown value (0–100) onto ChartHeight.
func BarChart(b scoring.Breakdown) []Bar {
	values := b.Values()
	bars := make([]Bar, len(breakdownSeries))
	for i, s := range breakdownSeries {
		bars[i] = Bar{
			Label:  s.label,
			Value:  values[i],
			Color:  s.color,
			Height: float64(values[i]) / 100 * ChartHeight,
		}
	}
	return bars
}

// PieChart splits the circle by each value's share of the breakdown total,
// starting at 12 o'clock. An all-zero breakdown yields zero-width slices.
func PieChart(b scoring.Breakdown) []Slice {
	values := b.Values()
	total := 0
	for _, v := range values {
		total += v
	}

	angle := -math.Pi / 2
	slices := make([]Slice, len(breakdownSeries))
	for i, s := range breakdownSeries {
		sl := Slice{Label: s.label, Value: values[i], Color: s.color, StartAngle: angle}
		if total > 0 {
			share := float64(values[i]) / float64(total)
			sl.SweepAngle = share * 2 * math.Pi
			sl.Percent = int(roundHalfUp(share * 100))
		}
		angle += sl.SweepAngle
		slices[i] = sl
	}
	return slices
}
