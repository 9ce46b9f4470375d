package engine

import (
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// FallbackColor is used for categories missing from CategoryColors.
const FallbackColor = "#94a3b8"

// CategoryColors is the static palette for the expense donut.
var CategoryColors = map[string]string{
	"Groceries":      "#22c55e",
	"Food & Dining":  "#f97316",
	"Restaurants":    "#fb923c",
	"Fast Food":      "#fdba74",
	"Transportation": "#3b82f6",
	"Gas":            "#60a5fa",
	"Utilities":      "#eab308",
	"Rent":           "#8b5cf6",
	"Housing":        "#a78bfa",
	"Entertainment":  "#ec4899",
	"Shopping":       "#14b8a6",
	"Healthcare":     "#ef4444",
	"Insurance":      "#64748b",
	"Subscriptions":  "#06b6d4",
	"Travel":         "#0ea5e9",
	"Education":      "#84cc16",
}

// DonutSegment is one arc of an SVG donut drawn with stroke dashes.
type DonutSegment struct {
	Category   string  `json:"category"`
	Percentage int64   `json:"percentage"`
	Color      string  `json:"color"`
	DashArray  string  `json:"dashArray"`
	DashOffset float64 `json:"dashOffset"`
}

// ColorFor returns the palette color of category, or FallbackColor.
func ColorFor(category string) string {
	if c, ok := CategoryColors[category]; ok {
		return c
	}
	return FallbackColor
}

// DonutSegments turns the largest maxSegments entries of split into donut
// arcs on a circle of the given circumference. Arc lengths follow each
// category's exact share of the split's total, and each arc starts where the
// previous one ended. When every category is drawn the arcs close the circle.
func DonutSegments(split []CategoryShare, maxSegments int, circumference float64) []DonutSegment {
	top := make([]CategoryShare, len(split))
	copy(top, split)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Amount.GreaterThan(top[j].Amount)
	})
	if maxSegments < 0 {
		maxSegments = 0
	}
	if len(top) > maxSegments {
		top = top[:maxSegments]
	}

	total := decimal.Zero
	for _, share := range split {
		total = total.Add(share.Amount)
	}

	segments := make([]DonutSegment, 0, len(top))
	covered := decimal.Zero
	start := 0.0
	for _, share := range top {
		covered = covered.Add(share.Amount)
		end := 0.0
		if !total.IsZero() {
			end = round2(covered.Div(total).InexactFloat64() * circumference)
		}
		length := round2(end - start)
		segments = append(segments, DonutSegment{
			Category:   share.Category,
			Percentage: share.Percentage,
			Color:      ColorFor(share.Category),
			DashArray:  formatLength(length) + " " + formatLength(circumference-length),
			DashOffset: round2(-start),
		})
		start = end
	}
	return segments
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

func formatLength(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', 2, 64)
}
