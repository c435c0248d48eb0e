// Package insights combines the priority scorer and the market calculators
// into the derived view shown alongside a generated formulation.
package insights

import (
	"strings"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

const DefaultRadarRadius = 100.0

type Insights struct {
	City       string                            `json:"city"`
	Category   string                            `json:"category"`
	Priorities []formulation.PriorityScore       `json:"priorities"`
	Radar      []formulation.RadarPoint          `json:"radar"`
	MarketSize marketanalysis.MarketSizeEstimate `json:"marketSize"`
	Segments   marketanalysis.Segments           `json:"segments"`
	Projection marketanalysis.Projection         `json:"projection"`
	Theme      marketanalysis.CategoryTheme      `json:"theme"`
	// Illustrative is set when no market observation was available and the
	// market figures are placeholder defaults.
	Illustrative bool `json:"illustrative"`
}

type Deriver struct {
	Scorer      *formulation.Scorer
	Calculator  *marketanalysis.Calculator
	RadarRadius float64
}

func NewDeriver(scorer *formulation.Scorer, calc *marketanalysis.Calculator) *Deriver {
	if scorer == nil {
		scorer = formulation.NewScorer(formulation.DefaultKeywords())
	}
	if calc == nil {
		calc = marketanalysis.NewCalculator(marketanalysis.DefaultTables())
	}
	return &Deriver{Scorer: scorer, Calculator: calc, RadarRadius: DefaultRadarRadius}
}

// Derive computes every insight for f. An empty category falls back to the
// formulation's own category; an empty city falls back to the observation's
// location and then the default city.
func (d *Deriver) Derive(f formulation.Formulation, city, category string) Insights {
	category = strings.TrimSpace(category)
	if category == "" {
		category = strings.TrimSpace(f.Category)
	}
	city = strings.TrimSpace(city)
	if city == "" && f.LocalMarket != nil {
		city = strings.TrimSpace(f.LocalMarket.Location)
	}
	if city == "" {
		city = d.Calculator.Tables().DefaultCity
	}

	radius := d.RadarRadius
	if radius <= 0 {
		radius = DefaultRadarRadius
	}

	priorities := d.Scorer.Score(f.Ingredients)
	estimate := d.Calculator.MarketSizes(f.LocalMarket, city, category)
	return Insights{
		City:         city,
		Category:     category,
		Priorities:   priorities,
		Radar:        formulation.RadarPoints(priorities, radius),
		MarketSize:   estimate,
		Segments:     d.Calculator.Segments(f.LocalMarket),
		Projection:   marketanalysis.ProjectRevenue(estimate, marketanalysis.DefaultProjectionYears),
		Theme:        marketanalysis.ThemeFor(category),
		Illustrative: f.LocalMarket == nil,
	}
}
