package formulation

import "github.com/joelkehle/formulation-studio/internal/marketanalysis"

type Supplier struct {
	Name          string  `json:"name"`
	Location      string  `json:"location"`
	PricePer100ml float64 `json:"pricePer100ml"`
	URL           string  `json:"url,omitempty"`
}

// Ingredient is one line of a generated formulation. CostPer100ml is nil when
// the service did not supply a usable cost.
type Ingredient struct {
	Name         string     `json:"name"`
	Percent      float64    `json:"percent"`
	CostPer100ml *float64   `json:"costPer100ml,omitempty"`
	WhyChosen    string     `json:"whyChosen,omitempty"`
	Suppliers    []Supplier `json:"suppliers,omitempty"`
}

// Cost is a convenience for building ingredients with a defined cost.
func Cost(v float64) *float64 { return &v }

type Branding struct {
	Name        string   `json:"name,omitempty"`
	Tagline     string   `json:"tagline,omitempty"`
	Positioning string   `json:"positioning,omitempty"`
	Colors      []string `json:"colors,omitempty"`
}

type MarketSummary struct {
	TargetAudience string   `json:"targetAudience,omitempty"`
	PricePoint     string   `json:"pricePoint,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	Differentiator string   `json:"differentiator,omitempty"`
}

// Formulation is the product recipe returned by the generation service.
type Formulation struct {
	ProductName        string                                 `json:"productName"`
	Category           string                                 `json:"category,omitempty"`
	Summary            string                                 `json:"summary,omitempty"`
	Ingredients        []Ingredient                           `json:"ingredients"`
	TotalCostPer100ml  *float64                               `json:"totalCostPer100ml,omitempty"`
	PH                 *float64                               `json:"ph,omitempty"`
	ManufacturingSteps []string                               `json:"manufacturingSteps,omitempty"`
	Branding           Branding                               `json:"branding,omitempty"`
	Market             MarketSummary                          `json:"market,omitempty"`
	LocalMarket        *marketanalysis.LocalMarketObservation `json:"localMarket,omitempty"`
}

type QualityAssessment struct {
	OverallScore float64  `json:"overallScore"`
	Summary      string   `json:"summary,omitempty"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Risks        []string `json:"risks,omitempty"`
}
