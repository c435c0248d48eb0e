package marketanalysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	accessibilityFactor = 0.85
	marketShareFactor   = 0.04
	efficiencyFactor    = 0.75

	// Floors applied to SOM and SAM as multiples of the observed local market.
	minSOMMultiple = 1.5
	minSAMMultiple = 3.0
)

// Display constants; not computed.
const (
	GrowthRateDisplay    = "8–12%"
	AccessibilityDisplay = "85%"
	MarketShareDisplay   = "4%"
	EfficiencyDisplay    = "75%"
)

// Calculator computes market sizes and segments against a fixed set of
// reference tables. It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	tables Tables
}

func NewCalculator(tables Tables) *Calculator {
	if tables.NationalPopulationM <= 0 {
		tables.NationalPopulationM = NationalPopulationM
	}
	if strings.TrimSpace(tables.DefaultCity) == "" {
		tables.DefaultCity = DefaultCity
	}
	if tables.DefaultProfile.Multiplier == 0 && tables.DefaultProfile.Penetration == (PenetrationRange{}) {
		tables.DefaultProfile = defaultProfile
	}
	return &Calculator{tables: tables}
}

func (c *Calculator) Tables() Tables { return c.tables }

var defaultCalculator = NewCalculator(DefaultTables())

// ComputeMarketSizes uses the built-in tables.
func ComputeMarketSizes(obs *LocalMarketObservation, city, category string) MarketSizeEstimate {
	return defaultCalculator.MarketSizes(obs, city, category)
}

// MarketSizes extrapolates TAM/SAM/SOM (millions) from a local observation.
// A nil observation yields DefaultMarketSizeEstimate. Unknown city or category
// fall back to table defaults.
func (c *Calculator) MarketSizes(obs *LocalMarketObservation, city, category string) MarketSizeEstimate {
	if obs == nil {
		return DefaultMarketSizeEstimate()
	}

	cityName, cityPop, _ := c.tables.ResolveCity(city)
	profile, _ := c.tables.ProfileForCategory(category)

	local := nonNegative(obs.LocalMarketSizeM())
	tam := local * (c.tables.NationalPopulationM / cityPop) * profile.Multiplier
	avgPenetration := profile.Penetration.Average()
	samRaw := tam * avgPenetration * accessibilityFactor
	somRaw := samRaw * marketShareFactor * efficiencyFactor

	som := math.Max(somRaw, local*minSOMMultiple)
	sam := math.Max(samRaw, local*minSAMMultiple)
	tam = math.Max(tam, sam)

	return MarketSizeEstimate{
		TAM: TAM{
			MarketSize:      tam,
			PopulationBasis: populationBasis(c.tables.NationalPopulationM, cityPop, cityName),
			GrowthRate:      GrowthRateDisplay,
		},
		SAM: SAM{
			MarketSize:           sam,
			PenetrationPercent:   formatPercent((profile.Penetration.Min + profile.Penetration.Max) / 2),
			AccessibilityPercent: AccessibilityDisplay,
		},
		SOM: SOM{
			MarketSize:         som,
			MarketSharePercent: MarketShareDisplay,
			EfficiencyPercent:  EfficiencyDisplay,
		},
	}
}

// DefaultMarketSizeEstimate is the illustrative estimate shown before any
// market observation is available.
func DefaultMarketSizeEstimate() MarketSizeEstimate {
	return MarketSizeEstimate{
		TAM: TAM{
			MarketSize:      8500,
			PopulationBasis: populationBasis(NationalPopulationM, defaultCityPopulationM["mumbai"], DefaultCity),
			GrowthRate:      GrowthRateDisplay,
		},
		SAM: SAM{
			MarketSize:           1445,
			PenetrationPercent:   "20%",
			AccessibilityPercent: AccessibilityDisplay,
		},
		SOM: SOM{
			MarketSize:         43.35,
			MarketSharePercent: MarketShareDisplay,
			EfficiencyPercent:  EfficiencyDisplay,
		},
	}
}

// nonNegative maps NaN, infinities and negatives to zero.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func populationBasis(nationalM, cityM float64, city string) string {
	return fmt.Sprintf("%sM national / %sM %s", formatNumber(nationalM), formatNumber(cityM), city)
}

func formatPercent(v float64) string {
	return formatNumber(v) + "%"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
