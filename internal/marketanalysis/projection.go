package marketanalysis

import "math"

const (
	discountRate           = 0.10
	DefaultProjectionYears = 5
)

// Growth assumptions spanning the displayed 8–12% band.
var scenarioGrowth = []struct {
	name   string
	growth float64
}{
	{"pessimistic", 0.08},
	{"base", 0.10},
	{"optimistic", 0.12},
}

type ProjectionScenario struct {
	GrowthRate float64   `json:"growthRate"`
	Revenue    []float64 `json:"revenue"`
	NPV        float64   `json:"npv"`
}

// Projection discounts SOM revenue over a fixed horizon. Revenue figures are
// in millions, like the estimate they derive from.
type Projection struct {
	Years        int                           `json:"years"`
	DiscountRate float64                       `json:"discountRate"`
	Scenarios    map[string]ProjectionScenario `json:"scenarios"`
}

func ProjectRevenue(est MarketSizeEstimate, years int) Projection {
	if years <= 0 {
		years = DefaultProjectionYears
	}
	out := Projection{
		Years:        years,
		DiscountRate: discountRate,
		Scenarios:    make(map[string]ProjectionScenario, len(scenarioGrowth)),
	}
	for _, s := range scenarioGrowth {
		out.Scenarios[s.name] = projectScenario(est.SOM.MarketSize, s.growth, years)
	}
	return out
}

// projectScenario grows the obtainable market yearly; the first year earns
// half while distribution ramps up.
func projectScenario(som, growth float64, years int) ProjectionScenario {
	sc := ProjectionScenario{GrowthRate: growth, Revenue: make([]float64, 0, years)}
	for year := 1; year <= years; year++ {
		rev := som * math.Pow(1+growth, float64(year-1))
		if year == 1 {
			rev *= 0.5
		}
		sc.Revenue = append(sc.Revenue, rev)
		sc.NPV += rev / math.Pow(1+discountRate, float64(year))
	}
	return sc
}
