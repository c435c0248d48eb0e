package formulation

import "math"

type Axis string

const (
	AxisEfficacy          Axis = "Efficacy"
	AxisCostEffectiveness Axis = "Cost-effectiveness"
	AxisCompliance        Axis = "Compliance"
	AxisConsumerAppeal    Axis = "Consumer Appeal"
	AxisSustainability    Axis = "Sustainability"
)

// Axes lists the priority axes in display order. Radar layouts depend on it.
var Axes = [...]Axis{
	AxisEfficacy,
	AxisCostEffectiveness,
	AxisCompliance,
	AxisConsumerAppeal,
	AxisSustainability,
}

type PriorityScore struct {
	Axis        Axis    `json:"axis"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

const (
	efficacyNamePoints      = 20.0
	efficacyRationalePoints = 15.0
	efficacyPercentPoints   = 10.0
	efficacyPercentCeiling  = 30.0

	complianceBase         = 80.0
	complianceCertPoints   = 5.0
	complianceSafetyPoints = 3.0
	appealBase             = 70.0
	appealNamePoints       = 8.0
	appealRationalePoints  = 5.0
	sustainBase            = 75.0
	sustainNamePoints      = 8.0
	sustainRationalePoints = 5.0
	maxScore               = 100.0
)

// Scorer rates an ingredient list on the five priority axes. It holds only
// its keyword configuration and is safe for concurrent use.
type Scorer struct {
	kw Keywords
}

// NewScorer fills any empty keyword set from DefaultKeywords.
func NewScorer(kw Keywords) *Scorer {
	return &Scorer{kw: kw.Merge(DefaultKeywords())}
}

func (s *Scorer) Keywords() Keywords { return s.kw }

var defaultScorer = NewScorer(DefaultKeywords())

// ComputePriorityScores scores with the default keyword sets.
func ComputePriorityScores(ingredients []Ingredient) []PriorityScore {
	return defaultScorer.Score(ingredients)
}

// Score always returns five scores in Axes order. An empty list scores zero on
// every axis.
func (s *Scorer) Score(ingredients []Ingredient) []PriorityScore {
	values := [len(Axes)]float64{}
	if len(ingredients) > 0 {
		values = [len(Axes)]float64{
			s.efficacy(ingredients),
			costEffectiveness(ingredients),
			s.compliance(ingredients),
			s.appeal(ingredients),
			s.sustainability(ingredients),
		}
	}

	out := make([]PriorityScore, len(Axes))
	for i, axis := range Axes {
		score := clamp(values[i])
		out[i] = PriorityScore{Axis: axis, Score: score, Description: describe(axis, score)}
	}
	return out
}

func (s *Scorer) efficacy(ingredients []Ingredient) float64 {
	total := 0.0
	for _, ing := range ingredients {
		if s.kw.EfficacyNames.Matches(ing.Name) {
			total += efficacyNamePoints
		}
		if s.kw.EfficacyRationale.Matches(ing.WhyChosen) {
			total += efficacyRationalePoints
		}
		if ing.Percent > 0 && ing.Percent < efficacyPercentCeiling {
			total += efficacyPercentPoints
		}
	}
	return total / float64(len(ingredients))
}

func costEffectiveness(ingredients []Ingredient) float64 {
	sum, n := 0.0, 0
	for _, ing := range ingredients {
		if ing.CostPer100ml == nil || math.IsNaN(*ing.CostPer100ml) {
			continue
		}
		sum += *ing.CostPer100ml
		n++
	}
	if n == 0 {
		return 0
	}
	return costBand(sum / float64(n))
}

func costBand(mean float64) float64 {
	switch {
	case mean < 50:
		return 85
	case mean < 100:
		return 75
	case mean < 200:
		return 60
	case mean < 400:
		return 40
	default:
		return 20
	}
}

func (s *Scorer) compliance(ingredients []Ingredient) float64 {
	score := complianceBase
	for _, ing := range ingredients {
		if s.kw.ComplianceCertified.Matches(ing.Name) || s.kw.ComplianceCertified.Matches(ing.WhyChosen) {
			score += complianceCertPoints
		}
		if s.kw.ComplianceSafety.Matches(ing.Name) || s.kw.ComplianceSafety.Matches(ing.WhyChosen) {
			score += complianceSafetyPoints
		}
	}
	return score
}

func (s *Scorer) appeal(ingredients []Ingredient) float64 {
	score := appealBase
	for _, ing := range ingredients {
		if s.kw.AppealNames.Matches(ing.Name) {
			score += appealNamePoints
		}
		if s.kw.AppealRationale.Matches(ing.WhyChosen) {
			score += appealRationalePoints
		}
	}
	return score
}

func (s *Scorer) sustainability(ingredients []Ingredient) float64 {
	score := sustainBase
	for _, ing := range ingredients {
		if s.kw.SustainabilityNames.Matches(ing.Name) {
			score += sustainNamePoints
		}
		if s.kw.SustainabilityRationale.Matches(ing.WhyChosen) {
			score += sustainRationalePoints
		}
	}
	return score
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, maxScore)
}
