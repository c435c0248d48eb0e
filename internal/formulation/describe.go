package formulation

// Band descriptions, highest band first: >=80, >=60, >=40, below.
var descriptions = map[Axis][4]string{
	AxisEfficacy: {
		"Strong evidence-backed actives drive visible results",
		"Solid active profile with room for a hero ingredient",
		"Modest efficacy; consider adding proven actives",
		"Limited active ingredients; efficacy claims will be weak",
	},
	AxisCostEffectiveness: {
		"Highly cost-efficient ingredient mix",
		"Reasonable ingredient costs for the category",
		"Premium cost base; pricing must support margins",
		"Expensive ingredient mix; review costly components",
	},
	AxisCompliance: {
		"Well aligned with regulatory and safety expectations",
		"Generally compliant; verify a few ingredients",
		"Compliance gaps likely; review documentation",
		"Significant compliance risk; regulatory review needed",
	},
	AxisConsumerAppeal: {
		"Ingredient story resonates strongly with consumers",
		"Good consumer appeal with familiar ingredients",
		"Moderate appeal; strengthen the ingredient narrative",
		"Low consumer appeal; ingredients may feel unfamiliar",
	},
	AxisSustainability: {
		"Strong sustainability credentials",
		"Good sustainability profile with some eco ingredients",
		"Mixed sustainability; consider greener alternatives",
		"Weak sustainability profile",
	},
}

func describe(axis Axis, score float64) string {
	d, ok := descriptions[axis]
	if !ok {
		return ""
	}
	switch {
	case score >= 80:
		return d[0]
	case score >= 60:
		return d[1]
	case score >= 40:
		return d[2]
	default:
		return d[3]
	}
}
