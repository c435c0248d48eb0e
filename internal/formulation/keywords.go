package formulation

import "strings"

// KeywordSet matches text by case-insensitive substring.
type KeywordSet []string

func (k KeywordSet) Matches(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range k {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Keywords configures the priority scorer. Name sets are matched against the
// ingredient name, rationale sets against WhyChosen; the compliance sets are
// matched against both.
type Keywords struct {
	EfficacyNames           KeywordSet `json:"efficacyNames" mapstructure:"efficacy_names" yaml:"efficacy_names"`
	EfficacyRationale       KeywordSet `json:"efficacyRationale" mapstructure:"efficacy_rationale" yaml:"efficacy_rationale"`
	ComplianceCertified     KeywordSet `json:"complianceCertified" mapstructure:"compliance_certified" yaml:"compliance_certified"`
	ComplianceSafety        KeywordSet `json:"complianceSafety" mapstructure:"compliance_safety" yaml:"compliance_safety"`
	AppealNames             KeywordSet `json:"appealNames" mapstructure:"appeal_names" yaml:"appeal_names"`
	AppealRationale         KeywordSet `json:"appealRationale" mapstructure:"appeal_rationale" yaml:"appeal_rationale"`
	SustainabilityNames     KeywordSet `json:"sustainabilityNames" mapstructure:"sustainability_names" yaml:"sustainability_names"`
	SustainabilityRationale KeywordSet `json:"sustainabilityRationale" mapstructure:"sustainability_rationale" yaml:"sustainability_rationale"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		EfficacyNames:           KeywordSet{"active", "peptide", "retinol", "vitamin", "antioxidant", "extract"},
		EfficacyRationale:       KeywordSet{"efficacy", "effective", "results", "benefit", "performance"},
		ComplianceCertified:     KeywordSet{"fda", "approved", "certified", "compliant"},
		ComplianceSafety:        KeywordSet{"paraben", "sulfate", "alcohol", "safety", "gentle", "mild"},
		AppealNames:             KeywordSet{"natural", "organic", "plant", "botanical", "herbal", "essential"},
		AppealRationale:         KeywordSet{"popular", "trending", "preferred", "loved", "favorite"},
		SustainabilityNames:     KeywordSet{"organic", "natural", "biodegradable", "recycled", "sustainable", "eco"},
		SustainabilityRationale: KeywordSet{"sustainable", "eco-friendly", "green", "environmental", "biodegradable"},
	}
}

// Merge returns k with every empty set replaced by the corresponding set
// from fallback.
func (k Keywords) Merge(fallback Keywords) Keywords {
	pick := func(a, b KeywordSet) KeywordSet {
		if len(a) > 0 {
			return a
		}
		return b
	}
	return Keywords{
		EfficacyNames:           pick(k.EfficacyNames, fallback.EfficacyNames),
		EfficacyRationale:       pick(k.EfficacyRationale, fallback.EfficacyRationale),
		ComplianceCertified:     pick(k.ComplianceCertified, fallback.ComplianceCertified),
		ComplianceSafety:        pick(k.ComplianceSafety, fallback.ComplianceSafety),
		AppealNames:             pick(k.AppealNames, fallback.AppealNames),
		AppealRationale:         pick(k.AppealRationale, fallback.AppealRationale),
		SustainabilityNames:     pick(k.SustainabilityNames, fallback.SustainabilityNames),
		SustainabilityRationale: pick(k.SustainabilityRationale, fallback.SustainabilityRationale),
	}
}
