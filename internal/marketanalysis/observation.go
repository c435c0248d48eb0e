package marketanalysis

// LocalMarketObservation is the market snapshot supplied by the generation
// service for one city. MarketSize is in currency units, not millions.
type LocalMarketObservation struct {
	Location          string           `json:"location"`
	MarketSize        float64          `json:"marketSize"`
	Population        float64          `json:"population"`
	InternetUsers     float64          `json:"internetUsers"`
	ConfidenceLevel   string           `json:"confidenceLevel"`
	SearchVolume      map[string]int64 `json:"searchVolume,omitempty"`
	DataSources       []string         `json:"dataSources,omitempty"`
	Methodology       string           `json:"methodology,omitempty"`
	Assumptions       []string         `json:"assumptions,omitempty"`
	TotalPurchasers   float64          `json:"totalPurchasers"`
	AverageOrderValue float64          `json:"averageOrderValue"`
}

// LocalMarketSizeM returns the observed local market in millions.
func (o LocalMarketObservation) LocalMarketSizeM() float64 {
	return o.MarketSize / 1_000_000
}

type TAM struct {
	MarketSize      float64 `json:"marketSize"`
	PopulationBasis string  `json:"populationBasis"`
	GrowthRate      string  `json:"growthRate"`
}

type SAM struct {
	MarketSize           float64 `json:"marketSize"`
	PenetrationPercent   string  `json:"penetrationPercent"`
	AccessibilityPercent string  `json:"accessibilityPercent"`
}

type SOM struct {
	MarketSize         float64 `json:"marketSize"`
	MarketSharePercent string  `json:"marketSharePercent"`
	EfficiencyPercent  string  `json:"efficiencyPercent"`
}

// MarketSizeEstimate holds nested market sizes in millions of currency units.
// TAM >= SAM >= SOM >= the observed local market always holds.
type MarketSizeEstimate struct {
	TAM TAM `json:"tam"`
	SAM SAM `json:"sam"`
	SOM SOM `json:"som"`
}

type Tier string

const (
	TierHigh  Tier = "high"
	TierMid   Tier = "mid"
	TierEntry Tier = "entry"
)

type Segment struct {
	Tier              Tier    `json:"tier"`
	PurchaserCount    float64 `json:"purchaserCount"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	ProjectedRevenue  float64 `json:"projectedRevenue"`
}

// Segments always carries all three tiers together.
type Segments struct {
	High  Segment `json:"high"`
	Mid   Segment `json:"mid"`
	Entry Segment `json:"entry"`
}

func (s Segments) All() []Segment {
	return []Segment{s.High, s.Mid, s.Entry}
}

func (s Segments) TotalPurchasers() float64 {
	return s.High.PurchaserCount + s.Mid.PurchaserCount + s.Entry.PurchaserCount
}

func (s Segments) TotalRevenue() float64 {
	return s.High.ProjectedRevenue + s.Mid.ProjectedRevenue + s.Entry.ProjectedRevenue
}
