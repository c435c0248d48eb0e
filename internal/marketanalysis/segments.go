package marketanalysis

const (
	highShare  = 0.20
	midShare   = 0.50
	entryShare = 0.30

	highAOVMultiplier  = 1.0
	midAOVMultiplier   = 0.6
	entryAOVMultiplier = 0.4
)

// Illustrative figures used when no observation is available.
const (
	DefaultTotalPurchasers   = 10000.0
	DefaultAverageOrderValue = 1500.0
)

// ComputeSegments splits purchasers 20/50/30 into high, mid and entry tiers.
// A nil observation yields DefaultSegments.
func ComputeSegments(obs *LocalMarketObservation) Segments {
	if obs == nil {
		return DefaultSegments()
	}
	return segmentsFor(obs.TotalPurchasers, obs.AverageOrderValue)
}

func DefaultSegments() Segments {
	return segmentsFor(DefaultTotalPurchasers, DefaultAverageOrderValue)
}

func (c *Calculator) Segments(obs *LocalMarketObservation) Segments {
	return ComputeSegments(obs)
}

func segmentsFor(purchasers, aov float64) Segments {
	purchasers, aov = nonNegative(purchasers), nonNegative(aov)
	return Segments{
		High:  segment(TierHigh, purchasers*highShare, aov*highAOVMultiplier),
		Mid:   segment(TierMid, purchasers*midShare, aov*midAOVMultiplier),
		Entry: segment(TierEntry, purchasers*entryShare, aov*entryAOVMultiplier),
	}
}

func segment(tier Tier, purchasers, aov float64) Segment {
	return Segment{
		Tier:              tier,
		PurchaserCount:    purchasers,
		AverageOrderValue: aov,
		ProjectedRevenue:  purchasers * aov,
	}
}
