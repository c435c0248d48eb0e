package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/formulation-studio/internal/insights"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

// Reference URLs used in the report markdown.
const (
	tamSamSomURL = "https://www.investopedia.com/terms/t/tam.asp"
	npvURL       = "https://www.investopedia.com/terms/n/npv.asp"
)

var projectionOrder = []string{"pessimistic", "base", "optimistic"}

func BuildMarkdown(doc Document) string {
	f := doc.Formulation
	ins := doc.Insights

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sanitize(doc.Title()))
	if doc.ID != "" {
		fmt.Fprintf(&b, "- Reference: %s\n", sanitize(doc.ID))
	}
	if f.Category != "" || ins.Category != "" {
		category := ins.Category
		if category == "" {
			category = f.Category
		}
		fmt.Fprintf(&b, "- Category: %s\n", sanitize(category))
	}
	if ins.City != "" {
		fmt.Fprintf(&b, "- Market: %s\n", sanitize(ins.City))
	}
	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	fmt.Fprintf(&b, "- Date: %s\n", generated.UTC().Format("2 January 2006"))
	if p := sanitize(doc.Prompt); p != "" {
		fmt.Fprintf(&b, "- Brief: %s\n", p)
	}
	fmt.Fprintf(&b, "\n")

	if s := sanitize(f.Summary); s != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", s)
	}

	writeIngredients(&b, doc)
	writePriorities(&b, doc)
	writeMarket(&b, ins)
	writeSegments(&b, ins.Segments)
	writeProjection(&b, ins.Projection)

	if len(f.ManufacturingSteps) > 0 {
		fmt.Fprintf(&b, "## Manufacturing Steps\n\n")
		for i, step := range f.ManufacturingSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, sanitize(step))
		}
		fmt.Fprintf(&b, "\n")
	}

	writeBranding(&b, doc)
	writeAssessment(&b, doc)

	fmt.Fprintf(&b, "---\n\n_%s_\n", Disclaimer)
	return b.String()
}

func writeIngredients(b *strings.Builder, doc Document) {
	f := doc.Formulation
	fmt.Fprintf(b, "## Ingredients\n\n")
	if len(f.Ingredients) == 0 {
		fmt.Fprintf(b, "No ingredients were returned.\n\n")
		return
	}
	fmt.Fprintf(b, "| Ingredient | %% | Cost / 100ml | Why chosen | Suppliers |\n")
	fmt.Fprintf(b, "|------------|---|--------------|------------|-----------|\n")
	for _, ing := range f.Ingredients {
		var suppliers []string
		for _, s := range ing.Suppliers {
			entry := s.Name
			if s.Location != "" {
				entry += " (" + s.Location + ")"
			}
			if s.PricePer100ml > 0 {
				entry += " " + fmtRupees(s.PricePer100ml)
			}
			suppliers = append(suppliers, entry)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			sanitizeCell(ing.Name),
			fmtPercent(ing.Percent),
			fmtCost(ing.CostPer100ml),
			sanitizeCell(ing.WhyChosen),
			sanitizeCell(strings.Join(suppliers, "; ")))
	}
	fmt.Fprintf(b, "\n")
	if f.TotalCostPer100ml != nil {
		fmt.Fprintf(b, "- Total cost per 100ml: %s\n", fmtRupees(*f.TotalCostPer100ml))
	}
	if f.PH != nil {
		fmt.Fprintf(b, "- Target pH: %s\n", fmtGrouped(*f.PH, 1))
	}
	if f.TotalCostPer100ml != nil || f.PH != nil {
		fmt.Fprintf(b, "\n")
	}
}

func writePriorities(b *strings.Builder, doc Document) {
	fmt.Fprintf(b, "## Priority Scorecard\n\n")
	fmt.Fprintf(b, "| Axis | Score | Assessment |\n")
	fmt.Fprintf(b, "|------|-------|------------|\n")
	for _, p := range doc.Insights.Priorities {
		fmt.Fprintf(b, "| %s | %.0f / 100 | %s |\n", p.Axis, p.Score, sanitizeCell(p.Description))
	}
	fmt.Fprintf(b, "\n")
}

func writeMarket(b *strings.Builder, ins insights.Insights) {
	est := ins.MarketSize
	fmt.Fprintf(b, "## Market Sizing\n\n")
	if ins.Illustrative {
		fmt.Fprintf(b, "> No local market data was returned; figures below are illustrative defaults.\n\n")
	}
	fmt.Fprintf(b, "Estimates follow a top-down [TAM / SAM / SOM](%s) extrapolation from the observed local market.\n\n", tamSamSomURL)
	fmt.Fprintf(b, "| Tier | Size | Basis |\n")
	fmt.Fprintf(b, "|------|------|-------|\n")
	fmt.Fprintf(b, "| TAM | %s | %s; growth %s |\n", fmtMillions(est.TAM.MarketSize), sanitizeCell(est.TAM.PopulationBasis), est.TAM.GrowthRate)
	fmt.Fprintf(b, "| SAM | %s | penetration %s; accessibility %s |\n", fmtMillions(est.SAM.MarketSize), est.SAM.PenetrationPercent, est.SAM.AccessibilityPercent)
	fmt.Fprintf(b, "| SOM | %s | market share %s; efficiency %s |\n\n", fmtMillions(est.SOM.MarketSize), est.SOM.MarketSharePercent, est.SOM.EfficiencyPercent)
}

func writeSegments(b *strings.Builder, segs marketanalysis.Segments) {
	fmt.Fprintf(b, "## Customer Segments\n\n")
	fmt.Fprintf(b, "| Tier | Purchasers | Avg. order value | Projected revenue |\n")
	fmt.Fprintf(b, "|------|------------|------------------|-------------------|\n")
	for _, s := range segs.All() {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", tierLabel(s.Tier), fmtGrouped(s.PurchaserCount, 0), fmtRupees(s.AverageOrderValue), fmtRupees(s.ProjectedRevenue))
	}
	fmt.Fprintf(b, "| **Total** | %s | | %s |\n\n", fmtGrouped(segs.TotalPurchasers(), 0), fmtRupees(segs.TotalRevenue()))
}

func writeProjection(b *strings.Builder, p marketanalysis.Projection) {
	if len(p.Scenarios) == 0 {
		return
	}
	fmt.Fprintf(b, "## Revenue Projection\n\n")
	fmt.Fprintf(b, "SOM revenue over %d years with a half-year launch ramp, discounted at %.0f%% ([NPV](%s)).\n\n", p.Years, p.DiscountRate*100, npvURL)
	fmt.Fprintf(b, "| Scenario | Growth |")
	for y := 1; y <= p.Years; y++ {
		fmt.Fprintf(b, " Year %d |", y)
	}
	fmt.Fprintf(b, " NPV |\n|----------|--------|")
	for y := 1; y <= p.Years; y++ {
		fmt.Fprintf(b, "------|")
	}
	fmt.Fprintf(b, "-----|\n")
	for _, name := range projectionOrder {
		sc, ok := p.Scenarios[name]
		if !ok {
			continue
		}
		fmt.Fprintf(b, "| %s | %.0f%% |", scenarioLabel(name), sc.GrowthRate*100)
		for _, rev := range sc.Revenue {
			fmt.Fprintf(b, " %s |", fmtMillions(rev))
		}
		fmt.Fprintf(b, " %s |\n", fmtMillions(sc.NPV))
	}
	fmt.Fprintf(b, "\n")
}

func writeBranding(b *strings.Builder, doc Document) {
	br := doc.Formulation.Branding
	m := doc.Formulation.Market
	if br.Name == "" && br.Tagline == "" && br.Positioning == "" && m.TargetAudience == "" && m.PricePoint == "" {
		return
	}
	fmt.Fprintf(b, "## Branding & Positioning\n\n")
	for _, row := range [][2]string{
		{"Brand", br.Name},
		{"Tagline", br.Tagline},
		{"Positioning", br.Positioning},
		{"Target audience", m.TargetAudience},
		{"Price point", m.PricePoint},
		{"Differentiator", m.Differentiator},
		{"Competitors", strings.Join(m.Competitors, ", ")},
	} {
		if v := sanitize(row[1]); v != "" {
			fmt.Fprintf(b, "- **%s**: %s\n", row[0], v)
		}
	}
	fmt.Fprintf(b, "\n")
}

func writeAssessment(b *strings.Builder, doc Document) {
	a := doc.Assessment
	if a == nil {
		return
	}
	fmt.Fprintf(b, "## Quality Assessment\n\n")
	fmt.Fprintf(b, "Overall score: **%.0f / 100**\n\n", a.OverallScore)
	if s := sanitize(a.Summary); s != "" {
		fmt.Fprintf(b, "%s\n\n", s)
	}
	writeList(b, "Strengths", a.Strengths)
	writeList(b, "Improvements", a.Improvements)
	writeList(b, "Risks", a.Risks)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", sanitize(it))
	}
	fmt.Fprintf(b, "\n")
}

func tierLabel(t marketanalysis.Tier) string {
	switch t {
	case marketanalysis.TierHigh:
		return "High"
	case marketanalysis.TierMid:
		return "Mid"
	case marketanalysis.TierEntry:
		return "Entry"
	default:
		return string(t)
	}
}
