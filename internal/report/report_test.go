package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/insights"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

func sampleDocument() Document {
	f := formulation.Formulation{
		ProductName: "Calm Night Lotion",
		Category:    "skincare",
		Summary:     "A lavender body lotion\nfor evening use.",
		Ingredients: []formulation.Ingredient{
			{
				Name:         "Lavender | Essential Oil",
				Percent:      2,
				CostPer100ml: formulation.Cost(1250.5),
				WhyChosen:    "popular\ncalming scent",
				Suppliers:    []formulation.Supplier{{Name: "Kannauj Oils", Location: "Kannauj", PricePer100ml: 1300}},
			},
			{Name: "Aqua", Percent: 80},
		},
		PH:                 formulation.Cost(5.5),
		ManufacturingSteps: []string{"Heat water phase to 75C", "Emulsify"},
		Branding:           formulation.Branding{Name: "Nidra", Tagline: "Sleep, softly"},
		LocalMarket:        &marketanalysis.LocalMarketObservation{Location: "Pune", MarketSize: 3e7, TotalPurchasers: 12000, AverageOrderValue: 650},
	}
	return Document{
		ID:          "sub-001",
		Prompt:      "calming lotion",
		Formulation: f,
		Assessment:  &formulation.QualityAssessment{OverallScore: 78, Summary: "Viable", Risks: []string{"fragrance allergens"}},
		Insights:    insights.NewDeriver(nil, nil).Derive(f, "", ""),
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildMarkdownSections(t *testing.T) {
	md := BuildMarkdown(sampleDocument())

	for _, want := range []string{
		"# Calm Night Lotion",
		"- Reference: sub-001",
		"- Market: Pune",
		"- Date: 1 March 2026",
		"## Summary\n\nA lavender body lotion for evening use.",
		"## Ingredients",
		"| Lavender \\| Essential Oil | 2% | ₹1,250.50 | popular calming scent | Kannauj Oils (Kannauj) ₹1,300.00 |",
		"| Aqua | 80% | — | — | — |",
		"- Target pH: 5.5",
		"## Priority Scorecard",
		"| Efficacy |",
		"## Market Sizing",
		"## Customer Segments",
		"| High | 2,400 | ₹650.00 | ₹1,560,000.00 |",
		"## Revenue Projection",
		"| Base | 10% |",
		"1. Heat water phase to 75C",
		"- **Brand**: Nidra",
		"Overall score: **78 / 100**",
		"### Risks\n\n- fragrance allergens",
		Disclaimer,
	} {
		assert.Contains(t, md, want)
	}
	assert.NotContains(t, md, "illustrative defaults")
}

func TestBuildMarkdownMinimal(t *testing.T) {
	md := BuildMarkdown(Document{Insights: insights.NewDeriver(nil, nil).Derive(formulation.Formulation{}, "", "")})
	assert.True(t, strings.HasPrefix(md, "# Formulation Report\n"))
	assert.Contains(t, md, "No ingredients were returned.")
	assert.Contains(t, md, "illustrative defaults")
	assert.NotContains(t, md, "## Quality Assessment")
	assert.NotContains(t, md, "## Branding")
}

func TestFmtGrouped(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		want     string
	}{
		{0, 0, "0"},
		{999, 0, "999"},
		{1000, 0, "1,000"},
		{1234567.891, 2, "1,234,567.89"},
		{-43350, 2, "-43,350.00"},
		{123456, 0, "123,456"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fmtGrouped(tc.v, tc.decimals))
	}
}

func TestRenderHTMLThemed(t *testing.T) {
	doc := sampleDocument()
	page, err := RenderHTML(doc.Title(), BuildMarkdown(doc), doc.Insights.Theme)
	require.NoError(t, err)
	assert.Contains(t, page, "<title>Calm Night Lotion</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, doc.Insights.Theme.Primary)
	assert.Contains(t, page, "<h2>Ingredients</h2>")
}

func TestRenderHTMLEscapesTitle(t *testing.T) {
	page, err := RenderHTML("<script>", "# hi", marketanalysis.ThemeFor(""))
	require.NoError(t, err)
	assert.Contains(t, page, "<title>&lt;script&gt;</title>")
}

func TestChromiumRendererUnavailable(t *testing.T) {
	r := &ChromiumPDFRenderer{}
	assert.False(t, r.Available())
	_, err := r.Render(context.Background(), "<html></html>")
	assert.True(t, errors.Is(err, ErrPDFUnavailable))
}

func TestLayoutFor(t *testing.T) {
	l, ok := LayoutFor("")
	require.True(t, ok)
	assert.Equal(t, A4Layout, l)

	l, ok = LayoutFor(" Letter ")
	require.True(t, ok)
	assert.Equal(t, 8.5, l.Width)
	assert.False(t, l.Footer)

	_, ok = LayoutFor("a3")
	assert.False(t, ok)
}

func TestChromiumRendererOptions(t *testing.T) {
	r := NewChromiumPDFRenderer("/opt/chromium", WithPageLayout(LetterLayout), WithRenderTimeout(5*time.Second))
	assert.Equal(t, LetterLayout, r.Layout())
	assert.Equal(t, 5*time.Second, r.timeout)

	r = NewChromiumPDFRenderer("/opt/chromium", WithRenderTimeout(0))
	assert.Equal(t, A4Layout, r.Layout())
	assert.Equal(t, 30*time.Second, r.timeout)

	params := LetterLayout.printParams()
	assert.Equal(t, 11.0, params.PaperHeight)
	assert.False(t, params.DisplayHeaderFooter)
	assert.True(t, A4Layout.printParams().DisplayHeaderFooter)
}

func TestChromiumRendererRendersPDF(t *testing.T) {
	r := NewChromiumPDFRenderer("")
	if !r.Available() {
		t.Skip("chromium not installed")
	}
	doc := sampleDocument()
	page, err := RenderHTML(doc.Title(), BuildMarkdown(doc), doc.Insights.Theme)
	require.NoError(t, err)
	pdf, err := r.Render(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}
