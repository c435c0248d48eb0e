package generation

import (
	"fmt"
	"strings"
)

func generatePrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Design a manufacturable product formulation for the following idea.\n\n")
	fmt.Fprintf(&b, "Idea: %s\n", req.Prompt)
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	if req.Location != "" {
		fmt.Fprintf(&b, "Target city: %s\n", req.Location)
	}
	b.WriteString(`
Return a JSON object with these fields:
{
  "productName": string,
  "category": string,
  "summary": string,
  "ingredients": [{"name": string, "percent": number, "costPer100ml": number (INR), "whyChosen": string,
                   "suppliers": [{"name": string, "location": string, "pricePer100ml": number, "url": string}]}],
  "totalCostPer100ml": number,
  "ph": number,
  "manufacturingSteps": [string],
  "branding": {"name": string, "tagline": string, "positioning": string, "colors": [string]},
  "market": {"targetAudience": string, "pricePoint": string, "competitors": [string], "differentiator": string},
  "localMarket": {"location": string, "marketSize": number (INR), "population": number, "internetUsers": number,
                  "confidenceLevel": "low"|"medium"|"high", "searchVolume": {term: number},
                  "dataSources": [string], "methodology": string, "assumptions": [string],
                  "totalPurchasers": number, "averageOrderValue": number (INR)}
}
Ingredient percentages must sum to 100.`)
	return b.String()
}

func assessPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Assess the commercial and technical quality of the following product idea.\n\n")
	fmt.Fprintf(&b, "Idea: %s\n", req.Prompt)
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	b.WriteString(`
Return a JSON object:
{"overallScore": number 0-100, "summary": string, "strengths": [string], "improvements": [string], "risks": [string]}`)
	return b.String()
}
