package formulation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
	"github.com/tidwall/gjson"
)

var ErrMalformedJSON = errors.New("malformed json")

// DecodeFormulation reads a formulation document from the generation service.
// The document may be the formulation itself or wrap it under "formulation".
// Numeric fields are normalized instead of rejected: a missing, non-numeric or
// negative cost is treated as absent, a non-numeric percent becomes 0 and
// percentages are clamped to [0,100].
func DecodeFormulation(raw []byte) (Formulation, error) {
	root, err := parseRoot(raw, "formulation")
	if err != nil {
		return Formulation{}, err
	}

	f := Formulation{
		ProductName:        firstString(root, "productName", "name", "title"),
		Category:           root.Get("category").String(),
		Summary:            firstString(root, "summary", "description"),
		TotalCostPer100ml:  nonNegative(root.Get("totalCostPer100ml")),
		ManufacturingSteps: stringList(root.Get("manufacturingSteps")),
		Branding:           decodeBranding(root.Get("branding")),
		Market:             decodeMarketSummary(root.Get("market")),
	}
	if ph, ok := number(root.Get("ph")); ok && ph >= 0 && ph <= 14 {
		f.PH = &ph
	}
	for _, item := range root.Get("ingredients").Array() {
		if !item.IsObject() {
			continue
		}
		f.Ingredients = append(f.Ingredients, decodeIngredient(item))
	}
	if lm := root.Get("localMarket"); lm.IsObject() {
		obs := decodeObservation(lm)
		f.LocalMarket = &obs
	}
	return f, nil
}

// DecodeAssessment reads a quality assessment, bare or under "assessment".
func DecodeAssessment(raw []byte) (QualityAssessment, error) {
	root, err := parseRoot(raw, "assessment")
	if err != nil {
		return QualityAssessment{}, err
	}
	score, _ := number(firstResult(root, "overallScore", "score"))
	return QualityAssessment{
		OverallScore: clamp(score),
		Summary:      firstString(root, "summary", "verdict"),
		Strengths:    stringList(root.Get("strengths")),
		Improvements: stringList(firstResult(root, "improvements", "suggestions")),
		Risks:        stringList(root.Get("risks")),
	}, nil
}

// DecodeObservation reads a bare market observation.
func DecodeObservation(raw []byte) (marketanalysis.LocalMarketObservation, error) {
	root, err := parseRoot(raw, "localMarket")
	if err != nil {
		return marketanalysis.LocalMarketObservation{}, err
	}
	return decodeObservation(root), nil
}

func parseRoot(raw []byte, wrapper string) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, ErrMalformedJSON
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: expected object, got %s", ErrMalformedJSON, root.Type)
	}
	if inner := root.Get(wrapper); inner.IsObject() {
		return inner, nil
	}
	return root, nil
}

func decodeIngredient(r gjson.Result) Ingredient {
	pct, _ := number(firstResult(r, "percent", "percentage"))
	ing := Ingredient{
		Name:         strings.TrimSpace(r.Get("name").String()),
		Percent:      math.Min(math.Max(pct, 0), 100),
		CostPer100ml: nonNegative(r.Get("costPer100ml")),
		WhyChosen:    firstString(r, "whyChosen", "rationale"),
	}
	for _, s := range r.Get("suppliers").Array() {
		if !s.IsObject() {
			continue
		}
		price, _ := number(s.Get("pricePer100ml"))
		ing.Suppliers = append(ing.Suppliers, Supplier{
			Name:          s.Get("name").String(),
			Location:      s.Get("location").String(),
			PricePer100ml: math.Max(price, 0),
			URL:           s.Get("url").String(),
		})
	}
	return ing
}

func decodeBranding(r gjson.Result) Branding {
	if !r.IsObject() {
		return Branding{}
	}
	return Branding{
		Name:        r.Get("name").String(),
		Tagline:     r.Get("tagline").String(),
		Positioning: r.Get("positioning").String(),
		Colors:      stringList(r.Get("colors")),
	}
}

func decodeMarketSummary(r gjson.Result) MarketSummary {
	if !r.IsObject() {
		return MarketSummary{}
	}
	return MarketSummary{
		TargetAudience: r.Get("targetAudience").String(),
		PricePoint:     r.Get("pricePoint").String(),
		Competitors:    stringList(r.Get("competitors")),
		Differentiator: r.Get("differentiator").String(),
	}
}

func decodeObservation(r gjson.Result) marketanalysis.LocalMarketObservation {
	num := func(path string) float64 {
		v, _ := number(r.Get(path))
		return v
	}
	obs := marketanalysis.LocalMarketObservation{
		Location:          r.Get("location").String(),
		MarketSize:        num("marketSize"),
		Population:        num("population"),
		InternetUsers:     num("internetUsers"),
		ConfidenceLevel:   r.Get("confidenceLevel").String(),
		DataSources:       stringList(r.Get("dataSources")),
		Methodology:       r.Get("methodology").String(),
		Assumptions:       stringList(r.Get("assumptions")),
		TotalPurchasers:   num("totalPurchasers"),
		AverageOrderValue: num("averageOrderValue"),
	}
	if sv := r.Get("searchVolume"); sv.IsObject() {
		obs.SearchVolume = make(map[string]int64)
		sv.ForEach(func(key, value gjson.Result) bool {
			v, _ := number(value)
			obs.SearchVolume[key.String()] = int64(v)
			return true
		})
	}
	return obs
}

// number accepts JSON numbers and numeric strings such as "12.5" or "12.5%".
func number(r gjson.Result) (float64, bool) {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.Str), "%"))
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func nonNegative(r gjson.Result) *float64 {
	v, ok := number(r)
	if !ok || v < 0 {
		return nil
	}
	return &v
}

func firstResult(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(r gjson.Result, paths ...string) string {
	return strings.TrimSpace(firstResult(r, paths...).String())
}

func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		if s := strings.TrimSpace(r.String()); r.Type == gjson.String && s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
