package marketanalysis

import (
	"sort"
	"strings"
)

// NationalPopulationM is the national population basis in millions.
const NationalPopulationM = 1400.0

const DefaultCity = "Mumbai"

type PenetrationRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Average returns the midpoint penetration as a fraction (20% -> 0.20).
func (p PenetrationRange) Average() float64 {
	return (p.Min + p.Max) / 2 / 100
}

type CategoryProfile struct {
	Category    string           `json:"category"`
	Multiplier  float64          `json:"multiplier"`
	Penetration PenetrationRange `json:"penetration"`
}

// Tables is the static reference data behind the calculators. Keys of Cities
// and Categories are lower-case.
type Tables struct {
	NationalPopulationM float64
	DefaultCity         string
	Cities              map[string]float64
	Categories          map[string]CategoryProfile
	DefaultProfile      CategoryProfile
}

var defaultCityPopulationM = map[string]float64{
	"mumbai":    20.7,
	"delhi":     32.9,
	"bangalore": 13.6,
	"bengaluru": 13.6,
	"hyderabad": 10.8,
	"chennai":   11.8,
	"kolkata":   15.3,
	"pune":      7.4,
	"ahmedabad": 8.7,
	"jaipur":    4.2,
	"lucknow":   3.9,
	"surat":     8.3,
	"kochi":     2.3,
	"indore":    3.3,
}

var defaultCategoryProfiles = map[string]CategoryProfile{
	"cosmetics": {Category: "cosmetics", Multiplier: 1.2, Penetration: PenetrationRange{Min: 15, Max: 25}},
	"skincare":  {Category: "skincare", Multiplier: 1.3, Penetration: PenetrationRange{Min: 18, Max: 28}},
	"haircare":  {Category: "haircare", Multiplier: 1.1, Penetration: PenetrationRange{Min: 20, Max: 30}},
	"pet food":  {Category: "pet food", Multiplier: 0.8, Penetration: PenetrationRange{Min: 10, Max: 20}},
	"wellness":  {Category: "wellness", Multiplier: 1.1, Penetration: PenetrationRange{Min: 12, Max: 22}},
	"beverages": {Category: "beverages", Multiplier: 1.4, Penetration: PenetrationRange{Min: 25, Max: 35}},
	"food":      {Category: "food", Multiplier: 1.5, Penetration: PenetrationRange{Min: 30, Max: 40}},
	"textiles":  {Category: "textiles", Multiplier: 0.9, Penetration: PenetrationRange{Min: 8, Max: 15}},
	"household": {Category: "household", Multiplier: 1.0, Penetration: PenetrationRange{Min: 20, Max: 30}},
}

var defaultProfile = CategoryProfile{Category: "default", Multiplier: 1.0, Penetration: PenetrationRange{Min: 15, Max: 25}}

// DefaultTables returns a fresh copy of the built-in reference data.
func DefaultTables() Tables {
	cities := make(map[string]float64, len(defaultCityPopulationM))
	for k, v := range defaultCityPopulationM {
		cities[k] = v
	}
	cats := make(map[string]CategoryProfile, len(defaultCategoryProfiles))
	for k, v := range defaultCategoryProfiles {
		cats[k] = v
	}
	return Tables{
		NationalPopulationM: NationalPopulationM,
		DefaultCity:         DefaultCity,
		Cities:              cities,
		Categories:          cats,
		DefaultProfile:      defaultProfile,
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CityPopulationM returns the population in millions for city, falling back
// to the default city. The second result reports whether city itself matched.
func (t Tables) CityPopulationM(city string) (float64, bool) {
	_, pop, ok := t.ResolveCity(city)
	return pop, ok
}

// ResolveCity returns the name and population of the table row actually
// used for city. An unknown city resolves to DefaultCity, and a DefaultCity
// missing from the table resolves to the built-in default.
func (t Tables) ResolveCity(city string) (string, float64, bool) {
	if p, ok := t.Cities[normalizeKey(city)]; ok && p > 0 {
		return strings.TrimSpace(city), p, true
	}
	if p, ok := t.Cities[normalizeKey(t.DefaultCity)]; ok && p > 0 {
		return strings.TrimSpace(t.DefaultCity), p, false
	}
	return DefaultCity, defaultCityPopulationM[normalizeKey(DefaultCity)], false
}

// ProfileForCategory matches case-insensitively; unknown categories get the
// default multiplier and penetration.
func (t Tables) ProfileForCategory(category string) (CategoryProfile, bool) {
	if p, ok := t.Categories[normalizeKey(category)]; ok {
		return p, true
	}
	return t.DefaultProfile, false
}

func (t Tables) CategoryNames() []string {
	out := make([]string, 0, len(t.Categories))
	for k := range t.Categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t Tables) CityNames() []string {
	out := make([]string, 0, len(t.Cities))
	for k := range t.Cities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
