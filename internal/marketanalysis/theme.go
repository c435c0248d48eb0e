package marketanalysis

// CategoryTheme is the display palette for a product category. It is resolved
// once per request and passed to whatever formats output for that category.
type CategoryTheme struct {
	Category   string `json:"category"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Gradient   string `json:"gradient"`
}

var defaultTheme = CategoryTheme{
	Category:   "default",
	Primary:    "#4f46e5",
	Secondary:  "#818cf8",
	Accent:     "#f59e0b",
	Background: "#eef2ff",
	Gradient:   "linear-gradient(135deg, #4f46e5 0%, #818cf8 100%)",
}

var categoryThemes = map[string]CategoryTheme{
	"cosmetics": {
		Category:   "cosmetics",
		Primary:    "#db2777",
		Secondary:  "#f472b6",
		Accent:     "#a855f7",
		Background: "#fdf2f8",
		Gradient:   "linear-gradient(135deg, #db2777 0%, #a855f7 100%)",
	},
	"skincare": {
		Category:   "skincare",
		Primary:    "#e11d48",
		Secondary:  "#fb7185",
		Accent:     "#f97316",
		Background: "#fff1f2",
		Gradient:   "linear-gradient(135deg, #e11d48 0%, #fb7185 100%)",
	},
	"haircare": {
		Category:   "haircare",
		Primary:    "#7c3aed",
		Secondary:  "#a78bfa",
		Accent:     "#ec4899",
		Background: "#f5f3ff",
		Gradient:   "linear-gradient(135deg, #7c3aed 0%, #ec4899 100%)",
	},
	"pet food": {
		Category:   "pet food",
		Primary:    "#d97706",
		Secondary:  "#fbbf24",
		Accent:     "#65a30d",
		Background: "#fffbeb",
		Gradient:   "linear-gradient(135deg, #d97706 0%, #fbbf24 100%)",
	},
	"wellness": {
		Category:   "wellness",
		Primary:    "#059669",
		Secondary:  "#34d399",
		Accent:     "#0ea5e9",
		Background: "#ecfdf5",
		Gradient:   "linear-gradient(135deg, #059669 0%, #0ea5e9 100%)",
	},
	"beverages": {
		Category:   "beverages",
		Primary:    "#0284c7",
		Secondary:  "#38bdf8",
		Accent:     "#f43f5e",
		Background: "#f0f9ff",
		Gradient:   "linear-gradient(135deg, #0284c7 0%, #38bdf8 100%)",
	},
	"food": {
		Category:   "food",
		Primary:    "#ea580c",
		Secondary:  "#fb923c",
		Accent:     "#16a34a",
		Background: "#fff7ed",
		Gradient:   "linear-gradient(135deg, #ea580c 0%, #fb923c 100%)",
	},
	"textiles": {
		Category:   "textiles",
		Primary:    "#0f766e",
		Secondary:  "#2dd4bf",
		Accent:     "#eab308",
		Background: "#f0fdfa",
		Gradient:   "linear-gradient(135deg, #0f766e 0%, #2dd4bf 100%)",
	},
	"household": {
		Category:   "household",
		Primary:    "#475569",
		Secondary:  "#94a3b8",
		Accent:     "#22c55e",
		Background: "#f8fafc",
		Gradient:   "linear-gradient(135deg, #475569 0%, #94a3b8 100%)",
	},
}

// ThemeFor resolves the palette for category, case-insensitively.
func ThemeFor(category string) CategoryTheme {
	if t, ok := categoryThemes[normalizeKey(category)]; ok {
		return t
	}
	return defaultTheme
}
