package report

import (
	"math"
	"strconv"
	"strings"
)

func sanitize(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(strings.ReplaceAll(s, "\r", " ")), " "))
}

// sanitizeCell prepares text for a markdown table cell.
func sanitizeCell(s string) string {
	s = sanitize(s)
	if s == "" {
		return "—"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

// fmtGrouped formats v with comma separators and the given number of decimals,
// e.g. 1234567.891 with 2 decimals gives "1,234,567.89".
func fmtGrouped(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "—"
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if v < 0 && strings.Trim(s, "0.") != "" {
		b.WriteByte('-')
	}
	rem := len(intPart) % 3
	if rem > 0 {
		b.WriteString(intPart[:rem])
	}
	for i := rem; i < len(intPart); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	b.WriteString(frac)
	return b.String()
}

func fmtRupees(v float64) string {
	return "₹" + fmtGrouped(v, 2)
}

func fmtMillions(v float64) string {
	return "₹" + fmtGrouped(v, 2) + "M"
}

func fmtCost(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmtRupees(*v)
}

func fmtPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func scenarioLabel(name string) string {
	switch name {
	case "pessimistic":
		return "Pessimistic"
	case "base":
		return "Base"
	case "optimistic":
		return "Optimistic"
	default:
		return name
	}
}
