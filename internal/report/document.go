// Package report renders a completed formulation as markdown, HTML or PDF.
package report

import (
	"time"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/insights"
)

const Disclaimer = "Formulations, costs and market figures are generated estimates for early-stage exploration. " +
	"Validate ingredient safety, regulatory status and supplier pricing before manufacturing or launch."

// Document is everything a report needs about one submission.
type Document struct {
	ID          string
	Prompt      string
	Formulation formulation.Formulation
	Assessment  *formulation.QualityAssessment
	Insights    insights.Insights
	GeneratedAt time.Time
}

func (d Document) Title() string {
	if d.Formulation.ProductName != "" {
		return d.Formulation.ProductName
	}
	return "Formulation Report"
}
