package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/studio"
)

func main() {
	inputPath := flag.String("input", "", "Path to a saved submission JSON (GET /api/formulations/{id})")
	outputPath := flag.String("output", "", "Path to write rebuilt markdown (defaults to stdout)")
	htmlOutputPath := flag.String("html-output", "", "Optional path to write the themed HTML report")
	pdfOutputPath := flag.String("pdf-output", "", "Optional path to write a PDF report (requires Chromium)")
	chromePath := flag.String("chrome", "", "Chromium binary (defaults to CHROME_PATH or a detected install)")
	paper := flag.String("paper", "a4", "PDF paper size: a4 or letter")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	var sub store.Submission
	if err := json.Unmarshal(in, &sub); err != nil {
		log.Fatalf("decode input JSON: %v", err)
	}

	doc, err := studio.DocumentFor(sub)
	if err != nil {
		log.Fatalf("rebuild report: %v", err)
	}
	md := report.BuildMarkdown(doc)

	if err := writeMarkdown(*outputPath, md); err != nil {
		log.Fatalf("write markdown: %v", err)
	}
	if *htmlOutputPath == "" && *pdfOutputPath == "" {
		return
	}

	page, err := report.RenderHTML(doc.Title(), md, doc.Insights.Theme)
	if err != nil {
		log.Fatalf("render html: %v", err)
	}
	if *htmlOutputPath != "" {
		if err := os.WriteFile(*htmlOutputPath, []byte(page), 0o644); err != nil {
			log.Fatalf("write html output: %v", err)
		}
	}
	if *pdfOutputPath != "" {
		layout, ok := report.LayoutFor(*paper)
		if !ok {
			log.Fatalf("unknown -paper %q", *paper)
		}
		if err := writePDF(*pdfOutputPath, *chromePath, layout, page); err != nil {
			log.Fatalf("write pdf output: %v", err)
		}
	}
}

func writeMarkdown(outputPath, markdown string) error {
	if outputPath == "" {
		_, err := fmt.Print(markdown)
		return err
	}
	return os.WriteFile(outputPath, []byte(markdown), 0o644)
}

func writePDF(path, chromePath string, layout report.PageLayout, page string) error {
	renderer := report.NewChromiumPDFRenderer(chromePath, report.WithPageLayout(layout))
	if !renderer.Available() {
		return report.ErrPDFUnavailable
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pdf, err := renderer.Render(ctx, page)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pdf, 0o644)
}
