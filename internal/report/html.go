package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

// RenderHTML converts report markdown into a standalone HTML page styled with
// the category theme.
func RenderHTML(title, md string, theme marketanalysis.CategoryTheme) (string, error) {
	var content strings.Builder
	if err := markdown.Convert([]byte(md), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'>" +
		"<title>" + html.EscapeString(title) + "</title>" +
		"<style>" + themeCSS(theme) + "</style></head><body>" +
		"<div class='report-wrap'><header class='report-banner'></header>" +
		"<main class='report-html'>" + content.String() + "</main></div>" +
		"</body></html>", nil
}

func themeCSS(t marketanalysis.CategoryTheme) string {
	return fmt.Sprintf(":root{--primary:%s;--secondary:%s;--accent:%s;--background:%s;} "+
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} "+
		"body{margin:0;background:var(--background);font-family:'Inter','Segoe UI',sans-serif;color:#1f2937;} "+
		".report-wrap{max-width:1000px;margin:0 auto;background:#fff;} "+
		".report-banner{height:10px;background:%s;} "+
		".report-html{padding:1.5rem 2rem;} "+
		".report-html h1{color:var(--primary);margin-top:0.5rem;} "+
		".report-html h2{color:var(--primary);border-bottom:2px solid var(--secondary);padding-bottom:0.2rem;} "+
		".report-html a{color:var(--accent);} "+
		".report-html table{width:100%%;border-collapse:collapse;font-size:0.85rem;} "+
		".report-html th,.report-html td{border:1px solid #d1d5db;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} "+
		".report-html thead th{background:var(--background);font-weight:700;} "+
		".report-html blockquote{border-left:4px solid var(--accent);margin:0;padding:0.25rem 1rem;background:#fffbeb;} "+
		"@media print{ @page{size:A4;margin:12mm;} body{background:#fff;} .report-wrap{max-width:none;} }",
		t.Primary, t.Secondary, t.Accent, t.Background, t.Gradient)
}
