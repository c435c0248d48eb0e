package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joelkehle/formulation-studio/internal/config"
	"github.com/joelkehle/formulation-studio/internal/logger"
	"github.com/joelkehle/formulation-studio/internal/report"
	"github.com/joelkehle/formulation-studio/internal/store"
	"github.com/joelkehle/formulation-studio/internal/studio"
	"github.com/joelkehle/formulation-studio/internal/telemetry"
)

func generateCmd() *cobra.Command {
	var (
		in     store.NewSubmission
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one formulation and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			switch format {
			case "md", "html", "json":
			default:
				return fmt.Errorf("unknown --format %q (want md, html or json)", format)
			}

			log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
			defer log.Sync()
			metrics := telemetry.NewMetrics()

			if dir := filepath.Dir(cfg.Store.Path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create store dir: %w", err)
				}
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			gen, closeGen, err := newGenerator(ctx, cfg, log, metrics)
			if err != nil {
				return err
			}
			defer closeGen()

			svc := studio.NewService(st, gen, newDeriver(cfg), studio.ServiceOptions{
				MaxConcurrent: 1,
				Assess:        cfg.Generation.Assess,
				Timeout:       cfg.Generation.Timeout * 2,
			}, log, metrics)

			sub, err := svc.Process(ctx, in)
			if err != nil {
				return err
			}
			out, err := renderSubmission(sub, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}
	cmd.Flags().StringVar(&in.Prompt, "prompt", "", "product idea")
	cmd.Flags().StringVar(&in.Category, "category", "", "product category")
	cmd.Flags().StringVar(&in.Location, "location", "", "target location passed to the generation service")
	cmd.Flags().StringVar(&in.City, "city", "", "city used for market sizing (defaults to location)")
	cmd.Flags().StringVar(&format, "format", "md", "output format: md, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func renderSubmission(sub store.Submission, format string) ([]byte, error) {
	if format == "json" {
		b, err := json.MarshalIndent(sub, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
	doc, err := studio.DocumentFor(sub)
	if err != nil {
		return nil, err
	}
	md := report.BuildMarkdown(doc)
	if format == "md" {
		return []byte(md), nil
	}
	page, err := report.RenderHTML(doc.Title(), md, doc.Insights.Theme)
	if err != nil {
		return nil, err
	}
	return []byte(page), nil
}
