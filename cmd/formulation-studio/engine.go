package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelkehle/formulation-studio/internal/config"
	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
)

func scoreCmd() *cobra.Command {
	var radius float64

	cmd := &cobra.Command{
		Use:   "score [formulation.json|-]",
		Short: "Score a formulation's ingredients on the five priority axes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(cfgFile)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			f, err := formulation.DecodeFormulation(raw)
			if err != nil {
				return err
			}
			scores := formulation.NewScorer(cfg.Scoring.Keywords).Score(f.Ingredients)
			out := map[string]any{"priorities": scores}
			if radius > 0 {
				out["radar"] = formulation.RadarPoints(scores, radius)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "also emit radar chart points for this radius")
	return cmd
}

func sizeCmd() *cobra.Command {
	var (
		city, category  string
		observationPath string
		marketSize      float64
	)

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Estimate TAM, SAM and SOM from a local market observation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(cfgFile)
			if err != nil {
				return err
			}
			obs, err := observationFromFlags(observationPath, city, marketSize, 0, 0)
			if err != nil {
				return err
			}
			calc := marketanalysis.NewCalculator(cfg.Market.Tables())
			estimate := calc.MarketSizes(obs, city, category)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"marketSize":   estimate,
				"projection":   marketanalysis.ProjectRevenue(estimate, marketanalysis.DefaultProjectionYears),
				"illustrative": obs == nil,
			})
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "city the observation was made in")
	cmd.Flags().StringVar(&category, "category", "", "product category")
	cmd.Flags().Float64Var(&marketSize, "market-size", 0, "observed local market size in currency units")
	cmd.Flags().StringVar(&observationPath, "observation", "", "JSON file holding a local market observation")
	return cmd
}

func segmentsCmd() *cobra.Command {
	var (
		observationPath string
		purchasers, aov float64
	)

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Split purchasers into high, mid and entry tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			obs, err := observationFromFlags(observationPath, "", 0, purchasers, aov)
			if err != nil {
				return err
			}
			segs := marketanalysis.ComputeSegments(obs)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"segments":        segs,
				"totalPurchasers": segs.TotalPurchasers(),
				"totalRevenue":    segs.TotalRevenue(),
				"illustrative":    obs == nil,
			})
		},
	}
	cmd.Flags().Float64Var(&purchasers, "purchasers", 0, "total purchasers in the local market")
	cmd.Flags().Float64Var(&aov, "aov", 0, "average order value")
	cmd.Flags().StringVar(&observationPath, "observation", "", "JSON file holding a local market observation")
	return cmd
}

// observationFromFlags returns nil when neither a file nor any figure was
// given, so the calculators use their illustrative defaults.
func observationFromFlags(path, city string, marketSize, purchasers, aov float64) (*marketanalysis.LocalMarketObservation, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read observation: %w", err)
		}
		obs, err := formulation.DecodeObservation(raw)
		if err != nil {
			return nil, fmt.Errorf("decode observation: %w", err)
		}
		return &obs, nil
	}
	if marketSize == 0 && purchasers == 0 && aov == 0 {
		return nil, nil
	}
	if !finite(marketSize) || !finite(purchasers) || !finite(aov) {
		return nil, errors.New("market figures must be finite numbers")
	}
	return &marketanalysis.LocalMarketObservation{
		Location:          city,
		MarketSize:        marketSize,
		TotalPurchasers:   purchasers,
		AverageOrderValue: aov,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
