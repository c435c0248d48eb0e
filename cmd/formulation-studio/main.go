package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "formulation-studio",
		Short:        "Generate product formulations with priority scores and market sizing",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/studio.yaml or ./studio.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(sizeCmd())
	rootCmd.AddCommand(segmentsCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
