package main

import (
	"github.com/spf13/cobra"

	"github.com/joelkehle/formulation-studio/internal/config"
)

func configCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			load := config.Read
			if check {
				load = config.Load
			}
			cfg, err := load(cfgFile)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "validate the configuration as serve would")
	return cmd
}
