package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hed1ad/turbineguard/pkg/config"
	"github.com/hed1ad/turbineguard/pkg/pipeline"
)

func newColumnsCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show which sensor and predictor columns an input resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.readInput(input)
			if err != nil {
				return err
			}

			p, err := pipeline.New(a.cfg.Detectors, pipeline.WithLogger(a.logger))
			if err != nil {
				return err
			}
			sensors, predictors, err := p.Columns(ds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:    %d\n", ds.Len())
			fmt.Fprintf(out, "sensors:    %s\n", strings.Join(sensors, ", "))
			fmt.Fprintf(out, "predictors: %s\n", strings.Join(predictors, ", "))
			fmt.Fprintf(out, "target:     %s\n", a.cfg.Detectors.Target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input CSV file")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), a.cfg)
		},
	}
}
