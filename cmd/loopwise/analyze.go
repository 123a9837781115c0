package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/loopwise/internal/domain/dynamics"
)

type analyzeFlags struct {
	file   string
	output string
	entity string
	domain string
}

func newAnalyzeCmd(root *rootFlags) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a series file in-process",
		Long: `Analyze reads a request file (YAML or JSON) with entity_name,
domain_label, metric_names and time_series, runs the engine locally and
prints the analysis.

Usage:
  loopwise analyze series.yaml
  loopwise analyze -f series.json -o yaml
  cat series.json | loopwise analyze -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.file
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("a request file is required\n\nUsage: loopwise analyze <file>")
			}

			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, root)
			if err != nil {
				return err
			}
			log, err := setupLog(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			req, err := readRequest(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if flags.entity != "" {
				req.EntityName = flags.entity
			}
			if flags.domain != "" {
				req.DomainLabel = flags.domain
			}
			if err := req.Validate(cfg.MaxMetrics); err != nil {
				return err
			}

			engine := dynamics.NewEngine(append(cfg.EngineOptions(), dynamics.WithLogger(log.Named("engine")))...)
			analysis, err := engine.AnalyzeSystem(ctx, req.TimeSeries, req.Names(), req.EntityName, req.DomainLabel)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), flags.output, analysis)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Request file (YAML or JSON); - for stdin")
	f.StringVarP(&flags.output, "output", "o", formatJSON, "Output format: json or yaml")
	f.StringVar(&flags.entity, "entity", "", "Override entity_name")
	f.StringVar(&flags.domain, "domain", "", "Override domain_label")
	return cmd
}
