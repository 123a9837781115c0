package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/loopwise/internal/client"
)

type submitFlags struct {
	url     string
	output  string
	wait    bool
	timeout time.Duration
}

func newSubmitCmd(_ *rootFlags) *cobra.Command {
	flags := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a series file to a running service",
		Long: `Submit posts a request file (YAML or JSON) to POST /analyses. With
--wait it polls GET /analyses/{id} and prints the finished job; otherwise
it prints the job id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			c := client.New(flags.url, client.WithTimeout(flags.timeout))
			sub, err := c.Submit(ctx, req)
			if err != nil {
				return err
			}
			if !flags.wait {
				return writeOutput(cmd.OutOrStdout(), flags.output, sub)
			}

			job, err := c.Wait(ctx, sub.JobID)
			if err != nil {
				return fmt.Errorf("analysis %s: %w", sub.JobID, err)
			}
			return writeOutput(cmd.OutOrStdout(), flags.output, job)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.url, "url", "http://localhost:9080", "Base URL of the service")
	f.StringVarP(&flags.output, "output", "o", formatJSON, "Output format: json or yaml")
	f.BoolVar(&flags.wait, "wait", false, "Wait for the analysis to finish")
	f.DurationVar(&flags.timeout, "timeout", 2*time.Minute, "Overall timeout")
	return cmd
}
