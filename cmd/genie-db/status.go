package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show table sizes and the last import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			s, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			counts, err := s.Counts(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Driver:         %s\n", s.Driver())
			fmt.Fprintf(out, "Cancer types:   %d\n", counts.CancerTypes)
			fmt.Fprintf(out, "Variants:       %d\n", counts.Variants)
			fmt.Fprintf(out, "Patient counts: %d\n", counts.PatientCounts)

			run, ok, err := s.LastImportRun(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Last import:    none")
				return nil
			}
			fmt.Fprintf(out, "Last import:    %s (%s, took %s)\n",
				run.FinishedAt.Local().Format("2006-01-02 15:04:05"), run.RunID, run.Duration().Round(time.Millisecond))
			fmt.Fprintf(out, "  VCF:          %s (%d bytes, modified %s)\n",
				run.VCF.Path, run.VCF.Size, run.VCF.ModTime.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  Cancer types: %s\n", run.CancerTypesPath)
			return nil
		},
	}
}
