package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/genie-db/internal/output"
	"github.com/inodb/genie-db/internal/search"
)

func newSearchCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search variants by gene symbol or region",
		Long: `Search variants by gene symbol (e.g. NF1), region (e.g. 17:31226000-31227000)
or position (e.g. 7:140753336). Terms starting with a known chromosome and a
colon are regions; anything else is a gene symbol.`,
		Example: `  genie-db search KRAS
  genie-db search 17:31226000-31227000
  genie-db search --key gene X:1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.TrimSpace(args[0])
			k := search.ParseTerm(term)
			switch key {
			case "":
			case string(search.KeyGene), string(search.KeyRegion):
				k = search.Key(key)
			default:
				return usageError{fmt.Errorf("unknown search key %q (want gene or region)", key)}
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			s, err := openStore(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := search.NewService(s).Variants(cmd.Context(), k, term)
			if err != nil {
				return err
			}

			w := output.NewTabWriter(cmd.OutOrStdout())
			if err := w.WriteHeader(); err != nil {
				return err
			}
			for _, r := range rows {
				if err := w.Write(r); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "force the search type: gene or region")

	return cmd
}

func newCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts <variant-id>",
		Short: "Show per-cancer-type patient counts of a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageError{fmt.Errorf("invalid variant id %q", args[0])}
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			s, err := openStore(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer s.Close()

			counts, err := search.NewService(s).CancerCounts(cmd.Context(), id)
			if err != nil {
				return err
			}

			w := output.NewCountsWriter(cmd.OutOrStdout())
			if err := w.WriteHeader(); err != nil {
				return err
			}
			for _, c := range counts {
				if err := w.Write(c); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
}
