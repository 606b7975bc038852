package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/genie-db/internal/importer"
	"github.com/inodb/genie-db/internal/vcf"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Reload the database from the GENIE VCF",
		Long: `Replace all cancer types, variants and patient counts with the contents of
the cancer types CSV and the GENIE VCF. Each run starts from empty tables.`,
		Example: `  genie-db import --vcf genie.vcf.gz --cancer-types cancer_types.csv
  genie-db import --batch-size 50000 --info-flags reject`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd)
		},
	}

	f := cmd.Flags()
	f.String("vcf", "", "GENIE VCF file (.vcf or .vcf.gz)")
	f.String("cancer-types", "", "cancer types reference CSV")
	f.Int("batch-size", defaultBatchSize, "variants written per transaction")
	f.String("info-flags", "ignore", "INFO entries without a value: ignore or reject")
	viper.BindPFlag(keyVCF, f.Lookup("vcf"))
	viper.BindPFlag(keyCancerTypes, f.Lookup("cancer-types"))
	viper.BindPFlag(keyBatchSize, f.Lookup("batch-size"))
	viper.BindPFlag(keyInfoFlags, f.Lookup("info-flags"))

	return cmd
}

func runImport(cmd *cobra.Command) error {
	flags, err := vcf.ParseFlagPolicy(viper.GetString(keyInfoFlags))
	if err != nil {
		return usageError{err}
	}
	batchSize := viper.GetInt(keyBatchSize)
	if batchSize < 1 {
		return usageError{fmt.Errorf("batch size must be positive, got %d", batchSize)}
	}

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

	im := importer.New(s, importer.Config{
		VCFPath:         viper.GetString(keyVCF),
		CancerTypesPath: viper.GetString(keyCancerTypes),
		BatchSize:       batchSize,
		Flags:           flags,
	})
	im.SetLogger(logger)

	out := cmd.OutOrStdout()
	im.Progress = func(total int) {
		fmt.Fprintf(out, "Processed %d variants\n", total)
	}

	summary, err := im.Run(ctx)
	if err != nil {
		return fmt.Errorf("import aborted, fix the problem and re-run: %w", err)
	}

	fmt.Fprintf(out, "Imported %d variants, %d patient counts and %d cancer types in %s\n",
		summary.Variants, summary.PatientCounts, summary.CancerTypes, summary.Duration.Round(time.Millisecond))
	logger.Debug("import summary", zap.String("run_id", summary.RunID), zap.Int("batches", summary.Batches))
	return nil
}
