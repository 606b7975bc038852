// Package main provides the genie-db command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/genie-db/internal/store"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Configuration keys.
const (
	keyDBDriver        = "database.driver"
	keyDBDSN           = "database.dsn"
	keyVCF             = "import.vcf"
	keyCancerTypes     = "import.cancer_types"
	keyBatchSize       = "import.batch_size"
	keyInfoFlags       = "import.info_flags"
	keyLogLevel        = "log.level"
	configName         = ".genie-db"
	envPrefix          = "GENIE_DB"
	defaultBatchSize   = 10000
	defaultDatabaseDir = ".genie-db"
)

// usageError marks errors caused by bad command-line input.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var uerr usageError
		if errors.As(err, &uerr) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "genie-db",
		Short: "GENIE cancer cohort variant database",
		Long: `genie-db loads the GENIE VCF with per-cancer-type patient counts into a
SQL database and searches it by gene, region or variant.`,
		Example: `  # Reload the database from a VCF and the cancer types table
  genie-db import --vcf genie.vcf.gz --cancer-types cancer_types.csv

  # Search by gene or region
  genie-db search KRAS
  genie-db search 7:140753336

  # Patient counts per cancer type for one variant
  genie-db counts 42`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.genie-db.yaml)")
	pf.String("db-driver", store.DriverDuckDB, "database driver: duckdb or pgx")
	pf.String("db", "", "database file (duckdb) or connection URL (pgx)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	viper.BindPFlag(keyDBDriver, pf.Lookup("db-driver"))
	viper.BindPFlag(keyDBDSN, pf.Lookup("db"))
	viper.BindPFlag(keyLogLevel, pf.Lookup("log-level"))

	root.AddCommand(newImportCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newCountsCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// initConfig reads the config file and environment.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(keyBatchSize, defaultBatchSize)
	viper.SetDefault(keyInfoFlags, "ignore")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// newLogger builds a console logger on stderr at the configured level.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString(keyLogLevel))
	if err != nil {
		return nil, usageError{fmt.Errorf("invalid log level: %w", err)}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// databaseDSN returns the configured DSN, defaulting DuckDB to a file
// under the home directory.
func databaseDSN(driver string) (string, error) {
	dsn := viper.GetString(keyDBDSN)
	if dsn != "" || driver != store.DriverDuckDB {
		return dsn, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, defaultDatabaseDir, "genie.duckdb"), nil
}

// openStore opens the configured database.
func openStore(ctx context.Context, logger *zap.Logger) (*store.Store, error) {
	driver := viper.GetString(keyDBDriver)
	dsn, err := databaseDSN(driver)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening database", zap.String("driver", driver))
	return store.Open(ctx, driver, dsn, store.WithLogger(logger))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genie-db version %s (%s) built %s\n", version, commit, date)
		},
	}
}
