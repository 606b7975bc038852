package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/inodb/genie-db/internal/store"
	"github.com/inodb/genie-db/internal/vcf"
)

// configKeys lists the settable keys with a parser for each value.
var configKeys = map[string]func(string) (any, error){
	keyDBDriver: func(s string) (any, error) {
		if s != store.DriverDuckDB && s != store.DriverPostgres {
			return nil, fmt.Errorf("want %s or %s", store.DriverDuckDB, store.DriverPostgres)
		}
		return s, nil
	},
	keyDBDSN:       func(s string) (any, error) { return s, nil },
	keyVCF:         func(s string) (any, error) { return s, nil },
	keyCancerTypes: func(s string) (any, error) { return s, nil },
	keyBatchSize: func(s string) (any, error) {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("want a positive integer")
		}
		return n, nil
	},
	keyInfoFlags: func(s string) (any, error) {
		p, err := vcf.ParseFlagPolicy(s)
		if err != nil {
			return nil, err
		}
		return p.String(), nil
	},
	keyLogLevel: func(s string) (any, error) {
		if _, err := zapcore.ParseLevel(s); err != nil {
			return nil, err
		}
		return s, nil
	},
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage genie-db configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.genie-db.yaml.",
		Example: `  genie-db config                                    # show all config
  genie-db config set database.driver pgx            # use PostgreSQL
  genie-db config set import.vcf /data/genie.vcf.gz  # default VCF for import
  genie-db config get import.batch_size              # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(w io.Writer) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(w, "# No configuration set. Config file: ~/.genie-db.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(w, string(out))
	return nil
}

func knownKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runConfigSet(w io.Writer, key, value string) error {
	parse, ok := configKeys[key]
	if !ok {
		return usageError{fmt.Errorf("unknown config key %q (known keys: %v)", key, knownKeys())}
	}
	v, err := parse(value)
	if err != nil {
		return usageError{fmt.Errorf("invalid value %q for %s: %w", value, key, err)}
	}
	viper.Set(key, v)

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, configName+".yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %v in %s\n", key, v, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(w, val)
	return nil
}
