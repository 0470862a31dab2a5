package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps config keys onto the persistent flags overriding them
var flagBindings = map[string]string{
	"app.store":        "store",
	"app.data_dir":     "data-dir",
	"app.postgres_url": "postgres-url",
	"log_level":        "log-level",
}

func main() {
	rootCmd, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, error) {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "medtrace",
		Short: "Pharmaceutical batch traceability on a local ledger",
		Long: `medtrace creates pharmaceutical batches, transfers their custody and
verifies their provenance by submitting transactions to a local ledger that
runs the batch traceability program.

Keys are stored as base58 files under <data-dir>/keys and may be referenced
by name wherever an address is expected.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "config.yaml", "configuration file path")
	flags.String("store", storeLevelDB, "account store: leveldb, memory or postgres")
	flags.String("data-dir", ".medtrace", "directory holding keys and the leveldb ledger")
	flags.String("postgres-url", "", "postgres connection string, used with --store=postgres")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	if err := bindFlags(flags, flagBindings); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(
		newKeygenCmd(&configPath),
		newAirdropCmd(&configPath),
		newBalanceCmd(&configPath),
		newCreateCmd(&configPath),
		newTransferCmd(&configPath),
		newDeactivateCmd(&configPath),
		newVerifyCmd(&configPath),
		newShowCmd(&configPath),
		newListCmd(&configPath),
	)
	return rootCmd, nil
}

func bindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return errors.Errorf("cannot bind %s: no flag named %s", key, name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "cannot bind %s", key)
		}
	}
	return nil
}
