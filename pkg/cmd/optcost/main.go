// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// optcost costs physical plans described in YAML and prints the cost
// settings in effect.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/optcost/pkg/util/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalConfig struct {
	verbosity int32
	devLogs   bool
	// settingsFile holds cost setting overrides in YAML.
	settingsFile string
	format       displayFormat

	logger  *zap.Logger
	restore []func()
}

func makeOptcostCommand() *cobra.Command {
	cfg := &globalConfig{format: displayTable}
	command := &cobra.Command{
		Use:   "optcost [command] (flags)",
		Short: "optcost costs physical query plans.",
		Long: `optcost builds the cost contexts of a physical plan described in YAML and
costs them bottom-up with the configured cost model.

Typical usage:
    optcost cost plan.yaml
        Print the cost of every expression of the plan.

    optcost cost plan.yaml --settings=calibrated.yaml
        Cost the plan with the cost setting overrides of calibrated.yaml.

    optcost props plan.yaml
        Print the required and derived physical properties of the plan.

    optcost settings --format=yaml > calibrated.yaml
        Write every cost setting, which can then be edited and passed back.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.setupLogging()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.teardownLogging()
		},
	}

	fs := command.PersistentFlags()
	fs.Int32VarP(&cfg.verbosity, "verbosity", "v", 0, "log verbosity; entries are only emitted above 0")
	fs.BoolVar(&cfg.devLogs, "dev-logs", false, "use the human readable development log encoder")
	fs.StringVar(&cfg.settingsFile, "settings", "", "YAML file of cost setting overrides")
	fs.Var(&cfg.format, "format", "output format: "+displayFormatNames)

	command.AddCommand(makeCostCommand(cfg))
	command.AddCommand(makePropsCommand(cfg))
	command.AddCommand(makeSettingsCommand(cfg))
	return command
}

// setupLogging installs a zap logger when logging was asked for. Without
// it, log entries are discarded.
func (cfg *globalConfig) setupLogging() error {
	if cfg.verbosity <= 0 {
		return nil
	}
	logger, err := log.NewZapLogger(cfg.devLogs)
	if err != nil {
		return err
	}
	cfg.logger = logger
	cfg.restore = append(cfg.restore, log.SetLogger(logger), log.SetVerbosity(cfg.verbosity))
	return nil
}

func (cfg *globalConfig) teardownLogging() error {
	for i := len(cfg.restore) - 1; i >= 0; i-- {
		cfg.restore[i]()
	}
	cfg.restore = nil
	if cfg.logger == nil {
		return nil
	}
	// Syncing stderr fails on some platforms; the entries are written
	// regardless.
	_ = cfg.logger.Sync()
	cfg.logger = nil
	return nil
}

func main() {
	ctx := logtags.AddTag(context.Background(), "optcost", nil)
	if err := makeOptcostCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
