// Package commands provides the tagmirror CLI commands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/tagmirror/config"
)

// app carries the state shared by all subcommands: the merged config and
// the root logger, both resolved in the persistent pre-run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the tagmirror command tree.
func NewRootCommand(version string) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	a := &app{}

	cmd := &cobra.Command{
		Use:   "tagmirror",
		Short: "Replicate tag-management entities between workspaces",
		Long: `Tagmirror replicates tags, triggers, variables, and custom templates
from a source workspace into a target workspace, in dependency order,
with id remapping and optional naming-convention adoption.

Workspaces are read from exported snapshot JSON files, so a replication
can be planned and rehearsed entirely offline.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newReplicateCommand(a))
	cmd.AddCommand(newPlanCommand(a))
	cmd.AddCommand(newValidateCommand(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tagmirror version %s\n", version)
		},
	})

	return cmd
}

// setup loads the layered config and installs the root logger. A log-level
// flag overrides the config's level.
func (a *app) setup(configPath, logLevel string) error {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.NewLoader(bootstrap).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
