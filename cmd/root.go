// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface of scrapbook.
// It implements subcommands for registering database accounts, browsing and editing
// their databases, collections and documents, and running scrapbook files against the
// connected database using the Cobra CLI framework.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"scrapbook/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	verbose     bool
	configPath  string
	assumeYes   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scrapbook",
	Short: "Browse document databases and run scrapbook files",
	Long: `Scrapbook lets you register MongoDB-compatible and PostgreSQL (JSONB) accounts,
browse and edit their databases, collections and documents, and write scrapbook files
(*.mongo) of shell-style commands that are checked as you edit and run against the
connected database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initApp(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion()
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. Declined confirmations exit quietly with status 0.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, nil)
	stop()
	if err == nil {
		return
	}
	if !logging.ReportError("", err) {
		return
	}
	os.Exit(1)
}

// run executes the command line and releases the app afterwards. Cobra skips
// PersistentPostRun when a command fails, so the cleanup lives here.
func run(ctx context.Context, args []string) error {
	if args != nil {
		rootCmd.SetArgs(args)
	}
	defer func() {
		if current != nil {
			current.close(context.WithoutCancel(ctx))
			current = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default $XDG_CONFIG_HOME/scrapbook/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")
}
