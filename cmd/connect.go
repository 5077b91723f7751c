// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"time"

	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// connectCmd selects the database (and optionally collection) scrapbooks run against.
var connectCmd = &cobra.Command{
	Use:   "connect <account>/<database>[/<collection>]",
	Short: "Connect scrapbooks to a database",
	Long: `The connect command verifies that the database is reachable and remembers it as the
target of scrapbook commands. Connecting to another database replaces the previous
connection. The target is restored automatically by later commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 2)
		if err != nil {
			if t, err = parseTarget(args[0], 3); err != nil {
				return err
			}
		}
		return connectTo(cmd.Context(), t)
	},
}

func connectTo(ctx context.Context, t target) error {
	r, err := current.resolver()
	if err != nil {
		return err
	}
	d, err := r.Descriptor(t.Account, t.Database, t.Collection)
	if err != nil {
		return err
	}
	state, err := current.stateWithoutRestore()
	if err != nil {
		return err
	}

	stop := startSpinner("connecting to " + d.ID())
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	err = state.Connect(ctx, d)
	stop()
	if err != nil {
		return err
	}
	pterm.Success.Printf("Connected to %s\n", d.ID())
	return nil
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the connected database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := current.stateWithoutRestore()
		if err != nil {
			return err
		}
		id := state.Persisted()
		if err := state.Disconnect(cmd.Context()); err != nil {
			return err
		}
		if id == "" {
			pterm.Info.Println("Not connected")
			return nil
		}
		pterm.Success.Printf("Disconnected from %s\n", id)
		return nil
	},
}

// statusCmd shows the connected target with the password of its connection string masked.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connected database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := current.stateWithoutRestore()
		if err != nil {
			return err
		}
		id := state.Persisted()
		if id == "" {
			pterm.Warning.Println("Not connected")
			pterm.Println("   Run 'scrapbook connect <account>/<database>' to pick a database.")
			return nil
		}

		r, err := current.resolver()
		if err != nil {
			return err
		}
		d, err := r.Resolve(cmd.Context(), id)
		if err != nil {
			pterm.Warning.Printf("Remembered target %s no longer resolves: %s\n", id, logging.Mask(err.Error()))
			return nil
		}
		printTargetBox(d)
		return nil
	},
}

func printTargetBox(d connection.Descriptor) {
	collection := d.Collection
	if collection == "" {
		collection = pterm.Gray("(none)")
	}
	body := pterm.Sprintf("Account:     %s\nKind:        %s\nDatabase:    %s\nCollection:  %s\nConnection:  %s",
		d.Account, d.Kind, d.Database, collection, logging.Mask(d.DSN))
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Connected Database")).
		WithPadding(1).
		Println(body)
}

func init() {
	rootCmd.AddCommand(connectCmd, disconnectCmd, statusCmd)
}
