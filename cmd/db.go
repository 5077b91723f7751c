// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"scrapbook/cli/internal/connection"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	Aliases: []string{"database"},
	Short:   "List, create and delete databases",
}

var dbListCmd = &cobra.Command{
	Use:   "list <account>",
	Short: "List the databases of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 1)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		names, err := client.ListDatabases(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			pterm.Info.Printf("Account %s has no databases\n", t.Account)
			return nil
		}
		for _, n := range names {
			pterm.Println(n)
		}
		return nil
	},
}

// dbCreateCmd creates a database by creating its first collection, then connects to it.
var dbCreateCmd = &cobra.Command{
	Use:   "create <account>/<database> <collection>",
	Short: "Create a database with an initial collection and connect to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 2)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		if err := client.Database(t.Database).CreateCollection(ctx, args[1]); err != nil {
			return err
		}
		pterm.Success.Printf("Created database %s with collection %s\n", t, args[1])
		return connectTo(ctx, t)
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete <account>/<database>",
	Short: "Delete a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 2)
		if err != nil {
			return err
		}
		if err := confirm(fmt.Sprintf("Are you sure you want to delete database %q?", t.Database)); err != nil {
			return err
		}
		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		if err := client.Database(t.Database).Drop(ctx); err != nil {
			return err
		}
		state, err := current.stateWithoutRestore()
		if err != nil {
			return err
		}
		if dropped, err := state.DisconnectIf(ctx, connection.TargetsDatabase(t.Account, t.Database)); err != nil {
			return err
		} else if dropped {
			pterm.Info.Println("Disconnected from the deleted database")
		}
		pterm.Success.Printf("Deleted database %s\n", t)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbListCmd, dbCreateCmd, dbDeleteCmd)
	rootCmd.AddCommand(dbCmd)
}
