// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"scrapbook/cli/internal/connection"
	"scrapbook/cli/internal/docstore"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	openLimit int64
	openSkip  int64
)

var collectionCmd = &cobra.Command{
	Use:     "collection",
	Aliases: []string{"coll"},
	Short:   "List, create, delete and open collections",
}

var collectionListCmd = &cobra.Command{
	Use:   "list <account>/<database>",
	Short: "List the collections of a database",
	Args:  cobra.ExactArgs(1),
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

		names, err := client.Database(t.Database).ListCollections(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			pterm.Info.Printf("Database %s has no collections\n", t)
			return nil
		}
		for _, n := range names {
			pterm.Println(n)
		}
		return nil
	},
}

// collectionCreateCmd creates a collection and reconnects to its database.
var collectionCreateCmd = &cobra.Command{
	Use:   "create <account>/<database> <collection>",
	Short: "Create a collection",
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
		pterm.Success.Printf("Created collection %s/%s\n", t, args[1])
		return connectTo(ctx, t)
	},
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <account>/<database>/<collection>",
	Short: "Delete a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 3)
		if err != nil {
			return err
		}
		if err := confirm(fmt.Sprintf("Are you sure you want to delete collection %q?", t.Collection)); err != nil {
			return err
		}
		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		if err := client.Database(t.Database).Collection(t.Collection).Drop(ctx); err != nil {
			return err
		}
		state, err := current.stateWithoutRestore()
		if err != nil {
			return err
		}
		if _, err := state.DisconnectIf(ctx, connection.TargetsCollection(t.Account, t.Database, t.Collection)); err != nil {
			return err
		}
		pterm.Success.Printf("Deleted collection %s\n", t)
		return nil
	},
}

// collectionOpenCmd prints the documents of a collection as extended JSON.
var collectionOpenCmd = &cobra.Command{
	Use:   "open <account>/<database>/<collection>",
	Short: "Print the documents of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 3)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		docs, err := client.Database(t.Database).Collection(t.Collection).Find(ctx, docstore.D{}, docstore.FindOptions{Limit: openLimit, Skip: openSkip})
		if err != nil {
			return err
		}
		out, err := docstore.MarshalExtJSON(docs, true)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	collectionOpenCmd.Flags().Int64Var(&openLimit, "limit", 50, "Maximum number of documents to print (0 for all)")
	collectionOpenCmd.Flags().Int64Var(&openSkip, "skip", 0, "Number of documents to skip")

	collectionCmd.AddCommand(collectionListCmd, collectionCreateCmd, collectionDeleteCmd, collectionOpenCmd)
	rootCmd.AddCommand(collectionCmd)
}
