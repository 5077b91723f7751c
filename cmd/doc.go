// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"strings"

	"scrapbook/cli/internal/docstore"
	"scrapbook/cli/internal/editor"
	apperrors "scrapbook/cli/internal/errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	docData   string
	docNoEdit bool
)

var docCmd = &cobra.Command{
	Use:     "doc",
	Aliases: []string{"document"},
	Short:   "Create, edit and delete documents",
}

// parseDocumentID reads an _id argument: a 24 digit hex string as an ObjectId,
// extended JSON such as {"$oid": "..."} or 42, or else a plain string.
func parseDocumentID(arg string) any {
	if id, err := docstore.ObjectIDFromHex(arg); err == nil {
		return id
	}
	if v, err := docstore.UnmarshalExtJSONValue([]byte(arg)); err == nil {
		return v
	}
	return arg
}

func documentEditor() *editor.DocumentEditor {
	return &editor.DocumentEditor{
		Launcher: editor.CommandLauncher{Command: editor.Command(current.cfg.Editor)},
		Logger:   current.logger,
	}
}

// docCreateCmd inserts a document and opens it in the editor.
var docCreateCmd = &cobra.Command{
	Use:   "create <account>/<database>/<collection>",
	Short: "Insert a document and open it for editing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 3)
		if err != nil {
			return err
		}
		doc := docstore.D{}
		if strings.TrimSpace(docData) != "" {
			if doc, err = docstore.UnmarshalExtJSON([]byte(docData)); err != nil {
				return fmt.Errorf("--data: %w", err)
			}
		}

		ctx := cmd.Context()
		client, d, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		coll := client.Database(t.Database).Collection(t.Collection)
		id, err := coll.InsertOne(ctx, doc)
		if err != nil {
			return err
		}
		label := editor.Label(d.Account, t.Database, t.Collection, id)
		pterm.Success.Printf("Created %s\n", label)
		if docNoEdit {
			return nil
		}

		stored, err := coll.FindOne(ctx, docstore.D{{Key: "_id", Value: id}}, docstore.FindOptions{})
		if err != nil {
			return err
		}
		if stored == nil {
			return apperrors.New(apperrors.NotFound, label+" disappeared before it could be opened")
		}
		saved, err := documentEditor().Open(ctx, coll, label, stored)
		if err != nil {
			return err
		}
		if saved {
			pterm.Success.Printf("Saved %s\n", label)
		}
		return nil
	},
}

var docEditCmd = &cobra.Command{
	Use:   "edit <account>/<database>/<collection> <id>",
	Short: "Edit a document in your editor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 3)
		if err != nil {
			return err
		}
		id := parseDocumentID(args[1])

		ctx := cmd.Context()
		client, d, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		coll := client.Database(t.Database).Collection(t.Collection)
		label := editor.Label(d.Account, t.Database, t.Collection, id)
		doc, err := coll.FindOne(ctx, docstore.D{{Key: "_id", Value: id}}, docstore.FindOptions{})
		if err != nil {
			return err
		}
		if doc == nil {
			return apperrors.New(apperrors.NotFound, label+" does not exist")
		}
		saved, err := documentEditor().Open(ctx, coll, label, doc)
		if err != nil {
			return err
		}
		if saved {
			pterm.Success.Printf("Saved %s\n", label)
		} else {
			pterm.Info.Println("No changes")
		}
		return nil
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <account>/<database>/<collection> <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTarget(args[0], 3)
		if err != nil {
			return err
		}
		id := parseDocumentID(args[1])
		label := editor.Label(t.Account, t.Database, t.Collection, id)
		if err := confirm(fmt.Sprintf("Are you sure you want to delete document %q?", label)); err != nil {
			return err
		}

		ctx := cmd.Context()
		client, _, err := current.open(ctx, t)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		n, err := client.Database(t.Database).Collection(t.Collection).DeleteOne(ctx, docstore.D{{Key: "_id", Value: id}})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.New(apperrors.NotFound, label+" does not exist")
		}
		pterm.Success.Printf("Deleted %s\n", label)
		return nil
	},
}

func init() {
	docCreateCmd.Flags().StringVar(&docData, "data", "", "Document to insert as extended JSON (default {})")
	docCreateCmd.Flags().BoolVar(&docNoEdit, "no-edit", false, "Do not open the new document in the editor")

	docCmd.AddCommand(docCreateCmd, docEditCmd, docDeleteCmd)
	rootCmd.AddCommand(docCmd)
}
