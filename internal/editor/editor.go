// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package editor opens documents in the user's text editor as extended JSON and saves
// them back when they changed.
package editor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"scrapbook/cli/internal/docstore"
	apperrors "scrapbook/cli/internal/errors"

	"go.uber.org/zap"
)

// Launcher opens path in an editor and returns once the user is done with it.
type Launcher interface {
	Edit(ctx context.Context, path string) error
}

// CommandLauncher runs an editor command such as "vi" or "code --wait" attached to the
// terminal.
type CommandLauncher struct {
	Command string
}

// Edit runs the command with path appended.
func (l CommandLauncher) Edit(ctx context.Context, path string) error {
	fields := strings.Fields(l.Command)
	if len(fields) == 0 {
		return fmt.Errorf("no editor configured")
	}
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %q: %w", l.Command, err)
	}
	return nil
}

// Command picks the editor: the configured one, then $VISUAL, then $EDITOR, then vi.
func Command(configured string) string {
	for _, c := range []string{configured, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "vi"
}

// Label identifies an edited document as account/database/collection/id.
func Label(account, database, collection string, id any) string {
	return strings.Join([]string{account, database, collection, docstore.IDString(id)}, "/")
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Edit writes doc to a temporary file, opens it with l and parses the result.
// changed is false when the user saved the text unchanged or not at all.
func Edit(ctx context.Context, l Launcher, label string, doc docstore.D) (docstore.D, bool, error) {
	before, err := docstore.MarshalExtJSON(doc, true)
	if err != nil {
		return nil, false, fmt.Errorf("serialize %s: %w", label, err)
	}

	dir, err := os.MkdirTemp("", "scrapbook-doc-")
	if err != nil {
		return nil, false, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, unsafeChars.ReplaceAllString(label, "_")+".json")
	if err := os.WriteFile(path, append(before, '\n'), 0o600); err != nil {
		return nil, false, err
	}
	if err := l.Edit(ctx, path); err != nil {
		return nil, false, err
	}

	after, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if bytes.Equal(bytes.TrimSpace(after), bytes.TrimSpace(before)) {
		return doc, false, nil
	}
	if len(bytes.TrimSpace(after)) == 0 {
		return nil, false, apperrors.Cancelled()
	}
	edited, err := docstore.UnmarshalExtJSON(after)
	if err != nil {
		return nil, false, fmt.Errorf("parse edited %s: %w", label, err)
	}
	normalized, err := docstore.MarshalExtJSON(edited, true)
	if err != nil {
		return nil, false, err
	}
	return edited, !bytes.Equal(normalized, before), nil
}

// DocumentEditor edits stored documents.
type DocumentEditor struct {
	Launcher Launcher
	Logger   *zap.Logger
}

// Open edits doc and replaces the stored document by _id when it changed.
// It reports whether anything was saved. The _id field cannot be edited.
func (e *DocumentEditor) Open(ctx context.Context, coll docstore.Collection, label string, doc docstore.D) (bool, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id, ok := doc.Get("_id")
	if !ok {
		return false, fmt.Errorf("%s has no _id", label)
	}

	edited, changed, err := Edit(ctx, e.Launcher, label, doc)
	if err != nil || !changed {
		return false, err
	}

	if newID, ok := edited.Get("_id"); ok && docstore.IDString(newID) != docstore.IDString(id) {
		return false, fmt.Errorf("%s: _id cannot be changed", label)
	}

	res, err := coll.ReplaceOne(ctx, docstore.D{{Key: "_id", Value: id}}, edited.Delete("_id"), false)
	if err != nil {
		return false, fmt.Errorf("save %s: %w", label, err)
	}
	if res.MatchedCount == 0 {
		return false, apperrors.New(apperrors.NotFound, fmt.Sprintf("%s no longer exists", label))
	}
	logger.Debug("document saved", zap.String("document", label), zap.Int64("modified", res.ModifiedCount))
	return true, nil
}
