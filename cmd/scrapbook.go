// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scrapbook/cli/internal/diagnostics"
	"scrapbook/cli/internal/docstore"
	"scrapbook/cli/internal/editor"
	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/evaluator"
	"scrapbook/cli/internal/logging"
	"scrapbook/cli/internal/scrapbook"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	execLine int
	execAll  bool
	execText string
	execEdit bool
	newDir   string
)

// newCmd creates an empty scrapbook file with the first unused Scrapbook-N name.
var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new scrapbook file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := nextScrapbookPath(newDir, current.cfg.Scrapbook.Extension)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return err
		}
		pterm.Success.Printf("Created %s\n", path)
		return nil
	},
}

func nextScrapbookPath(dir, ext string) (string, error) {
	for n := 1; n < 10000; n++ {
		path := filepath.Join(dir, fmt.Sprintf("Scrapbook-%d%s", n, ext))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free scrapbook name in %s", dir)
}

// execCmd runs scrapbook commands against the connected database.
var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Run scrapbook commands",
	Long: `The exec command parses a scrapbook and runs one command against the connected
database: the command at --line (the first one when --line is not given). With --all,
every command runs in order; a failing command does not stop the ones after it.

Commands are read from the file or, with --text, from the flag value.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := scrapbookText(args)
		if err != nil {
			return err
		}
		cmds, _ := scrapbook.Parse(text)
		if len(cmds) == 0 {
			pterm.Info.Println("Nothing to run")
			return nil
		}

		ctx := cmd.Context()
		state, err := current.connection(ctx)
		if err != nil {
			return err
		}
		ev := evaluator.New(state, current.logger)

		if execAll {
			if execEdit {
				return errors.New("--edit runs a single findOne command; it cannot be combined with --all")
			}
			stop := startSpinner(fmt.Sprintf("running %d commands", len(cmds)))
			results := ev.EvaluateAll(ctx, cmds)
			stop()

			failed := 0
			for _, res := range results {
				if !printResult(res, true) {
					failed++
				}
			}
			if failed > 0 {
				return apperrors.New(apperrors.EvaluationError, fmt.Sprintf("%d of %d commands failed", failed, len(results)))
			}
			return nil
		}

		selected, err := evaluator.Select(cmds, execLine)
		if err != nil {
			return err
		}
		stop := startSpinner("running " + selected.Operation())
		res := ev.Evaluate(ctx, selected)
		stop()
		if res.Err != nil {
			return res.Err
		}
		if execEdit {
			return editResult(cmd, state.Current().Descriptor.Account, res)
		}
		printResult(res, false)
		return nil
	},
}

func scrapbookText(args []string) (string, error) {
	if execText != "" {
		if len(args) > 0 {
			return "", errors.New("use either a file or --text, not both")
		}
		return execText, nil
	}
	if len(args) == 0 {
		return "", errors.New("a scrapbook file or --text is required")
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// printResult prints one result and reports whether it succeeded.
func printResult(res evaluator.Result, header bool) bool {
	context := ""
	if header {
		context = fmt.Sprintf("line %d", res.Command.Range.Start.Line)
		pterm.DefaultSection.WithLevel(2).Printf("line %d: %s", res.Command.Range.Start.Line, firstLine(res.Command.Text))
	}
	if res.Err != nil {
		logging.ReportError(context, res.Err)
		return false
	}
	out, err := evaluator.Render(res.Value)
	if err != nil {
		logging.ReportError(context, err)
		return false
	}
	fmt.Println(out)
	return true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// editResult opens a findOne result in the document editor and saves it back.
func editResult(cmd *cobra.Command, account string, res evaluator.Result) error {
	if res.Command.Operation() != "findOne" || res.Command.IsDatabaseCommand() {
		return errors.New("--edit needs a findOne command")
	}
	if res.Value == nil {
		pterm.Info.Println("No document matched")
		return nil
	}
	doc, ok := res.Value.(docstore.D)
	if !ok {
		return fmt.Errorf("findOne returned %T, not a document", res.Value)
	}
	session := current.state.Current()
	coll := session.Database().Collection(res.Command.Collection)
	id, _ := doc.Get("_id")
	label := editor.Label(account, session.Descriptor.Database, res.Command.Collection, id)

	saved, err := documentEditor().Open(cmd.Context(), coll, label, doc)
	if err != nil {
		return err
	}
	if saved {
		pterm.Success.Printf("Saved %s\n", label)
	} else {
		pterm.Info.Println("No changes")
	}
	return nil
}

// checkCmd prints the diagnostics of one scrapbook.
var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Report syntax errors and unknown operations in a scrapbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		diags := diagnostics.Compute(string(b))
		printDiagnostics(args[0], diags)

		errorsFound := 0
		for _, d := range diags {
			if d.Severity == diagnostics.SeverityError {
				errorsFound++
			}
		}
		if errorsFound > 0 {
			return apperrors.New(apperrors.ParseError, fmt.Sprintf("%s has %d syntax error(s)", args[0], errorsFound))
		}
		return nil
	},
}

func printDiagnostics(path string, diags []diagnostics.Diagnostic) {
	if len(diags) == 0 {
		pterm.Success.Printf("%s: no problems\n", path)
		return
	}
	for _, d := range diags {
		loc := fmt.Sprintf("%s:%d:%d", path, d.Range.Start.Line, d.Range.Start.Column)
		switch d.Severity {
		case diagnostics.SeverityError:
			pterm.Error.Printf("%s: %s\n", loc, d.Message)
		default:
			pterm.Warning.Printf("%s: %s\n", loc, d.Message)
		}
	}
}

// watchCmd keeps diagnostics of every scrapbook in a directory up to date until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Check scrapbooks in a directory whenever they change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		ctx := cmd.Context()
		sc := current.cfg.Scrapbook

		published := diagnostics.NewCollection(diagnostics.PublisherFunc(func(id string, diags []diagnostics.Diagnostic) {
			printDiagnostics(id, diags)
		}))
		tracker := diagnostics.NewTracker(sc.Language, published, current.logger)
		w, err := diagnostics.NewWatcher(dir, sc.Extension, sc.Language, tracker.Handle, current.logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		pterm.Info.Printf("Watching %s for *%s changes, press Ctrl+C to stop\n", dir, sc.Extension)
		<-ctx.Done()
		current.logger.Debug("watch stopped", zap.Strings("documents", published.IDs()))
		return nil
	},
}

func init() {
	newCmd.Flags().StringVar(&newDir, "dir", ".", "Directory to create the scrapbook in")
	execCmd.Flags().IntVarP(&execLine, "line", "l", 0, "Run the command at this line (1-based)")
	execCmd.Flags().BoolVarP(&execAll, "all", "a", false, "Run every command in order")
	execCmd.Flags().StringVarP(&execText, "text", "t", "", "Run the given command text instead of a file")
	execCmd.Flags().BoolVarP(&execEdit, "edit", "e", false, "Open the findOne result in the editor and save changes")

	rootCmd.AddCommand(newCmd, execCmd, checkCmd, watchCmd)
}
