// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "scrapbook/cli/internal/errors"
	"scrapbook/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startSpinner shows an inline spinner on stderr while a network call runs. It is a
// no-op when stderr is not a terminal. The returned function stops and erases it.
func startSpinner(text string) func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) || verbose {
		return func() {}
	}
	return startInlineSpinner(os.Stderr, text, spinnerFrames, 100*time.Millisecond)
}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal until the returned function is called.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cursor.Hide()
		defer cursor.Show()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// confirm asks a yes/no question. A declined or unanswerable prompt yields
// a UserCancelled error, which the CLI does not report.
func confirm(question string) error {
	if assumeYes {
		return nil
	}
	if !terminal.IsInteractive() {
		pterm.Warning.Println("Confirmation required; rerun with --yes")
		return apperrors.Cancelled()
	}
	ok, err := pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(question)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Cancelled()
	}
	return nil
}

// promptSecret reads one line from stdin and erases the prompt and answer from the
// terminal afterwards.
func promptSecret(promptText string) (string, error) {
	fmt.Print(promptText)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if terminal.IsInteractive() {
		terminal.ClearPreviousLines(len(promptText) + len(answer))
	}
	if err != nil && answer == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return answer, nil
}

// outputLine writes a message to the output channel: timestamped plain lines, like
// an editor's output pane.
func outputLine(format string, args ...any) {
	pterm.Printf("%s %s\n", pterm.Gray(time.Now().Format("15:04:05")), fmt.Sprintf(format, args...))
}
