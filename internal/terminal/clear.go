// Package terminal provides utilities for terminal operations such as clearing a prompt
// after a secret was typed into it.
package terminal

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// Width returns the width of the terminal attached to stdout, or 80 when stdout is not
// a terminal.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

// IsInteractive reports whether stdin is a terminal, i.e. whether prompts can be answered.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Lines returns how many terminal lines textLength characters occupy at width,
// plus the empty line the cursor sits on after Enter.
func Lines(textLength, width int) int {
	if width <= 0 {
		width = defaultWidth
	}
	n := (textLength + width - 1) / width
	if n < 1 {
		n = 1
	}
	return n + 1
}

// Clear moves up over lines lines of w and erases each of them.
func Clear(w io.Writer, lines int) {
	for i := 0; i < lines; i++ {
		fmt.Fprint(w, "\r\x1b[2K")
		if i < lines-1 {
			fmt.Fprint(w, "\x1b[1A")
		}
	}
}

// ClearPreviousLines erases a prompt and the answer typed into it, e.g. a connection
// string with a password, from stdout.
func ClearPreviousLines(textLength int) {
	Clear(os.Stdout, Lines(textLength, Width()))
}
