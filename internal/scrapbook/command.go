// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scrapbook

import "fmt"

// ParseError is a syntax error localized to one command unit.
type ParseError struct {
	Range   Range
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Range.Start, e.Message)
}

// Call is one method call of a command: the operation itself or a chained cursor call.
type Call struct {
	Name      string
	Args      []any
	NameRange Range
	Range     Range
}

// Command is one executable unit of a scrapbook, e.g. `db.users.find({age: 3}).limit(2)`.
// OnCollection is false for database-level operations such as `db.getCollectionNames()`.
type Command struct {
	Range        Range
	Text         string
	Collection   string
	OnCollection bool
	Call         Call
	Chain        []Call
	Err          *ParseError
}

// Operation returns the name of the primary call.
func (c Command) Operation() string { return c.Call.Name }

// Args returns the arguments of the primary call.
func (c Command) Args() []any { return c.Call.Args }

// IsDatabaseCommand reports whether the command targets the database rather than a collection.
func (c Command) IsDatabaseCommand() bool { return !c.OnCollection }

// At returns the command whose range covers line, or the first command starting after it.
// ok is false when no command is at or after line.
func At(cmds []Command, line int) (Command, bool) {
	for _, c := range cmds {
		if c.Range.Contains(line) || c.Range.Start.Line > line {
			return c, true
		}
	}
	return Command{}, false
}
