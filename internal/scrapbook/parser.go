// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package scrapbook parses scrapbook buffers: text holding mongo-shell style commands
// such as
//
//	db.users.insertOne({name: "ada", born: ISODate("1815-12-10T00:00:00Z")})
//	db.users.find({name: /* any */ "ada"}).sort({born: -1}).limit(5)
//
// Parse is pure. A buffer is split into command units at ';' or at a line that starts
// with "db."; a malformed unit carries its own error and never stops the rest of the
// buffer from parsing.
package scrapbook

import (
	"fmt"
)

// Parse splits text into command units in source order. The second result lists
// the parse errors of the units that have one, in the same order.
func Parse(text string) ([]Command, []ParseError) {
	tokens := tokenize(text)

	var (
		cmds []Command
		errs []ParseError
	)
	for _, unit := range splitUnits(tokens) {
		cmd := parseUnit(text, unit)
		if cmd.Err != nil {
			errs = append(errs, *cmd.Err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, errs
}

// splitUnits groups tokens into units. A unit ends at a ';' outside brackets, or just
// before a "db" word that starts a line and is followed by '.'. Semicolons are dropped.
func splitUnits(tokens []Token) [][]Token {
	var (
		units   [][]Token
		current []Token
		depth   int
	)
	flush := func() {
		if len(current) > 0 {
			units = append(units, current)
		}
		current = nil
		depth = 0
	}

	for i, tok := range tokens {
		if isUnitStart(tokens, i) {
			flush()
		}
		switch tok.Type {
		case SEMICOLON:
			if depth == 0 {
				flush()
				continue
			}
		case OPENED_PARENS, OPENED_BRACE, OPENED_BRACKET:
			depth++
		case CLOSED_PARENS, CLOSED_BRACE, CLOSED_BRACKET:
			if depth > 0 {
				depth--
			}
		}
		current = append(current, tok)
	}
	flush()
	return units
}

func isUnitStart(tokens []Token, i int) bool {
	tok := tokens[i]
	return tok.LineStart && tok.Type == WORD && tok.Value == "db" &&
		i+1 < len(tokens) && tokens[i+1].Type == DOT
}

// parser is a recursive descent parser over the tokens of one unit.
type parser struct {
	tokens []Token
	pos    int
	end    Position
}

// abort carries a ParseError out of the recursive descent.
type abort struct{ err *ParseError }

func (p *parser) fail(r Range, format string, args ...any) {
	panic(abort{&ParseError{Range: r, Message: fmt.Sprintf(format, args...)}})
}

func (p *parser) peek() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Type: EOF, Start: p.end, End: p.end}
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Type == ILLEGAL {
		p.fail(tok.Range(), "%v", tok.Err)
	}
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt TokenType, what string) Token {
	tok := p.peek()
	if tok.Type != tt {
		p.unexpected(tok, what)
	}
	return p.next()
}

func (p *parser) unexpected(tok Token, want string) {
	if tok.Type == ILLEGAL {
		p.fail(tok.Range(), "%v", tok.Err)
	}
	if tok.Type == EOF {
		p.fail(tok.Range(), "expected %s but the command ended", want)
	}
	p.fail(tok.Range(), "expected %s, found %s", want, tok.describe())
}

func parseUnit(text string, tokens []Token) (cmd Command) {
	first, last := tokens[0], tokens[len(tokens)-1]
	cmd.Range = Range{Start: first.Start, End: last.End}
	cmd.Text = text[first.Start.Offset:last.End.Offset]

	p := &parser{tokens: tokens, end: last.End}
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			cmd.Err = a.err
		}
	}()
	p.command(&cmd)
	return cmd
}

// command := "db" "." ( name call | collection "." name call | "getCollection" "(" string ")" "." name call ) chain
func (p *parser) command(cmd *Command) {
	db := p.peek()
	if db.Type != WORD || db.Value != "db" {
		p.unexpected(db, "'db'")
	}
	p.next()
	p.expect(DOT, "'.'")

	name := p.expect(WORD, "a collection or database operation")
	switch {
	case name.Value == "getCollection" && p.peek().Type == OPENED_PARENS:
		p.next()
		coll := p.expect(STRING, "a collection name string")
		if coll.Value == "" {
			p.fail(coll.Range(), "collection name must not be empty")
		}
		p.expect(CLOSED_PARENS, "')'")
		cmd.Collection = coll.Value
		cmd.OnCollection = true
		p.expect(DOT, "'.'")
		cmd.Call = p.call(p.expect(WORD, "an operation name"))
	case p.peek().Type == OPENED_PARENS:
		cmd.Call = p.call(name)
	default:
		// collection names may contain dots: db.system.users.find()
		collection := name.Value
		for {
			p.expect(DOT, "'.'")
			part := p.expect(WORD, "an operation name")
			if p.peek().Type == OPENED_PARENS {
				cmd.Collection = collection
				cmd.OnCollection = true
				cmd.Call = p.call(part)
				break
			}
			collection += "." + part.Value
		}
	}

	for p.peek().Type == DOT {
		p.next()
		cmd.Chain = append(cmd.Chain, p.call(p.expect(WORD, "a cursor method")))
	}
	if tok := p.peek(); tok.Type != EOF {
		p.unexpected(tok, "end of command")
	}
}

// call := "(" [ value { "," value } [","] ] ")"
func (p *parser) call(name Token) Call {
	c := Call{Name: name.Value, NameRange: name.Range(), Args: []any{}}
	p.expect(OPENED_PARENS, "'('")
	for p.peek().Type != CLOSED_PARENS {
		c.Args = append(c.Args, p.value())
		if p.peek().Type != COMMA {
			break
		}
		p.next()
	}
	closing := p.expect(CLOSED_PARENS, "',' or ')'")
	c.Range = Range{Start: name.Start, End: closing.End}
	return c
}
