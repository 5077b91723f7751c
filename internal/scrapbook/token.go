// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scrapbook

import (
	"errors"
	"fmt"
)

// Lexer errors
var (
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnterminatedString  = errors.New("unterminated string literal")
	ErrUnterminatedComment = errors.New("unterminated block comment")
	ErrInvalidNumber       = errors.New("invalid number format")
)

// TokenType represents the type of a token
type TokenType int

const (
	EOF TokenType = iota
	WORD            // identifiers, keywords, $operators
	STRING          // 'text', "text"
	NUMBER          // 12, -3.5, 1e9
	OPENED_PARENS   // (
	CLOSED_PARENS   // )
	OPENED_BRACE    // {
	CLOSED_BRACE    // }
	OPENED_BRACKET  // [
	CLOSED_BRACKET  // ]
	COMMA           // ,
	COLON           // :
	SEMICOLON       // ;
	DOT             // .
	ILLEGAL
)

var tokenNames = map[TokenType]string{
	EOF:            "end of input",
	WORD:           "word",
	STRING:         "string",
	NUMBER:         "number",
	OPENED_PARENS:  "'('",
	CLOSED_PARENS:  "')'",
	OPENED_BRACE:   "'{'",
	CLOSED_BRACE:   "'}'",
	OPENED_BRACKET: "'['",
	CLOSED_BRACKET: "']'",
	COMMA:          "','",
	COLON:          "':'",
	SEMICOLON:      "';'",
	DOT:            "'.'",
	ILLEGAL:        "illegal character",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Position is a location in the buffer. Line and Column are 1-based, Offset is a
// 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is the half-open span [Start, End).
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether line falls within the range.
func (r Range) Contains(line int) bool {
	return line >= r.Start.Line && line <= r.End.Line
}

// Token is a lexical token. Value holds the decoded text for strings.
type Token struct {
	Type      TokenType
	Value     string
	Start     Position
	End       Position
	LineStart bool  // first token on its line
	Err       error // set on ILLEGAL tokens
}

func (t Token) Range() Range { return Range{Start: t.Start, End: t.End} }

func (t Token) describe() string {
	switch t.Type {
	case WORD, NUMBER:
		return fmt.Sprintf("%q", t.Value)
	case STRING:
		return "string " + fmt.Sprintf("%q", t.Value)
	default:
		return t.Type.String()
	}
}
