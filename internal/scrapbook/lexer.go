// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scrapbook

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer turns scrapbook text into tokens. Whitespace and comments are dropped;
// malformed input becomes ILLEGAL tokens so the parser can localize the error.
type lexer struct {
	input     string
	offset    int
	line      int
	column    int
	lineStart bool
}

func tokenize(input string) []Token {
	l := &lexer{input: input, line: 1, column: 1, lineStart: true}
	var tokens []Token
	for {
		tok := l.next()
		if tok.Type == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func (l *lexer) pos() Position {
	return Position{Line: l.line, Column: l.column, Offset: l.offset}
}

func (l *lexer) peek(ahead int) byte {
	if l.offset+ahead >= len(l.input) {
		return 0
	}
	return l.input[l.offset+ahead]
}

// advance consumes one rune.
func (l *lexer) advance() {
	if l.offset >= len(l.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size
	if r == '\n' {
		l.line++
		l.column = 1
		l.lineStart = true
	} else {
		l.column++
	}
}

// skipTrivia skips whitespace and comments. An unterminated block comment is reported.
func (l *lexer) skipTrivia() *Token {
	for l.offset < len(l.input) {
		c := l.peek(0)
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peek(1) == '/':
			for l.offset < len(l.input) && l.peek(0) != '\n' {
				l.advance()
			}
		case c == '/' && l.peek(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			for {
				if l.offset >= len(l.input) {
					return &Token{Type: ILLEGAL, Start: start, End: l.pos(), Err: ErrUnterminatedComment}
				}
				if l.peek(0) == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) next() Token {
	if bad := l.skipTrivia(); bad != nil {
		bad.LineStart = l.lineStart
		l.lineStart = false
		return *bad
	}
	if l.offset >= len(l.input) {
		p := l.pos()
		return Token{Type: EOF, Start: p, End: p}
	}

	lineStart := l.lineStart
	l.lineStart = false
	tok := l.scan()
	tok.LineStart = lineStart
	return tok
}

var punctuation = map[byte]TokenType{
	'(': OPENED_PARENS,
	')': CLOSED_PARENS,
	'{': OPENED_BRACE,
	'}': CLOSED_BRACE,
	'[': OPENED_BRACKET,
	']': CLOSED_BRACKET,
	',': COMMA,
	':': COLON,
	';': SEMICOLON,
	'.': DOT,
}

func (l *lexer) scan() Token {
	start := l.pos()
	c := l.peek(0)

	if tt, ok := punctuation[c]; ok && !(c == '.' && isDigit(l.peek(1))) {
		l.advance()
		return Token{Type: tt, Value: string(c), Start: start, End: l.pos()}
	}

	switch {
	case c == '"' || c == '\'':
		return l.readString(c)
	case isDigit(c) || c == '.' || (c == '-' || c == '+') && (isDigit(l.peek(1)) || l.peek(1) == '.'):
		return l.readNumber()
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])
	if isWordStart(r) {
		return l.readWord()
	}

	l.advance()
	return Token{Type: ILLEGAL, Value: string(r), Start: start, End: l.pos(), Err: ErrUnexpectedCharacter}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func (l *lexer) readWord() Token {
	start := l.pos()
	for l.offset < len(l.input) {
		r, _ := utf8.DecodeRuneInString(l.input[l.offset:])
		if !isWordStart(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance()
	}
	return Token{Type: WORD, Value: l.input[start.Offset:l.offset], Start: start, End: l.pos()}
}

func (l *lexer) readNumber() Token {
	start := l.pos()
	if c := l.peek(0); c == '-' || c == '+' {
		l.advance()
	}
	for l.offset < len(l.input) {
		c := l.peek(0)
		if isDigit(c) || c == '.' {
			l.advance()
			continue
		}
		if c == 'e' || c == 'E' {
			l.advance()
			if n := l.peek(0); n == '-' || n == '+' {
				l.advance()
			}
			continue
		}
		break
	}
	// 12abc is one malformed token rather than a number followed by a word.
	for l.offset < len(l.input) {
		r, _ := utf8.DecodeRuneInString(l.input[l.offset:])
		if !isWordStart(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance()
	}

	text := l.input[start.Offset:l.offset]
	tok := Token{Type: NUMBER, Value: text, Start: start, End: l.pos()}
	if _, err := strconv.ParseFloat(strings.TrimPrefix(text, "+"), 64); err != nil {
		tok.Type = ILLEGAL
		tok.Err = ErrInvalidNumber
	}
	return tok
}

func (l *lexer) readString(quote byte) Token {
	start := l.pos()
	l.advance()
	var b strings.Builder
	for {
		if l.offset >= len(l.input) || l.peek(0) == '\n' {
			return Token{Type: ILLEGAL, Value: b.String(), Start: start, End: l.pos(), Err: ErrUnterminatedString}
		}
		c := l.peek(0)
		if c == quote {
			l.advance()
			return Token{Type: STRING, Value: b.String(), Start: start, End: l.pos()}
		}
		if c == '\\' && l.offset+1 < len(l.input) {
			l.advance()
			if e, ok := escapes[l.peek(0)]; ok {
				b.WriteString(e)
				l.advance()
				continue
			}
			// any other escaped rune is taken literally
			c = l.peek(0)
		}
		r, size := utf8.DecodeRuneInString(l.input[l.offset:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte(c)
		} else {
			b.WriteRune(r)
		}
		l.advance()
	}
}

var escapes = map[byte]string{
	'n': "\n",
	't': "\t",
	'r': "\r",
	'0': "\x00",
	'b': "\b",
	'f': "\f",
}
