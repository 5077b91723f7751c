// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package scrapbook

import (
	"strconv"
	"strings"
	"time"

	"scrapbook/cli/internal/docstore"
)

// value parses a relaxed JSON value into the docstore value model:
// objects become docstore.D, arrays []any, integers int64 and other numbers float64.
func (p *parser) value() any {
	tok := p.peek()
	switch tok.Type {
	case OPENED_BRACE:
		return p.object()
	case OPENED_BRACKET:
		return p.array()
	case STRING:
		p.next()
		return tok.Value
	case NUMBER:
		p.next()
		return p.number(tok)
	case WORD:
		return p.word()
	}
	p.unexpected(tok, "a value")
	return nil
}

func (p *parser) number(tok Token) any {
	text := strings.TrimPrefix(tok.Value, "+")
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.fail(tok.Range(), "invalid number %s", tok.Value)
	}
	return f
}

// word handles literals and the shell's value constructors.
func (p *parser) word() any {
	tok := p.next()
	switch tok.Value {
	case "true":
		return true
	case "false":
		return false
	case "null", "undefined":
		return nil
	case "ObjectId":
		arg, ok := p.constructorArg(tok)
		if !ok {
			return NewObjectID
		}
		s, isString := arg.(string)
		if !isString {
			p.fail(tok.Range(), "ObjectId expects a hex string")
		}
		id, err := docstore.ObjectIDFromHex(s)
		if err != nil {
			p.fail(tok.Range(), "%v", err)
		}
		return id
	case "ISODate", "Date":
		return p.date(tok)
	case "new":
		ctor := p.expect(WORD, "a constructor")
		switch ctor.Value {
		case "Date", "ISODate":
			return p.date(ctor)
		case "ObjectId":
			p.pos--
			return p.word()
		}
		p.fail(ctor.Range(), "unsupported constructor %s", ctor.Value)
	case "NumberInt", "NumberLong":
		arg, ok := p.constructorArg(tok)
		if !ok {
			return int64(0)
		}
		switch v := arg.(type) {
		case int64:
			return v
		case string:
			i, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				p.fail(tok.Range(), "%s expects an integer", tok.Value)
			}
			return i
		}
		p.fail(tok.Range(), "%s expects an integer", tok.Value)
	}
	p.fail(tok.Range(), "unexpected %s", tok.describe())
	return nil
}

// constructorArg parses "(" [value] ")"; ok is false for an empty argument list.
func (p *parser) constructorArg(name Token) (any, bool) {
	p.expect(OPENED_PARENS, "'(' after "+name.Value)
	if p.peek().Type == CLOSED_PARENS {
		p.next()
		return nil, false
	}
	v := p.value()
	p.expect(CLOSED_PARENS, "')'")
	return v, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func (p *parser) date(name Token) any {
	arg, ok := p.constructorArg(name)
	if !ok {
		return Now
	}
	switch v := arg.(type) {
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
		p.fail(name.Range(), "invalid date %q", v)
	case int64:
		return time.UnixMilli(v).UTC()
	}
	p.fail(name.Range(), "%s expects a date string or milliseconds", name.Value)
	return nil
}

// object := "{" [ key ":" value { "," key ":" value } [","] ] "}"
func (p *parser) object() docstore.D {
	p.expect(OPENED_BRACE, "'{'")
	doc := docstore.D{}
	for p.peek().Type != CLOSED_BRACE {
		key := p.peek()
		switch key.Type {
		case WORD, STRING, NUMBER:
			p.next()
		default:
			p.unexpected(key, "a field name")
		}
		p.expect(COLON, "':'")
		doc = append(doc, docstore.E{Key: key.Value, Value: p.value()})
		if p.peek().Type != COMMA {
			break
		}
		p.next()
	}
	p.expect(CLOSED_BRACE, "',' or '}'")
	return doc
}

// array := "[" [ value { "," value } [","] ] "]"
func (p *parser) array() []any {
	p.expect(OPENED_BRACKET, "'['")
	items := []any{}
	for p.peek().Type != CLOSED_BRACKET {
		items = append(items, p.value())
		if p.peek().Type != COMMA {
			break
		}
		p.next()
	}
	p.expect(CLOSED_BRACKET, "',' or ']'")
	return items
}
