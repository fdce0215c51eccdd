// Package bibtex reads BibTeX databases and renders entries as HTML
// bibliography text.
package bibtex

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Field is a single name/value pair. Names are lower-case.
type Field struct {
	Name  string
	Value string
}

// Entry is one bibliography entry.
type Entry struct {
	Type   string
	Key    string
	Fields []Field
}

// Get returns the value of the named field, or "" when absent.
func (e *Entry) Get(name string) string {
	name = strings.ToLower(name)
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Has reports whether the field is present.
func (e *Entry) Has(name string) bool {
	name = strings.ToLower(name)
	for _, f := range e.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Database is a parsed BibTeX file. Keys keeps file order.
type Database struct {
	Entries map[string]*Entry
	Keys    []string
}

// Lookup returns the entry for key.
func (d *Database) Lookup(key string) (*Entry, bool) {
	e, ok := d.Entries[key]
	return e, ok
}

var monthMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// ParseFile reads and parses the BibTeX file at path.
func ParseFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bibtex: read %s: %w", path, err)
	}
	db, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Parse parses BibTeX source. @string macros and # concatenation are
// expanded; @comment and @preamble blocks are skipped. When a key repeats,
// the first entry wins.
func Parse(src []byte) (*Database, error) {
	p := &parser{src: src, macros: make(map[string]string, len(monthMacros))}
	for k, v := range monthMacros {
		p.macros[k] = v
	}
	return p.parse()
}

type parser struct {
	src    []byte
	pos    int
	macros map[string]string
}

func (p *parser) errorf(format string, args ...any) error {
	line := bytes.Count(p.src[:min(p.pos, len(p.src))], []byte("\n")) + 1
	return fmt.Errorf("bibtex: line %d: %s", line, fmt.Sprintf(format, args...))
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '{', '}', '(', ')', ',', '=', '#', '"':
		return true
	}
	return false
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && !isDelim(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) parse() (*Database, error) {
	db := &Database{Entries: make(map[string]*Entry)}
	for {
		i := bytes.IndexByte(p.src[p.pos:], '@')
		if i < 0 {
			return db, nil
		}
		p.pos += i + 1
		typ := strings.ToLower(p.ident())
		p.skipSpace()
		open := p.peek()
		if open != '{' && open != '(' {
			continue
		}
		p.pos++
		closer := byte('}')
		if open == '(' {
			closer = ')'
		}

		switch typ {
		case "comment", "preamble":
			if err := p.skipBlock(open, closer); err != nil {
				return nil, err
			}
		case "string":
			p.skipSpace()
			name := strings.ToLower(p.ident())
			p.skipSpace()
			if p.peek() != '=' {
				return nil, p.errorf("expected '=' in @string")
			}
			p.pos++
			val, err := p.value()
			if err != nil {
				return nil, err
			}
			p.macros[name] = val
			p.skipSpace()
			if p.peek() != closer {
				return nil, p.errorf("unterminated @string")
			}
			p.pos++
		default:
			e, err := p.entry(typ, closer)
			if err != nil {
				return nil, err
			}
			if _, dup := db.Entries[e.Key]; dup {
				continue
			}
			db.Entries[e.Key] = e
			db.Keys = append(db.Keys, e.Key)
		}
	}
}

func (p *parser) skipBlock(open, closer byte) error {
	depth := 1
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return p.errorf("unterminated block")
}

func (p *parser) entry(typ string, closer byte) (*Entry, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != closer {
		p.pos++
	}
	if p.eof() {
		return nil, p.errorf("unterminated entry")
	}
	e := &Entry{Type: typ, Key: strings.TrimSpace(string(p.src[start:p.pos]))}
	if e.Key == "" {
		return nil, p.errorf("entry without key")
	}
	if p.src[p.pos] == closer {
		p.pos++
		return e, nil
	}
	p.pos++

	for {
		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return e, nil
		}
		name := strings.ToLower(p.ident())
		if name == "" {
			return nil, p.errorf("expected field name in %s", e.Key)
		}
		p.skipSpace()
		if p.peek() != '=' {
			return nil, p.errorf("expected '=' after %s in %s", name, e.Key)
		}
		p.pos++
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, Field{Name: name, Value: val})

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
			p.pos++
			return e, nil
		default:
			return nil, p.errorf("expected ',' or end of entry in %s", e.Key)
		}
	}
}

func (p *parser) value() (string, error) {
	var parts []string
	for {
		p.skipSpace()
		var (
			piece string
			err   error
		)
		switch c := p.peek(); {
		case c == '{':
			piece, err = p.delimited('}')
		case c == '"':
			piece, err = p.delimited('"')
		case c >= '0' && c <= '9':
			piece = p.ident()
		case c == 0:
			return "", p.errorf("unexpected end of input")
		default:
			name := p.ident()
			if name == "" {
				return "", p.errorf("unexpected %q in value", c)
			}
			piece = p.macros[strings.ToLower(name)]
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, piece)

		p.skipSpace()
		if p.peek() != '#' {
			break
		}
		p.pos++
	}
	return strings.Join(strings.Fields(strings.Join(parts, "")), " "), nil
}

// delimited reads a {braced} or "quoted" value starting at the opening
// delimiter. Inner braces must balance; a backslash escapes the next byte.
func (p *parser) delimited(end byte) (string, error) {
	p.pos++
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\':
			p.pos++
		case c == '{':
			depth++
		case c == end && depth == 0:
			v := string(p.src[start:p.pos])
			p.pos++
			return v, nil
		case c == '}':
			depth--
			if depth < 0 {
				return "", p.errorf("unbalanced braces")
			}
		}
		p.pos++
	}
	return "", p.errorf("unterminated value")
}
