package collabyears

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	keyStartYear = "start_year"
	keyEndYear   = "end_year"
)

// Keys a new year is placed after, in order of preference. Without any of
// them the year goes at the end of the entry.
var (
	startAnchors = []string{"current_position", "affiliation", "role", "current"}
	endAnchors   = []string{keyStartYear, "current_position", "affiliation"}
)

// Document is a collaborators file. The node tree answers queries; edits
// are recorded against the source lines so that everything not touched by
// an edit is written back byte for byte.
type Document struct {
	root  yaml.Node
	lines []string
	eol   string

	inserts  []insertion
	rewrites []rewrite
	added    map[*yaml.Node]bool
	err      error
}

// insertion places a new key: value line after a source line.
type insertion struct {
	after  int
	indent string
	key    *yaml.Node
	val    *yaml.Node
}

// rewrite replaces the scalar that follows the key at col on a source line.
type rewrite struct {
	line int
	col  int
	key  string
	val  *yaml.Node
}

// Parse reads a collaborators file.
func Parse(data []byte) (*Document, error) {
	d := &Document{eol: "\n", added: make(map[*yaml.Node]bool)}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("collabyears: parse: %w", err)
	}
	if d.root.Kind != yaml.DocumentNode || len(d.root.Content) == 0 || d.root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("collabyears: parse: top level is not a mapping")
	}
	d.lines = strings.SplitAfter(string(data), "\n")
	if last := len(d.lines) - 1; d.lines[last] == "" {
		d.lines = d.lines[:last]
	}
	if bytes.Contains(data, []byte("\r\n")) {
		d.eol = "\r\n"
	}
	return d, nil
}

// Bytes returns the source with the recorded edits applied. Without edits
// it is the parsed input unchanged.
func (d *Document) Bytes() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	lines := slices.Clone(d.lines)
	for _, rw := range d.rewrites {
		if rw.line < 1 || rw.line > len(lines) {
			return nil, fmt.Errorf("collabyears: %s: line %d out of range", rw.key, rw.line)
		}
		s, ok := replaceValue(lines[rw.line-1], rw.col, rw.val.Value)
		if !ok {
			return nil, fmt.Errorf("collabyears: cannot rewrite %s on line %d", rw.key, rw.line)
		}
		lines[rw.line-1] = s
	}

	after := make(map[int][]insertion)
	for _, in := range d.inserts {
		after[in.after] = append(after[in.after], in)
	}
	var buf bytes.Buffer
	for i, l := range lines {
		buf.WriteString(l)
		extra := after[i+1]
		if len(extra) == 0 {
			continue
		}
		if !strings.HasSuffix(l, "\n") {
			buf.WriteString(d.eol)
		}
		for _, in := range extra {
			buf.WriteString(in.indent + in.key.Value + ": " + in.val.Value + d.eol)
		}
	}
	return buf.Bytes(), nil
}

// People returns the entries of the people list.
func (d *Document) People() []Person {
	seq := lookup(d.root.Content[0], "people")
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}
	people := make([]Person, 0, len(seq.Content))
	for _, n := range seq.Content {
		if n.Kind == yaml.MappingNode {
			people = append(people, Person{doc: d, node: n})
		}
	}
	return people
}

// Person is one entry of the people list.
type Person struct {
	doc  *Document
	node *yaml.Node
}

// Name returns the entry's name.
func (p Person) Name() string {
	if v := lookup(p.node, "name"); v != nil {
		return v.Value
	}
	return ""
}

// Has reports whether key is present with a non-null value.
func (p Person) Has(key string) bool {
	v := lookup(p.node, key)
	return v != nil && v.ShortTag() != "!!null"
}

// SetStartYear sets start_year.
func (p Person) SetStartYear(year int) {
	p.set(keyStartYear, year, startAnchors)
}

// SetEndYear sets end_year and marks the person as no longer current.
func (p Person) SetEndYear(year int) {
	p.set(keyEndYear, year, endAnchors)
	if i := index(p.node, "current"); i >= 0 && p.node.Content[i+1].Value == "true" {
		p.replace(i, "!!bool", "false")
	}
}

// set stores an integer under key. An existing value is replaced in place,
// otherwise the pair is inserted after the first anchor present.
func (p Person) set(key string, year int, anchors []string) {
	value := strconv.Itoa(year)
	if i := index(p.node, key); i >= 0 {
		p.replace(i, "!!int", value)
		return
	}
	d := p.doc
	if p.node.Style&yaml.FlowStyle != 0 || len(p.node.Content) == 0 {
		d.fail(fmt.Errorf("collabyears: %q: only non-empty block mappings can be edited", p.Name()))
		return
	}

	pos := len(p.node.Content)
	for _, a := range anchors {
		if i := index(p.node, a); i >= 0 {
			pos = i + 2
			break
		}
	}
	line := d.pairEnd(p.node.Content[pos-2], p.node.Content[pos-1])
	first := p.node.Content[0]

	k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, Line: line, Column: first.Column}
	v := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: value, Line: line}
	p.node.Content = slices.Insert(p.node.Content, pos, k, v)
	d.added[k] = true
	d.inserts = append(d.inserts, insertion{
		after:  line,
		indent: strings.Repeat(" ", first.Column-1),
		key:    k,
		val:    v,
	})
}

// replace overwrites the scalar of the pair whose key sits at i.
func (p Person) replace(i int, tag, value string) {
	k, v := p.node.Content[i], p.node.Content[i+1]
	onKeyLine := p.doc.added[k] || v.Line == k.Line || v.Value == ""
	if v.Kind != yaml.ScalarNode || v.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 || !onKeyLine {
		p.doc.fail(fmt.Errorf("collabyears: %q: %s is not a plain value", p.Name(), k.Value))
		return
	}
	v.Tag, v.Value, v.Style = tag, value, 0
	if !p.doc.added[k] {
		p.doc.rewrites = append(p.doc.rewrites, rewrite{line: k.Line, col: k.Column - 1, key: k.Value, val: v})
	}
}

// pairEnd returns the last source line of a key: value pair. Lines that
// are blank or indented deeper than the key continue the value.
func (d *Document) pairEnd(k, v *yaml.Node) int {
	end := k.Line
	if d.added[k] {
		return end
	}
	indent := k.Column - 1
	for n := end + 1; n <= len(d.lines); n++ {
		line := strings.TrimRight(d.lines[n-1], "\r\n")
		body := strings.TrimLeft(line, " ")
		if body == "" {
			continue
		}
		depth := len(line) - len(body)
		// Block sequences may sit at the key's own indentation.
		nested := depth > indent || (depth == indent && v.Kind == yaml.SequenceNode && strings.HasPrefix(body, "-"))
		if !nested {
			break
		}
		if !strings.HasPrefix(body, "#") {
			end = n
		}
	}
	return end
}

func (d *Document) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// replaceValue rewrites the value after the key that starts at rune column
// col of line, keeping any trailing comment.
func replaceValue(line string, col int, value string) (string, bool) {
	off := byteOffset(line, col)
	if off < 0 {
		return "", false
	}
	colon := strings.IndexByte(line[off:], ':')
	if colon < 0 {
		return "", false
	}
	head := line[:off+colon+1]
	body := strings.TrimLeft(line[off+colon+1:], " \t")
	end := strings.IndexAny(body, " \t\r\n,}")
	if end < 0 {
		end = len(body)
	}
	if strings.HasPrefix(body, "#") {
		end = 0
	}
	tail := body[end:]
	if strings.HasPrefix(tail, "#") {
		tail = " " + tail
	}
	return head + " " + value + tail, true
}

// byteOffset converts a rune column to a byte offset, or -1 past the end.
func byteOffset(s string, col int) int {
	off := 0
	for i := 0; i < col; i++ {
		if off >= len(s) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}

// index returns the position of key's key node in a mapping, or -1.
func index(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if i := index(m, key); i >= 0 {
		return m.Content[i+1]
	}
	return nil
}
