// Package parser extracts page metadata from Markdown content.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var headerRe = regexp.MustCompile(`^([A-Za-z0-9_-]+):\s*(.*)$`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Metadata map[string]any
	Body     string
	Title    string
}

// Parse extracts metadata and body from raw Markdown bytes. Metadata comes
// from YAML frontmatter when present, otherwise from leading "Key: value"
// header lines. Keys are lower-cased.
func Parse(data []byte) (*Result, error) {
	meta, body := splitFrontmatter(data)
	if meta == nil {
		meta, body = splitHeaders(body)
	}
	return &Result{
		Metadata: meta,
		Body:     body,
		Title:    deriveTitle(meta, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no valid frontmatter is found the entire content
// is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return lowerKeys(fm), body
}

// splitHeaders reads "Key: value" lines up to the first blank line. Lines
// indented by four or more spaces continue the previous value. Content that
// does not start with a header line is returned untouched.
func splitHeaders(content string) (map[string]any, string) {
	lines := strings.SplitAfter(content, "\n")
	meta := map[string]any{}
	var last string
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r\n")
		if strings.TrimSpace(line) == "" {
			i++
			break
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			last = strings.ToLower(m[1])
			meta[last] = strings.TrimSpace(m[2])
			continue
		}
		if last != "" && strings.HasPrefix(line, "    ") {
			meta[last] = strings.TrimSpace(meta[last].(string) + " " + strings.TrimSpace(line))
			continue
		}
		break
	}
	if len(meta) == 0 {
		return nil, content
	}
	return meta, strings.Join(lines[i:], "")
}

func lowerKeys(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// deriveTitle returns the "title" metadata if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(meta map[string]any, body string) string {
	if t, ok := meta["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
