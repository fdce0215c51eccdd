package bibtex

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var accentRe = regexp.MustCompile("\\\\([\"'`^~=.])\\{?([A-Za-z])\\}?")

var combining = map[string]string{
	`"`: "\u0308",
	`'`: "\u0301",
	"`": "\u0300",
	"^": "\u0302",
	"~": "\u0303",
	"=": "\u0304",
	".": "\u0307",
}

var latexEscapes = strings.NewReplacer(`\&`, "&", `\%`, "%", `\$`, "$", `\_`, "_", `\#`, "#")

// toHTML converts a raw field value to HTML text. Escaped braces survive as
// character references; grouping braces are dropped.
func toHTML(s string) string {
	s = accentRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := accentRe.FindStringSubmatch(m)
		return sub[2] + combining[sub[1]]
	})
	s = norm.NFC.String(s)
	s = latexEscapes.Replace(s)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, `\{`, "&#123;")
	s = strings.ReplaceAll(s, `\}`, "&#125;")
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	s = strings.ReplaceAll(s, "---", "—")
	s = strings.ReplaceAll(s, "--", "–")
	s = strings.ReplaceAll(s, "~", "&nbsp;")
	return s
}

// Names splits a BibTeX name list on top-level "and" and returns each name
// in "First Last" order.
func Names(list string) []string {
	var out []string
	for _, raw := range splitTopLevel(list, " and ") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := splitTopLevel(raw, ",")
		switch len(parts) {
		case 2:
			raw = strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
		case 3:
			raw = strings.TrimSpace(parts[2]) + " " + strings.TrimSpace(parts[0]) + " " + strings.TrimSpace(parts[1])
		}
		out = append(out, strings.TrimSpace(raw))
	}
	return out
}

// splitTopLevel splits s on sep (case-insensitive) outside braces.
func splitTopLevel(s, sep string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		default:
			if depth == 0 && len(s)-i >= len(sep) && strings.EqualFold(s[i:i+len(sep)], sep) {
				out = append(out, s[start:i])
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func formatNames(list string) string {
	names := Names(list)
	etAl := false
	if n := len(names); n > 0 && strings.EqualFold(names[n-1], "others") {
		names, etAl = names[:n-1], true
	}
	for i, n := range names {
		names[i] = toHTML(n)
	}
	var s string
	switch len(names) {
	case 0:
		return ""
	case 1:
		s = names[0]
	case 2:
		s = names[0] + " and " + names[1]
	default:
		s = strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
	if etAl {
		s += " et al."
	}
	return s
}

func join(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func em(s string) string {
	if s == "" {
		return ""
	}
	return "<em>" + s + "</em>"
}

func prefixed(prefix, s string) string {
	if s == "" {
		return ""
	}
	return prefix + s
}

// sentence terminates s with a period unless it already ends in
// punctuation.
func sentence(s string) string {
	if s == "" {
		return ""
	}
	plain := strings.TrimSuffix(s, "</span>")
	plain = strings.TrimSuffix(plain, "</em>")
	if strings.HasSuffix(plain, ".") || strings.HasSuffix(plain, "?") || strings.HasSuffix(plain, "!") {
		return s
	}
	return s + "."
}

// protected reports whether the whole value is a single brace group, as
// in title = {{Exact Case}}.
func protected(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' || raw[len(raw)-2] == '\\' {
		return false
	}
	inner := strings.NewReplacer(`\{`, "", `\}`, "").Replace(raw[1 : len(raw)-1])
	return !strings.ContainsAny(inner, "{}")
}

// Format renders the entry in the plain bibliography style. A title that
// is brace-protected as a whole is wrapped in a pub-title span.
func (e *Entry) Format() string {
	f := func(name string) string { return toHTML(e.Get(name)) }

	authors := formatNames(e.Get("author"))
	if authors == "" {
		authors = formatNames(e.Get("editor"))
	}
	title := f("title")
	if title != "" && protected(e.Get("title")) {
		title = `<span class="pub-title">` + title + `</span>`
	}
	date := join(" ", f("month"), f("year"))
	pages := f("pages")

	var sentences []string
	switch e.Type {
	case "article":
		vol := f("volume") + prefixed("(", f("number"))
		if f("number") != "" {
			vol += ")"
		}
		if pages != "" {
			if vol != "" {
				vol += ":" + pages
			} else {
				vol = prefixed("pages ", pages)
			}
		}
		sentences = []string{authors, title, join(", ", em(f("journal")), vol, date)}
	case "inproceedings", "incollection", "conference":
		in := join(", ", em(f("booktitle")), f("volume"), prefixed("pages ", pages))
		sentences = []string{authors, title, prefixed("In ", in), join(", ", f("publisher"), f("address"), date)}
	case "book", "proceedings":
		if title != "" {
			title = em(title)
		}
		sentences = []string{authors, title, join(", ", f("publisher"), f("address"), f("edition"), date)}
	case "phdthesis":
		sentences = []string{authors, title, join(", ", "PhD thesis", f("school"), date)}
	case "mastersthesis":
		sentences = []string{authors, title, join(", ", "Master's thesis", f("school"), date)}
	case "techreport":
		sentences = []string{authors, title, join(", ", join(" ", "Technical Report", f("number")), f("institution"), date)}
	default:
		sentences = []string{authors, title, join(", ", f("howpublished"), em(f("journal")), date)}
	}
	sentences = append(sentences, f("note"))

	var out []string
	for _, s := range sentences {
		if s = sentence(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// BibTeX re-serializes the entry as a standalone BibTeX record.
func (e *Entry) BibTeX() string {
	var sb strings.Builder
	sb.WriteString("@")
	sb.WriteString(e.Type)
	sb.WriteString("{")
	sb.WriteString(e.Key)
	for i, f := range e.Fields {
		sb.WriteString(",\n    ")
		sb.WriteString(f.Name)
		sb.WriteString(" = {")
		sb.WriteString(f.Value)
		sb.WriteString("}")
		if i == len(e.Fields)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
