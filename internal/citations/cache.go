// Package citations manages the on-disk citation-count cache and the
// updater that refreshes it.
package citations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Year is a publication year stored as text. It decodes from either a JSON
// string or number.
type Year string

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("citations: year: %w", err)
	}
	*y = Year(n.String())
	return nil
}

// Entry is the cached citation record of one publication.
type Entry struct {
	CitedByCount      int    `json:"cited_by_count"`
	Year              Year   `json:"year,omitempty"`
	OpenAlexID        string `json:"openalex_id,omitempty"`
	SemanticScholarID string `json:"semantic_scholar_id,omitempty"`
	Source            string `json:"source,omitempty"`
	Note              string `json:"note,omitempty"`
}

// URL returns the OpenAlex id when set, otherwise the Semantic Scholar id.
func (e Entry) URL() string {
	if e.OpenAlexID != "" {
		return e.OpenAlexID
	}
	return e.SemanticScholarID
}

// Cache maps a BibTeX key to its citation record.
type Cache map[string]Entry

// Decode parses cache JSON. Keys starting with "_" are comments and are
// dropped.
func Decode(data []byte) (Cache, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("citations: decode: %w", err)
	}
	c := make(Cache, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, fmt.Errorf("citations: decode %s: %w", k, err)
		}
		c[k] = e
	}
	return c, nil
}

// Load reads a cache file. A missing file yields an empty cache.
func Load(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("citations: read %s: %w", path, err)
	}
	return Decode(data)
}

// Marshal encodes the cache with sorted keys and two-space indentation.
func (c Cache) Marshal() ([]byte, error) {
	if c == nil {
		c = Cache{}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("citations: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Overlay returns a copy of c with every entry of over applied on top.
func (c Cache) Overlay(over Cache) Cache {
	out := make(Cache, len(c)+len(over))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Total sums the citation counts.
func (c Cache) Total() int {
	var n int
	for _, e := range c {
		n += e.CitedByCount
	}
	return n
}

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
