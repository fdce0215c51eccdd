package media

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suggestion is a candidate media item proposed by the search and alert
// commands, in the order its fields appear in the media YAML.
type Suggestion struct {
	Title       string `yaml:"title"`
	Outlet      string `yaml:"outlet"`
	Category    string `yaml:"category"`
	URL         string `yaml:"url"`
	Date        string `yaml:"date,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// MarshalSuggestions encodes suggestions as a YAML list ready to paste into
// the items section of the media file.
func MarshalSuggestions(items []Suggestion) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("media: encode suggestions: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("media: encode suggestions: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteSuggestions writes a commented header followed by the YAML list.
func WriteSuggestions(w io.Writer, header []string, items []Suggestion) error {
	body, err := MarshalSuggestions(items)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, line := range header {
		sb.WriteString("# ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if len(header) > 0 {
		sb.WriteByte('\n')
	}
	sb.Write(body)
	_, err = io.WriteString(w, sb.String())
	return err
}

// ExistingURLs returns the non-empty item URLs of a media file.
func ExistingURLs(data []byte) ([]string, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("media: parse: %w", err)
	}
	var out []string
	for _, it := range f.Items {
		if it.URL != "" {
			out = append(out, it.URL)
		}
	}
	return out, nil
}
