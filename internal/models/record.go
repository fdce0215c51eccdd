// Package models defines the types shared by the index, the API and the MCP server.
package models

import "time"

// Record kinds, one per generated context section.
const (
	KindCollaborator = "collaborator"
	KindProject      = "project"
	KindMedia        = "media"
	KindPublication  = "publication"
)

// Record is a flattened, searchable view of one item of a context section.
type Record struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	URL      string   `json:"url,omitempty"`
	Year     int      `json:"year,omitempty"`
}

// FileMetadata describes a file in the content tree.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
