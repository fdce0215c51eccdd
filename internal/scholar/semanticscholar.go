package scholar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/theoryandpractice/sitekit/internal/apperr"
)

// DefaultSemanticScholarURL is the public paper endpoint root.
const DefaultSemanticScholarURL = "https://api.semanticscholar.org/graph/v1"

const semanticScholarPaperURL = "https://www.semanticscholar.org/paper/"

// SemanticScholar is a Semantic Scholar Graph API client.
type SemanticScholar struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// NewSemanticScholar creates a client. An empty baseURL selects the public API.
func NewSemanticScholar(baseURL, userAgent string, timeout time.Duration) *SemanticScholar {
	if baseURL == "" {
		baseURL = DefaultSemanticScholarURL
	}
	return &SemanticScholar{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (c *SemanticScholar) Name() string { return "semantic_scholar" }

// CitationCount implements Provider. The returned ID is the paper's public
// page URL.
func (c *SemanticScholar) CitationCount(ctx context.Context, ref Ref) (Citation, error) {
	var id string
	switch {
	case ref.DOI != "":
		id = "DOI:" + ref.DOI
	case ref.ArXivID != "":
		id = "ARXIV:" + ref.arxiv()
	default:
		return Citation{}, apperr.ErrNoIdentifier
	}

	var paper struct {
		PaperID       string `json:"paperId"`
		CitationCount int    `json:"citationCount"`
	}
	u := c.BaseURL + "/paper/" + id + "?fields=citationCount,externalIds"
	if err := getJSON(ctx, c.Client, c.UserAgent, u, &paper); err != nil {
		return Citation{}, fmt.Errorf("semantic scholar: paper: %w", err)
	}

	res := Citation{CitedByCount: paper.CitationCount, Source: c.Name()}
	if paper.PaperID != "" {
		res.ID = semanticScholarPaperURL + paper.PaperID
	}
	return res, nil
}
