// Package scholar talks to the bibliographic APIs used to enrich the site
// data: OpenAlex and Semantic Scholar.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/theoryandpractice/sitekit/internal/apperr"
)

// Ref identifies a paper. DOI takes precedence over the arXiv id.
type Ref struct {
	DOI     string
	ArXivID string
}

// Empty reports whether the reference carries no identifier.
func (r Ref) Empty() bool { return r.DOI == "" && r.ArXivID == "" }

// arxiv returns the arXiv id without its "arXiv:" prefix.
func (r Ref) arxiv() string {
	return strings.TrimSpace(strings.Replace(r.ArXivID, "arXiv:", "", 1))
}

// Citation is a citation count and the provider-side identifier it came from.
type Citation struct {
	CitedByCount int
	ID           string
	Source       string
}

// Provider returns the citation count of a paper.
type Provider interface {
	Name() string
	CitationCount(ctx context.Context, ref Ref) (Citation, error)
}

// Chain queries providers in order and returns the first success.
type Chain struct {
	Providers []Provider
	Logger    *slog.Logger
}

// NewChain creates a chain over providers.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{Providers: providers, Logger: logger}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// CitationCount implements Provider. Failures are logged and the next
// provider is tried; the joined errors are returned when all fail.
func (c *Chain) CitationCount(ctx context.Context, ref Ref) (Citation, error) {
	if ref.Empty() {
		return Citation{}, apperr.ErrNoIdentifier
	}
	var errs []error
	for _, p := range c.Providers {
		res, err := p.CitationCount(ctx, ref)
		if err == nil {
			return res, nil
		}
		c.Logger.Debug("citation provider failed",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Citation{}, errors.Join(errs...)
}

// getJSON performs a GET with the given User-Agent and decodes a 200 response
// into v. A 404 maps to apperr.ErrNotFound.
func getJSON(ctx context.Context, client *http.Client, userAgent, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
