package site

import (
	"context"
	"log/slog"
)

// Plugin is anything registered with a Pipeline. A plugin takes part in a
// lifecycle stage by implementing the matching hook interface.
type Plugin interface {
	Name() string
}

// Initializer is called once before pages are processed.
type Initializer interface {
	GeneratorInit(ctx context.Context, g *Generator)
}

// PageHook is called for every page after initialization.
type PageHook interface {
	PageContext(g *Generator, p *Page)
}

// Finalizer is called after all pages have been processed.
type Finalizer interface {
	Finalized(ctx context.Context, g *Generator) error
}

// Pipeline runs plugins through the generator lifecycle in registration order.
type Pipeline struct {
	plugins []Plugin
}

// NewPipeline creates a pipeline over the given plugins.
func NewPipeline(plugins ...Plugin) *Pipeline {
	return &Pipeline{plugins: plugins}
}

// Plugins returns the registered plugins.
func (p *Pipeline) Plugins() []Plugin { return p.plugins }

// Run executes init hooks, then page hooks, then finalize hooks. A failing
// hook is logged and the run continues.
func (p *Pipeline) Run(ctx context.Context, g *Generator) {
	for _, pl := range p.plugins {
		if h, ok := pl.(Initializer); ok {
			h.GeneratorInit(ctx, g)
		}
	}
	for _, page := range g.Pages {
		for _, pl := range p.plugins {
			if h, ok := pl.(PageHook); ok {
				h.PageContext(g, page)
			}
		}
	}
	for _, pl := range p.plugins {
		h, ok := pl.(Finalizer)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			g.Logger.Warn("generation cancelled", slog.String("error", err.Error()))
			return
		}
		if err := h.Finalized(ctx, g); err != nil {
			g.Logger.Error("plugin finalize failed",
				slog.String("plugin", pl.Name()),
				slog.String("error", err.Error()))
		}
	}
}
