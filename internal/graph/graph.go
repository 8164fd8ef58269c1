// Package graph walks the dependency graph from each entry point, running
// every reachable file through the transform engine exactly once.
package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/config"
	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/transform"
)

type Module struct {
	// ID is the context-relative slash path and the module's runtime identity.
	ID       string
	Path     string
	Code     []byte
	Kind     transform.Kind
	Verbatim bool
	// Deps maps each request written in the module to the ID it resolved to.
	Deps map[string]string
	// Entries holds the names of the entries that reach this module.
	Entries map[string]bool
	// Size is the size of the file as read.
	Size int
}

// Entry is one named entry and the IDs of its resolved requests, in order.
type Entry struct {
	Name    string
	Modules []string
}

type Graph struct {
	Modules map[string]*Module
	Entries []Entry
	order   []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Modules: map[string]*Module{}}
}

// Add records a module, keeping first-visit order.
func (g *Graph) Add(m *Module) {
	if _, ok := g.Modules[m.ID]; !ok {
		g.order = append(g.order, m.ID)
	}
	g.Modules[m.ID] = m
}

// Order returns module IDs in the order they were first visited.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Reachable returns the IDs reachable from the named entry in visit order.
func (g *Graph) Reachable(entry string) []string {
	var ids []string
	for _, id := range g.order {
		if g.Modules[id].Entries[entry] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Dependents counts how many modules depend on each module.
func (g *Graph) Dependents() map[string]int {
	counts := make(map[string]int, len(g.Modules))
	for _, m := range g.Modules {
		seen := map[string]bool{}
		for _, dep := range m.Deps {
			if !seen[dep] {
				seen[dep] = true
				counts[dep]++
			}
		}
	}
	return counts
}

type Walker struct {
	fs       afero.Fs
	desc     *config.Descriptor
	resolver *resolve.Resolver
	engine   *transform.Engine
}

func NewWalker(fs afero.Fs, desc *config.Descriptor, resolver *resolve.Resolver, engine *transform.Engine) *Walker {
	return &Walker{
		fs:       fs,
		desc:     desc,
		resolver: resolver,
		engine:   engine,
	}
}

// Walk resolves every entry request up front, so a missing entry fails the
// walk before any file is transformed, then visits the graph depth first.
func (w *Walker) Walk(ctx context.Context) (*Graph, error) {
	names := make([]string, 0, len(w.desc.Entry))
	for name := range w.desc.Entry {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make(map[string][]string, len(names))
	for _, name := range names {
		for _, req := range w.desc.Entry[name] {
			p, err := w.resolver.ResolveEntry(req)
			if err != nil {
				return nil, err
			}
			resolved[name] = append(resolved[name], p)
		}
	}

	g := New()

	for _, name := range names {
		entry := Entry{Name: name}
		for _, p := range resolved[name] {
			id, err := w.visit(ctx, g, p, name)
			if err != nil {
				return nil, err
			}
			entry.Modules = append(entry.Modules, id)
		}
		g.Entries = append(g.Entries, entry)
	}

	log.Debug().Int("modules", len(g.Modules)).Int("entries", len(g.Entries)).Msg("dependency graph walked")

	return g, nil
}

func (w *Walker) visit(ctx context.Context, g *Graph, path, entry string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := w.desc.Rel(path)

	if m, ok := g.Modules[id]; ok {
		if m.Entries[entry] {
			return id, nil
		}
		m.Entries[entry] = true
		for _, dep := range sortedDeps(m.Deps) {
			if _, err := w.visit(ctx, g, g.Modules[dep].Path, entry); err != nil {
				return "", err
			}
		}
		return id, nil
	}

	contents, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", id, err)
	}

	src, err := w.engine.Process(ctx, path, contents)
	if err != nil {
		return "", err
	}

	m := &Module{
		ID:       id,
		Path:     path,
		Code:     src.Contents,
		Kind:     src.Kind,
		Verbatim: src.Verbatim,
		Deps:     make(map[string]string, len(src.Imports)),
		Entries:  map[string]bool{entry: true},
		Size:     len(contents),
	}
	g.Add(m)

	dir := filepath.Dir(path)
	for _, req := range src.Imports {
		depPath, err := w.resolver.Resolve(req, dir)
		if err != nil {
			var rerr *resolve.Error
			if errors.As(err, &rerr) {
				rerr.Importer = id
			}
			return "", err
		}

		depID, err := w.visit(ctx, g, depPath, entry)
		if err != nil {
			return "", err
		}
		m.Deps[req] = depID
	}

	return id, nil
}

func sortedDeps(deps map[string]string) []string {
	seen := map[string]bool{}
	ids := make([]string, 0, len(deps))
	for _, id := range deps {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
