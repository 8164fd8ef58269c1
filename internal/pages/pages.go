// Package pages is the page aggregator: an explicit table from page identifier
// to loader, loaded eagerly and resolved one to one.
package pages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/wolfeidau/pagepack/internal/resolve"
	"github.com/wolfeidau/pagepack/internal/transform"
)

// Names is the fixed set of page identifiers, in declaration order.
var Names = []string{"MainPage", "LoginPage", "ProfilePage", "ListPage", "ViewPage"}

var ErrUnknownPage = errors.New("unknown page")

// LoadError reports a page that is unknown or whose module failed to load.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load page %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Module is an opaque page module.
type Module struct {
	Name   string
	Path   string
	Source []byte
}

type Loader func(ctx context.Context) (*Module, error)

// Table maps page identifiers to their loaders.
type Table map[string]Loader

// NewTable returns a loader per fixed page name, each resolving ./<Name> from
// dir and compiling it with engine.
func NewTable(fs afero.Fs, resolver *resolve.Resolver, engine *transform.Engine, dir string) Table {
	table := make(Table, len(Names))
	for _, name := range Names {
		table[name] = FileLoader(fs, resolver, engine, dir, name)
	}
	return table
}

// FileLoader resolves ./<name> from dir, reads it and runs it through the
// engine so a page that does not parse fails to load. A nil engine only reads.
func FileLoader(fs afero.Fs, resolver *resolve.Resolver, engine *transform.Engine, dir, name string) Loader {
	return func(ctx context.Context) (*Module, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := resolver.Resolve("./"+name, dir)
		if err != nil {
			return nil, err
		}

		src, err := afero.ReadFile(fs, p)
		if err != nil {
			return nil, err
		}

		if engine != nil {
			if _, err := engine.Process(ctx, p, src); err != nil {
				return nil, err
			}
		}

		return &Module{Name: name, Path: p, Source: src}, nil
	}
}

type Aggregator struct {
	names   []string
	modules map[string]*Module
}

// Load runs every loader in the table before returning. The first failure
// aborts loading and is returned as a LoadError wrapping the cause unchanged.
func Load(ctx context.Context, table Table) (*Aggregator, error) {
	a := &Aggregator{
		names:   tableOrder(table),
		modules: make(map[string]*Module, len(table)),
	}

	for _, name := range a.names {
		m, err := table[name](ctx)
		if err != nil {
			return nil, &LoadError{Name: name, Err: err}
		}
		if m == nil {
			return nil, &LoadError{Name: name, Err: errors.New("loader returned no module")}
		}
		a.modules[name] = m
		log.Debug().Str("page", name).Str("path", m.Path).Msg("page loaded")
	}

	return a, nil
}

// tableOrder lists the fixed names first, then any others sorted.
func tableOrder(table Table) []string {
	var names, extra []string
	for _, name := range Names {
		if _, ok := table[name]; ok {
			names = append(names, name)
		}
	}
	for name := range table {
		if !contains(Names, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Resolve returns the module registered under name.
func (a *Aggregator) Resolve(name string) (*Module, error) {
	m, ok := a.modules[name]
	if !ok {
		return nil, &LoadError{Name: name, Err: ErrUnknownPage}
	}
	return m, nil
}

// Names returns the registered identifiers in load order.
func (a *Aggregator) Names() []string {
	return append([]string(nil), a.names...)
}

var barrelTemplate = template.Must(template.New("barrel").Parse(
	`{{range .}}import {{.Name}} from './{{.Request}}';
{{end}}
{{range .}}exports.{{.Name}} = {{.Name}};
{{end}}`))

// Barrel renders the module that imports every page and re-exports it under
// its identifier. Requests are relative to dir.
func (a *Aggregator) Barrel(dir string) ([]byte, error) {
	type entry struct {
		Name    string
		Request string
	}

	entries := make([]entry, 0, len(a.names))
	for _, name := range a.names {
		req := name
		if rel, err := filepath.Rel(dir, a.modules[name].Path); err == nil {
			req = filepath.ToSlash(trimExt(rel))
		}
		entries = append(entries, entry{Name: name, Request: req})
	}

	var buf bytes.Buffer
	if err := barrelTemplate.Execute(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func trimExt(p string) string {
	return p[:len(p)-len(filepath.Ext(p))]
}
