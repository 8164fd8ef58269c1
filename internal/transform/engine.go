package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/pagepack/internal/config"
)

// Options are build-wide settings contributed by plugins.
type Options struct {
	// Define replaces global identifiers with constant expressions.
	Define map[string]string
}

// Predicate reports whether a handler applies to an absolute file path.
type Predicate func(path string) bool

// Handler runs one rule's stages over a source.
type Handler func(ctx context.Context, src *Source) (*Source, error)

type rule struct {
	name   string
	match  Predicate
	handle Handler
}

// Engine evaluates {predicate, handler} pairs in order, first match wins.
// Global exclusions are checked before any rule.
type Engine struct {
	desc    *config.Descriptor
	exclude []string
	rules   []rule
	scanner *scanner
}

// NewEngine compiles the descriptor rules. Unknown loaders and invalid loader
// options are configuration errors.
func NewEngine(desc *config.Descriptor, opts Options) (*Engine, error) {
	e := &Engine{
		desc:    desc,
		exclude: desc.AbsAll(desc.Exclude),
		scanner: &scanner{},
	}

	for i, r := range desc.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		re, err := r.Matcher()
		if err != nil {
			return nil, &config.Error{Field: field + ".test", Msg: "invalid pattern", Err: err}
		}

		stages := make([]Transformer, 0, len(r.Use))
		for j, stage := range r.Use {
			stageField := fmt.Sprintf("%s.use[%d]", field, j)

			factory, ok := Lookup(stage.Loader)
			if !ok {
				return nil, &config.Error{Field: stageField + ".loader", Msg: fmt.Sprintf("unknown loader %q", stage.Loader)}
			}

			t, err := factory(Env{Descriptor: desc, Options: opts, Field: stageField}, stage.Options)
			if err != nil {
				return nil, err
			}
			stages = append(stages, t)
		}

		e.rules = append(e.rules, rule{
			name:   field,
			match:  matcher(re, desc.AbsAll(r.Include), desc.AbsAll(r.Exclude)),
			handle: chain(stages),
		})
	}

	return e, nil
}

func matcher(re *regexp.Regexp, include, exclude []string) Predicate {
	return func(path string) bool {
		if !re.MatchString(filepath.ToSlash(path)) {
			return false
		}
		if under(path, exclude) {
			return false
		}
		return len(include) == 0 || under(path, include)
	}
}

// chain applies stages last to first, the order loaders are listed in.
func chain(stages []Transformer) Handler {
	return func(ctx context.Context, src *Source) (*Source, error) {
		var err error
		for i := len(stages) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			src, err = stages[i].Transform(ctx, src)
			if err != nil {
				return nil, err
			}
		}
		return src, nil
	}
}

func under(path string, dirs []string) bool {
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Excluded reports whether path lies under a global exclusion.
func (e *Engine) Excluded(path string) bool {
	return under(path, e.exclude)
}

// Process runs the first matching rule over the file at path.
func (e *Engine) Process(ctx context.Context, path string, contents []byte) (*Source, error) {
	src := &Source{
		Path:     path,
		ID:       e.desc.Rel(path),
		Contents: contents,
		Kind:     KindOf(path),
	}

	if e.Excluded(path) {
		log.Debug().Str("file", src.ID).Msg("excluded, passing through")
		return e.verbatim(src), nil
	}

	for _, r := range e.rules {
		if !r.match(path) {
			continue
		}

		log.Debug().Str("file", src.ID).Str("rule", r.name).Msg("transforming")

		out, err := r.handle(ctx, src)
		if err != nil {
			return nil, err
		}
		return e.finalize(out)
	}

	return e.verbatim(src), nil
}

// verbatim keeps the file bytes untouched. Script files are still scanned so
// their imports join the graph.
func (e *Engine) verbatim(src *Source) *Source {
	src.Verbatim = true
	if src.Kind == KindScript {
		imports, err := e.scanner.Scan(src)
		if err != nil {
			log.Warn().Err(err).Str("file", src.ID).Msg("could not scan imports, treating as leaf")
		}
		src.Imports = imports
	}
	src.Kind = KindRaw
	return src
}

// finalize turns whatever the last stage produced into something linkable.
func (e *Engine) finalize(src *Source) (*Source, error) {
	switch src.Kind {
	case KindModule:
		return src, nil
	case KindStyle:
		return styleModule(src)
	default:
		return e.verbatim(src), nil
	}
}

// styleModule exports the class map of a stylesheet no stage injected, with
// toString yielding the stylesheet text.
func styleModule(src *Source) (*Source, error) {
	css, err := json.Marshal(string(src.Contents))
	if err != nil {
		return nil, &Error{Path: src.ID, Loader: "css", Err: err}
	}
	locals, err := json.Marshal(exportsOrEmpty(src.Exports))
	if err != nil {
		return nil, &Error{Path: src.ID, Loader: "css", Err: err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "var css = %s;\n", css)
	fmt.Fprintf(&b, "var locals = %s;\n", locals)
	b.WriteString("Object.defineProperty(locals, \"toString\", { value: function () { return css; } });\n")
	b.WriteString("module.exports = locals;\n")

	out := src.Clone()
	out.Contents = []byte(b.String())
	out.Kind = KindModule
	return out, nil
}

func exportsOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
