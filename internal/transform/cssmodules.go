package transform

import (
	"context"
	"fmt"

	"github.com/wolfeidau/pagepack/internal/config"
)

const DefaultLocalIdentName = "[hash:base64]"

type CSSOptions struct {
	// Modules scopes class names to the file they are declared in.
	Modules        bool   `yaml:"modules"`
	LocalIdentName string `yaml:"localIdentName"`
	HashPrefix     string `yaml:"hashPrefix"`
	// ImportLoaders is accepted for compatibility; @import is left as written.
	ImportLoaders int `yaml:"importLoaders"`
}

type cssModules struct {
	modules bool
	namer   identNamer
}

func newCSSModules(env Env, options map[string]any) (Transformer, error) {
	var opts CSSOptions
	if err := config.DecodeOptions(env.Field+".options", options, &opts); err != nil {
		return nil, err
	}
	if opts.LocalIdentName == "" {
		opts.LocalIdentName = DefaultLocalIdentName
	}

	return &cssModules{
		modules: opts.Modules,
		namer:   identNamer{template: opts.LocalIdentName, hashPrefix: opts.HashPrefix},
	}, nil
}

func (c *cssModules) Name() string { return "css" }

func (c *cssModules) Transform(_ context.Context, src *Source) (*Source, error) {
	if src.Kind != KindStyle && src.Kind != KindRaw {
		return nil, &Error{Path: src.ID, Loader: c.Name(), Err: fmt.Errorf("%w: %s", ErrUnexpectedKind, src.Kind)}
	}

	out := src.Clone()
	out.Kind = KindStyle

	if !c.modules {
		if _, err := tokenize(src.Contents); err != nil {
			return nil, c.fail(src, err)
		}
		out.Exports = map[string]string{}
		return out, nil
	}

	contents, exports, err := scopeClasses(src.Contents, func(local string) string {
		return c.namer.Name(src.ID, local)
	})
	if err != nil {
		return nil, c.fail(src, err)
	}

	out.Contents = contents
	out.Exports = exports
	return out, nil
}

func (c *cssModules) fail(src *Source, err error) error {
	e := &Error{Path: src.ID, Loader: c.Name(), Err: err}
	if line, col, ok := syntaxPosition(src.Contents, err); ok {
		e.Line, e.Column = line, col
	}
	return e
}
