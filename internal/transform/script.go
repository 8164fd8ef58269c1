package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/wolfeidau/pagepack/internal/config"
)

// ScriptOptions mirror the babel options found in existing descriptors.
type ScriptOptions struct {
	Presets []string `yaml:"presets"`
	// Plugins are accepted for compatibility; esbuild inlines its own helpers.
	Plugins []string `yaml:"plugins"`
	Compact bool     `yaml:"compact"`
	// Target overrides the target derived from presets, e.g. "es2017".
	Target string `yaml:"target"`
}

var presetTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"env":    api.ES2015,
	"esnext": api.ESNext,
}

type scriptTransformer struct {
	target     api.Target
	jsx        bool
	typescript bool
	compact    bool
	define     map[string]string
}

func newScript(env Env, options map[string]any) (Transformer, error) {
	var opts ScriptOptions
	if err := config.DecodeOptions(env.Field+".options", options, &opts); err != nil {
		return nil, err
	}

	t := &scriptTransformer{
		target:  api.ESNext,
		compact: opts.Compact,
		define:  env.Options.Define,
	}

	for _, preset := range opts.Presets {
		name := strings.TrimPrefix(strings.ToLower(preset), "babel-preset-")
		switch {
		case name == "react":
			t.jsx = true
		case name == "typescript":
			t.typescript = true
		case strings.HasPrefix(name, "stage-"):
			// esbuild parses every proposal these presets enable
		default:
			target, ok := presetTargets[name]
			if !ok {
				return nil, &config.Error{Field: env.Field + ".options.presets", Msg: fmt.Sprintf("unsupported preset %q", preset)}
			}
			if target != api.ESNext && (t.target == api.ESNext || target < t.target) {
				t.target = target
			}
		}
	}

	if opts.Target != "" {
		target, ok := presetTargets[strings.ToLower(opts.Target)]
		if !ok {
			return nil, &config.Error{Field: env.Field + ".options.target", Msg: fmt.Sprintf("unsupported target %q", opts.Target)}
		}
		t.target = target
	}

	return t, nil
}

func (t *scriptTransformer) Name() string { return "babel" }

func (t *scriptTransformer) loader(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	}
	if t.jsx {
		return api.LoaderJSX
	}
	if t.typescript {
		return api.LoaderTS
	}
	return api.LoaderJS
}

// Transform transpiles the source to CommonJS and records its imports. Each
// import is left external so the bundle graph can resolve it.
func (t *scriptTransformer) Transform(_ context.Context, src *Source) (*Source, error) {
	if src.Kind != KindScript && src.Kind != KindRaw {
		return nil, &Error{Path: src.ID, Loader: t.Name(), Err: fmt.Errorf("%w: %s", ErrUnexpectedKind, src.Kind)}
	}

	collector := &importCollector{}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(src.Contents),
			Sourcefile: src.ID,
			Loader:     t.loader(src.Path),
		},
		Bundle:           true,
		Write:            false,
		Format:           api.FormatCommonJS,
		Target:           t.target,
		JSX:              api.JSXTransform,
		JSXFactory:       "React.createElement",
		JSXFragment:      "React.Fragment",
		TreeShaking:      api.TreeShakingFalse,
		MinifyWhitespace: t.compact,
		Define:           t.define,
		LogLevel:         api.LogLevelSilent,
		Plugins:          []api.Plugin{collector.plugin()},
	})

	if len(result.Errors) > 0 {
		return nil, messageError(src, t.Name(), result.Errors[0])
	}
	if len(result.OutputFiles) == 0 {
		return nil, &Error{Path: src.ID, Loader: t.Name(), Msg: "esbuild produced no output"}
	}

	out := src.Clone()
	out.Contents = result.OutputFiles[0].Contents
	out.Kind = KindModule
	out.Imports = collector.list()
	return out, nil
}

func messageError(src *Source, loader string, msg api.Message) *Error {
	e := &Error{Path: src.ID, Loader: loader, Msg: msg.Text}
	if msg.Location != nil {
		e.Line = msg.Location.Line
		e.Column = msg.Location.Column + 1
	}
	return e
}

// importCollector is an esbuild plugin that marks every import external and
// remembers its request.
type importCollector struct {
	mu      sync.Mutex
	imports []string
}

func (c *importCollector) plugin() api.Plugin {
	return api.Plugin{
		Name: "pagepack-imports",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind == api.ResolveEntryPoint {
					return api.OnResolveResult{}, nil
				}

				c.mu.Lock()
				c.imports = append(c.imports, args.Path)
				c.mu.Unlock()

				return api.OnResolveResult{Path: args.Path, External: true}, nil
			})
		},
	}
}

func (c *importCollector) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := slices.Clone(c.imports)
	slices.Sort(out)
	return slices.Compact(out)
}

// scanner finds the imports of a file without changing it.
type scanner struct{}

func (s *scanner) Scan(src *Source) ([]string, error) {
	loader := api.LoaderJS
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".jsx":
		loader = api.LoaderJSX
	case ".ts":
		loader = api.LoaderTS
	case ".tsx":
		loader = api.LoaderTSX
	}

	collector := &importCollector{}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(src.Contents),
			Sourcefile: src.ID,
			Loader:     loader,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatCommonJS,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{collector.plugin()},
	})

	if len(result.Errors) > 0 {
		return nil, messageError(src, "scan", result.Errors[0])
	}

	return collector.list(), nil
}
