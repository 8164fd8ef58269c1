package transform

import (
	"sort"

	"github.com/wolfeidau/pagepack/internal/config"
)

// Env carries build-wide settings into loader factories.
type Env struct {
	Descriptor *config.Descriptor
	Options    Options
	// Field names the descriptor field being built, for error reporting.
	Field string
}

// Factory builds a transformer from its decoded rule options.
type Factory func(env Env, options map[string]any) (Transformer, error)

var loaders = map[string]Factory{
	"babel":        newScript,
	"babel-loader": newScript,
	"esbuild":      newScript,
	"css":          newCSSModules,
	"css-loader":   newCSSModules,
	"style":        newStyle,
	"style-loader": newStyle,
}

// Lookup returns the factory registered for a loader name.
func Lookup(name string) (Factory, bool) {
	f, ok := loaders[name]
	return f, ok
}

// Loaders lists the registered loader names.
func Loaders() []string {
	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
